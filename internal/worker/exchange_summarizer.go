package worker

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
)

// ExchangeSummarizer mirrors ConversationSummarizer at exchange
// granularity: it condenses one completed exchange's user/assistant
// turn into a short summary for later embedding and retrieval.
type ExchangeSummarizer struct {
	*PausableTask
	gateway      *store.Gateway
	adapter      provider.Adapter
	critical     *CriticalSection
	activeConvID func() int64
}

func NewExchangeSummarizer(gateway *store.Gateway, adapter provider.Adapter, critical *CriticalSection, activeConvID func() int64) *ExchangeSummarizer {
	s := &ExchangeSummarizer{gateway: gateway, adapter: adapter, critical: critical, activeConvID: activeConvID}
	s.PausableTask = NewPausableTask("exchange_summarizer", s.doWork, DefaultRetryConfig())
	return s
}

func (s *ExchangeSummarizer) doWork(ctx context.Context, status *statusBox) error {
	exchanges, err := s.gateway.GetUnsummarizedExchanges(ctx, s.activeConvID())
	if err != nil {
		return errors.Wrap(err, "failed to list unsummarized exchanges")
	}
	if len(exchanges) == 0 {
		return nil
	}

	ex := exchanges[0]
	status.SetCurrent("exchange", ex.ID)

	assistant := ""
	if ex.AssistantMessage != nil {
		assistant = *ex.AssistantMessage
	}
	transcript := fmt.Sprintf("user: %s\nassistant: %s\n", ex.UserMessage, assistant)

	resp, err := s.adapter.SendMessage(ctx, []provider.Message{
		{Role: "user", Content: summarizerPrompt(transcript)},
	}, summarizerSystemPrompt, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to summarize exchange %d", ex.ID)
	}
	if resp.Error != nil {
		return errors.Errorf("summarizer provider error: %s", resp.Error.RawError)
	}
	if resp.Content == nil {
		return errors.New("summarizer returned empty content")
	}

	s.critical.Enter()
	defer s.critical.Exit()

	model := s.adapter.Model()
	if err := s.gateway.UpdateExchange(ctx, ex.ID, store.ExchangeUpdate{
		Summary:      resp.Content,
		SummaryModel: &model,
	}); err != nil {
		return errors.Wrapf(err, "failed to persist summary for exchange %d", ex.ID)
	}
	status.AddSpend(resp.Spend)
	return nil
}
