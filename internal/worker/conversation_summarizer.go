package worker

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
)

// ConversationSummarizer periodically renders unredacted messages of a
// completed conversation as "role: content" lines, asks the
// summarizer provider to condense them, and writes the result back
// under a critical section. Grounded on the teacher's own
// system-prompt-as-rendered-text style (pkg/sysprompt/renderer.go)
// generalized to a transcript-to-summary prompt.
type ConversationSummarizer struct {
	*PausableTask
	gateway          *store.Gateway
	adapter          provider.Adapter
	critical         *CriticalSection
	activeConvID     func() int64
}

// NewConversationSummarizer wires a PausableTask whose do_work polls
// for one unsummarized conversation per tick. activeConvID reports the
// conversation currently in flight, excluded from every poll.
func NewConversationSummarizer(gateway *store.Gateway, adapter provider.Adapter, critical *CriticalSection, activeConvID func() int64) *ConversationSummarizer {
	s := &ConversationSummarizer{gateway: gateway, adapter: adapter, critical: critical, activeConvID: activeConvID}
	s.PausableTask = NewPausableTask("conversation_summarizer", s.doWork, DefaultRetryConfig())
	return s
}

func (s *ConversationSummarizer) doWork(ctx context.Context, status *statusBox) error {
	convs, err := s.gateway.GetUnsummarizedConversations(ctx, s.activeConvID())
	if err != nil {
		return errors.Wrap(err, "failed to list unsummarized conversations")
	}
	if len(convs) == 0 {
		return nil
	}

	conv := convs[0]
	status.SetCurrent("conversation", conv.ID)

	msgs, err := s.gateway.Messages(ctx, conv.ID, store.MessagesQuery{IncludeInContextOnly: true})
	if err != nil {
		return errors.Wrapf(err, "failed to load messages for conversation %d", conv.ID)
	}
	if len(msgs) == 0 {
		return nil
	}

	transcript := renderTranscript(msgs)

	resp, err := s.adapter.SendMessage(ctx, []provider.Message{
		{Role: "user", Content: summarizerPrompt(transcript)},
	}, summarizerSystemPrompt, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to summarize conversation %d", conv.ID)
	}
	if resp.Error != nil {
		return errors.Errorf("summarizer provider error: %s", resp.Error.RawError)
	}
	if resp.Content == nil {
		return errors.New("summarizer returned empty content")
	}

	s.critical.Enter()
	defer s.critical.Exit()

	if err := s.gateway.SetConversationSummary(ctx, conv.ID, *resp.Content, s.adapter.Model(), resp.Spend); err != nil {
		return errors.Wrapf(err, "failed to persist summary for conversation %d", conv.ID)
	}
	status.AddSpend(resp.Spend)
	return nil
}

const summarizerSystemPrompt = "Summarize the following conversation transcript in a few sentences, preserving the user's goals and any decisions reached."

func summarizerPrompt(transcript string) string {
	return "Transcript:\n\n" + transcript
}

// renderTranscript formats messages as "role: content" lines (§4.7).
func renderTranscript(msgs []store.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
