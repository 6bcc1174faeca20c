// Package orchestrator implements the Exchange Orchestrator (§4.6):
// the transactional per-turn driver that persists the user's message,
// assembles the Context Document, runs the Tool-Calling Loop, and
// commits the exchange's outcome.
//
// Grounded on the teacher's conversation-persistence flow
// (pkg/conversations/service.go's create-then-update lifecycle) and
// the per-turn SendMessage orchestration in pkg/llm/base, generalized
// to the transactional process_turn contract SPEC_FULL.md §4.6
// specifies: open tx -> write user message -> build context doc ->
// run the loop -> commit. The Context Document's RAG section has no
// teacher equivalent (kodelet has no retrieval layer); it is grounded
// on the teacher's own Markdown system-prompt assembly in
// pkg/sysprompt/renderer.go (fixed, ordered sections joined as one blob).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mgreenly/nuagent/internal/eventbus"
	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/tool"
	"github.com/mgreenly/nuagent/internal/toolloop"
	"github.com/mgreenly/nuagent/internal/tracing"
)

// SpellCorrection is the optional "user said X but means Y" fragment
// (§4.6 step 6b). A nil value omits the fragment.
type SpellCorrection struct {
	Said  string
	Means string
}

// Result is what ProcessTurn reports back to its caller (the REPL's
// Input Pipeline) once the transaction has committed or rolled back.
type Result struct {
	ExchangeID int64
	Response   string
	Failed     bool
	FailReason string
	Metrics    toolloop.Metrics
}

// Orchestrator drives process_turn for one conversation at a time; a
// process hosting multiple concurrent conversations constructs one per
// conversation (or threads conversationID through every call — this
// type takes the simpler per-conversation-instance shape since that's
// how the REPL drives it).
type Orchestrator struct {
	gateway       *store.Gateway
	registry      *tool.Registry
	adapter       provider.Adapter
	bus           *eventbus.Bus
	model         string
	workingDir    string
	maxIterations int
	onContent     toolloop.OnAssistantContent
}

// New constructs an Orchestrator. maxIterations <= 0 uses
// toolloop.DefaultMaxIterations; onContent may be nil.
func New(
	gateway *store.Gateway,
	registry *tool.Registry,
	adapter provider.Adapter,
	bus *eventbus.Bus,
	model, workingDir string,
	maxIterations int,
	onContent toolloop.OnAssistantContent,
) *Orchestrator {
	return &Orchestrator{
		gateway:       gateway,
		registry:      registry,
		adapter:       adapter,
		bus:           bus,
		model:         model,
		workingDir:    workingDir,
		maxIterations: maxIterations,
		onContent:     onContent,
	}
}

// ProcessTurn implements the 12-step contract of §4.6. A caller
// cancelling ctx mid-turn rolls the whole exchange back (§4.6
// "Cancellation"); a provider/tool failure instead commits the
// exchange in status=failed so the failure is durably recorded.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID int64, userInput string, spell *SpellCorrection) (Result, error) {
	if err := o.gateway.IncrementWorkers(ctx); err != nil {
		return Result{}, errors.Wrap(err, "failed to increment active_workers")
	}
	defer func() {
		// Exactly one decrement per increment on every path (Open
		// Question iv) — this defer is the only path out of ProcessTurn.
		if err := o.gateway.DecrementWorkers(context.Background()); err != nil {
			_ = err // best-effort; the gauge is advisory (REPL idle indicator)
		}
	}()

	var result Result
	var committed bool

	txErr := tracing.WithSpan(ctx, "orchestrator.process_turn", func(ctx context.Context) error {
		return o.gateway.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		exchangeID, err := tx.CreateExchange(ctx, conversationID, userInput)
		if err != nil {
			return err
		}
		result.ExchangeID = exchangeID

		if _, err := tx.AddMessage(ctx, store.NewMessage{
			ConversationID:   conversationID,
			ExchangeID:       exchangeID,
			Role:             store.RoleUser,
			Content:          userInput,
			Redacted:         false,
			IncludeInContext: true,
		}); err != nil {
			return err
		}

		all, err := tx.Messages(ctx, conversationID, store.MessagesQuery{})
		if err != nil {
			return err
		}

		history := historyForContext(all, exchangeID)
		state := tool.NewBasicState(o.gateway, conversationID, o.model, o.workingDir, allTools(o.registry))
		toolNames := toolNamesFor(o.registry, state)

		contextDoc := buildContextDocument(all, toolNames, userInput, spell)

		messages := append(toProviderMessages(history), provider.Message{Role: "user", Content: contextDoc})
		toolSchemas := o.adapter.FormatTools(o.registry)

		outcome := toolloop.Run(ctx, o.adapter, o.registry, state, messages, "", toolSchemas, o.maxIterations, o.onContent)

		if err := persistLoopMessages(ctx, tx, conversationID, exchangeID, outcome.Persisted); err != nil {
			return err
		}

		if outcome.Error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			completedAt := time.Now().UTC()
			status := store.ExchangeFailed
			errText := outcome.ErrorText
			tokensIn := int64(outcome.Metrics.TokensInput)
			tokensOut := int64(outcome.Metrics.TokensOutput)
			spend := outcome.Metrics.Spend
			msgCount := int64(outcome.Metrics.MessageCount)
			toolCalls := int64(outcome.Metrics.ToolCallCount)

			if err := tx.UpdateExchange(ctx, exchangeID, store.ExchangeUpdate{
				Status:        &status,
				Error:         &errText,
				CompletedAt:   &completedAt,
				TokensInput:   &tokensIn,
				TokensOutput:  &tokensOut,
				Spend:         &spend,
				MessageCount:  &msgCount,
				ToolCallCount: &toolCalls,
			}); err != nil {
				return err
			}

			result.Failed = true
			result.FailReason = errText
			result.Metrics = outcome.Metrics
			committed = true
			return nil
		}

		finalMsg := store.NewMessage{
			ConversationID:   conversationID,
			ExchangeID:       exchangeID,
			Role:             store.RoleAssistant,
			Content:          outcome.Response,
			Redacted:         false,
			IncludeInContext: true,
		}
		if outcome.FinalTokensInput != nil {
			v := int64(*outcome.FinalTokensInput)
			finalMsg.TokensInput = &v
		}
		if outcome.FinalTokensOutput != nil {
			v := int64(*outcome.FinalTokensOutput)
			finalMsg.TokensOutput = &v
		}
		if outcome.FinalSpend != nil {
			finalMsg.Spend = outcome.FinalSpend
		}
		if _, err := tx.AddMessage(ctx, finalMsg); err != nil {
			return err
		}

		assistantMsg := outcome.Response
		metrics := store.ExchangeMetrics{
			TokensInput:   int64(outcome.Metrics.TokensInput),
			TokensOutput:  int64(outcome.Metrics.TokensOutput),
			Spend:         outcome.Metrics.Spend,
			MessageCount:  int64(outcome.Metrics.MessageCount),
			ToolCallCount: int64(outcome.Metrics.ToolCallCount),
		}
		if err := tx.CompleteExchange(ctx, exchangeID, nil, &assistantMsg, metrics); err != nil {
			return err
		}

		result.Response = outcome.Response
		result.Metrics = outcome.Metrics
		committed = true
		return nil
		})
	}, attribute.Int64("conversation_id", conversationID))

	if txErr != nil {
		return Result{}, txErr
	}

	if committed {
		o.bus.Publish(eventbus.TopicExchangeCompleted, result)
	}

	return result, nil
}

// historyForContext applies §4.6 step 5: exclude redacted messages and
// anything written under the current exchange (which at this point is
// only the user message just inserted).
func historyForContext(all []store.Message, currentExchangeID int64) []store.Message {
	out := make([]store.Message, 0, len(all))
	for _, m := range all {
		if m.Redacted || m.ExchangeID == currentExchangeID {
			continue
		}
		out = append(out, m)
	}
	return out
}

func toProviderMessages(msgs []store.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		pm := provider.Message{Role: string(m.Role), Content: m.Content}
		if m.ToolCallID != nil {
			pm.ToolCallID = *m.ToolCallID
		}
		if m.ToolResult != nil {
			pm.ToolResult = *m.ToolResult
		}
		out = append(out, pm)
	}
	return out
}

func allTools(registry *tool.Registry) []tool.Tool {
	names := registry.Names()
	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		if t, err := registry.Lookup(n); err == nil {
			out = append(out, t)
		}
	}
	return out
}

func toolNamesFor(registry *tool.Registry, state tool.State) []string {
	tools := registry.ForState(state)
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// buildContextDocument renders the three §4.6-step-6 sections in
// order: Context, Available Tools, User Query.
func buildContextDocument(all []store.Message, toolNames []string, userInput string, spell *SpellCorrection) string {
	var redactedIDs []int64
	for _, m := range all {
		if m.Redacted {
			redactedIDs = append(redactedIDs, m.ID)
		}
	}

	var fragments []string
	if len(redactedIDs) > 0 {
		fragments = append(fragments, fmt.Sprintf("Redacted message ids: %s", store.CompressIDRanges(redactedIDs)))
	}
	if spell != nil && spell.Said != "" && spell.Said != spell.Means {
		fragments = append(fragments, fmt.Sprintf("user said %q but means %q", spell.Said, spell.Means))
	}

	contextBody := "No Augmented Information Generated"
	if len(fragments) > 0 {
		contextBody = strings.Join(fragments, "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Context\n\n%s\n\n", contextBody)
	fmt.Fprintf(&b, "## Available Tools\n\n%s\n\n", strings.Join(toolNames, ", "))
	fmt.Fprintf(&b, "## User Query\n\n%s\n", userInput)
	return b.String()
}

// persistLoopMessages writes the Tool-Calling Loop's intermediate
// assistant/tool round-trips, in order (§3 invariant: id strictly
// increasing in write order). The loop itself never touches storage
// (toolloop.PersistedMessage doc comment) — this is the translation
// layer from its provider-neutral shape into store.NewMessage.
func persistLoopMessages(ctx context.Context, tx *store.Tx, conversationID, exchangeID int64, persisted []toolloop.PersistedMessage) error {
	for _, pm := range persisted {
		nm := store.NewMessage{
			ConversationID:   conversationID,
			ExchangeID:       exchangeID,
			Role:             store.MessageRole(pm.Role),
			Content:          pm.Content,
			Redacted:         pm.Redacted,
			IncludeInContext: true,
		}
		if len(pm.ToolCalls) > 0 {
			raw, err := json.Marshal(pm.ToolCalls)
			if err != nil {
				return errors.Wrap(err, "failed to encode tool_calls")
			}
			s := string(raw)
			nm.ToolCalls = &s
		}
		if pm.ToolCallID != "" {
			id := pm.ToolCallID
			nm.ToolCallID = &id
		}
		if pm.ToolResult != "" {
			r := pm.ToolResult
			nm.ToolResult = &r
		}
		if pm.TokensInput != nil {
			v := int64(*pm.TokensInput)
			nm.TokensInput = &v
		}
		if pm.TokensOutput != nil {
			v := int64(*pm.TokensOutput)
			nm.TokensOutput = &v
		}
		if pm.Spend != nil {
			nm.Spend = pm.Spend
		}
		if !pm.Redacted && pm.Role == "assistant" && pm.Content != "" {
			// The one non-redacted assistant message the loop persists
			// itself is the provider-error path's raw error text — keep
			// it out of include_in_context so a failed turn's diagnostic
			// text never leaks into a later exchange's history.
			nm.IncludeInContext = false
		}
		if _, err := tx.AddMessage(ctx, nm); err != nil {
			return err
		}
	}
	return nil
}
