// Package toolloop implements the Tool-Calling Loop (§4.5): the
// per-exchange state machine that calls a provider, schedules and
// executes any tool calls it asks for, and loops until the provider
// responds with no tool_calls or an error.
//
// Grounded on the teacher's pkg/llm/base tool-execution lifecycle
// (validate -> execute -> structure -> render, see ExecuteTool) and
// the provider SendMessage loops in pkg/llm/anthropic/anthropic.go —
// factored one layer further out than the teacher so the loop drives
// the provider-agnostic internal/provider.Adapter contract instead of
// being embedded inside each vendor package.
package toolloop

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mgreenly/nuagent/internal/executor"
	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/scheduler"
	"github.com/mgreenly/nuagent/internal/tool"
)

// DefaultMaxIterations is the soft cap from SPEC_FULL.md's resolution
// of Open Question (i): 32 iterations per exchange, overridable through
// Run's maxIterations argument (cmd/nuagent passes the viper setting
// "max_tool_iterations", flag --max-tool-iterations).
const DefaultMaxIterations = 32

// Metrics accumulates the per-iteration counters §4.5 specifies.
type Metrics struct {
	TokensInput    int
	TokensOutput   int
	Spend          float64
	MessageCount   int
	ToolCallCount  int
	ToolIterations int
}

// PersistedMessage is one record the loop asks its caller to append to
// the store, in persistence order. The caller (the orchestrator) is
// responsible for the actual store.AddMessage call and its exchange_id
// /conversation_id — the loop only knows about the in-memory
// conversation shape, not storage plumbing, mirroring the teacher's
// separation between llm.Message and the persisted Message record.
//
// TokensInput/TokensOutput/Spend carry the single provider call that
// produced this message (nil for "tool" messages and the unredacted
// raw-error message, neither of which came from a billed call) so
// §3 invariant 2 holds: summing TokensOutput across Messages equals
// the exchange's tokens_output, and the max TokensInput equals it.
type PersistedMessage struct {
	Role         string
	Content      string
	ToolCalls    []provider.ToolCall
	ToolCallID   string
	ToolResult   string
	Redacted     bool
	TokensInput  *int
	TokensOutput *int
	Spend        *float64
}

// Outcome is what process_turn / the orchestrator consumes once the
// loop terminates (§4.5's {error, response, metrics} contract).
// FinalTokensInput/FinalTokensOutput/FinalSpend describe the single
// call that produced Response, mirroring PersistedMessage's per-call
// fields for the one message the loop doesn't append to Persisted
// itself (the orchestrator writes it after deciding the turn succeeded).
type Outcome struct {
	Error             bool
	ErrorText         string
	Response          string
	Metrics           Metrics
	Persisted         []PersistedMessage
	FinalTokensInput  *int
	FinalTokensOutput *int
	FinalSpend        *float64
}

// OnAssistantContent is invoked immediately when an iteration's
// response carries non-empty content alongside tool_calls, so the
// caller can surface it to the user before the next iteration runs
// (§4.5: "If content is non-empty, surface it to the user immediately").
type OnAssistantContent func(content string)

// Run drives the state machine described in §4.5 to completion.
// messages is the caller-composed history plus Context Document
// (§4.6 step 7); systemPrompt and toolSchemas are passed straight
// through to the adapter on every iteration. maxIterations <= 0 uses
// DefaultMaxIterations.
func Run(
	ctx context.Context,
	adapter provider.Adapter,
	registry *tool.Registry,
	state tool.State,
	messages []provider.Message,
	systemPrompt string,
	toolSchemas []provider.ToolSchema,
	maxIterations int,
	onContent OnAssistantContent,
) Outcome {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var metrics Metrics
	var persisted []PersistedMessage

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Error: true, ErrorText: err.Error(), Metrics: metrics, Persisted: persisted}
		}

		resp, err := adapter.SendMessage(ctx, messages, systemPrompt, toolSchemas)
		if err != nil {
			return Outcome{Error: true, ErrorText: err.Error(), Metrics: metrics, Persisted: persisted}
		}
		if resp.Error != nil {
			persisted = append(persisted, PersistedMessage{Role: "assistant", Content: resp.Error.RawError, Redacted: false})
			return Outcome{Error: true, ErrorText: resp.Error.RawError, Metrics: metrics, Persisted: persisted}
		}

		metrics.ToolIterations++
		if resp.Tokens.Input != nil && *resp.Tokens.Input > metrics.TokensInput {
			metrics.TokensInput = *resp.Tokens.Input
		}
		if resp.Tokens.Output != nil {
			metrics.TokensOutput += *resp.Tokens.Output
		}
		metrics.Spend += resp.Spend
		metrics.MessageCount++

		callSpend := resp.Spend

		if len(resp.ToolCalls) == 0 {
			content := ""
			if resp.Content != nil {
				content = *resp.Content
			}
			return Outcome{
				Error:             false,
				Response:          content,
				Metrics:           metrics,
				Persisted:         persisted,
				FinalTokensInput:  resp.Tokens.Input,
				FinalTokensOutput: resp.Tokens.Output,
				FinalSpend:        &callSpend,
			}
		}

		metrics.ToolCallCount += len(resp.ToolCalls)

		content := ""
		if resp.Content != nil {
			content = *resp.Content
		}
		if content != "" && onContent != nil {
			onContent(content)
		}

		persisted = append(persisted, PersistedMessage{
			Role:         "assistant",
			Content:      content,
			ToolCalls:    resp.ToolCalls,
			Redacted:     true,
			TokensInput:  resp.Tokens.Input,
			TokensOutput: resp.Tokens.Output,
			Spend:        &callSpend,
		})
		messages = append(messages, provider.Message{Role: "assistant", Content: content, ToolCalls: resp.ToolCalls})

		calls := make([]scheduler.Call, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			params, _ := json.Marshal(tc.Arguments)
			id := tc.ID
			if id == "" {
				id = uuid.NewString()
			}
			calls[i] = scheduler.Call{ID: id, ToolName: tc.Name, Parameters: string(params)}
		}

		batches, err := scheduler.Batch(registry, state, calls)
		if err != nil {
			return Outcome{Error: true, ErrorText: err.Error(), Metrics: metrics, Persisted: persisted}
		}
		outcomes := executor.ExecuteBatches(ctx, registry, state, batches)

		for _, o := range outcomes {
			resultJSON, _ := json.Marshal(o.Result.StructuredData())
			msg := PersistedMessage{
				Role:       "tool",
				Content:    string(resultJSON),
				ToolCallID: o.Call.ID,
				ToolResult: string(resultJSON),
				Redacted:   true,
			}
			persisted = append(persisted, msg)
			messages = append(messages, provider.Message{
				Role:       "tool",
				ToolCallID: o.Call.ID,
				ToolResult: string(resultJSON),
			})
		}
	}

	return Outcome{Error: true, ErrorText: "tool iteration cap reached", Metrics: metrics, Persisted: persisted}
}
