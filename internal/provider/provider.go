// Package provider implements the Provider Adapter Contract (§6.1):
// a vendor-neutral Message/Response shape, and an Adapter interface
// every vendor-specific package in this directory implements.
//
// Grounded on the teacher's pkg/llm/interface.go Provider interface
// (SendMessage/ConvertTools/GetAvailableModels) and pkg/llm/thread.go's
// NewThread provider-selection switch, generalized to the normalized
// Response shape SPEC_FULL.md's §6.1 specifies (the teacher's
// MessageResponse has no tokens/spend/finish_reason/error struct —
// those are threaded through ad hoc per-provider usage tracking instead).
package provider

import (
	"context"

	"github.com/mgreenly/nuagent/internal/tool"
)

// ToolCall is one entry in a Response's tool_calls list. Providers
// that don't return call IDs synthesize a UUID (§6.1).
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// Tokens is the input/output token shape of a Response; either field
// may be nil when the provider didn't report it for this call.
type Tokens struct {
	Input  *int
	Output *int
}

// ResponseError carries a provider-side failure without panicking the
// caller — the Tool-Calling Loop (§4.5) persists this as an api_error
// message and finalizes the exchange with status=failed.
type ResponseError struct {
	Status   int
	Headers  map[string]string
	Body     string
	RawError string
}

// Response is the normalized shape every adapter returns (§6.1).
type Response struct {
	Content      *string
	ToolCalls    []ToolCall
	Model        string
	Tokens       Tokens
	Spend        float64
	FinishReason *string
	Error        *ResponseError
}

// Message is the provider-agnostic internal message shape (§6.1's
// "tool role message reply shape is provider-agnostic internally").
type Message struct {
	Role       string // user, assistant, tool, system
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolResult string // JSON-serialized result, present when Role == "tool"
}

// ToolSchema is one provider-formatted tool definition, returned by
// FormatTools. The concrete shape is opaque to callers — each adapter
// knows how to pass its own ToolSchema values back into SendMessage.
type ToolSchema interface{}

// Adapter is the §6.1 contract every vendor package implements.
type Adapter interface {
	Name() string
	Model() string
	MaxContext() int

	SendMessage(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSchema) (Response, error)
	FormatTools(registry *tool.Registry) []ToolSchema
	CalculateCost(inputTokens, outputTokens int) float64
}

// New constructs the adapter named by providerName, following the
// teacher's pkg/llm/interface.go NewProvider factory-switch shape.
func New(providerName, model, apiKey string) (Adapter, error) {
	switch providerName {
	case "anthropic":
		return newAnthropicAdapter(model, apiKey), nil
	case "openai":
		return newOpenAIAdapter(model, apiKey), nil
	case "gemini":
		return newGeminiAdapter(model, apiKey), nil
	default:
		return nil, unsupportedProviderError(providerName)
	}
}
