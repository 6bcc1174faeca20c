package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/mgreenly/nuagent/internal/tool"
)

// anthropicPricing is per-token USD pricing, grounded on the teacher's
// pkg/llm/anthropic/pricing.go ModelPricingMap — trimmed to the
// input/output fields SPEC_FULL.md's calculate_cost needs (prompt
// caching pricing has no Non-goal carve-out but also no caller in
// SPEC_FULL.md's §4 components, so it's dropped rather than carried dead).
type anthropicPricing struct {
	Input  float64
	Output float64
}

var anthropicPricingMap = map[string]anthropicPricing{
	"claude-sonnet-4-5":       {Input: 0.000003, Output: 0.000015},
	"claude-opus-4-1":         {Input: 0.000015, Output: 0.000075},
	"claude-3-7-sonnet-latest": {Input: 0.000003, Output: 0.000015},
	"claude-3-5-haiku-latest": {Input: 0.0000008, Output: 0.000004},
}

func anthropicPricingFor(model string) anthropicPricing {
	if p, ok := anthropicPricingMap[model]; ok {
		return p
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "haiku"):
		return anthropicPricingMap["claude-3-5-haiku-latest"]
	case strings.Contains(lower, "opus"):
		return anthropicPricingMap["claude-opus-4-1"]
	default:
		return anthropicPricingMap["claude-sonnet-4-5"]
	}
}

// anthropicAdapter implements Adapter for Claude, grounded on the
// teacher's pkg/llm/anthropic.go AnthropicProvider, restructured
// around the normalized Response shape (§6.1) instead of the
// teacher's ad hoc MessageResponse.
type anthropicAdapter struct {
	client anthropic.Client
	model  string
}

func newAnthropicAdapter(model, apiKey string) *anthropicAdapter {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &anthropicAdapter{client: anthropic.NewClient(opts...), model: model}
}

func (a *anthropicAdapter) Name() string     { return "anthropic" }
func (a *anthropicAdapter) Model() string    { return a.model }
func (a *anthropicAdapter) MaxContext() int  { return 200_000 }

func (a *anthropicAdapter) CalculateCost(inputTokens, outputTokens int) float64 {
	p := anthropicPricingFor(a.model)
	return float64(inputTokens)*p.Input + float64(outputTokens)*p.Output
}

func (a *anthropicAdapter) FormatTools(registry *tool.Registry) []ToolSchema {
	var schemas []ToolSchema
	for _, name := range registry.Names() {
		t, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		schema := t.GenerateSchema()
		toolParam := anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
		}
		if schema != nil && schema.Properties != nil {
			toolParam.InputSchema = anthropic.ToolInputSchemaParam{Properties: schema.Properties}
		}
		schemas = append(schemas, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return schemas
}

func (a *anthropicAdapter) SendMessage(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSchema) (Response, error) {
	var anthropicMessages []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "tool":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.ToolResult, false),
			))
		}
	}

	anthropicTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, ts := range tools {
		if t, ok := ts.(anthropic.ToolUnionParam); ok {
			anthropicTools = append(anthropicTools, t)
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		Messages:  anthropicMessages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(anthropicTools) > 0 {
		params.Tools = anthropicTools
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		msg := err.Error()
		return Response{Model: a.model, Error: &ResponseError{RawError: msg, Body: msg}}, nil
	}

	out := Response{Model: a.model}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text := variant.Text
			out.Content = &text
		case anthropic.ToolUseBlock:
			call := ToolCall{ID: variant.ID, Name: variant.Name}
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			var args map[string]interface{}
			if err := json.Unmarshal(variant.Input, &args); err == nil {
				call.Arguments = args
			} else {
				call.Arguments = map[string]interface{}{"raw": string(variant.Input)}
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}

	input := int(resp.Usage.InputTokens)
	output := int(resp.Usage.OutputTokens)
	out.Tokens = Tokens{Input: &input, Output: &output}
	out.Spend = a.CalculateCost(input, output)
	stopReason := string(resp.StopReason)
	out.FinishReason = &stopReason

	return out, nil
}
