package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mgreenly/nuagent/internal/tool"
)

// openaiPricing mirrors anthropicPricing (§6.1's calculate_cost),
// grounded on the teacher's pkg/llm/openai/pricing.go per-model table,
// trimmed to the two model families SPEC_FULL.md's config defaults exercise.
var openaiPricingMap = map[string]anthropicPricing{
	"gpt-4o":      {Input: 0.0000025, Output: 0.00001},
	"gpt-4o-mini": {Input: 0.00000015, Output: 0.0000006},
}

func openaiPricingFor(model string) anthropicPricing {
	if p, ok := openaiPricingMap[model]; ok {
		return p
	}
	if strings.Contains(model, "mini") {
		return openaiPricingMap["gpt-4o-mini"]
	}
	return openaiPricingMap["gpt-4o"]
}

// openaiAdapter implements Adapter for OpenAI chat completions,
// grounded on the teacher's pkg/llm/openai.go OpenAIProvider.
type openaiAdapter struct {
	client *openai.Client
	model  string
}

func newOpenAIAdapter(model, apiKey string) *openaiAdapter {
	if model == "" {
		model = openai.GPT4o
	}
	return &openaiAdapter{client: openai.NewClient(apiKey), model: model}
}

func (a *openaiAdapter) Name() string    { return "openai" }
func (a *openaiAdapter) Model() string   { return a.model }
func (a *openaiAdapter) MaxContext() int { return 128_000 }

func (a *openaiAdapter) CalculateCost(inputTokens, outputTokens int) float64 {
	p := openaiPricingFor(a.model)
	return float64(inputTokens)*p.Input + float64(outputTokens)*p.Output
}

func (a *openaiAdapter) FormatTools(registry *tool.Registry) []ToolSchema {
	var schemas []ToolSchema
	for _, name := range registry.Names() {
		t, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		fn := openai.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.GenerateSchema(),
		}
		schemas = append(schemas, openai.Tool{Type: openai.ToolTypeFunction, Function: &fn})
	}
	return schemas
}

func (a *openaiAdapter) SendMessage(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSchema) (Response, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case "user":
			msg.Role = openai.ChatMessageRoleUser
		case "assistant":
			msg.Role = openai.ChatMessageRoleAssistant
		case "system":
			msg.Role = openai.ChatMessageRoleSystem
		case "tool":
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
			msg.Content = m.ToolResult
		}
		openaiMessages = append(openaiMessages, msg)
	}

	openaiTools := make([]openai.Tool, 0, len(tools))
	for _, ts := range tools {
		if t, ok := ts.(openai.Tool); ok {
			openaiTools = append(openaiTools, t)
		}
	}

	req := openai.ChatCompletionRequest{Model: a.model, Messages: openaiMessages}
	if len(openaiTools) > 0 {
		req.Tools = openaiTools
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		msg := err.Error()
		return Response{Model: a.model, Error: &ResponseError{RawError: msg, Body: msg}}, nil
	}

	out := Response{Model: a.model}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			content := choice.Message.Content
			out.Content = &content
		}
		finish := string(choice.FinishReason)
		out.FinishReason = &finish

		for _, tc := range choice.Message.ToolCalls {
			call := ToolCall{ID: tc.ID, Name: tc.Function.Name}
			if call.ID == "" {
				call.ID = uuid.NewString()
			}
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
				call.Arguments = args
			} else {
				call.Arguments = map[string]interface{}{"raw": tc.Function.Arguments}
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
	}

	input := resp.Usage.PromptTokens
	output := resp.Usage.CompletionTokens
	out.Tokens = Tokens{Input: &input, Output: &output}
	out.Spend = a.CalculateCost(input, output)

	return out, nil
}
