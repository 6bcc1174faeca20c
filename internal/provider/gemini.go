package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/mgreenly/nuagent/internal/tool"
)

// geminiPricing mirrors the other adapters' per-token tables,
// grounded on the teacher's usage-tracking defaults in
// pkg/llm/google/google.go (no dedicated pricing.go there, unlike
// anthropic/openai — Gemini cost tracking in the teacher piggybacks on
// genai.UsageMetadata token counts without a priced lookup; this adds
// one to satisfy §6.1's calculate_cost contract).
var geminiPricingMap = map[string]anthropicPricing{
	"gemini-2.5-pro":   {Input: 0.00000125, Output: 0.000005},
	"gemini-2.5-flash": {Input: 0.0000003, Output: 0.0000025},
}

func geminiPricingFor(model string) anthropicPricing {
	if p, ok := geminiPricingMap[model]; ok {
		return p
	}
	if strings.Contains(model, "flash") {
		return geminiPricingMap["gemini-2.5-flash"]
	}
	return geminiPricingMap["gemini-2.5-pro"]
}

// geminiAdapter implements Adapter for Google's GenAI API, grounded on
// the teacher's pkg/llm/google/google.go Thread — trimmed to a
// single-shot GenerateContent call (the teacher streams via
// GenerateContentStream for incremental UI rendering, which
// SPEC_FULL.md's turn-based Tool-Calling Loop has no use for) and
// without the thinking-budget/subagent machinery the teacher's Thread
// carries for its own orchestration layer.
type geminiAdapter struct {
	client *genai.Client
	model  string
}

func newGeminiAdapter(model, apiKey string) *geminiAdapter {
	if model == "" {
		model = "gemini-2.5-pro"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		// Adapter construction is otherwise infallible (§6.1 has no
		// error return from New); surface failures lazily on first call.
		client = nil
	}
	return &geminiAdapter{client: client, model: model}
}

func (a *geminiAdapter) Name() string    { return "gemini" }
func (a *geminiAdapter) Model() string   { return a.model }
func (a *geminiAdapter) MaxContext() int { return 1_000_000 }

func (a *geminiAdapter) CalculateCost(inputTokens, outputTokens int) float64 {
	p := geminiPricingFor(a.model)
	return float64(inputTokens)*p.Input + float64(outputTokens)*p.Output
}

func (a *geminiAdapter) FormatTools(registry *tool.Registry) []ToolSchema {
	var decls []*genai.FunctionDeclaration
	for _, name := range registry.Names() {
		t, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  convertToGeminiSchema(t.GenerateSchema()),
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []ToolSchema{&genai.Tool{FunctionDeclarations: decls}}
}

func convertToGeminiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{Type: convertGeminiSchemaType(schema.Type), Description: schema.Description}
	if schema.Properties != nil {
		out.Properties = make(map[string]*genai.Schema)
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = convertToGeminiSchema(pair.Value)
		}
	}
	if len(schema.Required) > 0 {
		out.Required = schema.Required
	}
	if schema.Items != nil {
		out.Items = convertToGeminiSchema(schema.Items)
	}
	return out
}

func convertGeminiSchemaType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func (a *geminiAdapter) SendMessage(ctx context.Context, messages []Message, systemPrompt string, tools []ToolSchema) (Response, error) {
	if a.client == nil {
		return Response{Model: a.model, Error: &ResponseError{RawError: "gemini client failed to initialize"}}, nil
	}

	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "user":
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(m.Content)}, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(m.Content)}, genai.RoleModel))
		case "tool":
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					Name:     m.ToolCallID,
					Response: map[string]interface{}{"result": m.ToolResult},
				},
			}}, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(systemPrompt)}, genai.RoleUser)
	}
	for _, ts := range tools {
		if t, ok := ts.(*genai.Tool); ok {
			config.Tools = append(config.Tools, t)
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		msg := err.Error()
		return Response{Model: a.model, Error: &ResponseError{RawError: msg, Body: msg}}, nil
	}

	out := Response{Model: a.model}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			switch {
			case part.Text != "":
				text := part.Text
				out.Content = &text
			case part.FunctionCall != nil:
				args, _ := json.Marshal(part.FunctionCall.Args)
				var argMap map[string]interface{}
				_ = json.Unmarshal(args, &argMap)
				out.ToolCalls = append(out.ToolCalls, ToolCall{ID: uuid.NewString(), Name: part.FunctionCall.Name, Arguments: argMap})
			}
		}
	}

	if resp.UsageMetadata != nil {
		input := int(resp.UsageMetadata.PromptTokenCount)
		output := int(resp.UsageMetadata.CandidatesTokenCount)
		out.Tokens = Tokens{Input: &input, Output: &output}
		out.Spend = a.CalculateCost(input, output)
	}

	return out, nil
}
