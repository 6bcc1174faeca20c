// Package tool implements the Tool Registry & Classification (§4.2):
// name -> tool lookup, the provider-schema view, and the
// (op_type, scope) + affected-path extraction the Dependency Scheduler
// consumes. Grounded on the teacher's pkg/tools/tools.go registry and
// pkg/types/tools/types.go Tool interface, extended with the
// classification methods the teacher's interface never needed because
// it always ran tools serially.
package tool

import (
	"context"

	"github.com/invopop/jsonschema"
)

// OperationType is whether a tool call reads or writes durable/external state (§4.2, §4.3).
type OperationType string

const (
	OpRead  OperationType = "read"
	OpWrite OperationType = "write"
)

// Scope is whether a tool's effect can be bounded to a known set of
// paths (confined) or not (unconfined, e.g. shell execution) — §4.2.
type Scope string

const (
	ScopeConfined   Scope = "confined"
	ScopeUnconfined Scope = "unconfined"
)

// Classification is what the Dependency Scheduler needs per call (§4.3).
type Classification struct {
	OperationType OperationType
	Scope         Scope
}

// Tool is the §6.3 tool contract, generalizing the teacher's
// pkg/types/tools.Tool with the classification and path-extraction
// methods the Dependency Scheduler requires.
type Tool interface {
	Name() string
	Description() string
	GenerateSchema() *jsonschema.Schema
	ValidateInput(state State, parameters string) error
	Execute(ctx context.Context, state State, parameters string) Result
	Classification() Classification
	// AffectedPaths returns the absolute paths arguments reference, or
	// nil (the null sentinel, distinct from an empty non-nil slice)
	// for unconfined or non-filesystem tools (§4.2).
	AffectedPaths(state State, parameters string) []string
}

// AvailableTool is implemented by tools that can be conditionally
// disabled (§6.3's optional available()).
type AvailableTool interface {
	Available(state State) bool
}

// Result is the §6.3 tool contract's execution outcome.
type Result interface {
	AssistantFacing() string
	IsError() bool
	GetError() string
	GetResult() string
	StructuredData() StructuredResult
}

// StructuredResult is the JSON-transportable shape of a Result,
// persisted as Message.tool_result (§3) and rendered to the provider.
type StructuredResult struct {
	ToolName string      `json:"toolName"`
	Success  bool        `json:"success"`
	Error    string      `json:"error,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// BaseResult is the common Result implementation for simple tools.
type BaseResult struct {
	ToolName string
	Result   string
	Error    string
	Data     interface{}
}

func (r BaseResult) AssistantFacing() string {
	if r.Error != "" {
		return "<error>\n" + r.Error + "\n</error>"
	}
	return r.Result
}

func (r BaseResult) IsError() bool      { return r.Error != "" }
func (r BaseResult) GetError() string   { return r.Error }
func (r BaseResult) GetResult() string  { return r.Result }
func (r BaseResult) StructuredData() StructuredResult {
	return StructuredResult{ToolName: r.ToolName, Success: r.Error == "", Error: r.Error, Data: r.Data}
}

// ErrorResult builds a Result carrying an error, the shape
// ExecuteTool/the Parallel Executor fall back to when a tool panics or
// returns an error instead of a Result (§4.4, §6.3).
func ErrorResult(toolName string, err error) Result {
	return BaseResult{ToolName: toolName, Error: err.Error()}
}

// GenerateSchema reflects T into a JSON Schema for provider tool
// definitions, matching the teacher's tools.GenerateSchema[T]() helper.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
