package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// BashTool runs a shell command. Unconfined (§4.2): its effects cannot
// be bounded to a known path set, so it acts as a scheduling barrier —
// grounded on the teacher's pkg/tools/bash.go, trimmed to the
// foreground case (the background-process bookkeeping in
// BasicState.AddBackgroundProcess has no counterpart in SPEC_FULL.md).
type BashTool struct{}

func NewBashTool() *BashTool { return &BashTool{} }

type BashInput struct {
	Description string `json:"description" jsonschema:"description=A short description of the command"`
	Command     string `json:"command" jsonschema:"description=The shell command to run"`
	Timeout     int    `json:"timeout" jsonschema:"description=Timeout in seconds (1-300),default=30"`
}

func (b *BashTool) Name() string        { return "bash" }
func (b *BashTool) GenerateSchema() *jsonschema.Schema { return GenerateSchema[BashInput]() }

func (b *BashTool) Description() string {
	return `Executes a shell command with a tool-local timeout.

* command and description are required.
* timeout must be between 1 and 300 seconds.
* Commands must not be interactive; output is captured and returned, not streamed.
* Prefer file_read/file_edit over cat/sed for file manipulation.`
}

func (b *BashTool) ValidateInput(state State, parameters string) error {
	in := &BashInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return err
	}
	if strings.TrimSpace(in.Command) == "" {
		return errors.New("command is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errors.New("description is required")
	}
	if in.Timeout == 0 {
		in.Timeout = 30
	}
	if in.Timeout < 1 || in.Timeout > 300 {
		return errors.New("timeout must be between 1 and 300 seconds")
	}
	return nil
}

func (b *BashTool) Classification() Classification {
	return Classification{OperationType: OpWrite, Scope: ScopeUnconfined}
}

func (b *BashTool) AffectedPaths(state State, parameters string) []string {
	return nil
}

func (b *BashTool) Execute(ctx context.Context, state State, parameters string) Result {
	in := &BashInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return ErrorResult("bash", err)
	}
	if in.Timeout == 0 {
		in.Timeout = 30
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(in.Timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", in.Command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return BaseResult{ToolName: "bash", Result: string(output), Error: fmt.Sprintf("command timed out after %ds", in.Timeout)}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return BaseResult{ToolName: "bash", Result: string(output), Error: fmt.Sprintf("command exited with status %d", exitErr.ExitCode())}
		}
		return BaseResult{ToolName: "bash", Result: string(output), Error: err.Error()}
	}
	return BaseResult{ToolName: "bash", Result: string(output)}
}
