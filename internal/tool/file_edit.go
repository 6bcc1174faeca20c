package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// FileEditTool replaces an exact substring occurrence in a file.
// Confined write (§4.2) — grounded on the teacher's
// pkg/tools/file_edit.go, trimmed to one old_text/new_text pair per
// call: exactly one occurrence by default, every occurrence with
// replace_all.
type FileEditTool struct{}

func NewFileEditTool() *FileEditTool { return &FileEditTool{} }

type FileEditInput struct {
	FilePath   string `json:"file_path" jsonschema:"description=The path of the file to edit"`
	OldText    string `json:"old_text" jsonschema:"description=The exact text to replace"`
	NewText    string `json:"new_text" jsonschema:"description=The replacement text"`
	ReplaceAll bool   `json:"replace_all" jsonschema:"description=Replace every occurrence instead of requiring exactly one,default=false"`
}

func (t *FileEditTool) Name() string                      { return "file_edit" }
func (t *FileEditTool) GenerateSchema() *jsonschema.Schema { return GenerateSchema[FileEditInput]() }

func (t *FileEditTool) Description() string {
	return `Replaces an exact occurrence of old_text with new_text in a file.

- file_path: the path of the file to edit
- old_text: must match file contents exactly, including whitespace
- new_text: the replacement
- replace_all: if false (default), old_text must occur exactly once

Read the file first so old_text matches exactly.`
}

func (t *FileEditTool) ValidateInput(state State, parameters string) error {
	in := &FileEditInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if in.FilePath == "" {
		return errors.New("file_path is required")
	}
	if in.OldText == "" {
		return errors.New("old_text is required")
	}
	if in.OldText == in.NewText {
		return errors.New("old_text and new_text must differ")
	}
	return nil
}

func (t *FileEditTool) Classification() Classification {
	return Classification{OperationType: OpWrite, Scope: ScopeConfined}
}

func (t *FileEditTool) AffectedPaths(state State, parameters string) []string {
	in := &FileEditInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil || in.FilePath == "" {
		return []string{}
	}
	return []string{NormalizePath(state.WorkingDir(), in.FilePath)}
}

func (t *FileEditTool) Execute(ctx context.Context, state State, parameters string) Result {
	in := &FileEditInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return ErrorResult("file_edit", err)
	}
	path := NormalizePath(state.WorkingDir(), in.FilePath)

	state.LockFile(path)
	defer state.UnlockFile(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return BaseResult{ToolName: "file_edit", Error: fmt.Sprintf("failed to read file: %s", err)}
	}
	content := string(raw)

	count := strings.Count(content, in.OldText)
	if count == 0 {
		return BaseResult{ToolName: "file_edit", Error: "old_text not found in file"}
	}
	if !in.ReplaceAll && count > 1 {
		return BaseResult{ToolName: "file_edit", Error: fmt.Sprintf("old_text occurs %d times; set replace_all=true or narrow old_text to a unique match", count)}
	}

	var updated string
	if in.ReplaceAll {
		updated = strings.ReplaceAll(content, in.OldText, in.NewText)
	} else {
		updated = strings.Replace(content, in.OldText, in.NewText, 1)
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return BaseResult{ToolName: "file_edit", Error: fmt.Sprintf("failed to write file: %s", err)}
	}

	return BaseResult{ToolName: "file_edit", Result: fmt.Sprintf("file %s edited successfully (%d replacement(s))", path, count)}
}
