package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// FileWriteTool overwrites (or creates) a file. Confined write (§4.2):
// grounded on the teacher's pkg/tools/file_write.go, with the
// last-modified staleness check replaced by State's per-file lock
// (§4.4's re-entrancy requirement), since AffectedPaths already lets
// the Dependency Scheduler keep two writers off the same path and the
// lock only needs to catch a scheduling mistake, not race the user's editor.
type FileWriteTool struct{}

func NewFileWriteTool() *FileWriteTool { return &FileWriteTool{} }

type FileWriteInput struct {
	FilePath string `json:"file_path" jsonschema:"description=The path of the file to write"`
	Text     string `json:"text" jsonschema:"description=The text to write to the file"`
}

func (t *FileWriteTool) Name() string                      { return "file_write" }
func (t *FileWriteTool) GenerateSchema() *jsonschema.Schema { return GenerateSchema[FileWriteInput]() }

func (t *FileWriteTool) Description() string {
	return `Writes a file with the given text, overwriting it if it already exists.

- file_path: the path of the file to write
- text: the full text to write; must not be empty (use bash's touch for an empty file)

The parent directory must already exist.`
}

func (t *FileWriteTool) ValidateInput(state State, parameters string) error {
	in := &FileWriteInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if in.FilePath == "" {
		return errors.New("file_path is required")
	}
	if in.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func (t *FileWriteTool) Classification() Classification {
	return Classification{OperationType: OpWrite, Scope: ScopeConfined}
}

func (t *FileWriteTool) AffectedPaths(state State, parameters string) []string {
	in := &FileWriteInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil || in.FilePath == "" {
		return []string{}
	}
	return []string{NormalizePath(state.WorkingDir(), in.FilePath)}
}

func (t *FileWriteTool) Execute(ctx context.Context, state State, parameters string) Result {
	in := &FileWriteInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return ErrorResult("file_write", err)
	}
	path := NormalizePath(state.WorkingDir(), in.FilePath)

	state.LockFile(path)
	defer state.UnlockFile(path)

	if err := os.WriteFile(path, []byte(in.Text), 0o644); err != nil {
		return BaseResult{ToolName: "file_write", Error: fmt.Sprintf("failed to write file: %s", err)}
	}

	return BaseResult{ToolName: "file_write", Result: fmt.Sprintf("file %s written successfully (%d bytes)", path, len(in.Text))}
}
