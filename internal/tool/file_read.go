package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// maxReadBytes bounds file_read output, matching the teacher's 100KB cap.
const maxReadBytes = 100_000

// FileReadTool is a confined, read-only tool (§4.2) — grounded on the
// teacher's pkg/tools/file_read.go, trimmed of the offset edge-case
// commentary but keeping the line-numbered rendering and byte cap.
type FileReadTool struct{}

func NewFileReadTool() *FileReadTool { return &FileReadTool{} }

type FileReadInput struct {
	FilePath string `json:"file_path" jsonschema:"description=The path of the file to read"`
	Offset   int    `json:"offset" jsonschema:"description=The 1-indexed line number to start reading from,default=1,minimum=1"`
}

func (t *FileReadTool) Name() string                        { return "file_read" }
func (t *FileReadTool) GenerateSchema() *jsonschema.Schema   { return GenerateSchema[FileReadInput]() }

func (t *FileReadTool) Description() string {
	return `Reads a file and returns its contents with 1-indexed line numbers.

- file_path: the path of the file to read (relative paths resolve against the working directory)
- offset: the line to start from (default 1)

Output is capped at 100,000 bytes; longer files are truncated with a marker.`
}

func (t *FileReadTool) ValidateInput(state State, parameters string) error {
	in := &FileReadInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return err
	}
	if in.FilePath == "" {
		return errors.New("file_path is required")
	}
	if in.Offset < 0 {
		return errors.New("offset must be a positive integer")
	}
	return nil
}

func (t *FileReadTool) Classification() Classification {
	return Classification{OperationType: OpRead, Scope: ScopeConfined}
}

func (t *FileReadTool) AffectedPaths(state State, parameters string) []string {
	in := &FileReadInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil || in.FilePath == "" {
		return []string{}
	}
	return []string{NormalizePath(state.WorkingDir(), in.FilePath)}
}

func (t *FileReadTool) Execute(ctx context.Context, state State, parameters string) Result {
	in := &FileReadInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return ErrorResult("file_read", err)
	}
	path := NormalizePath(state.WorkingDir(), in.FilePath)

	f, err := os.Open(path)
	if err != nil {
		return BaseResult{ToolName: "file_read", Error: fmt.Sprintf("failed to open file: %s", err)}
	}
	defer f.Close()

	offset := in.Offset
	if offset == 0 {
		offset = 1
	}

	scanner := bufio.NewScanner(f)
	lineNum := 1
	for lineNum < offset && scanner.Scan() {
		lineNum++
	}
	if lineNum < offset {
		return BaseResult{ToolName: "file_read", Error: fmt.Sprintf("file has only %d lines, less than requested offset %d", lineNum-1, offset)}
	}

	var sb strings.Builder
	bytesRead := 0
	line := offset
	for bytesRead < maxReadBytes && scanner.Scan() {
		text := scanner.Text()
		fmt.Fprintf(&sb, "%6d: %s\n", line, text)
		bytesRead += len(text)
		line++
	}
	if bytesRead >= maxReadBytes {
		sb.WriteString(fmt.Sprintf("... [truncated at %d bytes]\n", maxReadBytes))
	}
	if err := scanner.Err(); err != nil {
		return BaseResult{ToolName: "file_read", Error: fmt.Sprintf("error reading file: %s", err)}
	}

	return BaseResult{ToolName: "file_read", Result: sb.String()}
}
