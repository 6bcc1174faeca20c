// Package presenter provides consistent REPL output: colored
// success/error/warning/info lines and usage-stat summaries. Adapted
// from the teacher's pkg/presenter/presenter.go, trimmed to the
// fields the Tool-Calling Loop's Metrics struct actually reports
// (no cache read/write split — this spec has no prompt-caching
// concept) and renamed env vars NUAGENT_COLOR/NUAGENT_*.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Usage is the subset of toolloop.Metrics worth summarizing to a user
// at the end of a turn.
type Usage struct {
	TokensInput  int
	TokensOutput int
	Spend        float64
	ToolCalls    int
}

// Presenter is the REPL's output surface.
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Stats(usage Usage)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode selects whether ANSI color is emitted.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// TerminalPresenter implements Presenter for terminal output.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

func NewWithOptions(output, errorOutput io.Writer, mode ColorMode) *TerminalPresenter {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &TerminalPresenter{output: output, errorOutput: errorOutput}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("NUAGENT_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

func (p *TerminalPresenter) Stats(usage Usage) {
	if p.quiet {
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(p.output,
		"[Usage] in=%d out=%d tool_calls=%d spend=$%.4f\n",
		usage.TokensInput, usage.TokensOutput, usage.ToolCalls, usage.Spend)
}

func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) { p.quiet = quiet }
func (p *TerminalPresenter) IsQuiet() bool       { return p.quiet }

// ReadLine prompts on stdout and reads one line of input from stdin,
// trimmed of its trailing newline.
func ReadLine(prompt string) (string, bool) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
