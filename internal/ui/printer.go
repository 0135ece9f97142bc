// Package ui renders terminal output: status lines, results, markdown,
// diffs, and interactive confirmation prompts. The orchestration core
// calls out to this package and depends on nothing here except the
// confirmation boolean.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
)

// Printer writes styled output to a terminal.
type Printer struct {
	out io.Writer
	in  *bufio.Reader
}

// NewPrinter creates a Printer writing to out and reading confirmations
// from in.
func NewPrinter(out io.Writer, in io.Reader) *Printer {
	return &Printer{
		out: out,
		in:  bufio.NewReader(in),
	}
}

// Info prints an informational status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, infoStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, warnStyle.Render("warning: "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.out, errorStyle.Render("error: "+fmt.Sprintf(format, args...)))
}

// Result prints a final result block.
func (p *Printer) Result(text string) {
	fmt.Fprintln(p.out, resultStyle.Render(text))
}

// ToolCall announces a tool invocation.
func (p *Printer) ToolCall(name, args string) {
	fmt.Fprintln(p.out, toolStyle.Render(fmt.Sprintf("→ %s %s", name, args)))
}

// Raw writes text without styling. Used for streamed model output.
func (p *Printer) Raw(text string) {
	fmt.Fprint(p.out, text)
}

// Confirm asks a yes/no question and returns the answer. Anything other
// than "y" or "yes" (case-insensitive) is a no.
func (p *Printer) Confirm(prompt string) bool {
	fmt.Fprint(p.out, promptStyle.Render(prompt+" [y/N] "))
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
