package recipe

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console renders task progress for humans.
type Console struct {
	out       io.Writer
	in        *bufio.Reader
	assumeYes bool

	task    lipgloss.Style
	host    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	success lipgloss.Style
}

// NewConsole creates a console writing to out and reading answers from in.
// Colors are only emitted when out is a terminal. An in that is already a
// *bufio.Reader is read directly, keeping input buffered by earlier prompts.
func NewConsole(out io.Writer, in io.Reader, assumeYes bool) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:       out,
		in:        bufio.NewReader(in),
		assumeYes: assumeYes,
		task:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		host:      r.NewStyle().Foreground(lipgloss.Color("10")),
		warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		err:       r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		success:   r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
}

// Task announces a task starting on a host.
func (c *Console) Task(name, alias string) {
	fmt.Fprintf(c.out, "%s %s %s\n", c.task.Render("task"), name, c.host.Render("["+alias+"]"))
}

// Writeln prints msg as is.
func (c *Console) Writeln(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Warning prints msg as a warning.
func (c *Console) Warning(msg string) {
	fmt.Fprintln(c.out, c.warning.Render("[warning] "+msg))
}

// Error prints msg as an error.
func (c *Console) Error(msg string) {
	fmt.Fprintln(c.out, c.err.Render("[error] "+msg))
}

// Success prints msg as a success line.
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.out, c.success.Render(msg))
}

// Confirm prompts for a yes/no answer. Anything but y/yes is a no.
func (c *Console) Confirm(prompt string) (bool, error) {
	if c.assumeYes {
		fmt.Fprintf(c.out, "'%s' prompt skipped due to --yes flag.\n", prompt)
		return true, nil
	}
	fmt.Fprintf(c.out, "%s [y/N] ", c.warning.Render(prompt))
	input, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
