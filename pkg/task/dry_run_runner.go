package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// DryRunRunner is a mock runner for --dry-run mode.
type DryRunRunner struct {
	Host string
	Out  io.Writer
}

func (r *DryRunRunner) Run(ctx context.Context, cmd string, opts ...Option) (string, error) {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "[DRY-RUN] Would run command on %s: %s\n", r.Host, cmd)

	// Predictable answers for the probes tasks branch on, so the rest of
	// the task is still printed.
	switch {
	case cmd == "hostname":
		return fmt.Sprintf("dry-run-host-of-%s", r.Host), nil
	case strings.Contains(cmd, "echo +true"):
		return "+true", nil
	case strings.HasPrefix(cmd, "command -v "):
		name := strings.Trim(strings.Fields(cmd)[2], "'")
		return name, nil
	}
	return "", nil
}

func (r *DryRunRunner) Close() error {
	return nil
}
