package task

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"wpdeploy/pkg/log"
)

// waitDelay bounds how long Run waits for output pipes after the shell is
// killed. Children of a pipeline can outlive the shell and keep them open.
const waitDelay = 2 * time.Second

// LocalRunner runs commands as child processes of wpdeploy.
type LocalRunner struct {
	host  string
	shell string
	dir   string
}

// NewLocalRunner creates a runner that executes through bash.
func NewLocalRunner(hostAlias string) *LocalRunner {
	return &LocalRunner{host: hostAlias, shell: "bash"}
}

// WithDir sets the working directory commands start in.
func (r *LocalRunner) WithDir(dir string) *LocalRunner {
	r.dir = dir
	return r
}

// Run executes cmd locally.
func (r *LocalRunner) Run(ctx context.Context, cmd string, opts ...Option) (string, error) {
	o := buildOptions(opts)
	ctx, cancel := o.context(ctx)
	defer cancel()

	log.L().Debug("Running locally", "host", r.host, "command", cmd)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if o.Stream != nil {
		out = io.MultiWriter(&buf, o.Stream)
	}

	c := exec.CommandContext(ctx, r.shell, "-c", o.expand(cmd))
	c.Dir = r.dir
	c.Stdout = out
	c.Stderr = out
	c.WaitDelay = waitDelay

	err := c.Run()
	output := o.redact(buf.String())
	if err != nil {
		runErr := &RunError{Host: r.host, Command: cmd, Output: output, ExitCode: -1, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			runErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			runErr.Err = ctx.Err()
		}
		return trimOutput(output), runErr
	}
	return trimOutput(output), nil
}

// Close is a no-op for local processes.
func (r *LocalRunner) Close() error {
	return nil
}
