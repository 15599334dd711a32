// Package task executes shell commands on deployment hosts. A Runner hides
// whether the command runs as a local process, over SSH, or is only printed
// in dry-run mode.
package task

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"wpdeploy/pkg/host"
)

// SecretPlaceholder is replaced with the value given to WithSecret right
// before execution. Logs and errors only ever show the placeholder.
const SecretPlaceholder = "%secret%"

// Runner runs shell commands on a single host.
type Runner interface {
	// Run executes cmd and returns its combined output with trailing
	// newlines removed.
	Run(ctx context.Context, cmd string, opts ...Option) (string, error)
	Close() error
}

// Options tune a single Run call.
type Options struct {
	Timeout time.Duration
	Stream  io.Writer
	Secret  string
}

// Option mutates Options.
type Option func(*Options)

// WithTimeout bounds the command's runtime. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithStream copies output to w while the command runs.
func WithStream(w io.Writer) Option {
	return func(o *Options) { o.Stream = w }
}

// WithSecret sets the value substituted for SecretPlaceholder.
func WithSecret(secret string) Option {
	return func(o *Options) { o.Secret = secret }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) expand(cmd string) string {
	if o.Secret == "" {
		return cmd
	}
	return strings.ReplaceAll(cmd, SecretPlaceholder, o.Secret)
}

func (o Options) redact(s string) string {
	if o.Secret == "" {
		return s
	}
	return strings.ReplaceAll(s, o.Secret, SecretPlaceholder)
}

func (o Options) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// RunError reports a command that exited non-zero or could not be started.
type RunError struct {
	Host     string
	Command  string
	Output   string
	ExitCode int
	Err      error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("command %q failed on %s", e.Command, e.Host)
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	if e.Err != nil && e.ExitCode <= 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func trimOutput(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// NewRunner returns the runner matching h: a dry-run printer, a local process
// runner or an SSH connection.
func NewRunner(dryRun bool, h *host.Host, out io.Writer) (Runner, error) {
	if dryRun {
		return &DryRunRunner{Host: h.Alias, Out: out}, nil
	}
	if h.Local {
		return NewLocalRunner(h.Alias), nil
	}
	return NewSSHRunner(SSHConfigFromHost(h))
}
