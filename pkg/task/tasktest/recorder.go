// Package tasktest provides a scripted task.Runner for tests.
package tasktest

import (
	"context"
	"strings"
	"sync"

	"wpdeploy/pkg/task"
)

type response struct {
	contains string
	output   string
	err      error
}

// Recorder records every command and answers from scripted responses. The
// first response whose substring occurs in the command wins. Unmatched binary
// lookups (task.Which) answer with the bare binary name; other unmatched
// commands succeed with empty output.
type Recorder struct {
	Host string

	mu        sync.Mutex
	commands  []string
	responses []response
	closed    bool
}

// NewRecorder creates a recorder for the named host.
func NewRecorder(host string) *Recorder {
	return &Recorder{Host: host}
}

// On scripts the output for commands containing substr.
func (r *Recorder) On(substr, output string) *Recorder {
	return r.OnError(substr, output, nil)
}

// OnError scripts output and an error for commands containing substr.
func (r *Recorder) OnError(substr, output string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{contains: substr, output: output, err: err})
	return r
}

// Run implements task.Runner.
func (r *Recorder) Run(_ context.Context, cmd string, _ ...task.Option) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	for _, resp := range r.responses {
		if strings.Contains(cmd, resp.contains) {
			return resp.output, resp.err
		}
	}
	if strings.HasPrefix(cmd, "command -v ") {
		return strings.Trim(strings.Fields(cmd)[2], "'"), nil
	}
	return "", nil
}

// Close implements task.Runner.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Commands returns the commands run so far.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// Ran reports whether any command contained substr.
func (r *Recorder) Ran(substr string) bool {
	for _, c := range r.Commands() {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
