package recipe

import (
	"context"
	"fmt"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/settings"
	"wpdeploy/pkg/task"
)

// Context is handed to every task callback. It binds the task to the host it
// runs on and exposes the run primitives.
type Context struct {
	ctx     context.Context
	Host    *host.Host
	session *Session
}

// Ctx returns the context.Context of the current run.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Hosts returns every configured host.
func (c *Context) Hosts() *host.Collection {
	return c.session.env.Hosts
}

// Config returns the current host's settings.
func (c *Context) Config() *settings.Store {
	return c.Host.Config
}

// Console returns the output console.
func (c *Context) Console() *Console {
	return c.session.console
}

// DryRun reports whether commands are only printed.
func (c *Context) DryRun() bool {
	return c.session.env.DryRun
}

// Option returns a command line task option, or "" when absent.
func (c *Context) Option(name string) string {
	return c.session.env.Options[name]
}

// RealTimeOutput streams a command's output to the console as it runs.
func (c *Context) RealTimeOutput() task.Option {
	return task.WithStream(c.session.env.Out)
}

// Parse expands {{key}} placeholders with the current host's settings.
func (c *Context) Parse(tmpl string) (string, error) {
	return c.Host.Config.Parse(tmpl)
}

// Run runs cmd on the current host.
func (c *Context) Run(cmd string, opts ...task.Option) (string, error) {
	return c.RunOn(c.Host, cmd, opts...)
}

// RunLocally runs cmd on localhost. Placeholders are expanded with the
// current host's settings.
func (c *Context) RunLocally(cmd string, opts ...task.Option) (string, error) {
	parsed, err := c.Parse(cmd)
	if err != nil {
		return "", err
	}
	local, err := c.session.localhost()
	if err != nil {
		return "", err
	}
	return c.exec(local, parsed, opts)
}

// RunOn runs cmd on h, locally when h is localhost and over SSH otherwise.
// Placeholders are expanded with h's settings.
func (c *Context) RunOn(h *host.Host, cmd string, opts ...task.Option) (string, error) {
	c.session.prepare(c.ctx, h)
	parsed, err := h.Config.Parse(cmd)
	if err != nil {
		return "", err
	}
	return c.exec(h, parsed, opts)
}

func (c *Context) exec(h *host.Host, cmd string, opts []task.Option) (string, error) {
	r, err := c.session.runner(h)
	if err != nil {
		return "", err
	}
	return r.Run(c.ctx, cmd, opts...)
}

// Test evaluates a shell condition on the current host.
func (c *Context) Test(condition string) (bool, error) {
	return c.TestOn(c.Host, condition)
}

// TestOn evaluates a shell condition on h.
func (c *Context) TestOn(h *host.Host, condition string) (bool, error) {
	c.session.prepare(c.ctx, h)
	parsed, err := h.Config.Parse(condition)
	if err != nil {
		return false, err
	}
	r, err := c.session.runner(h)
	if err != nil {
		return false, err
	}
	return task.Test(c.ctx, r, parsed)
}

// Which locates a binary on the current host.
func (c *Context) Which(name string) (string, error) {
	return c.WhichContextual(name, c.Host)
}

// WhichLocal locates a binary on localhost.
func (c *Context) WhichLocal(name string) (string, error) {
	local, err := c.session.localhost()
	if err != nil {
		return "", err
	}
	return c.WhichContextual(name, local)
}

// WhichContextual locates a binary on h.
func (c *Context) WhichContextual(name string, h *host.Host) (string, error) {
	r, err := c.session.runner(h)
	if err != nil {
		return "", err
	}
	return task.Which(c.ctx, r, name)
}

// Localhost returns the local pseudo-host.
func (c *Context) Localhost() (*host.Host, error) {
	return c.session.localhost()
}

// Invoke runs another task, with its hooks, on the current host.
func (c *Context) Invoke(name string) error {
	return c.session.Invoke(c.ctx, name, c.Host)
}

// Confirm asks a yes/no question; --yes answers it.
func (c *Context) Confirm(prompt string) (bool, error) {
	return c.session.console.Confirm(prompt)
}

// Warning prints a highlighted warning line.
func (c *Context) Warning(format string, args ...any) {
	c.session.console.Warning(fmt.Sprintf(format, args...))
}

// Writeln prints a plain line.
func (c *Context) Writeln(format string, args ...any) {
	c.session.console.Writeln(fmt.Sprintf(format, args...))
}

// Error prints a highlighted error line without failing the task.
func (c *Context) Error(format string, args ...any) {
	c.session.console.Error(fmt.Sprintf(format, args...))
}
