package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/log"
	"wpdeploy/pkg/settings"
	"wpdeploy/pkg/task"
)

// ErrUnknownTask is returned when a task name is not registered and cannot be
// delegated to the framework binary.
var ErrUnknownTask = errors.New("task is not defined")

// RunnerFactory opens a runner for a host.
type RunnerFactory func(h *host.Host) (task.Runner, error)

// Env is everything a session needs from the outside world.
type Env struct {
	Hosts *host.Collection
	// Options carries task options given on the command line, such as --wp.
	Options map[string]string
	// FrameworkBin, when set, receives task names that are not registered
	// here: "<FrameworkBin> <task> <alias>" runs on localhost.
	FrameworkBin string
	DryRun       bool
	AssumeYes    bool
	Out          io.Writer
	In           io.Reader
	// NewRunner overrides how runners are opened; tests inject fakes here.
	NewRunner RunnerFactory
}

// Session runs tasks from a registry and owns the connections it opens.
type Session struct {
	reg      *Registry
	env      Env
	console  *Console
	runners  map[string]task.Runner
	prepared map[string]bool
	stack    []string
	local    *host.Host
}

// NewSession prepares a session. Call Close when done.
func (r *Registry) NewSession(env Env) *Session {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.In == nil {
		env.In = os.Stdin
	}
	if env.Hosts == nil {
		env.Hosts = host.NewCollection()
	}
	if env.NewRunner == nil {
		dryRun, out := env.DryRun, env.Out
		env.NewRunner = func(h *host.Host) (task.Runner, error) {
			return task.NewRunner(dryRun, h, out)
		}
	}
	return &Session{
		reg:      r,
		env:      env,
		console:  NewConsole(env.Out, env.In, env.AssumeYes),
		runners:  make(map[string]task.Runner),
		prepared: make(map[string]bool),
	}
}

// Console returns the session's console.
func (s *Session) Console() *Console {
	return s.console
}

// Run runs the named task on hosts. When the task fails and a failure task
// is registered for it, the failure task runs before the error is returned.
func (s *Session) Run(ctx context.Context, name string, hosts []*host.Host) error {
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts selected for task %s", name)
	}
	err := s.run(ctx, name, hosts)
	if err == nil {
		return nil
	}
	if failTask, ok := s.reg.fail[name]; ok {
		log.L().Warn("Task failed, running failure task", "task", name, "failure_task", failTask)
		if ferr := s.run(context.WithoutCancel(ctx), failTask, hosts); ferr != nil {
			log.L().Error("Failure task failed", "task", failTask, "error", ferr)
		}
	}
	return err
}

func (s *Session) run(ctx context.Context, name string, hosts []*host.Host) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if slices.Contains(s.stack, name) {
		return fmt.Errorf("task %s calls itself: %s", name, strings.Join(append(s.stack, name), " -> "))
	}
	s.stack = append(s.stack, name)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	for _, hook := range s.reg.before[name] {
		if err := s.run(ctx, hook, hosts); err != nil {
			return err
		}
	}

	t, ok := s.reg.tasks[name]
	switch {
	case !ok:
		if err := s.delegate(ctx, name, hosts); err != nil {
			return err
		}
	case t.IsGroup():
		for _, member := range t.group {
			if err := s.run(ctx, member, hosts); err != nil {
				return err
			}
		}
	default:
		targets := hosts
		if t.once {
			targets = hosts[:1]
		}
		for _, h := range targets {
			if err := s.call(ctx, t, h); err != nil {
				return err
			}
		}
	}

	for _, hook := range s.reg.after[name] {
		if err := s.run(ctx, hook, hosts); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) call(ctx context.Context, t *Task, h *host.Host) error {
	if !t.hidden {
		s.console.Task(t.name, h.Alias)
	}
	log.L().Debug("Running task", "task", t.name, "host", h.Alias)
	if err := t.fn(s.contextFor(ctx, h)); err != nil {
		return fmt.Errorf("task %s failed on %s: %w", t.name, h.Alias, err)
	}
	return nil
}

func (s *Session) delegate(ctx context.Context, name string, hosts []*host.Host) error {
	if s.env.FrameworkBin == "" {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	local, err := s.localhost()
	if err != nil {
		return err
	}
	r, err := s.runner(local)
	if err != nil {
		return err
	}
	for _, h := range hosts {
		s.console.Task(name, h.Alias)
		cmd := fmt.Sprintf("%s %s %s", s.env.FrameworkBin, task.Quote(name), task.Quote(h.Alias))
		if _, err := r.Run(ctx, cmd, task.WithStream(s.env.Out)); err != nil {
			return fmt.Errorf("task %s failed on %s: %w", name, h.Alias, err)
		}
	}
	return nil
}

// Invoke runs a task and its hooks on a single host from inside another task.
func (s *Session) Invoke(ctx context.Context, name string, h *host.Host) error {
	return s.run(ctx, name, []*host.Host{h})
}

func (s *Session) contextFor(ctx context.Context, h *host.Host) *Context {
	s.prepare(ctx, h)
	return &Context{ctx: ctx, Host: h, session: s}
}

// localhost returns the configured local host, or an ad hoc one when the
// configuration declares none.
func (s *Session) localhost() (*host.Host, error) {
	if h, err := s.env.Hosts.Localhost(); err == nil {
		return h, nil
	}
	if s.local == nil {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("localhost is not defined and the working directory is unknown: %w", err)
		}
		s.local = &host.Host{
			Alias:      "localhost",
			Hostname:   "localhost",
			DeployPath: cwd,
			Local:      true,
			Config:     settings.New(s.reg.global),
		}
	}
	return s.local, nil
}

func (s *Session) runner(h *host.Host) (task.Runner, error) {
	if r, ok := s.runners[h.Alias]; ok {
		return r, nil
	}
	r, err := s.env.NewRunner(h)
	if err != nil {
		return nil, fmt.Errorf("could not open runner for %s: %w", h.Alias, err)
	}
	s.runners[h.Alias] = r
	return r, nil
}

// Close closes every runner the session opened.
func (s *Session) Close() error {
	var errs []error
	for alias, r := range s.runners {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", alias, err))
		}
	}
	s.runners = make(map[string]task.Runner)
	return errors.Join(errs...)
}
