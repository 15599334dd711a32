// Package recipetest wires a registry, hosts and recording runners together
// so task behavior can be asserted on the commands it issues.
package recipetest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/settings"
	"wpdeploy/pkg/task"
	"wpdeploy/pkg/task/tasktest"
)

// Harness is a disposable deployment environment.
type Harness struct {
	T        testing.TB
	Global   *settings.Store
	Registry *recipe.Registry
	Out      bytes.Buffer
	In       strings.Reader
	Options  map[string]string
	Yes      bool
	DryRun   bool

	// FrameworkBin enables delegation of unregistered tasks to localhost.
	FrameworkBin string

	hosts   []*host.Host
	runners map[string]*tasktest.Recorder
}

// New creates a harness with an empty registry.
func New(t testing.TB) *Harness {
	return NewWithGlobal(t, settings.New(nil))
}

// NewWithGlobal creates a harness over global, as if global had been loaded
// from a configuration file.
func NewWithGlobal(t testing.TB, global *settings.Store) *Harness {
	return &Harness{
		T:        t,
		Global:   global,
		Registry: recipe.NewRegistry(global),
		Options:  make(map[string]string),
		runners:  make(map[string]*tasktest.Recorder),
	}
}

// Remote adds a remote host deploying to /var/www/<alias> on
// <alias>.example.com.
func (h *Harness) Remote(alias string, kv map[string]any) *host.Host {
	hst := &host.Host{
		Alias:      alias,
		Hostname:   alias + ".example.com",
		RemoteUser: "deploy",
		DeployPath: "/var/www/" + alias,
		Config:     settings.New(h.Global),
	}
	for k, v := range kv {
		hst.Config.Set(k, v)
	}
	h.hosts = append(h.hosts, hst)
	return hst
}

// Local adds the local pseudo-host deploying to /home/dev/site.
func (h *Harness) Local(kv map[string]any) *host.Host {
	hst := &host.Host{
		Alias:      "localhost",
		Hostname:   "localhost",
		DeployPath: "/home/dev/site",
		Local:      true,
		Config:     settings.New(h.Global),
	}
	for k, v := range kv {
		hst.Config.Set(k, v)
	}
	h.hosts = append(h.hosts, hst)
	return hst
}

// Runner returns the recorder standing in for alias's connection.
func (h *Harness) Runner(alias string) *tasktest.Recorder {
	r, ok := h.runners[alias]
	if !ok {
		r = tasktest.NewRecorder(alias)
		h.runners[alias] = r
	}
	return r
}

// Hosts returns the harness hosts as a collection.
func (h *Harness) Hosts() *host.Collection {
	return host.NewCollection(h.hosts...)
}

// Session opens a session over the harness hosts.
func (h *Harness) Session() *recipe.Session {
	return h.Registry.NewSession(recipe.Env{
		Hosts:        host.NewCollection(h.hosts...),
		Options:      h.Options,
		FrameworkBin: h.FrameworkBin,
		AssumeYes:    h.Yes,
		DryRun:       h.DryRun,
		Out:          &h.Out,
		In:           &h.In,
		NewRunner: func(hst *host.Host) (task.Runner, error) {
			return h.Runner(hst.Alias), nil
		},
	})
}

// Run runs name on the hosts with the given aliases.
func (h *Harness) Run(name string, aliases ...string) error {
	h.T.Helper()
	s := h.Session()
	defer s.Close()
	var targets []*host.Host
	for _, alias := range aliases {
		for _, hst := range h.hosts {
			if hst.Alias == alias {
				targets = append(targets, hst)
			}
		}
	}
	return s.Run(context.Background(), name, targets)
}
