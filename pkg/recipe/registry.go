// Package recipe registers named deployment tasks and runs them against hosts.
//
// Tasks are either callbacks or groups (ordered lists of other task names).
// Any task can have before and after hooks attached by name. Running a task
// expands groups depth first; each callback runs on every selected host before
// the next task starts. There is no dependency graph and no parallelism.
package recipe

import (
	"fmt"
	"sort"

	"wpdeploy/pkg/settings"
)

// Func is the body of a callback task.
type Func func(c *Context) error

// ValueFunc computes a per-host lazy setting.
type ValueFunc func(c *Context) (any, error)

// Task is a registered unit of work.
type Task struct {
	name   string
	desc   string
	hidden bool
	once   bool
	fn     Func
	group  []string
}

// Desc sets the description shown by "wpdeploy list".
func (t *Task) Desc(desc string) *Task {
	t.desc = desc
	return t
}

// Hidden hides the task from listings.
func (t *Task) Hidden() *Task {
	t.hidden = true
	return t
}

// Once runs the task on the first selected host only.
func (t *Task) Once() *Task {
	t.once = true
	return t
}

func (t *Task) Name() string        { return t.name }
func (t *Task) Description() string { return t.desc }
func (t *Task) IsHidden() bool      { return t.hidden }
func (t *Task) IsOnce() bool        { return t.once }

// IsGroup reports whether the task is a list of other tasks.
func (t *Task) IsGroup() bool { return t.fn == nil }

// Members returns the task names of a group.
func (t *Task) Members() []string { return append([]string(nil), t.group...) }

// Registry holds tasks, hooks and global settings.
type Registry struct {
	tasks  map[string]*Task
	before map[string][]string
	after  map[string][]string
	fail   map[string]string
	values map[string]ValueFunc
	global *settings.Store
	pinned map[string]bool
	anon   int
}

// NewRegistry creates an empty registry backed by the global settings store.
// Keys already present in global are treated as user configuration and are
// never overwritten by recipe defaults.
func NewRegistry(global *settings.Store) *Registry {
	if global == nil {
		global = settings.New(nil)
	}
	pinned := make(map[string]bool)
	for _, k := range global.Keys() {
		pinned[k] = true
	}
	return &Registry{
		pinned: pinned,
		tasks:  make(map[string]*Task),
		before: make(map[string][]string),
		after:  make(map[string][]string),
		fail:   make(map[string]string),
		values: make(map[string]ValueFunc),
		global: global,
	}
}

// Settings returns the global settings store.
func (r *Registry) Settings() *settings.Store {
	return r.global
}

// Set sets a global default. Later calls override earlier ones; values
// loaded from configuration always win.
func (r *Registry) Set(key string, value any) {
	if r.pinned[key] {
		return
	}
	r.global.Set(key, value)
}

// Add appends to a global list default.
func (r *Registry) Add(key string, values ...string) {
	r.global.Add(key, values...)
}

// SetFunc registers a lazy default evaluated per host, unless the key is
// configured explicitly.
func (r *Registry) SetFunc(key string, fn ValueFunc) {
	r.values[key] = fn
}

// Task registers a callback task, replacing any task of the same name.
func (r *Registry) Task(name string, fn Func) *Task {
	t := &Task{name: name, fn: fn}
	r.tasks[name] = t
	return t
}

// Group registers a task that runs members in order.
func (r *Registry) Group(name string, members ...string) *Task {
	t := &Task{name: name, group: members}
	r.tasks[name] = t
	return t
}

// Lookup returns a registered task.
func (r *Registry) Lookup(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Tasks returns all registered tasks sorted by name.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Before runs the named tasks before target.
func (r *Registry) Before(target string, names ...string) {
	r.before[target] = append(r.before[target], names...)
}

// After runs the named tasks after target.
func (r *Registry) After(target string, names ...string) {
	r.after[target] = append(r.after[target], names...)
}

// BeforeFunc registers fn as a hidden task hooked before target.
func (r *Registry) BeforeFunc(target string, fn Func) *Task {
	t := r.anonymous("before", target, fn)
	r.Before(target, t.name)
	return t
}

// AfterFunc registers fn as a hidden task hooked after target.
func (r *Registry) AfterFunc(target string, fn Func) *Task {
	t := r.anonymous("after", target, fn)
	r.After(target, t.name)
	return t
}

// Fail runs failTask when target fails.
func (r *Registry) Fail(target, failTask string) {
	r.fail[target] = failTask
}

// Hooks returns the before and after hooks of target.
func (r *Registry) Hooks(target string) (before, after []string) {
	return append([]string(nil), r.before[target]...), append([]string(nil), r.after[target]...)
}

func (r *Registry) anonymous(kind, target string, fn Func) *Task {
	r.anon++
	return r.Task(fmt.Sprintf("%s:%s#%d", kind, target, r.anon), fn).Hidden()
}
