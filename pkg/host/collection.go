package host

import (
	"fmt"
	"slices"
	"strings"
)

// Collection is the ordered set of configured hosts.
type Collection struct {
	hosts []*Host
}

// NewCollection builds a collection, preserving order.
func NewCollection(hosts ...*Host) *Collection {
	return &Collection{hosts: hosts}
}

// All returns every host in configuration order.
func (c *Collection) All() []*Host {
	return append([]*Host(nil), c.hosts...)
}

// Len returns the number of hosts.
func (c *Collection) Len() int {
	return len(c.hosts)
}

// FromAlias finds a host by alias, ignoring case and surrounding space.
func (c *Collection) FromAlias(alias string) (*Host, error) {
	for _, h := range c.hosts {
		if normalize(h.Alias) == normalize(alias) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s alias is not defined", ErrNotFound, alias)
}

// FromStage returns the first host whose stage matches.
func (c *Collection) FromStage(stage string) (*Host, error) {
	for _, h := range c.hosts {
		if normalize(h.Stage()) == normalize(stage) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s stage is not defined", ErrNotFound, stage)
}

// Localhost returns the local pseudo-host.
func (c *Collection) Localhost() (*Host, error) {
	for _, h := range c.hosts {
		if h.Local {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: localhost is not defined", ErrNotFound)
}

// Select resolves command line selectors. A selector is "all", a host alias,
// "stage=<stage>" or a label "<key>=<value>". No selectors selects every host.
func (c *Collection) Select(selectors ...string) ([]*Host, error) {
	if len(selectors) == 0 {
		return c.All(), nil
	}
	var out []*Host
	add := func(h *Host) {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "all" {
			for _, h := range c.hosts {
				add(h)
			}
			continue
		}
		key, value, isPair := strings.Cut(sel, "=")
		if !isPair {
			h, err := c.FromAlias(sel)
			if err != nil {
				return nil, err
			}
			add(h)
			continue
		}
		matched := false
		for _, h := range c.hosts {
			if key == "stage" && normalize(h.Stage()) == normalize(value) {
				add(h)
				matched = true
			} else if v, ok := h.Labels[key]; ok && v == value {
				add(h)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: no host matches %q", ErrNotFound, sel)
		}
	}
	return out, nil
}

// ValidateStages checks that every host has a known stage and that at least
// one host is production.
func (c *Collection) ValidateStages() error {
	hasProduction := false
	for _, h := range c.hosts {
		if !h.Config.HasOwn("stage") {
			return fmt.Errorf("stage option must be set for host %s", h.Alias)
		}
		stage := h.Stage()
		if !slices.Contains(KnownStages, stage) {
			return fmt.Errorf("stage option must be one of [%s] for host %s", strings.Join(KnownStages, ", "), h.Alias)
		}
		if stage == StageProduction {
			hasProduction = true
		}
	}
	if !hasProduction {
		return fmt.Errorf("at least one host stage option must be set to production")
	}
	return nil
}
