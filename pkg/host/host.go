// Package host models deployment targets: the local machine and remote servers
// reached over SSH, together with the guard predicates that protect
// destructive operations.
package host

import (
	"errors"
	"fmt"
	"strings"

	"wpdeploy/pkg/settings"
)

// Stages a host may be assigned to.
const (
	StageDevelopment = "development"
	StageStaging     = "staging"
	StageProduction  = "production"
)

// KnownStages lists the valid values of the "stage" setting.
var KnownStages = []string{StageDevelopment, StageStaging, StageProduction}

var (
	// ErrSameHost is returned when source and destination resolve to the same host.
	ErrSameHost = errors.New("source and destination cannot be the same host")
	// ErrProduction is returned when a destructive operation targets production.
	ErrProduction = errors.New("command cannot be run on production")
	// ErrLocalhostSource is returned when localhost is used as a pull source.
	ErrLocalhostSource = errors.New("source host cannot be localhost")
	// ErrNotFound is returned by collection lookups.
	ErrNotFound = errors.New("host not found")
)

// Host is a named deployment target.
type Host struct {
	Alias        string
	Hostname     string
	RemoteUser   string
	Port         int
	IdentityFile string
	DeployPath   string
	Local        bool
	Labels       map[string]string

	// Config holds host level settings layered over the global ones.
	Config *settings.Store
}

// Stage returns the host's stage setting.
func (h *Host) Stage() string {
	return h.Config.String("stage", "")
}

// URI returns user@hostname, or the bare hostname when no user is set.
func (h *Host) URI() string {
	if h.RemoteUser == "" {
		return h.Hostname
	}
	return h.RemoteUser + "@" + h.Hostname
}

// CurrentDir is the directory the live site is served from: the deploy path
// itself for localhost, the "current" symlink for remote hosts.
func (h *Host) CurrentDir() string {
	deployPath := h.Config.MustParse(h.DeployPath)
	if h.Local {
		return deployPath
	}
	return deployPath + "/current"
}

// HasLabel reports whether the host carries label.
func (h *Host) HasLabel(label string) bool {
	_, ok := h.Labels[label]
	return ok
}

func (h *Host) String() string {
	if h.Local {
		return h.Alias + " (local)"
	}
	return fmt.Sprintf("%s (%s)", h.Alias, h.URI())
}

// IsLocalhost reports whether h is the local pseudo-host.
func IsLocalhost(h *Host) bool {
	return h.Local
}

// AreRemote reports whether neither host is the local pseudo-host.
func AreRemote(a, b *Host) bool {
	return !a.Local && !b.Local
}

// OnSameServer reports whether both hosts are reached through the same
// user@hostname.
func OnSameServer(a, b *Host) bool {
	return normalize(a.URI()) == normalize(b.URI())
}

// AreSame reports whether both hosts are the same server and deploy to the
// same path.
func AreSame(a, b *Host) bool {
	if a.Local != b.Local {
		return false
	}
	if !a.Local && !OnSameServer(a, b) {
		return false
	}
	return a.Config.MustParse(a.DeployPath) == b.Config.MustParse(b.DeployPath)
}

// IsProduction reports whether h must be protected from destructive actions:
// its alias is "production", its own "production" setting is true, or its
// branch is "production".
func IsProduction(h *Host) bool {
	if h.Alias == StageProduction {
		return true
	}
	if h.Config.HasOwn("production") && h.Config.Bool("production", false) {
		return true
	}
	return h.Config.String("branch", "") == StageProduction
}

// GuardDistinct returns ErrSameHost when src and dst are the same host.
func GuardDistinct(src, dst *Host, action string) error {
	if AreSame(src, dst) {
		return fmt.Errorf("%w when %s", ErrSameHost, action)
	}
	return nil
}

// GuardNotProduction returns ErrProduction when h is a production host.
func GuardNotProduction(h *Host) error {
	if IsProduction(h) {
		return fmt.Errorf("%w (host %s)", ErrProduction, h.Alias)
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
