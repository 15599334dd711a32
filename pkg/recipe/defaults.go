package recipe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	gitconfig "github.com/go-git/go-git/v5/config"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/settings"
)

// prepare installs the per-host values every task can reference in
// templates. Values set explicitly in configuration are left alone.
func (s *Session) prepare(ctx context.Context, h *host.Host) {
	if s.prepared[h.Alias] {
		return
	}
	s.prepared[h.Alias] = true

	static := map[string]any{
		"alias":       h.Alias,
		"hostname":    h.Hostname,
		"remote_user": h.RemoteUser,
		"deploy_path": h.DeployPath,
		"target":      h.Alias,
	}
	for key, value := range static {
		if !h.Config.HasOwn(key) {
			h.Config.Set(key, value)
		}
	}

	c := &Context{ctx: ctx, Host: h, session: s}
	lazy := map[string]settings.Resolver{
		"current_path":  func() (any, error) { return currentPath(h), nil },
		"release_path":  func() (any, error) { return releasePath(c) },
		"releases_list": func() (any, error) { return releasesList(c) },
		"user":          func() (any, error) { return defaultUser(), nil },
	}
	for key, fn := range s.reg.values {
		fn := fn
		lazy[key] = func() (any, error) { return fn(c) }
	}
	for key, fn := range lazy {
		if h.Config.Has(key) || s.reg.pinned[key] {
			continue
		}
		h.Config.SetFunc(key, fn)
	}
}

func currentPath(h *host.Host) string {
	return h.CurrentDir()
}

// releasePath resolves the release being built ("release" symlink) or, once
// published, the live one.
func releasePath(c *Context) (any, error) {
	if c.Host.Local {
		return c.Parse("{{deploy_path}}")
	}
	out, err := c.Run("if [ -h {{deploy_path}}/release ]; then readlink {{deploy_path}}/release; elif [ -h {{deploy_path}}/current ]; then readlink {{deploy_path}}/current; fi")
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return nil, fmt.Errorf("the release path (%s/release) does not exist", c.Host.DeployPath)
	}
	if !strings.HasPrefix(path, "/") {
		path = c.Host.Config.MustParse("{{deploy_path}}") + "/" + path
	}
	return path, nil
}

// releasesList returns release directory names, newest first.
func releasesList(c *Context) (any, error) {
	out, err := c.Run("if [ -d {{deploy_path}}/releases ]; then cd {{deploy_path}}/releases && ls -1t; fi")
	if err != nil {
		return nil, err
	}
	var releases []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			releases = append(releases, line)
		}
	}
	return releases, nil
}

// defaultUser is the git user.name, falling back to the OS user.
func defaultUser() string {
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err == nil && cfg.User.Name != "" {
		return cfg.User.Name
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// Timestamp formats t the way release markers record it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
