// Package filetransfer copies shared writable directories (uploads and the
// like) between hosts with rsync, always run from localhost.
//
// Configuration:
//   - filetransfer_rsync_switches: rsync switches (-rlztv --delete)
//   - filetransfer_rsync_excludes: rsync --exclude patterns
package filetransfer

import (
	"fmt"
	"slices"
	"strings"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/task"
)

// DefaultSwitches are passed to rsync unless configured otherwise.
const DefaultSwitches = "-rlztv --delete"

// Endpoint renders one side of an rsync transfer. A host on the machine
// running rsync is addressed by path alone.
func Endpoint(h, other *host.Host, path string) string {
	if h.Local || host.OnSameServer(h, other) {
		return path
	}
	uri := h.URI() + ":" + path
	if h.Port != 0 {
		uri = fmt.Sprintf(`-e "ssh -p %d" %s`, h.Port, uri)
	}
	return uri
}

// RsyncCommand builds the rsync invocation copying srcPath on src to
// dstPath on dst.
func RsyncCommand(rsync, switches string, excludes []string, src *host.Host, srcPath string, dst *host.Host, dstPath string) string {
	parts := []string{rsync, switches}
	for _, exclude := range excludes {
		parts = append(parts, fmt.Sprintf(`--exclude "%s"`, exclude))
	}
	parts = append(parts, Endpoint(src, dst, srcPath), Endpoint(dst, src, dstPath))
	return strings.Join(parts, " ")
}

// SharedWritable returns directories that are both shared and writable, in
// shared_dirs order.
func SharedWritable(shared, writable []string) []string {
	var out []string
	for _, dir := range shared {
		if slices.Contains(writable, dir) && !slices.Contains(out, dir) {
			out = append(out, dir)
		}
	}
	return out
}

// PullSharedWritable mirrors src's shared writable directories onto dst.
// src may not be localhost and dst may not be production.
func PullSharedWritable(c *recipe.Context, src, dst *host.Host) error {
	if err := host.GuardDistinct(src, dst, "pulling files"); err != nil {
		return err
	}
	if host.IsLocalhost(src) {
		return host.ErrLocalhostSource
	}
	if err := host.GuardNotProduction(dst); err != nil {
		return err
	}

	dirs := SharedWritable(c.Config().Strings("shared_dirs"), c.Config().Strings("writable_dirs"))
	if len(dirs) == 0 {
		c.Error("No shared writable directories are defined")
		return nil
	}

	local, err := c.Localhost()
	if err != nil {
		return err
	}
	rsync, err := c.WhichLocal("rsync")
	if err != nil {
		return err
	}
	switches := c.Config().String("filetransfer_rsync_switches", DefaultSwitches)
	excludes := c.Config().Strings("filetransfer_rsync_excludes")

	for _, raw := range dirs {
		dir, err := c.Parse(raw)
		if err != nil {
			return err
		}
		srcPath := src.CurrentDir() + "/" + dir + "/"
		dstPath := dst.CurrentDir() + "/" + dir + "/"

		exists, err := c.TestOn(src, "[ -d "+task.Quote(srcPath)+" ]")
		if err != nil {
			return err
		}
		if !exists {
			c.Warning("%s does not exist on source.", srcPath)
			continue
		}

		cmd := RsyncCommand(rsync, switches, excludes, src, srcPath, dst, dstPath)
		if _, err := c.RunOn(local, cmd, task.WithTimeout(0)); err != nil {
			return err
		}
	}
	return nil
}

// Register adds files:pull and its defaults.
func Register(r *recipe.Registry) {
	r.Set("filetransfer_rsync_switches", DefaultSwitches)
	r.Set("filetransfer_rsync_excludes", []string{})

	r.Task("files:pull", func(c *recipe.Context) error {
		local, err := c.Hosts().Localhost()
		if err != nil {
			return err
		}
		return PullSharedWritable(c, c.Host, local)
	}).Desc("Downloads shared writable folders to the localhost")
}
