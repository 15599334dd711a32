// Package clearpaths removes the contents of server directories outside the
// release directory.
//
// Configuration:
//   - clear_server_paths: absolute host paths whose contents are removed
//   - clear_server_use_sudo: prefix the removal with sudo
//
// This is destructive. Relative paths are always skipped.
package clearpaths

import (
	"fmt"
	"strings"

	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/task"
)

// TaskName is the registered task.
const TaskName = "deploy:clear_server_paths"

// Register adds the task and its defaults.
func Register(r *recipe.Registry) {
	r.Set("clear_server_paths", []string{})
	r.Set("clear_server_use_sudo", false)

	r.Task(TaskName, Clear).Desc("Remove server files and/or directories based on absolute paths")
}

// Command empties path without removing path itself.
func Command(path string, sudo bool) string {
	cmd := fmt.Sprintf("find %s -mindepth 1 -delete", task.Quote(path))
	if sudo {
		cmd = "sudo " + cmd
	}
	return cmd
}

// Clear empties every configured path that is absolute and exists.
func Clear(c *recipe.Context) error {
	paths := c.Config().Strings("clear_server_paths")
	if len(paths) == 0 {
		return nil
	}
	sudo := c.Config().Bool("clear_server_use_sudo", false)

	for _, raw := range paths {
		path, err := c.Parse(raw)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(path, "/") {
			c.Warning("Path %q is not absolute. Skipping", path)
			continue
		}
		exists, err := c.Test(fmt.Sprintf("[ -d %s ]", task.Quote(path)))
		if err != nil {
			return err
		}
		if !exists {
			c.Warning("Path %q not found. Skipping", path)
			continue
		}
		if _, err := c.Run(Command(path, sudo)); err != nil {
			return err
		}
	}
	return nil
}
