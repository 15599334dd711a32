// Package hardening makes released source read-only and relaxes permissions
// again wherever the deploy process has to write or delete.
//
// Configuration:
//   - harden_dir_permissions: chmod mode for directories (u=rx,g=rx,o=rx)
//   - harden_file_permissions: chmod mode for files (u=r,g=r,o=r)
//   - harden_writable_files: release relative paths made writable again
//   - harden_writable_permissions: chmod mode for those paths (u+w)
//
// deploy:cleanup and rollback are replaced so old and rolled back releases
// are unhardened before they are removed or marked.
package hardening

import (
	"fmt"
	"path"
	"strings"
	"time"

	"wpdeploy/pkg/recipe"
)

const (
	DefaultDirPermissions      = "u=rx,g=rx,o=rx"
	DefaultFilePermissions     = "u=r,g=r,o=r"
	DefaultUnhardenPermissions = "u+rwx,g+rwx"
	DefaultWritablePermissions = "u+w"
)

// Binaries are the paths of the tools the commands call.
type Binaries struct {
	Find  string
	Test  string
	Chmod string
}

// DefaultBinaries relies on $PATH.
var DefaultBinaries = Binaries{Find: "find", Test: "test", Chmod: "chmod"}

// DirectoryCommand sets perms on every directory below and including path.
func (b Binaries) DirectoryCommand(path, perms string) string {
	return fmt.Sprintf(`%s -d %s && %s %s -type d -exec %s %s '{}' \;`, b.Test, path, b.Find, path, b.Chmod, perms)
}

// FilesCommand sets perms on every file below path.
func (b Binaries) FilesCommand(path, perms string) string {
	return fmt.Sprintf(`%s -d %s/. && %s %s -type f -exec %s %s '{}' \;`, b.Test, path, b.Find, path, b.Chmod, perms)
}

// HardenCommand combines the directory and file commands.
func (b Binaries) HardenCommand(path, dirPerms, filePerms string) string {
	return b.DirectoryCommand(path, dirPerms) + " && " + b.FilesCommand(path, filePerms)
}

// UnhardenCommand recursively grants perms on path.
func (b Binaries) UnhardenCommand(path, perms string) string {
	return fmt.Sprintf("%s -d %s && %s -R %s %s", b.Test, path, b.Chmod, perms, path)
}

// Register adds the hardening tasks and their defaults.
func Register(r *recipe.Registry) {
	r.Set("harden_dir_permissions", DefaultDirPermissions)
	r.Set("harden_file_permissions", DefaultFilePermissions)
	r.Set("harden_writable_files", []string{})
	r.Set("harden_writable_permissions", DefaultWritablePermissions)
	r.Set("keep_releases", 10)
	r.Set("cleanup_use_sudo", false)
	r.Set("bin/symlink", "ln -nfs")

	r.Task("deploy:harden", func(c *recipe.Context) error {
		return Harden(c, "{{release_path}}")
	}).Desc("Hardens site permissions")

	r.Task("deploy:unharden", func(c *recipe.Context) error {
		return Unharden(c, "{{release_path}}")
	}).Desc("Unhardens site permissions")

	r.Task("deploy:writablehardened", WritableHardened).
		Desc("Apply writable permissions to files/folders in harden_writable_files")

	r.Task("deploy:cleanup", Cleanup).Desc("Cleanups old releases after unhardening files")

	r.Task("rollback", Rollback).Desc("Rollbacks to the previous release")
}

func binaries(c *recipe.Context) (Binaries, error) {
	var b Binaries
	var err error
	if b.Find, err = c.Which("find"); err != nil {
		return b, err
	}
	if b.Test, err = c.Which("test"); err != nil {
		return b, err
	}
	if b.Chmod, err = c.Which("chmod"); err != nil {
		return b, err
	}
	return b, nil
}

// Harden applies the configured directory and file permissions below path.
func Harden(c *recipe.Context, path string) error {
	p, err := c.Parse(path)
	if err != nil {
		return err
	}
	b, err := binaries(c)
	if err != nil {
		return err
	}
	dirPerms := c.Config().String("harden_dir_permissions", DefaultDirPermissions)
	filePerms := c.Config().String("harden_file_permissions", DefaultFilePermissions)
	_, err = c.Run(b.HardenCommand(p, dirPerms, filePerms))
	return err
}

// Unharden makes path writable for user and group again.
func Unharden(c *recipe.Context, path string) error {
	p, err := c.Parse(path)
	if err != nil {
		return err
	}
	b, err := binaries(c)
	if err != nil {
		return err
	}
	_, err = c.Run(b.UnhardenCommand(p, DefaultUnhardenPermissions))
	return err
}

// WritableHardened re-applies write permission to harden_writable_files
// inside the release.
func WritableHardened(c *recipe.Context) error {
	files := c.Config().Strings("harden_writable_files")
	if len(files) == 0 {
		return nil
	}
	releasePath, err := c.Parse("{{release_path}}")
	if err != nil {
		return err
	}
	perms := c.Config().String("harden_writable_permissions", DefaultWritablePermissions)
	for _, f := range files {
		clean := path.Clean(f)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			c.Warning("Writable path %q must be relative to the release. Skipping", f)
			continue
		}
		target := releasePath + "/" + clean
		if _, err := c.Run(fmt.Sprintf("if [ -e %s ]; then chmod -R %s %s; fi", target, perms, target)); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes all but the newest keep_releases releases, unhardening
// each one first so rm can delete read-only files.
func Cleanup(c *recipe.Context) error {
	keep := c.Config().Int("keep_releases", 10)
	if keep == -1 {
		return nil
	}
	releases := c.Config().Strings("releases_list")
	sudo := ""
	if c.Config().Bool("cleanup_use_sudo", false) {
		sudo = "sudo "
	}

	if keep < len(releases) {
		for _, release := range releases[max(keep, 0):] {
			dir := "{{deploy_path}}/releases/" + release
			if err := Unharden(c, dir); err != nil {
				return err
			}
			if _, err := c.Run(sudo + "rm -rf " + dir); err != nil {
				return err
			}
		}
	}

	_, err := c.Run("cd {{deploy_path}} && if [ -e release ]; then rm release; fi")
	return err
}

// Rollback points current at the previous release, unhardening the release
// being abandoned and marking it with a BAD_RELEASE file.
func Rollback(c *recipe.Context) error {
	out, err := c.Run("readlink {{current_path}}")
	if err != nil {
		return err
	}
	currentRelease := path.Base(strings.TrimSpace(out))

	candidate := c.Config().String("rollback_candidate", "")
	if candidate == "" {
		for _, release := range c.Config().Strings("releases_list") {
			if release != currentRelease {
				candidate = release
				break
			}
		}
	}
	if candidate == "" {
		return fmt.Errorf("no more releases you can revert to")
	}

	c.Writeln("Current release is %s.", currentRelease)

	exists, err := c.Test(fmt.Sprintf("[ -d {{deploy_path}}/releases/%s ]", candidate))
	if err != nil {
		return err
	}
	if !exists {
		deployPath, _ := c.Parse("{{deploy_path}}")
		return fmt.Errorf("release %q not found in %q", candidate, deployPath+"/releases")
	}

	bad, err := c.Test(fmt.Sprintf("[ -f {{deploy_path}}/releases/%s/BAD_RELEASE ]", candidate))
	if err != nil {
		return err
	}
	if bad {
		c.Warning("Candidate %s marked as bad release.", candidate)
		ok, err := c.Confirm(fmt.Sprintf("Continue rollback to %s?", candidate))
		if err != nil {
			return err
		}
		if !ok {
			c.Writeln("Rollback aborted.")
			return nil
		}
	}
	c.Writeln("Rolling back to %s release.", candidate)

	if err := Unharden(c, "{{deploy_path}}/releases/"+currentRelease); err != nil {
		return err
	}
	if _, err := c.Run(fmt.Sprintf("cd {{deploy_path}} && {{bin/symlink}} releases/%s {{current_path}}", candidate)); err != nil {
		return err
	}
	marker := fmt.Sprintf("%s,%s", recipe.Timestamp(time.Now()), c.Config().String("user", ""))
	if _, err := c.Run(fmt.Sprintf("cd {{deploy_path}} && echo '%s' > releases/%s/BAD_RELEASE", marker, currentRelease)); err != nil {
		return err
	}

	c.Console().Success(fmt.Sprintf("rollback to release %s was successful", candidate))
	return nil
}
