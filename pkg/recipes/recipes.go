// Package recipes assembles contrib tasks into complete deployment recipes
// for the hosting platforms wpdeploy supports.
package recipes

import (
	"errors"
	"fmt"
	"sort"

	"wpdeploy/pkg/contrib/clearpaths"
	"wpdeploy/pkg/contrib/hardening"
	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
)

// ErrUnknownRecipe is returned by Load for names not in the catalogue.
var ErrUnknownRecipe = errors.New("unknown recipe")

var catalogue = map[string]func(*recipe.Registry){
	"cloudpanel":   CloudPanel,
	"devstageprod": DevStageProd,
	"siteground":   SiteGround,
}

// Names lists the available recipes.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load registers the named recipe.
func Load(name string, r *recipe.Registry) error {
	fn, ok := catalogue[name]
	if !ok {
		return fmt.Errorf("%w: %q (available: %v)", ErrUnknownRecipe, name, Names())
	}
	fn(r)
	return nil
}

// common holds what every recipe shares: the WordPress directory layout,
// hardened permissions, a publish sequence whose steps can be hooked, and
// failure handling for deploy.
func common(r *recipe.Registry, name string) {
	r.Add("recipes", name)

	r.Set("shared_dirs", []string{"wp-content/uploads"})
	r.Set("writable_dirs", []string{"wp-content/uploads"})
	r.Set("harden_dir_permissions", hardening.DefaultDirPermissions)
	r.Set("harden_file_permissions", hardening.DefaultFilePermissions)
	r.Set("clear_server_paths", []string{})

	r.Group("deploy:publish", "deploy:symlink", "deploy:unlock", "deploy:cleanup", "deploy:success").
		Desc("Publishes the release")

	r.Fail("deploy", "deploy:failed")

	r.After("deploy:symlink", clearpaths.TaskName)
	r.AfterFunc("deploy:failed", func(c *recipe.Context) error {
		if err := c.Invoke("deploy:unlock"); err != nil {
			return err
		}
		return c.Invoke("deploy:unharden")
	}).Desc("Unlock after deploy:failed and unharden the failed release")
}

// hardeningHooks unhardens old releases before cleanup and reopens
// harden_writable_files after hardening.
func hardeningHooks(r *recipe.Registry) {
	r.BeforeFunc("deploy:cleanup", func(c *recipe.Context) error {
		return c.Invoke("deploy:unharden")
	}).Desc("Unharden previous site releases")

	r.AfterFunc("deploy:harden", func(c *recipe.Context) error {
		return c.Invoke("deploy:writablehardened")
	}).Desc("Apply writable permissions to files/folders in harden_writable_files")
}

// flushCacheOn returns a hook flushing the object cache on the host chosen
// by pick.
func flushCacheOn(pick func(c *recipe.Context) (*host.Host, error)) recipe.Func {
	return func(c *recipe.Context) error {
		h, err := pick(c)
		if err != nil {
			return err
		}
		return wpcli.CacheFlush(c, h)
	}
}

func localhost(c *recipe.Context) (*host.Host, error) {
	return c.Localhost()
}

func stagingHost(c *recipe.Context) (*host.Host, error) {
	return c.Hosts().FromStage(host.StageStaging)
}

// purgeTransients deletes every WordPress transient on the current host.
func purgeTransients(c *recipe.Context) error {
	_, err := wpcli.Run(c, c.Host, "transient delete --all")
	return err
}

// invokeAll invokes names in order on the current host.
func invokeAll(names ...string) recipe.Func {
	return func(c *recipe.Context) error {
		for _, name := range names {
			if err := c.Invoke(name); err != nil {
				return err
			}
		}
		return nil
	}
}
