package recipes

import (
	"fmt"

	"wpdeploy/pkg/contrib/clearpaths"
	"wpdeploy/pkg/contrib/hardening"
	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/recipe"
)

// DefaultComposerOptions are passed to composer install by deploy:vendors.
const DefaultComposerOptions = "--verbose --prefer-dist --no-progress --no-interaction --no-dev --optimize-autoloader"

// SiteGround deploys to SiteGround shared hosting, where composer is a
// wrapper script or has to be installed per site, and purges the SiteGround
// caches after publishing.
func SiteGround(r *recipe.Registry) {
	clearpaths.Register(r)
	hardening.Register(r)
	wpcli.Register(r)

	common(r, "siteground")

	r.Set("composer_action", "install")
	r.Set("composer_options", DefaultComposerOptions)
	r.SetFunc("bin/php", func(c *recipe.Context) (any, error) {
		return c.Which("php")
	})
	r.SetFunc("bin/composer", composerBinary)

	r.Task("deploy:vendors", func(c *recipe.Context) error {
		if ok, err := c.Test("hash unzip 2>/dev/null"); err == nil && !ok {
			c.Warning("To speed up composer installation setup \"unzip\" command with PHP zip extension.")
		}
		_, err := c.Run("cd {{release_path}} && {{bin/composer}} {{composer_action}} {{composer_options}} 2>&1")
		return err
	}).Desc("Installs vendors")

	r.Group("deploy",
		"deploy:prepare",
		"deploy:vendors",
		"deploy:clear_paths",
		"deploy:harden",
		"deploy:publish",
		"sg:purge",
	).Desc("Deploys your project")

	r.Before("deploy:cleanup", "deploy:unharden")

	r.Task("sg", func(c *recipe.Context) error {
		_, err := wpcli.Run(c, c.Host, "sg", c.RealTimeOutput())
		return err
	}).Desc("Show the siteground cli options")

	r.Task("sg:purge:transient", purgeTransients).Desc("Purge wp transients")

	r.Task("sg:purge", invokeAll("sg:purge:transient", "wp:cache:flush", "sg:purge:memcached", "sg:purge:dynamic")).
		Desc("Purge the transients, wp cache, and Siteground dynamic and memcached caches")

	r.Task("sg:purge:dynamic", func(c *recipe.Context) error {
		_, err := wpcli.Run(c, c.Host, "sg purge")
		return err
	}).Desc("Purge the Siteground dynamic cache")

	r.Task("sg:purge:memcached", func(c *recipe.Context) error {
		_, err := wpcli.Run(c, c.Host, "sg purge memcached")
		return err
	}).Desc("Purge the Siteground memcached cache")
}

// composerBinary prefers a composer.phar installed for the site, then a
// composer on $PATH (SiteGround ships a wrapper script), and installs the
// latest composer.phar when neither exists.
func composerBinary(c *recipe.Context) (any, error) {
	phar := "{{bin/php}} {{deploy_path}}/.dep/composer.phar"

	ok, err := c.Test("[ -f {{deploy_path}}/.dep/composer.phar ]")
	if err != nil {
		return nil, err
	}
	if ok {
		return phar, nil
	}

	if ok, err := c.Test("hash composer 2>/dev/null"); err == nil && ok {
		return c.Which("composer")
	}

	c.Warning("Composer binary wasn't found. Installing latest composer to %q.", c.Config().MustParse("{{deploy_path}}/.dep/composer.phar"))
	if _, err := c.Run("cd {{deploy_path}} && curl -sS https://getcomposer.org/installer | {{bin/php}}"); err != nil {
		return nil, fmt.Errorf("composer install failed: %w", err)
	}
	if _, err := c.Run("mkdir -p {{deploy_path}}/.dep && mv {{deploy_path}}/composer.phar {{deploy_path}}/.dep/composer.phar"); err != nil {
		return nil, err
	}
	return phar, nil
}
