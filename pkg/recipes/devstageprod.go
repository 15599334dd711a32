package recipes

import (
	"wpdeploy/pkg/contrib/clearpaths"
	"wpdeploy/pkg/contrib/gittag"
	"wpdeploy/pkg/contrib/hardening"
	"wpdeploy/pkg/contrib/staging"
	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/recipe"
)

// DevStageProd deploys to a development, staging and production server
// trio. Staging can pull production data, and localhost can pull from any
// stage.
func DevStageProd(r *recipe.Registry) {
	clearpaths.Register(r)
	staging.Register(r)
	hardening.Register(r)
	wpcli.Register(r)
	gittag.Register(r)

	common(r, "devstageprod")
	hardeningHooks(r)

	r.Group("deploy",
		"deploy:prepare",
		"deploy:vendors",
		"deploy:clear_paths",
		"deploy:harden",
		"deploy:publish",
	).Desc("Deploys your project")

	r.After("deploy:publish", "git:tag", "wp:cache:flush")

	r.Group("pull-all", "db:pull-replace", "files:pull").
		Desc("Pull db from a remote stage, replaces instances of domain in db, and pulls writable files")

	r.AfterFunc("files:pull", flushCacheOn(localhost))
	r.AfterFunc("db:pull-replace", flushCacheOn(localhost))
	r.AfterFunc("staging:files:pull", flushCacheOn(stagingHost))
	r.AfterFunc("staging:db:pull-replace", flushCacheOn(stagingHost))
}
