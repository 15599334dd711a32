package recipes

import (
	"wpdeploy/pkg/contrib/clearpaths"
	"wpdeploy/pkg/contrib/filetransfer"
	"wpdeploy/pkg/contrib/hardening"
	"wpdeploy/pkg/contrib/mysql"
	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/recipe"
)

// CloudPanel deploys to CloudPanel managed servers and purges caches after
// publishing.
func CloudPanel(r *recipe.Registry) {
	clearpaths.Register(r)
	filetransfer.Register(r)
	hardening.Register(r)
	mysql.Register(r)
	wpcli.Register(r)

	common(r, "cloudpanel")
	hardeningHooks(r)

	r.Group("deploy",
		"deploy:prepare",
		"deploy:vendors",
		"deploy:clear_paths",
		"deploy:harden",
		"deploy:publish",
		"cp:purge",
	).Desc("Deploys your project")

	r.Group("pull-all", "db:pull-replace", "files:pull").
		Desc("Pull db from a remote stage, replaces instances of domain in db, and pulls writable files")

	r.Task("cp:purge:transient", purgeTransients).Desc("Purge wp transients")
	r.Task("cp:purge", invokeAll("cp:purge:transient", "wp:cache:flush")).
		Desc("Purge the transients and wp cache")
}
