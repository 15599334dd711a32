// Package staging lets the staging host pull files and database from the
// host a task runs on, usually production.
package staging

import (
	"wpdeploy/pkg/contrib/filetransfer"
	"wpdeploy/pkg/contrib/mysql"
	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
)

// Register adds the staging:* tasks along with the file transfer and mysql
// tasks they build on.
func Register(r *recipe.Registry) {
	mysql.Register(r)
	filetransfer.Register(r)

	r.Task("staging:files:pull", func(c *recipe.Context) error {
		dst, err := c.Hosts().FromStage(host.StageStaging)
		if err != nil {
			return err
		}
		return filetransfer.PullSharedWritable(c, c.Host, dst)
	}).Desc("Remove writable staging directories, copy writable directories from production to staging")

	r.Task("staging:db:pull-replace", func(c *recipe.Context) error {
		m, err := mysql.New(c)
		if err != nil {
			return err
		}
		dst, err := c.Hosts().FromStage(host.StageStaging)
		if err != nil {
			return err
		}
		return m.PullReplace(c.Host, dst)
	}).Desc("Truncate staging db, pull db from a production, find/replace production with staging domain")

	r.Group("staging:pull-all", "staging:files:pull", "staging:db:pull-replace").
		Desc("Copy writable directories from production to staging and truncate staging db, pull db from a production, find/replace production with staging domain")
}
