// Package pause adds deploy:pause, which sleeps for pause_seconds.
package pause

import (
	"time"

	"wpdeploy/pkg/recipe"
)

// Register adds deploy:pause.
func Register(r *recipe.Registry) {
	r.Set("pause_seconds", 0)

	r.Task("deploy:pause", func(c *recipe.Context) error {
		seconds := c.Config().Int("pause_seconds", 0)
		if seconds <= 0 {
			return nil
		}
		if c.DryRun() {
			c.Writeln("[DRY-RUN] Would pause for %ds", seconds)
			return nil
		}
		timer := time.NewTimer(time.Duration(seconds) * time.Second)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-c.Ctx().Done():
			return c.Ctx().Err()
		}
	}).Desc("Sleep for X seconds")
}
