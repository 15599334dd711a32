package cmd

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/log"
	"wpdeploy/pkg/task"
)

var checkCmd = &cobra.Command{
	Use:   "check [SELECTOR...]",
	Short: "Perform pre-flight checks to verify configuration and connectivity.",
	Long: `This command loads the deployment file, validates the hosts and runs
'hostname' on each of them, locally or over SSH. It's a safe, read-only
operation that should be run before executing the 'run' command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.L().Info("--- Running Pre-flight Checks ---")

		// 1. Load Configuration
		log.L().Info("[1/3] Loading configuration", "path", cfgFile)
		d, err := loadDeployment()
		if err != nil {
			return err
		}
		log.L().Info("✓ Configuration loaded successfully.", "recipe", d.cfg.Recipe)

		// 2. Select hosts
		log.L().Info("[2/3] Selecting hosts...")
		hosts, err := d.hosts.Select(args...)
		if err != nil {
			return err
		}
		for _, h := range hosts {
			log.L().Info("  - Found host", "alias", h.Alias, "uri", h.URI(), "stage", h.Stage(), "production", host.IsProduction(h))
		}

		// 3. Test connectivity to all hosts
		log.L().Info("[3/3] Testing connectivity to all selected hosts...")
		var failed atomic.Int32
		// Runners print to their own buffer; the buffers are flushed in host
		// order once every check is done.
		outputs := make([]bytes.Buffer, len(hosts))
		g, ctx := errgroup.WithContext(cmd.Context())
		for i, h := range hosts {
			g.Go(func() error {
				log.L().Debug("Checking connection", "host", h.Alias)
				runner, err := task.NewRunner(dryRun, h, &outputs[i])
				if err != nil {
					failed.Add(1)
					log.L().Error("Connectivity check failed", "host", h.Alias, "error", err)
					return nil
				}
				defer runner.Close()
				out, err := runner.Run(ctx, "hostname", task.WithTimeout(30*time.Second))
				if err != nil {
					failed.Add(1)
					log.L().Error("Connectivity check failed", "host", h.Alias, "error", err)
					return nil
				}
				log.L().Info("✓ Reached host", "host", h.Alias, "hostname", out)
				return nil
			})
		}
		err = g.Wait()
		for i := range outputs {
			if _, werr := outputs[i].WriteTo(cmd.OutOrStdout()); werr != nil {
				log.L().Warn("Failed to write check output", "error", werr)
			}
		}
		if err != nil {
			return err
		}

		if n := failed.Load(); n > 0 {
			return fmt.Errorf("pre-flight checks failed on %d of %d hosts", n, len(hosts))
		}
		log.L().Info("--- Pre-flight Checks Passed ---")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
