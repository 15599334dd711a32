package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/log"
	"wpdeploy/pkg/recipe"
)

var wpCommand string

var runCmd = &cobra.Command{
	Use:   "run TASK SELECTOR...",
	Short: "Run a task on the selected hosts.",
	Long: `Run a task on the hosts matched by the selectors. A selector is a host
alias, stage=<stage>, a label <key>=<value>, or all.

Examples:
  wpdeploy run deploy production
  wpdeploy run pull-all production
  wpdeploy run wp stage=staging --wp="plugin list"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		d, err := loadDeployment()
		if err != nil {
			return err
		}
		if _, ok := d.registry.Lookup(name); !ok && d.cfg.FrameworkBin == "" {
			return fmt.Errorf("%w: %s", recipe.ErrUnknownTask, name)
		}
		hosts, err := d.hosts.Select(args[1:]...)
		if err != nil {
			return err
		}

		in := bufio.NewReader(cmd.InOrStdin())
		if prompt := needsConfirmation(name); prompt != "" && !dryRun {
			if err := confirmAction(in, cmd.OutOrStdout(), prompt); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		options := map[string]string{}
		if wpCommand != "" {
			options[wpcli.OptionName] = wpCommand
		}
		session := d.newSession(cmd.OutOrStdout(), in, options)
		defer func() {
			if err := session.Close(); err != nil {
				log.L().Warn("Failed to close connections", "error", err)
			}
		}()

		log.L().Debug("Running task", "task", name, "hosts", len(hosts), "dry_run", dryRun)
		if err := session.Run(ctx, name, hosts); err != nil {
			return err
		}
		session.Console().Success(fmt.Sprintf("Successfully ran %s", name))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&wpCommand, "wp", "", `wp-cli command for the wp task, e.g. --wp="cli version"`)
	rootCmd.AddCommand(runCmd)
}
