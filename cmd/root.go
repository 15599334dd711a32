package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wpdeploy/pkg/log"
)

var (
	cfgFile   string
	logLevel  string
	assumeYes bool
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "wpdeploy",
	Short: "Deploy WordPress sites and move their data between stages.",
	Long: `wpdeploy runs deployment recipes for WordPress sites: hardening releases,
pulling databases and uploads between production, staging and development,
and purging caches. Commands run locally or over SSH.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.LevelFromString(logLevel))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "deploy.yaml", "deployment file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "auto-confirm all prompts")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print commands instead of running them")
}
