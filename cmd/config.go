package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wpdeploy/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config [ALIAS]",
	Short: "Print the resolved settings, globally or for one host.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeployment()
		if err != nil {
			return err
		}
		store := d.global
		if len(args) == 1 {
			h, err := d.hosts.FromAlias(args[0])
			if err != nil {
				return err
			}
			for key, value := range map[string]any{
				"alias":       h.Alias,
				"hostname":    h.Hostname,
				"remote_user": h.RemoteUser,
				"deploy_path": h.DeployPath,
			} {
				if !h.Config.HasOwn(key) {
					h.Config.Set(key, value)
				}
			}
			store = h.Config
		}
		out, err := config.Dump(store)
		if err != nil {
			return fmt.Errorf("failed to render settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
