package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"wpdeploy/pkg/host"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts [SELECTOR...]",
	Short: "Show the configured hosts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeployment()
		if err != nil {
			return err
		}
		hosts, err := d.hosts.Select(args...)
		if err != nil {
			return err
		}

		r := lipgloss.NewRenderer(cmd.OutOrStdout())
		alias := r.NewStyle().Bold(true)
		warn := r.NewStyle().Foreground(lipgloss.Color("9"))

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Hosts:")
		fmt.Fprintln(out, "--------------------")
		for _, h := range hosts {
			where := h.URI()
			if h.Local {
				where = "local"
			} else if h.Port != 0 {
				where = fmt.Sprintf("%s:%d", where, h.Port)
			}
			line := fmt.Sprintf("  - %s  %s  stage=%s  %s", alias.Render(h.Alias), where, h.Stage(), h.DeployPath)
			if host.IsProduction(h) {
				line += "  " + warn.Render("production")
			}
			if len(h.Labels) > 0 {
				var labels []string
				for k, v := range h.Labels {
					labels = append(labels, k+"="+v)
				}
				sort.Strings(labels)
				line += "  [" + strings.Join(labels, ", ") + "]"
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, "--------------------")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)
}
