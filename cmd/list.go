package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tasks the configured recipe provides.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeployment()
		if err != nil {
			return err
		}

		r := lipgloss.NewRenderer(cmd.OutOrStdout())
		header := r.NewStyle().Bold(true)
		name := r.NewStyle().Foreground(lipgloss.Color("10"))
		group := r.NewStyle().Faint(true)

		tasks := d.registry.Tasks()
		width := 0
		for _, t := range tasks {
			width = max(width, len(t.Name()))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, header.Render(fmt.Sprintf("Recipe: %s", d.cfg.Recipe)))
		for _, t := range tasks {
			if t.IsHidden() && !listAll {
				continue
			}
			desc := t.Description()
			if t.IsGroup() {
				desc += " " + group.Render(fmt.Sprintf("%v", t.Members()))
			}
			fmt.Fprintf(out, "  %s  %s\n", name.Width(width).Render(t.Name()), desc)
		}
		if d.cfg.FrameworkBin != "" {
			fmt.Fprintf(out, "\nOther tasks are passed to %s.\n", d.cfg.FrameworkBin)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "include hidden tasks and hooks")
	rootCmd.AddCommand(listCmd)
}
