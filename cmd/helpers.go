package cmd

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"wpdeploy/pkg/config"
	"wpdeploy/pkg/host"
	"wpdeploy/pkg/log"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/recipes"
	"wpdeploy/pkg/settings"
)

// destructiveTasks overwrite data on their destination host.
var destructiveTasks = []string{
	"db:clear",
	"db:pull",
	"db:pull-replace",
	"db:replace",
	"files:pull",
	"pull-all",
	"rollback",
	"staging:db:pull-replace",
	"staging:files:pull",
	"staging:pull-all",
}

// confirmAction prompts the user for confirmation before proceeding with a dangerous action.
// It returns an error if the user does not confirm. in is shared with the
// session so later prompts see the rest of the input.
func confirmAction(in *bufio.Reader, out io.Writer, prompt string) error {
	if assumeYes {
		fmt.Fprintf(out, "'%s' prompt skipped due to --yes flag.\n", prompt)
		return nil
	}

	fmt.Fprintf(out, "\n!!! WARNING: %s !!!\n", prompt)
	fmt.Fprint(out, "This is a potentially disruptive action. Please type 'yes' to confirm: ")

	input, _ := in.ReadString('\n')

	if strings.TrimSpace(input) != "yes" {
		return fmt.Errorf("action cancelled by user")
	}

	return nil
}

// deployment is a loaded deployment file with its recipe registered.
type deployment struct {
	cfg      *config.Config
	global   *settings.Store
	hosts    *host.Collection
	registry *recipe.Registry
}

func loadDeployment() (*deployment, error) {
	log.L().Debug("Loading configuration", "path", cfgFile)
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	global, hosts, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := recipe.NewRegistry(global)
	if err := recipes.Load(cfg.Recipe, reg); err != nil {
		return nil, err
	}
	for _, name := range cfg.Contrib {
		if err := recipes.LoadContrib(name, reg); err != nil {
			return nil, err
		}
	}
	for target, names := range cfg.Before {
		reg.Before(target, names...)
	}
	for target, names := range cfg.After {
		reg.After(target, names...)
	}
	log.L().Debug("Configuration loaded", "recipe", cfg.Recipe, "hosts", hosts.Len())

	return &deployment{cfg: cfg, global: global, hosts: hosts, registry: reg}, nil
}

// newSession opens a session over d's hosts.
func (d *deployment) newSession(out io.Writer, in io.Reader, options map[string]string) *recipe.Session {
	return d.registry.NewSession(recipe.Env{
		Hosts:        d.hosts,
		Options:      options,
		FrameworkBin: d.cfg.FrameworkBin,
		DryRun:       dryRun,
		AssumeYes:    assumeYes,
		Out:          out,
		In:           in,
	})
}

// needsConfirmation reports why running name should be confirmed, or ""
// when it can run unattended.
func needsConfirmation(name string) string {
	if slices.Contains(destructiveTasks, name) {
		return fmt.Sprintf("%s overwrites data on the destination host", name)
	}
	return ""
}
