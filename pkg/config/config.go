// Package config loads the deployment file: global settings, the recipe to
// use and the hosts to deploy to.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/settings"
)

const (
	// DefaultPath is read when --config is not given.
	DefaultPath = "deploy.yaml"
	// DefaultRecipe is used when the file names none.
	DefaultRecipe = "devstageprod"
	// EnvPrefix marks environment variables that override settings.
	EnvPrefix = "WPDEPLOY_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrNoHosts is returned when the file defines no hosts.
var ErrNoHosts = errors.New("no hosts defined")

// Config is the parsed deployment file.
type Config struct {
	Application  string                `koanf:"application"`
	Recipe       string                `koanf:"recipe"`
	FrameworkBin string                `koanf:"framework_bin"`
	Hosts        map[string]HostConfig `koanf:"hosts"`
	// Contrib enables contrib packages the recipe does not load itself.
	Contrib []string `koanf:"contrib"`
	// Before and After attach tasks to other tasks, keyed by target.
	Before map[string][]string `koanf:"before"`
	After  map[string][]string `koanf:"after"`

	k     *koanf.Koanf
	order []string
}

// HostConfig describes one host. Host level settings live under the host's
// "settings" key and are read through Config.Build.
type HostConfig struct {
	Hostname     string            `koanf:"hostname"`
	RemoteUser   string            `koanf:"remote_user"`
	Port         int               `koanf:"port"`
	IdentityFile string            `koanf:"identity_file"`
	DeployPath   string            `koanf:"deploy_path"`
	Local        bool              `koanf:"local"`
	Labels       map[string]string `koanf:"labels"`
}

// LoadConfig reads the YAML file at path, then applies environment
// overrides.
//
// Environment variable mapping:
//
//	WPDEPLOY_KEEP_RELEASES          -> settings.keep_releases
//	WPDEPLOY_PRODUCTION__MYSQL_PASS -> hosts.production.settings.mysql_pass
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(k)), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k
	if cfg.order, err = hostOrder(content); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Recipe == "" {
		cfg.Recipe = DefaultRecipe
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoHosts)
	}
	return &cfg, nil
}

// hostOrder returns the host aliases in the order the file lists them.
func hostOrder(content []byte) ([]string, error) {
	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yamlv3.MappingNode {
		return nil, nil
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "hosts" || root.Content[i+1].Kind != yamlv3.MappingNode {
			continue
		}
		hosts := root.Content[i+1]
		aliases := make([]string, 0, len(hosts.Content)/2)
		for j := 0; j+1 < len(hosts.Content); j += 2 {
			aliases = append(aliases, hosts.Content[j].Value)
		}
		return aliases, nil
	}
	return nil, nil
}

// envKey maps an environment variable to a config path, or "" to skip it.
// Host overrides only apply to hosts the file defines.
func envKey(k *koanf.Koanf) func(string) string {
	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if name == "" {
			return ""
		}
		if alias, key, ok := strings.Cut(name, "__"); ok {
			if key == "" || !k.Exists("hosts."+alias) {
				return ""
			}
			return "hosts." + alias + ".settings." + key
		}
		return "settings." + name
	}
}

// Build returns the global settings and the hosts layered over them, in
// file order.
func (c *Config) Build() (*settings.Store, *host.Collection, error) {
	global := settings.FromKoanf(c.k.Cut("settings"), nil)
	if c.Application != "" && !global.HasOwn("application") {
		global.Set("application", c.Application)
	}

	aliases := c.aliases()

	hosts := make([]*host.Host, 0, len(aliases))
	for _, alias := range aliases {
		hc := c.Hosts[alias]
		h := &host.Host{
			Alias:        alias,
			Hostname:     hc.Hostname,
			RemoteUser:   hc.RemoteUser,
			Port:         hc.Port,
			IdentityFile: hc.IdentityFile,
			DeployPath:   hc.DeployPath,
			Local:        hc.Local,
			Labels:       hc.Labels,
			Config:       settings.FromKoanf(c.k.Cut("hosts."+alias+".settings"), global),
		}
		if h.Hostname == "" {
			h.Hostname = alias
		}
		if stage, ok := hc.Labels["stage"]; ok && !h.Config.HasOwn("stage") {
			h.Config.Set("stage", stage)
		}
		hosts = append(hosts, h)
	}

	return global, host.NewCollection(hosts...), nil
}

// aliases lists the configured hosts in file order. Hosts missing from the
// recorded order follow, sorted.
func (c *Config) aliases() []string {
	aliases := make([]string, 0, len(c.Hosts))
	for _, alias := range c.order {
		if _, ok := c.Hosts[alias]; ok && !slices.Contains(aliases, alias) {
			aliases = append(aliases, alias)
		}
	}
	var rest []string
	for alias := range c.Hosts {
		if !slices.Contains(aliases, alias) {
			rest = append(rest, alias)
		}
	}
	sort.Strings(rest)
	return append(aliases, rest...)
}

// Dump renders the values of store as YAML. Lazy values are evaluated;
// values that fail to resolve are shown as their error.
func Dump(store *settings.Store) ([]byte, error) {
	values := make(map[string]any)
	for _, key := range store.Keys() {
		v, err := store.Lookup(key)
		if err != nil {
			values[key] = fmt.Sprintf("<%v>", err)
			continue
		}
		values[key] = v
	}
	return yamlv3.Marshal(values)
}
