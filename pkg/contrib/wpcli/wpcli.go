// Package wpcli runs wp-cli on deployment hosts.
//
// Configuration:
//   - wpcli_webroot: WordPress root relative to the site root (empty)
//   - wpcli_domain: site domain passed as --url
//   - wpcli_scheme: http or https, used by wp:cache:warm
package wpcli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/task"
)

// OptionName is the command line option carrying the wp sub-command.
const OptionName = "wp"

// CLI builds wp-cli commands for one host.
type CLI struct {
	host *host.Host
}

// New returns a CLI for h.
func New(h *host.Host) *CLI {
	return &CLI{host: h}
}

// SitePath renders --path: the deploy path on localhost or the current
// release elsewhere, plus wpcli_webroot.
func (w *CLI) SitePath() string {
	var deployPath string
	if w.host.Local {
		deployPath = w.host.Config.MustParse(w.host.DeployPath)
	} else {
		deployPath = w.host.Config.String("current_path", w.host.CurrentDir())
	}
	rootPath := deployPath
	if root := w.host.Config.String("wpcli_webroot", ""); root != "" {
		rootPath = deployPath + "/" + root
	}
	if rootPath == "" {
		return ""
	}
	return fmt.Sprintf(`--path="%s"`, rootPath)
}

// URL renders --url, or "" when no domain is configured.
func (w *CLI) URL() string {
	url := w.host.Config.String("wpcli_domain", "")
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`--url="%s"`, url)
}

// Command renders "wp <command> --path=... --url=...".
func (w *CLI) Command(command string) string {
	parts := []string{"wp", command}
	for _, opt := range []string{w.SitePath(), w.URL()} {
		if opt != "" {
			parts = append(parts, opt)
		}
	}
	return strings.Join(parts, " ")
}

// CacheWarmCommand crawls the site with wget so an edge cache fills up.
func (w *CLI) CacheWarmCommand(wget, tmpDir string) (string, error) {
	url := w.host.Config.String("wpcli_domain", "")
	if url == "" {
		return "", errors.New(`no domain name set for current host. "wpcli_domain" empty`)
	}
	scheme := w.host.Config.String("wpcli_scheme", "")
	if scheme != "http" && scheme != "https" {
		return "", errors.New(`invalid scheme set for current host. "wpcli_scheme" empty or not http/https`)
	}
	return fmt.Sprintf(`%s -e robots=off -nv --ignore-length --no-check-certificate --directory-prefix="%s" --spider --recursive --no-directories --domains=%s --content-disposition --reject-regex "(.*)\?(.*)" --limit-rate=1024k %s://%s/`,
		wget, filepath.Join(tmpDir, "wget"), url, scheme, url), nil
}

// Run runs a wp sub-command on h through the context.
func Run(c *recipe.Context, h *host.Host, command string, opts ...task.Option) (string, error) {
	return c.RunOn(h, New(h).Command(command), opts...)
}

// CacheFlush flushes the object cache on h.
func CacheFlush(c *recipe.Context, h *host.Host) error {
	_, err := Run(c, h, "cache flush")
	return err
}

// Register adds the wp tasks.
func Register(r *recipe.Registry) {
	r.Set("wpcli_webroot", "")

	r.Task("wp", func(c *recipe.Context) error {
		command := c.Option(OptionName)
		if command == "" {
			return errors.New(`wp command requires option wp. For example wpdeploy run wp --wp="cli version"`)
		}
		_, err := Run(c, c.Host, command, c.RealTimeOutput())
		return err
	}).Desc("Run a wp cli command")

	r.Task("wp:cache:flush", func(c *recipe.Context) error {
		return CacheFlush(c, c.Host)
	}).Desc("Clear wordpress cache")

	r.Task("wp:cache:warm", func(c *recipe.Context) error {
		tmp := os.TempDir()
		if info, err := os.Stat(tmp); err != nil || !info.IsDir() {
			return errors.New("no temporary directory could be found")
		}
		wget, err := c.WhichLocal("wget")
		if err != nil {
			return err
		}
		command, err := New(c.Host).CacheWarmCommand(wget, tmp)
		if err != nil {
			return err
		}
		c.Warning("%s", command)
		_, err = c.RunLocally(command, c.RealTimeOutput(), task.WithTimeout(0))
		return err
	}).Desc("Warm external edge cache")
}
