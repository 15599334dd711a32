package filetransfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe/recipetest"
	"wpdeploy/pkg/settings"
)

func remote(alias, user, hostname string, port int) *host.Host {
	return &host.Host{Alias: alias, RemoteUser: user, Hostname: hostname, Port: port, DeployPath: "/var/www/" + alias, Config: settings.New(nil)}
}

func TestEndpoint(t *testing.T) {
	prod := remote("production", "deploy", "example.com", 0)
	prodPort := remote("production", "deploy", "example.com", 2222)
	staging := remote("staging", "deploy", "example.com", 0)
	other := remote("staging", "deploy", "staging.example.com", 0)
	local := &host.Host{Alias: "localhost", Local: true, Config: settings.New(nil)}

	assert.Equal(t, "deploy@example.com:/p/", Endpoint(prod, local, "/p/"))
	assert.Equal(t, `-e "ssh -p 2222" deploy@example.com:/p/`, Endpoint(prodPort, local, "/p/"))
	assert.Equal(t, "/p/", Endpoint(local, prod, "/p/"))
	assert.Equal(t, "/p/", Endpoint(prod, staging, "/p/"))
	assert.Equal(t, "deploy@example.com:/p/", Endpoint(prod, other, "/p/"))
}

func TestRsyncCommand(t *testing.T) {
	prod := remote("production", "deploy", "example.com", 0)
	local := &host.Host{Alias: "localhost", Local: true, Config: settings.New(nil)}

	got := RsyncCommand("/usr/bin/rsync", DefaultSwitches, []string{"*.log", "cache/"}, prod, "/var/www/production/current/up/", local, "/home/dev/site/up/")
	assert.Equal(t, `/usr/bin/rsync -rlztv --delete --exclude "*.log" --exclude "cache/" deploy@example.com:/var/www/production/current/up/ /home/dev/site/up/`, got)
}

func TestSharedWritable(t *testing.T) {
	assert.Equal(t, []string{"wp-content/uploads"},
		SharedWritable([]string{"wp-content/uploads", "wp-content/languages"}, []string{"wp-content/cache", "wp-content/uploads"}))
	assert.Empty(t, SharedWritable(nil, []string{"a"}))
}

func newHarness(t *testing.T) *recipetest.Harness {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("shared_dirs", []string{"wp-content/uploads", "wp-content/languages"})
	h.Global.Set("writable_dirs", []string{"wp-content/uploads", "wp-content/languages"})
	h.Remote("staging", map[string]any{"stage": "staging"})
	h.Local(map[string]any{"stage": "development"})
	return h
}

func TestFilesPull(t *testing.T) {
	h := newHarness(t)
	h.Runner("staging").On("[ -d /var/www/staging/current/wp-content/uploads/ ]", "+true")

	require.NoError(t, h.Run("files:pull", "staging"))

	r := h.Runner("localhost")
	assert.True(t, r.Ran("rsync -rlztv --delete deploy@staging.example.com:/var/www/staging/current/wp-content/uploads/ /home/dev/site/wp-content/uploads/"))
	assert.False(t, r.Ran("wp-content/languages"))
	assert.Contains(t, h.Out.String(), "/var/www/staging/current/wp-content/languages/ does not exist on source.")
}

func TestFilesPullNoSharedWritableDirs(t *testing.T) {
	h := newHarness(t)
	h.Global.Set("writable_dirs", []string{"wp-content/cache"})

	require.NoError(t, h.Run("files:pull", "staging"))
	assert.False(t, h.Runner("localhost").Ran("rsync"))
	assert.Contains(t, h.Out.String(), "No shared writable directories are defined")
}

func TestFilesPullGuards(t *testing.T) {
	h := newHarness(t)
	err := h.Run("files:pull", "localhost")
	assert.ErrorIs(t, err, host.ErrSameHost)

	other := h.Local(map[string]any{"stage": "development"})
	other.Alias = "checkout"
	other.DeployPath = "/home/dev/checkout"
	err = h.Run("files:pull", "checkout")
	assert.ErrorIs(t, err, host.ErrLocalhostSource)

	h2 := recipetest.New(t)
	Register(h2.Registry)
	h2.Remote("staging", map[string]any{"stage": "staging"})
	h2.Local(map[string]any{"stage": "development", "production": true})
	err = h2.Run("files:pull", "staging")
	assert.ErrorIs(t, err, host.ErrProduction)
}
