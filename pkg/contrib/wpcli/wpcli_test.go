package wpcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe/recipetest"
	"wpdeploy/pkg/settings"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		name string
		host *host.Host
		want string
	}{
		{
			name: "remote uses current release",
			host: &host.Host{Alias: "production", DeployPath: "/var/www/site", Config: settings.New(nil)},
			want: `wp plugin list --path="/var/www/site/current"`,
		},
		{
			name: "local uses deploy path",
			host: &host.Host{Alias: "localhost", DeployPath: "/home/dev/site", Local: true, Config: settings.New(nil)},
			want: `wp plugin list --path="/home/dev/site"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.host).Command("plugin list"))
		})
	}
}

func TestCommandWithWebrootAndDomain(t *testing.T) {
	cfg := settings.New(nil)
	cfg.Set("wpcli_webroot", "web/wp")
	cfg.Set("wpcli_domain", "example.com")
	h := &host.Host{Alias: "staging", DeployPath: "/srv/site", Config: cfg}

	assert.Equal(t, `wp cache flush --path="/srv/site/current/web/wp" --url="example.com"`, New(h).Command("cache flush"))
}

func TestCacheWarmCommand(t *testing.T) {
	cfg := settings.New(nil)
	h := &host.Host{Alias: "production", DeployPath: "/srv/site", Config: cfg}

	_, err := New(h).CacheWarmCommand("wget", "/tmp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wpcli_domain")

	cfg.Set("wpcli_domain", "example.com")
	cfg.Set("wpcli_scheme", "ftp")
	_, err = New(h).CacheWarmCommand("wget", "/tmp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wpcli_scheme")

	cfg.Set("wpcli_scheme", "https")
	cmd, err := New(h).CacheWarmCommand("/usr/bin/wget", "/tmp")
	require.NoError(t, err)
	assert.Contains(t, cmd, `/usr/bin/wget -e robots=off`)
	assert.Contains(t, cmd, `--directory-prefix="/tmp/wget"`)
	assert.Contains(t, cmd, `--domains=example.com`)
	assert.Contains(t, cmd, `--reject-regex "(.*)\?(.*)"`)
	assert.Contains(t, cmd, " https://example.com/")
}

func TestWpTaskRequiresOption(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", nil)

	err := h.Run("wp", "production")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires option wp")
	assert.Empty(t, h.Runner("production").Commands())
}

func TestWpTaskRunsOption(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", nil)
	h.Options[OptionName] = "cli version"

	require.NoError(t, h.Run("wp", "production"))
	assert.True(t, h.Runner("production").Ran(`wp cli version --path="/var/www/production/current"`))
}

func TestCacheFlushTask(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", map[string]any{"wpcli_domain": "example.com"})

	require.NoError(t, h.Run("wp:cache:flush", "production"))
	assert.True(t, h.Runner("production").Ran(`wp cache flush --path="/var/www/production/current" --url="example.com"`))
}

func TestCacheWarmRunsLocally(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Local(nil)
	h.Remote("production", map[string]any{"wpcli_domain": "example.com", "wpcli_scheme": "https"})

	require.NoError(t, h.Run("wp:cache:warm", "production"))

	assert.Empty(t, h.Runner("production").Commands())
	assert.True(t, h.Runner("localhost").Ran("wget -e robots=off"))
	assert.Contains(t, h.Out.String(), "https://example.com/")
}
