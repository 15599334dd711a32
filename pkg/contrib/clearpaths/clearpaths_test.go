package clearpaths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/recipe/recipetest"
)

func TestCommand(t *testing.T) {
	assert.Equal(t, "find /var/www/cache -mindepth 1 -delete", Command("/var/www/cache", false))
	assert.Equal(t, "sudo find '/var/www/my cache' -mindepth 1 -delete", Command("/var/www/my cache", true))
}

func TestClearSkipsRelativePaths(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", map[string]any{
		"clear_server_paths": []string{"wp-content/cache", "../etc", "/var/www/production/shared/cache"},
	})
	h.Runner("production").On("echo +true", "+true")

	require.NoError(t, h.Run(TaskName, "production"))

	r := h.Runner("production")
	assert.True(t, r.Ran("find /var/www/production/shared/cache -mindepth 1 -delete"))
	for _, cmd := range r.Commands() {
		assert.NotContains(t, cmd, "wp-content/cache")
		assert.NotContains(t, cmd, "../etc")
	}
	assert.Contains(t, h.Out.String(), `Path "wp-content/cache" is not absolute. Skipping`)
}

func TestClearSkipsMissingDirectories(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", map[string]any{
		"clear_server_paths":    []string{"/var/www/gone"},
		"clear_server_use_sudo": true,
	})

	require.NoError(t, h.Run(TaskName, "production"))

	assert.False(t, h.Runner("production").Ran("-delete"))
	assert.Contains(t, h.Out.String(), `Path "/var/www/gone" not found. Skipping`)
}

func TestClearUsesSudo(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("clear_server_use_sudo", true)
	h.Remote("production", map[string]any{"clear_server_paths": []string{"{{deploy_path}}/shared/tmp"}})
	h.Runner("production").On("echo +true", "+true")

	require.NoError(t, h.Run(TaskName, "production"))

	assert.True(t, h.Runner("production").Ran("sudo find /var/www/production/shared/tmp -mindepth 1 -delete"))
}

func TestClearWithNoPathsIsNoop(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", nil)

	require.NoError(t, h.Run(TaskName, "production"))
	assert.Empty(t, h.Runner("production").Commands())
}
