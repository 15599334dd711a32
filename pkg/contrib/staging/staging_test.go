package staging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe/recipetest"
)

func creds(stage string) map[string]any {
	return map[string]any{
		"stage":        stage,
		"mysql_domain": stage + ".example.com",
		"mysql_host":   "127.0.0.1",
		"mysql_name":   "wp_" + stage,
		"mysql_pass":   "secret",
		"mysql_port":   "3306",
		"mysql_user":   "wp",
	}
}

func TestStagingPullAll(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Global.Set("shared_dirs", []string{"wp-content/uploads"})
	h.Global.Set("writable_dirs", []string{"wp-content/uploads"})
	h.Remote("production", creds("production"))
	h.Remote("staging", creds("staging"))
	h.Local(creds("development"))
	h.Runner("production").On("[ -d", "+true")
	h.Runner("localhost").On("SHOW TABLES", "Tables_in_wp_staging\nwp_posts")

	require.NoError(t, h.Run("staging:pull-all", "production"))

	r := h.Runner("localhost")
	assert.True(t, r.Ran("rsync -rlztv --delete deploy@production.example.com:/var/www/production/current/wp-content/uploads/ deploy@staging.example.com:/var/www/staging/current/wp-content/uploads/"))
	assert.True(t, r.Ran("wp_staging -e 'DROP TABLE `wp_posts`'"))
	assert.True(t, r.Ran(`--search="production.example.com" --replace="staging.example.com"`))
}

func TestStagingRefusesToPullIntoItself(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", creds("production"))
	h.Remote("staging", creds("staging"))

	err := h.Run("staging:db:pull-replace", "staging")
	assert.ErrorIs(t, err, host.ErrSameHost)
}

func TestStagingHostMustExist(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", creds("production"))

	err := h.Run("staging:files:pull", "production")
	assert.ErrorIs(t, err, host.ErrNotFound)
}
