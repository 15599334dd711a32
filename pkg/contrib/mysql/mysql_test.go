package mysql

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe/recipetest"
)

func creds(stage string) map[string]any {
	return map[string]any{
		"stage":        stage,
		"mysql_domain": stage + ".example.com",
		"mysql_host":   "db-" + stage,
		"mysql_name":   "wp_" + stage,
		"mysql_pass":   "pw-" + stage,
		"mysql_port":   3306,
		"mysql_user":   "wp",
	}
}

func newHarness(t *testing.T) *recipetest.Harness {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", creds("production"))
	h.Remote("staging", creds("staging"))
	h.Local(creds("development"))
	return h
}

func TestConnectionArgsEscapeQuotes(t *testing.T) {
	hst := &host.Host{Alias: "x"}
	h := recipetest.New(t)
	hst.Config = h.Global
	for k, v := range creds("production") {
		h.Global.Set(k, v)
	}
	h.Global.Set("mysql_pass", "p\"a`ss")

	c, err := HostCredentials(hst)
	require.NoError(t, err)
	assert.Equal(t, "--host=\"db-production\" --port=\"3306\" --user=\"wp\" --password=\"p\\\"a\\`ss\"", c.ConnectionArgs())
}

func TestHostCredentialsRequiresEveryKey(t *testing.T) {
	h := recipetest.New(t)
	kv := creds("staging")
	delete(kv, "mysql_port")
	hst := h.Remote("staging", kv)

	_, err := HostCredentials(hst)
	assert.ErrorContains(t, err, "mysql_port is not defined")
}

func TestCommands(t *testing.T) {
	b := Binaries{MySQL: "/usr/bin/mysql", MySQLDump: "/usr/bin/mysqldump", Gzip: "/bin/gzip", PHP: "/usr/bin/php"}
	src := Credentials{Domain: "example.com", Host: "db1", Name: "wp", Pass: "a", Port: "3306", User: "u"}
	dst := Credentials{Domain: "example.test", Host: "127.0.0.1", Name: "wp_local", Pass: "b", Port: "3307", User: "root"}

	assert.Equal(t,
		`/usr/bin/mysqldump --quick --host="db1" --port="3306" --user="u" --password="a" wp | /usr/bin/mysql --host="127.0.0.1" --port="3307" --user="root" --password="b" wp_local`,
		b.TransferCommand("--quick", src, dst))

	assert.Equal(t,
		`/usr/bin/mysqldump --quick --host="db1" --port="3306" --user="u" --password="a" wp > "db.sql" && /bin/gzip "db.sql"`,
		b.BackupCommand("--quick", src, "db.sql"))

	assert.Equal(t,
		`/usr/bin/php srdb.cli.php --exclude-tables="wp_users,wp_log" --host="127.0.0.1" --port="3307" --user="root" --pass="b" --name="wp_local" --search="example.com" --replace="example.test"`,
		b.FindReplaceCommand("srdb.cli.php", []string{"wp_users", "wp_log"}, src, dst))

	assert.NotContains(t, b.FindReplaceCommand("srdb.cli.php", nil, src, dst), "--exclude-tables")
	assert.Equal(t, "/usr/bin/mysql "+dst.ConnectionArgs()+" wp_local -e 'DROP TABLE `wp_posts`'", b.DropTableCommand(dst, "wp_posts"))
}

func TestDumpName(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 5, 3, 0, time.UTC)
	assert.Equal(t, "db-production-wp-20261019080503.sql", DumpName("production", "wp", ts))
}

func TestParseTables(t *testing.T) {
	assert.Equal(t, []string{"wp_options", "wp_posts"}, ParseTables("Tables_in_wp\nwp_options\nwp_posts\n"))
	assert.Nil(t, ParseTables("Tables_in_wp"))
	assert.Nil(t, ParseTables(""))
}

func TestPullRefusesSameHost(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("production", creds("production"))
	h.Local(creds("development"))
	twin := h.Local(creds("development"))
	twin.Alias = "twin"

	err := h.Run("db:pull", "twin")
	require.Error(t, err)
	assert.ErrorIs(t, err, host.ErrSameHost)
	assert.False(t, h.Runner("localhost").Ran("mysqldump"))
}

func TestClearRefusesProduction(t *testing.T) {
	h := newHarness(t)
	err := h.Run("db:clear", "production")
	assert.ErrorIs(t, err, host.ErrProduction)
	assert.Empty(t, h.Runner("localhost").Commands())
}

func TestClearRefusesProductionFlag(t *testing.T) {
	h := newHarness(t)
	staging, err := hostByAlias(h, "staging")
	require.NoError(t, err)
	staging.Config.Set("production", true)

	err = h.Run("db:clear", "staging")
	assert.ErrorIs(t, err, host.ErrProduction)
	assert.False(t, h.Runner("localhost").Ran("DROP TABLE"))
}

func TestClearDropsEveryTable(t *testing.T) {
	h := newHarness(t)
	h.Runner("localhost").On("SHOW TABLES", "Tables_in_wp_staging\nwp_options\nwp_posts")

	require.NoError(t, h.Run("db:clear", "staging"))

	r := h.Runner("localhost")
	assert.True(t, r.Ran("-e 'DROP TABLE `wp_options`'"))
	assert.True(t, r.Ran("-e 'DROP TABLE `wp_posts`'"))
	assert.False(t, r.Ran("DROP TABLE `Tables_in_wp_staging`"))
	assert.True(t, r.Ran(`--host="db-staging"`))
}

func TestPullClearsThenTransfers(t *testing.T) {
	h := newHarness(t)
	h.Runner("localhost").On("SHOW TABLES", "Tables_in_wp_development\nwp_posts")

	require.NoError(t, h.Run("db:pull", "production"))

	cmds := h.Runner("localhost").Commands()
	drop, transfer := -1, -1
	for i, c := range cmds {
		if strings.Contains(c, "DROP TABLE `wp_posts`") {
			drop = i
		}
		if strings.Contains(c, "mysqldump "+DefaultDumpSwitches+` --host="db-production"`) && strings.Contains(c, `| mysql --host="db-development"`) {
			transfer = i
		}
	}
	require.NotEqual(t, -1, drop)
	require.NotEqual(t, -1, transfer)
	assert.Less(t, drop, transfer)
}

func TestPullReplaceRunsSearchReplace(t *testing.T) {
	h := newHarness(t)
	h.Global.Set("mysql_find_replace_table_exclusions", []string{"wp_users"})

	require.NoError(t, h.Run("db:pull-replace", "production"))

	assert.True(t, h.Runner("localhost").Ran(`php `+DefaultSearchReplaceScript+` --exclude-tables="wp_users" --host="db-development"`))
	assert.True(t, h.Runner("localhost").Ran(`--search="production.example.com" --replace="development.example.com"`))
}

func TestStagesAreValidated(t *testing.T) {
	h := recipetest.New(t)
	Register(h.Registry)
	h.Remote("staging", creds("staging"))
	h.Local(creds("development"))

	err := h.Run("db:pull", "staging")
	assert.ErrorContains(t, err, "at least one host stage option must be set to production")
}

func TestBackup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.Run("db:backup", "production"))
	assert.True(t, h.Runner("localhost").Ran(`> "db-production-wp_production-`))
	assert.True(t, h.Runner("localhost").Ran(`.sql" && gzip "db-production-wp_production-`))
}

func hostByAlias(h *recipetest.Harness, alias string) (*host.Host, error) {
	return h.Hosts().FromAlias(alias)
}
