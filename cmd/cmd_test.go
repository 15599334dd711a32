package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpdeploy/pkg/recipe"
)

const testConfig = `
application: example.com
recipe: devstageprod
settings:
  keep_releases: 5
hosts:
  production:
    hostname: example.com
    remote_user: deploy
    deploy_path: /var/www/example
    labels: {region: eu}
    settings:
      stage: production
      wpcli_domain: example.com
  localhost:
    local: true
    deploy_path: /home/me/sites/example
    settings: {stage: development}
`

const stagelessConfig = `
recipe: cloudpanel
hosts:
  site:
    hostname: cp.example.com
    deploy_path: /home/u/htdocs
`

// execute runs the root command with args against a fresh deployment file.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, testConfig, stdin, args...)
}

func executeWith(t *testing.T, config, stdin string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))

	dryRun, assumeYes, wpCommand, listAll = false, false, "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", path, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunDryRun(t *testing.T) {
	out, err := execute(t, "", "--dry-run", "run", "wp:cache:flush", "production")
	require.NoError(t, err)

	assert.Contains(t, out, "task wp:cache:flush [production]")
	assert.Contains(t, out, `[DRY-RUN] Would run command on production: wp cache flush --path="/var/www/example/current" --url="example.com"`)
	assert.Contains(t, out, "Successfully ran wp:cache:flush")
}

func TestRunWpOption(t *testing.T) {
	out, err := execute(t, "", "--dry-run", "run", "wp", "stage=production", "--wp", "cli version")
	require.NoError(t, err)
	assert.Contains(t, out, "wp cli version --path=")
}

func TestRunUnknownTask(t *testing.T) {
	_, err := execute(t, "", "run", "deploy:nothing", "production")
	assert.ErrorIs(t, err, recipe.ErrUnknownTask)
}

func TestRunRequiresSelector(t *testing.T) {
	_, err := execute(t, "", "run", "wp:cache:flush")
	assert.Error(t, err)
}

func TestRunDestructiveTaskNeedsConfirmation(t *testing.T) {
	out, err := execute(t, "no\n", "run", "db:clear", "production")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, out, "db:clear overwrites data on the destination host")
}

func TestHosts(t *testing.T) {
	out, err := execute(t, "", "hosts")
	require.NoError(t, err)
	assert.Contains(t, out, "deploy@example.com")
	assert.Contains(t, out, "stage=production")
	assert.Contains(t, out, "[region=eu]")
	assert.Contains(t, out, "local")
}

func TestList(t *testing.T) {
	out, err := execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Recipe: devstageprod")
	assert.Contains(t, out, "staging:pull-all")
	assert.NotContains(t, out, "after:files:pull")
}

func TestConfigDump(t *testing.T) {
	out, err := execute(t, "", "config", "production")
	require.NoError(t, err)
	assert.Contains(t, out, "keep_releases: 5")
	assert.Contains(t, out, "deploy_path: /var/www/example")
	assert.Contains(t, out, "wpcli_domain: example.com")
}

func TestCheckDryRun(t *testing.T) {
	out, err := execute(t, "", "--dry-run", "check")
	require.NoError(t, err)

	prod := strings.Index(out, "[DRY-RUN] Would run command on production: hostname\n")
	local := strings.Index(out, "[DRY-RUN] Would run command on localhost: hostname\n")
	require.GreaterOrEqual(t, prod, 0)
	require.GreaterOrEqual(t, local, 0)
	assert.Less(t, prod, local)
}

func TestConfirmationLeavesInputForLaterPrompts(t *testing.T) {
	assumeYes = false
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("yes\ny\n"))

	require.NoError(t, confirmAction(in, &out, "rollback overwrites data on the destination host"))
	ok, err := recipe.NewConsole(&out, in, false).Confirm("Continue rollback to 20240101?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStagesOnlyCheckedByDatabaseTasks(t *testing.T) {
	out, err := executeWith(t, stagelessConfig, "", "hosts")
	require.NoError(t, err)
	assert.Contains(t, out, "cp.example.com")

	_, err = executeWith(t, stagelessConfig, "", "--dry-run", "run", "wp:cache:flush", "site")
	require.NoError(t, err)

	_, err = executeWith(t, stagelessConfig, "", "--dry-run", "run", "db:backup", "site")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage option must be set for host site")
}

func TestNeedsConfirmation(t *testing.T) {
	assert.NotEmpty(t, needsConfirmation("db:pull-replace"))
	assert.NotEmpty(t, needsConfirmation("rollback"))
	assert.Empty(t, needsConfirmation("deploy"))
	assert.Empty(t, needsConfirmation("wp:cache:flush"))
}
