// Package mysql copies, backs up and clears MySQL databases between hosts by
// piping mysqldump into mysql on the machine running wpdeploy.
//
// Global configuration:
//   - mysql_dump_switches: mysqldump command line switches
//   - mysql_find_replace_table_exclusions: tables skipped by find/replace
//   - mysql_search_replace_script: path to srdb.cli.php
//
// Host configuration (all required): mysql_domain, mysql_host, mysql_name,
// mysql_pass, mysql_port, mysql_user. Set production: true on a host to
// protect it from anything destructive.
package mysql

import (
	"fmt"
	"strings"
	"time"

	"wpdeploy/pkg/host"
	"wpdeploy/pkg/recipe"
	"wpdeploy/pkg/settings"
	"wpdeploy/pkg/task"
)

// DefaultDumpSwitches are passed to mysqldump unless configured otherwise.
const DefaultDumpSwitches = "--max_allowed_packet=128M --single-transaction --quick --extended-insert --allow-keywords --events --routines --compress --extended-insert --create-options --add-drop-table --add-locks --no-tablespaces"

// DefaultSearchReplaceScript is where composer installs interconnect/it's
// search-replace-db.
const DefaultSearchReplaceScript = "vendor/interconnectit/search-replace-db/srdb.cli.php"

// CredentialKeys are the host settings every database operation needs.
var CredentialKeys = []string{
	"mysql_domain",
	"mysql_host",
	"mysql_name",
	"mysql_pass",
	"mysql_port",
	"mysql_user",
}

// Credentials describe one host's database.
type Credentials struct {
	Domain string
	Host   string
	Name   string
	Pass   string
	Port   string
	User   string
}

// HostCredentials reads the credential keys defined on h itself.
func HostCredentials(h *host.Host) (Credentials, error) {
	if err := h.Config.Require(CredentialKeys...); err != nil {
		return Credentials{}, fmt.Errorf("host %s: %w", h.Alias, err)
	}
	get := func(key string) string { return cleanValue(h.Config.String(key, "")) }
	return Credentials{
		Domain: get("mysql_domain"),
		Host:   get("mysql_host"),
		Name:   get("mysql_name"),
		Pass:   get("mysql_pass"),
		Port:   get("mysql_port"),
		User:   get("mysql_user"),
	}, nil
}

// cleanValue escapes characters that would end a double quoted shell word.
func cleanValue(v string) string {
	v = strings.ReplaceAll(v, "`", "\\`")
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

// ConnectionArgs renders the mysql/mysqldump connection switches.
func (c Credentials) ConnectionArgs() string {
	return fmt.Sprintf(`--host="%s" --port="%s" --user="%s" --password="%s"`, c.Host, c.Port, c.User, c.Pass)
}

// Binaries are the local tool paths used by the commands.
type Binaries struct {
	MySQL     string
	MySQLDump string
	Gzip      string
	PHP       string
}

// TransferCommand streams src's database into dst's.
func (b Binaries) TransferCommand(switches string, src, dst Credentials) string {
	return fmt.Sprintf("%s %s %s %s | %s %s %s",
		b.MySQLDump, switches, src.ConnectionArgs(), src.Name,
		b.MySQL, dst.ConnectionArgs(), dst.Name)
}

// BackupCommand dumps creds' database to dumpName and gzips it.
func (b Binaries) BackupCommand(switches string, creds Credentials, dumpName string) string {
	return fmt.Sprintf(`%s %s %s %s > "%s" && %s "%s"`,
		b.MySQLDump, switches, creds.ConnectionArgs(), creds.Name, dumpName, b.Gzip, dumpName)
}

// Connection is the mysql client invocation for creds' database.
func (b Binaries) Connection(creds Credentials) string {
	return fmt.Sprintf("%s %s %s", b.MySQL, creds.ConnectionArgs(), creds.Name)
}

// ShowTablesCommand lists creds' tables, one per line after a header.
func (b Binaries) ShowTablesCommand(creds Credentials) string {
	return b.Connection(creds) + " -e 'SHOW TABLES' "
}

// DropTableCommand drops a single table.
func (b Binaries) DropTableCommand(creds Credentials, table string) string {
	return fmt.Sprintf("%s -e 'DROP TABLE `%s`'", b.Connection(creds), table)
}

// FindReplaceCommand rewrites src's domain to dst's in dst's database.
func (b Binaries) FindReplaceCommand(script string, exclusions []string, src, dst Credentials) string {
	parts := []string{b.PHP, script}
	if len(exclusions) > 0 {
		parts = append(parts, fmt.Sprintf(`--exclude-tables="%s"`, strings.Join(exclusions, ",")))
	}
	parts = append(parts,
		fmt.Sprintf(`--host="%s" --port="%s" --user="%s" --pass="%s"`, dst.Host, dst.Port, dst.User, dst.Pass),
		fmt.Sprintf(`--name="%s"`, dst.Name),
		fmt.Sprintf(`--search="%s"`, src.Domain),
		fmt.Sprintf(`--replace="%s"`, dst.Domain),
	)
	return strings.Join(parts, " ")
}

// DumpName is the backup file name for alias's database at t.
func DumpName(alias, database string, t time.Time) string {
	return fmt.Sprintf("db-%s-%s-%s.sql", alias, database, t.Format("20060102150405"))
}

// ParseTables drops the header line of SHOW TABLES output.
func ParseTables(out string) []string {
	lines := strings.Split(out, "\n")
	if len(lines) <= 1 {
		return nil
	}
	var tables []string
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			tables = append(tables, line)
		}
	}
	return tables
}

// MySQL runs database operations from a task context.
type MySQL struct {
	c   *recipe.Context
	now func() time.Time
}

// New validates the host stages and returns a MySQL bound to c.
func New(c *recipe.Context) (*MySQL, error) {
	if err := c.Hosts().ValidateStages(); err != nil {
		return nil, err
	}
	return &MySQL{c: c, now: time.Now}, nil
}

func (m *MySQL) config() *settings.Store {
	return m.c.Config()
}

func (m *MySQL) which(names ...string) (map[string]string, error) {
	found := make(map[string]string, len(names))
	for _, name := range names {
		path, err := m.c.WhichLocal(name)
		if err != nil {
			return nil, err
		}
		found[name] = path
	}
	return found, nil
}

func unlimited() []task.Option {
	return []task.Option{task.WithTimeout(0)}
}

// Backup dumps src's database into a gzipped file in the working directory.
func (m *MySQL) Backup(src *host.Host) error {
	bins, err := m.which("mysqldump", "gzip")
	if err != nil {
		return err
	}
	creds, err := HostCredentials(src)
	if err != nil {
		return err
	}
	b := Binaries{MySQLDump: bins["mysqldump"], Gzip: bins["gzip"]}
	switches := m.config().String("mysql_dump_switches", DefaultDumpSwitches)
	dumpName := DumpName(src.Alias, creds.Name, m.now())
	_, err = m.c.RunLocally(b.BackupCommand(switches, creds, dumpName), unlimited()...)
	return err
}

// Clear drops every table of h's database. Production hosts are refused.
func (m *MySQL) Clear(h *host.Host) error {
	if err := host.GuardNotProduction(h); err != nil {
		return err
	}
	bins, err := m.which("mysql")
	if err != nil {
		return err
	}
	creds, err := HostCredentials(h)
	if err != nil {
		return err
	}
	b := Binaries{MySQL: bins["mysql"]}

	out, err := m.c.RunLocally(b.ShowTablesCommand(creds))
	if err != nil {
		return err
	}
	for _, table := range ParseTables(out) {
		if _, err := m.c.RunLocally(b.DropTableCommand(creds, table)); err != nil {
			return err
		}
	}
	return nil
}

// Pull replaces dst's database with a copy of src's.
func (m *MySQL) Pull(src, dst *host.Host) error {
	if err := host.GuardDistinct(src, dst, "pulling a database"); err != nil {
		return err
	}
	if err := m.Clear(dst); err != nil {
		return err
	}
	bins, err := m.which("mysqldump", "mysql")
	if err != nil {
		return err
	}
	srcCreds, err := HostCredentials(src)
	if err != nil {
		return err
	}
	dstCreds, err := HostCredentials(dst)
	if err != nil {
		return err
	}
	b := Binaries{MySQLDump: bins["mysqldump"], MySQL: bins["mysql"]}
	switches := m.config().String("mysql_dump_switches", DefaultDumpSwitches)
	opts := append(unlimited(), m.c.RealTimeOutput())
	_, err = m.c.RunLocally(b.TransferCommand(switches, srcCreds, dstCreds), opts...)
	return err
}

// FindReplace rewrites src's domain with dst's domain in dst's database.
func (m *MySQL) FindReplace(src, dst *host.Host) error {
	if err := host.GuardDistinct(src, dst, "find replacing"); err != nil {
		return err
	}
	bins, err := m.which("php")
	if err != nil {
		return err
	}
	srcCreds, err := HostCredentials(src)
	if err != nil {
		return err
	}
	dstCreds, err := HostCredentials(dst)
	if err != nil {
		return err
	}
	b := Binaries{PHP: bins["php"]}
	script := m.config().String("mysql_search_replace_script", DefaultSearchReplaceScript)
	exclusions := m.config().Strings("mysql_find_replace_table_exclusions")
	opts := append(unlimited(), m.c.RealTimeOutput())
	_, err = m.c.RunLocally(b.FindReplaceCommand(script, exclusions, srcCreds, dstCreds), opts...)
	return err
}

// PullReplace pulls src's database into dst and fixes up the domain.
func (m *MySQL) PullReplace(src, dst *host.Host) error {
	if err := host.GuardDistinct(src, dst, "pull replacing"); err != nil {
		return err
	}
	if err := m.Pull(src, dst); err != nil {
		return err
	}
	return m.FindReplace(src, dst)
}

// Register adds the db:* tasks and their defaults.
func Register(r *recipe.Registry) {
	r.Set("mysql_dump_switches", DefaultDumpSwitches)
	r.Set("mysql_find_replace_table_exclusions", []string{})
	r.Set("mysql_search_replace_script", DefaultSearchReplaceScript)

	r.Task("db:backup", func(c *recipe.Context) error {
		m, err := New(c)
		if err != nil {
			return err
		}
		return m.Backup(c.Host)
	}).Desc("Backup the host db to a gzipped dump on localhost using mysqldump")

	r.Task("db:clear", func(c *recipe.Context) error {
		m, err := New(c)
		if err != nil {
			return err
		}
		return m.Clear(c.Host)
	}).Desc("Clear all tables from the host database")

	r.Task("db:pull", withLocalhost(func(m *MySQL, src, dst *host.Host) error {
		return m.Pull(src, dst)
	})).Desc("Pull db from a remote host to localhost using mysqldump")

	r.Task("db:replace", withLocalhost(func(m *MySQL, src, dst *host.Host) error {
		return m.FindReplace(src, dst)
	})).Desc("Replace the host domain with the localhost domain in the local database")

	r.Task("db:pull-replace", withLocalhost(func(m *MySQL, src, dst *host.Host) error {
		return m.PullReplace(src, dst)
	})).Desc("Pull db from a remote host to localhost using mysqldump and replace the host domain with the localhost domain in the local database")
}

func withLocalhost(fn func(m *MySQL, src, dst *host.Host) error) recipe.Func {
	return func(c *recipe.Context) error {
		m, err := New(c)
		if err != nil {
			return err
		}
		local, err := c.Hosts().Localhost()
		if err != nil {
			return err
		}
		return fn(m, c.Host, local)
	}
}
