package kv

import (
	"fmt"
	"regexp"
	"strings"

	// Database drivers registered with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect abstracts the differences between the supported backends:
// driver registration name, DSN construction, placeholder style and the
// blob column type. The SQL surface is otherwise identical.
type dialect interface {
	driverName() string
	dsn(cfg Config) string
	placeholder(n int) string
	blobType() string
}

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) dsn(cfg Config) string {
	parts := []string{}
	host := cfg.Host
	if cfg.UnixSocketDir != "" {
		// libpq convention: a directory path as host selects the
		// unix domain socket in that directory.
		host = cfg.UnixSocketDir
	}
	if host != "" {
		parts = append(parts, "host="+host)
	}
	if cfg.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", cfg.Port))
	}
	if cfg.User != "" {
		parts = append(parts, "user="+cfg.User)
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+cfg.Password)
	}
	parts = append(parts, "dbname="+cfg.Database)
	return strings.Join(parts, " ")
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) blobType() string { return "BYTEA" }

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(cfg Config) string {
	return cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) blobType() string { return "BLOB" }

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, configError("select dialect", fmt.Errorf("unsupported driver %q", driver))
	}
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteTable validates and quotes a table name. Table names cannot be
// bound as statement parameters, so they are restricted to identifier
// characters before being interpolated.
func quoteTable(name string) (string, error) {
	if !tableNameRe.MatchString(name) {
		return "", configError("quote table", fmt.Errorf("invalid table name %q", name))
	}
	return `"` + name + `"`, nil
}
