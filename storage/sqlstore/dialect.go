package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect selects the SQL flavour spoken by the database behind *sql.DB.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

const (
	mysqlDuplicateEntry = 1062
	pgUniqueViolation   = "23505"
)

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return MySQL, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", name)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "mysql"
}

// DSN normalises a connection string for the dialect. MySQL DSNs always get
// parseTime so DATETIME columns scan into time.Time.
func (d Dialect) DSN(dsn string) (string, error) {
	if d != MySQL {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "mysql"
}

// rebind rewrites ? placeholders into $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// isDuplicate reports whether err is a unique key violation.
func (d Dialect) isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// insertIgnore turns a plain INSERT into one that silently skips rows
// conflicting on conflictColumn.
func (d Dialect) insertIgnore(insert, conflictColumn string) string {
	if d == Postgres {
		return insert + " ON CONFLICT (" + conflictColumn + ") DO NOTHING"
	}
	return strings.Replace(insert, "INSERT INTO", "INSERT IGNORE INTO", 1)
}

// upsert appends the dialect's update-on-conflict clause setting each column
// in updateColumns from the proposed row.
func (d Dialect) upsert(insert string, conflictColumns []string, updateColumns ...string) string {
	sets := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		if d == Postgres {
			sets[i] = col + " = EXCLUDED." + col
		} else {
			sets[i] = col + " = VALUES(" + col + ")"
		}
	}
	if d == Postgres {
		return insert + " ON CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}
