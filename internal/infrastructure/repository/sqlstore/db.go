// Package sqlstore persists documents and approvals in postgres (pgx) or sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case Postgres, "pgx", "postgresql":
		return Postgres, nil
	case SQLite, "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported db driver %q", raw)
	}
}

func (d Dialect) driverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

func (d Dialect) gooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for sqlite. Queries must use placeholders in argument order.
func (d Dialect) rebind(query string) string {
	if d != SQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

// sqliteTimeLayout is fixed width so that TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d Dialect) timeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (d Dialect) nullableTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.timeArg(*t)
}

func (d Dialect) lockClause() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// OpenDB opens and pings a pool for the given dialect.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == SQLite {
		// sqlite serializes writers; one connection keeps the pragmas and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if dialect == SQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %q: %w", pragma, err)
			}
		}
	}
	return db, nil
}

// flexTime scans timestamps stored natively (postgres) or as TEXT (sqlite).
type flexTime struct {
	Time  time.Time
	Valid bool
}

var textTimeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *flexTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *flexTime) parse(raw string) error {
	for _, layout := range textTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parse time %q", raw)
}

func (t flexTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
