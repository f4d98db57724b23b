package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC text layout used where the engine has no
// native timestamp type. Lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect captures the SQL differences between engines.
type Dialect struct {
	Name string
	// DDL is the schema script applied by Migrate.
	DDL string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
	// LockFingerprint serializes upserts of one fingerprint inside tx. Nil
	// when the engine already serializes writers.
	LockFingerprint func(ctx context.Context, tx *sql.Tx, fingerprint string) error
	// TextTime stores timestamps as TimeLayout text.
	TextTime bool
}

// SQLite serializes writers with a single connection, so it needs no lock.
func SQLite(ddl string) Dialect {
	return Dialect{Name: "sqlite", DDL: ddl, TextTime: true}
}

// Postgres takes a transaction-scoped advisory lock keyed by the fingerprint
// hash so racing upserts of the same content queue behind each other.
func Postgres(ddl string) Dialect {
	return Dialect{
		Name:     "postgres",
		DDL:      ddl,
		Numbered: true,
		LockFingerprint: func(ctx context.Context, tx *sql.Tx, fingerprint string) error {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, fingerprint); err != nil {
				return fmt.Errorf("lock fingerprint: %w", err)
			}
			return nil
		},
	}
}

// rebind rewrites '?' placeholders for numbered dialects.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d.TextTime {
		return t.UTC().Format(TimeLayout)
	}
	return t.UTC()
}

// scanTime accepts whatever the driver hands back for a timestamp column.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("null timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}
