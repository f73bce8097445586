package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// DIALECTS
// =============================================================================

// Dialect selects the SQL flavour of the backing database.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

// serial is the column definition of an auto-incrementing sequence key.
func (d Dialect) serial() string {
	if d == Postgres {
		return "seq BIGSERIAL PRIMARY KEY"
	}
	return "seq INTEGER PRIMARY KEY AUTOINCREMENT"
}

// =============================================================================
// SCHEMA
// =============================================================================

// Dates are TEXT in YYYY-MM-DD form so they compare as strings; timestamps
// are RFC 3339 TEXT. Amounts are decimal TEXT. The seq columns keep
// insertion order independent of the random ids.
func (d Dialect) schema() []string {
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS policies (
			%s,
			id TEXT NOT NULL UNIQUE,
			ilit_name TEXT NOT NULL,
			insured_name TEXT,
			trustees TEXT,
			insurance_company TEXT,
			policy_number TEXT,
			frequency TEXT,
			notes TEXT,
			premium_due_date TEXT,
			premium_amount TEXT,
			gift_date TEXT,
			crummey_letter_send_date TEXT,
			crummey_letter_sent_date TEXT,
			gift_date_explicit INTEGER NOT NULL DEFAULT 0,
			send_date_explicit INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			status_overridden INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, d.serial()),
		`CREATE INDEX IF NOT EXISTS idx_policies_due ON policies(premium_due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_send ON policies(crummey_letter_send_date)`,
		`CREATE INDEX IF NOT EXISTS idx_policies_number ON policies(policy_number)`,

		`CREATE TABLE IF NOT EXISTS settings (
			id TEXT PRIMARY KEY,
			reminder_lead_days INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS clients (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS audit_log (
			%s,
			id TEXT NOT NULL UNIQUE,
			occurred_at TEXT NOT NULL,
			action TEXT NOT NULL,
			policy_id TEXT,
			description TEXT NOT NULL
		)`, d.serial()),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS recalculation_runs (
			%s,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			lead_days INTEGER NOT NULL,
			updated INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		)`, d.serial()),
	}
}
