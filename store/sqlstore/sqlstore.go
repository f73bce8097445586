/*
Package sqlstore provides a database/sql implementation of ilit.Store.

PURPOSE:
  Persists policies, the settings singleton, clients, the activity log and
  run history in SQLite (mattn/go-sqlite3) or PostgreSQL (pgx stdlib
  driver). Both dialects share one schema; the only differences are the
  placeholder style and the auto-increment column type.

KEY TABLES:
  policies:           One row per PolicyRecord, seq keeps insertion order
  settings:           Singleton row with id 'primary'
  clients:            Distinct insured names
  audit_log:          Append-only activity history
  recalculation_runs: Recalculation and status refresh history

ATOMICITY:
  InsertMany and UpsertByKey run in a single transaction.
  UpdateMany opens one transaction per patch so a failing record never
  rolls back the others.

CONCURRENCY:
  Uses sync.RWMutex around every call. SQLite is limited to a single open
  connection, which also keeps ":memory:" databases alive across calls.

USAGE:
  store, err := sqlstore.OpenSQLite("./data/ilit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ilit.NewServiceFromStore(store)

MIGRATION:
  Schema is auto-migrated on open with CREATE ... IF NOT EXISTS.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ilit-engine/ilit"
)

// Store implements ilit.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex

	// Now stamps createdAt/updatedAt. Tests may pin it.
	Now func() time.Time
}

var _ ilit.Store = (*Store)(nil)

// OpenSQLite opens (or creates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open(string(SQLite), path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return New(db, SQLite)
}

// OpenPostgres connects to PostgreSQL with a postgres:// URL or DSN.
func OpenPostgres(url string) (*Store, error) {
	db, err := sql.Open(string(Postgres), url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, Postgres)
}

// New wraps an open database and migrates the schema. The store takes
// ownership of db.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	store := &Store{db: db, dialect: dialect, Now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate() error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) now() time.Time { return s.Now().UTC() }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, ilit_name, insured_name, trustees, insurance_company,
	policy_number, frequency, notes, premium_due_date, premium_amount,
	gift_date, crummey_letter_send_date, crummey_letter_sent_date,
	gift_date_explicit, send_date_explicit, status, status_overridden,
	created_at, updated_at`

// InsertMany writes all records in one transaction.
func (s *Store) InsertMany(ctx context.Context, records []ilit.PolicyRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := s.insertPolicy(ctx, tx, r); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit policies: %w", err)
	}
	return len(records), nil
}

func (s *Store) insertPolicy(ctx context.Context, q querier, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	now := s.now()
	r.ID = uuid.NewString()
	r.CreatedAt = now
	r.UpdatedAt = now

	query := `INSERT INTO policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, s.dialect.rebind(query),
		r.ID,
		r.IlitName,
		nullString(r.InsuredName),
		nullString(r.Trustees),
		nullString(r.InsuranceCompany),
		nullString(r.PolicyNumber),
		nullString(r.Frequency),
		nullString(r.Notes),
		nullDate(r.PremiumDueDate),
		r.PremiumAmount,
		nullDate(r.GiftDate),
		nullDate(r.CrummeyLetterSendDate),
		nullDate(r.CrummeyLetterSentDate),
		boolInt(r.GiftDateExplicit),
		boolInt(r.SendDateExplicit),
		string(r.Status.Status),
		boolInt(r.Status.Overridden),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return ilit.PolicyRecord{}, fmt.Errorf("failed to insert policy %q: %w", r.IlitName, err)
	}
	return r, nil
}

// ReadAll returns matching records in insertion order.
func (s *Store) ReadAll(ctx context.Context, filter ilit.PolicyFilter) ([]ilit.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + policyColumns + ` FROM policies` + where + ` ORDER BY seq`

	records, err := s.queryPolicies(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	if filter.IlitName == "" {
		return records, nil
	}

	// SQLite's LOWER only folds ASCII, so the name match runs here.
	matched := records[:0]
	for _, r := range records {
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func filterClause(f ilit.PolicyFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.HasDueDate {
		conds = append(conds, "premium_due_date IS NOT NULL")
	}
	if f.HasSendDate {
		conds = append(conds, "crummey_letter_send_date IS NOT NULL")
	}
	if f.Unsent {
		conds = append(conds, "crummey_letter_sent_date IS NULL")
	}
	if !f.SendOnOrBefore.IsZero() {
		conds = append(conds, "crummey_letter_send_date IS NOT NULL AND crummey_letter_send_date <= ?")
		args = append(args, f.SendOnOrBefore.String())
	}
	if !f.DueFrom.IsZero() {
		conds = append(conds, "premium_due_date IS NOT NULL AND premium_due_date >= ?")
		args = append(args, f.DueFrom.String())
	}
	if !f.DueTo.IsZero() {
		conds = append(conds, "premium_due_date IS NOT NULL AND premium_due_date <= ?")
		args = append(args, f.DueTo.String())
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateMany applies each patch in its own transaction.
func (s *Store) UpdateMany(ctx context.Context, patches []ilit.PolicyPatch) ([]ilit.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]ilit.UpdateResult, len(patches))
	for i, p := range patches {
		results[i] = ilit.UpdateResult{ID: p.ID, Err: s.applyPatch(ctx, p)}
	}
	return results, nil
}

func (s *Store) applyPatch(ctx context.Context, p ilit.PolicyPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getPolicy(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	if _, err := s.updatePolicy(ctx, tx, p.Apply(current)); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertByKey merges records into stored ones with the same key, in one transaction.
func (s *Store) UpsertByKey(ctx context.Context, key ilit.UpsertKey, records []ilit.PolicyRecord) (ilit.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ilit.UpsertResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.queryPolicies(ctx, tx,
		`SELECT `+policyColumns+` FROM policies WHERE policy_number IS NOT NULL ORDER BY seq`)
	if err != nil {
		return res, err
	}
	byKey := make(map[string]ilit.PolicyRecord)
	for _, r := range existing {
		if k, ok := key.Of(r); ok {
			if _, seen := byKey[k]; !seen {
				byKey[k] = r
			}
		}
	}

	for _, r := range records {
		k, ok := key.Of(r)
		if ok {
			if stored, found := byKey[k]; found {
				merged, err := s.updatePolicy(ctx, tx, ilit.MergeForUpsert(stored, r))
				if err != nil {
					return ilit.UpsertResult{}, err
				}
				byKey[k] = merged
				res.Updated++
				continue
			}
		}
		inserted, err := s.insertPolicy(ctx, tx, r)
		if err != nil {
			return ilit.UpsertResult{}, err
		}
		if ok {
			byKey[k] = inserted
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return ilit.UpsertResult{}, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return res, nil
}

// Get returns a policy by id.
func (s *Store) Get(ctx context.Context, id string) (ilit.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPolicy(ctx, s.db, id)
}

func (s *Store) getPolicy(ctx context.Context, q querier, id string) (ilit.PolicyRecord, error) {
	records, err := s.queryPolicies(ctx, q, `SELECT `+policyColumns+` FROM policies WHERE id = ?`, id)
	if err != nil {
		return ilit.PolicyRecord{}, err
	}
	if len(records) == 0 {
		return ilit.PolicyRecord{}, ilit.ErrPolicyNotFound
	}
	return records[0], nil
}

// Create inserts one policy with a fresh id.
func (s *Store) Create(ctx context.Context, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPolicy(ctx, s.db, r)
}

// Update replaces every field of a stored policy. CreatedAt is kept.
func (s *Store) Update(ctx context.Context, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ilit.PolicyRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getPolicy(ctx, tx, r.ID)
	if err != nil {
		return ilit.PolicyRecord{}, err
	}
	r.CreatedAt = current.CreatedAt
	saved, err := s.updatePolicy(ctx, tx, r)
	if err != nil {
		return ilit.PolicyRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return ilit.PolicyRecord{}, fmt.Errorf("failed to commit policy: %w", err)
	}
	return saved, nil
}

func (s *Store) updatePolicy(ctx context.Context, q querier, r ilit.PolicyRecord) (ilit.PolicyRecord, error) {
	r.UpdatedAt = s.now()

	query := `
		UPDATE policies SET
			ilit_name = ?, insured_name = ?, trustees = ?, insurance_company = ?,
			policy_number = ?, frequency = ?, notes = ?,
			premium_due_date = ?, premium_amount = ?,
			gift_date = ?, crummey_letter_send_date = ?, crummey_letter_sent_date = ?,
			gift_date_explicit = ?, send_date_explicit = ?,
			status = ?, status_overridden = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, s.dialect.rebind(query),
		r.IlitName,
		nullString(r.InsuredName),
		nullString(r.Trustees),
		nullString(r.InsuranceCompany),
		nullString(r.PolicyNumber),
		nullString(r.Frequency),
		nullString(r.Notes),
		nullDate(r.PremiumDueDate),
		r.PremiumAmount,
		nullDate(r.GiftDate),
		nullDate(r.CrummeyLetterSendDate),
		nullDate(r.CrummeyLetterSentDate),
		boolInt(r.GiftDateExplicit),
		boolInt(r.SendDateExplicit),
		string(r.Status.Status),
		boolInt(r.Status.Overridden),
		formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return ilit.PolicyRecord{}, fmt.Errorf("failed to update policy %s: %w", r.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ilit.PolicyRecord{}, ilit.ErrPolicyNotFound
	}
	return r, nil
}

// Delete removes a policy.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM policies WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ilit.ErrPolicyNotFound
	}
	return nil
}

func (s *Store) queryPolicies(ctx context.Context, q querier, query string, args ...any) ([]ilit.PolicyRecord, error) {
	rows, err := q.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var records []ilit.PolicyRecord
	for rows.Next() {
		r, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanPolicy(rows *sql.Rows) (ilit.PolicyRecord, error) {
	var (
		r                                                   ilit.PolicyRecord
		insured, trustees, company, number, frequency, note sql.NullString
		due, gift, send, sent                               sql.NullString
		amount                                              decimal.NullDecimal
		giftExplicit, sendExplicit, overridden              int
		status, createdAt, updatedAt                        string
	)
	if err := rows.Scan(
		&r.ID, &r.IlitName, &insured, &trustees, &company,
		&number, &frequency, &note, &due, &amount,
		&gift, &send, &sent,
		&giftExplicit, &sendExplicit, &status, &overridden,
		&createdAt, &updatedAt,
	); err != nil {
		return ilit.PolicyRecord{}, fmt.Errorf("failed to scan policy: %w", err)
	}

	r.InsuredName = insured.String
	r.Trustees = trustees.String
	r.InsuranceCompany = company.String
	r.PolicyNumber = number.String
	r.Frequency = frequency.String
	r.Notes = note.String
	r.PremiumAmount = amount

	var err error
	for _, d := range []struct {
		dst *ilit.Date
		src sql.NullString
	}{
		{&r.PremiumDueDate, due},
		{&r.GiftDate, gift},
		{&r.CrummeyLetterSendDate, send},
		{&r.CrummeyLetterSentDate, sent},
	} {
		if *d.dst, err = ilit.ParseDate(d.src.String); err != nil {
			return ilit.PolicyRecord{}, fmt.Errorf("policy %s: %w", r.ID, err)
		}
	}

	r.GiftDateExplicit = giftExplicit != 0
	r.SendDateExplicit = sendExplicit != 0
	r.Status = ilit.StatusValue{Status: ilit.ParseStatus(status), Overridden: overridden != 0}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

const settingsID = "primary"

// GetSettings returns the singleton, inserting the defaults on first read.
func (s *Store) GetSettings(ctx context.Context) (ilit.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ilit.Settings{}, err
	}

	defaults := ilit.DefaultSettings()
	defaults.UpdatedAt = s.now()
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO settings (id, reminder_lead_days, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`), settingsID, defaults.ReminderLeadDays, formatTime(defaults.UpdatedAt))
	if err != nil {
		return ilit.Settings{}, fmt.Errorf("failed to create settings: %w", err)
	}
	return s.readSettings(ctx)
}

func (s *Store) readSettings(ctx context.Context) (ilit.Settings, error) {
	var (
		settings  ilit.Settings
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT reminder_lead_days, updated_at FROM settings WHERE id = ?`), settingsID,
	).Scan(&settings.ReminderLeadDays, &updatedAt)
	if err != nil {
		return ilit.Settings{}, err
	}
	settings.UpdatedAt = parseTime(updatedAt)
	return settings, nil
}

// SetSettings replaces the singleton.
func (s *Store) SetSettings(ctx context.Context, settings ilit.Settings) (ilit.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO settings (id, reminder_lead_days, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reminder_lead_days = excluded.reminder_lead_days,
			updated_at = excluded.updated_at
	`), settingsID, settings.ReminderLeadDays, formatTime(settings.UpdatedAt))
	if err != nil {
		return ilit.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}

// =============================================================================
// CLIENTS
// =============================================================================

// UpsertClients records names not seen before; known names are left alone.
func (s *Store) UpsertClients(ctx context.Context, names []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(s.now())
	query := s.dialect.rebind(`INSERT INTO clients (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, query, name, now); err != nil {
			return 0, fmt.Errorf("failed to upsert client %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clients: %w", err)
	}
	return len(names), nil
}

// ListClients returns clients by name with their current policy counts.
func (s *Store) ListClients(ctx context.Context) ([]ilit.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.created_at,
			(SELECT COUNT(*) FROM policies p WHERE p.insured_name = c.name)
		FROM clients c
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	clients := []ilit.Client{}
	for rows.Next() {
		var (
			c         ilit.Client
			createdAt string
		)
		if err := rows.Scan(&c.Name, &createdAt, &c.PolicyCount); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e ilit.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO audit_log (id, occurred_at, action, policy_id, description)
		VALUES (?, ?, ?, ?, ?)
	`), e.ID, formatTime(e.Timestamp), string(e.Action), nullString(e.PolicyID), e.Description)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns the newest entries first. A limit of 0 returns all.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]ilit.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, occurred_at, action, policy_id, description FROM audit_log ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []ilit.AuditEntry
	for rows.Next() {
		var (
			e          ilit.AuditEntry
			occurredAt string
			action     string
			policyID   sql.NullString
		)
		if err := rows.Scan(&e.ID, &occurredAt, &action, &policyID, &e.Description); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(occurredAt)
		e.Action = ilit.AuditAction(action)
		e.PolicyID = policyID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// RECALCULATION RUNS
// =============================================================================

// SaveRun inserts a run or updates it when the id is already stored.
func (s *Store) SaveRun(ctx context.Context, r ilit.RecalculationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO recalculation_runs (id, kind, lead_days, updated, failed, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated = excluded.updated,
			failed = excluded.failed,
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		ts := formatTime(*r.CompletedAt)
		completedAt = &ts
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		r.ID, string(r.Kind), r.LeadDays, r.Updated, r.Failed,
		r.Status, nullString(r.Error), formatTime(r.StartedAt), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the newest runs first. A limit of 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]ilit.RecalculationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, kind, lead_days, updated, failed, status, error, started_at, completed_at
		FROM recalculation_runs
		ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []ilit.RecalculationRun
	for rows.Next() {
		var (
			r                ilit.RecalculationRun
			kind, startedAt  string
			runErr, complete sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &r.LeadDays, &r.Updated, &r.Failed,
			&r.Status, &runErr, &startedAt, &complete); err != nil {
			return nil, err
		}
		r.Kind = ilit.RunKind(kind)
		r.Error = runErr.String
		r.StartedAt = parseTime(startedAt)
		if complete.Valid {
			t := parseTime(complete.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d ilit.Date) sql.NullString {
	return nullString(d.String())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
