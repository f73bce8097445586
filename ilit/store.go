/*
store.go - Collaborator interfaces for the engine

PURPOSE:
  The engine owns no I/O. Spreadsheets arrive through TabularSource and
  records are persisted through the store interfaces below. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  TabularSource: already-parsed header row plus a stream of rows
  PolicyStore:   CRUD plus bulk insert/read/update/upsert of PolicyRecords
  SettingsStore: the settings singleton (created on first read)
  ClientStore:   distinct insured names collected by imports
  AuditLog:      activity history
  RunStore:      recalculation / status refresh history

ATOMICITY:
  InsertMany is all-or-nothing: a failed bulk insert writes nothing.
  UpdateMany is per-record: each patch is applied atomically on its own and
  a failure is reported in that patch's UpdateResult only.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL via database/sql
  - ilit/store:     in-memory, for tests and development
*/
package ilit

import (
	"context"
	"strings"
)

// =============================================================================
// TABULAR SOURCE
// =============================================================================

// TabularSource produces a header row and then one Row per data row.
// Next returns io.EOF when the rows are exhausted.
type TabularSource interface {
	Headers() []string
	Next() (Row, error)
}

// =============================================================================
// POLICY STORE
// =============================================================================

// PolicyFilter narrows ReadAll. The zero filter matches everything.
type PolicyFilter struct {
	HasDueDate     bool
	HasSendDate    bool
	Unsent         bool   // no crummeyLetterSentDate
	SendOnOrBefore Date   // crummeyLetterSendDate <= this
	DueFrom        Date   // premiumDueDate >= this
	DueTo          Date   // premiumDueDate <= this
	Status         Status // exact status
	IlitName       string // case-insensitive substring
}

// Match reports whether r passes the filter. SQL stores translate the same
// conditions into WHERE clauses; the memory store calls Match directly.
func (f PolicyFilter) Match(r PolicyRecord) bool {
	if f.HasDueDate && !r.HasDueDate() {
		return false
	}
	if f.HasSendDate && r.CrummeyLetterSendDate.IsZero() {
		return false
	}
	if f.Unsent && r.LetterSent() {
		return false
	}
	if !f.SendOnOrBefore.IsZero() {
		if r.CrummeyLetterSendDate.IsZero() || r.CrummeyLetterSendDate.After(f.SendOnOrBefore) {
			return false
		}
	}
	if !f.DueFrom.IsZero() && (!r.HasDueDate() || r.PremiumDueDate.Before(f.DueFrom)) {
		return false
	}
	if !f.DueTo.IsZero() && (!r.HasDueDate() || r.PremiumDueDate.After(f.DueTo)) {
		return false
	}
	if f.Status != "" && r.Status.Status != f.Status {
		return false
	}
	if f.IlitName != "" && !strings.Contains(strings.ToLower(r.IlitName), strings.ToLower(f.IlitName)) {
		return false
	}
	return true
}

// PolicyStore persists PolicyRecords. IDs and timestamps are assigned by the store.
type PolicyStore interface {
	// InsertMany writes all records atomically and returns how many were inserted.
	InsertMany(ctx context.Context, records []PolicyRecord) (int, error)

	// ReadAll returns matching records in insertion order.
	ReadAll(ctx context.Context, filter PolicyFilter) ([]PolicyRecord, error)

	// UpdateMany applies each patch independently. The returned slice has one
	// result per patch, in order. The error is reserved for failures that
	// prevent any attempt at all.
	UpdateMany(ctx context.Context, patches []PolicyPatch) ([]UpdateResult, error)

	// UpsertByKey inserts records whose key is new and merges the rest into
	// the stored record with the same key (see MergeForUpsert). Atomic.
	UpsertByKey(ctx context.Context, key UpsertKey, records []PolicyRecord) (UpsertResult, error)

	Get(ctx context.Context, id string) (PolicyRecord, error)
	Create(ctx context.Context, record PolicyRecord) (PolicyRecord, error)
	Update(ctx context.Context, record PolicyRecord) (PolicyRecord, error)
	Delete(ctx context.Context, id string) error
}

// SettingsStore holds the settings singleton.
type SettingsStore interface {
	// GetSettings returns the settings, creating the defaults on first read.
	GetSettings(ctx context.Context) (Settings, error)
	// SetSettings replaces the settings. Callers validate first.
	SetSettings(ctx context.Context, s Settings) (Settings, error)
}

// ClientStore records distinct insured names.
type ClientStore interface {
	UpsertClients(ctx context.Context, names []string) (int, error)
	ListClients(ctx context.Context) ([]Client, error)
}

// AuditLog stores activity entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// RunStore keeps the history of bulk jobs.
type RunStore interface {
	SaveRun(ctx context.Context, run RecalculationRun) error
	ListRuns(ctx context.Context, limit int) ([]RecalculationRun, error)
}

// Store is everything a full backend provides.
type Store interface {
	PolicyStore
	SettingsStore
	ClientStore
	AuditLog
	RunStore
}
