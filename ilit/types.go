/*
Package ilit provides the policy derivation and reconciliation engine.

PURPOSE:
  Tracks life-insurance policies held inside Irrevocable Life Insurance
  Trusts (ILITs) and the two deadlines that hang off every premium:
  the premium due date itself and the Crummey letter send date derived
  from it. Rows arrive from user-authored spreadsheets with arbitrary
  headers; the engine normalizes them into PolicyRecord values, derives
  dates, classifies a lifecycle status, and keeps derived dates in line
  when the reminder lead time changes.

KEY CONCEPTS IN THIS FILE (types.go):
  - PolicyRecord: one policy owned by a trust
  - Status / StatusValue: lifecycle status, derived or manually overridden
  - Settings: process-wide reminder lead time

DATA FLOW:
  Ingestion:      TabularSource -> Normalize -> DeriveDates -> Classify -> PolicyStore.InsertMany
  Reconciliation: PolicyStore.ReadAll -> PlanRecalculation -> PolicyStore.UpdateMany

PURITY:
  Coercers, the column resolver, Normalize, DeriveDates, Classify and
  PlanRecalculation are pure. Lead days and "today" are always explicit
  parameters; nothing in this package reads settings or the wall clock
  except Service, which reads them once per run.

SEE ALSO:
  - coerce.go:    field coercers
  - columns.go:   alias table and column resolver
  - normalize.go: row normalizer
  - derive.go:    derived field calculator
  - status.go:    status classifier
  - reconcile.go: recalculation planner
  - service.go:   orchestration over the stores
*/
package ilit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Closed lifecycle enumeration
// =============================================================================

// Status is the lifecycle status of a policy. The string values are stable
// and are what gets stored and serialized.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusPending    Status = "Pending"
	StatusDueSoon    Status = "Due Soon"
	StatusOverdue    Status = "Overdue"
	StatusLetterSent Status = "Letter Sent"
	StatusPaid       Status = "Paid"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusNotStarted,
	StatusPending,
	StatusDueSoon,
	StatusOverdue,
	StatusLetterSent,
	StatusPaid,
}

// LookupStatus matches s against the known statuses ignoring case, spaces,
// underscores and hyphens ("letter_sent", "LetterSent" and "Letter Sent" all match).
func LookupStatus(s string) (Status, bool) {
	key := statusKey(s)
	if key == "" {
		return "", false
	}
	for _, st := range AllStatuses {
		if statusKey(string(st)) == key {
			return st, true
		}
	}
	if key == "sent" {
		return StatusLetterSent, true
	}
	return "", false
}

// ParseStatus reads a stored or external status value. Unrecognized values
// read as Pending so consumers never fail on an unknown label.
func ParseStatus(s string) Status {
	if st, ok := LookupStatus(s); ok {
		return st
	}
	return StatusPending
}

func statusKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// StatusValue is a status tagged with its provenance: either computed by
// Classify or set by a user. Classification never touches an override.
type StatusValue struct {
	Status     Status
	Overridden bool
}

// Derived tags a status computed by the classifier.
func Derived(s Status) StatusValue { return StatusValue{Status: s} }

// Overridden tags a status set explicitly by a user.
func Overridden(s Status) StatusValue { return StatusValue{Status: s, Overridden: true} }

// =============================================================================
// POLICY RECORD
// =============================================================================

// PolicyRecord is one insurance policy owned by a trust.
// Optional strings use "" for absent; optional dates use the zero Date.
type PolicyRecord struct {
	ID               string
	IlitName         string
	InsuredName      string
	Trustees         string
	InsuranceCompany string
	PolicyNumber     string
	Frequency        string
	Notes            string

	PremiumDueDate Date
	PremiumAmount  decimal.NullDecimal

	GiftDate              Date
	CrummeyLetterSendDate Date
	CrummeyLetterSentDate Date

	// Provenance of the two derivable dates: true when the value came from
	// a sheet cell or a user edit rather than from DeriveDates.
	GiftDateExplicit bool
	SendDateExplicit bool

	Status StatusValue

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDueDate reports whether the record carries a premium due date.
func (r PolicyRecord) HasDueDate() bool { return !r.PremiumDueDate.IsZero() }

// LetterSent reports whether a Crummey letter has been marked as sent.
func (r PolicyRecord) LetterSent() bool { return !r.CrummeyLetterSentDate.IsZero() }

// =============================================================================
// SETTINGS - Process-wide singleton
// =============================================================================

// DefaultReminderLeadDays is the lead time used until a user changes it.
const DefaultReminderLeadDays = 30

// Settings is the singleton configuration record.
type Settings struct {
	ReminderLeadDays int
	UpdatedAt        time.Time
}

// DefaultSettings returns the settings created on first read.
func DefaultSettings() Settings {
	return Settings{ReminderLeadDays: DefaultReminderLeadDays}
}

// Validate rejects configurations that must never reach derivation.
func (s Settings) Validate() error {
	if s.ReminderLeadDays < 1 {
		return &LeadDaysError{Value: s.ReminderLeadDays}
	}
	return nil
}

// =============================================================================
// CLIENTS / AUDIT / RUNS
// =============================================================================

// Client is a distinct insured person collected from imported policies.
type Client struct {
	Name        string
	PolicyCount int
	CreatedAt   time.Time
}

// AuditAction names what happened in an AuditEntry.
type AuditAction string

const (
	AuditImport          AuditAction = "import"
	AuditCreate          AuditAction = "create"
	AuditEdit            AuditAction = "edit"
	AuditDelete          AuditAction = "delete"
	AuditLetterSent      AuditAction = "letter_sent"
	AuditPaid            AuditAction = "paid"
	AuditStatusOverride  AuditAction = "status_override"
	AuditSettingsChanged AuditAction = "settings_changed"
	AuditRecalculation   AuditAction = "recalculation"
	AuditStatusRefresh   AuditAction = "status_refresh"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	Action      AuditAction
	PolicyID    string
	Description string
}

// RunKind distinguishes the bulk jobs recorded in run history.
type RunKind string

const (
	RunRecalculation RunKind = "recalculation"
	RunStatusRefresh RunKind = "status_refresh"
)

// RecalculationRun is one execution of a bulk re-derivation job.
type RecalculationRun struct {
	ID          string
	Kind        RunKind
	LeadDays    int
	Updated     int
	Failed      int
	Status      string // running, completed, completed_with_errors, failed
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}
