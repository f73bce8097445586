/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ilit domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Policies:  PolicyDTO, LetterDTO, CreatePolicyRequest, PatchPolicyRequest
  Import:    ImportResultDTO, MappedImportRequest
  Settings:  SettingsDTO, UpdateSettingsRequest, RecalculateRequest, ReconcileResultDTO
  History:   RunDTO, AuditDTO
  Overview:  DashboardDTO, ClientDTO

DATES:
  Calendar dates are "YYYY-MM-DD" or null. Timestamps are RFC 3339.
  Premium amounts are decimal strings so no precision is lost.

VALIDATION:
  Validation is done by ilit.Service, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ilit-engine/ilit"
)

// =============================================================================
// POLICIES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                    string              `json:"id"`
	IlitName              string              `json:"ilit_name"`
	InsuredName           string              `json:"insured_name,omitempty"`
	Trustees              string              `json:"trustees,omitempty"`
	InsuranceCompany      string              `json:"insurance_company,omitempty"`
	PolicyNumber          string              `json:"policy_number,omitempty"`
	Frequency             string              `json:"frequency,omitempty"`
	Notes                 string              `json:"notes,omitempty"`
	PremiumDueDate        ilit.Date           `json:"premium_due_date"`
	PremiumAmount         decimal.NullDecimal `json:"premium_amount"`
	GiftDate              ilit.Date           `json:"gift_date"`
	CrummeyLetterSendDate ilit.Date           `json:"crummey_letter_send_date"`
	CrummeyLetterSentDate ilit.Date           `json:"crummey_letter_sent_date"`
	GiftDateExplicit      bool                `json:"gift_date_explicit"`
	SendDateExplicit      bool                `json:"send_date_explicit"`
	Status                string              `json:"status"`
	StatusOverridden      bool                `json:"status_overridden"`
	CreatedAt             string              `json:"created_at,omitempty"`
	UpdatedAt             string              `json:"updated_at,omitempty"`
}

// LetterDTO is a scheduled Crummey letter.
type LetterDTO struct {
	PolicyDTO
	LetterStatus string `json:"letter_status"`
}

// CreatePolicyRequest is the manual-entry form. Dates given here are kept
// as explicit; missing ones are derived.
type CreatePolicyRequest struct {
	IlitName              string              `json:"ilit_name"`
	InsuredName           string              `json:"insured_name"`
	Trustees              string              `json:"trustees"`
	InsuranceCompany      string              `json:"insurance_company"`
	PolicyNumber          string              `json:"policy_number"`
	Frequency             string              `json:"frequency"`
	Notes                 string              `json:"notes"`
	PremiumDueDate        ilit.Date           `json:"premium_due_date"`
	PremiumAmount         decimal.NullDecimal `json:"premium_amount"`
	GiftDate              ilit.Date           `json:"gift_date"`
	CrummeyLetterSendDate ilit.Date           `json:"crummey_letter_send_date"`
	CrummeyLetterSentDate ilit.Date           `json:"crummey_letter_sent_date"`
	Status                string              `json:"status,omitempty"` // optional override
}

// Optional distinguishes a field left out of a JSON body from one sent as null.
type Optional[T any] struct {
	Set   bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// PatchPolicyRequest carries a partial edit. Omitted fields are left alone;
// null clears a field (a cleared gift or send date is derived again).
type PatchPolicyRequest struct {
	IlitName              Optional[string]              `json:"ilit_name"`
	InsuredName           Optional[string]              `json:"insured_name"`
	Trustees              Optional[string]              `json:"trustees"`
	InsuranceCompany      Optional[string]              `json:"insurance_company"`
	PolicyNumber          Optional[string]              `json:"policy_number"`
	Frequency             Optional[string]              `json:"frequency"`
	Notes                 Optional[string]              `json:"notes"`
	PremiumDueDate        Optional[ilit.Date]           `json:"premium_due_date"`
	PremiumAmount         Optional[decimal.NullDecimal] `json:"premium_amount"`
	GiftDate              Optional[ilit.Date]           `json:"gift_date"`
	CrummeyLetterSendDate Optional[ilit.Date]           `json:"crummey_letter_send_date"`
	CrummeyLetterSentDate Optional[ilit.Date]           `json:"crummey_letter_sent_date"`
}

// MarkSentRequest is the optional body of POST /policies/{id}/sent.
type MarkSentRequest struct {
	SentDate ilit.Date `json:"sent_date"`
}

// StatusOverrideRequest pins a status.
type StatusOverrideRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// IMPORT
// =============================================================================

// MappedImportRequest is an import of rows the client already parsed.
type MappedImportRequest struct {
	Name    string            `json:"name"`
	Headers []string          `json:"headers"`
	Rows    []map[string]any  `json:"rows"`
	Mapping map[string]string `json:"mapping"`
	Mode    string            `json:"mode"`
	Key     string            `json:"key"`
}

// ImportResultDTO reports an import. Counts are present even when the
// batch failed to persist.
type ImportResultDTO struct {
	RowsRead     int             `json:"rows_read"`
	RowsSkipped  int             `json:"rows_skipped"`
	RowsInserted int             `json:"rows_inserted"`
	RowsUpdated  int             `json:"rows_updated"`
	Skipped      []SkippedRowDTO `json:"skipped"`
	Unmapped     []string        `json:"unmapped_fields"`
	LeadDays     int             `json:"reminder_lead_days"`
	Clients      int             `json:"clients"`
	Error        string          `json:"error,omitempty"`
}

type SkippedRowDTO struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// =============================================================================
// SETTINGS / RECALCULATION
// =============================================================================

type SettingsDTO struct {
	ReminderLeadDays int    `json:"reminder_lead_days"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest changes the lead time, optionally re-deriving send dates.
type UpdateSettingsRequest struct {
	ReminderLeadDays *int `json:"reminder_lead_days"`
	Recalculate      bool `json:"recalculate"`
}

// RecalculateRequest re-derives send dates. A given reminder_lead_days is
// saved as the new setting; without it the stored setting is used.
type RecalculateRequest struct {
	ReminderLeadDays  *int `json:"reminder_lead_days"`
	OverwriteExplicit bool `json:"overwrite_explicit"`
}

type ReconcileResultDTO struct {
	RunID     string       `json:"run_id"`
	LeadDays  int          `json:"reminder_lead_days"`
	Updated   int          `json:"updated"`
	Preserved int          `json:"preserved"`
	Failures  []FailureDTO `json:"failures"`
}

type FailureDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type RefreshResultDTO struct {
	RunID    string       `json:"run_id"`
	Checked  int          `json:"checked"`
	Changed  int          `json:"changed"`
	Failures []FailureDTO `json:"failures"`
}

// =============================================================================
// HISTORY / OVERVIEW
// =============================================================================

type RunDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	LeadDays    int    `json:"reminder_lead_days"`
	Updated     int    `json:"updated"`
	Failed      int    `json:"failed"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type AuditDTO struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Action      string `json:"action"`
	PolicyID    string `json:"policy_id,omitempty"`
	Description string `json:"description"`
}

type ClientDTO struct {
	Name        string `json:"name"`
	PolicyCount int    `json:"policy_count"`
	CreatedAt   string `json:"created_at"`
}

type DashboardDTO struct {
	AsOf           ilit.Date      `json:"as_of"`
	DueIn30        int            `json:"due_in_30_days"`
	DueIn60        int            `json:"due_in_60_days"`
	LettersPending int            `json:"letters_pending"`
	Outstanding    string         `json:"outstanding_premium"`
	ByStatus       map[string]int `json:"by_status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPolicyDTO(r ilit.PolicyRecord) PolicyDTO {
	return PolicyDTO{
		ID:                    r.ID,
		IlitName:              r.IlitName,
		InsuredName:           r.InsuredName,
		Trustees:              r.Trustees,
		InsuranceCompany:      r.InsuranceCompany,
		PolicyNumber:          r.PolicyNumber,
		Frequency:             r.Frequency,
		Notes:                 r.Notes,
		PremiumDueDate:        r.PremiumDueDate,
		PremiumAmount:         r.PremiumAmount,
		GiftDate:              r.GiftDate,
		CrummeyLetterSendDate: r.CrummeyLetterSendDate,
		CrummeyLetterSentDate: r.CrummeyLetterSentDate,
		GiftDateExplicit:      r.GiftDateExplicit,
		SendDateExplicit:      r.SendDateExplicit,
		Status:                string(r.Status.Status),
		StatusOverridden:      r.Status.Overridden,
		CreatedAt:             formatTimestamp(r.CreatedAt),
		UpdatedAt:             formatTimestamp(r.UpdatedAt),
	}
}

func toPolicyDTOs(records []ilit.PolicyRecord) []PolicyDTO {
	dtos := make([]PolicyDTO, len(records))
	for i, r := range records {
		dtos[i] = toPolicyDTO(r)
	}
	return dtos
}

func (req CreatePolicyRequest) toRecord() ilit.PolicyRecord {
	return ilit.PolicyRecord{
		IlitName:              req.IlitName,
		InsuredName:           req.InsuredName,
		Trustees:              req.Trustees,
		InsuranceCompany:      req.InsuranceCompany,
		PolicyNumber:          req.PolicyNumber,
		Frequency:             req.Frequency,
		Notes:                 req.Notes,
		PremiumDueDate:        req.PremiumDueDate,
		PremiumAmount:         req.PremiumAmount,
		GiftDate:              req.GiftDate,
		CrummeyLetterSendDate: req.CrummeyLetterSendDate,
		CrummeyLetterSentDate: req.CrummeyLetterSentDate,
	}
}

func (req PatchPolicyRequest) toPatch(id string) ilit.PolicyPatch {
	p := ilit.PolicyPatch{ID: id}
	p.IlitName = optionalPtr(req.IlitName)
	p.InsuredName = optionalPtr(req.InsuredName)
	p.Trustees = optionalPtr(req.Trustees)
	p.InsuranceCompany = optionalPtr(req.InsuranceCompany)
	p.PolicyNumber = optionalPtr(req.PolicyNumber)
	p.Frequency = optionalPtr(req.Frequency)
	p.Notes = optionalPtr(req.Notes)
	p.PremiumDueDate = optionalPtr(req.PremiumDueDate)
	p.PremiumAmount = optionalPtr(req.PremiumAmount)
	p.GiftDate = optionalPtr(req.GiftDate)
	p.CrummeyLetterSendDate = optionalPtr(req.CrummeyLetterSendDate)
	p.CrummeyLetterSentDate = optionalPtr(req.CrummeyLetterSentDate)
	return p
}

func optionalPtr[T any](o Optional[T]) *T {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

func toImportResultDTO(res ilit.IngestResult) ImportResultDTO {
	dto := ImportResultDTO{
		RowsRead:     res.RowsRead,
		RowsSkipped:  res.RowsSkipped,
		RowsInserted: res.RowsInserted,
		RowsUpdated:  res.RowsUpdated,
		Skipped:      make([]SkippedRowDTO, len(res.Skipped)),
		Unmapped:     make([]string, len(res.Unmapped)),
		LeadDays:     res.LeadDays,
		Clients:      res.Clients,
	}
	for i, s := range res.Skipped {
		dto.Skipped[i] = SkippedRowDTO{Row: s.Row, Reason: s.Reason}
	}
	for i, f := range res.Unmapped {
		dto.Unmapped[i] = string(f)
	}
	return dto
}

func toFailureDTOs(failures []ilit.RecordFailure) []FailureDTO {
	dtos := make([]FailureDTO, len(failures))
	for i, f := range failures {
		dtos[i] = FailureDTO{ID: f.ID, Error: f.Err.Error()}
	}
	return dtos
}

func toReconcileResultDTO(res ilit.ReconcileResult) ReconcileResultDTO {
	return ReconcileResultDTO{
		RunID:     res.RunID,
		LeadDays:  res.LeadDays,
		Updated:   res.Updated,
		Preserved: res.Preserved,
		Failures:  toFailureDTOs(res.Failures),
	}
}

func toSettingsDTO(s ilit.Settings) SettingsDTO {
	return SettingsDTO{ReminderLeadDays: s.ReminderLeadDays, UpdatedAt: formatTimestamp(s.UpdatedAt)}
}

func toRunDTO(run ilit.RecalculationRun) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Kind:      string(run.Kind),
		LeadDays:  run.LeadDays,
		Updated:   run.Updated,
		Failed:    run.Failed,
		Status:    run.Status,
		Error:     run.Error,
		StartedAt: formatTimestamp(run.StartedAt),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTimestamp(*run.CompletedAt)
	}
	return dto
}

func toDashboardDTO(d ilit.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		AsOf:           d.AsOf,
		DueIn30:        d.DueIn30,
		DueIn60:        d.DueIn60,
		LettersPending: d.LettersPending,
		Outstanding:    d.Outstanding.StringFixed(2),
		ByStatus:       make(map[string]int, len(ilit.AllStatuses)),
	}
	for _, st := range ilit.AllStatuses {
		dto.ByStatus[string(st)] = d.ByStatus[st]
	}
	return dto
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
