/*
handlers.go - HTTP API handlers for the ILIT policy tracker

PURPOSE:
  Exposes ilit.Service via REST API. Handles HTTP request/response and JSON
  serialization; every rule lives in the ilit package.

ENDPOINTS:
  Policies:
    GET    /api/policies               List (status, ilit, due_after, due_before, unsent)
    POST   /api/policies               Manual entry
    GET    /api/policies/{id}          Get one policy
    PATCH  /api/policies/{id}          Edit
    DELETE /api/policies/{id}          Delete
    POST   /api/policies/{id}/sent     Mark Crummey letter sent
    POST   /api/policies/{id}/paid     Mark premium paid
    PUT    /api/policies/{id}/status   Pin a status
    DELETE /api/policies/{id}/status   Clear the pinned status

  Import / export:
    POST   /api/import                 Multipart upload (.xlsx, .csv, .json)
    POST   /api/import/mapped          Rows already parsed by the client
    GET    /api/import/template        XLSX template
    GET    /api/export                 XLSX export

  Views:
    GET    /api/reminders              Letters due now
    GET    /api/letters                Every scheduled letter
    GET    /api/clients                Distinct insured names
    GET    /api/dashboard              Upcoming obligations

  Settings and history:
    GET    /api/settings
    PUT    /api/settings               Change lead time (optionally recalculate)
    POST   /api/settings/recalculate   Re-derive send dates
    GET    /api/runs                   Recalculation / refresh history
    POST   /api/runs/refresh           Refresh statuses now
    GET    /api/activity               Recent activity

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad lead time
  - 404: Policy not found
  - 500: Persistence failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Nightly status refresh
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/ilit-engine/ilit"
	"github.com/warp/ilit-engine/sheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

const (
	maxUploadBytes  = 32 << 20
	defaultActivity = 50
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ilit.Service
}

// NewHandler creates a new handler over the service.
func NewHandler(svc *ilit.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns policies matching the query filters.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePolicyFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.Service.ListPolicies(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": toPolicyDTOs(records)})
}

func parsePolicyFilter(r *http.Request) (ilit.PolicyFilter, error) {
	q := r.URL.Query()
	filter := ilit.PolicyFilter{IlitName: strings.TrimSpace(q.Get("ilit"))}

	if s := q.Get("status"); s != "" {
		st, ok := ilit.LookupStatus(s)
		if !ok {
			return filter, fmt.Errorf("%w: %q", ilit.ErrInvalidStatus, s)
		}
		filter.Status = st
	}

	var err error
	if filter.DueFrom, err = ilit.ParseDate(q.Get("due_after")); err != nil {
		return filter, err
	}
	if filter.DueTo, err = ilit.ParseDate(q.Get("due_before")); err != nil {
		return filter, err
	}
	if s := q.Get("unsent"); s != "" {
		if filter.Unsent, err = strconv.ParseBool(s); err != nil {
			return filter, fmt.Errorf("invalid unsent %q: %w", s, err)
		}
	}
	return filter, nil
}

// CreatePolicy is manual entry.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record := req.toRecord()
	if req.Status != "" {
		st, ok := ilit.LookupStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("%w: %q", ilit.ErrInvalidStatus, req.Status))
			return
		}
		record.Status = ilit.Overridden(st)
	}

	created, err := h.Service.CreatePolicy(r.Context(), record)
	if err != nil {
		writeServiceError(w, "Failed to create policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(created))
}

// GetPolicy returns one policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.GetPolicy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(record))
}

// UpdatePolicy applies a partial edit.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PatchPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Service.EditPolicy(r.Context(), id, req.toPatch(id))
	if err != nil {
		writeServiceError(w, "Failed to update policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// DeletePolicy removes a policy.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePolicy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to delete policy", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkLetterSent records that the Crummey letter went out. The body is optional.
func (h *Handler) MarkLetterSent(w http.ResponseWriter, r *http.Request) {
	var req MarkSentRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Service.MarkLetterSent(r.Context(), chi.URLParam(r, "id"), req.SentDate)
	if err != nil {
		writeServiceError(w, "Failed to mark letter sent", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// MarkPaid pins the Paid status.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Service.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to mark paid", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// SetStatus pins a status chosen by the user.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Service.SetStatusOverride(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, "Failed to set status", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// ClearStatus drops a pinned status.
func (h *Handler) ClearStatus(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Service.ClearStatusOverride(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to clear status", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// =============================================================================
// IMPORT / EXPORT HANDLERS
// =============================================================================

// Import reads an uploaded sheet from the "file" form field.
// Optional form values: mode (insert|upsert), key (policy_number|ilit_policy),
// mapping (JSON object of field -> header).
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file", err)
		return
	}
	defer file.Close()

	var mapping map[string]string
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid mapping", err)
			return
		}
	}
	opts, err := importOptions(r.FormValue("mode"), r.FormValue("key"), mapping, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid import options", err)
		return
	}

	table, err := sheet.Open(file, header.Filename)
	if err != nil {
		writeServiceError(w, "Failed to read file", err)
		return
	}
	defer table.Close()
	h.ingest(w, r, table, opts)
}

// ImportMapped imports rows the client parsed itself.
func (h *Handler) ImportMapped(w http.ResponseWriter, r *http.Request) {
	var req MappedImportRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	name := req.Name
	if name == "" {
		name = "mapped rows"
	}
	opts, err := importOptions(req.Mode, req.Key, req.Mapping, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid import options", err)
		return
	}

	table, err := sheet.FromRecords(req.Headers, req.Rows)
	if err != nil {
		writeServiceError(w, "Failed to read rows", err)
		return
	}
	h.ingest(w, r, table, opts)
}

func importOptions(mode, key string, mapping map[string]string, name string) (ilit.IngestOptions, error) {
	opts := ilit.IngestOptions{Name: name}

	switch ilit.ImportMode(mode) {
	case "", ilit.ImportInsert:
		opts.Mode = ilit.ImportInsert
	case ilit.ImportUpsert:
		opts.Mode = ilit.ImportUpsert
	default:
		return opts, fmt.Errorf("unknown mode %q (use insert or upsert)", mode)
	}

	k, ok := ilit.ParseUpsertKey(key)
	if !ok {
		return opts, fmt.Errorf("unknown key %q (use %s or %s)", key, ilit.KeyPolicyNumber, ilit.KeyTrustPolicy)
	}
	opts.Key = k

	if len(mapping) > 0 {
		opts.Mapping = make(map[ilit.Field]string, len(mapping))
		for field, header := range mapping {
			opts.Mapping[ilit.Field(field)] = header
		}
	}
	return opts, nil
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, src ilit.TabularSource, opts ilit.IngestOptions) {
	result, err := h.Service.Ingest(r.Context(), src, opts)
	dto := toImportResultDTO(result)
	if err != nil {
		dto.Error = err.Error()
		writeJSON(w, statusFor(err), dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// Template downloads the blank import workbook.
func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build template", err)
		return
	}
	writeFile(w, "ilit-template.xlsx", &buf)
}

// Export downloads every policy as a workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.ListPolicies(r.Context(), ilit.PolicyFilter{})
	if err != nil {
		writeServiceError(w, "Failed to list policies", err)
		return
	}
	var buf bytes.Buffer
	if err := sheet.WriteExport(&buf, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build export", err)
		return
	}
	writeFile(w, fmt.Sprintf("ilit-policies-%s.xlsx", h.Service.Now().UTC().Format(ilit.DateLayout)), &buf)
}

// =============================================================================
// VIEW HANDLERS
// =============================================================================

// Reminders lists letters due now and not yet sent.
func (h *Handler) Reminders(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.Reminders(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": toPolicyDTOs(records)})
}

// Letters lists every scheduled Crummey letter.
func (h *Handler) Letters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.Service.Letters(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list letters", err)
		return
	}
	dtos := make([]LetterDTO, len(letters))
	for i, l := range letters {
		dtos[i] = LetterDTO{PolicyDTO: toPolicyDTO(l.Policy), LetterStatus: string(l.State)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"letters": dtos})
}

// Clients lists distinct insured names.
func (h *Handler) Clients(w http.ResponseWriter, r *http.Request) {
	if h.Service.Clients == nil {
		writeJSON(w, http.StatusOK, map[string]any{"clients": []ClientDTO{}})
		return
	}
	clients, err := h.Service.Clients.ListClients(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list clients", err)
		return
	}
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = ClientDTO{Name: c.Name, PolicyCount: c.PolicyCount, CreatedAt: formatTimestamp(c.CreatedAt)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": dtos})
}

// Dashboard summarizes upcoming obligations.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the settings singleton.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.CurrentSettings(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to read settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// UpdateSettings changes the lead time.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ReminderLeadDays == nil {
		writeError(w, http.StatusBadRequest, "reminder_lead_days is required", nil)
		return
	}

	saved, result, err := h.Service.UpdateLeadDays(r.Context(), *req.ReminderLeadDays, req.Recalculate)
	if err != nil {
		writeServiceError(w, "Failed to update settings", err)
		return
	}

	resp := map[string]any{"settings": toSettingsDTO(saved)}
	if result != nil {
		resp["recalculation"] = toReconcileResultDTO(*result)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Recalculate re-derives send dates with the given or stored lead time.
// A lead time in the request is saved to settings first, so later imports
// and refreshes use the same value.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var leadDays int
	if req.ReminderLeadDays != nil {
		saved, _, err := h.Service.UpdateLeadDays(r.Context(), *req.ReminderLeadDays, false)
		if err != nil {
			writeServiceError(w, "Failed to update settings", err)
			return
		}
		leadDays = saved.ReminderLeadDays
	} else {
		s, err := h.Service.CurrentSettings(r.Context())
		if err != nil {
			writeServiceError(w, "Failed to read settings", err)
			return
		}
		leadDays = s.ReminderLeadDays
	}

	result, err := h.Service.Recalculate(r.Context(), leadDays, ilit.RecalcOptions{OverwriteExplicit: req.OverwriteExplicit})
	if err != nil {
		writeServiceError(w, "Failed to recalculate", err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileResultDTO(result))
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// ListRuns returns recalculation and refresh history, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	dtos := []RunDTO{}
	if h.Service.Runs != nil {
		runs, err := h.Service.Runs.ListRuns(r.Context(), queryLimit(r, 0))
		if err != nil {
			writeServiceError(w, "Failed to list runs", err)
			return
		}
		for _, run := range runs {
			dtos = append(dtos, toRunDTO(run))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// RefreshStatuses reclassifies every non-overridden policy now.
func (h *Handler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.RefreshStatuses(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to refresh statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResultDTO{
		RunID:    result.RunID,
		Checked:  result.Checked,
		Changed:  result.Changed,
		Failures: toFailureDTOs(result.Failures),
	})
}

// Activity returns the most recent audit entries.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	dtos := []AuditDTO{}
	if h.Service.Audit != nil {
		entries, err := h.Service.Audit.RecentAudit(r.Context(), queryLimit(r, defaultActivity))
		if err != nil {
			writeServiceError(w, "Failed to list activity", err)
			return
		}
		for _, e := range entries {
			dtos = append(dtos, AuditDTO{
				ID:          e.ID,
				Timestamp:   formatTimestamp(e.Timestamp),
				Action:      string(e.Action),
				PolicyID:    e.PolicyID,
				Description: e.Description,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError picks the status code from the error kind.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case ilit.IsNotFound(err):
		return http.StatusNotFound
	case ilit.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeFile(w http.ResponseWriter, filename string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	body.WriteTo(w)
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func queryLimit(r *http.Request, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
