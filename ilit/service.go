/*
service.go - Orchestration of the engine over its stores

PURPOSE:
  Service is the only part of the package that touches stores or the clock.
  Every run (import, recalculation, status refresh) reads the settings once
  at the start and holds that lead time fixed for the whole run.

OPTIONAL COLLABORATORS:
  Clients, Audit and Runs may be nil. Failures writing to them are logged
  and never fail the primary operation.

LOGGING:
  Standard library log with a bracketed component prefix, e.g. [Import].
*/
package ilit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Service runs imports, manual edits, recalculations and status refreshes.
type Service struct {
	Policies PolicyStore
	Settings SettingsStore
	Clients  ClientStore
	Audit    AuditLog
	Runs     RunStore

	// Aliases is the column alias table used by imports.
	Aliases AliasTable

	// Now is the clock. Tests pin it.
	Now func() time.Time
}

// NewService creates a service over a policy store and a settings store.
func NewService(policies PolicyStore, settings SettingsStore) *Service {
	return &Service{
		Policies: policies,
		Settings: settings,
		Aliases:  DefaultAliases(),
		Now:      time.Now,
	}
}

// NewServiceFromStore wires every collaborator from one backend.
func NewServiceFromStore(s Store) *Service {
	svc := NewService(s, s)
	svc.Clients = s
	svc.Audit = s
	svc.Runs = s
	return svc
}

func (s *Service) today() Date {
	return DateOf(s.Now().UTC())
}

// leadDays reads the settings once for a run.
func (s *Service) leadDays(ctx context.Context) (int, error) {
	settings, err := s.Settings.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read settings: %w", ErrPersistence, err)
	}
	if err := settings.Validate(); err != nil {
		return 0, err
	}
	return settings.ReminderLeadDays, nil
}

func (s *Service) audit(ctx context.Context, action AuditAction, policyID, format string, args ...any) {
	if s.Audit == nil {
		return
	}
	entry := AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   s.Now().UTC(),
		Action:      action,
		PolicyID:    policyID,
		Description: fmt.Sprintf(format, args...),
	}
	if err := s.Audit.AppendAudit(ctx, entry); err != nil {
		log.Printf("[Audit] Failed to record %s: %v", action, err)
	}
}

func (s *Service) saveRun(ctx context.Context, run RecalculationRun) {
	if s.Runs == nil {
		return
	}
	if err := s.Runs.SaveRun(ctx, run); err != nil {
		log.Printf("[Runs] Failed to save run %s: %v", run.ID, err)
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// CurrentSettings returns the settings, creating the defaults on first read.
func (s *Service) CurrentSettings(ctx context.Context) (Settings, error) {
	settings, err := s.Settings.GetSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: read settings: %w", ErrPersistence, err)
	}
	return settings, nil
}

// UpdateLeadDays validates and stores a new lead time. With recalculate set,
// derived send dates are then recomputed using the new value.
func (s *Service) UpdateLeadDays(ctx context.Context, days int, recalculate bool) (Settings, *ReconcileResult, error) {
	next := Settings{ReminderLeadDays: days, UpdatedAt: s.Now().UTC()}
	if err := next.Validate(); err != nil {
		return Settings{}, nil, err
	}

	saved, err := s.Settings.SetSettings(ctx, next)
	if err != nil {
		return Settings{}, nil, fmt.Errorf("%w: save settings: %w", ErrPersistence, err)
	}
	s.audit(ctx, AuditSettingsChanged, "", "Reminder lead time set to %d days", days)

	if !recalculate {
		return saved, nil, nil
	}
	result, err := s.Recalculate(ctx, days, RecalcOptions{})
	if err != nil {
		return saved, nil, err
	}
	return saved, &result, nil
}

// =============================================================================
// RECALCULATION
// =============================================================================

// Recalculate recomputes the Crummey letter send date of every record with a
// premium due date using leadDays. Each record is written on its own; a
// failed write is reported in Failures and the rest carry on.
func (s *Service) Recalculate(ctx context.Context, leadDays int, opts RecalcOptions) (ReconcileResult, error) {
	if err := (Settings{ReminderLeadDays: leadDays}).Validate(); err != nil {
		return ReconcileResult{}, err
	}

	run := RecalculationRun{
		ID:        uuid.NewString(),
		Kind:      RunRecalculation,
		LeadDays:  leadDays,
		Status:    "running",
		StartedAt: s.Now().UTC(),
	}
	s.saveRun(ctx, run)

	records, err := s.Policies.ReadAll(ctx, PolicyFilter{HasDueDate: true})
	if err != nil {
		s.finishRun(ctx, run, err)
		return ReconcileResult{}, fmt.Errorf("%w: read policies: %w", ErrPersistence, err)
	}

	plan := PlanRecalculation(records, leadDays, s.today(), opts)
	result := ReconcileResult{RunID: run.ID, LeadDays: leadDays, Preserved: len(plan.Preserved)}

	updated, failures, err := s.applyPatches(ctx, plan.Patches)
	if err != nil {
		s.finishRun(ctx, run, err)
		return ReconcileResult{}, err
	}
	result.Updated = updated
	result.Failures = failures
	for _, f := range failures {
		log.Printf("[Recalc] Failed to update policy %s: %v", f.ID, f.Err)
	}
	log.Printf("[Recalc] Lead time %d days: %d updated, %d preserved, %d failed",
		leadDays, result.Updated, result.Preserved, len(result.Failures))

	run.Updated = result.Updated
	run.Failed = len(result.Failures)
	s.finishRun(ctx, run, nil)
	s.audit(ctx, AuditRecalculation, "", "Recalculated %d send dates with %d day lead time", result.Updated, leadDays)
	return result, nil
}

// RefreshStatuses re-derives every non-overridden status against today.
func (s *Service) RefreshStatuses(ctx context.Context) (RefreshResult, error) {
	leadDays, err := s.leadDays(ctx)
	if err != nil {
		return RefreshResult{}, err
	}

	run := RecalculationRun{
		ID:        uuid.NewString(),
		Kind:      RunStatusRefresh,
		LeadDays:  leadDays,
		Status:    "running",
		StartedAt: s.Now().UTC(),
	}
	s.saveRun(ctx, run)

	records, err := s.Policies.ReadAll(ctx, PolicyFilter{})
	if err != nil {
		s.finishRun(ctx, run, err)
		return RefreshResult{}, fmt.Errorf("%w: read policies: %w", ErrPersistence, err)
	}

	patches := PlanStatusRefresh(records, s.today(), leadDays)
	changed, failures, err := s.applyPatches(ctx, patches)
	if err != nil {
		s.finishRun(ctx, run, err)
		return RefreshResult{}, err
	}

	run.Updated = changed
	run.Failed = len(failures)
	s.finishRun(ctx, run, nil)
	if changed > 0 {
		s.audit(ctx, AuditStatusRefresh, "", "Refreshed %d statuses", changed)
	}
	return RefreshResult{RunID: run.ID, Checked: len(records), Changed: changed, Failures: failures}, nil
}

func (s *Service) applyPatches(ctx context.Context, patches []PolicyPatch) (int, []RecordFailure, error) {
	if len(patches) == 0 {
		return 0, nil, nil
	}
	results, err := s.Policies.UpdateMany(ctx, patches)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: update policies: %w", ErrPersistence, err)
	}

	var (
		updated  int
		failures []RecordFailure
	)
	for _, res := range results {
		if res.OK() {
			updated++
			continue
		}
		failures = append(failures, RecordFailure{ID: res.ID, Err: res.Err})
	}
	return updated, failures, nil
}

func (s *Service) finishRun(ctx context.Context, run RecalculationRun, err error) {
	completed := s.Now().UTC()
	run.CompletedAt = &completed
	switch {
	case err != nil:
		run.Status = "failed"
		run.Error = err.Error()
	case run.Failed > 0:
		run.Status = "completed_with_errors"
	default:
		run.Status = "completed"
	}
	s.saveRun(ctx, run)
}
