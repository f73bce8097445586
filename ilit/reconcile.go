package ilit

// =============================================================================
// RECALCULATION PLANNER - Reacting to a changed lead time
// =============================================================================

// RecalcOptions tunes a recalculation.
type RecalcOptions struct {
	// OverwriteExplicit also replaces send dates a user typed in.
	// By default only derived send dates are recomputed.
	OverwriteExplicit bool
}

// RecalcPlan is the set of writes a recalculation needs.
type RecalcPlan struct {
	Patches   []PolicyPatch
	Preserved []string // ids whose explicit send date was kept
}

// PlanRecalculation recomputes crummeyLetterSendDate = premiumDueDate - leadDays
// for every record with a due date, overwriting the previously derived value,
// and re-derives each non-overridden status against today.
// Records without a due date are not touched. Pure; nothing is written.
func PlanRecalculation(records []PolicyRecord, leadDays int, today Date, opts RecalcOptions) RecalcPlan {
	var plan RecalcPlan
	for _, r := range records {
		if !r.HasDueDate() {
			continue
		}
		if r.SendDateExplicit && !opts.OverwriteExplicit {
			plan.Preserved = append(plan.Preserved, r.ID)
			continue
		}

		send := SendDateFor(r.PremiumDueDate, leadDays)
		derived := false
		r.CrummeyLetterSendDate = send
		r.SendDateExplicit = false
		status := ClassifyValue(r, today, leadDays)

		plan.Patches = append(plan.Patches, PolicyPatch{
			ID:                    r.ID,
			CrummeyLetterSendDate: &send,
			SendDateExplicit:      &derived,
			Status:                &status,
		})
	}
	return plan
}

// ReconcileResult reports a persisted recalculation.
type ReconcileResult struct {
	RunID     string
	LeadDays  int
	Updated   int
	Preserved int
	Failures  []RecordFailure
}

// =============================================================================
// STATUS REFRESH - Statuses age as days pass
// =============================================================================

// PlanStatusRefresh returns a status patch for every non-overridden record
// whose derived status differs from what it should be today.
func PlanStatusRefresh(records []PolicyRecord, today Date, leadDays int) []PolicyPatch {
	var patches []PolicyPatch
	for _, r := range records {
		if r.Status.Overridden {
			continue
		}
		next := ClassifyValue(r, today, leadDays)
		if next == r.Status {
			continue
		}
		patches = append(patches, PolicyPatch{ID: r.ID, Status: &next})
	}
	return patches
}

// RefreshResult reports a persisted status refresh.
type RefreshResult struct {
	RunID    string
	Checked  int
	Changed  int
	Failures []RecordFailure
}
