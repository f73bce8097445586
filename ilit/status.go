package ilit

// =============================================================================
// STATUS CLASSIFIER
// =============================================================================

// DueSoonDays is the window, in days before the premium due date, in which a
// policy is Due Soon regardless of its letter schedule.
const DueSoonDays = 7

// Classify maps a record to its lifecycle status as of today. First match wins:
//
//  1. a manual override is returned unchanged
//  2. a sent letter            -> Letter Sent
//  3. no premium due date      -> Not Started
//  4. due date already passed  -> Overdue
//  5. send date on/before today -> Due Soon
//  6. due within 7 days        -> Due Soon
//  7. otherwise                -> Pending
//
// today is always supplied by the caller; Classify never reads the clock.
func Classify(r PolicyRecord, today Date, leadDays int) Status {
	if r.Status.Overridden && r.Status.Status != "" {
		return r.Status.Status
	}
	if r.LetterSent() {
		return StatusLetterSent
	}
	if !r.HasDueDate() {
		return StatusNotStarted
	}

	daysUntilDue := DaysBetween(today, r.PremiumDueDate)
	if daysUntilDue < 0 {
		return StatusOverdue
	}
	if !r.CrummeyLetterSendDate.IsZero() && r.CrummeyLetterSendDate.BeforeOrEqual(today) {
		return StatusDueSoon
	}
	if daysUntilDue <= DueSoonDays {
		return StatusDueSoon
	}
	// Inside the lead window (daysUntilDue <= leadDays) the letter is
	// scheduled but not yet due; beyond it nothing is actionable yet.
	// Both read as Pending.
	return StatusPending
}

// ClassifyValue returns the record's tagged status: overrides pass through,
// everything else is re-derived.
func ClassifyValue(r PolicyRecord, today Date, leadDays int) StatusValue {
	if r.Status.Overridden && r.Status.Status != "" {
		return r.Status
	}
	return Derived(Classify(r, today, leadDays))
}
