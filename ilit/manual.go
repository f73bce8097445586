package ilit

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SINGLE-RECORD OPERATIONS - manual entry, edits, mark sent, overrides
// =============================================================================

// GetPolicy returns one record.
func (s *Service) GetPolicy(ctx context.Context, id string) (PolicyRecord, error) {
	return s.Policies.Get(ctx, id)
}

// ListPolicies returns the records matching filter.
func (s *Service) ListPolicies(ctx context.Context, filter PolicyFilter) ([]PolicyRecord, error) {
	return s.Policies.ReadAll(ctx, filter)
}

// CreatePolicy is the manual-entry path. Dates present on r are treated as
// explicit; the rest are derived with the current lead time. A non-empty
// r.Status is kept as a manual override.
func (s *Service) CreatePolicy(ctx context.Context, r PolicyRecord) (PolicyRecord, error) {
	r.IlitName = collapse(r.IlitName)
	if r.IlitName == "" {
		return PolicyRecord{}, ErrMissingIlitName
	}
	if r.PremiumAmount.Valid && r.PremiumAmount.Decimal.IsNegative() {
		return PolicyRecord{}, ErrNegativeAmount
	}
	for _, f := range []*string{&r.InsuredName, &r.Trustees, &r.InsuranceCompany, &r.PolicyNumber, &r.Frequency, &r.Notes} {
		*f = collapse(*f)
	}

	leadDays, err := s.leadDays(ctx)
	if err != nil {
		return PolicyRecord{}, err
	}

	r.ID = ""
	r.GiftDateExplicit = !r.GiftDate.IsZero()
	r.SendDateExplicit = !r.CrummeyLetterSendDate.IsZero()
	if r.Status.Status != "" {
		r.Status = Overridden(r.Status.Status)
	}
	r = DeriveDates(r, leadDays)
	r.Status = ClassifyValue(r, s.today(), leadDays)

	created, err := s.Policies.Create(ctx, r)
	if err != nil {
		return PolicyRecord{}, fmt.Errorf("%w: create policy: %w", ErrPersistence, err)
	}
	s.audit(ctx, AuditCreate, created.ID, "Created %s", describe(created))
	return created, nil
}

// EditPolicy applies a user edit. Gift and send dates set by the edit become
// explicit; clearing one (a zero date) hands it back to derivation. When the
// due date changes, derived dates follow it. The status is re-derived unless
// it is overridden.
func (s *Service) EditPolicy(ctx context.Context, id string, patch PolicyPatch) (PolicyRecord, error) {
	current, err := s.Policies.Get(ctx, id)
	if err != nil {
		return PolicyRecord{}, err
	}
	if patch.IlitName != nil && collapse(*patch.IlitName) == "" {
		return PolicyRecord{}, ErrMissingIlitName
	}
	if patch.PremiumAmount != nil && patch.PremiumAmount.Valid && patch.PremiumAmount.Decimal.IsNegative() {
		return PolicyRecord{}, ErrNegativeAmount
	}

	leadDays, err := s.leadDays(ctx)
	if err != nil {
		return PolicyRecord{}, err
	}

	next := patch.Apply(current)
	if patch.GiftDate != nil && patch.GiftDateExplicit == nil {
		next.GiftDateExplicit = !patch.GiftDate.IsZero()
	}
	if patch.CrummeyLetterSendDate != nil && patch.SendDateExplicit == nil {
		next.SendDateExplicit = !patch.CrummeyLetterSendDate.IsZero()
	}
	if patch.PremiumDueDate != nil && !patch.PremiumDueDate.Equal(current.PremiumDueDate) {
		if !next.GiftDateExplicit {
			next.GiftDate = Date{}
		}
		if !next.SendDateExplicit {
			next.CrummeyLetterSendDate = Date{}
		}
	}
	next = DeriveDates(next, leadDays)
	next.Status = ClassifyValue(next, s.today(), leadDays)

	saved, err := s.Policies.Update(ctx, next)
	if err != nil {
		return PolicyRecord{}, s.wrapStoreErr("update policy", err)
	}
	s.audit(ctx, AuditEdit, saved.ID, "Edited %s", describe(saved))
	return saved, nil
}

// MarkLetterSent records that the Crummey letter went out. A zero date means today.
func (s *Service) MarkLetterSent(ctx context.Context, id string, sent Date) (PolicyRecord, error) {
	if sent.IsZero() {
		sent = s.today()
	}
	current, err := s.Policies.Get(ctx, id)
	if err != nil {
		return PolicyRecord{}, err
	}
	current.CrummeyLetterSentDate = sent
	if !current.Status.Overridden {
		current.Status = Derived(StatusLetterSent)
	}

	saved, err := s.Policies.Update(ctx, current)
	if err != nil {
		return PolicyRecord{}, s.wrapStoreErr("mark letter sent", err)
	}
	s.audit(ctx, AuditLetterSent, saved.ID, "Crummey letter sent %s for %s", sent, describe(saved))
	return saved, nil
}

// MarkPaid overrides the status to Paid.
func (s *Service) MarkPaid(ctx context.Context, id string) (PolicyRecord, error) {
	saved, err := s.setStatus(ctx, id, Overridden(StatusPaid))
	if err != nil {
		return PolicyRecord{}, err
	}
	s.audit(ctx, AuditPaid, saved.ID, "Premium paid for %s", describe(saved))
	return saved, nil
}

// SetStatusOverride pins a status chosen by a user.
func (s *Service) SetStatusOverride(ctx context.Context, id string, label string) (PolicyRecord, error) {
	st, ok := LookupStatus(label)
	if !ok {
		return PolicyRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, label)
	}
	saved, err := s.setStatus(ctx, id, Overridden(st))
	if err != nil {
		return PolicyRecord{}, err
	}
	s.audit(ctx, AuditStatusOverride, saved.ID, "Status set to %s for %s", st, describe(saved))
	return saved, nil
}

// ClearStatusOverride drops a manual status and re-derives it.
func (s *Service) ClearStatusOverride(ctx context.Context, id string) (PolicyRecord, error) {
	current, err := s.Policies.Get(ctx, id)
	if err != nil {
		return PolicyRecord{}, err
	}
	leadDays, err := s.leadDays(ctx)
	if err != nil {
		return PolicyRecord{}, err
	}
	current.Status = Derived(Classify(PolicyRecord{
		PremiumDueDate:        current.PremiumDueDate,
		CrummeyLetterSendDate: current.CrummeyLetterSendDate,
		CrummeyLetterSentDate: current.CrummeyLetterSentDate,
	}, s.today(), leadDays))

	saved, err := s.Policies.Update(ctx, current)
	if err != nil {
		return PolicyRecord{}, s.wrapStoreErr("clear status override", err)
	}
	s.audit(ctx, AuditStatusOverride, saved.ID, "Status override cleared for %s", describe(saved))
	return saved, nil
}

func (s *Service) setStatus(ctx context.Context, id string, status StatusValue) (PolicyRecord, error) {
	current, err := s.Policies.Get(ctx, id)
	if err != nil {
		return PolicyRecord{}, err
	}
	current.Status = status
	saved, err := s.Policies.Update(ctx, current)
	if err != nil {
		return PolicyRecord{}, s.wrapStoreErr("set status", err)
	}
	return saved, nil
}

// DeletePolicy removes a record. Records are never removed implicitly.
func (s *Service) DeletePolicy(ctx context.Context, id string) error {
	current, err := s.Policies.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Policies.Delete(ctx, id); err != nil {
		return s.wrapStoreErr("delete policy", err)
	}
	s.audit(ctx, AuditDelete, id, "Deleted %s", describe(current))
	return nil
}

func (s *Service) wrapStoreErr(op string, err error) error {
	if errors.Is(err, ErrPolicyNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func describe(r PolicyRecord) string {
	if r.PolicyNumber != "" {
		return fmt.Sprintf("%s (policy %s)", r.IlitName, r.PolicyNumber)
	}
	return r.IlitName
}
