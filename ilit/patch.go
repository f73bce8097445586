package ilit

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY PATCH - Sparse per-record update
// =============================================================================

// PolicyPatch names the fields to change on one record. Nil means "leave as
// is"; a pointer to a zero value clears the field.
type PolicyPatch struct {
	ID string

	IlitName         *string
	InsuredName      *string
	Trustees         *string
	InsuranceCompany *string
	PolicyNumber     *string
	Frequency        *string
	Notes            *string

	PremiumDueDate *Date
	PremiumAmount  *decimal.NullDecimal

	GiftDate              *Date
	GiftDateExplicit      *bool
	CrummeyLetterSendDate *Date
	SendDateExplicit      *bool
	CrummeyLetterSentDate *Date

	Status *StatusValue
}

// Apply returns r with the patch applied. ID and timestamps are not touched.
func (p PolicyPatch) Apply(r PolicyRecord) PolicyRecord {
	setString(&r.IlitName, p.IlitName)
	setString(&r.InsuredName, p.InsuredName)
	setString(&r.Trustees, p.Trustees)
	setString(&r.InsuranceCompany, p.InsuranceCompany)
	setString(&r.PolicyNumber, p.PolicyNumber)
	setString(&r.Frequency, p.Frequency)
	setString(&r.Notes, p.Notes)

	if p.PremiumDueDate != nil {
		r.PremiumDueDate = *p.PremiumDueDate
	}
	if p.PremiumAmount != nil {
		r.PremiumAmount = *p.PremiumAmount
	}
	if p.GiftDate != nil {
		r.GiftDate = *p.GiftDate
	}
	if p.GiftDateExplicit != nil {
		r.GiftDateExplicit = *p.GiftDateExplicit
	}
	if p.CrummeyLetterSendDate != nil {
		r.CrummeyLetterSendDate = *p.CrummeyLetterSendDate
	}
	if p.SendDateExplicit != nil {
		r.SendDateExplicit = *p.SendDateExplicit
	}
	if p.CrummeyLetterSentDate != nil {
		r.CrummeyLetterSentDate = *p.CrummeyLetterSentDate
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = collapse(*v)
	}
}

// UpdateResult is the outcome of one patch in an UpdateMany call.
type UpdateResult struct {
	ID  string
	Err error
}

// OK reports whether the patch was written.
func (u UpdateResult) OK() bool { return u.Err == nil }

// =============================================================================
// UPSERT KEYS
// =============================================================================

// UpsertKey names the natural key used to match re-imported rows to stored records.
type UpsertKey string

const (
	// KeyPolicyNumber matches on the policy number alone.
	KeyPolicyNumber UpsertKey = "policy_number"
	// KeyTrustPolicy matches on ILIT name plus policy number.
	KeyTrustPolicy UpsertKey = "ilit_policy"
)

// ParseUpsertKey accepts the two key names; empty means KeyPolicyNumber.
func ParseUpsertKey(s string) (UpsertKey, bool) {
	switch UpsertKey(s) {
	case "", KeyPolicyNumber:
		return KeyPolicyNumber, true
	case KeyTrustPolicy:
		return KeyTrustPolicy, true
	}
	return "", false
}

// Of returns the key value for r. Records without a policy number have no key
// and are always inserted.
func (k UpsertKey) Of(r PolicyRecord) (string, bool) {
	number := NormalizeHeader(r.PolicyNumber)
	if number == "" {
		return "", false
	}
	if k == KeyTrustPolicy {
		return NormalizeHeader(r.IlitName) + "\x00" + number, true
	}
	return number, true
}

// UpsertResult counts what an UpsertByKey call did.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// MergeForUpsert folds a freshly imported record into the stored one it
// matched. Imported values win, except that a sent letter and a manual
// status override survive a re-import that doesn't carry them.
func MergeForUpsert(existing, incoming PolicyRecord) PolicyRecord {
	merged := incoming
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt

	if merged.CrummeyLetterSentDate.IsZero() {
		merged.CrummeyLetterSentDate = existing.CrummeyLetterSentDate
	}
	if !merged.Status.Overridden && existing.Status.Overridden {
		merged.Status = existing.Status
	}
	if merged.LetterSent() && !merged.Status.Overridden {
		merged.Status = Derived(StatusLetterSent)
	}
	return merged
}
