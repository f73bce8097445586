package ilit

// =============================================================================
// DERIVED FIELD CALCULATOR
// =============================================================================

// GiftLeadDays is how far the gift date sits before the premium due date.
const GiftLeadDays = 1

// DeriveDates fills the gift date and the Crummey letter send date from the
// premium due date when they are absent:
//
//	giftDate              = premiumDueDate - 1 day
//	crummeyLetterSendDate = premiumDueDate - leadDays
//
// Values already present are left alone, so running it twice with the same
// leadDays changes nothing. Without a due date nothing is derived.
// leadDays is validated at the settings boundary, not here.
func DeriveDates(r PolicyRecord, leadDays int) PolicyRecord {
	if !r.HasDueDate() {
		return r
	}
	if r.GiftDate.IsZero() {
		r.GiftDate = r.PremiumDueDate.AddDays(-GiftLeadDays)
		r.GiftDateExplicit = false
	}
	if r.CrummeyLetterSendDate.IsZero() {
		r.CrummeyLetterSendDate = SendDateFor(r.PremiumDueDate, leadDays)
		r.SendDateExplicit = false
	}
	return r
}

// SendDateFor is the Crummey letter send date for a due date and lead time.
func SendDateFor(due Date, leadDays int) Date {
	return due.AddDays(-leadDays)
}
