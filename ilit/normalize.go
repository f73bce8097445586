package ilit

// =============================================================================
// ROW NORMALIZER
// =============================================================================

// Normalize turns one sheet row into a PolicyRecord using the resolved
// columns and the field coercers, then derives the gift and send dates.
// It reports false (skipped) when the row has no ILIT name after coercion.
//
// Dates supplied by the sheet are marked explicit. A status cell naming a
// known status, or a "crummey sent" cell that reads true, becomes a manual
// override. The returned record has no ID and no derived status yet.
func Normalize(row Row, cols ColumnMap, leadDays int) (PolicyRecord, bool) {
	cell := func(f Field) any {
		c, ok := cols.Lookup(f)
		if !ok {
			return nil
		}
		return PlainValue(row[c.Header])
	}
	str := func(f Field) string {
		s, _ := CoerceString(cell(f))
		return s
	}
	date := func(f Field) Date {
		d, _ := CoerceDate(cell(f))
		return d
	}

	name, ok := CoerceString(cell(FieldIlitName))
	if !ok {
		return PolicyRecord{}, false
	}

	r := PolicyRecord{
		IlitName:              name,
		InsuredName:           str(FieldInsuredName),
		Trustees:              str(FieldTrustees),
		InsuranceCompany:      str(FieldInsuranceCompany),
		PolicyNumber:          str(FieldPolicyNumber),
		Frequency:             str(FieldFrequency),
		Notes:                 str(FieldNotes),
		PremiumDueDate:        date(FieldPremiumDueDate),
		GiftDate:              date(FieldGiftDate),
		CrummeyLetterSendDate: date(FieldCrummeyLetterSendDate),
		CrummeyLetterSentDate: date(FieldCrummeyLetterSentDate),
	}
	r.GiftDateExplicit = !r.GiftDate.IsZero()
	r.SendDateExplicit = !r.CrummeyLetterSendDate.IsZero()

	if amount, ok := CoerceAmount(cell(FieldPremiumAmount)); ok && !amount.IsNegative() {
		r.PremiumAmount.Decimal = amount
		r.PremiumAmount.Valid = true
	}

	if label, ok := CoerceString(cell(FieldStatus)); ok {
		if st, known := LookupStatus(label); known {
			r.Status = Overridden(st)
		}
	}
	if sent, ok := CoerceBoolean(cell(FieldCrummeySent)); ok && sent && !r.Status.Overridden {
		r.Status = Overridden(StatusLetterSent)
	}

	return DeriveDates(r, leadDays), true
}
