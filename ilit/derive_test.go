package ilit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/ilit-engine/ilit"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) ilit.Date {
	return ilit.NewDate(y, m, d)
}

// =============================================================================
// DERIVED DATES
// =============================================================================

func TestDeriveDates_FromDueDate(t *testing.T) {
	r := ilit.PolicyRecord{IlitName: "Smith ILIT", PremiumDueDate: date(2026, time.March, 15)}

	got := ilit.DeriveDates(r, 30)

	assert.Equal(t, date(2026, time.March, 14), got.GiftDate)
	assert.Equal(t, date(2026, time.February, 13), got.CrummeyLetterSendDate)
	assert.False(t, got.GiftDateExplicit)
	assert.False(t, got.SendDateExplicit)
}

func TestDeriveDates_CrossesYearBoundary(t *testing.T) {
	r := ilit.PolicyRecord{PremiumDueDate: date(2026, time.January, 1)}

	got := ilit.DeriveDates(r, 30)

	assert.Equal(t, date(2025, time.December, 31), got.GiftDate)
	assert.Equal(t, date(2025, time.December, 2), got.CrummeyLetterSendDate)
}

func TestDeriveDates_KeepsPresentValues(t *testing.T) {
	r := ilit.PolicyRecord{
		PremiumDueDate:        date(2026, time.March, 15),
		GiftDate:              date(2026, time.March, 1),
		GiftDateExplicit:      true,
		CrummeyLetterSendDate: date(2026, time.January, 5),
		SendDateExplicit:      true,
	}

	got := ilit.DeriveDates(r, 30)

	assert.Equal(t, date(2026, time.March, 1), got.GiftDate)
	assert.Equal(t, date(2026, time.January, 5), got.CrummeyLetterSendDate)
	assert.True(t, got.GiftDateExplicit)
	assert.True(t, got.SendDateExplicit)
}

func TestDeriveDates_NoDueDate_NothingDerived(t *testing.T) {
	r := ilit.PolicyRecord{IlitName: "Doe Trust"}

	got := ilit.DeriveDates(r, 30)

	assert.True(t, got.GiftDate.IsZero())
	assert.True(t, got.CrummeyLetterSendDate.IsZero())
}

func TestDeriveDates_Idempotent(t *testing.T) {
	r := ilit.PolicyRecord{PremiumDueDate: date(2026, time.July, 4)}

	once := ilit.DeriveDates(r, 21)
	twice := ilit.DeriveDates(once, 21)

	assert.Equal(t, once, twice)
}

// =============================================================================
// STATUS CLASSIFIER
// =============================================================================

func TestClassify_DecisionOrder(t *testing.T) {
	today := date(2026, time.March, 1)

	tests := []struct {
		name   string
		record ilit.PolicyRecord
		want   ilit.Status
	}{
		{
			name:   "override wins",
			record: ilit.PolicyRecord{PremiumDueDate: date(2026, time.February, 1), Status: ilit.Overridden(ilit.StatusPaid)},
			want:   ilit.StatusPaid,
		},
		{
			name: "sent letter",
			record: ilit.PolicyRecord{
				PremiumDueDate:        date(2026, time.February, 1),
				CrummeyLetterSentDate: date(2026, time.January, 2),
			},
			want: ilit.StatusLetterSent,
		},
		{
			name:   "no due date",
			record: ilit.PolicyRecord{IlitName: "Doe Trust"},
			want:   ilit.StatusNotStarted,
		},
		{
			name:   "due date passed",
			record: ilit.PolicyRecord{PremiumDueDate: date(2026, time.February, 28)},
			want:   ilit.StatusOverdue,
		},
		{
			name: "send date reached",
			record: ilit.PolicyRecord{
				PremiumDueDate:        date(2026, time.March, 20),
				CrummeyLetterSendDate: date(2026, time.March, 1),
			},
			want: ilit.StatusDueSoon,
		},
		{
			name:   "due within seven days",
			record: ilit.PolicyRecord{PremiumDueDate: date(2026, time.March, 8)},
			want:   ilit.StatusDueSoon,
		},
		{
			name:   "due today",
			record: ilit.PolicyRecord{PremiumDueDate: today},
			want:   ilit.StatusDueSoon,
		},
		{
			name: "inside lead window",
			record: ilit.PolicyRecord{
				PremiumDueDate:        date(2026, time.March, 20),
				CrummeyLetterSendDate: date(2026, time.March, 5),
			},
			want: ilit.StatusPending,
		},
		{
			name:   "far out",
			record: ilit.PolicyRecord{PremiumDueDate: date(2026, time.December, 1)},
			want:   ilit.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ilit.Classify(tt.record, today, 30))
		})
	}
}

func TestClassify_DueInTenDays_NoSendDate_Pending(t *testing.T) {
	// GIVEN: Due date 10 days out, no send date, 30 day lead time
	today := date(2026, time.May, 10)
	r := ilit.PolicyRecord{IlitName: "Smith ILIT", PremiumDueDate: today.AddDays(10)}

	// WHEN/THEN: Nothing has come due yet
	assert.Equal(t, ilit.StatusPending, ilit.Classify(r, today, 30))
}

func TestClassify_Pure(t *testing.T) {
	today := date(2026, time.May, 10)
	r := ilit.PolicyRecord{PremiumDueDate: date(2026, time.May, 14)}

	first := ilit.Classify(r, today, 30)
	second := ilit.Classify(r, today, 30)

	assert.Equal(t, first, second)
	assert.Equal(t, ilit.Status(""), r.Status.Status, "input record must not change")
}

func TestClassifyValue_OverridePassesThrough(t *testing.T) {
	r := ilit.PolicyRecord{PremiumDueDate: date(2026, time.January, 1), Status: ilit.Overridden(ilit.StatusPending)}

	got := ilit.ClassifyValue(r, date(2026, time.March, 1), 30)

	assert.Equal(t, ilit.Overridden(ilit.StatusPending), got)
}

func TestClassifyValue_DerivedIsRecomputed(t *testing.T) {
	r := ilit.PolicyRecord{PremiumDueDate: date(2026, time.January, 1), Status: ilit.Derived(ilit.StatusPending)}

	got := ilit.ClassifyValue(r, date(2026, time.March, 1), 30)

	assert.Equal(t, ilit.Derived(ilit.StatusOverdue), got)
}

// =============================================================================
// STATUS VALUES
// =============================================================================

func TestLookupStatus_Spellings(t *testing.T) {
	for input, want := range map[string]ilit.Status{
		"Due Soon":    ilit.StatusDueSoon,
		"due_soon":    ilit.StatusDueSoon,
		"DUE-SOON":    ilit.StatusDueSoon,
		"letter sent": ilit.StatusLetterSent,
		"Sent":        ilit.StatusLetterSent,
		"paid":        ilit.StatusPaid,
		"NotStarted":  ilit.StatusNotStarted,
	} {
		got, ok := ilit.LookupStatus(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := ilit.LookupStatus("Cancelled")
	assert.False(t, ok)
}

func TestParseStatus_UnknownReadsAsPending(t *testing.T) {
	assert.Equal(t, ilit.StatusPending, ilit.ParseStatus("Archived"))
	assert.Equal(t, ilit.StatusOverdue, ilit.ParseStatus("Overdue"))
}
