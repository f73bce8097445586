package ilit_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/ilit-engine/ilit"
)

// =============================================================================
// DATE COERCION
// =============================================================================

func TestCoerceDate_Accepted(t *testing.T) {
	eastern := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name  string
		input any
		want  ilit.Date
	}{
		{"us slash", "03/15/2026", date(2026, time.March, 15)},
		{"us dash short year", "3-5-26", date(2026, time.March, 5)},
		{"iso", "2026-03-15", date(2026, time.March, 15)},
		{"iso with time", "2026-03-15T10:00:00Z", date(2026, time.March, 15)},
		{"long form", "March 15, 2026", date(2026, time.March, 15)},
		{"padded", "  03/15/2026 ", date(2026, time.March, 15)},
		{"serial", 46096, date(2026, time.March, 15)},
		{"serial with time of day", 46096.75, date(2026, time.March, 15)},
		{"native time keeps wall clock day", time.Date(2026, time.March, 15, 23, 0, 0, 0, eastern), date(2026, time.March, 15)},
		{"native date", date(2026, time.April, 1), date(2026, time.April, 1)},
		{"formula result", map[string]any{"formula": "A2+30", "result": 46096.0}, date(2026, time.March, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ilit.CoerceDate(tt.input)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceDate_Absent(t *testing.T) {
	for _, input := range []any{nil, "", "   ", "not a date", "2/30/2026", "13/01/2026", -1, true, ilit.Date{}} {
		_, ok := ilit.CoerceDate(input)
		assert.False(t, ok, "%#v", input)
	}
}

// =============================================================================
// AMOUNT / BOOLEAN / STRING COERCION
// =============================================================================

func TestCoerceAmount(t *testing.T) {
	got, ok := ilit.CoerceAmount("$2,500.00")
	assert.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromInt(2500)), got.String())

	got, ok = ilit.CoerceAmount(1234.5)
	assert.True(t, ok)
	assert.True(t, got.Equal(decimal.RequireFromString("1234.5")), got.String())

	got, ok = ilit.CoerceAmount(map[string]any{"formula": "B2*4", "result": "$10"})
	assert.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromInt(10)))

	for _, input := range []any{nil, "", "$", "abc", true} {
		_, ok := ilit.CoerceAmount(input)
		assert.False(t, ok, "%#v", input)
	}
}

func TestCoerceBoolean(t *testing.T) {
	for input, want := range map[any]bool{
		"Yes":      true,
		"SENT":     true,
		"y":        true,
		"not sent": false,
		"N":        false,
		"false":    false,
		1:          true,
		0.0:        false,
		true:       true,
	} {
		got, ok := ilit.CoerceBoolean(input)
		assert.True(t, ok, "%#v", input)
		assert.Equal(t, want, got, "%#v", input)
	}

	for _, input := range []any{nil, "maybe", 2, ""} {
		_, ok := ilit.CoerceBoolean(input)
		assert.False(t, ok, "%#v", input)
	}
}

func TestCoerceString(t *testing.T) {
	got, ok := ilit.CoerceString("  Smith   Family\tILIT ")
	assert.True(t, ok)
	assert.Equal(t, "Smith Family ILIT", got)

	got, ok = ilit.CoerceString(12345.0)
	assert.True(t, ok)
	assert.Equal(t, "12345", got)

	got, ok = ilit.CoerceString(map[string]any{"richText": []any{map[string]any{"text": "Smith "}, map[string]any{"text": "ILIT"}}})
	assert.True(t, ok)
	assert.Equal(t, "Smith ILIT", got)

	_, ok = ilit.CoerceString("   ")
	assert.False(t, ok)
	_, ok = ilit.CoerceString(nil)
	assert.False(t, ok)
}

// =============================================================================
// CELL SHAPES
// =============================================================================

func TestPlainValue_CellObjects(t *testing.T) {
	richText := map[string]any{"richText": []any{
		map[string]any{"text": "Smith "},
		map[string]any{"text": "ILIT"},
	}}
	formula := map[string]any{"formula": "SUM(A1:A2)", "result": 2500.0}
	shared := map[string]any{"sharedFormula": "B2", "result": "x"}
	link := map[string]any{"text": "Acme Life", "hyperlink": "https://acme.example"}
	cellErr := map[string]any{"error": "#REF!"}

	assert.Equal(t, "Smith ILIT", ilit.PlainValue(richText))
	assert.Equal(t, 2500.0, ilit.PlainValue(formula))
	assert.Equal(t, "x", ilit.PlainValue(shared))
	assert.Equal(t, "Acme Life", ilit.PlainValue(link))
	assert.Nil(t, ilit.PlainValue(cellErr))
	assert.Equal(t, 42, ilit.PlainValue(42))
}

func TestIsBlankRow(t *testing.T) {
	assert.True(t, ilit.IsBlankRow(ilit.Row{}))
	assert.True(t, ilit.IsBlankRow(ilit.Row{"A": nil, "B": "  ", "C": map[string]any{"richText": []any{}}}))
	assert.False(t, ilit.IsBlankRow(ilit.Row{"A": nil, "B": 0}))
}
