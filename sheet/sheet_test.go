package sheet_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ilit-engine/ilit"
	"github.com/warp/ilit-engine/ilit/store"
	"github.com/warp/ilit-engine/sheet"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func readAll(t *testing.T, src ilit.TabularSource) []ilit.Row {
	t.Helper()
	var rows []ilit.Row
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func workbook(t *testing.T, cells map[string]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for axis, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", axis, v))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

// =============================================================================
// XLSX
// =============================================================================

func TestReadXLSX_TypedCells(t *testing.T) {
	// GIVEN: A workbook with text, serial date, boolean and numeric cells
	buf := workbook(t, map[string]any{
		"A1": "ILIT Name", "B1": "Premium Due Date", "C1": "Crummey Sent", "D1": "Policy Number", "E1": "Trust Number",
		"A2": "Smith ILIT", "B2": 46096, "C2": true, "D2": 884512, "E2": "00417",
	})

	// WHEN: Reading it
	table, err := sheet.ReadXLSX(buf)
	require.NoError(t, err)
	defer table.Close()

	// THEN: Numbers come back as float64, text stays text
	assert.Equal(t, []string{"ILIT Name", "Premium Due Date", "Crummey Sent", "Policy Number", "Trust Number"}, table.Headers())
	rows := readAll(t, table)
	require.Len(t, rows, 1)
	assert.Equal(t, "Smith ILIT", rows[0]["ILIT Name"])
	assert.Equal(t, 46096.0, rows[0]["Premium Due Date"])
	assert.Equal(t, 884512.0, rows[0]["Policy Number"])
	assert.Equal(t, "00417", rows[0]["Trust Number"], "zero-padded identifiers stay text")

	// AND: Booleans are stored as 1/0 and still coerce
	sent, ok := ilit.CoerceBoolean(rows[0]["Crummey Sent"])
	require.True(t, ok)
	assert.True(t, sent)
}

func TestReadXLSX_ErrorValuesAreBlank(t *testing.T) {
	buf := workbook(t, map[string]any{
		"A1": "ILIT Name", "B1": "Premium Amount", "C1": "Notes",
		"A2": "Smith ILIT", "B2": "#N/A",
	})

	table, err := sheet.ReadXLSX(buf)
	require.NoError(t, err)
	defer table.Close()

	rows := readAll(t, table)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["Premium Amount"])
	assert.Nil(t, rows[0]["Notes"])
}

func TestReadXLSX_StopsAtEOFAndClosesTwice(t *testing.T) {
	table, err := sheet.ReadXLSX(workbook(t, map[string]any{"A1": "ILIT Name", "A2": "Smith ILIT"}))
	require.NoError(t, err)

	_, err = table.Next()
	require.NoError(t, err)
	_, err = table.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = table.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, table.Close())
	require.NoError(t, table.Close())
}

func TestReadXLSX_BlankRowsAndMissingCells(t *testing.T) {
	buf := workbook(t, map[string]any{
		"A1": "ILIT Name", "B1": "Notes",
		"A2": "Smith ILIT",
		"A4": "Jones ILIT", "B4": "call first",
	})

	table, err := sheet.ReadXLSX(buf)
	require.NoError(t, err)

	rows := readAll(t, table)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0]["Notes"])
	assert.True(t, ilit.IsBlankRow(rows[1]))
	assert.Equal(t, "call first", rows[2]["Notes"])
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	_, err := sheet.ReadXLSX(strings.NewReader("definitely not a zip"))
	assert.ErrorIs(t, err, ilit.ErrUnsupportedFormat)
}

func TestReadXLSX_EmptyWorkbook(t *testing.T) {
	_, err := sheet.ReadXLSX(workbook(t, nil))
	assert.ErrorIs(t, err, ilit.ErrEmptySheet)
}

// =============================================================================
// CSV / JSON / DISPATCH
// =============================================================================

func TestReadCSV(t *testing.T) {
	data := "\ufeffILIT Name, Premium Due Date ,Premium Amount,ILIT Name\n" +
		"Smith ILIT,03/15/2026,\"$2,500.00\",ignored\n" +
		"Short Row\n"

	table, err := sheet.ReadCSV(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"ILIT Name", "Premium Due Date", "Premium Amount", "ILIT Name"}, table.Headers())
	rows := readAll(t, table)
	require.Len(t, rows, 2)
	assert.Equal(t, "Smith ILIT", rows[0]["ILIT Name"], "repeated header keeps its first column")
	assert.Equal(t, "$2,500.00", rows[0]["Premium Amount"])
	assert.Equal(t, "Short Row", rows[1]["ILIT Name"])
	assert.Nil(t, rows[1]["Premium Amount"])
}

func TestReadCSV_RowsReadOnDemand(t *testing.T) {
	// GIVEN: A stream that fails after the first data row
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("ILIT Name\nSmith ILIT\n"), iotest.ErrReader(boom))

	// WHEN: Opening it
	table, err := sheet.ReadCSV(r)

	// THEN: The header and first row are available before the failure
	require.NoError(t, err)
	assert.Equal(t, []string{"ILIT Name"}, table.Headers())
	row, err := table.Next()
	require.NoError(t, err)
	assert.Equal(t, "Smith ILIT", row["ILIT Name"])

	// AND: The failure surfaces on the next row
	_, err = table.Next()
	assert.ErrorIs(t, err, boom)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := sheet.ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ilit.ErrEmptySheet)

	_, err = sheet.ReadCSV(strings.NewReader("\ufeff , \nSmith ILIT\n"))
	assert.ErrorIs(t, err, ilit.ErrEmptySheet)
}

func TestReadJSON_Shapes(t *testing.T) {
	table, err := sheet.ReadJSON(strings.NewReader(`[{"Trust": "Doe Trust", "Amount": 450}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Amount", "Trust"}, table.Headers())
	rows := readAll(t, table)
	require.Len(t, rows, 1)
	amount, ok := ilit.CoerceAmount(rows[0]["Amount"])
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.NewFromInt(450)))

	table, err = sheet.ReadJSON(strings.NewReader(`{"headers": ["Trust"], "rows": [{"Trust": "Doe Trust"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Trust"}, table.Headers())

	_, err = sheet.ReadJSON(strings.NewReader(`{"rows": `))
	assert.ErrorIs(t, err, ilit.ErrUnsupportedFormat)
}

func TestOpen_Dispatch(t *testing.T) {
	table, err := sheet.Open(strings.NewReader("ILIT Name\nSmith ILIT\n"), "Policies.CSV")
	require.NoError(t, err)
	assert.Len(t, readAll(t, table), 1)

	_, err = sheet.Open(strings.NewReader(""), "legacy.xls")
	assert.ErrorIs(t, err, ilit.ErrUnsupportedFormat)
	assert.True(t, ilit.IsClientError(err))
}

// =============================================================================
// WRITERS
// =============================================================================

func TestWriteTemplate_ReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sheet.WriteTemplate(&buf))

	table, err := sheet.ReadXLSX(&buf)
	require.NoError(t, err)

	want := make([]string, len(ilit.TemplateFields))
	for i, f := range ilit.TemplateFields {
		want[i] = string(f)
	}
	assert.Equal(t, want, table.Headers())

	rows := readAll(t, table)
	require.Len(t, rows, 2)
	assert.Equal(t, "Smith Family ILIT", rows[0]["ilitName"])
	due, ok := ilit.CoerceDate(rows[0]["premiumDueDate"])
	require.True(t, ok)
	assert.Equal(t, ilit.NewDate(2026, time.March, 15), due)
	assert.Equal(t, 450.0, rows[1]["premiumAmount"])
}

func TestWriteExport_ReimportKeepsOverridesOnly(t *testing.T) {
	// GIVEN: A derived record, a record with a typed send date and an override
	records := []ilit.PolicyRecord{
		{
			IlitName:              "Smith ILIT",
			PolicyNumber:          "P-1",
			PremiumDueDate:        ilit.NewDate(2026, time.March, 15),
			PremiumAmount:         decimal.NewNullDecimal(decimal.RequireFromString("2500.50")),
			GiftDate:              ilit.NewDate(2026, time.March, 14),
			CrummeyLetterSendDate: ilit.NewDate(2026, time.February, 13),
			Status:                ilit.Derived(ilit.StatusPending),
		},
		{
			IlitName:              "Typed ILIT",
			PremiumDueDate:        ilit.NewDate(2026, time.March, 15),
			GiftDate:              ilit.NewDate(2026, time.March, 14),
			CrummeyLetterSendDate: ilit.NewDate(2026, time.March, 1),
			SendDateExplicit:      true,
			Status:                ilit.Derived(ilit.StatusPending),
		},
		{IlitName: "Jones ILIT", Status: ilit.Overridden(ilit.StatusPaid)},
	}

	// WHEN: Exporting and reading the workbook back with a 45 day lead time
	var buf bytes.Buffer
	require.NoError(t, sheet.WriteExport(&buf, records))
	table, err := sheet.ReadXLSX(&buf)
	require.NoError(t, err)
	defer table.Close()

	cols := ilit.ResolveColumns(table.Headers(), ilit.DefaultAliases())
	rows := readAll(t, table)
	require.Len(t, rows, 3)

	// THEN: Derived dates and statuses are re-derived, not imported as typed
	smith, ok := ilit.Normalize(rows[0], cols, 45)
	require.True(t, ok)
	assert.Equal(t, ilit.NewDate(2026, time.March, 15), smith.PremiumDueDate)
	assert.True(t, smith.PremiumAmount.Decimal.Equal(decimal.RequireFromString("2500.5")))
	assert.False(t, smith.Status.Overridden)
	assert.False(t, smith.GiftDateExplicit)
	assert.False(t, smith.SendDateExplicit)
	assert.Equal(t, ilit.NewDate(2026, time.January, 29), smith.CrummeyLetterSendDate)
	assert.Equal(t, "Pending", rows[0][sheet.ComputedStatusHeader])
	assert.Nil(t, rows[0][sheet.CrummeySendDateHeader])
	computed, ok := ilit.CoerceDate(rows[0][sheet.ComputedSendHeader])
	require.True(t, ok)
	assert.Equal(t, ilit.NewDate(2026, time.February, 13), computed)

	// AND: A typed send date is still typed
	typed, ok := ilit.Normalize(rows[1], cols, 45)
	require.True(t, ok)
	assert.True(t, typed.SendDateExplicit)
	assert.False(t, typed.GiftDateExplicit)
	assert.Equal(t, ilit.NewDate(2026, time.March, 1), typed.CrummeyLetterSendDate)

	// AND: The override survives
	jones, ok := ilit.Normalize(rows[2], cols, 45)
	require.True(t, ok)
	assert.Equal(t, ilit.Overridden(ilit.StatusPaid), jones.Status)
}

// =============================================================================
// END TO END
// =============================================================================

func TestCSVImport_SmithScenario(t *testing.T) {
	// GIVEN: A CSV upload and a fresh store
	mem := store.NewMemory()
	svc := ilit.NewServiceFromStore(mem)
	svc.Now = func() time.Time { return time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC) }

	table, err := sheet.Open(strings.NewReader(
		"ILIT Name,Premium Due Date,Premium Amount\n"+
			"Smith ILIT,03/15/2026,\"$2,500.00\"\n"+
			",04/01/2026,100\n"), "policies.csv")
	require.NoError(t, err)

	// WHEN: Ingesting it
	result, err := svc.Ingest(context.Background(), table, ilit.IngestOptions{Name: "policies.csv"})

	// THEN: One record, one skipped row
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, 1, result.RowsSkipped)
	assert.Equal(t, 1, result.RowsInserted)

	records, err := svc.ListPolicies(context.Background(), ilit.PolicyFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ilit.NewDate(2026, time.March, 14), records[0].GiftDate)
	assert.Equal(t, ilit.NewDate(2026, time.February, 13), records[0].CrummeyLetterSendDate)
}

func TestExportRoundTrip_LeadTimeChangeStillApplies(t *testing.T) {
	// GIVEN: A policy created with the default 30 day lead time
	mem := store.NewMemory()
	svc := ilit.NewServiceFromStore(mem)
	svc.Now = func() time.Time { return time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	created, err := svc.CreatePolicy(ctx, ilit.PolicyRecord{
		IlitName:       "Smith ILIT",
		PolicyNumber:   "P-1",
		PremiumDueDate: ilit.NewDate(2026, time.March, 15),
	})
	require.NoError(t, err)
	require.Equal(t, ilit.NewDate(2026, time.February, 13), created.CrummeyLetterSendDate)

	// AND: The export has been re-imported as an upsert
	records, err := svc.ListPolicies(ctx, ilit.PolicyFilter{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, sheet.WriteExport(&buf, records))
	table, err := sheet.ReadXLSX(&buf)
	require.NoError(t, err)
	defer table.Close()
	result, err := svc.Ingest(ctx, table, ilit.IngestOptions{Name: "export.xlsx", Mode: ilit.ImportUpsert, Key: ilit.KeyPolicyNumber})
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsUpdated)

	// WHEN: The lead time changes to 45 days with recalculation
	_, recalc, err := svc.UpdateLeadDays(ctx, 45, true)
	require.NoError(t, err)
	require.NotNil(t, recalc)

	// THEN: The send date moves
	got, err := svc.GetPolicy(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.SendDateExplicit)
	assert.Equal(t, ilit.NewDate(2026, time.January, 29), got.CrummeyLetterSendDate)
	assert.Equal(t, 1, recalc.Updated)
}
