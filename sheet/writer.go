package sheet

import (
	"fmt"
	"io"

	"github.com/warp/ilit-engine/ilit"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// WORKBOOK WRITERS - Import template and policy export
// =============================================================================

const (
	TemplateSheet     = "ILIT Template"
	InstructionsSheet = "Instructions"
	ExportSheet       = "ILIT Policies"

	// The computed headers match no alias, so re-importing an export does not
	// turn derived statuses into overrides or derived dates into explicit ones.
	ComputedStatusHeader  = "Status (computed)"
	ComputedGiftHeader    = "Gift Date (computed)"
	ComputedSendHeader    = "Crummey Letter Send Date (computed)"
	OverrideHeader        = "Status Override"
	GiftDateHeader        = "Gift Date"
	CrummeySendDateHeader = "Crummey Letter Send Date"
)

// excelize built-in number formats
const (
	numFmtDate   = 14 // m/d/yyyy
	numFmtAmount = 4  // #,##0.00
)

type templateRow struct {
	IlitName, InsuredName, Trustees, Company, PolicyNumber, Frequency string
	Due                                                               ilit.Date
	Amount                                                            float64
}

var templateExamples = []templateRow{
	{"Smith Family ILIT", "John Smith", "Jane Smith; Robert Smith", "MetLife", "UL-2024-001", "Annual", ilit.NewDate(2026, 3, 15), 2500},
	{"Johnson Estate ILIT", "Mary Johnson", "David Johnson", "Northwestern Mutual", "WL-2023-042", "Monthly", ilit.NewDate(2026, 2, 28), 450},
}

var instructions = []string{
	"ILIT POLICY TEMPLATE",
	"",
	"Required: ilitName (the name of the trust).",
	"Optional: insuredName, trustees (separate names with ;), insuranceCompany,",
	"policyNumber, frequency, premiumDueDate (MM/DD/YYYY), premiumAmount (no $ sign).",
	"",
	"Calculated on import:",
	"giftDate is one day before the premium due date.",
	"crummeyLetterSendDate is the premium due date minus the reminder lead time (30 days unless changed).",
	"",
	"Column names are matched flexibly; common spellings such as \"ILIT Name\" or \"Due Date\" work.",
	"Delete the example rows before uploading.",
}

// WriteTemplate writes the blank import template with two example rows and
// an instructions sheet.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return err
	}
	b, err := newBook(f, TemplateSheet)
	if err != nil {
		return err
	}

	headers := make([]any, len(ilit.TemplateFields))
	for i, field := range ilit.TemplateFields {
		headers[i] = string(field)
	}
	if err := b.header(headers); err != nil {
		return err
	}

	for i, ex := range templateExamples {
		row := i + 2
		values := []any{ex.IlitName, ex.InsuredName, ex.Trustees, ex.Company, ex.PolicyNumber, ex.Frequency}
		if err := b.row(row, values); err != nil {
			return err
		}
		if err := b.date(7, row, ex.Due); err != nil {
			return err
		}
		if err := b.amount(8, row, ex.Amount, true); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(TemplateSheet, "A", "H", 22); err != nil {
		return err
	}

	if _, err := f.NewSheet(InstructionsSheet); err != nil {
		return err
	}
	if err := f.SetColWidth(InstructionsSheet, "A", "A", 100); err != nil {
		return err
	}
	for i, line := range instructions {
		if err := f.SetCellValue(InstructionsSheet, cellName(1, i+1), line); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

var exportHeaders = []any{
	"ILIT Name", "Insured Name", "Trustees", "Insurance Company", "Policy Number", "Frequency",
	"Premium Due Date", "Premium Amount", GiftDateHeader, CrummeySendDateHeader,
	"Crummey Letter Sent Date", "Notes", OverrideHeader, ComputedStatusHeader,
	ComputedGiftHeader, ComputedSendHeader,
}

// WriteExport writes every record to one sheet. Manual overrides go in the
// "Status Override" column and derived statuses in "Status (computed)".
// Gift and send dates follow the same split: typed-in dates keep their
// importable headers, derived ones go to the computed columns.
func WriteExport(w io.Writer, records []ilit.PolicyRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return err
	}
	b, err := newBook(f, ExportSheet)
	if err != nil {
		return err
	}
	if err := b.header(exportHeaders); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		override, computed := "", string(r.Status.Status)
		if r.Status.Overridden {
			override, computed = string(r.Status.Status), ""
		}
		if err := b.row(row, []any{r.IlitName, r.InsuredName, r.Trustees, r.InsuranceCompany, r.PolicyNumber, r.Frequency}); err != nil {
			return err
		}
		giftCol, sendCol := 9, 10
		if !r.GiftDateExplicit {
			giftCol = 15
		}
		if !r.SendDateExplicit {
			sendCol = 16
		}
		for col, d := range map[int]ilit.Date{7: r.PremiumDueDate, giftCol: r.GiftDate, sendCol: r.CrummeyLetterSendDate, 11: r.CrummeyLetterSentDate} {
			if err := b.date(col, row, d); err != nil {
				return err
			}
		}
		if err := b.amount(8, row, r.PremiumAmount.Decimal.InexactFloat64(), r.PremiumAmount.Valid); err != nil {
			return err
		}
		for col, v := range map[int]string{12: r.Notes, 13: override, 14: computed} {
			if v == "" {
				continue
			}
			if err := f.SetCellValue(ExportSheet, cellName(col, row), v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(ExportSheet, "A", "P", 20); err != nil {
		return err
	}
	return f.Write(w)
}

// =============================================================================
// HELPERS
// =============================================================================

type book struct {
	f           *excelize.File
	sheet       string
	headStyle   int
	dateStyle   int
	amountStyle int
}

func newBook(f *excelize.File, sheet string) (*book, error) {
	head, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"366092"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	date, err := f.NewStyle(&excelize.Style{NumFmt: numFmtDate})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return nil, fmt.Errorf("amount style: %w", err)
	}
	return &book{f: f, sheet: sheet, headStyle: head, dateStyle: date, amountStyle: amount}, nil
}

func (b *book) header(values []any) error {
	if err := b.row(1, values); err != nil {
		return err
	}
	return b.f.SetCellStyle(b.sheet, cellName(1, 1), cellName(len(values), 1), b.headStyle)
}

func (b *book) row(row int, values []any) error {
	return b.f.SetSheetRow(b.sheet, cellName(1, row), &values)
}

func (b *book) date(col, row int, d ilit.Date) error {
	if d.IsZero() {
		return nil
	}
	cell := cellName(col, row)
	if err := b.f.SetCellValue(b.sheet, cell, d.Time); err != nil {
		return err
	}
	return b.f.SetCellStyle(b.sheet, cell, cell, b.dateStyle)
}

func (b *book) amount(col, row int, v float64, valid bool) error {
	if !valid {
		return nil
	}
	cell := cellName(col, row)
	if err := b.f.SetCellFloat(b.sheet, cell, v, -1, 64); err != nil {
		return err
	}
	return b.f.SetCellStyle(b.sheet, cell, cell, b.amountStyle)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
