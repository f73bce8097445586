/*
source.go - Uploaded spreadsheets as ilit.TabularSource

PURPOSE:
  Turns an uploaded .xlsx, .csv or .json document into a header row plus a
  stream of rows keyed by header text. Nothing here knows about canonical
  fields; column resolution happens in the ilit package.

STREAMING:
  Only the header row is read up front. XLSX rows come from the excelize
  row iterator and CSV rows from csv.Reader, one per Next call. A Table
  must be closed when the caller is done with it.

CELL VALUES:
  XLSX cells are read raw (no number formatting) and typed from their text:
  numbers (including dates stored as serial days and booleans stored as
  1/0) become float64, error values such as #N/A become nil, everything else
  is a string. Digit strings with a leading zero stay strings.
  CSV cells are always strings. JSON values are kept as decoded, with
  numbers as json.Number.
*/
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/warp/ilit-engine/ilit"
	"github.com/xuri/excelize/v2"
)

// Table is a header row plus a row iterator. It implements ilit.TabularSource.
type Table struct {
	headers []string
	next    func() (ilit.Row, error)
	close   func() error
}

var _ ilit.TabularSource = (*Table)(nil)

func (t *Table) Headers() []string { return t.headers }

// Next returns the next data row, blank ones included, or io.EOF.
func (t *Table) Next() (ilit.Row, error) { return t.next() }

// Close releases the underlying reader. It is safe to call more than once.
func (t *Table) Close() error {
	if t.close == nil {
		return nil
	}
	closeFn := t.close
	t.close = nil
	return closeFn()
}

// keyRow keys one row's cells by header. Cells under an empty header are
// dropped and a repeated header keeps its first column.
func keyRow(headers []string, cells []any) ilit.Row {
	row := make(ilit.Row, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		if _, seen := row[h]; seen {
			continue
		}
		var v any
		if i < len(cells) {
			v = cells[i]
		}
		row[h] = v
	}
	return row
}

func trimHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// =============================================================================
// FORMAT DISPATCH
// =============================================================================

// Open reads r according to the extension of filename.
func Open(r io.Reader, filename string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	case ".json":
		return ReadJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ilit.ErrUnsupportedFormat, ext)
}

// =============================================================================
// XLSX
// =============================================================================

// ReadXLSX opens the first sheet whose first row has any content. The first
// row is the header row; data rows are read on demand.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable workbook: %v", ilit.ErrUnsupportedFormat, err)
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.Rows(name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		headers, err := xlsxHeaders(rows)
		if err != nil {
			rows.Close()
			f.Close()
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if headers == nil {
			rows.Close()
			continue
		}
		return &Table{
			headers: headers,
			next:    xlsxNext(headers, rows),
			close: func() error {
				return errors.Join(rows.Close(), f.Close())
			},
		}, nil
	}
	f.Close()
	return nil, ilit.ErrEmptySheet
}

// xlsxHeaders reads the first row, or returns nil when it is empty.
func xlsxHeaders(rows *excelize.Rows) ([]string, error) {
	if !rows.Next() {
		return nil, rows.Error()
	}
	first, err := rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if !hasContent(first) {
		return nil, nil
	}
	return trimHeaders(first), nil
}

func xlsxNext(headers []string, rows *excelize.Rows) func() (ilit.Row, error) {
	return func() (ilit.Row, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		raw, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		cells := make([]any, len(raw))
		for i, v := range raw {
			cells[i] = xlsxCell(v)
		}
		return keyRow(headers, cells), nil
	}
}

var xlsxErrors = map[string]bool{
	"#NULL!": true, "#DIV/0!": true, "#VALUE!": true, "#REF!": true,
	"#NAME?": true, "#NUM!": true, "#N/A": true, "#GETTING_DATA": true,
}

func xlsxCell(raw string) any {
	if raw == "" || xlsxErrors[raw] {
		return nil
	}
	if !looksNumeric(raw) {
		return raw
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

// looksNumeric rejects the words ParseFloat accepts (NaN, Inf) and
// zero-padded identifiers.
func looksNumeric(s string) bool {
	c := s[0]
	if c != '-' && c != '+' && c != '.' && (c < '0' || c > '9') {
		return false
	}
	return !(len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9')
}

func hasContent(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// =============================================================================
// CSV
// =============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads comma separated rows; the first record is the header row.
// Ragged rows are allowed. A malformed record fails the Next call that
// reaches it.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if lead, _ := br.Peek(len(utf8BOM)); bytes.Equal(lead, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ilit.ErrEmptySheet
	}
	if err != nil {
		return nil, csvError(err)
	}
	if !hasContent(first) {
		return nil, ilit.ErrEmptySheet
	}

	headers := trimHeaders(first)
	return &Table{
		headers: headers,
		next: func() (ilit.Row, error) {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if err != nil {
				return nil, csvError(err)
			}
			cells := make([]any, len(rec))
			for i, v := range rec {
				cells[i] = v
			}
			return keyRow(headers, cells), nil
		},
	}, nil
}

func csvError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: invalid csv: %v", ilit.ErrUnsupportedFormat, err)
	}
	return fmt.Errorf("read csv: %w", err)
}

// =============================================================================
// JSON ROWS
// =============================================================================

// FromRecords builds a table from rows that are already keyed by header,
// as posted by a client that parsed the sheet itself. When headers is empty
// the union of the row keys is used, sorted.
func FromRecords(headers []string, records []map[string]any) (*Table, error) {
	if len(headers) == 0 {
		headers = unionKeys(records)
	}
	if len(headers) == 0 {
		return nil, ilit.ErrEmptySheet
	}

	pos := 0
	return &Table{
		headers: headers,
		next: func() (ilit.Row, error) {
			if pos >= len(records) {
				return nil, io.EOF
			}
			rec := records[pos]
			pos++
			row := make(ilit.Row, len(rec))
			for k, v := range rec {
				row[k] = v
			}
			return row, nil
		},
	}, nil
}

// ReadJSON reads either an array of row objects or {"headers": [...], "rows": [...]}.
func ReadJSON(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	var doc struct {
		Headers []string         `json:"headers"`
		Rows    []map[string]any `json:"rows"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = decodeNumbers(trimmed, &doc.Rows)
	} else {
		err = decodeNumbers(trimmed, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ilit.ErrUnsupportedFormat, err)
	}
	return FromRecords(doc.Headers, doc.Rows)
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

func unionKeys(records []map[string]any) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
