package ilit

import (
	"fmt"
	"strings"
)

// =============================================================================
// CELLS - Spreadsheet cell shapes reduced to plain values
// =============================================================================

// Row is one data row keyed by the sheet's header text.
// Values are raw cells: nil, string, bool, numbers, time.Time, or a cell
// object decoded from JSON.
type Row map[string]any

// PlainValue reduces a cell object to the primitive value a user sees in
// the sheet: rich text is joined, formulas yield their cached result, and
// hyperlinks yield their text. Primitive values pass through unchanged.
//
// Objects use the same shapes as common spreadsheet libraries:
// {"richText":[{"text":"..."}]}, {"formula":"...","result":...},
// {"text":"...","hyperlink":"..."}.
func PlainValue(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return plainFromObject(v)
	default:
		return raw
	}
}

func plainFromObject(obj map[string]any) any {
	if runs, ok := obj["richText"].([]any); ok {
		var b strings.Builder
		for _, run := range runs {
			if m, ok := run.(map[string]any); ok {
				if text, ok := m["text"]; ok && text != nil {
					fmt.Fprint(&b, text)
				}
			}
		}
		return b.String()
	}
	_, hasFormula := obj["formula"]
	_, hasShared := obj["sharedFormula"]
	if hasFormula || hasShared {
		return PlainValue(obj["result"])
	}
	if text, ok := obj["text"]; ok {
		return PlainValue(text)
	}
	if result, ok := obj["result"]; ok {
		return PlainValue(result)
	}
	if _, ok := obj["error"]; ok {
		return nil
	}
	return fmt.Sprint(obj)
}

// IsBlank reports whether a cell carries no user data.
func IsBlank(raw any) bool {
	switch v := PlainValue(raw).(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// IsBlankRow reports whether every cell in the row is blank.
func IsBlankRow(row Row) bool {
	for _, v := range row {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}
