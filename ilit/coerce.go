package ilit

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD COERCERS - Total functions: a value and a present flag, never an error
// =============================================================================

// serialEpoch is day zero of the spreadsheet serial date system.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31; anything larger is not a date.
const maxSerial = 2958465

// usDatePattern is the strict M/D/YYYY or M-D-YYYY fallback.
var usDatePattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)

// isoLayouts are tried first, in order, for string dates.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"2006/1/2",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

var whitespace = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CoerceDate accepts a native date, a spreadsheet serial day count, or a
// string. Strings try the ISO and long-form layouts first, then the strict
// M/D/YYYY or M-D-YYYY pattern, where a two-digit year means 20YY.
func CoerceDate(value any) (Date, bool) {
	switch v := PlainValue(value).(type) {
	case nil:
		return Date{}, false
	case Date:
		return v, !v.IsZero()
	case *Date:
		if v == nil {
			return Date{}, false
		}
		return *v, !v.IsZero()
	case time.Time:
		return DateOf(v), !v.IsZero()
	case *time.Time:
		if v == nil {
			return Date{}, false
		}
		return DateOf(*v), !v.IsZero()
	case string:
		return parseDateString(v)
	default:
		f, ok := toFloat(v)
		if !ok {
			return Date{}, false
		}
		return fromSerial(f)
	}
}

func fromSerial(f float64) (Date, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxSerial {
		return Date{}, false
	}
	return DateOf(serialEpoch.AddDate(0, 0, int(math.Floor(f)))), true
}

func parseDateString(s string) (Date, bool) {
	s = collapse(s)
	if s == "" {
		return Date{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}

	m := usDatePattern.FindStringSubmatch(s)
	if m == nil {
		return Date{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	yearText := m[3]
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, _ := strconv.Atoi(yearText)

	if month < 1 || month > 12 || day < 1 {
		return Date{}, false
	}
	d := NewDate(year, time.Month(month), day)
	if d.Time.Month() != time.Month(month) {
		// Day past the end of the month (e.g. 2/30).
		return Date{}, false
	}
	return d, true
}

// CoerceAmount parses a number, stripping "$" and "," from strings.
// Non-finite results are absent.
func CoerceAmount(value any) (decimal.Decimal, bool) {
	switch v := PlainValue(value).(type) {
	case nil, bool:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return v, true
	case string:
		cleaned := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(v))
		if cleaned == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	}
}

var (
	truthy = map[string]bool{"yes": true, "true": true, "1": true, "sent": true, "y": true}
	falsy  = map[string]bool{"no": true, "false": true, "0": true, "not sent": true, "n": true}
)

// CoerceBoolean recognizes yes/true/1/sent/y and no/false/0/not sent/n,
// case-insensitively. Anything else is absent.
func CoerceBoolean(value any) (bool, bool) {
	switch v := PlainValue(value).(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		key := strings.ToLower(collapse(v))
		if truthy[key] {
			return true, true
		}
		if falsy[key] {
			return false, true
		}
		return false, false
	default:
		f, ok := toFloat(v)
		if !ok {
			return false, false
		}
		switch f {
		case 1:
			return true, true
		case 0:
			return false, true
		}
		return false, false
	}
}

// CoerceString trims and collapses internal whitespace. Empty is absent.
// Numbers are rendered without a trailing ".0" so policy numbers survive.
func CoerceString(value any) (string, bool) {
	var s string
	switch v := PlainValue(value).(type) {
	case nil:
		return "", false
	case string:
		s = v
	case bool:
		s = strconv.FormatBool(v)
	case time.Time:
		s = DateOf(v).String()
	case Date:
		s = v.String()
	case decimal.Decimal:
		s = v.String()
	default:
		f, ok := toFloat(v)
		if !ok {
			return "", false
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	s = collapse(s)
	return s, s != ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
