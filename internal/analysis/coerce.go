package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ValueKind is the natively parsed type of a single cell.
type ValueKind uint8

const (
	ValueMissing ValueKind = iota
	ValueNumber
	ValueText
	ValueDate
)

// Value is one cell of a Table. Raw keeps the text as read so that
// categorical counts and previews show what the user uploaded.
type Value struct {
	Kind ValueKind
	Num  float64
	Time time.Time
	Raw  string
}

// Missing is the NA cell.
var Missing = Value{Kind: ValueMissing}

// Number builds a numeric cell.
func Number(f float64) Value {
	return Value{Kind: ValueNumber, Num: f, Raw: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Text builds a text cell.
func Text(s string) Value { return Value{Kind: ValueText, Raw: s} }

// Date builds a native date cell.
func Date(t time.Time) Value {
	return Value{Kind: ValueDate, Time: t, Raw: t.Format(time.RFC3339)}
}

func (v Value) IsMissing() bool { return v.Kind == ValueMissing }

// String returns the text form used for grouping and categorical counts.
func (v Value) String() string {
	if v.Kind == ValueMissing {
		return ""
	}
	return v.Raw
}

// Interface returns the cell as a JSON-friendly scalar: nil, float64,
// string or time.Time. Non-finite numbers fall back to their text so
// that previews always marshal.
func (v Value) Interface() any {
	switch v.Kind {
	case ValueNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return v.Raw
		}
		return v.Num
	case ValueText:
		return v.Raw
	case ValueDate:
		return v.Time
	default:
		return nil
	}
}

// naTokens are the cell texts read as missing, matching the defaults of
// common dataframe CSV readers.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// ParseCell applies native parsing to raw cell text: NA tokens become
// missing, anything strconv accepts as a float becomes a number, the rest
// stays text. No symbol cleanup happens here; see CleanNumeric.
func ParseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if _, ok := naTokens[s]; ok {
		return Missing
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Value{Kind: ValueNumber, Num: f, Raw: s}
	}
	return Value{Kind: ValueText, Raw: raw}
}

var nonNumericChars = regexp.MustCompile(`[^\d.-]`)

// CleanNumeric strips currency symbols, thousands separators, percent signs
// and any other non-numeric characters, then coerces each value to a float.
// Values that still fail to parse become missing. Numbers pass through.
func CleanNumeric(values []Value) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		switch v.Kind {
		case ValueNumber:
			out[i] = v
		case ValueText:
			cleaned := nonNumericChars.ReplaceAllString(v.Raw, "")
			f, err := cast.ToFloat64E(cleaned)
			if err != nil || cleaned == "" {
				out[i] = Missing
				continue
			}
			out[i] = Value{Kind: ValueNumber, Num: f, Raw: v.Raw}
		default:
			out[i] = Missing
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339, time.RFC3339Nano,
	"2006-01-02", "2006/01/02", "2006.01.02", "20060102",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000", "2006/01/02 15:04:05",
	"01/02/2006", "1/2/2006", "01/02/06", "1/2/06", "1/2/06 15:04", "01-02-06",
	"01/02/2006 15:04", "01/02/2006 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"02/01/2006 15:04:05", "02-01-2006", "02.01.2006",
	"Jan 2, 2006", "January 2, 2006", "Jan 2 2006", "2 Jan 2006", "2 January 2006",
	"02-Jan-2006", "02-Jan-06", "Mon, Jan 2, 2006", "Monday, January 2, 2006",
	"Jan 2006", "January 2006", "2006-01",
}

// ParseDate is a tolerant date parser: a fixed layout list first, then the
// broader set understood by cast. It rejects bare numbers, which would
// otherwise read as epoch offsets.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if t, err := cast.StringToDate(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Dtype is the storage type of a whole column after native parsing.
type Dtype string

const (
	DtypeNumeric  Dtype = "numeric"
	DtypeDatetime Dtype = "datetime"
	DtypeObject   Dtype = "object"
)

// inferDtype types a column the way a dataframe reader would: numeric when
// every present cell is a number (an all-missing column included),
// datetime when every present cell is a native date, object otherwise.
func inferDtype(values []Value) Dtype {
	var num, dt, other int
	for _, v := range values {
		switch v.Kind {
		case ValueMissing:
		case ValueNumber:
			num++
		case ValueDate:
			dt++
		default:
			other++
		}
	}
	switch {
	case other == 0 && dt == 0:
		return DtypeNumeric
	case other == 0 && num == 0:
		return DtypeDatetime
	default:
		return DtypeObject
	}
}

// ColumnKind is the profiling classification of a column, computed once.
type ColumnKind string

const (
	KindNumeric      ColumnKind = "numeric"
	KindCategorical  ColumnKind = "categorical"
	KindDateLike     ColumnKind = "date"
	KindUnclassified ColumnKind = "unclassified"
)
