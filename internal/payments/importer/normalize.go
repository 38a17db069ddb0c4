package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/odyssey-erp/odyssey-payments/internal/payments"
)

// ColumnFunc normalizes one raw cell. Returning nil marks the value absent.
type ColumnFunc func(raw string) any

// Normalizer converts raw import rows into schema-ready field sets using a
// per-column transformation table.
type Normalizer struct {
	columns map[string]ColumnFunc
}

// NewNormalizer builds the column table. countries maps ISO2 codes to names
// and may be empty.
func NewNormalizer(countries map[string]string) *Normalizer {
	return &Normalizer{columns: map[string]ColumnFunc{
		payments.FieldPostalCode:      IntegerString,
		payments.FieldPhoneNumber:     IntegerString,
		payments.FieldAddedDateUTC:    EpochSeconds,
		payments.FieldDueDate:         CalendarDate,
		payments.FieldCountry:         CountryName(countries),
		payments.FieldDueAmount:       Number,
		payments.FieldDiscountPercent: Number,
		payments.FieldTaxPercent:      Number,
	}}
}

// Row applies the column table to a raw row. Columns without a transform are
// trimmed and blank cells become nil.
func (n *Normalizer) Row(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		if fn, ok := n.columns[name]; ok {
			out[name] = fn(value)
			continue
		}
		out[name] = Text(value)
	}
	return out
}

// Text trims the cell; blank cells are absent.
func Text(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return s
}

// IntegerString coerces through integer parsing and back to text. Blank
// cells become "0"; leading zeros, decimals and non-digit characters are
// dropped.
func IntegerString(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "0"
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	return digits
}

// EpochSeconds parses a Unix timestamp in seconds. Unparsable cells are absent.
func EpochSeconds(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// CalendarDate parses a date in any common spelling. Unparsable text is kept
// so the validator reports it.
func CalendarDate(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	t, ok := payments.ParseDate(s)
	if !ok {
		return s
	}
	return t
}

// CountryName replaces known ISO2 codes with the full country name and keeps
// any other value unchanged.
func CountryName(countries map[string]string) ColumnFunc {
	return func(raw string) any {
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil
		}
		if name, ok := countries[s]; ok {
			return name
		}
		if name, ok := countries[strings.ToUpper(s)]; ok {
			return name
		}
		return s
	}
}

// Number parses numeric text. Non-numeric text is passed through so the
// validator can report it.
func Number(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
