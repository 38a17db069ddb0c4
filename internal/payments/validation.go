package payments

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindDate
)

type fieldRule struct {
	name     string
	kind     fieldKind
	required bool
	// rules is a validator tag applied to the coerced value.
	rules string
}

// schema is the canonical payment schema. Fields missing here are either
// derived or server owned and are never read from input.
var schema = []fieldRule{
	{name: FieldFirstName, kind: kindString, required: true, rules: "max=100"},
	{name: FieldLastName, kind: kindString, required: true, rules: "max=100"},
	{name: FieldStatus, kind: kindString, required: true, rules: "max=50"},
	{name: FieldDueDate, kind: kindDate, required: true},
	{name: FieldAddressLine1, kind: kindString, required: true, rules: "max=200"},
	{name: FieldAddressLine2, kind: kindString, rules: "max=200"},
	{name: FieldCity, kind: kindString, rules: "max=100"},
	{name: FieldCountry, kind: kindString, rules: "max=100"},
	{name: FieldProvinceOrState, kind: kindString, rules: "max=100"},
	{name: FieldPostalCode, kind: kindString, rules: "max=20"},
	{name: FieldPhoneNumber, kind: kindString, rules: "max=30"},
	{name: FieldEmail, kind: kindString, required: true, rules: "email,max=254"},
	{name: FieldCurrency, kind: kindString, required: true, rules: "max=10"},
	{name: FieldDueAmount, kind: kindNumber, required: true, rules: "gte=0"},
	{name: FieldDiscountPercent, kind: kindNumber, rules: "gte=0,lte=100"},
	{name: FieldTaxPercent, kind: kindNumber, rules: "gte=0,lte=100"},
}

// Validator checks raw field sets against the payment schema.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Record validates a full field set for a new record and returns the typed
// record. Derived and server-owned fields in raw are ignored. Unknown fields
// are ignored as well. The completed status is rejected since evidence can only
// be attached to an existing record.
func (v *Validator) Record(raw map[string]any) (Payment, error) {
	verr := &ValidationError{Row: raw}
	values := make(map[string]any, len(schema))
	for _, rule := range schema {
		value, present, reason := coerce(rule.kind, raw[rule.name])
		if reason != "" {
			verr.add(rule.name, reason)
			continue
		}
		if !present {
			if rule.required {
				verr.add(rule.name, "field required")
			}
			continue
		}
		if reason := v.check(rule, value); reason != "" {
			verr.add(rule.name, reason)
			continue
		}
		values[rule.name] = value
	}
	// A new record carries no evidence yet, so it cannot start out completed.
	if values[FieldStatus] == string(StatusCompleted) {
		verr.add(FieldStatus, "evidence file is required to mark payment as completed")
	}
	if len(verr.Fields) > 0 {
		return Payment{}, verr
	}
	var p Payment
	for name, value := range values {
		p.set(name, value)
	}
	return p, nil
}

// Patch validates the fields present in raw for a partial update. Required
// fields may be omitted but not blanked.
func (v *Validator) Patch(raw map[string]any) (Patch, error) {
	verr := &ValidationError{Row: raw}
	patch := make(Patch)
	for _, rule := range schema {
		input, ok := raw[rule.name]
		if !ok {
			continue
		}
		value, present, reason := coerce(rule.kind, input)
		if reason != "" {
			verr.add(rule.name, reason)
			continue
		}
		if !present {
			if rule.required {
				verr.add(rule.name, "field may not be empty")
				continue
			}
			value = zeroValue(rule.kind)
		}
		if reason := v.check(rule, value); reason != "" {
			verr.add(rule.name, reason)
			continue
		}
		patch[rule.name] = value
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return patch, nil
}

func (v *Validator) check(rule fieldRule, value any) string {
	if rule.rules == "" {
		return ""
	}
	err := v.validate.Var(value, rule.rules)
	if err == nil {
		return ""
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return err.Error()
	}
	return describe(fieldErrs[0])
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "value is not a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func zeroValue(kind fieldKind) any {
	switch kind {
	case kindNumber:
		return float64(0)
	case kindDate:
		return time.Time{}
	default:
		return ""
	}
}

// coerce converts a raw value into the field kind. present is false for nil
// and blank input; reason is non-empty when the value has the wrong shape.
func coerce(kind fieldKind, raw any) (value any, present bool, reason string) {
	if raw == nil {
		return nil, false, ""
	}
	switch kind {
	case kindNumber:
		return coerceNumber(raw)
	case kindDate:
		return coerceDate(raw)
	default:
		return coerceString(raw)
	}
}

func coerceString(raw any) (any, bool, string) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		if math.IsNaN(v) {
			return nil, false, ""
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		return nil, false, "value is not a valid string"
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false, ""
	}
	return s, true, ""
}

func coerceNumber(raw any) (any, bool, string) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, false, "value is not a valid number"
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, false, ""
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, "value is not a valid number"
		}
		f = parsed
	default:
		return nil, false, "value is not a valid number"
	}
	if math.IsNaN(f) {
		return nil, false, ""
	}
	if math.IsInf(f, 0) {
		return nil, false, "value must be a finite number"
	}
	return f, true, ""
}

func coerceDate(raw any) (any, bool, string) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, false, ""
		}
		return DateOnly(v), true, ""
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, false, ""
		}
		return DateOnly(*v), true, ""
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, false, ""
		}
		t, ok := ParseDate(s)
		if !ok {
			return nil, false, "invalid date format"
		}
		return t, true, ""
	default:
		return nil, false, "invalid date format"
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// ParseDate parses common calendar date spellings and returns midnight UTC of
// that date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), true
		}
	}
	if len(s) > 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p *Payment) set(field string, value any) {
	switch field {
	case FieldFirstName:
		p.FirstName = value.(string)
	case FieldLastName:
		p.LastName = value.(string)
	case FieldStatus:
		p.Status = Status(value.(string))
	case FieldDueDate:
		p.DueDate = value.(time.Time)
	case FieldAddressLine1:
		p.AddressLine1 = value.(string)
	case FieldAddressLine2:
		p.AddressLine2 = value.(string)
	case FieldCity:
		p.City = value.(string)
	case FieldCountry:
		p.Country = value.(string)
	case FieldProvinceOrState:
		p.ProvinceOrState = value.(string)
	case FieldPostalCode:
		p.PostalCode = value.(string)
	case FieldPhoneNumber:
		p.PhoneNumber = value.(string)
	case FieldEmail:
		p.Email = value.(string)
	case FieldCurrency:
		p.Currency = value.(string)
	case FieldDueAmount:
		p.DueAmount = value.(float64)
	case FieldDiscountPercent:
		p.DiscountPercent = value.(float64)
	case FieldTaxPercent:
		p.TaxPercent = value.(float64)
	}
}
