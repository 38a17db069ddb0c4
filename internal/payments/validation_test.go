package payments

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
)

func validRaw() map[string]any {
	return map[string]any{
		FieldFirstName:    "Ada",
		FieldLastName:     "Lovelace",
		FieldStatus:       "pending",
		FieldDueDate:      "2024-05-01",
		FieldAddressLine1: "1 Analytical St",
		FieldEmail:        "ada@example.com",
		FieldCurrency:     "USD",
		FieldDueAmount:    json.Number("100"),
	}
}

func TestRecordAcceptsMinimalInput(t *testing.T) {
	p, err := NewValidator().Record(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), p.DueDate)
	assert.Equal(t, 100.0, p.DueAmount)
	assert.Zero(t, p.DiscountPercent)
	assert.Empty(t, p.City)
}

func TestRecordRejectsCompletedStatus(t *testing.T) {
	raw := validRaw()
	raw[FieldStatus] = " completed "

	_, err := NewValidator().Record(raw)

	require.ErrorIs(t, err, httpx.ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "evidence file is required to mark payment as completed", verr.Fields[FieldStatus])

	raw[FieldStatus] = "Completed-ish"
	_, err = NewValidator().Record(raw)
	assert.NoError(t, err)
}

func TestRecordReportsEveryMissingRequiredField(t *testing.T) {
	_, err := NewValidator().Record(map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	for _, name := range []string{FieldFirstName, FieldLastName, FieldStatus, FieldDueDate, FieldAddressLine1, FieldEmail, FieldCurrency, FieldDueAmount} {
		assert.Equal(t, "field required", verr.Fields[name], name)
	}
	assert.NotContains(t, verr.Fields, FieldCity)
}

func TestRecordRejectsBadShapes(t *testing.T) {
	cases := map[string]struct {
		field  string
		value  any
		reason string
	}{
		"email":       {FieldEmail, "not-an-email", "value is not a valid email address"},
		"number":      {FieldDueAmount, "ten", "value is not a valid number"},
		"negative":    {FieldDueAmount, -5.0, "must be greater than or equal to 0"},
		"discount":    {FieldDiscountPercent, 150.0, "must be less than or equal to 100"},
		"date":        {FieldDueDate, "31/31/2024", "invalid date format"},
		"infinite":    {FieldTaxPercent, math.Inf(1), "value must be a finite number"},
		"string type": {FieldFirstName, []string{"x"}, "value is not a valid string"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			raw := validRaw()
			raw[tc.field] = tc.value
			_, err := NewValidator().Record(raw)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.reason, verr.Fields[tc.field])
			assert.Equal(t, raw, verr.Row)
		})
	}
}

func TestRecordIgnoresServerOwnedAndUnknownFields(t *testing.T) {
	raw := validRaw()
	raw[FieldEvidenceFile] = "uploads/forged.pdf"
	raw[FieldTotalDue] = 1.0
	raw[FieldID] = "abc"
	raw["nickname"] = "Countess"

	p, err := NewValidator().Record(raw)
	require.NoError(t, err)
	assert.Empty(t, p.EvidenceFile)
	assert.Zero(t, p.TotalDue)
	assert.Empty(t, p.ID)
}

func TestRecordTreatsNaNAsAbsent(t *testing.T) {
	raw := validRaw()
	raw[FieldTaxPercent] = math.NaN()
	p, err := NewValidator().Record(raw)
	require.NoError(t, err)
	assert.Zero(t, p.TaxPercent)

	raw[FieldDueAmount] = math.NaN()
	_, err = NewValidator().Record(raw)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "field required", verr.Fields[FieldDueAmount])
}

func TestPatchOnlyCarriesPresentFields(t *testing.T) {
	patch, err := NewValidator().Patch(map[string]any{
		FieldStatus:     "completed",
		FieldCity:       "",
		FieldTaxPercent: json.Number("11"),
	})
	require.NoError(t, err)
	assert.Len(t, patch, 3)
	assert.Equal(t, "completed", patch[FieldStatus])
	assert.Equal(t, "", patch[FieldCity])
	assert.Equal(t, 11.0, patch[FieldTaxPercent])
	assert.False(t, patch.Has(FieldFirstName))
}

func TestPatchRejectsBlankRequiredField(t *testing.T) {
	_, err := NewValidator().Patch(map[string]any{FieldFirstName: "  "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "field may not be empty", verr.Fields[FieldFirstName])
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{
		"2024-03-09",
		"2024-03-09T15:04:05Z",
		"2024-03-09 08:00:00",
		"2024/03/09",
		"03/09/2024",
		"9 Mar 2024",
		"March 9, 2024",
		"20240309",
		"2024-03-09T10:00:00.123+07:00",
	} {
		got, ok := ParseDate(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := ParseDate("yesterday")
	assert.False(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	verr := &ValidationError{}
	verr.add("b", "second")
	verr.add("a", "first")
	assert.Equal(t, "2 validation error(s): a: first; b: second", verr.Error())
	assert.Equal(t, map[string]string{"a": "first", "b": "second"}, verr.FieldErrors())
}
