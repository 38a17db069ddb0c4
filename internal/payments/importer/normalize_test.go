package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-payments/internal/payments"
)

func TestIntegerString(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		"   ":       "0",
		"01234":     "1234",
		"12345.0":   "12345",
		"98.7":      "98",
		"+1 (555)":  "1555",
		"00000":     "0",
		"SW1A 1AA":  "11",
		"-42":       "-42",
		"1.5e3":     "1500",
		"no digits": "0",
	}
	for input, want := range cases {
		assert.Equal(t, want, IntegerString(input), input)
	}
}

func TestEpochSeconds(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EpochSeconds("1704067200"))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 500000000, time.UTC), EpochSeconds("1704067200.5"))
	assert.Nil(t, EpochSeconds(""))
	assert.Nil(t, EpochSeconds("yesterday"))
}

func TestCalendarDate(t *testing.T) {
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), CalendarDate("2024-02-29"))
	assert.Equal(t, "2023-02-29", CalendarDate("2023-02-29"))
	assert.Nil(t, CalendarDate(""))
}

func TestCountryName(t *testing.T) {
	fn := CountryName(map[string]string{"ID": "Indonesia"})
	assert.Equal(t, "Indonesia", fn("ID"))
	assert.Equal(t, "Indonesia", fn(" id "))
	assert.Equal(t, "Atlantis", fn("Atlantis"))
	assert.Nil(t, fn(""))

	identity := CountryName(nil)
	assert.Equal(t, "ID", identity("ID"))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 12.5, Number(" 12.5 "))
	assert.Equal(t, "12,5", Number("12,5"))
	assert.Nil(t, Number(""))
}

func TestNormalizerRow(t *testing.T) {
	n := NewNormalizer(map[string]string{"NO": "Norway"})
	row := n.Row(map[string]string{
		payments.FieldFirstName:    "  Ada ",
		payments.FieldCity:         "",
		payments.FieldCountry:      "NO",
		payments.FieldPostalCode:   "0150",
		payments.FieldPhoneNumber:  "",
		payments.FieldDueAmount:    "100",
		payments.FieldDueDate:      "2024-05-01",
		payments.FieldAddedDateUTC: "1704067200",
		"unknown":                  "kept",
	})

	assert.Equal(t, "Ada", row[payments.FieldFirstName])
	assert.Nil(t, row[payments.FieldCity])
	assert.Equal(t, "Norway", row[payments.FieldCountry])
	assert.Equal(t, "150", row[payments.FieldPostalCode])
	assert.Equal(t, "0", row[payments.FieldPhoneNumber])
	assert.Equal(t, 100.0, row[payments.FieldDueAmount])
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), row[payments.FieldDueDate])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), row[payments.FieldAddedDateUTC])
	assert.Equal(t, "kept", row["unknown"])
}
