package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
)

func TestTotalDue(t *testing.T) {
	cases := []struct {
		due, discount, tax, want float64
	}{
		{100, 0, 0, 100},
		{100, 10, 5, 95},
		{200, 12.5, 0, 175},
		{99.99, 0, 7.5, 107.49},
		{10.005, 0, 0, 10.01},
		{0, 50, 50, 0},
		{1234.56, 3.3, 11, 1329.62},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TotalDue(tc.due, tc.discount, tc.tax), "%v %v %v", tc.due, tc.discount, tc.tax)
	}
}

func TestDeriveWriteFields(t *testing.T) {
	now := time.Date(2024, 6, 1, 13, 45, 0, 0, time.FixedZone("WIB", 7*3600))
	p := DeriveWriteFields(Payment{
		DueAmount:  100,
		TaxPercent: 10,
		DueDate:    time.Date(2024, 7, 1, 18, 30, 0, 0, time.UTC),
	}, now)

	assert.Equal(t, now.UTC(), p.AddedDateUTC)
	assert.Equal(t, time.UTC, p.AddedDateUTC.Location())
	assert.Equal(t, 110.0, p.TotalDue)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), p.DueDate)
}

func TestDeriveReadFieldsEscalatesStatus(t *testing.T) {
	today := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		name   string
		status Status
		due    time.Time
		want   Status
	}{
		{"past due", "unpaid", day(9), StatusOverdue},
		{"due today", "unpaid", day(10), StatusDueNow},
		{"future", "unpaid", day(11), "unpaid"},
		{"completed stays", StatusCompleted, day(1), StatusCompleted},
		{"pending stays", StatusPending, day(1), StatusPending},
		{"overdue today", StatusOverdue, day(10), StatusDueNow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DeriveReadFields(Payment{Status: tc.status, DueDate: tc.due, DueAmount: 10}, today)
			assert.Equal(t, tc.want, p.Status)
			assert.Equal(t, 10.0, p.TotalDue)
		})
	}
}

func TestDeriveReadFieldsUsesUTCCalendarDay(t *testing.T) {
	pdt := time.FixedZone("PDT", -7*3600)
	// 20:00 on the 17th in PDT is already the 18th in UTC.
	evening := time.Date(2025, 10, 17, 20, 0, 0, 0, pdt)
	due := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)

	p := DeriveReadFields(Payment{Status: "unpaid", DueDate: due}, evening)
	assert.Equal(t, StatusDueNow, p.Status)

	p = DeriveReadFields(Payment{Status: "unpaid", DueDate: due.AddDate(0, 0, -1)}, evening)
	assert.Equal(t, StatusOverdue, p.Status)
}

func TestDeriveReadFieldsRecomputesStaleTotal(t *testing.T) {
	p := DeriveReadFields(Payment{Status: StatusPending, DueAmount: 50, DiscountPercent: 10, TotalDue: 1}, time.Now())
	assert.Equal(t, 45.0, p.TotalDue)
}

func TestProjectAllDoesNotMutateInput(t *testing.T) {
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	records := []Payment{{Status: "unpaid", DueDate: today.AddDate(0, 0, -1)}}
	out := ProjectAll(records, today)
	assert.Equal(t, StatusOverdue, out[0].Status)
	assert.Equal(t, Status("unpaid"), records[0].Status)
}

func TestDeriveUpdateFieldsRequiresEvidenceForCompleted(t *testing.T) {
	existing := Payment{Status: StatusPending, DueAmount: 100}

	_, err := DeriveUpdateFields(existing, Patch{FieldStatus: "completed"})
	require.ErrorIs(t, err, ErrEvidenceRequired)
	assert.True(t, errors.Is(err, httpx.ErrPrecondition))

	existing.EvidenceFile = "uploads/x_receipt.pdf"
	merged, err := DeriveUpdateFields(existing, Patch{FieldStatus: "completed", FieldDiscountPercent: 20.0})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, merged.Status)
	assert.Equal(t, 80.0, merged.TotalDue)
}

func TestDeriveUpdateFieldsAlreadyCompletedWithoutEvidence(t *testing.T) {
	_, err := DeriveUpdateFields(Payment{Status: StatusCompleted}, Patch{FieldCity: "Paris"})
	require.ErrorIs(t, err, ErrEvidenceRequired)
}
