package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TotalDue returns due - due*discount/100 + due*tax/100 rounded to two places.
func TotalDue(dueAmount, discountPercent, taxPercent float64) float64 {
	due := decimal.NewFromFloat(dueAmount)
	discount := due.Mul(decimal.NewFromFloat(discountPercent)).Div(hundred)
	tax := due.Mul(decimal.NewFromFloat(taxPercent)).Div(hundred)
	total, _ := due.Sub(discount).Add(tax).Round(2).Float64()
	return total
}

// DeriveWriteFields stamps a record about to be created.
func DeriveWriteFields(p Payment, now time.Time) Payment {
	p.AddedDateUTC = now.UTC()
	p.TotalDue = TotalDue(p.DueAmount, p.DiscountPercent, p.TaxPercent)
	if !p.DueDate.IsZero() {
		p.DueDate = DateOnly(p.DueDate)
	}
	return p
}

// DeriveReadFields projects a stored record for presentation. today is compared
// as a UTC calendar date. Nothing it computes is written back to the store.
func DeriveReadFields(p Payment, today time.Time) Payment {
	p.TotalDue = TotalDue(p.DueAmount, p.DiscountPercent, p.TaxPercent)
	if p.Status.Locked() || p.DueDate.IsZero() {
		return p
	}
	due := DateOnly(p.DueDate.UTC())
	day := DateOnly(today.UTC())
	switch {
	case due.Before(day):
		p.Status = StatusOverdue
	case due.Equal(day):
		p.Status = StatusDueNow
	}
	return p
}

// ProjectAll applies DeriveReadFields to every record.
func ProjectAll(records []Payment, today time.Time) []Payment {
	out := make([]Payment, len(records))
	for i, p := range records {
		out[i] = DeriveReadFields(p, today)
	}
	return out
}

// DeriveUpdateFields merges the patch into the existing record. The merged
// record may only be completed when the existing record already holds an
// evidence file.
func DeriveUpdateFields(existing Payment, patch Patch) (Payment, error) {
	merged := existing
	for field, value := range patch {
		merged.set(field, value)
	}
	if !merged.DueDate.IsZero() {
		merged.DueDate = DateOnly(merged.DueDate)
	}
	merged.TotalDue = TotalDue(merged.DueAmount, merged.DiscountPercent, merged.TaxPercent)
	if merged.Status == StatusCompleted && existing.EvidenceFile == "" {
		return Payment{}, ErrEvidenceRequired
	}
	return merged, nil
}
