// Package payments implements the payment record lifecycle: validation of raw
// field sets, write/read/update derivations and the store gateway.
package payments

import (
	"time"
)

// Status is the payee payment status. Besides the well-known values below
// clients may store any non-empty string.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusDueNow    Status = "due_now"
)

// Locked reports whether derivation must leave the status untouched.
func (s Status) Locked() bool {
	return s == StatusCompleted || s == StatusPending
}

// Field names shared by the JSON API, the import columns and the store.
const (
	FieldID              = "_id"
	FieldFirstName       = "payee_first_name"
	FieldLastName        = "payee_last_name"
	FieldStatus          = "payee_payment_status"
	FieldAddedDateUTC    = "payee_added_date_utc"
	FieldDueDate         = "payee_due_date"
	FieldAddressLine1    = "payee_address_line_1"
	FieldAddressLine2    = "payee_address_line_2"
	FieldCity            = "payee_city"
	FieldCountry         = "payee_country"
	FieldProvinceOrState = "payee_province_or_state"
	FieldPostalCode      = "payee_postal_code"
	FieldPhoneNumber     = "payee_phone_number"
	FieldEmail           = "payee_email"
	FieldCurrency        = "currency"
	FieldDueAmount       = "due_amount"
	FieldDiscountPercent = "discount_percent"
	FieldTaxPercent      = "tax_percent"
	FieldTotalDue        = "total_due"
	FieldEvidenceFile    = "evidence_file"
)

// Payment is one payment obligation tracked by the system.
type Payment struct {
	ID              string    `json:"_id"`
	FirstName       string    `json:"payee_first_name"`
	LastName        string    `json:"payee_last_name"`
	Status          Status    `json:"payee_payment_status"`
	AddedDateUTC    time.Time `json:"payee_added_date_utc"`
	DueDate         time.Time `json:"payee_due_date"`
	AddressLine1    string    `json:"payee_address_line_1"`
	AddressLine2    string    `json:"payee_address_line_2"`
	City            string    `json:"payee_city"`
	Country         string    `json:"payee_country"`
	ProvinceOrState string    `json:"payee_province_or_state"`
	PostalCode      string    `json:"payee_postal_code"`
	PhoneNumber     string    `json:"payee_phone_number"`
	Email           string    `json:"payee_email"`
	Currency        string    `json:"currency"`
	DueAmount       float64   `json:"due_amount"`
	DiscountPercent float64   `json:"discount_percent"`
	TaxPercent      float64   `json:"tax_percent"`
	TotalDue        float64   `json:"total_due"`
	EvidenceFile    string    `json:"evidence_file,omitempty"`
}

// Patch holds the coerced fields of a partial update keyed by field name.
// Values are string, float64 or time.Time depending on the field.
type Patch map[string]any

// Has reports whether the field is present in the patch.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Filter narrows list queries.
type Filter struct {
	// Status matches the stored status exactly.
	Status string
	// Search is a case-insensitive substring of the payee first name.
	Search string
}

// ListParams describes a paginated list request.
type ListParams struct {
	Status string
	Search string
	Page   int
	Size   int
}

// ListResult is one page of projected records.
type ListResult struct {
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalPages int       `json:"total_pages"`
	Data       []Payment `json:"data"`
}

// Evidence is a downloaded proof-of-payment file.
type Evidence struct {
	Name     string
	MimeType string
	Data     []byte
}
