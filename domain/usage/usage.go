package usage

import "time"

// UnknownValue is the default for pass-through fields missing from an export row.
const UnknownValue = "Unknown"

// Record represents a single billed usage line from a cost export.
type Record struct {
	ResourceID    string  `json:"resource_id"`
	ResourceName  string  `json:"resource_name"`
	ResourceType  string  `json:"resource_type"`
	Location      string  `json:"location"`
	MeterCategory string  `json:"meter_category"`
	MeterName     string  `json:"meter_name"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Cost          Money   `json:"cost"`
	Date          string  `json:"date"`
	// Day is Date parsed to a calendar day (UTC). Zero when Date is absent or unparseable.
	Day time.Time `json:"-"`
}

// Valid reports whether r can enter a working record set: it needs a resource
// name and a known location.
func (r Record) Valid() bool {
	return r.ResourceName != "" && r.Location != "" && r.Location != UnknownValue
}

// DeriveCost computes quantity*unitPrice, falling back to the supplied cost when
// the product is not positive. Negative or missing values yield 0.
func DeriveCost(quantity, unitPrice float64, supplied float64, hasSupplied bool) float64 {
	if c := quantity * unitPrice; c > 0 && finite(c) {
		return c
	}
	if hasSupplied && supplied > 0 && finite(supplied) {
		return supplied
	}
	return 0
}
