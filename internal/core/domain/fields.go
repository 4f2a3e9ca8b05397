package domain

import (
	"math"
	"regexp"
	"time"
)

// DefaultVATRate is applied when a document carries an amount but no VAT line.
const DefaultVATRate = 0.15

// DeriveVAT returns round(amount*0.15, 2). ok is false for non-positive amounts.
func DeriveVAT(amount float64) (float64, bool) {
	if amount <= 0 {
		return 0, false
	}
	return RoundTo(amount*DefaultVATRate, 2), true
}

// RoundTo rounds half away from zero.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

type dateLayout struct {
	prefix *regexp.Regexp
	layout string
	head   int
}

// Order matters: the first layout whose prefix matches decides.
var invoiceDateLayouts = []dateLayout{
	{prefix: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`), layout: "2006-01-02", head: 10},
	{prefix: regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`), layout: "1/2/2006"},
	{prefix: regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2}`), layout: "1/2/06"},
}

// ParseInvoiceDate converts a raw parsed date string into a calendar date (UTC midnight).
func ParseInvoiceDate(raw string) (time.Time, bool) {
	for _, candidate := range invoiceDateLayouts {
		if !candidate.prefix.MatchString(raw) {
			continue
		}
		value := raw
		if candidate.head > 0 && len(value) > candidate.head {
			value = value[:candidate.head]
		}
		parsed, err := time.Parse(candidate.layout, value)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func StringPtr(v string) *string { return &v }

func Float64Ptr(v float64) *float64 { return &v }
