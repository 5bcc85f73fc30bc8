// Package analytics summarizes a batch of extracted invoice records.
package analytics

import (
	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// UnknownVendor buckets records without a usable vendor name.
const UnknownVendor = "Unknown"

// DateRange is the lexicographic span of invoice dates. Both ends are nil
// when no record carries a date.
type DateRange struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

// Summary is derived from a record batch.
type Summary struct {
	// TotalInvoices counts every record, error records included.
	TotalInvoices int     `json:"total_invoices"`
	TotalAmount   float64 `json:"total_amount"`
	TotalTax      float64 `json:"total_tax"`
	// AverageAmount divides TotalAmount by TotalInvoices.
	AverageAmount float64        `json:"average_amount"`
	Vendors       map[string]int `json:"vendors"`
	DateRange     DateRange      `json:"date_range"`
}

// Aggregate computes the batch summary. Error records are left out of sums,
// vendor counts and the date range but still count towards TotalInvoices
// and so towards the average's denominator.
func Aggregate(records []invoice.Record) Summary {
	s := Summary{
		TotalInvoices: len(records),
		Vendors:       make(map[string]int),
	}

	for _, r := range records {
		if r.IsError() {
			continue
		}
		if v, ok := r.Number("total"); ok {
			s.TotalAmount += v
		}
		if v, ok := r.Number("tax"); ok {
			s.TotalTax += v
		}

		vendor := r.String("vendor_name")
		if vendor == "" {
			vendor = UnknownVendor
		}
		s.Vendors[vendor]++

		if date := r.String("date"); date != "" {
			if s.DateRange.Min == nil || date < *s.DateRange.Min {
				s.DateRange.Min = &date
			}
			if s.DateRange.Max == nil || date > *s.DateRange.Max {
				s.DateRange.Max = &date
			}
		}
	}

	if s.TotalInvoices > 0 {
		s.AverageAmount = s.TotalAmount / float64(s.TotalInvoices)
	}
	return s
}

// Failed counts the error records in a batch.
func Failed(records []invoice.Record) int {
	n := 0
	for _, r := range records {
		if r.IsError() {
			n++
		}
	}
	return n
}
