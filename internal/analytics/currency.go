package analytics

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// FormatCurrency renders an amount as dollars with thousands separators,
// e.g. 1234.5 -> "$1,234.50". Missing or non-numeric amounts render as $0.00.
func FormatCurrency(amount any) string {
	if p, isPtr := amount.(*float64); isPtr && p != nil {
		amount = *p
	}
	v, ok := invoice.Number(amount)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}
