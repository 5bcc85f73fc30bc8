// Package export renders a processed batch to JSON, CSV, XLSX and SQLite.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// WriteJSON writes records as a 2-space indented array. Non-ASCII text and
// HTML characters are written as-is.
func WriteJSON(w io.Writer, records []invoice.Record) error {
	if records == nil {
		records = []invoice.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes one flattened row per record.
func WriteCSV(w io.Writer, records []invoice.Record) error {
	header, rows := Table(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	line := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row {
			line[i] = cellText(v)
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const (
	invoicesSheet  = "Invoices"
	lineItemsSheet = "Line Items"
	summarySheet   = "Summary"
)

// sheetWriter records the first excelize error so cell writes can be chained.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (sw *sheetWriter) cell(sheet string, col, row int, v any) {
	if sw.err != nil {
		return
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetCellValue(sheet, name, v); err != nil {
		sw.err = fmt.Errorf("%s!%s: %w", sheet, name, err)
	}
}

func (sw *sheetWriter) row(sheet string, row int, values []any) {
	if sw.err != nil {
		return
	}
	name := fmt.Sprintf("A%d", row)
	if err := sw.f.SetSheetRow(sheet, name, &values); err != nil {
		sw.err = fmt.Errorf("%s!%s: %w", sheet, name, err)
	}
}

func (sw *sheetWriter) width(sheet, startCol, endCol string, w float64) {
	if sw.err != nil {
		return
	}
	if err := sw.f.SetColWidth(sheet, startCol, endCol, w); err != nil {
		sw.err = fmt.Errorf("%s column width: %w", sheet, err)
	}
}

// WriteXLSX writes a workbook with the flattened invoices, their line items
// and the batch summary on separate sheets. It fails on the first cell
// excelize rejects, such as text over the 32767 character cell limit.
func WriteXLSX(w io.Writer, records []invoice.Record, summary analytics.Summary) error {
	f := excelize.NewFile()
	defer f.Close()
	sw := &sheetWriter{f: f}

	if err := f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return err
	}
	header, rows := Table(records)
	for i, h := range header {
		sw.cell(invoicesSheet, i+1, 1, h)
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			if n, ok := invoice.Number(v); ok {
				v = n
			}
			sw.cell(invoicesSheet, c+1, r+2, v)
		}
	}

	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return err
	}
	sw.row(lineItemsSheet, 1, []any{"source_file", "invoice_number", "description", "quantity", "unit_price", "total"})
	line := 2
	for _, rec := range records {
		if rec.IsError() {
			continue
		}
		inv := rec.Invoice()
		for _, item := range inv.Items {
			sw.row(lineItemsSheet, line, []any{
				inv.SourceFile, inv.InvoiceNumber, item.Description,
				floatCell(item.Quantity), floatCell(item.UnitPrice), floatCell(item.Total),
			})
			line++
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	metrics := [][]any{
		{"Total invoices", summary.TotalInvoices},
		{"Total amount", summary.TotalAmount},
		{"Total tax", summary.TotalTax},
		{"Average amount", summary.AverageAmount},
		{"First date", stringCell(summary.DateRange.Min)},
		{"Last date", stringCell(summary.DateRange.Max)},
	}
	for i, m := range metrics {
		sw.row(summarySheet, i+1, m)
	}
	row := len(metrics) + 2
	sw.row(summarySheet, row, []any{"Vendor", "Invoices"})
	for _, vc := range SortedVendors(summary.Vendors) {
		row++
		sw.row(summarySheet, row, []any{vc.Vendor, vc.Count})
	}

	sw.width(invoicesSheet, "A", "Z", 18)
	sw.width(lineItemsSheet, "A", "C", 28)
	sw.width(summarySheet, "A", "A", 22)
	if sw.err != nil {
		return fmt.Errorf("writing xlsx: %w", sw.err)
	}
	f.SetActiveSheet(0)

	_, err := f.WriteTo(w)
	return err
}

// VendorCount is one entry of a vendor frequency table.
type VendorCount struct {
	Vendor string `json:"vendor"`
	Count  int    `json:"count"`
}

// SortedVendors orders vendor counts by frequency, then name.
func SortedVendors(vendors map[string]int) []VendorCount {
	out := make([]VendorCount, 0, len(vendors))
	for v, n := range vendors {
		out = append(out, VendorCount{Vendor: v, Count: n})
	}
	slices.SortFunc(out, func(a, b VendorCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Vendor, b.Vendor)
	})
	return out
}

func floatCell(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func stringCell(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
