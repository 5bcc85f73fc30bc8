package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	tables := []string{"runs", "documents", "invoices", "line_items"}
	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func mustRecord(t *testing.T, js string) invoice.Record {
	t.Helper()
	r, err := invoice.ParseRecord([]byte(js))
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	return r
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()
	d, err := Open(filepath.Join(t.TempDir(), "sub", "invoices.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer d.Close()

	a := invoice.NewDocument("/in/a.pdf", 10)
	b := invoice.NewDocument("/in/b.pdf", 10)
	run := Run{
		ID:        "run-1",
		Documents: []invoice.ProcessedDocument{invoice.Succeeded(a, "text"), invoice.Succeeded(b, "more")},
		Records: []invoice.Record{
			mustRecord(t, `{"invoice_number":"INV-1","vendor_name":"ABC","total":12,"tax":null,
				"items":[{"description":"A","quantity":1,"unit_price":5,"total":5},{"description":"B","total":7}],
				"source_file":"a.pdf"}`),
			invoice.NewErrorRecord("JSON parse error: bad", nil, "b.pdf"),
		},
		Summary: map[string]int{"total_invoices": 2},
	}
	if err := d.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	var items int
	if err := d.QueryRow("SELECT COUNT(*) FROM line_items WHERE run_id = 'run-1'").Scan(&items); err != nil {
		t.Fatal(err)
	}
	if items != 2 {
		t.Errorf("expected 2 line items, got %d", items)
	}

	var vendor string
	var total float64
	if err := d.QueryRow("SELECT vendor_name, total FROM invoices WHERE position = 0").Scan(&vendor, &total); err != nil {
		t.Fatal(err)
	}
	if vendor != "ABC" || total != 12 {
		t.Errorf("unexpected typed columns: %q %v", vendor, total)
	}

	runs, err := d.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}
	if len(runs) != 1 || runs[0].Records != 2 || runs[0].Failed != 1 || runs[0].Documents != 2 {
		t.Errorf("unexpected runs: %+v", runs)
	}

	records, err := d.RunRecords(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].String("invoice_number") != "INV-1" {
		t.Errorf("record 0 not restored: %v", records[0].Map())
	}
	if !records[1].IsError() || records[1].SourceFile() != "b.pdf" {
		t.Errorf("error record not restored: %v", records[1].Map())
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if err := d.SaveRun(ctx, Run{ID: "dup"}); err != nil {
		t.Fatalf("first SaveRun() error: %v", err)
	}
	if err := d.SaveRun(ctx, Run{ID: "dup"}); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
}
