package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// Run is one archived processing batch.
type Run struct {
	ID        string                      `json:"id"`
	CreatedAt time.Time                   `json:"created_at"`
	Documents []invoice.ProcessedDocument `json:"-"`
	Records   []invoice.Record            `json:"-"`
	// Summary is stored verbatim as JSON.
	Summary any `json:"summary,omitempty"`
}

// RunInfo describes an archived run without its contents.
type RunInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Documents int       `json:"documents"`
	Records   int       `json:"records"`
	Failed    int       `json:"failed"`
}

// SaveRun stores a run, its documents, records and line items in one transaction.
func (d *DB) SaveRun(ctx context.Context, run Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	failed := 0
	for _, r := range run.Records {
		if r.IsError() {
			failed++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, documents, records, failed, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339), len(run.Documents), len(run.Records), failed, string(summary),
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, doc := range run.Documents {
		var length sql.NullInt64
		var docErr sql.NullString
		if doc.OK() {
			length = sql.NullInt64{Int64: int64(len(doc.Text())), Valid: true}
		} else {
			docErr = sql.NullString{String: doc.Error, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (run_id, position, file_name, file_path, text_length, error) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, doc.FileName, doc.FilePath, length, docErr,
		); err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.FileName, err)
		}
	}

	for i, rec := range run.Records {
		if err := insertRecord(ctx, tx, run.ID, i, rec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertRecord(ctx context.Context, tx *sql.Tx, runID string, pos int, rec invoice.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", pos, err)
	}

	if rec.IsError() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (run_id, position, source_file, error, record) VALUES (?, ?, ?, ?, ?)`,
			runID, pos, rec.SourceFile(), rec.ErrorMessage(), string(raw),
		)
		if err != nil {
			return fmt.Errorf("inserting error record %d: %w", pos, err)
		}
		return nil
	}

	inv := rec.Invoice()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (run_id, position, source_file, invoice_number, invoice_date, vendor_name,
		 customer_name, subtotal, tax, total, due_date, record) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, pos, inv.SourceFile, nullString(inv.InvoiceNumber), nullString(inv.Date), nullString(inv.VendorName),
		nullString(inv.CustomerName), nullFloat(inv.Subtotal), nullFloat(inv.Tax), nullFloat(inv.Total),
		nullString(inv.DueDate), string(raw),
	); err != nil {
		return fmt.Errorf("inserting record %d: %w", pos, err)
	}

	for line, item := range inv.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO line_items (run_id, invoice_position, line, description, quantity, unit_price, total)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, pos, line, item.Description, nullFloat(item.Quantity), nullFloat(item.UnitPrice), nullFloat(item.Total),
		); err != nil {
			return fmt.Errorf("inserting line item %d/%d: %w", pos, line, err)
		}
	}
	return nil
}

// Runs lists archived runs, newest first.
func (d *DB) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := d.QueryContext(ctx,
		`SELECT id, created_at, documents, records, failed FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var ri RunInfo
		var created string
		if err := rows.Scan(&ri.ID, &created, &ri.Documents, &ri.Records, &ri.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		ri.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// RunRecords loads the records of a run in their original order.
func (d *DB) RunRecords(ctx context.Context, runID string) ([]invoice.Record, error) {
	rows, err := d.QueryContext(ctx, `SELECT record FROM invoices WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	var records []invoice.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := invoice.ParseRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
