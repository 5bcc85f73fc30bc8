package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/llm"
)

func record(t *testing.T, js string) invoice.Record {
	t.Helper()
	r, err := invoice.ParseRecord([]byte(js))
	require.NoError(t, err)
	return r
}

func sampleBatch(t *testing.T) []invoice.Record {
	return []invoice.Record{
		record(t, `{"total":1500,"tax":150,"vendor_name":"ABC","date":"2024-01-15"}`),
		record(t, `{"total":2300,"tax":230,"vendor_name":"XYZ","date":"2024-01-20"}`),
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	assert.Equal(t, 0, s.TotalInvoices)
	assert.Zero(t, s.TotalAmount)
	assert.Zero(t, s.TotalTax)
	assert.Zero(t, s.AverageAmount)
	assert.Empty(t, s.Vendors)
	assert.Nil(t, s.DateRange.Min)
	assert.Nil(t, s.DateRange.Max)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_invoices":0,"total_amount":0,"total_tax":0,"average_amount":0,
		"vendors":{},"date_range":{"min":null,"max":null}}`, string(data))
}

func TestAggregate_Batch(t *testing.T) {
	s := Aggregate(sampleBatch(t))
	assert.Equal(t, 2, s.TotalInvoices)
	assert.Equal(t, 3800.0, s.TotalAmount)
	assert.Equal(t, 380.0, s.TotalTax)
	assert.Equal(t, 1900.0, s.AverageAmount)
	assert.Equal(t, map[string]int{"ABC": 1, "XYZ": 1}, s.Vendors)
	require.NotNil(t, s.DateRange.Min)
	assert.Equal(t, "2024-01-15", *s.DateRange.Min)
	assert.Equal(t, "2024-01-20", *s.DateRange.Max)
}

func TestAggregate_ErrorRecordCountsInDenominator(t *testing.T) {
	batch := append(sampleBatch(t), invoice.NewErrorRecord("JSON parse error: bad", nil, "c.pdf"))
	s := Aggregate(batch)

	assert.Equal(t, 3, s.TotalInvoices)
	assert.Equal(t, 3800.0, s.TotalAmount)
	assert.Equal(t, 380.0, s.TotalTax)
	assert.InDelta(t, 3800.0/3, s.AverageAmount, 1e-9)
	assert.Equal(t, map[string]int{"ABC": 1, "XYZ": 1}, s.Vendors)
	assert.Equal(t, "2024-01-15", *s.DateRange.Min)
	assert.Equal(t, "2024-01-20", *s.DateRange.Max)
	assert.Equal(t, 1, Failed(batch))
}

func TestAggregate_MissingFields(t *testing.T) {
	s := Aggregate([]invoice.Record{
		record(t, `{"total":null,"tax":"n/a","vendor_name":null}`),
		record(t, `{"total":10.5,"date":""}`),
		record(t, `{"vendor_name":"ABC","date":"2023-12-31"}`),
	})
	assert.Equal(t, 3, s.TotalInvoices)
	assert.Equal(t, 10.5, s.TotalAmount)
	assert.Zero(t, s.TotalTax)
	assert.Equal(t, 3.5, s.AverageAmount)
	assert.Equal(t, map[string]int{UnknownVendor: 2, "ABC": 1}, s.Vendors)
	assert.Equal(t, "2023-12-31", *s.DateRange.Min)
	assert.Equal(t, "2023-12-31", *s.DateRange.Max)
}

func TestAggregate_AllErrors(t *testing.T) {
	s := Aggregate([]invoice.Record{invoice.NewErrorRecord("x", nil, "a.pdf")})
	assert.Equal(t, 1, s.TotalInvoices)
	assert.Zero(t, s.AverageAmount)
	assert.Empty(t, s.Vendors)
	assert.Nil(t, s.DateRange.Min)
}

func TestFormatCurrency(t *testing.T) {
	v := 99.999
	tests := []struct {
		in   any
		want string
	}{
		{1234.5, "$1,234.50"},
		{1000000, "$1,000,000.00"},
		{0.5, "$0.50"},
		{12, "$12.00"},
		{json.Number("42.1"), "$42.10"},
		{nil, "$0.00"},
		{"abc", "$0.00"},
		{(*float64)(nil), "$0.00"},
		{&v, "$100.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in), "FormatCurrency(%v)", tt.in)
	}
}

type fakeProvider struct {
	req     llm.CompletionRequest
	content string
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func TestAnalyst_Empty(t *testing.T) {
	a := NewAnalyst(&fakeProvider{}, "m", 100, 0.1, nil)
	_, err := a.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestAnalyst_Analyze(t *testing.T) {
	prov := &fakeProvider{content: "\nTwo invoices totalling $3,800.00.\n"}
	a := NewAnalyst(prov, "gpt-test", 1000, 0.1, nil)

	got, err := a.Analyze(context.Background(), sampleBatch(t))
	require.NoError(t, err)
	assert.Equal(t, "Two invoices totalling $3,800.00.", got.Analysis)
	assert.Equal(t, 2, got.InvoiceCount)

	assert.Equal(t, "gpt-test", prov.req.Model)
	require.Len(t, prov.req.Messages, 2)
	assert.Equal(t, "You are a financial analyst.", prov.req.Messages[0].Content)
	assert.Contains(t, prov.req.Messages[1].Content, `"vendor_name": "ABC"`)
	assert.Contains(t, prov.req.Messages[1].Content, "Analysis:")
}

func TestAnalyst_CompletionFailure(t *testing.T) {
	a := NewAnalyst(&fakeProvider{err: errors.New("boom")}, "m", 100, 0.1, nil)
	_, err := a.Analyze(context.Background(), sampleBatch(t))
	assert.ErrorIs(t, err, invoice.ErrCompletionService)
}
