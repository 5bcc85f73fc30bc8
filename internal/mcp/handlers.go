package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/qa"
	"github.com/ziadkadry99/invoicer/internal/vectordb"
)

func (s *Server) handleProcessInvoices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths := request.GetStringSlice("paths", nil)
	if len(paths) == 0 {
		return mcp.NewToolResultError("missing required parameter: paths"), nil
	}

	resolved, err := ingest.Resolve(paths, s.ingest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolving inputs: %v", err)), nil
	}

	opts := pipeline.Options{
		ExtractData: request.GetBool("extract_data", true),
		CreateKB:    request.GetBool("create_kb", true),
	}
	res, err := s.orch.Process(ctx, resolved.Documents, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatRun(res, resolved.Skipped)), nil
}

func (s *Server) handleAskInvoices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	a := s.orch.Ask(ctx, question)

	var sb strings.Builder
	sb.WriteString(a.Text)
	if len(a.Sources) > 0 {
		sb.WriteString("\n\nSources: ")
		sb.WriteString(strings.Join(a.Sources, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleInvoiceSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.orch.Summary())
}

func (s *Server) handleListInvoices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records := s.orch.Session().Records()
	if len(records) == 0 {
		return mcp.NewToolResultText("No invoices processed yet. Call process_invoices first."), nil
	}

	includeErrors := request.GetBool("include_errors", false)
	out := make([]invoice.Record, 0, len(records))
	for _, r := range records {
		if r.IsError() && !includeErrors {
			continue
		}
		out = append(out, r)
	}
	return jsonResult(out)
}

func (s *Server) handleSearchInvoiceText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", s.topK)
	if limit <= 0 {
		limit = s.topK
	}

	hits, err := s.orch.Session().Index().Retrieve(ctx, query, limit)
	if errors.Is(err, vectordb.ErrNotBuilt) {
		return mcp.NewToolResultText(qa.NotProcessedAnswer), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(vectordb.FormatHits(hits)), nil
}

// formatRun summarizes a finished run for an agent.
func formatRun(res *pipeline.Result, skipped []ingest.Skipped) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Processed %d file(s), %d failed text extraction.\n", len(res.Documents), res.FailedDocuments())
	for _, d := range res.Documents {
		if !d.OK() {
			fmt.Fprintf(&sb, "  - %s: %s\n", d.FileName, d.Error)
		}
	}
	for _, sk := range skipped {
		fmt.Fprintf(&sb, "Skipped %s: %s\n", sk.Path, sk.Reason)
	}

	if len(res.Records) > 0 {
		failed := analytics.Failed(res.Records)
		fmt.Fprintf(&sb, "Extracted %d record(s), %d failed. Total amount %s.\n",
			len(res.Records)-failed, failed, analytics.FormatCurrency(res.Summary.TotalAmount))
	}

	switch {
	case res.Index.Built:
		fmt.Fprintf(&sb, "Index ready with %d chunk(s).\n", res.Index.Chunks)
	case res.Index.Error != "":
		fmt.Fprintf(&sb, "Index not built: %s\n", res.Index.Error)
	}
	return sb.String()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
