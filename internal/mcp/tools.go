package mcp

import "github.com/mark3labs/mcp-go/mcp"

var processInvoicesTool = mcp.NewTool("process_invoices",
	mcp.WithDescription("Extract text and structured fields from local invoice files (PDF or image) and index them for questions. Replaces the previously processed batch."),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("Files, directories or glob patterns to process"),
		mcp.WithStringItems(),
	),
	mcp.WithBoolean("extract_data",
		mcp.Description("Extract structured invoice fields (default true)"),
	),
	mcp.WithBoolean("create_kb",
		mcp.Description("Build the searchable index used by ask_invoices (default true)"),
	),
)

var askInvoicesTool = mcp.NewTool("ask_invoices",
	mcp.WithDescription("Answer a question about the processed invoices, citing the source files used."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
)

var invoiceSummaryTool = mcp.NewTool("invoice_summary",
	mcp.WithDescription("Get totals, tax, average amount, vendor counts and date range of the processed invoices."),
)

var listInvoicesTool = mcp.NewTool("list_invoices",
	mcp.WithDescription("List the structured records extracted from the processed invoices."),
	mcp.WithBoolean("include_errors",
		mcp.Description("Include records whose extraction failed (default false)"),
	),
)

var searchInvoiceTextTool = mcp.NewTool("search_invoice_text",
	mcp.WithDescription("Search the raw invoice text semantically and return the closest excerpts."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of excerpts to return (default 3)"),
	),
)
