package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes invoice processing and Q&A tools.
type Server struct {
	orch   *pipeline.Orchestrator
	ingest ingest.Config
	topK   int
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server over orch. topK bounds search_invoice_text
// results when the caller does not pass a limit.
func NewServer(orch *pipeline.Orchestrator, ingestCfg ingest.Config, topK int) *Server {
	if topK <= 0 {
		topK = 3
	}
	s := &Server{
		orch:   orch,
		ingest: ingestCfg,
		topK:   topK,
	}

	s.mcp = server.NewMCPServer(
		"invoicer",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(processInvoicesTool, s.handleProcessInvoices)
	s.mcp.AddTool(askInvoicesTool, s.handleAskInvoices)
	s.mcp.AddTool(invoiceSummaryTool, s.handleInvoiceSummary)
	s.mcp.AddTool(listInvoicesTool, s.handleListInvoices)
	s.mcp.AddTool(searchInvoiceTextTool, s.handleSearchInvoiceText)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
