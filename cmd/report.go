package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/export"
	"github.com/ziadkadry99/invoicer/internal/llm"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/qa"
)

// printResult writes the per-file listing and the batch overview.
func printResult(w io.Writer, res *pipeline.Result, opts pipeline.Options) {
	fmt.Fprintf(w, "Processed %d file(s) in %s\n", len(res.Documents), res.Duration.Round(10*time.Millisecond))
	for _, d := range res.Documents {
		if d.OK() {
			fmt.Fprintf(w, "  ✓ %s\n", d.FileName)
		} else {
			fmt.Fprintf(w, "  ✗ %s: %s\n", d.FileName, d.Error)
		}
	}

	if opts.ExtractData {
		printSummary(w, res.Summary, analytics.Failed(res.Records))
	}

	switch {
	case !res.Index.Attempted:
	case res.Index.Error != "":
		fmt.Fprintf(w, "\nIndex not built: %s\n", res.Index.Error)
	case res.Index.Built:
		fmt.Fprintf(w, "\nIndex ready: %d chunk(s)\n", res.Index.Chunks)
	}
}

func printSummary(w io.Writer, s analytics.Summary, failed int) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Invoices:       %d", s.TotalInvoices)
	if failed > 0 {
		fmt.Fprintf(w, " (%d could not be parsed)", failed)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total amount:   %s\n", analytics.FormatCurrency(s.TotalAmount))
	fmt.Fprintf(w, "Total tax:      %s\n", analytics.FormatCurrency(s.TotalTax))
	fmt.Fprintf(w, "Average amount: %s\n", analytics.FormatCurrency(s.AverageAmount))
	if s.DateRange.Min != nil {
		fmt.Fprintf(w, "Date range:     %s to %s\n", *s.DateRange.Min, *s.DateRange.Max)
	}
	if len(s.Vendors) > 0 {
		fmt.Fprintln(w, "Vendors:")
		for _, v := range export.SortedVendors(s.Vendors) {
			fmt.Fprintf(w, "  %-30s %d\n", v.Vendor, v.Count)
		}
	}
}

func printAnswer(w io.Writer, question string, a qa.Answer) {
	fmt.Fprintf(w, "Q: %s\n", question)
	fmt.Fprintf(w, "A: %s\n", a.Text)
	if len(a.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(a.Sources, ", "))
	}
}

func printUsage(w io.Writer, u llm.Usage) {
	fmt.Fprintf(w, "LLM usage: %s call(s), %s input / %s output tokens, ~$%.4f\n",
		humanize.Comma(u.Calls), humanize.Comma(u.InputTokens), humanize.Comma(u.OutputTokens), u.CostUSD)
}
