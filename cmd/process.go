package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/export"
	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/progress"
)

var processCmd = &cobra.Command{
	Use:   "process <path|dir|glob>...",
	Short: "Extract, index and export a batch of invoices",
	Long: `Extracts text from every PDF and image invoice given, maps it onto the invoice
schema, builds the question index and optionally exports the results and
answers questions about the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("out", "", "export directory (defaults to export_dir from config)")
	processCmd.Flags().String("format", "", "comma separated export formats: json, csv, xlsx, sqlite")
	processCmd.Flags().StringArray("ask", nil, "question to answer after processing (repeatable)")
	processCmd.Flags().Bool("insights", false, "print an LLM written analysis of the batch")
	processCmd.Flags().Bool("no-extract", false, "skip structured field extraction")
	processCmd.Flags().Bool("no-index", false, "skip building the question index")
	processCmd.Flags().String("save-index", "", "directory to save the question index to")
	processCmd.Flags().StringSlice("exclude", nil, "glob patterns to skip inside directories")
	processCmd.Flags().Bool("dedupe", false, "skip files whose content duplicates an earlier file")
	processCmd.Flags().Int("concurrency", 0, "max parallel OCR and LLM calls (overrides config)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if concurrency, _ := cmd.Flags().GetInt("concurrency"); concurrency > 0 {
		cfg.MaxConcurrency = concurrency
	}
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.ExportDir
	}
	formatList, _ := cmd.Flags().GetString("format")
	formats, err := export.ParseFormats(formatList)
	if err != nil {
		return err
	}
	questions, _ := cmd.Flags().GetStringArray("ask")
	wantInsights, _ := cmd.Flags().GetBool("insights")
	noExtract, _ := cmd.Flags().GetBool("no-extract")
	noIndex, _ := cmd.Flags().GetBool("no-index")
	saveIndex, _ := cmd.Flags().GetString("save-index")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	dedupe, _ := cmd.Flags().GetBool("dedupe")

	resolved, err := ingest.Resolve(args, ingest.Config{Exclude: exclude, Dedupe: dedupe})
	if err != nil {
		return err
	}
	for _, s := range resolved.Skipped {
		fmt.Fprintf(os.Stderr, "Skipping %s: %s\n", s.Path, s.Reason)
	}

	a, err := newApp(cfg, progress.NewReporter())
	if err != nil {
		return err
	}

	opts := pipeline.Options{ExtractData: !noExtract, CreateKB: !noIndex}
	res, err := a.orch.Process(ctx, resolved.Documents, opts)
	if err != nil {
		return err
	}
	printResult(os.Stdout, res, opts)

	if len(formats) > 0 {
		paths, err := export.NewExporter(outDir, a.logger).Export(ctx, formats, a.orch.Batch())
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		fmt.Println()
		for _, p := range paths {
			fmt.Printf("Exported %s\n", p)
		}
	}

	if saveIndex != "" && res.Index.Built {
		if err := a.index.Persist(saveIndex); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
		fmt.Printf("Index saved to %s\n", saveIndex)
	}

	for _, q := range questions {
		fmt.Println()
		printAnswer(os.Stdout, q, a.orch.Ask(ctx, q))
	}

	if wantInsights {
		ins, err := a.orch.Insights(ctx)
		if err != nil {
			return fmt.Errorf("insights: %w", err)
		}
		fmt.Printf("\nInsights (%d invoices)\n\n%s\n", ins.InvoiceCount, ins.Analysis)
	}

	if verbose {
		printUsage(os.Stderr, a.usage.Usage())
	}
	return nil
}
