package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/db"
	"github.com/ziadkadry99/invoicer/internal/export"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs archived by the sqlite export",
	Long:  `Lists the runs stored in the SQLite archive written by "invoicer process --format sqlite", or prints the records of one run.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().String("db", "", "archive path (defaults to invoices.db in export_dir)")
	historyCmd.Flags().String("run", "", "print the records of this run as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = filepath.Join(cfg.ExportDir, export.ArchiveName)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no archive at %s: run `invoicer process --format sqlite` first", path)
	}

	database, err := db.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		records, err := database.RunRecords(ctx, runID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	runs, err := database.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs archived yet.")
		return nil
	}
	fmt.Printf("Archive %s\n\n", database.Path())
	fmt.Printf("%-36s  %-14s  %5s  %7s  %6s\n", "RUN", "WHEN", "FILES", "RECORDS", "FAILED")
	for _, r := range runs {
		fmt.Printf("%-36s  %-14s  %5d  %7d  %6d\n", r.ID, humanize.Time(r.CreatedAt), r.Documents, r.Records, r.Failed)
	}
	return nil
}
