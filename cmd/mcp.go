package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/ingest"
	mcpserver "github.com/ziadkadry99/invoicer/internal/mcp"
	"github.com/ziadkadry99/invoicer/internal/progress"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing invoice processing, summary and question tools to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Stdout carries the protocol, so no progress output.
		a, err := newApp(cfg, progress.Nop{})
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("index"); dir != "" {
			if err := a.index.Load(dir); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not load index from %s: %v\n", dir, err)
			}
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "invoicer MCP server started on stdio (model=%s)\n", cfg.Model)

		srv := mcpserver.NewServer(a.orch, ingest.Config{Dedupe: true}, cfg.TopK)
		return srv.Serve()
	},
}

func init() {
	mcpCmd.Flags().String("index", "", "load a saved index at startup")
	rootCmd.AddCommand(mcpCmd)
}
