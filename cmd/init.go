package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/invoicer/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize invoicer configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick a model provider, export directory and OCR settings, and writes a .invoicer.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
