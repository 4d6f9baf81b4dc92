package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicescan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicescan",
	Short: "Invoicescan CLI - structured data extraction from German invoices",
	Long: `Invoicescan turns raw, noisy OCR text of German invoices and receipts
into structured records with per-field confidence scores.

The extract command runs the pattern pipeline over an OCR text file. The
scan command first runs OCR on an image or PDF via Google Cloud Vision,
then extracts, optionally using an AI model instead of the pattern
pipeline.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Invoicescan CLI executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
