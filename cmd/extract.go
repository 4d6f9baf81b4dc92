package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicescan/internal/config"
	"invoicescan/internal/extract"
	"invoicescan/internal/logger"
	"invoicescan/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [text-file]",
	Short: "Extract structured invoice data from an OCR text file",
	Long: `Run the pattern extraction pipeline over a plain-text OCR dump of a
German invoice and print the structured record as JSON.

The pipeline normalizes the text, matches labeled patterns for the
invoice number, dates, supplier, amounts and payment details, parses the
position table, reconciles net, tax and gross totals and scores each
field with a confidence value between 0 and 1. Extraction never fails:
unreadable input yields a record of NOT_FOUND sentinels with zero
confidence.`,
	Example: `  # Extract from an OCR text dump to stdout
  invoicescan extract scan.txt

  # Save the record to a file
  invoicescan extract scan.txt -o invoice.json

  # Include per-field confidence scores
  invoicescan extract scan.txt --confidence`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON structure written by the extract and scan
// commands.
type ExtractOutput struct {
	Record      models.InvoiceRecord       `json:"record"`
	Confidence  *models.ConfidenceScoreSet `json:"confidence_scores,omitempty"`
	FileName    string                     `json:"file_name"`
	ProcessedAt time.Time                  `json:"processed_at"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().BoolP("confidence", "c", false, "Include per-field confidence scores")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	includeConfidence, _ := cmd.Flags().GetBool("confidence")

	textPath := args[0]

	log.Info().
		Str("file", textPath).
		Str("output", outputPath).
		Bool("confidence", includeConfidence).
		Msg("Starting text extraction")

	data, err := os.ReadFile(textPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", textPath).
				Msg("Text file not found")
			return fmt.Errorf("text file not found: %s", textPath)
		}
		log.Error().
			Err(err).
			Str("file", textPath).
			Msg("Failed to read text file")
		return fmt.Errorf("failed to read text file: %w", err)
	}

	engine, err := newEngine(log)
	if err != nil {
		return err
	}

	result := engine.Extract(string(data))

	log.Info().
		Str("invoice_number", result.Record.InvoiceNumber).
		Str("supplier", result.Record.SupplierName).
		Str("total_amount", result.Record.TotalAmount.String()).
		Float64("confidence", result.Scores.Overall).
		Msg("Extraction completed")

	return writeExtractOutput(result, filepath.Base(textPath), outputPath, includeConfidence, log)
}

// newEngine builds the extraction engine from the environment
// configuration.
func newEngine(log zerolog.Logger) (*extract.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	engineCfg := extract.DefaultConfig()
	engineCfg.StandardVATRate = cfg.StandardVATRate
	return extract.New(engineCfg), nil
}

// writeExtractOutput marshals the extraction result and writes it to the
// output path or stdout.
func writeExtractOutput(result *extract.Result, fileName, outputPath string, includeConfidence bool, log zerolog.Logger) error {
	output := ExtractOutput{
		Record:      result.Record,
		FileName:    fileName,
		ProcessedAt: time.Now(),
	}
	if includeConfidence {
		output.Confidence = &result.Scores
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Extraction results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
