package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicescan/internal/config"
	"invoicescan/internal/extract"
	"invoicescan/internal/logger"
	"invoicescan/internal/ocr"
	"invoicescan/internal/vision"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-or-pdf]",
	Short: "OCR an invoice document and extract structured data",
	Long: `Process an invoice image or PDF with Google Cloud Vision OCR and run
the extraction pipeline over the recognized text.

Images (JPEG, PNG, TIFF, WebP) and PDFs up to 5 pages and 20MB are
supported for synchronous processing. With --ai the recognized text is
sent to an OpenAI model instead of the pattern pipeline; the model's
guess is revalidated, reconciled and confidence-scored the same way.

Required environment variables:
  GOOGLE_SERVICE_ACCOUNT_KEY - Inline service account JSON (takes precedence), OR
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  OPENAI_API_KEY - Only with --ai`,
	Example: `  # Scan an invoice photo and print the record
  invoicescan scan invoice.jpg

  # Scan a PDF and save record plus confidence scores
  invoicescan scan invoice.pdf --confidence -o result.json

  # Use an AI model for field extraction
  invoicescan scan invoice.pdf --ai

  # Keep the raw OCR text next to the record
  invoicescan scan invoice.jpg --text ocr.txt --timeout 600`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().BoolP("confidence", "c", false, "Include per-field confidence scores")
	scanCmd.Flags().Bool("ai", false, "Extract with an OpenAI model instead of the pattern pipeline")
	scanCmd.Flags().String("text", "", "Also write the raw OCR text to this file")
	scanCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	includeConfidence, _ := cmd.Flags().GetBool("confidence")
	useAI, _ := cmd.Flags().GetBool("ai")
	textPath, _ := cmd.Flags().GetString("text")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	docPath := args[0]

	log.Info().
		Str("file", docPath).
		Str("output", outputPath).
		Bool("ai", useAI).
		Int("timeout", timeoutSecs).
		Msg("Starting document scan")

	fileInfo, err := validateDocumentFile(docPath, log)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	ocrService, err := createOCRService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer ocrService.Close()

	docFile, err := os.Open(docPath)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", docPath).
			Msg("Failed to open document")
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer func() {
		if closeErr := docFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close document")
		}
	}()

	log.Info().
		Str("file", docPath).
		Int64("size", fileInfo.Size()).
		Msg("Processing document")

	var ocrResult *ocr.Result
	if isPDF(docPath) {
		ocrResult, err = ocrService.ProcessPDF(ctx, docFile)
	} else {
		ocrResult, err = ocrService.ProcessImage(ctx, docFile)
	}
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Int("page_count", ocrResult.PageCount).
		Float32("confidence", ocrResult.Confidence).
		Dur("duration", ocrResult.ProcessingDuration).
		Int("text_length", len(ocrResult.Text)).
		Msg("OCR completed")

	if textPath != "" {
		if err := os.WriteFile(textPath, []byte(ocrResult.Text), 0644); err != nil {
			log.Error().
				Err(err).
				Str("text_file", textPath).
				Msg("Failed to write OCR text file")
			return fmt.Errorf("failed to write OCR text file: %w", err)
		}
		log.Info().
			Str("text_file", textPath).
			Msg("Raw OCR text written to file")
	}

	engineCfg := extract.DefaultConfig()
	engineCfg.StandardVATRate = cfg.StandardVATRate
	engine := extract.New(engineCfg)

	var result *extract.Result
	if useAI {
		result, err = extractWithAI(ctx, cfg, engine, ocrResult.Text, log)
		if err != nil {
			return err
		}
	} else {
		result = engine.Extract(ocrResult.Text)
	}

	log.Info().
		Str("invoice_number", result.Record.InvoiceNumber).
		Str("supplier", result.Record.SupplierName).
		Str("total_amount", result.Record.TotalAmount.String()).
		Float64("confidence", result.Scores.Overall).
		Msg("Scan completed")

	return writeExtractOutput(result, filepath.Base(docPath), outputPath, includeConfidence, log)
}

// extractWithAI routes the OCR text through the OpenAI guess service.
func extractWithAI(ctx context.Context, cfg *config.Config, engine *extract.Engine, ocrText string, log zerolog.Logger) (*extract.Result, error) {
	if err := cfg.RequireOpenAI(); err != nil {
		log.Error().Err(err).Msg("OpenAI configuration missing")
		return nil, fmt.Errorf("AI extraction requires an API key:\n\n"+
			"  export OPENAI_API_KEY=sk-...\n\n"+
			"Original error: %w", err)
	}

	guessCfg := vision.DefaultConfig()
	guessCfg.Model = cfg.OpenAIModel

	guessService, err := vision.NewOpenAIGuessService(cfg.OpenAIAPIKey, engine, guessCfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create AI extraction service")
		return nil, fmt.Errorf("failed to create AI extraction service: %w", err)
	}

	result, err := guessService.ExtractInvoice(ctx, ocrText)
	if err != nil {
		log.Error().Err(err).Msg("AI extraction failed")
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("AI extraction timed out. Try increasing --timeout")
		case errors.Is(err, vision.ErrInvalidResponse):
			return nil, fmt.Errorf("the model returned no usable invoice data. Retry or drop --ai to use the pattern pipeline")
		default:
			return nil, fmt.Errorf("AI extraction failed: %w", err)
		}
	}
	return result, nil
}

// supported raster formats for the Vision image endpoint
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// validateDocumentFile checks that the path points to a readable,
// non-empty image or PDF within the synchronous size limit.
func validateDocumentFile(docPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(docPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", docPath).
				Msg("Document not found")
			return nil, fmt.Errorf("document not found: %s", docPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", docPath).
				Msg("Permission denied accessing document")
			return nil, fmt.Errorf("permission denied accessing document: %s", docPath)
		}
		return nil, fmt.Errorf("error accessing document: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", docPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", docPath)
	}

	ext := strings.ToLower(filepath.Ext(docPath))
	if !isPDF(docPath) && !imageExtensions[ext] {
		log.Warn().
			Str("file", docPath).
			Str("extension", ext).
			Msg("Unrecognized file extension, treating as image")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", docPath).
			Msg("Document is empty")
		return nil, fmt.Errorf("document is empty: %s", docPath)
	}

	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", docPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("Document exceeds maximum size limit")
		return nil, fmt.Errorf("document too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// createOCRService creates and configures the OCR service. A service
// account key from the configuration takes precedence over the
// environment credential chain.
func createOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ocr.GoogleVisionService, error) {
	if cfg.GoogleServiceAccountKey != "" {
		ocrService, err := ocr.NewGoogleVisionServiceWithCredentials(ctx, cfg.GoogleServiceAccountKey)
		if err != nil {
			log.Error().
				Err(err).
				Msg("Failed to create OCR service from GOOGLE_SERVICE_ACCOUNT_KEY")
			return nil, fmt.Errorf("failed to create OCR service from GOOGLE_SERVICE_ACCOUNT_KEY: %w", err)
		}
		log.Debug().Msg("OCR service created from configured service account key")
		return ocrService, nil
	}

	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""

	if !hasCredentials {
		log.Error().Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Use Application Default Credentials (if gcloud is configured):\n" +
			"   gcloud auth application-default login\n\n" +
			"4. Check that your .env file contains the credentials variables")
	}

	ocrService, err := ocr.NewGoogleVisionService(ctx)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().
				Err(err).
				Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
				"1. Credentials file exists and is readable\n"+
				"2. JSON format is valid\n"+
				"3. Service account has proper permissions\n\n"+
				"Original error: %w", err)
		}
		log.Error().
			Err(err).
			Msg("Failed to create OCR service")
		return nil, fmt.Errorf("failed to create OCR service: %w", err)
	}

	log.Debug().Msg("OCR service created successfully")
	return ocrService, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrDocumentTooLarge):
		return fmt.Errorf("document is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages (maximum 5 pages). Try splitting into smaller files")
	case errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document. It may contain only images or be corrupted")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "invalid_rapt") ||
		strings.Contains(errStr, "auth:") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n"+
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path:\n"+
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
			"2. Or set GOOGLE_CREDENTIALS with inline JSON:\n"+
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n"+
			"3. Ensure the service account has 'Cloud Vision API User' role\n\n"+
			"4. If using Application Default Credentials, run:\n"+
			"   gcloud auth application-default login\n\n"+
			"Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "forbidden"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrRecognitionFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}
