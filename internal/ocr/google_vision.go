package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicescan/internal/logger"
)

const (
	// MaxFileSizeBytes is the Vision API limit for synchronous processing.
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the Vision API page limit for synchronous PDF
	// processing.
	MaxPagesSync = 5
)

// GoogleVisionService implements Service against the Cloud Vision API. It
// holds a client connection and must be released with Close when done; it
// is never kept as ambient global state.
type GoogleVisionService struct {
	client *vision.ImageAnnotatorClient
	logger zerolog.Logger
}

// NewGoogleVisionService creates a service with credentials from the
// environment: GOOGLE_CREDENTIALS inline JSON first, then
// GOOGLE_APPLICATION_CREDENTIALS, then application default credentials.
func NewGoogleVisionService(ctx context.Context) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return &GoogleVisionService{
		client: client,
		logger: logger.WithComponent("ocr"),
	}, nil
}

// NewGoogleVisionServiceWithCredentials creates a service from inline
// service account JSON, bypassing the environment chain.
func NewGoogleVisionServiceWithCredentials(ctx context.Context, credJSON string) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionServiceWithCredentials"

	if strings.TrimSpace(credJSON) == "" {
		return nil, WrapOCRError(op, ErrMissingCredentials, "empty service account key")
	}

	client, err := vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return &GoogleVisionService{
		client: client,
		logger: logger.WithComponent("ocr"),
	}, nil
}

// NewGoogleVisionServiceWithClient creates a service with an explicit
// client, for tests.
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionService {
	return &GoogleVisionService{
		client: client,
		logger: logger.WithComponent("ocr"),
	}
}

// ProcessImage runs document text detection on a single image.
func (g *GoogleVisionService) ProcessImage(ctx context.Context, imageData io.Reader) (*Result, error) {
	const op = "ProcessImage"
	startTime := time.Now()

	img, err := vision.NewImageFromReader(imageData)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}
	if len(img.Content) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrDocumentTooLarge, fmt.Sprintf("image size: %d bytes", len(img.Content)))
	}

	annotation, err := g.client.DetectDocumentText(ctx, img, nil)
	if err != nil {
		return nil, WrapOCRError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "")
	}

	var confidenceSum float32
	var confidenceCount int
	for _, page := range annotation.Pages {
		if page.Confidence > 0 {
			confidenceSum += page.Confidence
			confidenceCount++
		}
	}
	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	g.logger.Debug().
		Int("chars", len(annotation.Text)).
		Float32("confidence", avgConfidence).
		Msg("image text detection completed")

	processedAt := time.Now()
	return &Result{
		Text:               annotation.Text,
		PageCount:          1,
		Confidence:         avgConfidence,
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}

// ProcessPDF runs document text detection on an inline PDF.
func (g *GoogleVisionService) ProcessPDF(ctx context.Context, pdfData io.Reader) (*Result, error) {
	const op = "ProcessPDF"
	startTime := time.Now()

	pdfBytes, err := io.ReadAll(pdfData)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrRecognitionFailed, "no response from Vision API")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapOCRError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	result, err := g.collectPages(fileResp)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	g.logger.Debug().
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Msg("pdf text detection completed")

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)
	return result, nil
}

// collectPages concatenates page texts in reading order and averages the
// per-annotation confidence.
func (g *GoogleVisionService) collectPages(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	pageCount := len(fileResp.Responses)
	if pageCount == 0 {
		return nil, ErrEmptyDocument
	}
	if pageCount > MaxPagesSync {
		return nil, WrapOCRError("collectPages", ErrTooManyPages, fmt.Sprintf("document has %d pages", pageCount))
	}

	var allText strings.Builder
	var confidenceSum float32
	var confidenceCount int

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}

		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.WriteString(page.FullTextAnnotation.Text)

		for _, annotation := range page.TextAnnotations {
			if annotation.Confidence > 0 {
				confidenceSum += annotation.Confidence
				confidenceCount++
			}
		}
	}

	if strings.TrimSpace(allText.String()) == "" {
		return nil, ErrEmptyDocument
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	return &Result{
		Text:       allText.String(),
		PageCount:  pageCount,
		Confidence: avgConfidence,
	}, nil
}

// Close releases the underlying Vision client connection.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
