// Package ocr turns scanned invoice images and PDFs into raw text using the
// Google Cloud Vision API. The text it produces is the input of the
// extraction pipeline; nothing here interprets invoice semantics.
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path), falling back to application
// default credentials.
//
// Vision API limits for synchronous processing: 20MB per file, 5 pages per
// PDF. Larger documents need the asynchronous GCS-based flow, which this
// package does not implement.
package ocr

import (
	"context"
	"io"
	"time"
)

// Service extracts raw text from scanned documents.
type Service interface {
	// ProcessImage runs text detection on a single image (JPEG, PNG, TIFF).
	ProcessImage(ctx context.Context, image io.Reader) (*Result, error)

	// ProcessPDF runs text detection on a PDF of up to 5 pages and returns
	// the concatenated text of all pages in reading order.
	ProcessPDF(ctx context.Context, pdf io.Reader) (*Result, error)
}

// Result is the raw text of one document plus recognition metadata.
type Result struct {
	// Text is the recognized text, pages concatenated in reading order.
	Text string `json:"text"`

	// PageCount is the number of pages processed (1 for images).
	PageCount int `json:"page_count"`

	// Confidence is the average recognition confidence in [0,1].
	Confidence float32 `json:"confidence"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
