package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrDocumentTooLarge is returned when a file exceeds the 20MB Vision
	// API limit for synchronous processing.
	ErrDocumentTooLarge = errors.New("document exceeds the maximum size for synchronous processing (20MB)")

	// ErrInvalidPDF is returned when the provided data is not a valid PDF.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrRecognitionFailed is returned when the Vision API fails to process
	// the document.
	ErrRecognitionFailed = errors.New("text recognition failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials
	// are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrTooManyPages is returned for PDFs beyond the 5-page limit of
	// synchronous processing.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrEmptyDocument is returned when the document contains no readable
	// text.
	ErrEmptyDocument = errors.New("document contains no readable text")
)

// OCRError wraps errors with context about the failed OCR operation.
type OCRError struct {
	// Op is the operation that failed (e.g., "ProcessImage").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps an error as an OCRError unless it already is one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return &OCRError{Op: op, Err: err, Details: details}
}
