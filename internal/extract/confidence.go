package extract

import (
	"regexp"

	"invoicescan/pkg/models"
)

// Confidence heuristics are deliberately simple and explainable: a reviewer
// must be able to see why a record was or was not trusted. Weights and
// thresholds are fixed so scores stay reproducible across runs.
var (
	strongNumberShape = regexp.MustCompile(`[A-Z0-9]{3,}`)
	dateShape         = regexp.MustCompile(`\d{1,2}[\.\-/]\d{1,2}[\.\-/]\d{2,4}`)
	amountShape       = regexp.MustCompile(`€\s*[\d\.,]+|\d+[,\.]\d{2}`)
)

// overall weighting, summing to 1
const (
	weightInvoiceNumber = 0.3
	weightDate          = 0.2
	weightAmount        = 0.3
	weightSupplier      = 0.2
)

// GenericMatches flags fields whose value came from the last-resort
// catch-all pattern rather than a labeled one. Such values score lower, so
// a labeled match always outranks a generic fallback.
type GenericMatches struct {
	InvoiceNumber bool
}

// ConfidenceScorer rates how trustworthy each extracted field is.
type ConfidenceScorer struct{}

// NewConfidenceScorer returns a ConfidenceScorer.
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// Score computes per-field and overall confidence for a record against the
// text it was extracted from. Absent and sentinel fields score 0, so a
// fully failed extraction yields an all-zero set.
func (s *ConfidenceScorer) Score(text string, record *models.InvoiceRecord, generic GenericMatches) models.ConfidenceScoreSet {
	scores := models.ConfidenceScoreSet{}

	if record.InvoiceNumber != models.NotFound && record.InvoiceNumber != "" {
		if !generic.InvoiceNumber && strongNumberShape.MatchString(record.InvoiceNumber) {
			scores.InvoiceNumber = 0.9
		} else {
			scores.InvoiceNumber = 0.6
		}
	}

	if record.InvoiceDate != "" {
		if dateShape.MatchString(text) {
			scores.Date = 0.8
		} else {
			scores.Date = 0.3
		}
	}

	if record.TotalAmount.IsPositive() {
		if amountShape.MatchString(text) {
			scores.Amount = 0.85
		} else {
			scores.Amount = 0.4
		}
	}

	if record.SupplierName != models.NotFound && record.SupplierName != "" {
		if len(record.SupplierName) > 5 {
			scores.Supplier = 0.7
		} else {
			scores.Supplier = 0.5
		}
	}

	scores.Overall = scores.InvoiceNumber*weightInvoiceNumber +
		scores.Date*weightDate +
		scores.Amount*weightAmount +
		scores.Supplier*weightSupplier

	return scores
}
