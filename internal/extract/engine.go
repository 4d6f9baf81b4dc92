// Package extract turns raw OCR text of a German invoice into a structured
// record with per-field confidence. The pipeline is pure and deterministic:
// the same text always yields the same record, nothing is mutated across
// calls and missing data never causes an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicescan/internal/logger"
	"invoicescan/internal/parse"
	"invoicescan/internal/textnorm"
	"invoicescan/pkg/models"
)

// Config controls the extraction heuristics.
type Config struct {
	// StandardVATRate is the percentage assumed when an invoice prints no
	// tax breakdown. Reduced-rate invoices without a printed breakdown will
	// be misclassified; keep the rate configurable rather than assuming 19
	// everywhere.
	StandardVATRate int

	// Clock resolves relative payment terms ("zahlbar innerhalb 14 Tagen").
	Clock func() time.Time

	// Header lines scanned for the supplier name and address.
	SupplierNameScanLines    int
	SupplierAddressScanLines int
}

// DefaultConfig returns the extraction defaults for German invoices.
func DefaultConfig() Config {
	return Config{
		StandardVATRate:          19,
		Clock:                    time.Now,
		SupplierNameScanLines:    10,
		SupplierAddressScanLines: 15,
	}
}

// Result bundles one extraction run: the record, its confidence scores and
// the normalized text the patterns ran against.
type Result struct {
	Record models.InvoiceRecord      `json:"record"`
	Scores models.ConfidenceScoreSet `json:"confidence_scores"`
	Text   string                    `json:"-"`
}

// Engine runs the extraction pipeline. It is stateless per call and safe
// for concurrent use.
type Engine struct {
	cfg        Config
	logger     zerolog.Logger
	normalizer *textnorm.Normalizer
	amounts    *parse.AmountParser
	dates      *parse.DateParser
	supplier   *SupplierIdentifier
	positions  *PositionTableExtractor
	tax        *TaxReconciliation
	scorer     *ConfidenceScorer
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SupplierNameScanLines <= 0 {
		cfg.SupplierNameScanLines = 10
	}
	if cfg.SupplierAddressScanLines <= 0 {
		cfg.SupplierAddressScanLines = 15
	}
	if cfg.StandardVATRate <= 0 {
		cfg.StandardVATRate = 19
	}
	standardRate := decimal.NewFromInt(int64(cfg.StandardVATRate))

	return &Engine{
		cfg:        cfg,
		logger:     logger.WithComponent("extract"),
		normalizer: textnorm.New(),
		amounts:    parse.NewAmountParser(),
		dates:      parse.NewDateParserWithClock(cfg.Clock),
		supplier:   NewSupplierIdentifier(cfg.SupplierNameScanLines, cfg.SupplierAddressScanLines),
		positions:  NewPositionTableExtractor(standardRate),
		tax:        NewTaxReconciliation(standardRate),
		scorer:     NewConfidenceScorer(),
	}
}

// Extract runs the full pipeline over raw OCR text. It never fails: empty
// or unusable input yields an all-sentinel record with zero confidence.
func (e *Engine) Extract(rawText string) *Result {
	if strings.TrimSpace(rawText) == "" {
		e.logger.Debug().Msg("empty input, returning sentinel record")
		record := models.NewInvoiceRecord()
		return &Result{Record: record}
	}

	text := e.normalizer.Normalize(rawText)
	lines := nonEmptyLines(text)
	// patterns run against a single line so labels and values split across
	// line breaks still match
	flat := strings.Join(strings.Fields(strings.ReplaceAll(text, "\n", " ")), " ")

	record := models.NewInvoiceRecord()
	var generic GenericMatches

	number, idx, found := firstMatchIndexed(flat, invoiceNumberPatterns)
	if found {
		record.InvoiceNumber = number
		generic.InvoiceNumber = idx == len(invoiceNumberPatterns)-1
	}

	record.InvoiceDate = e.matchDate(flat, invoiceDatePatterns)
	record.ServiceDate = e.matchDate(flat, serviceDatePatterns)
	if m := servicePeriodPattern.FindStringSubmatch(flat); m != nil {
		start, okStart := e.dates.Parse(m[1])
		end, okEnd := e.dates.Parse(m[2])
		if okStart && okEnd {
			record.ServicePeriodStart = start
			record.ServicePeriodEnd = end
		}
	}
	record.DueDate = e.extractDueDate(flat)

	record.SupplierName = e.supplier.Name(lines)
	record.SupplierAddress = e.supplier.Address(lines)
	record.ServiceDescription = serviceDescription(lines)

	if v, ok := firstMatch(flat, vatIDPatterns); ok {
		record.SupplierVATID = strings.ReplaceAll(v, " ", "")
	}
	record.SupplierTaxNumber, _ = firstMatch(flat, taxNumberPatterns)
	if v, ok := firstMatch(flat, ibanPatterns); ok {
		record.SupplierIBAN = strings.ReplaceAll(v, " ", "")
	}
	record.SupplierBIC, _ = firstMatch(flat, bicPatterns)
	record.SupplierEmail, _ = firstMatch(flat, emailPatterns)
	record.SupplierPhone, _ = firstMatch(flat, phonePatterns)

	record.PaymentReference, _ = firstMatch(flat, paymentReferencePatterns)
	record.OrderNumber, _ = firstMatch(flat, orderNumberPatterns)
	record.DeliveryNoteNumber, _ = firstMatch(flat, deliveryNotePatterns)
	record.ProjectReference, _ = firstMatch(flat, projectReferencePatterns)
	record.CustomerNumber, _ = firstMatch(flat, customerNumberPatterns)
	record.ContactPerson, _ = firstMatch(flat, contactPersonPatterns)
	record.DiscountTerms, _ = firstMatch(flat, discountTermsPatterns)

	record.HasReverseCharge = anyMatch(flat, reverseChargePatterns)
	record.IsIntraCommunitySupply = anyMatch(flat, intraCommunityPatterns)
	record.Currency = detectCurrency(flat)

	// positions need the line-oriented text, not the flattened one
	record.Positions = e.positions.Extract(text)

	direct := e.directAmounts(flat)
	breakdown := e.tax.ScanBreakdown(flat)
	e.tax.Reconcile(&record, direct, breakdown)

	scores := e.scorer.Score(text, &record, generic)

	e.logger.Debug().
		Str("invoice_number", record.InvoiceNumber).
		Str("supplier", record.SupplierName).
		Str("total_amount", record.TotalAmount.String()).
		Int("positions", len(record.Positions)).
		Float64("confidence", scores.Overall).
		Msg("extraction completed")

	return &Result{Record: record, Scores: scores, Text: text}
}

// Finalize reconciles and scores a record produced outside the pattern
// pipeline, such as an AI vision guess mapped onto the record shape. The
// guess's own totals and breakdown are trusted like direct matches; only
// genuine gaps are filled.
func (e *Engine) Finalize(record models.InvoiceRecord, text string) *Result {
	direct := directAmounts{
		total:          record.TotalAmount,
		totalFound:     record.TotalAmount.IsPositive(),
		net:            record.NetAmount(),
		netFound:       record.NetAmount().IsPositive(),
		vatAmount:      record.TaxAmount(),
		vatAmountFound: record.TaxAmount().IsPositive(),
	}
	e.tax.Reconcile(&record, direct, record.TaxBreakdown)
	scores := e.scorer.Score(text, &record, GenericMatches{})

	e.logger.Debug().
		Str("invoice_number", record.InvoiceNumber).
		Str("total_amount", record.TotalAmount.String()).
		Float64("confidence", scores.Overall).
		Msg("external record finalized")

	return &Result{Record: record, Scores: scores, Text: text}
}

// matchDate runs a pattern list and converts the hit into ISO form.
func (e *Engine) matchDate(text string, patterns []*regexp.Regexp) string {
	raw, ok := firstMatch(text, patterns)
	if !ok {
		return ""
	}
	iso, ok := e.dates.Parse(raw)
	if !ok {
		return ""
	}
	return iso
}

// extractDueDate prefers an absolute date and falls back to relative
// payment terms resolved against the engine clock.
func (e *Engine) extractDueDate(text string) string {
	if iso := e.matchDate(text, dueDatePatterns); iso != "" {
		return iso
	}
	if m := relativeDueDatePattern.FindStringSubmatch(text); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil && days > 0 {
			return e.dates.AddDays(days)
		}
	}
	return ""
}

// directAmounts collects the amounts printed verbatim on the invoice.
func (e *Engine) directAmounts(text string) directAmounts {
	var d directAmounts

	if raw, ok := firstMatch(text, totalAmountPatterns); ok {
		d.total, d.totalFound = e.amounts.Parse(raw)
	}
	if raw, ok := firstMatch(text, netAmountPatterns); ok {
		d.net, d.netFound = e.amounts.Parse(raw)
	}
	if raw, ok := firstMatch(text, vatAmountPatterns); ok {
		d.vatAmount, d.vatAmountFound = e.amounts.Parse(raw)
	}
	if raw, ok := firstMatch(text, vatRatePatterns); ok {
		rate, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
		if err == nil {
			d.vatRate = rate
			d.vatRateFound = true
		}
	}
	return d
}

var (
	descriptionStoplist = regexp.MustCompile(`(?i)rechnung|invoice|datum|total|mwst|ust|€|tel|fax|email|www|iban|bic|nr\.`)
	priceLead           = regexp.MustCompile(`^\d+[\.,]\d`)
)

// serviceDescription picks the first prose-like line from the middle of the
// document, where the billed work is usually described.
func serviceDescription(lines []string) string {
	for i := 5; i < len(lines)-5 && i < 20; i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) > 20 &&
			!descriptionStoplist.MatchString(line) &&
			!priceLead.MatchString(line) &&
			hasLetters.MatchString(line) {
			return line
		}
	}
	return "Dienstleistung/Warenlieferung"
}

func detectCurrency(text string) string {
	switch {
	case euroCurrencyPattern.MatchString(text):
		return "EUR"
	case usdCurrencyPattern.MatchString(text):
		return "USD"
	case chfCurrencyPattern.MatchString(text):
		return "CHF"
	default:
		return "EUR"
	}
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
