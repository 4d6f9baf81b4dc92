// Package vision extracts invoice data by asking an OpenAI chat model for a
// structured JSON guess over the OCR text. The guess is mapped onto the
// same record shape the pattern pipeline produces and then passed through
// the pipeline's reconciliation and confidence stages, so both extraction
// paths yield directly comparable results.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"invoicescan/internal/extract"
	"invoicescan/internal/logger"
	"invoicescan/internal/parse"
	"invoicescan/pkg/models"
)

// GuessService produces a structured invoice record from OCR text via an
// AI model.
type GuessService interface {
	ExtractInvoice(ctx context.Context, ocrText string) (*extract.Result, error)
}

// Config configures the AI extraction.
type Config struct {
	Model       string  // chat model name
	Temperature float32 // low temperature keeps extraction deterministic
	MaxRetries  int     // attempts on transport or parse failure
}

// DefaultConfig returns conservative extraction settings.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		Temperature: 0.1,
		MaxRetries:  3,
	}
}

// OpenAIGuessService implements GuessService against the OpenAI API.
type OpenAIGuessService struct {
	client  *openai.Client
	engine  *extract.Engine
	amounts *parse.AmountParser
	config  Config
	log     zerolog.Logger
}

// NewOpenAIGuessService creates a service from an API key.
func NewOpenAIGuessService(apiKey string, engine *extract.Engine, config Config) (*OpenAIGuessService, error) {
	if apiKey == "" {
		return nil, WrapGuessError("NewOpenAIGuessService", ErrMissingAPIKey, "")
	}
	return NewOpenAIGuessServiceWithClient(openai.NewClient(apiKey), engine, config), nil
}

// NewOpenAIGuessServiceWithClient creates a service with an explicit
// client, for tests.
func NewOpenAIGuessServiceWithClient(client *openai.Client, engine *extract.Engine, config Config) *OpenAIGuessService {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	return &OpenAIGuessService{
		client:  client,
		engine:  engine,
		amounts: parse.NewAmountParser(),
		config:  config,
		log:     logger.WithComponent("vision"),
	}
}

// ExtractInvoice asks the model for a JSON guess over the OCR text, maps it
// onto an InvoiceRecord and finalizes it through the core pipeline.
func (s *OpenAIGuessService) ExtractInvoice(ctx context.Context, ocrText string) (*extract.Result, error) {
	const op = "ExtractInvoice"

	s.log.Info().
		Int("text_length", len(ocrText)).
		Str("model", s.config.Model).
		Msg("starting AI extraction")

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: s.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildPrompt(ocrText)},
			},
			MaxTokens: 1000,
		})
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", s.config.MaxRetries).
				Msg("model request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = ErrNoResponse
			continue
		}

		guess, err := parseGuessJSON(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			s.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Msg("failed to parse model response, retrying")
			continue
		}

		record := s.mapToRecord(guess)
		result := s.engine.Finalize(record, ocrText)

		s.log.Info().
			Str("invoice_number", result.Record.InvoiceNumber).
			Str("supplier", result.Record.SupplierName).
			Float64("confidence", result.Scores.Overall).
			Int("attempt", attempt).
			Msg("AI extraction completed")

		return result, nil
	}

	return nil, WrapGuessError(op, lastErr, fmt.Sprintf("all %d attempts failed", s.config.MaxRetries))
}

// parseGuessJSON tolerantly extracts the JSON object from a model reply
// that may be wrapped in markdown fences or prose.
func parseGuessJSON(content string) (map[string]interface{}, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrInvalidResponse
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, WrapGuessError("parseGuessJSON", ErrInvalidResponse, err.Error())
	}
	return raw, nil
}

// mapToRecord converts the raw guess into an InvoiceRecord. Model output is
// hostile input: every field is revalidated and anything unparseable is
// dropped rather than trusted.
func (s *OpenAIGuessService) mapToRecord(raw map[string]interface{}) models.InvoiceRecord {
	record := models.NewInvoiceRecord()

	if v := getString(raw, "invoice_number"); v != "" {
		record.InvoiceNumber = v
	}
	if iso, ok := parse.FormatISO(getString(raw, "invoice_date")); ok {
		record.InvoiceDate = iso
	}
	if iso, ok := parse.FormatISO(getString(raw, "due_date")); ok {
		record.DueDate = iso
	}
	if iso, ok := parse.FormatISO(getString(raw, "service_date")); ok {
		record.ServiceDate = iso
	}
	if v := getString(raw, "supplier_name"); v != "" {
		record.SupplierName = v
	}
	record.SupplierAddress = getString(raw, "supplier_address")
	record.SupplierVATID = getString(raw, "supplier_vat_id")
	record.SupplierIBAN = strings.ReplaceAll(getString(raw, "supplier_iban"), " ", "")
	record.SupplierBIC = getString(raw, "supplier_bic")
	record.ServiceDescription = getString(raw, "service_description")
	record.OrderNumber = getString(raw, "order_number")
	record.PaymentReference = getString(raw, "payment_reference")
	record.Currency = normalizeCurrency(getString(raw, "currency"))

	if total, ok := s.parseGuessAmount(raw, "total_amount"); ok && !total.IsNegative() {
		record.TotalAmount = total
	}
	net, netOK := s.parseGuessAmount(raw, "net_amount")
	tax, taxOK := s.parseGuessAmount(raw, "vat_amount")
	rate, rateOK := s.parseGuessAmount(raw, "vat_rate")
	if !rateOK {
		rate = decimal.NewFromInt(19)
	}
	if netOK && taxOK && net.IsPositive() && tax.IsPositive() {
		record.TaxBreakdown = models.TaxBreakdown{}.Set(rate, net, tax)
	}

	return record
}

// parseGuessAmount reads an amount field that may arrive as JSON number or
// as a string in German or English notation.
func (s *OpenAIGuessService) parseGuessAmount(raw map[string]interface{}, key string) (decimal.Decimal, bool) {
	switch v := raw[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		return s.amounts.Parse(v)
	default:
		return decimal.Zero, false
	}
}

func getString(m map[string]interface{}, key string) string {
	if value, exists := m[key]; exists && value != nil {
		if str, ok := value.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

// normalizeCurrency maps symbols and spellings to ISO codes, defaulting to
// EUR for German invoices.
func normalizeCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))
	switch normalized {
	case "", "€", "EURO", "EUROS", "EUR":
		return "EUR"
	case "$", "DOLLAR", "DOLLARS", "USD", "US$":
		return "USD"
	case "CHF", "FRANKEN":
		return "CHF"
	default:
		if len(normalized) == 3 {
			return normalized
		}
		return "EUR"
	}
}

const systemPrompt = `Du extrahierst strukturierte Daten aus deutschen Rechnungen.

Analysiere den OCR-Text und gib AUSSCHLIESSLICH ein gültiges JSON-Objekt zurück:
- Verwende null für fehlende Werte, erfinde nichts
- Beträge als String im Originalformat (z.B. "1.190,00")
- Datumsangaben als YYYY-MM-DD
- KEINE trailing comma nach dem letzten Feld, kein Text vor oder nach dem JSON`

func buildPrompt(ocrText string) string {
	var prompt strings.Builder

	prompt.WriteString("Extrahiere die Rechnungsdaten aus diesem OCR-Text:\n\n")
	prompt.WriteString(ocrText)
	prompt.WriteString("\n\nGib JSON mit diesen Feldern zurück:\n")
	prompt.WriteString(`{
  "invoice_number": "Rechnungsnummer",
  "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "service_date": "YYYY-MM-DD",
  "supplier_name": "Name des Lieferanten",
  "supplier_address": "Anschrift des Lieferanten",
  "supplier_vat_id": "USt-IdNr",
  "supplier_iban": "IBAN",
  "supplier_bic": "BIC",
  "service_description": "kurze Beschreibung der Leistung",
  "order_number": "Auftragsnummer",
  "payment_reference": "Verwendungszweck",
  "currency": "EUR",
  "total_amount": "Bruttobetrag",
  "net_amount": "Nettobetrag",
  "vat_amount": "MwSt-Betrag",
  "vat_rate": "MwSt-Satz in Prozent"
}`)

	return prompt.String()
}
