package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"invoicescan/internal/parse"
	"invoicescan/pkg/models"
)

// Three table layouts cover the invoices seen in practice. Every candidate
// line is validated by quantity > 0 and total > 0, which weeds out header
// and footer lines that happen to be numeric-heavy.
var (
	// 1. Montagearbeiten 8 Std 45,00 360,00
	numberedRowPattern = regexp.MustCompile(`^(\d+)[\.\s]+(.+?)\s+(\d+[\.,]?\d*)\s*(Stk|Std|m²|m|kg|l|Stück|Stunde)?\s*€?\s*([\d\.,]+)\s*€?\s*([\d\.,]+)`)
	// Montagearbeiten 8 x 45,00 = 360,00
	multiplyRowPattern = regexp.MustCompile(`(.+?)\s+(\d+[\.,]?\d*)\s*x\s*€?\s*([\d\.,]+)\s*=\s*€?\s*([\d\.,]+)`)
	// ART-100 Montagearbeiten 8 45,00 360,00
	articleRowPattern = regexp.MustCompile(`^([A-Z0-9\-]+)\s+(.+?)\s+(\d+[\.,]?\d*)\s+€?\s*([\d\.,]+)\s+€?\s*([\d\.,]+)`)
)

// PositionTableExtractor pulls line items out of the tabular part of an
// invoice.
type PositionTableExtractor struct {
	amounts        *parse.AmountParser
	defaultVATRate decimal.Decimal
}

// NewPositionTableExtractor returns an extractor stamping items with the
// given default VAT rate.
func NewPositionTableExtractor(defaultVATRate decimal.Decimal) *PositionTableExtractor {
	return &PositionTableExtractor{
		amounts:        parse.NewAmountParser(),
		defaultVATRate: defaultVATRate,
	}
}

// Extract scans the text line by line and collects accepted line items.
// Position numbers come from the source when the layout carries them and
// are assigned in extraction order otherwise.
func (e *PositionTableExtractor) Extract(text string) []models.PositionLineItem {
	var items []models.PositionLineItem

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		item, ok := e.matchLine(line)
		if !ok {
			continue
		}
		if item.Position == 0 {
			item.Position = len(items) + 1
		}
		items = append(items, item)
	}
	return items
}

func (e *PositionTableExtractor) matchLine(line string) (models.PositionLineItem, bool) {
	if m := numberedRowPattern.FindStringSubmatch(line); m != nil {
		pos, _ := strconv.Atoi(m[1])
		return e.buildItem(pos, "", m[2], m[4], m[3], m[5], m[6])
	}

	if m := multiplyRowPattern.FindStringSubmatch(line); m != nil {
		return e.buildItem(0, "", m[1], "", m[2], m[3], m[4])
	}

	if m := articleRowPattern.FindStringSubmatch(line); m != nil {
		return e.buildItem(0, m[1], m[2], "", m[3], m[4], m[5])
	}

	return models.PositionLineItem{}, false
}

// buildItem parses the numeric columns and applies the acceptance rule.
func (e *PositionTableExtractor) buildItem(pos int, articleNumber, description, unit, qty, unitPrice, total string) (models.PositionLineItem, bool) {
	quantity, okQty := e.amounts.Parse(qty)
	price, _ := e.amounts.Parse(unitPrice)
	totalPrice, okTotal := e.amounts.Parse(total)

	if !okQty || !okTotal ||
		!quantity.IsPositive() || !totalPrice.IsPositive() {
		return models.PositionLineItem{}, false
	}

	if unit == "" {
		unit = "Stk"
	}

	return models.PositionLineItem{
		Position:      pos,
		ArticleNumber: articleNumber,
		Description:   strings.TrimSpace(description),
		Quantity:      quantity,
		Unit:          unit,
		UnitPrice:     price,
		TotalPrice:    totalPrice,
		VATRate:       e.defaultVATRate,
	}, true
}
