package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"invoicescan/internal/parse"
	"invoicescan/pkg/models"
)

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// directAmounts carries the amounts matched verbatim in the text, before
// any derivation. The found flags keep a genuine zero apart from absent.
type directAmounts struct {
	total          decimal.Decimal
	totalFound     bool
	net            decimal.Decimal
	netFound       bool
	vatAmount      decimal.Decimal
	vatAmountFound bool
	vatRate        decimal.Decimal
	vatRateFound   bool
}

// TaxReconciliation fills the gaps among net, tax, gross and rate using the
// arithmetic identities between them. Directly matched values are trusted
// and never overwritten by computed ones.
type TaxReconciliation struct {
	amounts      *parse.AmountParser
	standardRate decimal.Decimal
}

// NewTaxReconciliation returns a reconciler synthesizing single-rate
// breakdowns at the given standard VAT rate.
func NewTaxReconciliation(standardRate decimal.Decimal) *TaxReconciliation {
	return &TaxReconciliation{
		amounts:      parse.NewAmountParser(),
		standardRate: standardRate,
	}
}

// ScanBreakdown collects every "rate% ... amount" pair in the text into a
// multi-rate breakdown. The amount is read as the tax charged at that rate
// and the net is derived backwards from it. Rates keep first-discovery
// order; implausible rates above 25% are ignored.
func (t *TaxReconciliation) ScanBreakdown(text string) models.TaxBreakdown {
	var breakdown models.TaxBreakdown

	for _, m := range vatBreakdownPattern.FindAllStringSubmatch(text, -1) {
		rate, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
		if err != nil {
			continue
		}
		amount, ok := t.amounts.Parse(m[2])
		if !ok || !amount.IsPositive() {
			continue
		}
		if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(25)) {
			continue
		}

		net := amount.Mul(hundred).Div(rate).Round(2)
		breakdown = breakdown.Set(rate, net, amount)
	}
	return breakdown
}

// Reconcile finalizes the record's totals and tax breakdown.
//
// Precedence: a scanned breakdown is trusted as-is; direct net/tax matches
// fill a missing total; position sums stand in for a missing total last.
// When nothing yields a breakdown but a total is known, a single-rate
// breakdown at the standard rate is synthesized from the gross. A record
// without total, positions and breakdown keeps total 0.
func (t *TaxReconciliation) Reconcile(record *models.InvoiceRecord, direct directAmounts, breakdown models.TaxBreakdown) {
	total := direct.total
	totalKnown := direct.totalFound && total.IsPositive()

	// net + tax gives the gross when no total was printed
	if !totalKnown && direct.netFound && direct.vatAmountFound {
		total = direct.net.Add(direct.vatAmount)
		totalKnown = total.IsPositive()
	}

	// position sums are the last resort for the gross
	if !totalKnown && len(record.Positions) > 0 {
		sum := decimal.Zero
		for _, p := range record.Positions {
			sum = sum.Add(p.TotalPrice)
		}
		if direct.vatRateFound {
			tax := sum.Mul(direct.vatRate).Div(hundred).Round(2)
			total = sum.Add(tax)
		} else {
			total = sum
		}
		totalKnown = total.IsPositive()
	}

	if len(breakdown) == 0 && totalKnown {
		breakdown = t.synthesize(total, direct)
	}

	if totalKnown {
		record.TotalAmount = total
	}
	record.TaxBreakdown = breakdown
}

// synthesize builds a single-rate breakdown from the gross. A directly
// matched net or tax amount takes precedence over the derived value, so a
// printed "Nettobetrag" survives the rounding of the division.
func (t *TaxReconciliation) synthesize(total decimal.Decimal, direct directAmounts) models.TaxBreakdown {
	rate := t.standardRate
	if direct.vatRateFound && direct.vatRate.IsPositive() {
		rate = direct.vatRate
	}

	net := total.Div(one.Add(rate.Div(hundred))).Round(2)
	if direct.netFound && direct.net.IsPositive() {
		net = direct.net
	}
	tax := total.Sub(net)
	if direct.vatAmountFound && direct.vatAmount.IsPositive() {
		tax = direct.vatAmount
	}

	return models.TaxBreakdown{}.Set(rate, net, tax)
}
