package extract

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"invoicescan/pkg/models"
)

func TestExtract(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extract Suite")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// expectReconciled asserts the arithmetic relation between the breakdown
// and the gross total, allowing one rounding cent per component.
func expectReconciled(record models.InvoiceRecord) {
	GinkgoHelper()
	diff := record.NetAmount().Add(record.TaxAmount()).Sub(record.TotalAmount).Abs()
	Expect(diff.LessThanOrEqual(dec("0.02"))).To(BeTrue(),
		"net %s + tax %s does not reconcile with total %s",
		record.NetAmount(), record.TaxAmount(), record.TotalAmount)
}

var _ = Describe("Engine", func() {
	var engine *Engine

	BeforeEach(func() {
		cfg := DefaultConfig()
		cfg.Clock = func() time.Time {
			return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		}
		engine = New(cfg)
	})

	When("extracting a complete service invoice", func() {
		const text = `Müller Elektrotechnik GmbH
Hauptstraße 12
10115 Berlin

Rechnungs-Nr: RE-2024-001
Datum: 15.03.2024
Leistungsdatum: 10.03.2024

Elektroinstallation im Bürogebäude inklusive Material

1 Montagearbeiten Elektroinstallation 8 Std 45,00 360,00
2 Anfahrtspauschale Berlin Stadtgebiet 1 Stk 40,00 40,00

Nettobetrag: 400,00 €
19% MwSt: 76,00 €
Gesamtbetrag: 476,00 €

Zahlbar innerhalb 14 Tagen
IBAN: DE89370400440532013000
BIC: COBADEFFXXX`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("finds the labeled invoice number", func() {
			Expect(result.Record.InvoiceNumber).To(Equal("RE-2024-001"))
		})

		It("parses invoice and service dates to ISO form", func() {
			Expect(result.Record.InvoiceDate).To(Equal("2024-03-15"))
			Expect(result.Record.ServiceDate).To(Equal("2024-03-10"))
		})

		It("resolves the relative payment term against the clock", func() {
			Expect(result.Record.DueDate).To(Equal("2024-03-29"))
		})

		It("identifies the supplier from the header", func() {
			Expect(result.Record.SupplierName).To(Equal("Müller Elektrotechnik GmbH"))
			Expect(result.Record.SupplierAddress).To(Equal("Hauptstraße 12, 10115 Berlin"))
		})

		It("picks a prose line as the service description", func() {
			Expect(result.Record.ServiceDescription).To(Equal("Elektroinstallation im Bürogebäude inklusive Material"))
		})

		It("extracts the banking details without spaces", func() {
			Expect(result.Record.SupplierIBAN).To(Equal("DE89370400440532013000"))
			Expect(result.Record.SupplierBIC).To(Equal("COBADEFFXXX"))
		})

		It("extracts both position rows", func() {
			Expect(result.Record.Positions).To(HaveLen(2))

			first := result.Record.Positions[0]
			Expect(first.Position).To(Equal(1))
			Expect(first.Description).To(Equal("Montagearbeiten Elektroinstallation"))
			Expect(first.Quantity.StringFixed(2)).To(Equal("8.00"))
			Expect(first.Unit).To(Equal("Std"))
			Expect(first.UnitPrice.StringFixed(2)).To(Equal("45.00"))
			Expect(first.TotalPrice.StringFixed(2)).To(Equal("360.00"))

			second := result.Record.Positions[1]
			Expect(second.Position).To(Equal(2))
			Expect(second.Unit).To(Equal("Stk"))
			Expect(second.TotalPrice.StringFixed(2)).To(Equal("40.00"))
		})

		It("takes the printed gross total and tax breakdown", func() {
			Expect(result.Record.TotalAmount.StringFixed(2)).To(Equal("476.00"))
			Expect(result.Record.TaxBreakdown).To(HaveLen(1))

			bucket, ok := result.Record.TaxBreakdown.Bucket(dec("19"))
			Expect(ok).To(BeTrue())
			Expect(bucket.NetAmount.StringFixed(2)).To(Equal("400.00"))
			Expect(bucket.TaxAmount.StringFixed(2)).To(Equal("76.00"))
		})

		It("reconciles net, tax and gross", func() {
			expectReconciled(result.Record)
		})

		It("defaults the currency to EUR", func() {
			Expect(result.Record.Currency).To(Equal("EUR"))
		})

		It("scores all core fields with high confidence", func() {
			Expect(result.Scores.InvoiceNumber).To(BeNumerically("==", 0.9))
			Expect(result.Scores.Date).To(BeNumerically("==", 0.8))
			Expect(result.Scores.Amount).To(BeNumerically("==", 0.85))
			Expect(result.Scores.Supplier).To(BeNumerically("==", 0.7))
			Expect(result.Scores.Overall).To(BeNumerically("~", 0.825, 1e-9))
		})
	})

	When("the invoice prints a multi-rate tax table", func() {
		const text = `Bäckerei Schmidt e.K.
Marktplatz 3
80331 München

Rechnung Nr: 2024-0815
Datum: 02.05.2024
Zahlbar bis: 16.05.2024

Netto: 186,00 €
7% MwSt: 9,87 €
19% MwSt: 8,55 €
Gesamtbetrag: 204,42 €`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("keeps one bucket per rate in discovery order", func() {
			Expect(result.Record.TaxBreakdown).To(HaveLen(2))
			Expect(result.Record.TaxBreakdown[0].Rate.StringFixed(0)).To(Equal("7"))
			Expect(result.Record.TaxBreakdown[1].Rate.StringFixed(0)).To(Equal("19"))
		})

		It("derives the net per rate from the printed tax", func() {
			reduced, ok := result.Record.TaxBreakdown.Bucket(dec("7"))
			Expect(ok).To(BeTrue())
			Expect(reduced.NetAmount.StringFixed(2)).To(Equal("141.00"))
			Expect(reduced.TaxAmount.StringFixed(2)).To(Equal("9.87"))

			standard, ok := result.Record.TaxBreakdown.Bucket(dec("19"))
			Expect(ok).To(BeTrue())
			Expect(standard.NetAmount.StringFixed(2)).To(Equal("45.00"))
			Expect(standard.TaxAmount.StringFixed(2)).To(Equal("8.55"))
		})

		It("prefers the printed gross over any derivation", func() {
			Expect(result.Record.TotalAmount.StringFixed(2)).To(Equal("204.42"))
		})

		It("takes the absolute due date over relative terms", func() {
			Expect(result.Record.DueDate).To(Equal("2024-05-16"))
		})

		It("reconciles net, tax and gross", func() {
			expectReconciled(result.Record)
		})
	})

	When("only a gross total is printed", func() {
		const text = `Malermeister Krause
Gartenweg 8
04109 Leipzig

Beleg-Nr: 88123
Datum: 20.06.2024

Gesamtbetrag: 1.190,00 €`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("parses the thousands-separated German amount", func() {
			Expect(result.Record.TotalAmount.StringFixed(2)).To(Equal("1190.00"))
		})

		It("synthesizes a single bucket at the standard rate", func() {
			Expect(result.Record.TaxBreakdown).To(HaveLen(1))

			bucket, ok := result.Record.TaxBreakdown.Bucket(dec("19"))
			Expect(ok).To(BeTrue())
			Expect(bucket.NetAmount.StringFixed(2)).To(Equal("1000.00"))
			Expect(bucket.TaxAmount.StringFixed(2)).To(Equal("190.00"))
		})

		It("reconciles net, tax and gross", func() {
			expectReconciled(result.Record)
		})

		It("falls back to the generic service description", func() {
			Expect(result.Record.ServiceDescription).To(Equal("Dienstleistung/Warenlieferung"))
		})
	})

	When("only net and tax amounts are printed", func() {
		const text = `Hausmeisterservice Lange
Rechnung Nr: HML-77
Datum: 01.02.2024
Netto: 100,00
MwSt: 19,00`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("sums them into the gross total", func() {
			Expect(result.Record.TotalAmount.StringFixed(2)).To(Equal("119.00"))
		})

		It("keeps the printed net and tax in the breakdown", func() {
			Expect(result.Record.TaxBreakdown).To(HaveLen(1))
			Expect(result.Record.TaxBreakdown[0].NetAmount.StringFixed(2)).To(Equal("100.00"))
			Expect(result.Record.TaxBreakdown[0].TaxAmount.StringFixed(2)).To(Equal("19.00"))
		})

		It("reconciles net, tax and gross", func() {
			expectReconciled(result.Record)
		})
	})

	When("only a position table is printed", func() {
		const text = `Schreinerei Albrecht
Rechnung Nr: SA-310
Datum: 05.04.2024

1 Montagearbeiten 8 Std 45,00 360,00
2 Anfahrt 1 Stk 30,00 30,00
3 Kleinmaterial 1 Stk 10,00 10,00`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("extracts all three rows", func() {
			Expect(result.Record.Positions).To(HaveLen(3))
			Expect(result.Record.Positions[0].TotalPrice.StringFixed(2)).To(Equal("360.00"))
			Expect(result.Record.Positions[1].TotalPrice.StringFixed(2)).To(Equal("30.00"))
			Expect(result.Record.Positions[2].TotalPrice.StringFixed(2)).To(Equal("10.00"))
		})

		It("takes the position sum as the total", func() {
			Expect(result.Record.TotalAmount.StringFixed(2)).To(Equal("400.00"))
		})

		It("synthesizes the breakdown from the summed total", func() {
			Expect(result.Record.TaxBreakdown).To(HaveLen(1))

			bucket, ok := result.Record.TaxBreakdown.Bucket(dec("19"))
			Expect(ok).To(BeTrue())
			Expect(bucket.NetAmount.StringFixed(2)).To(Equal("336.13"))
			Expect(bucket.TaxAmount.StringFixed(2)).To(Equal("63.87"))
		})

		It("reconciles net, tax and gross", func() {
			expectReconciled(result.Record)
		})
	})

	When("the invoice carries tax notices and identifiers", func() {
		const text = `Rechnung Nr: RC-1
Steuerschuldnerschaft des Leistungsempfängers
Steuer-Nr: 12/345/67890
USt-IdNr: DE123456789`

		var result *Result

		BeforeEach(func() {
			result = engine.Extract(text)
		})

		It("flags the reverse charge notice", func() {
			Expect(result.Record.HasReverseCharge).To(BeTrue())
			Expect(result.Record.IsIntraCommunitySupply).To(BeFalse())
		})

		It("extracts tax number and VAT ID", func() {
			Expect(result.Record.SupplierTaxNumber).To(Equal("12/345/67890"))
			Expect(result.Record.SupplierVATID).To(Equal("DE123456789"))
		})
	})

	When("a service period is given", func() {
		const text = `Rechnung Nr: 55
Leistungszeitraum: 01.03.2024 bis 31.03.2024
Summe: 10,00 €`

		It("extracts start and end", func() {
			result := engine.Extract(text)
			Expect(result.Record.ServicePeriodStart).To(Equal("2024-03-01"))
			Expect(result.Record.ServicePeriodEnd).To(Equal("2024-03-31"))
		})
	})

	When("the input is empty", func() {
		It("returns the sentinel record with zero confidence", func() {
			result := engine.Extract("   \n\t  ")

			Expect(result.Record.InvoiceNumber).To(Equal(models.NotFound))
			Expect(result.Record.SupplierName).To(Equal(models.NotFound))
			Expect(result.Record.Currency).To(Equal("EUR"))
			Expect(result.Record.TotalAmount.IsZero()).To(BeTrue())
			Expect(result.Scores.Overall).To(BeZero())
		})
	})

	When("the input is unusable noise", func() {
		It("returns sentinels instead of guessing", func() {
			result := engine.Extract("### ??? !!! ---")

			Expect(result.Record.InvoiceNumber).To(Equal(models.NotFound))
			Expect(result.Record.SupplierName).To(Equal(models.NotFound))
			Expect(result.Record.TotalAmount.IsZero()).To(BeTrue())
			Expect(result.Scores.InvoiceNumber).To(BeZero())
			Expect(result.Scores.Date).To(BeZero())
			Expect(result.Scores.Amount).To(BeZero())
			Expect(result.Scores.Supplier).To(BeZero())
		})
	})

	When("the same value matches labeled versus generically", func() {
		It("scores the labeled match strictly higher", func() {
			labeled := engine.Extract("Muster Handwerk GmbH\nRechnungs-Nr: RE-2024-001\nSumme: 100,00 €")
			generic := engine.Extract("Muster Handwerk GmbH\nNr: RE-2024-001\nSumme: 100,00 €")

			Expect(labeled.Record.InvoiceNumber).To(Equal("RE-2024-001"))
			Expect(generic.Record.InvoiceNumber).To(Equal("RE-2024-001"))
			Expect(labeled.Scores.InvoiceNumber).To(BeNumerically(">", generic.Scores.InvoiceNumber))
			Expect(labeled.Scores.Overall).To(BeNumerically(">", generic.Scores.Overall))
		})
	})

	Describe("Finalize", func() {
		It("reconciles and scores an externally produced record", func() {
			record := models.NewInvoiceRecord()
			record.InvoiceNumber = "AI-2024-9"
			record.SupplierName = "Beispiel GmbH"
			record.InvoiceDate = "2024-04-01"
			record.TotalAmount = dec("238.00")

			result := engine.Finalize(record, "Rechnung 238,00 € vom 01.04.2024")

			Expect(result.Record.TaxBreakdown).To(HaveLen(1))
			Expect(result.Record.TaxBreakdown[0].NetAmount.StringFixed(2)).To(Equal("200.00"))
			Expect(result.Record.TaxBreakdown[0].TaxAmount.StringFixed(2)).To(Equal("38.00"))
			Expect(result.Scores.Overall).To(BeNumerically(">", 0))
			expectReconciled(result.Record)
		})
	})
})
