package extract

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoicescan/pkg/models"
)

var _ = Describe("SupplierIdentifier", func() {
	var identifier *SupplierIdentifier

	BeforeEach(func() {
		identifier = NewSupplierIdentifier(10, 15)
	})

	Describe("Name", func() {
		It("picks the first header line that looks like a company name", func() {
			lines := []string{
				"Rechnung",
				"Müller Elektrotechnik GmbH",
				"Hauptstraße 12",
			}
			Expect(identifier.Name(lines)).To(Equal("Müller Elektrotechnik GmbH"))
		})

		It("skips lines starting with a digit", func() {
			lines := []string{
				"10115 Berlin Mitte Bezirk",
				"Schulze Sanitärtechnik",
			}
			Expect(identifier.Name(lines)).To(Equal("Schulze Sanitärtechnik"))
		})

		It("accepts names that merely contain stopword letters", func() {
			lines := []string{"Muster Handwerk GmbH"}
			Expect(identifier.Name(lines)).To(Equal("Muster Handwerk GmbH"))
		})

		It("rejects bare labeled number lines", func() {
			lines := []string{
				"Nr: RE-2024-001",
				"Hoffmann Gebäudetechnik",
			}
			Expect(identifier.Name(lines)).To(Equal("Hoffmann Gebäudetechnik"))
		})

		It("returns the sentinel when no line qualifies", func() {
			lines := []string{"Foo", "12345", "€€€€€€€€€€€€"}
			Expect(identifier.Name(lines)).To(Equal(models.NotFound))
		})
	})

	Describe("Address", func() {
		It("combines street and city printed on one line", func() {
			lines := []string{"Hauptstraße 12 10115 Berlin"}
			Expect(identifier.Address(lines)).To(Equal("Hauptstraße 12, 10115 Berlin"))
		})

		It("takes the line above a postal-code line as the street", func() {
			lines := []string{
				"Beispiel GmbH",
				"Gartenweg 8",
				"04109 Leipzig",
			}
			Expect(identifier.Address(lines)).To(Equal("Gartenweg 8, 04109 Leipzig"))
		})

		It("returns empty when no address shape appears", func() {
			lines := []string{"Beispiel GmbH", "irgendwo"}
			Expect(identifier.Address(lines)).To(Equal(""))
		})
	})
})

var _ = Describe("PositionTableExtractor", func() {
	var extractor *PositionTableExtractor

	BeforeEach(func() {
		extractor = NewPositionTableExtractor(dec("19"))
	})

	It("parses numbered rows with a unit column", func() {
		items := extractor.Extract("1. Montagearbeiten 8 Std 45,00 360,00")

		Expect(items).To(HaveLen(1))
		Expect(items[0].Position).To(Equal(1))
		Expect(items[0].Description).To(Equal("Montagearbeiten"))
		Expect(items[0].Quantity.StringFixed(2)).To(Equal("8.00"))
		Expect(items[0].Unit).To(Equal("Std"))
		Expect(items[0].UnitPrice.StringFixed(2)).To(Equal("45.00"))
		Expect(items[0].TotalPrice.StringFixed(2)).To(Equal("360.00"))
		Expect(items[0].VATRate.StringFixed(0)).To(Equal("19"))
	})

	It("defaults the unit to Stk when none is printed", func() {
		items := extractor.Extract("2 Anfahrt 1 40,00 40,00")

		Expect(items).To(HaveLen(1))
		Expect(items[0].Position).To(Equal(2))
		Expect(items[0].Unit).To(Equal("Stk"))
	})

	It("parses multiplication rows", func() {
		items := extractor.Extract("Wartung Heizungsanlage 2 x 75,00 = 150,00")

		Expect(items).To(HaveLen(1))
		Expect(items[0].Position).To(Equal(1))
		Expect(items[0].Description).To(Equal("Wartung Heizungsanlage"))
		Expect(items[0].Quantity.StringFixed(2)).To(Equal("2.00"))
		Expect(items[0].UnitPrice.StringFixed(2)).To(Equal("75.00"))
		Expect(items[0].TotalPrice.StringFixed(2)).To(Equal("150.00"))
	})

	It("parses article-number rows", func() {
		items := extractor.Extract("ART-100 Schrauben verzinkt 50 0,10 5,00")

		Expect(items).To(HaveLen(1))
		Expect(items[0].ArticleNumber).To(Equal("ART-100"))
		Expect(items[0].Description).To(Equal("Schrauben verzinkt"))
		Expect(items[0].Quantity.StringFixed(2)).To(Equal("50.00"))
		Expect(items[0].TotalPrice.StringFixed(2)).To(Equal("5.00"))
	})

	It("rejects rows without positive quantity and total", func() {
		items := extractor.Extract("1 Pfandrückgabe 0 Stk 0,00 0,00")
		Expect(items).To(BeEmpty())
	})

	It("ignores non-table lines", func() {
		text := "Gesamtbetrag: 476,00 €\n10115 Berlin\nZahlbar innerhalb 14 Tagen"
		Expect(extractor.Extract(text)).To(BeEmpty())
	})

	It("numbers unnumbered rows in extraction order", func() {
		text := "Wartung Heizungsanlage 2 x 75,00 = 150,00\nAnfahrt Pauschale 1 x 40,00 = 40,00"
		items := extractor.Extract(text)

		Expect(items).To(HaveLen(2))
		Expect(items[0].Position).To(Equal(1))
		Expect(items[1].Position).To(Equal(2))
	})
})

var _ = Describe("TaxReconciliation", func() {
	var recon *TaxReconciliation

	BeforeEach(func() {
		recon = NewTaxReconciliation(dec("19"))
	})

	Describe("ScanBreakdown", func() {
		It("collects one bucket per rate", func() {
			breakdown := recon.ScanBreakdown("7% MwSt: 9,87 € 19% MwSt: 8,55 €")

			Expect(breakdown).To(HaveLen(2))
			Expect(breakdown[0].Rate.StringFixed(0)).To(Equal("7"))
			Expect(breakdown[0].NetAmount.StringFixed(2)).To(Equal("141.00"))
			Expect(breakdown[1].Rate.StringFixed(0)).To(Equal("19"))
			Expect(breakdown[1].NetAmount.StringFixed(2)).To(Equal("45.00"))
		})

		It("ignores implausible rates", func() {
			breakdown := recon.ScanBreakdown("0% MwSt 5,00 und 50% Aufschlag 10,00")
			Expect(breakdown).To(BeEmpty())
		})
	})

	Describe("Reconcile", func() {
		It("derives the total from position sums and the printed rate", func() {
			record := models.NewInvoiceRecord()
			record.Positions = []models.PositionLineItem{
				{Position: 1, Quantity: dec("2"), TotalPrice: dec("100.00")},
				{Position: 2, Quantity: dec("1"), TotalPrice: dec("50.00")},
			}

			recon.Reconcile(&record, directAmounts{vatRate: dec("19"), vatRateFound: true}, nil)

			Expect(record.TotalAmount.StringFixed(2)).To(Equal("178.50"))
			Expect(record.TaxBreakdown).To(HaveLen(1))
			Expect(record.TaxBreakdown[0].NetAmount.StringFixed(2)).To(Equal("150.00"))
			Expect(record.TaxBreakdown[0].TaxAmount.StringFixed(2)).To(Equal("28.50"))
		})

		It("leaves the record untouched when nothing is known", func() {
			record := models.NewInvoiceRecord()

			recon.Reconcile(&record, directAmounts{}, nil)

			Expect(record.TotalAmount.IsZero()).To(BeTrue())
			Expect(record.TaxBreakdown).To(BeEmpty())
		})
	})
})
