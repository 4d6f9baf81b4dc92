package textnorm

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTextnorm(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Textnorm Suite")
}

var _ = Describe("Normalize", func() {
	var (
		input  string
		output string
	)

	JustBeforeEach(func() {
		output = New().Normalize(input)
	})

	When("the text contains HTML entities", func() {
		BeforeEach(func() {
			input = "M&uuml;ller &amp; S&ouml;hne GmbH &euro; 100"
		})

		It("decodes them", func() {
			Expect(output).To(Equal("Müller & Söhne GmbH € 100"))
		})
	})

	When("the text contains mojibake umlauts", func() {
		BeforeEach(func() {
			input = "StraÃŸe MÃ¼ller BÃ¼ro"
		})

		It("repairs the encoding", func() {
			Expect(output).To(Equal("Straße Müller Büro"))
		})
	})

	When("the text contains known OCR typos", func() {
		BeforeEach(func() {
			input = "Rechnunq Nr: 123\nDaturn: 01.01.2024\nSurnme: 100,00\nMeier GrnbH"
		})

		It("corrects each typo", func() {
			Expect(output).To(ContainSubstring("Rechnung Nr: 123"))
			Expect(output).To(ContainSubstring("Datum: 01.01.2024"))
			Expect(output).To(ContainSubstring("Summe: 100,00"))
			Expect(output).To(ContainSubstring("Meier GmbH"))
		})
	})

	When("the text has messy whitespace", func() {
		BeforeEach(func() {
			input = "Rechnung   Nr:\t123\r\n\n\n\n\nSumme:  100"
		})

		It("collapses spaces but keeps line structure", func() {
			Expect(output).To(Equal("Rechnung Nr: 123\n\nSumme: 100"))
		})
	})

	When("the input is empty", func() {
		BeforeEach(func() {
			input = ""
		})

		It("returns an empty string", func() {
			Expect(output).To(Equal(""))
		})
	})

	When("normalizing twice", func() {
		BeforeEach(func() {
			input = "Rechnunq &auml;   Ã¼ber\t100,00\r\nDaturn:  01.02.2024"
		})

		It("is idempotent", func() {
			Expect(New().Normalize(output)).To(Equal(output))
		})
	})
})
