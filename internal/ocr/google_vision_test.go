package ocr

import (
	"context"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOCR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OCR Suite")
}

var _ = Describe("GoogleVisionService", func() {
	Describe("NewGoogleVisionServiceWithCredentials", func() {
		It("rejects an empty service account key", func() {
			service, err := NewGoogleVisionServiceWithCredentials(context.Background(), "")

			Expect(service).To(BeNil())
			Expect(err).To(MatchError(ErrMissingCredentials))
		})

		It("rejects a whitespace-only service account key", func() {
			service, err := NewGoogleVisionServiceWithCredentials(context.Background(), "  \n\t")

			Expect(service).To(BeNil())
			Expect(err).To(MatchError(ErrMissingCredentials))
		})
	})

	Describe("ProcessPDF", func() {
		It("rejects data without a PDF header before calling the API", func() {
			service := NewGoogleVisionServiceWithClient(nil)

			result, err := service.ProcessPDF(context.Background(), strings.NewReader("not a pdf at all"))

			Expect(result).To(BeNil())
			Expect(err).To(MatchError(ErrInvalidPDF))
		})

		It("rejects truncated data before calling the API", func() {
			service := NewGoogleVisionServiceWithClient(nil)

			result, err := service.ProcessPDF(context.Background(), strings.NewReader("%P"))

			Expect(result).To(BeNil())
			Expect(err).To(MatchError(ErrInvalidPDF))
		})
	})
})
