package models

import "github.com/shopspring/decimal"

// NotFound is the sentinel for required string fields that could not be
// extracted. The engine never returns errors for missing data; callers
// detect extraction failure by comparing against this value.
const NotFound = "NOT_FOUND"

// InvoiceRecord is the structured result of one extraction run over raw OCR
// text. Required fields are always populated, falling back to a sentinel or
// zero value; optional fields are left empty when nothing matched and are
// never guessed.
type InvoiceRecord struct {
	// Required fields (sentinel/zero when extraction failed)
	InvoiceNumber      string          `json:"invoice_number"`      // NotFound when absent
	InvoiceDate        string          `json:"invoice_date"`        // YYYY-MM-DD, empty when absent
	Currency           string          `json:"currency"`            // defaults to EUR
	SupplierName       string          `json:"supplier_name"`       // NotFound when absent
	SupplierAddress    string          `json:"supplier_address"`    // empty when absent
	TotalAmount        decimal.Decimal `json:"total_amount"`        // gross, never negative; zero means not found
	ServiceDescription string          `json:"service_description"` // short description of goods/services

	// Optional dates and references
	ServiceDate        string `json:"service_date,omitempty"`
	ServicePeriodStart string `json:"service_period_start,omitempty"`
	ServicePeriodEnd   string `json:"service_period_end,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	PaymentReference   string `json:"payment_reference,omitempty"`
	OrderNumber        string `json:"order_number,omitempty"`
	DeliveryNoteNumber string `json:"delivery_note_number,omitempty"`
	ProjectReference   string `json:"project_reference,omitempty"`
	CustomerNumber     string `json:"customer_number,omitempty"`
	ContactPerson      string `json:"contact_person,omitempty"`
	DiscountTerms      string `json:"discount_terms,omitempty"`

	// Optional supplier details
	SupplierVATID     string `json:"supplier_vat_id,omitempty"`
	SupplierTaxNumber string `json:"supplier_tax_number,omitempty"`
	SupplierIBAN      string `json:"supplier_iban,omitempty"`
	SupplierBIC       string `json:"supplier_bic,omitempty"`
	SupplierEmail     string `json:"supplier_email,omitempty"`
	SupplierPhone     string `json:"supplier_phone,omitempty"`

	// Tax flags
	HasReverseCharge       bool `json:"has_reverse_charge,omitempty"`
	IsIntraCommunitySupply bool `json:"is_intra_community_supply,omitempty"`

	// Amounts per tax rate and extracted line items
	TaxBreakdown TaxBreakdown       `json:"tax_breakdown,omitempty"`
	Positions    []PositionLineItem `json:"positions,omitempty"`
}

// NewInvoiceRecord returns a record with required-field defaults applied.
func NewInvoiceRecord() InvoiceRecord {
	return InvoiceRecord{
		InvoiceNumber: NotFound,
		Currency:      "EUR",
		SupplierName:  NotFound,
		TotalAmount:   decimal.Zero,
	}
}

// NetAmount returns the summed net amount across all tax rate buckets.
func (r *InvoiceRecord) NetAmount() decimal.Decimal {
	return r.TaxBreakdown.TotalNet()
}

// TaxAmount returns the summed tax amount across all tax rate buckets.
func (r *InvoiceRecord) TaxAmount() decimal.Decimal {
	return r.TaxBreakdown.TotalTax()
}

// TaxBucket holds the net and tax amount attributed to one VAT rate. Net and
// tax are always set together; a bucket never carries only one of the two.
type TaxBucket struct {
	Rate      decimal.Decimal `json:"rate"`       // percentage, e.g. 19
	NetAmount decimal.Decimal `json:"net_amount"` // base amount before tax
	TaxAmount decimal.Decimal `json:"tax_amount"` // tax charged at Rate
}

// TaxBreakdown maps VAT rates to their net/tax amounts. Buckets keep the
// order in which rates were first discovered in the document; rates are
// unique within a breakdown.
type TaxBreakdown []TaxBucket

// Bucket returns the bucket for the given rate, if present.
func (tb TaxBreakdown) Bucket(rate decimal.Decimal) (TaxBucket, bool) {
	for _, b := range tb {
		if b.Rate.Equal(rate) {
			return b, true
		}
	}
	return TaxBucket{}, false
}

// Set adds or replaces the bucket for the given rate, preserving discovery
// order for rates already present.
func (tb TaxBreakdown) Set(rate, net, tax decimal.Decimal) TaxBreakdown {
	for i, b := range tb {
		if b.Rate.Equal(rate) {
			tb[i].NetAmount = net
			tb[i].TaxAmount = tax
			return tb
		}
	}
	return append(tb, TaxBucket{Rate: rate, NetAmount: net, TaxAmount: tax})
}

// TotalNet returns the sum of net amounts across all buckets.
func (tb TaxBreakdown) TotalNet() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range tb {
		sum = sum.Add(b.NetAmount)
	}
	return sum
}

// TotalTax returns the sum of tax amounts across all buckets.
func (tb TaxBreakdown) TotalTax() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range tb {
		sum = sum.Add(b.TaxAmount)
	}
	return sum
}

// PositionLineItem is one row of an invoice line-item table.
type PositionLineItem struct {
	Position      int             `json:"position"`
	ArticleNumber string          `json:"article_number,omitempty"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"` // always > 0 for accepted items
	Unit          string          `json:"unit,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"` // always > 0 for accepted items
	VATRate       decimal.Decimal `json:"vat_rate"`    // defaults to the standard rate
}

// ConfidenceScoreSet holds per-field and overall confidence in [0,1] for one
// extraction run. A field's score is 0 when the field is absent or sentinel.
// Overall is the fixed weighted sum
//
//	invoice_number*0.3 + date*0.2 + amount*0.3 + supplier*0.2
//
// weighted toward the fields that most determine whether a record can be
// booked without manual review.
type ConfidenceScoreSet struct {
	Overall       float64 `json:"overall"`
	InvoiceNumber float64 `json:"invoice_number"`
	Date          float64 `json:"date"`
	Amount        float64 `json:"amount"`
	Supplier      float64 `json:"supplier"`
}
