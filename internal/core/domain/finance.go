package domain

import "time"

const (
	ExtractionStatusCompleted = "completed"

	DefaultCurrency = "SAR"
)

type Vendor struct {
	ID         int64  `json:"id"`
	TenantID   int64  `json:"tenant_id"`
	Name       string `json:"name"`
	TaxID      string `json:"tax_id,omitempty"`
	TrustScore int    `json:"trust_score"`
}

type Invoice struct {
	ID               int64         `json:"id"`
	TenantID         int64         `json:"tenant_id"`
	DocumentID       int64         `json:"document_id"`
	VendorID         *int64        `json:"vendor_id,omitempty"`
	InvoiceNumber    string        `json:"invoice_number"`
	InvoiceDate      *time.Time    `json:"invoice_date,omitempty"`
	TotalAmount      float64       `json:"total_amount"`
	Currency         string        `json:"currency"`
	PaymentStatus    string        `json:"payment_status"`
	ExtractionStatus string        `json:"extraction_status"`
	AuditStatus      string        `json:"audit_status"`
	Vendor           *Vendor       `json:"vendor,omitempty"`
	Items            []InvoiceItem `json:"items,omitempty"`
	AuditFlags       []AuditFlag   `json:"audit_flags,omitempty"`
}

type InvoiceItem struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	Category    string  `json:"category,omitempty"`
}

type AuditFlag struct {
	ID            int64  `json:"id"`
	InvoiceID     int64  `json:"invoice_id"`
	IssueType     string `json:"issue_type"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
	AIExplanation string `json:"ai_explanation,omitempty"`
	IsResolved    bool   `json:"is_resolved"`
}

// InvoiceExtract is the strict JSON object the gateway must return.
type InvoiceExtract struct {
	VendorName    string               `json:"vendor_name" validate:"required"`
	VendorTaxID   *string              `json:"vendor_tax_id"`
	InvoiceNumber string               `json:"invoice_number" validate:"required"`
	InvoiceDate   *string              `json:"invoice_date"`
	TotalAmount   *float64             `json:"total_amount" validate:"required"`
	Currency      string               `json:"currency"`
	Items         []InvoiceItemExtract `json:"items" validate:"dive"`
}

type InvoiceItemExtract struct {
	Description string   `json:"description" validate:"required"`
	Quantity    *float64 `json:"quantity" validate:"required"`
	UnitPrice   *float64 `json:"unit_price" validate:"required"`
	TotalPrice  *float64 `json:"total_price" validate:"required"`
	Category    *string  `json:"category"`
}

const InvoiceDateLayout = "2006-01-02"

// ParsedDate returns nil when the date is absent or not in ISO form.
func (e InvoiceExtract) ParsedDate() *time.Time {
	if e.InvoiceDate == nil || *e.InvoiceDate == "" {
		return nil
	}
	t, err := time.Parse(InvoiceDateLayout, *e.InvoiceDate)
	if err != nil {
		return nil
	}
	return &t
}

func (e InvoiceExtract) CurrencyOrDefault() string {
	if e.Currency == "" {
		return DefaultCurrency
	}
	return e.Currency
}

func (e InvoiceExtract) LineItems() []InvoiceItem {
	items := make([]InvoiceItem, 0, len(e.Items))
	for _, it := range e.Items {
		item := InvoiceItem{
			Description: it.Description,
			Quantity:    *it.Quantity,
			UnitPrice:   *it.UnitPrice,
			TotalPrice:  *it.TotalPrice,
		}
		if it.Category != nil {
			item.Category = *it.Category
		}
		items = append(items, item)
	}
	return items
}

// ExtractionRequest is the message handed to the background extraction runner.
type ExtractionRequest struct {
	DocumentID  int64     `json:"document_id"`
	TenantID    int64     `json:"tenant_id"`
	RequestedAt time.Time `json:"requested_at"`
}
