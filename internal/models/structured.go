package models

import (
	"encoding/json"
	"strings"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/shopspring/decimal"
)

// Party is a supplier or customer as it appears on an invoice
type Party struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
}

// Empty reports whether the party carries no name
func (p Party) Empty() bool {
	return strings.TrimSpace(p.Name) == ""
}

// LineItemData is one line of structured invoice data
type LineItemData struct {
	ItemName    string          `json:"itemName"`
	ItemCode    string          `json:"itemCode,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// UnmarshalJSON reads blank or null item amounts as zero
func (li *LineItemData) UnmarshalJSON(b []byte) error {
	var raw struct {
		ItemName    string `json:"itemName"`
		ItemCode    string `json:"itemCode"`
		Description string `json:"description"`
		Quantity    Amount `json:"quantity"`
		UnitPrice   Amount `json:"unitPrice"`
		TotalPrice  Amount `json:"totalPrice"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*li = LineItemData{
		ItemName:    raw.ItemName,
		ItemCode:    raw.ItemCode,
		Description: raw.Description,
		Quantity:    raw.Quantity.Or(decimal.Zero),
		UnitPrice:   raw.UnitPrice.Or(decimal.Zero),
		TotalPrice:  raw.TotalPrice.Or(decimal.Zero),
	}
	return nil
}

// InvoiceInput is invoice data as received from the language model or an API client.
// Amounts accept JSON numbers and numeric strings; blank optional amounts count as absent.
type InvoiceInput struct {
	InvoiceNumber string         `json:"invoiceNumber"`
	Date          string         `json:"date"`
	Type          string         `json:"type"`
	Status        InvoiceStatus  `json:"status,omitempty"`
	TotalAmount   Amount         `json:"totalAmount"`
	VATAmount     Amount         `json:"vatAmount"`
	Supplier      *Party         `json:"supplier"`
	Customer      *Party         `json:"customer"`
	Items         []LineItemData `json:"items"`
	FileName      string         `json:"fileName,omitempty"`
}

// StructuredInvoiceData is normalized invoice data ready for persistence
type StructuredInvoiceData struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          Date            `json:"date"`
	Type          string          `json:"type"`
	Status        InvoiceStatus   `json:"status,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	VATAmount     decimal.Decimal `json:"vatAmount"`
	Supplier      Party           `json:"supplier"`
	Customer      Party           `json:"customer"`
	Items         []LineItemData  `json:"items"`
	FileName      string          `json:"fileName,omitempty"`
}

// Normalize validates required fields and applies defaults.
// Missing invoiceNumber, date or totalAmount is a 422 validation error.
func (in *InvoiceInput) Normalize() (*StructuredInvoiceData, error) {
	if in == nil {
		return nil, apperror.Unprocessable("Missing required fields: invoiceNumber, date, totalAmount", nil)
	}

	var missing []string
	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" {
		missing = append(missing, "invoiceNumber")
	}
	if strings.TrimSpace(in.Date) == "" {
		missing = append(missing, "date")
	}
	if !in.TotalAmount.Valid {
		missing = append(missing, "totalAmount")
	}
	if len(missing) > 0 {
		return nil, apperror.Unprocessable("Missing required fields: "+strings.Join(missing, ", "), nil)
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, apperror.Unprocessable("Invalid invoice date", err)
	}

	if in.Status != "" && !in.Status.Valid() {
		return nil, apperror.Unprocessable("Invalid invoice status", nil)
	}

	data := &StructuredInvoiceData{
		InvoiceNumber: number,
		Date:          date,
		Type:          strings.TrimSpace(in.Type),
		Status:        in.Status,
		TotalAmount:   in.TotalAmount.Decimal,
		VATAmount:     in.VATAmount.Or(decimal.Zero),
		Items:         []LineItemData{},
		FileName:      strings.TrimSpace(in.FileName),
	}
	if data.Type == "" {
		data.Type = DefaultInvoiceType
	}
	if in.Supplier != nil {
		data.Supplier = trimParty(*in.Supplier)
	}
	if in.Customer != nil {
		data.Customer = trimParty(*in.Customer)
	}
	for _, item := range in.Items {
		item.ItemName = strings.TrimSpace(item.ItemName)
		item.ItemCode = strings.TrimSpace(item.ItemCode)
		item.Description = strings.TrimSpace(item.Description)
		data.Items = append(data.Items, item)
	}

	return data, nil
}

// Validate re-checks the required-field invariant on already normalized data
func (d *StructuredInvoiceData) Validate() error {
	if d == nil || d.InvoiceNumber == "" || d.Date.IsZero() {
		return apperror.Unprocessable("Missing required fields: invoiceNumber, date, totalAmount", nil)
	}
	return nil
}

func trimParty(p Party) Party {
	return Party{
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.TrimSpace(p.Email),
		Phone:   strings.TrimSpace(p.Phone),
		Address: strings.TrimSpace(p.Address),
		TaxID:   strings.TrimSpace(p.TaxID),
	}
}
