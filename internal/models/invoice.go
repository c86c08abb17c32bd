package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks an invoice through processing
type InvoiceStatus string

// Invoice status constants
const (
	StatusPending    InvoiceStatus = "pending"
	StatusProcessing InvoiceStatus = "processing"
	StatusReady      InvoiceStatus = "ready"
	StatusCompleted  InvoiceStatus = "completed"
	StatusFailed     InvoiceStatus = "failed"
)

// Valid reports whether s is one of the known statuses
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether processing has finished for this status
func (s InvoiceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultInvoiceType is used when the document does not state one
const DefaultInvoiceType = "standard"

// Invoice is a persisted invoice with its relations
type Invoice struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	FileName      string          `json:"fileName"`
	Status        InvoiceStatus   `json:"status"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          *Date           `json:"date"`
	Type          string          `json:"type"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	VATAmount     decimal.Decimal `json:"vatAmount"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	SupplierID    *string         `json:"supplierId"`
	CustomerID    *string         `json:"customerId"`
	Supplier      *Supplier       `json:"supplier"`
	Customer      *Customer       `json:"customer"`
	Items         []LineItem      `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Supplier is shared between invoices and reused by unique name
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	TaxID     string    `json:"taxId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Customer is owned by exactly one invoice
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// LineItem is one invoice line, stored in document order
type LineItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	Position    int             `json:"position"`
	ItemName    string          `json:"itemName"`
	ItemCode    string          `json:"itemCode"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// User owns invoices
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
