package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Invoice is one billing cycle charge for a client. CycleMonth is the
// "YYYY-MM" of the billing date; the (client_id, cycle_month) unique index
// makes cycle generation idempotent at the store level.
type Invoice struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	ClientID        snowflake.ID  `gorm:"not null;index" json:"client_id"`
	ReferenceNumber string        `gorm:"not null;uniqueIndex" json:"reference_number"`
	CycleMonth      string        `gorm:"not null" json:"cycle_month"`
	BillingDate     time.Time     `gorm:"not null" json:"billing_date"`
	DueDate         time.Time     `gorm:"not null;index" json:"due_date"`
	AmountCents     int64         `gorm:"not null" json:"amount_cents"`
	Status          InvoiceStatus `gorm:"not null;default:'pending';index" json:"status"`
	PaidDate        *time.Time    `json:"paid_date,omitempty"`
	PaymentMethod   *string       `json:"payment_method,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// InvoiceWithClient joins the invoice with display fields for list views.
type InvoiceWithClient struct {
	Invoice
	ClientName    string `gorm:"column:client_name" json:"client_name"`
	AccountNumber string `gorm:"column:account_number" json:"account_number"`
}

// InvoiceDetail carries everything the PDF rendering needs.
type InvoiceDetail struct {
	Invoice
	ClientName    string `gorm:"column:client_name" json:"client_name"`
	AccountNumber string `gorm:"column:account_number" json:"account_number"`
	ClientAddress string `gorm:"column:client_address" json:"client_address"`
	PlanName      string `gorm:"column:plan_name" json:"plan_name"`
}
