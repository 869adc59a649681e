package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodTransfer    PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
)

// Payment records a settled invoice. One row per paid invoice; the
// invoice's pending/overdue → paid flip and this insert share a transaction.
type Payment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID  `gorm:"not null;uniqueIndex" json:"invoice_id"`
	ClientID    snowflake.ID  `gorm:"not null;index" json:"client_id"`
	AmountCents int64         `gorm:"not null" json:"amount_cents"`
	Method      PaymentMethod `gorm:"not null" json:"method"`
	PaymentDate time.Time     `gorm:"not null;index" json:"payment_date"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// PaymentWithInvoice joins display fields for the payment-history view.
type PaymentWithInvoice struct {
	Payment
	ReferenceNumber string `gorm:"column:reference_number" json:"reference_number"`
	CycleMonth      string `gorm:"column:cycle_month" json:"cycle_month"`
	ClientName      string `gorm:"column:client_name" json:"client_name"`
	AccountNumber   string `gorm:"column:account_number" json:"account_number"`
}

// MonthlyRevenue aggregates collected amounts per cycle month.
type MonthlyRevenue struct {
	Month          string `gorm:"column:month" json:"month"`
	CollectedCents int64  `gorm:"column:collected_cents" json:"collected_cents"`
	PaymentCount   int64  `gorm:"column:payment_count" json:"payment_count"`
}
