package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	// SettleInvoice flips a pending or overdue invoice to paid. Returns the
	// number of rows updated so callers can distinguish already-paid from
	// missing invoices.
	SettleInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, method PaymentMethod, paidDate time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListPaymentFilter, page pagination.Pagination) ([]*PaymentWithInvoice, error)
	MonthlyRevenue(ctx context.Context, db *gorm.DB, since time.Time) ([]MonthlyRevenue, error)
}
