package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/payment/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, invoice_id, client_id, amount_cents, method, payment_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		payment.ClientID,
		payment.AmountCents,
		payment.Method,
		payment.PaymentDate,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) SettleInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, method domain.PaymentMethod, paidDate time.Time) (int64, error) {
	// The status guard keeps this a one-way transition: a paid invoice is
	// never re-settled even under concurrent requests.
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'paid', paid_date = ?, payment_method = ?, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'overdue')`,
		paidDate,
		method,
		time.Now().UTC(),
		invoiceID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Pagination) ([]*domain.PaymentWithInvoice, error) {
	var payments []*domain.PaymentWithInvoice
	stmt := db.WithContext(ctx).
		Table("payments").
		Select(`payments.id, payments.invoice_id, payments.client_id, payments.amount_cents,
		        payments.method, payments.payment_date, payments.created_at, payments.updated_at,
		        invoices.reference_number, invoices.cycle_month,
		        clients.name AS client_name, clients.account_number`).
		Joins("JOIN invoices ON invoices.id = payments.invoice_id").
		Joins("JOIN clients ON clients.id = payments.client_id")
	if filter.ClientID != "" {
		stmt = stmt.Where("payments.client_id = ?", filter.ClientID)
	}
	if filter.Method != "" {
		stmt = stmt.Where("payments.method = ?", filter.Method)
	}
	stmt = applyPaymentCursor(stmt, page)
	err := stmt.
		Order("payments.created_at desc, payments.id desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) MonthlyRevenue(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.MonthlyRevenue, error) {
	var rows []domain.MonthlyRevenue
	err := db.WithContext(ctx).Raw(
		`SELECT i.cycle_month AS month,
		        COALESCE(SUM(p.amount_cents), 0) AS collected_cents,
		        COUNT(p.id) AS payment_count
		 FROM payments p
		 JOIN invoices i ON i.id = p.invoice_id
		 WHERE p.payment_date >= ?
		 GROUP BY i.cycle_month
		 ORDER BY i.cycle_month DESC`,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// applyPaymentCursor mirrors the invoice list cursor: the join pulls in
// tables with their own created_at, so the keyset columns stay qualified.
func applyPaymentCursor(stmt *gorm.DB, page pagination.Pagination) *gorm.DB {
	size := page.PageSize
	if size <= 0 {
		size = 10
	}
	if size > 250 {
		size = 250
	}
	if token := strings.TrimSpace(page.PageToken); token != "" {
		if cursor, err := pagination.DecodeCursor(token); err == nil && cursor != nil {
			if createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt); err == nil {
				stmt = stmt.Where(
					"(payments.created_at < ?) OR (payments.created_at = ? AND payments.id < ?)",
					createdAt, createdAt, cursor.ID,
				)
			}
		}
	}
	return stmt.Limit(size + 1)
}
