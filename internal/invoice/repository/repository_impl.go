package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/invoice/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT id, client_id, reference_number, cycle_month, billing_date, due_date, amount_cents,
		        status, paid_date, payment_method, created_at, updated_at
		 FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.InvoiceWithClient, error) {
	var invoice domain.InvoiceWithClient
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.client_id, i.reference_number, i.cycle_month, i.billing_date, i.due_date,
		        i.amount_cents, i.status, i.paid_date, i.payment_method, i.created_at, i.updated_at,
		        c.name AS client_name, c.account_number
		 FROM invoices i
		 JOIN clients c ON c.id = i.client_id
		 WHERE i.reference_number = ?`,
		reference,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindDetail(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.InvoiceDetail, error) {
	var detail domain.InvoiceDetail
	err := db.WithContext(ctx).Raw(
		`SELECT i.id, i.client_id, i.reference_number, i.cycle_month, i.billing_date, i.due_date,
		        i.amount_cents, i.status, i.paid_date, i.payment_method, i.created_at, i.updated_at,
		        c.name AS client_name, c.account_number, c.address AS client_address,
		        p.name AS plan_name
		 FROM invoices i
		 JOIN clients c ON c.id = i.client_id
		 JOIN plans p ON p.id = c.plan_id
		 WHERE i.id = ?`,
		id,
	).Scan(&detail).Error
	if err != nil {
		return nil, err
	}
	if detail.ID == 0 {
		return nil, nil
	}
	return &detail, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.InvoiceWithClient, error) {
	var invoices []*domain.InvoiceWithClient
	stmt := db.WithContext(ctx).
		Table("invoices").
		Select(`invoices.id, invoices.client_id, invoices.reference_number, invoices.cycle_month,
		        invoices.billing_date, invoices.due_date, invoices.amount_cents, invoices.status,
		        invoices.paid_date, invoices.payment_method, invoices.created_at, invoices.updated_at,
		        clients.name AS client_name, clients.account_number`).
		Joins("JOIN clients ON clients.id = invoices.client_id")
	if filter.Status != "" {
		stmt = stmt.Where("invoices.status = ?", filter.Status)
	}
	if filter.ClientID != "" {
		stmt = stmt.Where("invoices.client_id = ?", filter.ClientID)
	}
	if filter.CycleMonth != "" {
		stmt = stmt.Where("invoices.cycle_month = ?", filter.CycleMonth)
	}
	stmt = applyInvoiceCursor(stmt, page)
	err := stmt.
		Order("invoices.created_at desc, invoices.id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// applyInvoiceCursor qualifies the keyset columns with the table name since
// the list query joins clients, which carries its own created_at.
func applyInvoiceCursor(stmt *gorm.DB, page pagination.Pagination) *gorm.DB {
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
					"(invoices.created_at < ?) OR (invoices.created_at = ? AND invoices.id < ?)",
					createdAt, createdAt, cursor.ID,
				)
			}
		}
	}
	return stmt.Limit(size + 1)
}
