package billing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
)

// fetchActiveClients pages through active clients by id keyset so a tick
// never loads the whole client base at once.
func (e *Engine) fetchActiveClients(ctx context.Context, afterID snowflake.ID, limit int) ([]clientdomain.Client, error) {
	var clients []clientdomain.Client
	err := e.db.WithContext(ctx).Raw(
		`SELECT id, account_number, name, plan_id, status, monthly_fee_cents,
		        installation_date, reactivated_at, created_at, updated_at
		 FROM clients
		 WHERE status = ? AND id > ?
		 ORDER BY id
		 LIMIT ?`,
		clientdomain.ClientStatusActive,
		afterID,
		limit,
	).Scan(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// fetchLastInvoice returns the client's most recent invoice by billing
// date, or nil when the client has none.
func (e *Engine) fetchLastInvoice(ctx context.Context, clientID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := e.db.WithContext(ctx).Raw(
		`SELECT id, client_id, reference_number, cycle_month, billing_date, due_date,
		        amount_cents, status, paid_date, payment_method, created_at, updated_at
		 FROM invoices
		 WHERE client_id = ?
		 ORDER BY billing_date DESC, id DESC
		 LIMIT 1`,
		clientID,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

// fetchPendingInvoices returns every still-pending invoice of the client,
// oldest due date first.
func (e *Engine) fetchPendingInvoices(ctx context.Context, clientID snowflake.ID) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := e.db.WithContext(ctx).Raw(
		`SELECT id, client_id, reference_number, cycle_month, billing_date, due_date,
		        amount_cents, status, paid_date, payment_method, created_at, updated_at
		 FROM invoices
		 WHERE client_id = ? AND status = ?
		 ORDER BY due_date, id`,
		clientID,
		invoicedomain.InvoiceStatusPending,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (e *Engine) insertInvoice(ctx context.Context, invoice *invoicedomain.Invoice) error {
	return e.db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, client_id, reference_number, cycle_month, billing_date,
		                       due_date, amount_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.ClientID,
		invoice.ReferenceNumber,
		invoice.CycleMonth,
		invoice.BillingDate,
		invoice.DueDate,
		invoice.AmountCents,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

// markOverdue flips one pending invoice to overdue. The status guard
// re-verifies pending at write time so a payment recorded between read and
// write is never clobbered.
func (e *Engine) markOverdue(ctx context.Context, invoiceID snowflake.ID, now time.Time) (bool, error) {
	res := e.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		invoicedomain.InvoiceStatusOverdue,
		now,
		invoiceID,
		invoicedomain.InvoiceStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
