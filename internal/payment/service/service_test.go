package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telecoop/backoffice/internal/clock"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	invoicerepo "github.com/telecoop/backoffice/internal/invoice/repository"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
	"github.com/telecoop/backoffice/internal/payment/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPaymentTest(t *testing.T) (*gorm.DB, paymentdomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`CREATE TABLE invoices (
		id INTEGER PRIMARY KEY,
		client_id INTEGER NOT NULL,
		reference_number TEXT NOT NULL,
		cycle_month TEXT NOT NULL,
		billing_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		paid_date DATETIME,
		payment_method TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE payments (
		id INTEGER PRIMARY KEY,
		invoice_id INTEGER NOT NULL UNIQUE,
		client_id INTEGER NOT NULL,
		amount_cents INTEGER NOT NULL,
		method TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)),
		Repo:        repository.Provide(),
		InvoiceRepo: invoicerepo.Provide(),
		Metrics:     nil,
	})
	return db, svc
}

func seedPaymentInvoice(t *testing.T, db *gorm.DB, id snowflake.ID, status invoicedomain.InvoiceStatus) {
	t.Helper()
	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	err := db.Exec(
		`INSERT INTO invoices (id, client_id, reference_number, cycle_month, billing_date,
		                       due_date, amount_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, 7, "INV-"+id.String(), "2024-01", now, now.AddDate(0, 1, 0), 2500, status, now, now,
	).Error
	require.NoError(t, err)
}

func TestMarkInvoicePaidSettlesAndRecordsPayment(t *testing.T) {
	db, svc := setupPaymentTest(t)

	seedPaymentInvoice(t, db, 100, invoicedomain.InvoiceStatusOverdue)

	payment, err := svc.MarkInvoicePaid(context.Background(), paymentdomain.MarkInvoicePaidRequest{
		InvoiceID:   "100",
		Method:      "cash",
		PaymentDate: "2024-03-05",
	})
	require.NoError(t, err)

	assert.Equal(t, snowflake.ID(100), payment.InvoiceID)
	assert.Equal(t, snowflake.ID(7), payment.ClientID)
	assert.Equal(t, int64(2500), payment.AmountCents)
	assert.Equal(t, paymentdomain.PaymentMethodCash, payment.Method)

	var invoice invoicedomain.Invoice
	err = db.Raw(`SELECT id, status, payment_method, paid_date FROM invoices WHERE id = 100`).Scan(&invoice).Error
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, invoice.Status)
	require.NotNil(t, invoice.PaidDate)
	assert.Equal(t, "2024-03-05", invoice.PaidDate.UTC().Format("2006-01-02"))

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM payments WHERE invoice_id = 100`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkInvoicePaidRejectsSecondSettle(t *testing.T) {
	db, svc := setupPaymentTest(t)
	ctx := context.Background()

	seedPaymentInvoice(t, db, 100, invoicedomain.InvoiceStatusPending)

	_, err := svc.MarkInvoicePaid(ctx, paymentdomain.MarkInvoicePaidRequest{InvoiceID: "100", Method: "cash"})
	require.NoError(t, err)

	_, err = svc.MarkInvoicePaid(ctx, paymentdomain.MarkInvoicePaidRequest{InvoiceID: "100", Method: "card"})
	assert.ErrorIs(t, err, paymentdomain.ErrAlreadyPaid)

	// The losing attempt must leave no second payment row and keep the
	// original method.
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM payments`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	var method string
	require.NoError(t, db.Raw(`SELECT payment_method FROM invoices WHERE id = 100`).Scan(&method).Error)
	assert.Equal(t, "cash", method)
}

func TestSettleInvoiceGuardIsOneWay(t *testing.T) {
	db, _ := setupPaymentTest(t)
	ctx := context.Background()
	repo := repository.Provide()
	paidDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	// A settled row never matches the guarded UPDATE again, so a request
	// that loses the race sees zero rows affected regardless of what it
	// read before the write.
	seedPaymentInvoice(t, db, 100, invoicedomain.InvoiceStatusPaid)
	updated, err := repo.SettleInvoice(ctx, db, 100, paymentdomain.PaymentMethodCash, paidDate)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	seedPaymentInvoice(t, db, 101, invoicedomain.InvoiceStatusPending)
	updated, err = repo.SettleInvoice(ctx, db, 101, paymentdomain.PaymentMethodCash, paidDate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	// Overdue settles too; only paid is terminal.
	seedPaymentInvoice(t, db, 102, invoicedomain.InvoiceStatusOverdue)
	updated, err = repo.SettleInvoice(ctx, db, 102, paymentdomain.PaymentMethodCard, paidDate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
}

func TestMarkInvoicePaidUnknownInvoice(t *testing.T) {
	_, svc := setupPaymentTest(t)

	_, err := svc.MarkInvoicePaid(context.Background(), paymentdomain.MarkInvoicePaidRequest{InvoiceID: "999", Method: "cash"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvoiceGone)
}
