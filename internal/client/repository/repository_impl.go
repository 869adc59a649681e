package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/pkg/db/option"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, account_number, name, email, phone, address, plan_id, napbox_id, port_number,
		                      status, monthly_fee_cents, installation_date, reactivated_at, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.AccountNumber,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.PlanID,
		client.NapboxID,
		client.PortNumber,
		client.Status,
		client.MonthlyFeeCents,
		client.InstallationDate,
		client.ReactivatedAt,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clients
		 SET name = ?, email = ?, phone = ?, address = ?, plan_id = ?, napbox_id = ?, port_number = ?,
		     status = ?, monthly_fee_cents = ?, reactivated_at = ?, updated_at = ?
		 WHERE id = ?`,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.PlanID,
		client.NapboxID,
		client.PortNumber,
		client.Status,
		client.MonthlyFeeCents,
		client.ReactivatedAt,
		client.UpdatedAt,
		client.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_number, name, email, phone, address, plan_id, napbox_id, port_number,
		        status, monthly_fee_cents, installation_date, reactivated_at, metadata, created_at, updated_at
		 FROM clients WHERE id = ?`,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).Model(&domain.Client{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.PlanID != "" {
		stmt = stmt.Where("plan_id = ?", filter.PlanID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		stmt = stmt.Where("name LIKE ? OR account_number LIKE ? OR email LIKE ?", pattern, pattern, pattern)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB) (domain.Stats, error) {
	var stats domain.Stats

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	err := db.WithContext(ctx).Raw(
		`SELECT
		   COUNT(1) AS total_clients,
		   COUNT(1) FILTER (WHERE status = 'active') AS active_clients,
		   COUNT(1) FILTER (WHERE status = 'inactive') AS inactive_clients,
		   COUNT(1) FILTER (WHERE created_at >= ?) AS new_this_month
		 FROM clients`,
		monthStart,
	).Scan(&stats).Error
	if err != nil {
		return domain.Stats{}, err
	}

	var invoiceStats struct {
		PendingInvoices int64 `gorm:"column:pending_invoices"`
		OverdueInvoices int64 `gorm:"column:overdue_invoices"`
		PendingCents    int64 `gorm:"column:pending_cents"`
		OverdueCents    int64 `gorm:"column:overdue_cents"`
	}
	err = db.WithContext(ctx).Raw(
		`SELECT
		   COUNT(1) FILTER (WHERE status = 'pending') AS pending_invoices,
		   COUNT(1) FILTER (WHERE status = 'overdue') AS overdue_invoices,
		   COALESCE(SUM(amount_cents) FILTER (WHERE status = 'pending'), 0) AS pending_cents,
		   COALESCE(SUM(amount_cents) FILTER (WHERE status = 'overdue'), 0) AS overdue_cents
		 FROM invoices`,
	).Scan(&invoiceStats).Error
	if err != nil {
		return domain.Stats{}, err
	}
	stats.PendingInvoices = invoiceStats.PendingInvoices
	stats.OverdueInvoices = invoiceStats.OverdueInvoices
	stats.PendingCents = invoiceStats.PendingCents
	stats.OverdueCents = invoiceStats.OverdueCents

	var collected struct {
		CollectedCents int64 `gorm:"column:collected_cents"`
	}
	err = db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents), 0) AS collected_cents
		 FROM payments
		 WHERE received_at >= ?`,
		now.AddDate(0, 0, -30),
	).Scan(&collected).Error
	if err != nil {
		return domain.Stats{}, err
	}
	stats.CollectedCents30d = collected.CollectedCents

	return stats, nil
}
