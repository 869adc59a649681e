package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/config"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	"github.com/telecoop/backoffice/internal/providers/pdf"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg  config.Config
	DB   *gorm.DB
	Log  *zap.Logger
	Repo invoicedomain.Repository
	PDF  pdf.Provider
}

type Service struct {
	cfg  config.Config
	db   *gorm.DB
	log  *zap.Logger
	repo invoicedomain.Repository
	pdf  pdf.Provider
}

func New(p Params) invoicedomain.Service {
	return &Service{
		cfg:  p.Cfg,
		db:   p.DB,
		log:  p.Log.Named("invoice.service"),
		repo: p.Repo,
		pdf:  p.PDF,
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListInvoiceFilter{
		ClientID:   strings.TrimSpace(req.ClientID),
		CycleMonth: strings.TrimSpace(req.CycleMonth),
	}
	switch status := strings.TrimSpace(req.Status); status {
	case "":
	case string(invoicedomain.InvoiceStatusPending),
		string(invoicedomain.InvoiceStatusPaid),
		string(invoicedomain.InvoiceStatusOverdue):
		filter.Status = invoicedomain.InvoiceStatus(status)
	default:
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *invoicedomain.InvoiceWithClient) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]invoicedomain.InvoiceWithClient, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req invoicedomain.GetInvoiceRequest) (invoicedomain.Invoice, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	return *invoice, nil
}

func (s *Service) GetByReference(ctx context.Context, req invoicedomain.GetByReferenceRequest) (invoicedomain.InvoiceWithClient, error) {
	reference := strings.TrimSpace(req.ReferenceNumber)
	if reference == "" {
		return invoicedomain.InvoiceWithClient{}, invoicedomain.ErrInvalidReference
	}

	invoice, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return invoicedomain.InvoiceWithClient{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceWithClient{}, invoicedomain.ErrNotFound
	}

	return *invoice, nil
}

func (s *Service) RenderPDF(ctx context.Context, req invoicedomain.GetInvoiceRequest) ([]byte, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return nil, invoicedomain.ErrInvalidID
	}

	detail, err := s.repo.FindDetail(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, invoicedomain.ErrNotFound
	}

	reader, err := s.pdf.GenerateInvoice(ctx, pdf.InvoiceData{
		CoopName:    s.cfg.Coop.Name,
		CoopAddress: s.cfg.Coop.Address,
		CoopEmail:   s.cfg.Coop.Email,

		ReferenceNumber: detail.ReferenceNumber,
		BillingDate:     detail.BillingDate.Format("2006-01-02"),
		DueDate:         detail.DueDate.Format("2006-01-02"),
		CycleMonth:      detail.CycleMonth,
		Status:          string(detail.Status),

		ClientName:    detail.ClientName,
		AccountNumber: detail.AccountNumber,
		ClientAddress: detail.ClientAddress,
		PlanName:      detail.PlanName,

		AmountDue: FormatCents(detail.AmountCents),
	})
	if err != nil {
		s.log.Error("invoice.pdf.generate_failed",
			zap.String("invoice_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return io.ReadAll(reader)
}

// FormatCents renders an integer cent amount as a display string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d €", sign, cents/100, cents%100)
}
