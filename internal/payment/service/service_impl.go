package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/clock"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	"github.com/telecoop/backoffice/internal/observability/metrics"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Metrics     *metrics.Metrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	metrics     *metrics.Metrics
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) MarkInvoicePaid(ctx context.Context, req paymentdomain.MarkInvoicePaidRequest) (paymentdomain.Payment, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil || invoiceID == 0 {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidInvoice
	}

	method := paymentdomain.PaymentMethod(strings.TrimSpace(req.Method))
	switch method {
	case paymentdomain.PaymentMethodCash,
		paymentdomain.PaymentMethodTransfer,
		paymentdomain.PaymentMethodMobileMoney,
		paymentdomain.PaymentMethodCard:
	default:
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}

	now := s.clock.Now()
	paymentDate := now
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidDate
		}
		paymentDate = parsed.UTC()
	}

	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		InvoiceID:   invoiceID,
		Method:      method,
		PaymentDate: paymentDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByID(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return paymentdomain.ErrInvoiceGone
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return paymentdomain.ErrAlreadyPaid
		}

		updated, err := s.repo.SettleInvoice(ctx, tx, invoiceID, method, paymentDate)
		if err != nil {
			return err
		}
		if updated == 0 {
			// Lost the race to another settle.
			return paymentdomain.ErrAlreadyPaid
		}

		payment.ClientID = invoice.ClientID
		payment.AmountCents = invoice.AmountCents
		return s.repo.Insert(ctx, tx, payment)
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.metrics.RecordPaymentMarked(ctx, string(method))
	s.log.Info("payment.recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("method", string(method)),
		zap.Int64("amount_cents", payment.AmountCents),
	)

	return *payment, nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListPaymentRequest) (paymentdomain.ListPaymentResponse, error) {
	filter := paymentdomain.ListPaymentFilter{
		ClientID: strings.TrimSpace(req.ClientID),
	}
	switch method := strings.TrimSpace(req.Method); method {
	case "":
	case string(paymentdomain.PaymentMethodCash),
		string(paymentdomain.PaymentMethodTransfer),
		string(paymentdomain.PaymentMethodMobileMoney),
		string(paymentdomain.PaymentMethodCard):
		filter.Method = paymentdomain.PaymentMethod(method)
	default:
		return paymentdomain.ListPaymentResponse{}, paymentdomain.ErrInvalidMethod
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
		return paymentdomain.ListPaymentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(payment *paymentdomain.PaymentWithInvoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        payment.ID.String(),
			CreatedAt: payment.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	payments := make([]paymentdomain.PaymentWithInvoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}

	resp := paymentdomain.ListPaymentResponse{Payments: payments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Revenue(ctx context.Context, req paymentdomain.RevenueRequest) ([]paymentdomain.MonthlyRevenue, error) {
	months := req.Months
	if months <= 0 {
		months = 12
	}
	if months > 36 {
		months = 36
	}

	now := s.clock.Now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	return s.repo.MonthlyRevenue(ctx, s.db, since)
}
