package domain

import (
	"context"
	"errors"

	"github.com/telecoop/backoffice/pkg/db/pagination"
)

type MarkInvoicePaidRequest struct {
	InvoiceID   string
	Method      string
	PaymentDate string // "2006-01-02", defaults to today when empty
}

type ListPaymentRequest struct {
	PageToken string
	PageSize  int32
	ClientID  string
	Method    string
}

type ListPaymentFilter struct {
	ClientID string
	Method   PaymentMethod
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []PaymentWithInvoice `json:"payments"`
}

type RevenueRequest struct {
	Months int // trailing months to report, defaults to 12
}

type Service interface {
	MarkInvoicePaid(context.Context, MarkInvoicePaidRequest) (Payment, error)
	List(context.Context, ListPaymentRequest) (ListPaymentResponse, error)
	Revenue(context.Context, RevenueRequest) ([]MonthlyRevenue, error)
}

var (
	ErrInvalidInvoice = errors.New("invalid_invoice")
	ErrInvalidMethod  = errors.New("invalid_method")
	ErrInvalidDate    = errors.New("invalid_date")
	ErrInvoiceGone    = errors.New("invoice_not_found")
	ErrAlreadyPaid    = errors.New("invoice_already_paid")
)
