package domain

import (
	"context"
	"errors"

	"github.com/telecoop/backoffice/pkg/db/pagination"
)

type ListInvoiceRequest struct {
	PageToken  string
	PageSize   int32
	Status     string
	ClientID   string
	CycleMonth string
}

type ListInvoiceFilter struct {
	Status     InvoiceStatus
	ClientID   string
	CycleMonth string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []InvoiceWithClient `json:"invoices"`
}

type GetInvoiceRequest struct {
	ID string
}

type GetByReferenceRequest struct {
	ReferenceNumber string
}

type Service interface {
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(context.Context, GetInvoiceRequest) (Invoice, error)
	GetByReference(context.Context, GetByReferenceRequest) (InvoiceWithClient, error)
	RenderPDF(context.Context, GetInvoiceRequest) ([]byte, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrNotFound         = errors.New("not_found")
)
