package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*InvoiceWithClient, error)
	FindDetail(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InvoiceDetail, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*InvoiceWithClient, error)
}
