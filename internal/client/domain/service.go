package domain

import (
	"context"
	"errors"
	"time"

	"github.com/telecoop/backoffice/pkg/db/pagination"
)

type CreateClientRequest struct {
	Name             string
	Email            string
	Phone            string
	Address          string
	PlanID           string
	NapboxID         string
	PortNumber       *int
	InstallationDate *time.Time
}

type UpdateClientRequest struct {
	ID         string
	Name       *string
	Email      *string
	Phone      *string
	Address    *string
	PlanID     *string
	NapboxID   *string
	PortNumber *int
	Status     *ClientStatus
}

type ListClientRequest struct {
	PageToken string
	PageSize  int32
	Status    string
	PlanID    string
	Search    string
}

type ListClientFilter struct {
	Status ClientStatus
	PlanID string
	Search string
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type GetClientRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	Update(context.Context, UpdateClientRequest) (Client, error)
	List(context.Context, ListClientRequest) (ListClientResponse, error)
	GetByID(context.Context, GetClientRequest) (Client, error)
	Stats(context.Context) (Stats, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidPlan   = errors.New("invalid_plan")
	ErrInvalidNapbox = errors.New("invalid_napbox")
	ErrInvalidPort   = errors.New("invalid_port")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
)
