package domain

import (
	"context"
	"errors"
)

type CreateNapboxRequest struct {
	Code      string
	Location  string
	Latitude  *float64
	Longitude *float64
	PortCount int
	Notes     string
}

type UpdateNapboxRequest struct {
	ID        string
	Location  *string
	Latitude  *float64
	Longitude *float64
	PortCount *int
	Notes     *string
}

type GetNapboxRequest struct {
	ID string
}

type ListNapboxResponse struct {
	Napboxes []NapboxWithOccupancy `json:"napboxes"`
}

type Service interface {
	Create(context.Context, CreateNapboxRequest) (Napbox, error)
	Update(context.Context, UpdateNapboxRequest) (Napbox, error)
	List(context.Context) (ListNapboxResponse, error)
	GetByID(context.Context, GetNapboxRequest) (NapboxDetail, error)
}

var (
	ErrInvalidCode      = errors.New("invalid_code")
	ErrInvalidLocation  = errors.New("invalid_location")
	ErrInvalidPortCount = errors.New("invalid_port_count")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
	ErrCodeTaken        = errors.New("code_taken")
	ErrPortOccupied     = errors.New("port_occupied")
	ErrPortNotFound     = errors.New("port_not_found")
	ErrShrinkOccupied   = errors.New("shrink_would_drop_occupied_ports")
)
