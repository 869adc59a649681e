package domain

import (
	"context"
	"errors"
)

type CreatePlanRequest struct {
	Name        string
	SpeedMbps   int
	PriceCents  int64
	Description string
	Features    map[string]interface{}
}

type UpdatePlanRequest struct {
	ID          string
	Name        *string
	SpeedMbps   *int
	PriceCents  *int64
	Description *string
	IsActive    *bool
}

type GetPlanRequest struct {
	ID string
}

type ListPlanResponse struct {
	Plans []PlanWithStats `json:"plans"`
}

type Service interface {
	Create(context.Context, CreatePlanRequest) (Plan, error)
	Update(context.Context, UpdatePlanRequest) (Plan, error)
	List(context.Context) (ListPlanResponse, error)
	GetByID(context.Context, GetPlanRequest) (Plan, error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidSpeed = errors.New("invalid_speed")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
	ErrSlugTaken    = errors.New("slug_taken")
)
