package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/telecoop/backoffice/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePlanRequest) (domain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Plan{}, domain.ErrInvalidName
	}
	if req.SpeedMbps <= 0 {
		return domain.Plan{}, domain.ErrInvalidSpeed
	}
	if req.PriceCents <= 0 {
		return domain.Plan{}, domain.ErrInvalidPrice
	}

	planSlug := slug.Make(name)
	existing, err := s.repo.FindBySlug(ctx, s.db, planSlug)
	if err != nil {
		return domain.Plan{}, err
	}
	if existing != nil {
		return domain.Plan{}, domain.ErrSlugTaken
	}

	features := datatypes.JSONMap{}
	for key, value := range req.Features {
		features[key] = value
	}

	now := time.Now().UTC()
	plan := domain.Plan{
		ID:          s.genID.Generate(),
		Name:        name,
		Slug:        planSlug,
		SpeedMbps:   req.SpeedMbps,
		PriceCents:  req.PriceCents,
		Description: strings.TrimSpace(req.Description),
		Features:    features,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		return domain.Plan{}, err
	}

	return plan, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePlanRequest) (domain.Plan, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Plan{}, err
	}

	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Plan{}, err
	}
	if plan == nil {
		return domain.Plan{}, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Plan{}, domain.ErrInvalidName
		}
		plan.Name = name
	}
	if req.SpeedMbps != nil {
		if *req.SpeedMbps <= 0 {
			return domain.Plan{}, domain.ErrInvalidSpeed
		}
		plan.SpeedMbps = *req.SpeedMbps
	}
	if req.PriceCents != nil {
		if *req.PriceCents <= 0 {
			return domain.Plan{}, domain.ErrInvalidPrice
		}
		plan.PriceCents = *req.PriceCents
	}
	if req.Description != nil {
		plan.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	plan.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, plan); err != nil {
		return domain.Plan{}, err
	}

	return *plan, nil
}

func (s *Service) List(ctx context.Context) (domain.ListPlanResponse, error) {
	plans, err := s.repo.ListWithStats(ctx, s.db)
	if err != nil {
		return domain.ListPlanResponse{}, err
	}
	return domain.ListPlanResponse{Plans: plans}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetPlanRequest) (domain.Plan, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Plan{}, err
	}

	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Plan{}, err
	}
	if plan == nil {
		return domain.Plan{}, domain.ErrNotFound
	}

	return *plan, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
