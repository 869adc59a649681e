package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, slug, speed_mbps, price_cents, description, features, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.Slug,
		plan.SpeedMbps,
		plan.PriceCents,
		plan.Description,
		plan.Features,
		plan.IsActive,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plans
		 SET name = ?, speed_mbps = ?, price_cents = ?, description = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		plan.Name,
		plan.SpeedMbps,
		plan.PriceCents,
		plan.Description,
		plan.IsActive,
		plan.UpdatedAt,
		plan.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, speed_mbps, price_cents, description, features, is_active, created_at, updated_at
		 FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, speed_mbps, price_cents, description, features, is_active, created_at, updated_at
		 FROM plans WHERE slug = ?`,
		slug,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) ListWithStats(ctx context.Context, db *gorm.DB) ([]domain.PlanWithStats, error) {
	var plans []domain.PlanWithStats
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.name, p.slug, p.speed_mbps, p.price_cents, p.description, p.features, p.is_active,
		        p.created_at, p.updated_at,
		        COUNT(c.id) AS subscriber_count
		 FROM plans p
		 LEFT JOIN clients c ON c.plan_id = p.id AND c.status = 'active'
		 GROUP BY p.id
		 ORDER BY p.price_cents ASC`,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}
