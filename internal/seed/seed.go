// Package seed bootstraps a fresh database so a self-hosted deployment is
// usable immediately after first start.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/telecoop/backoffice/internal/auth/domain"
	"github.com/telecoop/backoffice/internal/auth/password"
	"github.com/telecoop/backoffice/internal/config"
	plandomain "github.com/telecoop/backoffice/internal/plan/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultAdminDisplay = "Telecoop Admin"

type defaultPlan struct {
	name       string
	slug       string
	speedMbps  int
	priceCents int64
}

var defaultPlans = []defaultPlan{
	{name: "Essentiel", slug: "essentiel", speedMbps: 10, priceCents: 1500_00},
	{name: "Confort", slug: "confort", speedMbps: 50, priceCents: 2500_00},
	{name: "Fibre Max", slug: "fibre-max", speedMbps: 200, priceCents: 4000_00},
}

// EnsureAdminUser creates the bootstrap admin account when no user exists
// with the configured email. The seeded account keeps is_default until the
// password is rotated.
func EnsureAdminUser(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email := strings.ToLower(strings.TrimSpace(cfg.Bootstrap.AdminEmail))
	if email == "" {
		return errors.New("bootstrap admin email is empty")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user authdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := password.Hash(cfg.Bootstrap.AdminPassword)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user = authdomain.User{
			ID:           node.Generate(),
			Email:        email,
			DisplayName:  defaultAdminDisplay,
			PasswordHash: &hashed,
			Role:         authdomain.RoleAdmin,
			IsDefault:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}

// EnsureDefaultPlans seeds the starter plan catalog on an empty plans table.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&plandomain.Plan{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, p := range defaultPlans {
			plan := plandomain.Plan{
				ID:         node.Generate(),
				Name:       p.name,
				Slug:       p.slug,
				SpeedMbps:  p.speedMbps,
				PriceCents: p.priceCents,
				Features:   datatypes.JSONMap{},
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
