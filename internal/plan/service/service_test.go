package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telecoop/backoffice/internal/plan/domain"
	"github.com/telecoop/backoffice/internal/plan/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPlanTest(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`CREATE TABLE plans (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		speed_mbps INTEGER NOT NULL,
		price_cents INTEGER NOT NULL,
		description TEXT,
		features TEXT NOT NULL DEFAULT '{}',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE clients (
		id INTEGER PRIMARY KEY,
		plan_id INTEGER NOT NULL,
		status TEXT NOT NULL
	)`).Error
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return db, svc
}

func TestCreatePlanSlugifiesName(t *testing.T) {
	_, svc := setupPlanTest(t)

	plan, err := svc.Create(context.Background(), domain.CreatePlanRequest{
		Name:       "Fibre Max 200",
		SpeedMbps:  200,
		PriceCents: 4000_00,
		Features:   map[string]interface{}{"static_ip": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "fibre-max-200", plan.Slug)
	assert.True(t, plan.IsActive)
	assert.NotZero(t, plan.ID)
}

func TestCreatePlanRejectsDuplicateSlug(t *testing.T) {
	_, svc := setupPlanTest(t)

	_, err := svc.Create(context.Background(), domain.CreatePlanRequest{
		Name: "Confort", SpeedMbps: 50, PriceCents: 2500_00,
	})
	require.NoError(t, err)

	// Different display name, same slug after normalization.
	_, err = svc.Create(context.Background(), domain.CreatePlanRequest{
		Name: "  confort ", SpeedMbps: 100, PriceCents: 3000_00,
	})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)
}

func TestCreatePlanValidation(t *testing.T) {
	_, svc := setupPlanTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreatePlanRequest{Name: "  ", SpeedMbps: 10, PriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreatePlanRequest{Name: "Essentiel", SpeedMbps: 0, PriceCents: 100})
	assert.ErrorIs(t, err, domain.ErrInvalidSpeed)

	_, err = svc.Create(ctx, domain.CreatePlanRequest{Name: "Essentiel", SpeedMbps: 10, PriceCents: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestUpdatePlanAppliesPartialChanges(t *testing.T) {
	_, svc := setupPlanTest(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreatePlanRequest{
		Name: "Essentiel", SpeedMbps: 10, PriceCents: 1500_00, Description: "entry tier",
	})
	require.NoError(t, err)

	newPrice := int64(1800_00)
	inactive := false
	updated, err := svc.Update(ctx, domain.UpdatePlanRequest{
		ID:         created.ID.String(),
		PriceCents: &newPrice,
		IsActive:   &inactive,
	})
	require.NoError(t, err)

	assert.Equal(t, newPrice, updated.PriceCents)
	assert.False(t, updated.IsActive)
	// Untouched fields survive the update.
	assert.Equal(t, "Essentiel", updated.Name)
	assert.Equal(t, 10, updated.SpeedMbps)
	assert.Equal(t, "entry tier", updated.Description)
	// The slug is permanent; renames never move it.
	assert.Equal(t, created.Slug, updated.Slug)
}

func TestUpdatePlanUnknownID(t *testing.T) {
	_, svc := setupPlanTest(t)

	name := "Renamed"
	_, err := svc.Update(context.Background(), domain.UpdatePlanRequest{ID: "123456789", Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPlansCountsActiveSubscribersOnly(t *testing.T) {
	db, svc := setupPlanTest(t)
	ctx := context.Background()

	cheap, err := svc.Create(ctx, domain.CreatePlanRequest{Name: "Essentiel", SpeedMbps: 10, PriceCents: 1500_00})
	require.NoError(t, err)
	premium, err := svc.Create(ctx, domain.CreatePlanRequest{Name: "Fibre Max", SpeedMbps: 200, PriceCents: 4000_00})
	require.NoError(t, err)

	for i, row := range []struct {
		planID snowflake.ID
		status string
	}{
		{premium.ID, "active"},
		{premium.ID, "active"},
		{premium.ID, "inactive"},
		{cheap.ID, "active"},
	} {
		err := db.Exec(`INSERT INTO clients (id, plan_id, status) VALUES (?, ?, ?)`, i+1, row.planID, row.status).Error
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Plans, 2)

	// Ordered by price ascending.
	assert.Equal(t, cheap.ID, resp.Plans[0].ID)
	assert.Equal(t, int64(1), resp.Plans[0].SubscriberCount)
	assert.Equal(t, premium.ID, resp.Plans[1].ID)
	assert.Equal(t, int64(2), resp.Plans[1].SubscriberCount)
}

func TestGetPlanByIDRejectsBadID(t *testing.T) {
	_, svc := setupPlanTest(t)

	_, err := svc.GetByID(context.Background(), domain.GetPlanRequest{ID: "not-a-snowflake"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
