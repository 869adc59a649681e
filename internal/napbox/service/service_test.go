package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telecoop/backoffice/internal/napbox/domain"
	"github.com/telecoop/backoffice/internal/napbox/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupNapboxTest(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec(`CREATE TABLE napboxes (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		port_count INTEGER NOT NULL,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE napbox_ports (
		id INTEGER PRIMARY KEY,
		napbox_id INTEGER NOT NULL,
		port_number INTEGER NOT NULL,
		client_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (napbox_id, port_number)
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

func occupyPort(t *testing.T, db *gorm.DB, napboxID snowflake.ID, portNumber int, clientID snowflake.ID) {
	t.Helper()
	res := db.Exec(
		`UPDATE napbox_ports SET client_id = ? WHERE napbox_id = ? AND port_number = ?`,
		clientID, napboxID, portNumber,
	)
	require.NoError(t, res.Error)
	require.Equal(t, int64(1), res.RowsAffected)
}

func countPorts(t *testing.T, db *gorm.DB, napboxID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM napbox_ports WHERE napbox_id = ?`, napboxID).Scan(&count).Error)
	return count
}

func TestCreateNapboxProvisionsPorts(t *testing.T) {
	db, svc := setupNapboxTest(t)

	box, err := svc.Create(context.Background(), domain.CreateNapboxRequest{
		Code:      "nap-dkr-01",
		Location:  "Dakar, Parcelles U12",
		PortCount: 8,
	})
	require.NoError(t, err)

	assert.Equal(t, "NAP-DKR-01", box.Code)
	assert.Equal(t, int64(8), countPorts(t, db, box.ID))

	detail, err := svc.GetByID(context.Background(), domain.GetNapboxRequest{ID: box.ID.String()})
	require.NoError(t, err)
	require.Len(t, detail.Ports, 8)
	for i, port := range detail.Ports {
		assert.Equal(t, i+1, port.PortNumber)
		assert.Nil(t, port.ClientID)
	}
}

func TestCreateNapboxRejectsDuplicateCode(t *testing.T) {
	_, svc := setupNapboxTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateNapboxRequest{Code: "NAP-01", Location: "Thiès", PortCount: 4})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateNapboxRequest{Code: " nap-01 ", Location: "Thiès Nord", PortCount: 4})
	assert.ErrorIs(t, err, domain.ErrCodeTaken)
}

func TestUpdateNapboxGrowsPortMap(t *testing.T) {
	db, svc := setupNapboxTest(t)
	ctx := context.Background()

	box, err := svc.Create(ctx, domain.CreateNapboxRequest{Code: "NAP-01", Location: "Thiès", PortCount: 4})
	require.NoError(t, err)

	grown := 8
	updated, err := svc.Update(ctx, domain.UpdateNapboxRequest{ID: box.ID.String(), PortCount: &grown})
	require.NoError(t, err)

	assert.Equal(t, 8, updated.PortCount)
	assert.Equal(t, int64(8), countPorts(t, db, box.ID))
}

func TestUpdateNapboxRefusesShrinkOverOccupiedPort(t *testing.T) {
	db, svc := setupNapboxTest(t)
	ctx := context.Background()

	box, err := svc.Create(ctx, domain.CreateNapboxRequest{Code: "NAP-01", Location: "Thiès", PortCount: 8})
	require.NoError(t, err)
	occupyPort(t, db, box.ID, 7, 42)

	// Port 7 is occupied; trimming to 4 would cut a live subscriber.
	shrunk := 4
	_, err = svc.Update(ctx, domain.UpdateNapboxRequest{ID: box.ID.String(), PortCount: &shrunk})
	assert.ErrorIs(t, err, domain.ErrShrinkOccupied)

	// The refused shrink must leave the box and its port map untouched.
	assert.Equal(t, int64(8), countPorts(t, db, box.ID))
	detail, err := svc.GetByID(ctx, domain.GetNapboxRequest{ID: box.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 8, detail.PortCount)
}

func TestUpdateNapboxShrinksBelowHighestFreePort(t *testing.T) {
	db, svc := setupNapboxTest(t)
	ctx := context.Background()

	box, err := svc.Create(ctx, domain.CreateNapboxRequest{Code: "NAP-01", Location: "Thiès", PortCount: 8})
	require.NoError(t, err)
	occupyPort(t, db, box.ID, 3, 42)

	// The highest occupied port is 3, so trimming to 4 is safe and drops
	// ports 5..8.
	shrunk := 4
	updated, err := svc.Update(ctx, domain.UpdateNapboxRequest{ID: box.ID.String(), PortCount: &shrunk})
	require.NoError(t, err)

	assert.Equal(t, 4, updated.PortCount)
	assert.Equal(t, int64(4), countPorts(t, db, box.ID))

	detail, err := svc.GetByID(ctx, domain.GetNapboxRequest{ID: box.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, detail.Ports[2].ClientID)
	assert.Equal(t, snowflake.ID(42), *detail.Ports[2].ClientID)
}
