package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/napbox/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, box *domain.Napbox) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO napboxes (id, code, location, latitude, longitude, port_count, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		box.ID,
		box.Code,
		box.Location,
		box.Latitude,
		box.Longitude,
		box.PortCount,
		box.Notes,
		box.CreatedAt,
		box.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, box *domain.Napbox) error {
	return db.WithContext(ctx).Exec(
		`UPDATE napboxes
		 SET location = ?, latitude = ?, longitude = ?, port_count = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		box.Location,
		box.Latitude,
		box.Longitude,
		box.PortCount,
		box.Notes,
		box.UpdatedAt,
		box.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Napbox, error) {
	var box domain.Napbox
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, location, latitude, longitude, port_count, notes, created_at, updated_at
		 FROM napboxes WHERE id = ?`,
		id,
	).Scan(&box).Error
	if err != nil {
		return nil, err
	}
	if box.ID == 0 {
		return nil, nil
	}
	return &box, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Napbox, error) {
	var box domain.Napbox
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, location, latitude, longitude, port_count, notes, created_at, updated_at
		 FROM napboxes WHERE code = ?`,
		code,
	).Scan(&box).Error
	if err != nil {
		return nil, err
	}
	if box.ID == 0 {
		return nil, nil
	}
	return &box, nil
}

func (r *repo) ListWithOccupancy(ctx context.Context, db *gorm.DB) ([]domain.NapboxWithOccupancy, error) {
	var boxes []domain.NapboxWithOccupancy
	err := db.WithContext(ctx).Raw(
		`SELECT n.id, n.code, n.location, n.latitude, n.longitude, n.port_count, n.notes,
		        n.created_at, n.updated_at,
		        COUNT(p.id) FILTER (WHERE p.client_id IS NOT NULL) AS used_ports
		 FROM napboxes n
		 LEFT JOIN napbox_ports p ON p.napbox_id = n.id
		 GROUP BY n.id
		 ORDER BY n.code ASC`,
	).Scan(&boxes).Error
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

func (r *repo) InsertPorts(ctx context.Context, db *gorm.DB, ports []domain.NapboxPort) error {
	if len(ports) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&ports).Error
}

func (r *repo) ListPorts(ctx context.Context, db *gorm.DB, napboxID snowflake.ID) ([]domain.NapboxPort, error) {
	var ports []domain.NapboxPort
	err := db.WithContext(ctx).Raw(
		`SELECT id, napbox_id, port_number, client_id, created_at, updated_at
		 FROM napbox_ports WHERE napbox_id = ?
		 ORDER BY port_number ASC`,
		napboxID,
	).Scan(&ports).Error
	if err != nil {
		return nil, err
	}
	return ports, nil
}

func (r *repo) MaxOccupiedPort(ctx context.Context, db *gorm.DB, napboxID snowflake.ID) (int, error) {
	var row struct {
		MaxPort *int `gorm:"column:max_port"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT MAX(port_number) AS max_port
		 FROM napbox_ports
		 WHERE napbox_id = ? AND client_id IS NOT NULL`,
		napboxID,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if row.MaxPort == nil {
		return 0, nil
	}
	return *row.MaxPort, nil
}

func (r *repo) DeletePortsAbove(ctx context.Context, db *gorm.DB, napboxID snowflake.ID, portNumber int) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM napbox_ports WHERE napbox_id = ? AND port_number > ?`,
		napboxID,
		portNumber,
	).Error
}

// AssignPort claims a free port. The client_id IS NULL guard makes the claim
// race-safe without an explicit row lock.
func (r *repo) AssignPort(ctx context.Context, db *gorm.DB, napboxID snowflake.ID, portNumber int, clientID snowflake.ID) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE napbox_ports
		 SET client_id = ?, updated_at = ?
		 WHERE napbox_id = ? AND port_number = ? AND client_id IS NULL`,
		clientID,
		time.Now().UTC(),
		napboxID,
		portNumber,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM napbox_ports WHERE napbox_id = ? AND port_number = ?`,
		napboxID,
		portNumber,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrPortNotFound
	}
	return domain.ErrPortOccupied
}

func (r *repo) ReleasePortByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE napbox_ports
		 SET client_id = NULL, updated_at = ?
		 WHERE client_id = ?`,
		time.Now().UTC(),
		clientID,
	).Error
}
