package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, box *Napbox) error
	Update(ctx context.Context, db *gorm.DB, box *Napbox) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Napbox, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Napbox, error)
	ListWithOccupancy(ctx context.Context, db *gorm.DB) ([]NapboxWithOccupancy, error)

	InsertPorts(ctx context.Context, db *gorm.DB, ports []NapboxPort) error
	ListPorts(ctx context.Context, db *gorm.DB, napboxID snowflake.ID) ([]NapboxPort, error)
	MaxOccupiedPort(ctx context.Context, db *gorm.DB, napboxID snowflake.ID) (int, error)
	DeletePortsAbove(ctx context.Context, db *gorm.DB, napboxID snowflake.ID, portNumber int) error
	AssignPort(ctx context.Context, db *gorm.DB, napboxID snowflake.ID, portNumber int, clientID snowflake.ID) error
	ReleasePortByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) error
}
