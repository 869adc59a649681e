package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan is a subscription offer: a speed tier with a flat monthly fee.
type Plan struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null" json:"name"`
	Slug        string            `gorm:"not null;uniqueIndex" json:"slug"`
	SpeedMbps   int               `gorm:"not null" json:"speed_mbps"`
	PriceCents  int64             `gorm:"not null" json:"price_cents"`
	Description string            `json:"description,omitempty"`
	Features    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"features,omitempty"`
	IsActive    bool              `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// PlanWithStats is a plan joined with its subscriber count.
type PlanWithStats struct {
	Plan
	SubscriberCount int64 `gorm:"column:subscriber_count" json:"subscriber_count"`
}
