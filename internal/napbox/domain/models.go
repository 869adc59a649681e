package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Napbox is a network access point box in the field. Each box carries a
// fixed number of subscriber ports that are provisioned as rows up front.
type Napbox struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"not null;uniqueIndex" json:"code"`
	Location  string       `gorm:"not null" json:"location"`
	Latitude  *float64     `json:"latitude,omitempty"`
	Longitude *float64     `json:"longitude,omitempty"`
	PortCount int          `gorm:"not null" json:"port_count"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// NapboxPort is one subscriber port on a box. ClientID is nil while free.
type NapboxPort struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	NapboxID   snowflake.ID  `gorm:"not null;index" json:"napbox_id"`
	PortNumber int           `gorm:"not null" json:"port_number"`
	ClientID   *snowflake.ID `gorm:"index" json:"client_id,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// NapboxWithOccupancy is a box joined with its used-port count.
type NapboxWithOccupancy struct {
	Napbox
	UsedPorts int64 `gorm:"column:used_ports" json:"used_ports"`
}

// NapboxDetail is a box with its full port map.
type NapboxDetail struct {
	Napbox
	Ports []NapboxPort `json:"ports"`
}
