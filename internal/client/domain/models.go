package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is a subscriber. MonthlyFeeCents is copied from the plan at
// subscription time so later plan price changes do not rewrite history.
// ReactivatedAt records the most recent inactive-to-active transition and
// anchors the next billing cycle after a suspension.
type Client struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountNumber    string            `gorm:"not null;uniqueIndex" json:"account_number"`
	Name             string            `gorm:"not null" json:"name"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Address          string            `json:"address,omitempty"`
	PlanID           snowflake.ID      `gorm:"not null;index" json:"plan_id"`
	NapboxID         *snowflake.ID     `gorm:"index" json:"napbox_id,omitempty"`
	PortNumber       *int              `json:"port_number,omitempty"`
	Status           ClientStatus      `gorm:"not null;default:'active';index" json:"status"`
	MonthlyFeeCents  int64             `gorm:"not null" json:"monthly_fee_cents"`
	InstallationDate time.Time         `gorm:"not null" json:"installation_date"`
	ReactivatedAt    *time.Time        `json:"reactivated_at,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Stats are the dashboard aggregates for the client base.
type Stats struct {
	TotalClients      int64 `json:"total_clients"`
	ActiveClients     int64 `json:"active_clients"`
	InactiveClients   int64 `json:"inactive_clients"`
	NewThisMonth      int64 `json:"new_this_month"`
	PendingInvoices   int64 `json:"pending_invoices"`
	OverdueInvoices   int64 `json:"overdue_invoices"`
	PendingCents      int64 `json:"pending_cents"`
	OverdueCents      int64 `json:"overdue_cents"`
	CollectedCents30d int64 `json:"collected_cents_30d"`
}
