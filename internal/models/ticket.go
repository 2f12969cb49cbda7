package models

import "time"

// ReferrerTicket statuses.
const (
	TicketStatusPending      = "PENDING"
	TicketStatusResolved     = "RESOLVED"
	TicketStatusAutoReplaced = "AUTO_REPLACED"
)

// ReferrerTicket maps to the `referrer_tickets` table. One row is opened
// when a user's level overtakes their referrer's; the sweep job re-examines
// tickets after the grace window and auto-replaces if the referrer has not
// caught up. Level snapshots are taken at detection time.
type ReferrerTicket struct {
	ID         uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID     uint `gorm:"column:user_id;index" json:"user_id"`
	ReferrerID uint `gorm:"column:referrer_id;index" json:"referrer_id"`

	UserLevel     string `gorm:"column:user_level;size:50" json:"user_level"`
	ReferrerLevel string `gorm:"column:referrer_level;size:50" json:"referrer_level"`

	Status      string     `gorm:"column:status;size:20;default:'PENDING';index" json:"status"`
	IsProcessed bool       `gorm:"column:is_processed;default:false" json:"is_processed"`
	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at"`

	User     User `gorm:"foreignKey:UserID" json:"-"`
	Referrer User `gorm:"foreignKey:ReferrerID" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ReferrerTicket) TableName() string {
	return "referrer_tickets"
}
