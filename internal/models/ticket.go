package models

import "time"

// Ticket statuses.
const (
	TicketOpen       = "abierto"
	TicketInProgress = "en_proceso"
	TicketClosed     = "cerrado"
)

// Ticket is a support request created from the conversational flow or the
// admin API. Ref is the public reference shown to users; the numeric ID
// stays internal.
type Ticket struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Ref         string    `gorm:"size:40;uniqueIndex;not null"`
	UserID      string    `gorm:"size:64;index"` // platform user identifier
	UserName    string    `gorm:"size:128"`
	Email       string    `gorm:"size:256"`
	Description string    `gorm:"type:text;not null"`
	Category    string    `gorm:"size:128;index"`
	StudentID   string    `gorm:"size:64"` // optional identity document
	Priority    string    `gorm:"size:16;default:media"`
	Source      string    `gorm:"size:64"` // e.g. "bedel-discord"
	Status      string    `gorm:"size:16;default:abierto;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
