package models

import "time"

// FAQ is a knowledge-base entry served to the intent router as grounding
// context. Keywords is a JSON array of lowercase search terms.
type FAQ struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Question  string `gorm:"size:512;not null"`
	Answer    string `gorm:"type:text;not null"`
	Category  string `gorm:"size:128;index"`
	Keywords  string `gorm:"type:text"` // JSON array of strings
	CreatedAt time.Time
	UpdatedAt time.Time
}
