package db

import (
	"encoding/json"
	"fmt"

	"github.com/ovalle/bedel/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Ticket{},
		&models.FAQ{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// FAQSeed is one entry of a YAML FAQ seed file.
type FAQSeed struct {
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// SeedFAQs inserts FAQ rows that do not already exist (matched by question).
// Returns the number of rows inserted.
func SeedFAQs(db *gorm.DB, seeds []FAQSeed) (int, error) {
	inserted := 0
	for _, s := range seeds {
		if s.Question == "" || s.Answer == "" {
			return inserted, fmt.Errorf("db: faq seed requires question and answer (got question=%q)", s.Question)
		}
		var count int64
		if err := db.Model(&models.FAQ{}).Where("question = ?", s.Question).Count(&count).Error; err != nil {
			return inserted, fmt.Errorf("db: check faq %q: %w", s.Question, err)
		}
		if count > 0 {
			continue
		}
		keywords, err := json.Marshal(s.Keywords)
		if err != nil {
			return inserted, fmt.Errorf("db: marshal keywords for %q: %w", s.Question, err)
		}
		faq := models.FAQ{
			Question: s.Question,
			Answer:   s.Answer,
			Category: s.Category,
			Keywords: string(keywords),
		}
		if err := db.Create(&faq).Error; err != nil {
			return inserted, fmt.Errorf("db: seed faq %q: %w", s.Question, err)
		}
		inserted++
	}
	return inserted, nil
}
