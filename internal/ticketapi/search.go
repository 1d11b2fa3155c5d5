package ticketapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/ovalle/bedel/internal/models"
	"gorm.io/gorm"
)

// BestMatch returns the highest-scoring FAQ for a free-text query, or nil
// when nothing scores above zero. When subject is non-empty, FAQs whose
// category or keywords mention the subject get a score boost rather than a
// hard filter, so a wrong subject guess from the classifier cannot hide a
// good textual match.
func BestMatch(db *gorm.DB, query, subject string) (*models.FAQ, error) {
	var faqs []models.FAQ
	if err := db.Find(&faqs).Error; err != nil {
		return nil, fmt.Errorf("ticketapi: load faqs: %w", err)
	}

	queryTerms := tokenize(query)
	subjectNorm := normalize(subject)

	var best *models.FAQ
	bestScore := 0
	for i := range faqs {
		score := scoreFAQ(&faqs[i], queryTerms, subjectNorm)
		if score > bestScore {
			bestScore = score
			best = &faqs[i]
		}
	}
	return best, nil
}

// scoreFAQ computes a relevance score: 3 points per keyword hit, 1 point
// per question-word overlap, 2 points for a subject match.
func scoreFAQ(faq *models.FAQ, queryTerms []string, subject string) int {
	score := 0

	for _, kw := range unmarshalKeywords(faq.Keywords) {
		kw = normalize(kw)
		if kw == "" {
			continue
		}
		for _, term := range queryTerms {
			if term == kw {
				score += 3
			}
		}
	}

	questionTerms := tokenize(faq.Question)
	for _, qt := range questionTerms {
		if len(qt) < 4 {
			continue // skip stopword-sized tokens
		}
		for _, term := range queryTerms {
			if term == qt {
				score++
			}
		}
	}

	if subject != "" {
		if strings.Contains(normalize(faq.Category), subject) ||
			strings.Contains(normalize(faq.Keywords), subject) {
			score += 2
		}
	}

	return score
}

// tokenize lowercases, strips accents-insensitive punctuation, and splits
// text into terms.
func tokenize(text string) []string {
	norm := normalize(text)
	return strings.FieldsFunc(norm, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// normalize lowercases text for comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func marshalKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "[]"
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
