package domain

import (
	"math"
	"time"
)

const (
	MinScore = 0
	MaxScore = 5
)

// Rating is a review embedded in its listing. It is never edited after append.
type Rating struct {
	Reviewer  string    `json:"reviewer"`
	Score     float64   `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateScore rejects scores outside [0, 5].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return Validationf("score must be within [%d, %d], got %v", MinScore, MaxScore, score)
	}
	return nil
}
