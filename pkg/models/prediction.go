package models

import "time"

// ScoreCategory is the label attached to an eco score.
type ScoreCategory string

const (
	CategoryExcellent        ScoreCategory = "Excellent"
	CategoryGood             ScoreCategory = "Good"
	CategoryAverage          ScoreCategory = "Average"
	CategoryBelowAverage     ScoreCategory = "BelowAverage"
	CategoryNeedsImprovement ScoreCategory = "NeedsImprovement"
)

// CategoryForScore maps a score to its category.
// Thresholds are inclusive on the lower bound: 80, 60, 40, 20.
func CategoryForScore(score float64) ScoreCategory {
	switch {
	case score >= 80:
		return CategoryExcellent
	case score >= 60:
		return CategoryGood
	case score >= 40:
		return CategoryAverage
	case score >= 20:
		return CategoryBelowAverage
	default:
		return CategoryNeedsImprovement
	}
}

// DataSources records which stores contributed signals to a prediction.
type DataSources struct {
	Profile         bool `json:"profile"`
	DailyLog        bool `json:"daily_log"`
	ActivitiesToday bool `json:"activities_today"`
	WeeklyLog       bool `json:"weekly_log"`
}

// PredictionOutcome is the result of a single prediction call.
type PredictionOutcome struct {
	PredictedAt     time.Time     `json:"predicted_at"`
	PredictionID    string        `json:"prediction_id,omitempty"`
	Category        ScoreCategory `json:"category"`
	ModelVersion    string        `json:"model_version"`
	Recommendations []string      `json:"recommendations"`
	DataSources     DataSources   `json:"data_sources"`
	Score           float64       `json:"score"`
}

// PredictionLogEntry is an immutable record of a stored prediction.
type PredictionLogEntry struct {
	CreatedAt      time.Time `json:"created_at"`
	PredictionID   string    `json:"prediction_id"`
	UserID         string    `json:"user_id"`
	RawInput       string    `json:"raw_input"`
	ModelVersion   string    `json:"model_version"`
	ID             int64     `json:"id"`
	PredictedScore float64   `json:"predicted_score"`
}

// Category returns the category for the stored score.
func (e *PredictionLogEntry) Category() ScoreCategory {
	return CategoryForScore(e.PredictedScore)
}

// TrendDirection describes how a user's scores are moving.
type TrendDirection string

const (
	TrendImproving        TrendDirection = "improving"
	TrendDeclining        TrendDirection = "declining"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// ScoreTrend summarizes recent prediction history.
type ScoreTrend struct {
	Direction     TrendDirection `json:"direction"`
	RecentAverage float64        `json:"recent_average"`
	PriorAverage  float64        `json:"prior_average"`
	Delta         float64        `json:"delta"`
	Samples       int            `json:"samples"`
}
