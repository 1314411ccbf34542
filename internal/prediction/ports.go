// Package prediction gathers a user's eco signals, runs the feature builder
// and the eco-score model, and post-processes the result.
package prediction

import (
	"context"
	"time"

	"github.com/thebtf/ecoscore/pkg/models"
)

// ProfileStore reads eco profiles. A missing profile is (nil, nil).
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.EcoProfile, error)
}

// DailyLogStore reads and refreshes per-day logs. A missing log is (nil, nil).
type DailyLogStore interface {
	GetDailyLog(ctx context.Context, userID, date string) (*models.DailyLog, error)
	// UpsertDailyLogTravel overwrites the travel columns of the day's log,
	// creating the row when absent.
	UpsertDailyLogTravel(ctx context.Context, userID, date string, travel models.TravelTotals) error
}

// TripStore lists the trips recorded on a day.
type TripStore interface {
	GetTripsForUserOnDate(ctx context.Context, userID, date string) ([]models.Trip, error)
}

// ActivityStore lists the activities recorded on a day.
type ActivityStore interface {
	GetActivitiesForUserOnDate(ctx context.Context, userID, date string) ([]models.Activity, error)
}

// WeeklyLogStore reads the waste and shopping log keyed by Monday week start.
// A missing log is (nil, nil).
type WeeklyLogStore interface {
	GetWeeklyLog(ctx context.Context, userID, weekStart string) (*models.WeeklyLog, error)
}

// PredictionLogStore is the append-only prediction log.
type PredictionLogStore interface {
	AppendPrediction(ctx context.Context, entry *models.PredictionLogEntry) error
	// PredictionHistory returns up to limit entries, newest first.
	PredictionHistory(ctx context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error)
	// AveragePredictedScore returns 0 when the user has no entries.
	AveragePredictedScore(ctx context.Context, userID string) (float64, error)
}

// Stores bundles every port the service consumes.
// The typed stores in internal/db/gorm satisfy all of them.
type Stores struct {
	Profiles    ProfileStore
	DailyLogs   DailyLogStore
	Trips       TripStore
	Activities  ActivityStore
	WeeklyLogs  WeeklyLogStore
	Predictions PredictionLogStore
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
