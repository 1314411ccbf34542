package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/ecoscore/pkg/models"
)

// PredictionStore provides append-only prediction-log operations using GORM.
type PredictionStore struct {
	db *gorm.DB
}

// NewPredictionStore creates a new prediction store.
func NewPredictionStore(store *Store) *PredictionStore {
	return &PredictionStore{db: store.DB}
}

// AppendPrediction stores an entry and fills in its ID.
// CreatedAt is taken from the entry when set, otherwise from the clock.
func (s *PredictionStore) AppendPrediction(ctx context.Context, e *models.PredictionLogEntry) error {
	if e.PredictionID == "" {
		return fmt.Errorf("prediction entry needs a prediction id")
	}
	row := PredictionLog{
		PredictionID:   e.PredictionID,
		UserID:         e.UserID,
		RawInput:       e.RawInput,
		PredictedScore: e.PredictedScore,
		ModelVersion:   e.ModelVersion,
	}
	if !e.CreatedAt.IsZero() {
		row.CreatedAtEpoch = e.CreatedAt.UnixMilli()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	e.ID = row.ID
	e.CreatedAt = parseStoredTime(row.CreatedAt, row.CreatedAtEpoch)
	return nil
}

// PredictionHistory returns up to limit entries for the user, newest first.
func (s *PredictionStore) PredictionHistory(ctx context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "prediction_history")
	defer cancel()

	if limit <= 0 || limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}

	var rows []PredictionLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at_epoch DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.PredictionLogEntry, len(rows))
	for i := range rows {
		out[i] = toModelPrediction(&rows[i])
	}
	return out, nil
}

// AveragePredictedScore returns the mean score, 0 when the user has no entries.
func (s *PredictionStore) AveragePredictedScore(ctx context.Context, userID string) (float64, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "average_score")
	defer cancel()

	var avg sql.NullFloat64
	err := s.db.WithContext(ctx).
		Model(&PredictionLog{}).
		Select("AVG(predicted_score)").
		Where("user_id = ?", userID).
		Row().
		Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func toModelPrediction(p *PredictionLog) *models.PredictionLogEntry {
	return &models.PredictionLogEntry{
		ID:             p.ID,
		PredictionID:   p.PredictionID,
		UserID:         p.UserID,
		RawInput:       p.RawInput,
		PredictedScore: p.PredictedScore,
		ModelVersion:   p.ModelVersion,
		CreatedAt:      parseStoredTime(p.CreatedAt, p.CreatedAtEpoch),
	}
}
