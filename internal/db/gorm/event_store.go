package gorm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/thebtf/ecoscore/pkg/models"
)

// TripStore provides trip database operations using GORM.
type TripStore struct {
	db *gorm.DB
}

// NewTripStore creates a new trip store.
func NewTripStore(store *Store) *TripStore {
	return &TripStore{db: store.DB}
}

// CreateTrip records a trip and fills in its ID and creation time.
func (s *TripStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	if strings.TrimSpace(t.TransportMode) == "" {
		return fmt.Errorf("trip needs a transport mode")
	}
	row := Trip{
		UserID:        t.UserID,
		Date:          t.Date,
		TransportMode: t.TransportMode,
		DistanceKm:    t.DistanceKm,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	t.ID = row.ID
	t.CreatedAt = parseStoredTime(row.CreatedAt, row.CreatedAtEpoch)
	return nil
}

// GetTripsForUserOnDate lists the day's trips in insertion order.
func (s *TripStore) GetTripsForUserOnDate(ctx context.Context, userID, date string) ([]models.Trip, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "get_trips")
	defer cancel()

	var rows []Trip
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Trip, len(rows))
	for i := range rows {
		r := &rows[i]
		out[i] = models.Trip{
			ID:            r.ID,
			UserID:        r.UserID,
			Date:          r.Date,
			TransportMode: r.TransportMode,
			DistanceKm:    r.DistanceKm,
			CreatedAt:     parseStoredTime(r.CreatedAt, r.CreatedAtEpoch),
		}
	}
	return out, nil
}

// ActivityStore provides activity database operations using GORM.
type ActivityStore struct {
	db *gorm.DB
}

// NewActivityStore creates a new activity store.
func NewActivityStore(store *Store) *ActivityStore {
	return &ActivityStore{db: store.DB}
}

// CreateActivity records an activity and fills in its ID and creation time.
func (s *ActivityStore) CreateActivity(ctx context.Context, a *models.Activity) error {
	if strings.TrimSpace(a.TypeName) == "" {
		return fmt.Errorf("activity needs a type name")
	}
	row := Activity{
		UserID:   a.UserID,
		Date:     a.Date,
		TypeName: a.TypeName,
		Quantity: a.Quantity,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	a.ID = row.ID
	a.CreatedAt = parseStoredTime(row.CreatedAt, row.CreatedAtEpoch)
	return nil
}

// GetActivitiesForUserOnDate lists the day's activities in insertion order.
func (s *ActivityStore) GetActivitiesForUserOnDate(ctx context.Context, userID, date string) ([]models.Activity, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "get_activities")
	defer cancel()

	var rows []Activity
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Activity, len(rows))
	for i := range rows {
		r := &rows[i]
		out[i] = models.Activity{
			ID:        r.ID,
			UserID:    r.UserID,
			Date:      r.Date,
			TypeName:  r.TypeName,
			Quantity:  r.Quantity,
			CreatedAt: parseStoredTime(r.CreatedAt, r.CreatedAtEpoch),
		}
	}
	return out, nil
}

// WeeklyLogStore provides weekly-log database operations using GORM.
type WeeklyLogStore struct {
	db *gorm.DB
}

// NewWeeklyLogStore creates a new weekly-log store.
func NewWeeklyLogStore(store *Store) *WeeklyLogStore {
	return &WeeklyLogStore{db: store.DB}
}

// GetWeeklyLog returns the log for the week starting on weekStart (a Monday),
// or nil when none exists.
func (s *WeeklyLogStore) GetWeeklyLog(ctx context.Context, userID, weekStart string) (*models.WeeklyLog, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "get_weekly_log")
	defer cancel()

	var row WeeklyLog
	err := s.db.WithContext(ctx).Where("user_id = ? AND week_start = ?", userID, weekStart).Take(&row).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.WeeklyLog{
		UserID:            row.UserID,
		WeekStart:         row.WeekStart,
		WasteBagCount:     row.WasteBagCount,
		GroceryBill:       row.GroceryBill,
		NewClothesMonthly: row.NewClothesMonthly,
		GeneralWasteKg:    row.GeneralWasteKg,
		RecycledWasteKg:   row.RecycledWasteKg,
	}, nil
}

// UpsertWeeklyLog creates or replaces the week's log.
func (s *WeeklyLogStore) UpsertWeeklyLog(ctx context.Context, w *models.WeeklyLog) error {
	row := WeeklyLog{
		UserID:            w.UserID,
		WeekStart:         w.WeekStart,
		WasteBagCount:     w.WasteBagCount,
		GroceryBill:       w.GroceryBill,
		NewClothesMonthly: w.NewClothesMonthly,
		GeneralWasteKg:    w.GeneralWasteKg,
		RecycledWasteKg:   w.RecycledWasteKg,
	}
	return s.db.WithContext(ctx).
		Clauses(upsertOn("user_id", "week_start")).
		Create(&row).Error
}
