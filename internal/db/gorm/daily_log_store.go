package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/ecoscore/pkg/models"
)

// travelColumns are the daily-log columns derived from trips.
var travelColumns = []string{"car_km", "bus_km", "train_metro_km", "bike_km", "walk_km", "updated_at_epoch"}

// DailyLogStore provides daily-log database operations using GORM.
type DailyLogStore struct {
	db *gorm.DB
}

// NewDailyLogStore creates a new daily-log store.
func NewDailyLogStore(store *Store) *DailyLogStore {
	return &DailyLogStore{db: store.DB}
}

// GetDailyLog returns the log for the user and day, or nil when none exists.
func (s *DailyLogStore) GetDailyLog(ctx context.Context, userID, date string) (*models.DailyLog, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "get_daily_log")
	defer cancel()

	var row DailyLog
	err := s.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).Take(&row).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelDailyLog(&row), nil
}

// UpsertDailyLogTravel overwrites only the travel columns, creating the row
// when it does not exist yet.
func (s *DailyLogStore) UpsertDailyLogTravel(ctx context.Context, userID, date string, t models.TravelTotals) error {
	row := DailyLog{
		UserID:       userID,
		Date:         date,
		CarKm:        t.CarKm,
		BusKm:        t.BusKm,
		TrainMetroKm: t.TrainMetroKm,
		BikeKm:       t.BikeKm,
		WalkKm:       t.WalkKm,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns(travelColumns),
		}).
		Create(&row).Error
}

// UpsertDailyLog creates or replaces every column of the day's log.
func (s *DailyLogStore) UpsertDailyLog(ctx context.Context, d *models.DailyLog) error {
	row := fromModelDailyLog(d)
	return s.db.WithContext(ctx).
		Clauses(upsertOn("user_id", "date")).
		Create(row).Error
}

func fromModelDailyLog(d *models.DailyLog) *DailyLog {
	return &DailyLog{
		UserID:             d.UserID,
		Date:               d.Date,
		CarKm:              d.CarKm,
		BusKm:              d.BusKm,
		TrainMetroKm:       d.TrainMetroKm,
		BikeKm:             d.BikeKm,
		WalkKm:             d.WalkKm,
		ElectricityKwh:     d.ElectricityKwh,
		GasUsageKwh:        d.GasUsageKwh,
		WaterUsageLiters:   d.WaterUsageLiters,
		ShowerMinutes:      d.ShowerMinutes,
		ScreenTimeHours:    d.ScreenTimeHours,
		VeganMeals:         d.VeganMeals,
		VegetarianMeals:    d.VegetarianMeals,
		RedMeatMeals:       d.RedMeatMeals,
		WhiteMeatMeals:     d.WhiteMeatMeals,
		FishMeals:          d.FishMeals,
		LocalFoodMeals:     d.LocalFoodMeals,
		PlasticItemsUsed:   d.PlasticItemsUsed,
		FoodWasteKg:        d.FoodWasteKg,
		WasteBagSize:       d.WasteBagSize,
		SocialActivity:     d.SocialActivity,
		ReusableBagUsed:    d.ReusableBagUsed,
		RecyclingPracticed: d.RecyclingPracticed,
	}
}

func toModelDailyLog(d *DailyLog) *models.DailyLog {
	return &models.DailyLog{
		UserID:             d.UserID,
		Date:               d.Date,
		CarKm:              d.CarKm,
		BusKm:              d.BusKm,
		TrainMetroKm:       d.TrainMetroKm,
		BikeKm:             d.BikeKm,
		WalkKm:             d.WalkKm,
		ElectricityKwh:     d.ElectricityKwh,
		GasUsageKwh:        d.GasUsageKwh,
		WaterUsageLiters:   d.WaterUsageLiters,
		ShowerMinutes:      d.ShowerMinutes,
		ScreenTimeHours:    d.ScreenTimeHours,
		VeganMeals:         d.VeganMeals,
		VegetarianMeals:    d.VegetarianMeals,
		RedMeatMeals:       d.RedMeatMeals,
		WhiteMeatMeals:     d.WhiteMeatMeals,
		FishMeals:          d.FishMeals,
		LocalFoodMeals:     d.LocalFoodMeals,
		PlasticItemsUsed:   d.PlasticItemsUsed,
		FoodWasteKg:        d.FoodWasteKg,
		WasteBagSize:       d.WasteBagSize,
		SocialActivity:     d.SocialActivity,
		ReusableBagUsed:    d.ReusableBagUsed,
		RecyclingPracticed: d.RecyclingPracticed,
	}
}
