package gorm

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAppendOnly is returned when code tries to modify a stored prediction.
var ErrAppendOnly = errors.New("prediction log is append-only")

// GORM Models

// EcoProfile is one row per user.
type EcoProfile struct {
	UserID                 string `gorm:"primaryKey;size:64"`
	AgeGroup               string `gorm:"size:32"`
	LifestyleType          string `gorm:"size:32"`
	LocationType           string `gorm:"size:32"`
	VehicleType            string `gorm:"size:32"`
	CarFuelType            string `gorm:"size:32"`
	DietType               string `gorm:"size:32"`
	UpdatedAt              string `gorm:"not null"`
	RenewableEnergyPercent float64
	HouseholdSize          int   `gorm:"not null"`
	UpdatedAtEpoch         int64 `gorm:"not null"`
	UsesSolarPanels        bool
	SmartThermostat        bool
}

func (EcoProfile) TableName() string { return "eco_profiles" }

// BeforeSave keeps the timestamps current.
func (p *EcoProfile) BeforeSave(tx *gorm.DB) error {
	now := time.Now().UTC()
	p.UpdatedAt = now.Format(time.RFC3339)
	p.UpdatedAtEpoch = now.UnixMilli()
	return nil
}

// DailyLog is one row per user per calendar day. Travel columns are a cache
// of the day's trips.
type DailyLog struct {
	UserID             string `gorm:"primaryKey;size:64"`
	Date               string `gorm:"primaryKey;size:10"`
	WasteBagSize       string `gorm:"size:32"`
	SocialActivity     string `gorm:"size:32"`
	CarKm              float64
	BusKm              float64
	TrainMetroKm       float64
	BikeKm             float64
	WalkKm             float64
	ElectricityKwh     float64
	GasUsageKwh        float64
	WaterUsageLiters   float64
	ShowerMinutes      float64
	ScreenTimeHours    float64
	FoodWasteKg        float64
	VeganMeals         int
	VegetarianMeals    int
	RedMeatMeals       int
	WhiteMeatMeals     int
	FishMeals          int
	LocalFoodMeals     int
	PlasticItemsUsed   int
	UpdatedAtEpoch     int64 `gorm:"not null"`
	ReusableBagUsed    bool
	RecyclingPracticed bool
}

func (DailyLog) TableName() string { return "daily_logs" }

// BeforeSave keeps the timestamp current.
func (d *DailyLog) BeforeSave(tx *gorm.DB) error {
	d.UpdatedAtEpoch = time.Now().UnixMilli()
	return nil
}

// Trip is a single journey. Trips are the source of truth for daily distances.
type Trip struct {
	UserID         string  `gorm:"size:64;not null;index:idx_trips_user_date,priority:1"`
	Date           string  `gorm:"size:10;not null;index:idx_trips_user_date,priority:2"`
	TransportMode  string  `gorm:"size:32;not null"`
	CreatedAt      string  `gorm:"not null"`
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	DistanceKm     float64 `gorm:"not null"`
	CreatedAtEpoch int64   `gorm:"not null"`
}

func (Trip) TableName() string { return "trips" }

// BeforeCreate hook to ensure timestamps are set.
func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	setCreated(&t.CreatedAt, &t.CreatedAtEpoch)
	return nil
}

// Activity is a discrete eco activity event.
type Activity struct {
	UserID         string `gorm:"size:64;not null;index:idx_activities_user_date,priority:1"`
	Date           string `gorm:"size:10;not null;index:idx_activities_user_date,priority:2"`
	TypeName       string `gorm:"size:64;not null"`
	CreatedAt      string `gorm:"not null"`
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Quantity       float64
	CreatedAtEpoch int64 `gorm:"not null"`
}

func (Activity) TableName() string { return "activities" }

// BeforeCreate hook to ensure timestamps are set.
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	setCreated(&a.CreatedAt, &a.CreatedAtEpoch)
	return nil
}

// WeeklyLog is one row per user per Monday-aligned week.
type WeeklyLog struct {
	UserID            string `gorm:"primaryKey;size:64"`
	WeekStart         string `gorm:"primaryKey;size:10"`
	GroceryBill       float64
	GeneralWasteKg    float64
	RecycledWasteKg   float64
	WasteBagCount     int
	NewClothesMonthly int
	UpdatedAtEpoch    int64 `gorm:"not null"`
}

func (WeeklyLog) TableName() string { return "weekly_logs" }

// BeforeSave keeps the timestamp current.
func (w *WeeklyLog) BeforeSave(tx *gorm.DB) error {
	w.UpdatedAtEpoch = time.Now().UnixMilli()
	return nil
}

// PredictionLog is an immutable prediction snapshot.
type PredictionLog struct {
	PredictionID   string  `gorm:"size:36;uniqueIndex;not null"`
	UserID         string  `gorm:"size:64;not null;index:idx_prediction_logs_user_created,priority:1"`
	RawInput       string  `gorm:"type:text;not null"`
	ModelVersion   string  `gorm:"size:64"`
	CreatedAt      string  `gorm:"not null"`
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	PredictedScore float64 `gorm:"not null"`
	CreatedAtEpoch int64   `gorm:"not null;index:idx_prediction_logs_user_created,priority:2,sort:desc"`
}

func (PredictionLog) TableName() string { return "prediction_logs" }

// BeforeCreate hook to ensure timestamps are set.
func (p *PredictionLog) BeforeCreate(tx *gorm.DB) error {
	setCreated(&p.CreatedAt, &p.CreatedAtEpoch)
	return nil
}

// BeforeUpdate rejects every update.
func (p *PredictionLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAppendOnly
}

// BeforeDelete rejects every delete.
func (p *PredictionLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAppendOnly
}

func setCreated(at *string, epoch *int64) {
	now := time.Now().UTC()
	if *epoch == 0 {
		*epoch = now.UnixMilli()
	}
	if *at == "" {
		*at = time.UnixMilli(*epoch).UTC().Format(time.RFC3339Nano)
	}
}
