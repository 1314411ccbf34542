package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
// Migrations are portable across PostgreSQL and SQLite.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Profile and per-day tables
		{
			ID: "001_profiles_daily_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&EcoProfile{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&DailyLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("daily_logs", "eco_profiles")
			},
		},

		// Migration 002: Trip and activity event tables
		{
			ID: "002_trips_activities",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Trip{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Activity{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("activities", "trips")
			},
		},

		// Migration 003: Weekly waste and shopping log
		{
			ID: "003_weekly_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&WeeklyLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("weekly_logs")
			},
		},

		// Migration 004: Append-only prediction log
		{
			ID: "004_prediction_logs",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PredictionLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("prediction_logs")
			},
		},
	})

	return m.Migrate()
}
