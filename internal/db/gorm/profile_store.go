package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/ecoscore/pkg/models"
)

// ProfileStore provides eco-profile database operations using GORM.
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore creates a new profile store.
func NewProfileStore(store *Store) *ProfileStore {
	return &ProfileStore{db: store.DB}
}

// GetProfile returns the user's profile, or nil when none exists.
func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*models.EcoProfile, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout, "get_profile")
	defer cancel()

	var row EcoProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelProfile(&row), nil
}

// UpsertProfile creates or replaces the user's profile.
func (s *ProfileStore) UpsertProfile(ctx context.Context, p *models.EcoProfile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile needs a user id")
	}
	row := EcoProfile{
		UserID:                 p.UserID,
		AgeGroup:               p.AgeGroup,
		LifestyleType:          p.LifestyleType,
		LocationType:           p.LocationType,
		VehicleType:            p.VehicleType,
		CarFuelType:            p.CarFuelType,
		DietType:               p.DietType,
		HouseholdSize:          p.HouseholdSize,
		RenewableEnergyPercent: p.RenewableEnergyPercent,
		UsesSolarPanels:        p.UsesSolarPanels,
		SmartThermostat:        p.SmartThermostat,
	}
	err := s.db.WithContext(ctx).
		Clauses(upsertOn("user_id")).
		Create(&row).Error
	if err != nil {
		return err
	}
	p.UpdatedAt = time.UnixMilli(row.UpdatedAtEpoch).UTC()
	return nil
}

func toModelProfile(p *EcoProfile) *models.EcoProfile {
	return &models.EcoProfile{
		UserID:                 p.UserID,
		AgeGroup:               p.AgeGroup,
		LifestyleType:          p.LifestyleType,
		LocationType:           p.LocationType,
		VehicleType:            p.VehicleType,
		CarFuelType:            p.CarFuelType,
		DietType:               p.DietType,
		HouseholdSize:          p.HouseholdSize,
		RenewableEnergyPercent: p.RenewableEnergyPercent,
		UsesSolarPanels:        p.UsesSolarPanels,
		SmartThermostat:        p.SmartThermostat,
		UpdatedAt:              time.UnixMilli(p.UpdatedAtEpoch).UTC(),
	}
}
