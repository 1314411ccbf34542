package models

import "time"

// DateLayout is the calendar-day key format used by all per-day records.
const DateLayout = "2006-01-02"

// EcoProfile is the per-user static baseline used as prediction context.
type EcoProfile struct {
	UpdatedAt              time.Time `json:"updated_at"`
	UserID                 string    `json:"user_id"`
	AgeGroup               string    `json:"age_group"`
	LifestyleType          string    `json:"lifestyle_type"`
	LocationType           string    `json:"location_type"`
	VehicleType            string    `json:"vehicle_type"`
	CarFuelType            string    `json:"car_fuel_type"`
	DietType               string    `json:"diet_type"`
	HouseholdSize          int       `json:"household_size"`
	RenewableEnergyPercent float64   `json:"renewable_energy_percent"`
	UsesSolarPanels        bool      `json:"uses_solar_panels"`
	SmartThermostat        bool      `json:"smart_thermostat"`
}

// DailyLog is the per-user, per-day denormalized aggregate of travel, energy,
// meal and water signals. Travel columns are refreshed from trips before use.
type DailyLog struct {
	UserID             string  `json:"user_id"`
	Date               string  `json:"date"`
	CarKm              float64 `json:"car_km"`
	BusKm              float64 `json:"bus_km"`
	TrainMetroKm       float64 `json:"train_metro_km"`
	BikeKm             float64 `json:"bike_km"`
	WalkKm             float64 `json:"walk_km"`
	ElectricityKwh     float64 `json:"electricity_kwh"`
	GasUsageKwh        float64 `json:"gas_usage_kwh"`
	WaterUsageLiters   float64 `json:"water_usage_liters"`
	ShowerMinutes      float64 `json:"shower_minutes"`
	ScreenTimeHours    float64 `json:"screen_time_hours"`
	VeganMeals         int     `json:"vegan_meals"`
	VegetarianMeals    int     `json:"vegetarian_meals"`
	RedMeatMeals       int     `json:"red_meat_meals"`
	WhiteMeatMeals     int     `json:"white_meat_meals"`
	FishMeals          int     `json:"fish_meals"`
	LocalFoodMeals     int     `json:"local_food_meals"`
	PlasticItemsUsed   int     `json:"plastic_items_used"`
	FoodWasteKg        float64 `json:"food_waste_kg"`
	WasteBagSize       string  `json:"waste_bag_size,omitempty"`
	SocialActivity     string  `json:"social_activity,omitempty"`
	ReusableBagUsed    bool    `json:"reusable_bag_used"`
	RecyclingPracticed bool    `json:"recycling_practiced"`
}

// TravelTotals holds the per-bucket trip distances for one day.
type TravelTotals struct {
	CarKm        float64 `json:"car_km"`
	BusKm        float64 `json:"bus_km"`
	TrainMetroKm float64 `json:"train_metro_km"`
	BikeKm       float64 `json:"bike_km"`
	WalkKm       float64 `json:"walk_km"`
}

// Trip is a single recorded journey.
type Trip struct {
	CreatedAt     time.Time `json:"created_at"`
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	TransportMode string    `json:"transport_mode"`
	ID            int64     `json:"id"`
	DistanceKm    float64   `json:"distance_km"`
}

// Activity is a discrete eco activity event (coarser than trips).
type Activity struct {
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	TypeName  string    `json:"type_name"`
	ID        int64     `json:"id"`
	Quantity  float64   `json:"quantity"`
}

// WeeklyLog is the per-user, per-week waste and shopping aggregate.
// WeekStart is the Monday of the week.
type WeeklyLog struct {
	UserID            string  `json:"user_id"`
	WeekStart         string  `json:"week_start"`
	WasteBagCount     int     `json:"waste_bag_count"`
	GroceryBill       float64 `json:"grocery_bill"`
	NewClothesMonthly int     `json:"new_clothes_monthly"`
	GeneralWasteKg    float64 `json:"general_waste_kg"`
	RecycledWasteKg   float64 `json:"recycled_waste_kg"`
}

// DayKey formats t as a UTC calendar-day key.
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// WeekStart returns the UTC Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
