// Package features turns raw eco signals into the fixed-order feature vector
// expected by the eco-score model.
package features

// Default is a numeric feature and its baseline value.
type Default struct {
	Name  string
	Value float64
}

// Vocabulary is the ordered set of allowed values for a categorical input.
type Vocabulary struct {
	Name   string
	Values []string
}

// Numeric feature names referenced by derivation and recommendation code.
const (
	HouseholdSize          = "household_size"
	RenewableEnergyPercent = "renewable_energy_percent"
	UsesSolarPanels        = "uses_solar_panels"
	SmartThermostat        = "smart_thermostat"

	CarKm        = "car_km"
	BusKm        = "bus_km"
	TrainMetroKm = "train_metro_km"
	BikeKm       = "bike_km"
	WalkKm       = "walk_km"

	ElectricityKwh   = "electricity_kwh"
	GasUsageKwh      = "gas_usage_kwh"
	WaterUsageLiters = "water_usage_liters"
	ShowerMinutes    = "shower_minutes"
	ScreenTimeHours  = "screen_time_hours"

	VeganMeals       = "vegan_meals"
	VegetarianMeals  = "vegetarian_meals"
	RedMeatMeals     = "red_meat_meals"
	WhiteMeatMeals   = "white_meat_meals"
	FishMeals        = "fish_meals"
	LocalFoodMeals   = "local_food_meals"
	FoodWasteKg      = "food_waste_kg"
	PlasticItemsUsed = "plastic_items_used"

	ReusableBagUsed       = "reusable_bag_used"
	RecyclingPracticed    = "recycling_practiced"
	CompostingPracticed   = "composting_practiced"
	TreesPlanted          = "trees_planted"
	EnergySavingActions   = "energy_saving_actions"
	WasteBagCount         = "waste_bag_count"
	GroceryBill           = "grocery_bill"
	NewClothesMonthly     = "new_clothes_monthly"
	GeneralWasteKg        = "general_waste_kg"
	RecycledWasteKg       = "recycled_waste_kg"
	TotalDistanceKm       = "total_distance_km"
	SustainableTransport  = "sustainable_transport_ratio"
	PublicTransportUsage  = "public_transport_usage"
	TravelEfficiency      = "travel_efficiency"
	EnergyEfficiency      = "energy_efficiency"
	EnergyEfficiencyScore = "energy_efficiency_score"
	RecyclingRate         = "recycling_rate"
	PerCapitaCO2          = "per_capita_co2"
	IsWeekendNum          = "is_weekend_num"
	Month                 = "month"
)

// Categorical input names.
const (
	AgeGroup       = "age_group"
	LifestyleType  = "lifestyle_type"
	LocationType   = "location_type"
	DayOfWeek      = "day_of_week"
	VehicleType    = "vehicle_type"
	CarFuelType    = "car_fuel_type"
	DietType       = "diet_type"
	WasteBagSize   = "waste_bag_size"
	SocialActivity = "social_activity"
	Season         = "season"
)

// Emission factors used by per_capita_co2 (kg CO2 per unit).
const (
	carKgCO2PerKm       = 0.21
	electricityKgPerKwh = 0.5
)

// defaultValues is the baseline for every numeric feature, derived ones included.
// Derived features are overwritten by Derive, never added.
var defaultValues = []Default{
	{HouseholdSize, 1},
	{RenewableEnergyPercent, 0},
	{UsesSolarPanels, 0},
	{SmartThermostat, 0},

	{CarKm, 0},
	{BusKm, 0},
	{TrainMetroKm, 0},
	{BikeKm, 0},
	{WalkKm, 0},

	{ElectricityKwh, 10},
	{GasUsageKwh, 5},
	{WaterUsageLiters, 150},
	{ShowerMinutes, 8},
	{ScreenTimeHours, 4},

	{VeganMeals, 0},
	{VegetarianMeals, 0},
	{RedMeatMeals, 1},
	{WhiteMeatMeals, 1},
	{FishMeals, 0},
	{LocalFoodMeals, 0},
	{FoodWasteKg, 0.2},
	{PlasticItemsUsed, 3},

	{ReusableBagUsed, 0},
	{RecyclingPracticed, 0},
	{CompostingPracticed, 0},
	{TreesPlanted, 0},
	{EnergySavingActions, 0},

	{WasteBagCount, 2},
	{GroceryBill, 100},
	{NewClothesMonthly, 1},
	{GeneralWasteKg, 5},
	{RecycledWasteKg, 1},

	{TotalDistanceKm, 0},
	{SustainableTransport, 1},
	{PublicTransportUsage, 0},
	{TravelEfficiency, 1},
	{EnergyEfficiency, 0},
	{EnergyEfficiencyScore, 0},
	{RecyclingRate, 0},
	{PerCapitaCO2, 0},
	{IsWeekendNum, 0},
	{Month, 1},
}

// categoryDefaults is used when a categorical is not supplied as a string.
// "omnivore" is intentionally outside the diet vocabulary: the default diet
// encodes as an all-zero block.
var categoryDefaults = map[string]string{
	AgeGroup:       "25-34",
	LifestyleType:  "moderate",
	LocationType:   "urban",
	VehicleType:    "car",
	CarFuelType:    "petrol",
	DietType:       "omnivore",
	WasteBagSize:   "medium",
	SocialActivity: "sometimes",
}

// vocabularies lists every one-hot block in model order. Values are matched
// by exact string comparison; vehicle_type keeps both naming schemes verbatim.
var vocabularies = []Vocabulary{
	{AgeGroup, []string{"18-24", "25-34", "35-44", "45-54", "55-64", "65+"}},
	{LifestyleType, []string{"active", "moderate", "sedentary"}},
	{LocationType, []string{"rural", "suburban", "urban"}},
	{DayOfWeek, []string{"Friday", "Monday", "Saturday", "Sunday", "Thursday", "Tuesday", "Wednesday"}},
	{VehicleType, []string{"Bicycle", "Car", "Electric Vehicle", "Public Transport", "Walking", "car", "diesel", "electric", "hybrid", "petrol"}},
	{CarFuelType, []string{"diesel", "electric", "hybrid", "lpg", "petrol"}},
	{DietType, []string{"pescatarian", "vegan", "vegetarian"}},
	{WasteBagSize, []string{"extra_large", "large", "medium", "small"}},
	{SocialActivity, []string{"never", "often", "sometimes"}},
	{Season, []string{"fall", "spring", "summer", "winter"}},
}

// Defaults returns a copy of the numeric default table in declaration order.
func Defaults() []Default {
	out := make([]Default, len(defaultValues))
	copy(out, defaultValues)
	return out
}

// DefaultValue returns the baseline for a numeric feature.
func DefaultValue(name string) (float64, bool) {
	for _, d := range defaultValues {
		if d.Name == name {
			return d.Value, true
		}
	}
	return 0, false
}

// CategoryDefault returns the default string for a categorical input.
func CategoryDefault(name string) string {
	return categoryDefaults[name]
}

// Vocabularies returns a copy of the categorical vocabularies in model order.
func Vocabularies() []Vocabulary {
	out := make([]Vocabulary, len(vocabularies))
	for i, v := range vocabularies {
		out[i] = Vocabulary{Name: v.Name, Values: append([]string(nil), v.Values...)}
	}
	return out
}

// OneHotName returns the feature name for a category value.
func OneHotName(category, value string) string {
	return category + "_" + value
}

// CanonicalFeatureNames returns the feature order used when no model artifact
// supplies one: numeric defaults followed by each one-hot block.
func CanonicalFeatureNames() []string {
	names := make([]string, 0, len(defaultValues)+32)
	for _, d := range defaultValues {
		names = append(names, d.Name)
	}
	for _, v := range vocabularies {
		for _, value := range v.Values {
			names = append(names, OneHotName(v.Name, value))
		}
	}
	return names
}
