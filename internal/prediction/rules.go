package prediction

import (
	"strings"

	"github.com/thebtf/ecoscore/internal/features"
	"github.com/thebtf/ecoscore/pkg/models"
)

// Recommendation caps.
const (
	MaxRecommendations      = 5
	MaxQuickRecommendations = 3
)

// Rule is one recommendation predicate and the tip it produces.
type Rule struct {
	Matches func(raw models.Signals) bool
	ID      string
	Tip     string
}

// rules are evaluated in declaration order against caller-supplied signals
// only; defaults and derived values are never consulted.
var rules = []Rule{
	{
		ID:  "cycling",
		Tip: "Try cycling or walking for short trips instead of driving.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.CarKm) > 10 && raw.Float(features.BikeKm)+raw.Float(features.WalkKm) < 2
		},
	},
	{
		ID:  "solar",
		Tip: "Consider installing solar panels to cut your grid electricity use.",
		Matches: func(raw models.Signals) bool {
			return !raw.Flag(features.UsesSolarPanels)
		},
	},
	{
		ID:  "diet",
		Tip: "Swap a couple of red meat meals a week for plant-based options.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.RedMeatMeals) >= 2
		},
	},
	{
		ID:  "electricity",
		Tip: "Your electricity use is high today; switch off idle devices and use efficient appliances.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.ElectricityKwh) > 15
		},
	},
	{
		ID:  "recycling",
		Tip: "Start separating recyclables from general waste.",
		Matches: func(raw models.Signals) bool {
			return !raw.Flag(features.RecyclingPracticed)
		},
	},
	{
		ID:  "public_transport",
		Tip: "Use the bus or train for some of your regular journeys.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.BusKm)+raw.Float(features.TrainMetroKm) == 0 && raw.Float(features.CarKm) > 5
		},
	},
	{
		ID:  "thermostat",
		Tip: "A smart thermostat can trim heating and cooling energy.",
		Matches: func(raw models.Signals) bool {
			return !raw.Flag(features.SmartThermostat)
		},
	},
	{
		ID:  "water",
		Tip: "Shorter showers and fixing leaks would bring your water use down.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.WaterUsageLiters) > 200
		},
	},
	{
		ID:  "waste",
		Tip: "Reduce packaging and compost food scraps to fill fewer waste bags.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.WasteBagCount) > 3
		},
	},
	{
		ID:  "clothing",
		Tip: "Buy fewer new clothes; try second-hand or repairing what you own.",
		Matches: func(raw models.Signals) bool {
			return raw.Float(features.NewClothesMonthly) > 2
		},
	},
}

// Rules returns the ordered recommendation rules.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Recommend returns the tips of matching rules in declaration order,
// truncated to limit.
func Recommend(raw models.Signals, limit int) []string {
	tips := make([]string, 0, limit)
	for _, r := range rules {
		if len(tips) >= limit {
			break
		}
		if r.Matches(raw) {
			tips = append(tips, r.Tip)
		}
	}
	return tips
}

// activityEffect describes how one activity type folds into the raw map.
type activityEffect struct {
	feature string
	flag    bool
}

// activityTable maps activity type names to features. Counting activities add
// their quantity; flag activities set the feature true.
var activityTable = map[string]activityEffect{
	"Vegan Meal":      {feature: features.VeganMeals},
	"Vegetarian Meal": {feature: features.VegetarianMeals},
	"Local Produce":   {feature: features.LocalFoodMeals},
	"Tree Planting":   {feature: features.TreesPlanted},
	"Energy Saving":   {feature: features.EnergySavingActions},
	"Recycling":       {feature: features.RecyclingPracticed, flag: true},
	"Composting":      {feature: features.CompostingPracticed, flag: true},
	"Reusable Bag":    {feature: features.ReusableBagUsed, flag: true},
}

// ApplyActivities merges activities into raw in place. Unmapped type names
// are ignored. A non-positive quantity counts as one occurrence.
func ApplyActivities(raw models.Signals, activities []models.Activity) {
	for _, a := range activities {
		effect, ok := activityTable[a.TypeName]
		if !ok {
			continue
		}
		if effect.flag {
			raw[effect.feature] = models.Bool(true)
			continue
		}
		qty := a.Quantity
		if qty <= 0 {
			qty = 1
		}
		raw.Add(effect.feature, qty)
	}
}

// TravelBucket maps a trip transport mode to its daily-log column.
// Matching is case-insensitive; unknown modes return "".
func TravelBucket(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "car", "electric_car":
		return features.CarKm
	case "bus":
		return features.BusKm
	case "train":
		return features.TrainMetroKm
	case "bike":
		return features.BikeKm
	case "walk":
		return features.WalkKm
	default:
		return ""
	}
}

// SumTrips groups trip distances by travel bucket.
func SumTrips(trips []models.Trip) models.TravelTotals {
	var t models.TravelTotals
	for _, trip := range trips {
		switch TravelBucket(trip.TransportMode) {
		case features.CarKm:
			t.CarKm += trip.DistanceKm
		case features.BusKm:
			t.BusKm += trip.DistanceKm
		case features.TrainMetroKm:
			t.TrainMetroKm += trip.DistanceKm
		case features.BikeKm:
			t.BikeKm += trip.DistanceKm
		case features.WalkKm:
			t.WalkKm += trip.DistanceKm
		}
	}
	return t
}

func applyProfile(raw models.Signals, p *models.EcoProfile) {
	raw[features.HouseholdSize] = models.Int(p.HouseholdSize)
	raw[features.RenewableEnergyPercent] = models.Number(p.RenewableEnergyPercent)
	raw[features.UsesSolarPanels] = models.Bool(p.UsesSolarPanels)
	raw[features.SmartThermostat] = models.Bool(p.SmartThermostat)

	setText(raw, features.AgeGroup, p.AgeGroup)
	setText(raw, features.LifestyleType, p.LifestyleType)
	setText(raw, features.LocationType, p.LocationType)
	setText(raw, features.VehicleType, p.VehicleType)
	setText(raw, features.CarFuelType, p.CarFuelType)
	setText(raw, features.DietType, p.DietType)
}

func applyDailyLog(raw models.Signals, d *models.DailyLog) {
	raw[features.CarKm] = models.Number(d.CarKm)
	raw[features.BusKm] = models.Number(d.BusKm)
	raw[features.TrainMetroKm] = models.Number(d.TrainMetroKm)
	raw[features.BikeKm] = models.Number(d.BikeKm)
	raw[features.WalkKm] = models.Number(d.WalkKm)

	raw[features.ElectricityKwh] = models.Number(d.ElectricityKwh)
	raw[features.GasUsageKwh] = models.Number(d.GasUsageKwh)
	raw[features.WaterUsageLiters] = models.Number(d.WaterUsageLiters)
	raw[features.ShowerMinutes] = models.Number(d.ShowerMinutes)
	raw[features.ScreenTimeHours] = models.Number(d.ScreenTimeHours)

	raw[features.VeganMeals] = models.Int(d.VeganMeals)
	raw[features.VegetarianMeals] = models.Int(d.VegetarianMeals)
	raw[features.RedMeatMeals] = models.Int(d.RedMeatMeals)
	raw[features.WhiteMeatMeals] = models.Int(d.WhiteMeatMeals)
	raw[features.FishMeals] = models.Int(d.FishMeals)
	raw[features.LocalFoodMeals] = models.Int(d.LocalFoodMeals)
	raw[features.PlasticItemsUsed] = models.Int(d.PlasticItemsUsed)
	raw[features.FoodWasteKg] = models.Number(d.FoodWasteKg)

	raw[features.ReusableBagUsed] = models.Bool(d.ReusableBagUsed)
	raw[features.RecyclingPracticed] = models.Bool(d.RecyclingPracticed)

	setText(raw, features.WasteBagSize, d.WasteBagSize)
	setText(raw, features.SocialActivity, d.SocialActivity)
}

func applyWeeklyLog(raw models.Signals, w *models.WeeklyLog) {
	raw[features.WasteBagCount] = models.Int(w.WasteBagCount)
	raw[features.GroceryBill] = models.Number(w.GroceryBill)
	raw[features.NewClothesMonthly] = models.Int(w.NewClothesMonthly)
	raw[features.GeneralWasteKg] = models.Number(w.GeneralWasteKg)
	raw[features.RecycledWasteKg] = models.Number(w.RecycledWasteKg)
}

// setText records non-empty categorical values; empty strings leave the
// category default in place.
func setText(raw models.Signals, key, value string) {
	if value != "" {
		raw[key] = models.String(value)
	}
}
