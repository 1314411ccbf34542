package features

import (
	"math"
	"time"

	"github.com/thebtf/ecoscore/pkg/models"
)

// FeatureMap is an intermediate snapshot of named feature values.
// Pipeline stages never mutate their input; each returns a new map.
type FeatureMap map[string]float64

// Clone returns a copy of the map.
func (m FeatureMap) Clone() FeatureMap {
	out := make(FeatureMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Vector is the ordered numeric input of the model.
type Vector []float64

// Seed returns a fresh map holding the numeric default table.
func Seed() FeatureMap {
	m := make(FeatureMap, len(defaultValues))
	for _, d := range defaultValues {
		m[d.Name] = d.Value
	}
	return m
}

// Overlay replaces defaults with caller-supplied values.
//
// Only keys already present in base are considered, so unknown or mistyped
// keys are dropped. Values that do not coerce to a finite number keep the
// base value.
func Overlay(base FeatureMap, raw models.Signals) FeatureMap {
	m := base.Clone()
	for name, signal := range raw {
		if _, known := m[name]; !known {
			continue
		}
		if v, ok := signal.Float(); ok {
			m[name] = v
		}
	}
	return m
}

// Derive computes the engineered features from already merged values.
//
// Formulas run in a fixed order and each reads only merged or earlier derived
// values:
//
//	total_distance_km           = car + bus + train_metro + bike + walk
//	sustainable_transport_ratio = (bike + walk + bus + train_metro) / total   (1.0 when total = 0)
//	public_transport_usage      = (bus + train_metro) / total                 (0 when total = 0)
//	travel_efficiency           = sustainable_transport_ratio
//	energy_efficiency           = (renewable%/100 + 0.3·solar + 0.2·thermostat) / 1.5
//	recycling_rate              = recycled / (general + recycled)             (0 when denominator <= 0)
//	per_capita_co2              = (car·0.21 + electricity·0.5) / max(household, 1)
//	is_weekend_num, month       from ref (UTC)
func Derive(base FeatureMap, ref time.Time) FeatureMap {
	m := base.Clone()

	car, bus, train := m[CarKm], m[BusKm], m[TrainMetroKm]
	bike, walk := m[BikeKm], m[WalkKm]

	total := finite(car + bus + train + bike + walk)
	m[TotalDistanceKm] = total

	if total > 0 {
		m[SustainableTransport] = clamp01(finite(bike+walk+bus+train) / total)
		m[PublicTransportUsage] = clamp01(finite(bus+train) / total)
	} else {
		m[SustainableTransport] = 1.0
		m[PublicTransportUsage] = 0
	}
	m[TravelEfficiency] = m[SustainableTransport]

	efficiency := m[RenewableEnergyPercent] / 100
	if m[UsesSolarPanels] > 0 {
		efficiency += 0.3
	}
	if m[SmartThermostat] > 0 {
		efficiency += 0.2
	}
	efficiency = finite(efficiency / 1.5)
	m[EnergyEfficiency] = efficiency
	m[EnergyEfficiencyScore] = efficiency

	general, recycled := m[GeneralWasteKg], m[RecycledWasteKg]
	if denom := finite(general + recycled); denom > 0 {
		m[RecyclingRate] = clamp01(recycled / denom)
	} else {
		m[RecyclingRate] = 0
	}

	household := m[HouseholdSize]
	if household < 1 {
		household = 1
	}
	m[PerCapitaCO2] = finite((car*carKgCO2PerKm + m[ElectricityKwh]*electricityKgPerKwh) / household)

	ref = ref.UTC()
	if isWeekend(ref.Weekday()) {
		m[IsWeekendNum] = 1
	} else {
		m[IsWeekendNum] = 0
	}
	m[Month] = float64(ref.Month())

	return m
}

// Encode adds one flag per vocabulary value for every categorical.
//
// The value comes from raw when present, otherwise from the category default;
// a null value counts as absent. day_of_week and season always come from ref.
// A value outside the vocabulary, including any non-string value, leaves the
// whole block at zero.
func Encode(base FeatureMap, raw models.Signals, ref time.Time) FeatureMap {
	m := base.Clone()
	for _, vocab := range vocabularies {
		selected := categoryValue(vocab.Name, raw, ref)
		for _, value := range vocab.Values {
			flag := 0.0
			if value == selected {
				flag = 1
			}
			m[OneHotName(vocab.Name, value)] = flag
		}
	}
	return m
}

// Project orders the map by the model's declared feature names.
// Names missing from the map project to 0.
func Project(m FeatureMap, names []string) Vector {
	out := make(Vector, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

// SeasonFor buckets a month into its meteorological season.
func SeasonFor(month time.Month) string {
	switch month {
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	case time.September, time.October, time.November:
		return "fall"
	default:
		return "winter"
	}
}

func categoryValue(name string, raw models.Signals, ref time.Time) string {
	switch name {
	case DayOfWeek:
		return ref.UTC().Weekday().String()
	case Season:
		return SeasonFor(ref.UTC().Month())
	}
	signal, ok := raw[name]
	if !ok || signal.Kind() == models.KindInvalid {
		return categoryDefaults[name]
	}
	// Numbers and booleans never match a vocabulary entry.
	text, _ := signal.Text()
	return text
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// clamp01 limits v to [0, 1]. NaN maps to 0.
func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// finite saturates sums that overflowed float64 so derived features stay
// usable model inputs. NaN maps to 0.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	default:
		return v
	}
}
