package gorm

import "github.com/thebtf/ecoscore/internal/prediction"

// Repositories bundles the typed stores sharing one connection.
type Repositories struct {
	Profiles    *ProfileStore
	DailyLogs   *DailyLogStore
	Trips       *TripStore
	Activities  *ActivityStore
	WeeklyLogs  *WeeklyLogStore
	Predictions *PredictionStore
}

// NewRepositories creates every typed store for store.
func NewRepositories(store *Store) *Repositories {
	return &Repositories{
		Profiles:    NewProfileStore(store),
		DailyLogs:   NewDailyLogStore(store),
		Trips:       NewTripStore(store),
		Activities:  NewActivityStore(store),
		WeeklyLogs:  NewWeeklyLogStore(store),
		Predictions: NewPredictionStore(store),
	}
}

// PredictionStores adapts the repositories to the orchestrator's ports.
func (r *Repositories) PredictionStores() prediction.Stores {
	return prediction.Stores{
		Profiles:    r.Profiles,
		DailyLogs:   r.DailyLogs,
		Trips:       r.Trips,
		Activities:  r.Activities,
		WeeklyLogs:  r.WeeklyLogs,
		Predictions: r.Predictions,
	}
}

var (
	_ prediction.ProfileStore       = (*ProfileStore)(nil)
	_ prediction.DailyLogStore      = (*DailyLogStore)(nil)
	_ prediction.TripStore          = (*TripStore)(nil)
	_ prediction.ActivityStore      = (*ActivityStore)(nil)
	_ prediction.WeeklyLogStore     = (*WeeklyLogStore)(nil)
	_ prediction.PredictionLogStore = (*PredictionStore)(nil)
)
