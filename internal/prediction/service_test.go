package prediction

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ecoscore/internal/features"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/pkg/models"
)

// memStore is an in-memory implementation of every port.
type memStore struct {
	profiles    map[string]*models.EcoProfile
	daily       map[string]*models.DailyLog
	weekly      map[string]*models.WeeklyLog
	trips       []models.Trip
	activities  []models.Activity
	predictions []*models.PredictionLogEntry
	upserts     int
	failTrips   error
	mu          sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*models.EcoProfile),
		daily:    make(map[string]*models.DailyLog),
		weekly:   make(map[string]*models.WeeklyLog),
	}
}

func (m *memStore) stores() Stores {
	return Stores{Profiles: m, DailyLogs: m, Trips: m, Activities: m, WeeklyLogs: m, Predictions: m}
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*models.EcoProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *memStore) GetDailyLog(_ context.Context, userID, date string) (*models.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.daily[userID+"|"+date]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) UpsertDailyLogTravel(_ context.Context, userID, date string, t models.TravelTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	d, ok := m.daily[userID+"|"+date]
	if !ok {
		d = &models.DailyLog{UserID: userID, Date: date}
		m.daily[userID+"|"+date] = d
	}
	d.CarKm, d.BusKm, d.TrainMetroKm, d.BikeKm, d.WalkKm = t.CarKm, t.BusKm, t.TrainMetroKm, t.BikeKm, t.WalkKm
	return nil
}

func (m *memStore) GetTripsForUserOnDate(_ context.Context, userID, date string) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTrips != nil {
		return nil, m.failTrips
	}
	var out []models.Trip
	for _, t := range m.trips {
		if t.UserID == userID && t.Date == date {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetActivitiesForUserOnDate(_ context.Context, userID, date string) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Activity
	for _, a := range m.activities {
		if a.UserID == userID && a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetWeeklyLog(_ context.Context, userID, weekStart string) (*models.WeeklyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weekly[userID+"|"+weekStart], nil
}

func (m *memStore) AppendPrediction(_ context.Context, e *models.PredictionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.predictions) + 1)
	m.predictions = append(m.predictions, e)
	return nil
}

func (m *memStore) PredictionHistory(_ context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PredictionLogEntry
	for _, e := range m.predictions {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) AveragePredictedScore(ctx context.Context, userID string) (float64, error) {
	entries, _ := m.PredictionHistory(ctx, userID, MaxHistoryLimit)
	return meanScore(entries), nil
}

func (m *memStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.predictions)
}

// recordingModel returns a fixed output and remembers the last vector.
type recordingModel struct {
	last []float64
	out  float64
	size int
	mu   sync.Mutex
}

func (r *recordingModel) Kind() string    { return "recording" }
func (r *recordingModel) Version() string { return "test-v1" }
func (r *recordingModel) InputSize() int  { return r.size }
func (r *recordingModel) Score(v []float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = append([]float64(nil), v...)
	return r.out, nil
}

func (r *recordingModel) lastVector() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// ServiceSuite exercises the orchestrator against in-memory stores.
type ServiceSuite struct {
	suite.Suite
	store *memStore
	rec   *recordingModel
	svc   *Service
	names []string
	now   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.names = features.CanonicalFeatureNames()
	s.store = newMemStore()
	s.rec = &recordingModel{out: 64.5, size: len(s.names)}
	s.now = time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC) // Wednesday
	s.svc = NewService(model.New(s.rec, s.names), s.store.stores(), Options{
		Clock: func() time.Time { return s.now },
	})

	s.store.profiles["u1"] = &models.EcoProfile{
		UserID:                 "u1",
		AgeGroup:               "25-34",
		LifestyleType:          "active",
		LocationType:           "urban",
		VehicleType:            "car",
		CarFuelType:            "petrol",
		DietType:               "vegan",
		HouseholdSize:          2,
		RenewableEnergyPercent: 30,
		UsesSolarPanels:        true,
		SmartThermostat:        false,
	}
}

func (s *ServiceSuite) feature(name string) float64 {
	v := s.rec.lastVector()
	s.Require().NotNil(v, "model was not invoked")
	for i, n := range s.names {
		if n == name {
			return v[i]
		}
	}
	s.FailNow("unknown feature " + name)
	return 0
}

// =============================================================================
// MODEL AVAILABILITY
// =============================================================================

func (s *ServiceSuite) TestModelUnavailable_NothingPersisted() {
	svc := NewService(model.Load(s.T().TempDir(), model.LoadOptions{}), s.store.stores(), Options{})

	_, err := svc.PredictForUser(context.Background(), "u1")
	s.ErrorIs(err, ErrModelUnavailable)
	s.Zero(s.store.entryCount())
	s.Zero(s.store.upserts)

	_, err = svc.QuickPredict(context.Background(), models.Signals{"car_km": models.Number(3)})
	s.ErrorIs(err, ErrModelUnavailable)

	s.False(svc.ModelStatus().Loaded)
}

func (s *ServiceSuite) TestModelUnavailable_CheckedBeforeProfile() {
	svc := NewService(model.Load(s.T().TempDir(), model.LoadOptions{}), s.store.stores(), Options{})

	_, err := svc.PredictForUser(context.Background(), "nobody")
	s.ErrorIs(err, ErrModelUnavailable)
}

func (s *ServiceSuite) TestModelStatus_Loaded() {
	status := s.svc.ModelStatus()
	s.True(status.Loaded)
	s.Equal("test-v1", status.Version)
	s.Equal(len(s.names), status.FeatureCount)
}

// =============================================================================
// PREDICT FOR USER
// =============================================================================

func (s *ServiceSuite) TestProfileMissing() {
	_, err := s.svc.PredictForUser(context.Background(), "nobody")
	s.ErrorIs(err, ErrProfileMissing)
	s.Zero(s.store.entryCount())
}

func (s *ServiceSuite) TestEmptyUserID() {
	_, err := s.svc.PredictForUser(context.Background(), "  ")
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ServiceSuite) TestProfileOnly() {
	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.Equal(64.5, out.Score)
	s.Equal(models.CategoryGood, out.Category)
	s.Equal("test-v1", out.ModelVersion)
	s.Equal(models.DataSources{Profile: true}, out.DataSources)
	s.Equal(s.now, out.PredictedAt)
	_, err = uuid.Parse(out.PredictionID)
	s.NoError(err)

	s.Equal(2.0, s.feature(features.HouseholdSize))
	s.Equal(1.0, s.feature(features.UsesSolarPanels))
	s.Equal(1.0, s.feature("diet_type_vegan"))
	s.Equal(1.0, s.feature("lifestyle_type_active"))
	s.Equal(10.0, s.feature(features.ElectricityKwh), "default kept without a daily log")
	s.Zero(s.store.upserts, "no log and no trips means no refresh write")
}

func (s *ServiceSuite) TestTripsOverrideStoredDailyLog() {
	s.store.daily["u1|2026-10-14"] = &models.DailyLog{UserID: "u1", Date: "2026-10-14", CarKm: 5, ElectricityKwh: 12}
	s.store.trips = []models.Trip{
		{UserID: "u1", Date: "2026-10-14", TransportMode: "car", DistanceKm: 7},
		{UserID: "u1", Date: "2026-10-14", TransportMode: "Electric_Car", DistanceKm: 5},
		{UserID: "u1", Date: "2026-10-14", TransportMode: "BUS", DistanceKm: 3},
		{UserID: "u1", Date: "2026-10-14", TransportMode: "hoverboard", DistanceKm: 100},
		{UserID: "u1", Date: "2026-10-13", TransportMode: "car", DistanceKm: 50},
	}

	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.True(out.DataSources.DailyLog)
	s.Equal(12.0, s.feature(features.CarKm))
	s.Equal(3.0, s.feature(features.BusKm))
	s.Equal(15.0, s.feature(features.TotalDistanceKm))
	s.Equal(12.0, s.feature(features.ElectricityKwh))

	stored := s.store.daily["u1|2026-10-14"]
	s.Equal(12.0, stored.CarKm)
	s.Equal(3.0, stored.BusKm)
	s.Equal(1, s.store.upserts)
}

func (s *ServiceSuite) TestTripsCreateDailyLog() {
	s.store.trips = []models.Trip{
		{UserID: "u1", Date: "2026-10-14", TransportMode: "walk", DistanceKm: 2.5},
	}

	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.True(out.DataSources.DailyLog)
	s.Equal(2.5, s.feature(features.WalkKm))
	s.Require().Contains(s.store.daily, "u1|2026-10-14")
}

func (s *ServiceSuite) TestDailyLogWithoutTripsResetsTravel() {
	s.store.daily["u1|2026-10-14"] = &models.DailyLog{UserID: "u1", Date: "2026-10-14", CarKm: 5, BikeKm: 1}

	_, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.Zero(s.feature(features.CarKm))
	s.Zero(s.feature(features.BikeKm))
}

func (s *ServiceSuite) TestUnchangedTravelSkipsWrite() {
	s.store.daily["u1|2026-10-14"] = &models.DailyLog{UserID: "u1", Date: "2026-10-14", CarKm: 4}
	s.store.trips = []models.Trip{{UserID: "u1", Date: "2026-10-14", TransportMode: "car", DistanceKm: 4}}

	_, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)
	s.Zero(s.store.upserts)
}

func (s *ServiceSuite) TestActivitiesAndWeeklyLogMerge() {
	s.store.daily["u1|2026-10-14"] = &models.DailyLog{UserID: "u1", Date: "2026-10-14", VeganMeals: 1}
	s.store.activities = []models.Activity{
		{UserID: "u1", Date: "2026-10-14", TypeName: "Vegan Meal", Quantity: 2},
		{UserID: "u1", Date: "2026-10-14", TypeName: "Tree Planting", Quantity: 0},
		{UserID: "u1", Date: "2026-10-14", TypeName: "Recycling", Quantity: 1},
		{UserID: "u1", Date: "2026-10-14", TypeName: "Juggling", Quantity: 9},
	}
	s.store.weekly["u1|2026-10-12"] = &models.WeeklyLog{
		UserID: "u1", WeekStart: "2026-10-12", WasteBagCount: 4, GeneralWasteKg: 3, RecycledWasteKg: 1,
	}

	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.Equal(models.DataSources{Profile: true, DailyLog: true, ActivitiesToday: true, WeeklyLog: true}, out.DataSources)
	s.Equal(3.0, s.feature(features.VeganMeals))
	s.Equal(1.0, s.feature(features.TreesPlanted))
	s.Equal(1.0, s.feature(features.RecyclingPracticed))
	s.Equal(4.0, s.feature(features.WasteBagCount))
	s.Equal(0.25, s.feature(features.RecyclingRate))
	s.NotContains(out.Recommendations, tipFor("recycling"))
}

func (s *ServiceSuite) TestLogEntryPersisted() {
	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)

	s.Require().Equal(1, s.store.entryCount())
	entry := s.store.predictions[0]
	s.Equal("u1", entry.UserID)
	s.Equal(out.PredictionID, entry.PredictionID)
	s.Equal(out.Score, entry.PredictedScore)
	s.Equal("test-v1", entry.ModelVersion)
	s.Equal(s.now, entry.CreatedAt)

	var raw models.Signals
	s.Require().NoError(json.Unmarshal([]byte(entry.RawInput), &raw))
	s.Equal(2.0, raw.Float(features.HouseholdSize))
	text, ok := raw[features.DietType].Text()
	s.True(ok)
	s.Equal("vegan", text)
}

func (s *ServiceSuite) TestStoreErrorWrapped() {
	boom := errors.New("db down")
	s.store.failTrips = boom

	_, err := s.svc.PredictForUser(context.Background(), "u1")
	s.ErrorIs(err, boom)
	s.Zero(s.store.entryCount())
}

// =============================================================================
// SCORE POST-PROCESSING
// =============================================================================

func (s *ServiceSuite) TestScoreClampAndRounding() {
	tests := []struct {
		raw  float64
		want float64
		cat  models.ScoreCategory
	}{
		{250, 100, models.CategoryExcellent},
		{-12, 0, models.CategoryNeedsImprovement},
		{72.456, 72.46, models.CategoryGood},
		{12.345, 12.34, models.CategoryNeedsImprovement},
		{79.999, 80, models.CategoryExcellent},
		{59.994, 59.99, models.CategoryAverage},
	}
	for _, tt := range tests {
		s.rec.out = tt.raw
		out, err := s.svc.QuickPredict(context.Background(), nil)
		s.Require().NoError(err)
		s.Equal(tt.want, out.Score, "raw %v", tt.raw)
		s.Equal(tt.cat, out.Category, "raw %v", tt.raw)
	}
}

func (s *ServiceSuite) TestRecommendationCaps() {
	s.store.profiles["u1"].UsesSolarPanels = false
	s.store.daily["u1|2026-10-14"] = &models.DailyLog{
		UserID: "u1", Date: "2026-10-14", RedMeatMeals: 3, ElectricityKwh: 20, WaterUsageLiters: 300,
	}
	s.store.trips = []models.Trip{{UserID: "u1", Date: "2026-10-14", TransportMode: "car", DistanceKm: 25}}

	out, err := s.svc.PredictForUser(context.Background(), "u1")
	s.Require().NoError(err)
	s.Equal([]string{
		tipFor("cycling"), tipFor("solar"), tipFor("diet"), tipFor("electricity"), tipFor("recycling"),
	}, out.Recommendations)

	quick, err := s.svc.QuickPredict(context.Background(), models.Signals{
		features.CarKm:        models.Number(25),
		features.RedMeatMeals: models.Int(3),
	})
	s.Require().NoError(err)
	s.Equal([]string{tipFor("cycling"), tipFor("solar"), tipFor("diet")}, quick.Recommendations)
}

// =============================================================================
// QUICK PREDICT
// =============================================================================

func (s *ServiceSuite) TestQuickPredict_NoProfileNoPersistence() {
	raw := models.Signals{features.CarKm: models.String("8"), "unknown": models.Bool(true)}

	out, err := s.svc.QuickPredict(context.Background(), raw)
	s.Require().NoError(err)

	s.Equal(models.DataSources{}, out.DataSources)
	s.Empty(out.PredictionID)
	s.Zero(s.store.entryCount())
	s.Equal(8.0, s.feature(features.CarKm))
	s.Len(raw, 2, "caller map untouched")
}

func (s *ServiceSuite) TestQuickPredict_SaturdayFlags() {
	s.now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	_, err := s.svc.QuickPredict(context.Background(), nil)
	s.Require().NoError(err)

	s.Equal(1.0, s.feature(features.IsWeekendNum))
	s.Equal(1.0, s.feature("day_of_week_Saturday"))
	s.Equal(0.0, s.feature("day_of_week_Wednesday"))
}

// =============================================================================
// HISTORY AND TREND
// =============================================================================

func (s *ServiceSuite) TestHistoryAverageTrend() {
	ctx := context.Background()
	for _, score := range []float64{40, 42, 50, 55} {
		s.Require().NoError(s.store.AppendPrediction(ctx, &models.PredictionLogEntry{UserID: "u1", PredictedScore: score}))
	}
	s.Require().NoError(s.store.AppendPrediction(ctx, &models.PredictionLogEntry{UserID: "u2", PredictedScore: 99}))

	history, err := s.svc.History(ctx, "u1", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 4)
	s.Equal(55.0, history[0].PredictedScore)

	history, err = s.svc.History(ctx, "u1", 2)
	s.Require().NoError(err)
	s.Len(history, 2)

	avg, err := s.svc.Average(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(46.75, avg)

	avg, err = s.svc.Average(ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(avg)

	trend, err := s.svc.Trend(ctx, "u1", 4)
	s.Require().NoError(err)
	s.Equal(models.TrendImproving, trend.Direction)
	s.Equal(52.5, trend.RecentAverage)
	s.Equal(41.0, trend.PriorAverage)
	s.Equal(11.5, trend.Delta)
	s.Equal(4, trend.Samples)
}

func TestTrendOf(t *testing.T) {
	entries := func(scores ...float64) []*models.PredictionLogEntry {
		out := make([]*models.PredictionLogEntry, len(scores))
		for i, v := range scores {
			out[i] = &models.PredictionLogEntry{PredictedScore: v}
		}
		return out
	}

	assert.Equal(t, models.TrendInsufficientData, TrendOf(nil).Direction)
	assert.Equal(t, models.TrendInsufficientData, TrendOf(entries(50)).Direction)
	assert.Equal(t, models.TrendDeclining, TrendOf(entries(40, 45)).Direction)
	assert.Equal(t, models.TrendStable, TrendOf(entries(51, 50)).Direction)
	assert.Equal(t, models.TrendImproving, TrendOf(entries(52, 50)).Direction)

	odd := TrendOf(entries(60, 50, 40))
	assert.Equal(t, 60.0, odd.RecentAverage)
	assert.Equal(t, 45.0, odd.PriorAverage)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, clampLimit(0, DefaultHistoryLimit))
	assert.Equal(t, DefaultHistoryLimit, clampLimit(-3, DefaultHistoryLimit))
	assert.Equal(t, 7, clampLimit(7, DefaultHistoryLimit))
	assert.Equal(t, MaxHistoryLimit, clampLimit(5000, DefaultHistoryLimit))
}

func TestConcurrentPredictions(t *testing.T) {
	names := features.CanonicalFeatureNames()
	store := newMemStore()
	store.profiles["u1"] = &models.EcoProfile{UserID: "u1", HouseholdSize: 1}
	store.trips = []models.Trip{{UserID: "u1", Date: models.DayKey(time.Now()), TransportMode: "bike", DistanceKm: 3}}
	svc := NewService(model.New(&recordingModel{out: 50, size: len(names)}, names), store.stores(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PredictForUser(context.Background(), "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 16, store.entryCount())
}

// gatedTrips blocks trip lookups until released and records whether the
// lookup context had been cancelled.
type gatedTrips struct {
	*memStore
	entered  chan struct{}
	release  chan struct{}
	ctxErr   error
	enterOne sync.Once
}

func (g *gatedTrips) GetTripsForUserOnDate(ctx context.Context, userID, date string) ([]models.Trip, error) {
	g.enterOne.Do(func() { close(g.entered) })
	<-g.release
	g.ctxErr = ctx.Err()
	if g.ctxErr != nil {
		return nil, g.ctxErr
	}
	return g.memStore.GetTripsForUserOnDate(ctx, userID, date)
}

func TestRefreshDailyLog_CallerCancellationNotShared(t *testing.T) {
	names := features.CanonicalFeatureNames()
	store := newMemStore()
	store.trips = []models.Trip{{UserID: "u1", Date: "2026-10-14", TransportMode: "car", DistanceKm: 9}}
	gated := &gatedTrips{memStore: store, entered: make(chan struct{}), release: make(chan struct{})}

	stores := store.stores()
	stores.Trips = gated
	svc := NewService(model.New(&recordingModel{out: 50, size: len(names)}, names), stores, Options{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.refreshDailyLog(firstCtx, "u1", "2026-10-14")
		firstErr <- err
	}()
	<-gated.entered

	type result struct {
		log *models.DailyLog
		err error
	}
	second := make(chan result, 1)
	go func() {
		d, err := svc.refreshDailyLog(context.Background(), "u1", "2026-10-14")
		second <- result{d, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(gated.release)
	got := <-second
	require.NoError(t, got.err)
	require.NotNil(t, got.log)
	assert.Equal(t, 9.0, got.log.CarKm)
	assert.NoError(t, gated.ctxErr)
}

func tipFor(id string) string {
	for _, r := range Rules() {
		if r.ID == id {
			return r.Tip
		}
	}
	return ""
}
