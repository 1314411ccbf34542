package prediction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/ecoscore/internal/features"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/pkg/models"
)

const instrumentationName = "github.com/thebtf/ecoscore/internal/prediction"

// History and trend limits.
const (
	DefaultHistoryLimit = 30
	MaxHistoryLimit     = 1000
	DefaultTrendWindow  = 10

	// trendThreshold is the minimum mean difference reported as a direction.
	trendThreshold = 2.0
)

// Options tunes a Service. Zero values select sensible defaults.
type Options struct {
	Meter  metric.Meter
	Tracer trace.Tracer
	Clock  Clock
	Logger *zerolog.Logger
}

// Service is the prediction orchestrator. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	tracer    trace.Tracer
	stores    Stores
	predictor *model.Predictor
	builder   *features.Builder
	metrics   *serviceMetrics
	now       Clock
	refresh   singleflight.Group
	log       zerolog.Logger
}

// NewService wires the orchestrator. predictor may be unloaded; every
// prediction call then fails with ErrModelUnavailable.
func NewService(predictor *model.Predictor, stores Stores, opts Options) *Service {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "prediction").Logger()

	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Service{
		tracer:    opts.Tracer,
		stores:    stores,
		predictor: predictor,
		builder:   features.NewBuilder(predictor.FeatureNames()),
		metrics:   newServiceMetrics(opts.Meter, logger),
		now:       opts.Clock,
		log:       logger,
	}
}

// ModelStatus reports whether predictions can be served.
func (s *Service) ModelStatus() model.Status {
	return s.predictor.Status()
}

// Builder exposes the feature builder bound to the model's feature order.
func (s *Service) Builder() *features.Builder {
	return s.builder
}

// PredictForUser gathers the user's stored signals, scores them and appends
// the result to the prediction log.
func (s *Service) PredictForUser(ctx context.Context, userID string) (_ *models.PredictionOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "prediction.predict-for-user",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	started := time.Now()
	defer func() { s.finish(ctx, span, kindUser, started, err) }()

	if !s.predictor.IsLoaded() {
		return nil, ErrModelUnavailable
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	day := models.DayKey(now)
	week := models.WeekStart(now).Format(models.DateLayout)

	profile, err := s.stores.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileMissing
	}

	var (
		daily      *models.DailyLog
		activities []models.Activity
		weekly     *models.WeeklyLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = s.refreshDailyLog(gctx, userID, day)
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = s.stores.Activities.GetActivitiesForUserOnDate(gctx, userID, day)
		if err != nil {
			return fmt.Errorf("get activities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		weekly, err = s.stores.WeeklyLogs.GetWeeklyLog(gctx, userID, week)
		if err != nil {
			return fmt.Errorf("get weekly log: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := models.Signals{}
	sources := models.DataSources{Profile: true}

	applyProfile(raw, profile)
	if daily != nil {
		applyDailyLog(raw, daily)
		sources.DailyLog = true
	}
	if len(activities) > 0 {
		ApplyActivities(raw, activities)
		sources.ActivitiesToday = true
	}
	if weekly != nil {
		applyWeeklyLog(raw, weekly)
		sources.WeeklyLog = true
	}

	outcome, err := s.score(ctx, kindUser, raw, now, MaxRecommendations)
	if err != nil {
		return nil, err
	}
	outcome.DataSources = sources
	outcome.PredictionID = uuid.NewString()

	snapshot, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw input: %w", err)
	}
	entry := &models.PredictionLogEntry{
		PredictionID:   outcome.PredictionID,
		UserID:         userID,
		RawInput:       string(snapshot),
		PredictedScore: outcome.Score,
		ModelVersion:   outcome.ModelVersion,
		CreatedAt:      now,
	}
	if err := s.stores.Predictions.AppendPrediction(ctx, entry); err != nil {
		return nil, fmt.Errorf("append prediction: %w", err)
	}

	s.log.Debug().
		Str("user_id", userID).
		Float64("score", outcome.Score).
		Str("category", string(outcome.Category)).
		Msg("Prediction stored")

	return outcome, nil
}

// QuickPredict scores caller-supplied signals without touching any store.
// It needs no profile, serves anonymous callers and is never persisted.
func (s *Service) QuickPredict(ctx context.Context, raw models.Signals) (_ *models.PredictionOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "prediction.quick-predict")
	defer span.End()

	started := time.Now()
	defer func() { s.finish(ctx, span, kindQuick, started, err) }()

	if !s.predictor.IsLoaded() {
		return nil, ErrModelUnavailable
	}
	return s.score(ctx, kindQuick, raw.Clone(), s.now().UTC(), MaxQuickRecommendations)
}

// History returns the user's stored predictions, newest first.
// limit <= 0 selects DefaultHistoryLimit; larger values are capped.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	entries, err := s.stores.Predictions.PredictionHistory(ctx, userID, clampLimit(limit, DefaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("prediction history: %w", err)
	}
	return entries, nil
}

// Average returns the mean stored score, 0 for users without predictions.
func (s *Service) Average(ctx context.Context, userID string) (float64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	avg, err := s.stores.Predictions.AveragePredictedScore(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("average score: %w", err)
	}
	return RoundScore(avg), nil
}

// Trend compares the newer half of the last window predictions with the
// older half.
func (s *Service) Trend(ctx context.Context, userID string, window int) (*models.ScoreTrend, error) {
	entries, err := s.History(ctx, userID, clampLimit(window, DefaultTrendWindow))
	if err != nil {
		return nil, err
	}
	return TrendOf(entries), nil
}

// TrendOf computes the trend of entries ordered newest first.
func TrendOf(entries []*models.PredictionLogEntry) *models.ScoreTrend {
	n := len(entries)
	if n < 2 {
		return &models.ScoreTrend{Direction: models.TrendInsufficientData, Samples: n}
	}

	half := n / 2
	recent := meanScore(entries[:half])
	prior := meanScore(entries[half:])
	delta := RoundScore(recent - prior)

	direction := models.TrendStable
	switch {
	case delta >= trendThreshold:
		direction = models.TrendImproving
	case delta <= -trendThreshold:
		direction = models.TrendDeclining
	}

	return &models.ScoreTrend{
		Direction:     direction,
		RecentAverage: RoundScore(recent),
		PriorAverage:  RoundScore(prior),
		Delta:         delta,
		Samples:       n,
	}
}

// ClampScore bounds a raw model output to [0, 100].
func ClampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// RoundScore rounds to two decimals with banker's rounding.
func RoundScore(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

func (s *Service) score(ctx context.Context, kind string, raw models.Signals, now time.Time, limit int) (*models.PredictionOutcome, error) {
	vector := s.builder.Prepare(raw, now)

	rawScore, err := s.predictor.Invoke(vector)
	if err != nil {
		return nil, err
	}
	score := RoundScore(ClampScore(rawScore))
	s.metrics.score(ctx, kind, score)

	return &models.PredictionOutcome{
		Score:           score,
		Category:        models.CategoryForScore(score),
		Recommendations: Recommend(raw, limit),
		ModelVersion:    s.predictor.Version(),
		PredictedAt:     now,
	}, nil
}

// refreshDailyLog recomputes the day's travel columns from its trips and
// returns the refreshed log. Days with neither a log nor trips yield nil.
// Concurrent refreshes of the same user and day are coalesced. The shared
// refresh ignores the cancellation of whichever caller started it; each
// caller stops waiting when its own ctx is done.
func (s *Service) refreshDailyLog(ctx context.Context, userID, day string) (*models.DailyLog, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan(userID+"|"+day, func() (any, error) {
		ctx := shared
		trips, err := s.stores.Trips.GetTripsForUserOnDate(ctx, userID, day)
		if err != nil {
			return nil, fmt.Errorf("get trips: %w", err)
		}
		current, err := s.stores.DailyLogs.GetDailyLog(ctx, userID, day)
		if err != nil {
			return nil, fmt.Errorf("get daily log: %w", err)
		}
		if current == nil && len(trips) == 0 {
			return (*models.DailyLog)(nil), nil
		}

		totals := SumTrips(trips)
		if current != nil && travelOf(current) == totals {
			return current, nil
		}
		if err := s.stores.DailyLogs.UpsertDailyLogTravel(ctx, userID, day, totals); err != nil {
			return nil, fmt.Errorf("refresh daily log travel: %w", err)
		}

		refreshed, err := s.stores.DailyLogs.GetDailyLog(ctx, userID, day)
		if err != nil {
			return nil, fmt.Errorf("get daily log: %w", err)
		}
		return refreshed, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.DailyLog), nil
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, kind string, started time.Time, err error) {
	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrModelUnavailable):
		outcome = outcomeUnavailable
	case errors.Is(err, ErrProfileMissing):
		outcome = outcomeNoProfile
	default:
		outcome = outcomeError
		s.log.Error().Err(err).Str("kind", kind).Msg("Prediction failed")
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.record(ctx, kind, outcome, started)
}

func travelOf(d *models.DailyLog) models.TravelTotals {
	return models.TravelTotals{
		CarKm:        d.CarKm,
		BusKm:        d.BusKm,
		TrainMetroKm: d.TrainMetroKm,
		BikeKm:       d.BikeKm,
		WalkKm:       d.WalkKm,
	}
}

func meanScore(entries []*models.PredictionLogEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.PredictedScore
	}
	return sum / float64(len(entries))
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
