package prediction

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Prediction kinds and outcomes used as metric attributes.
const (
	kindUser  = "user"
	kindQuick = "quick"

	outcomeOK          = "ok"
	outcomeUnavailable = "model_unavailable"
	outcomeNoProfile   = "profile_missing"
	outcomeError       = "error"
)

type serviceMetrics struct {
	predictions metric.Int64Counter
	latency     metric.Float64Histogram
	scores      metric.Float64Histogram
}

func newServiceMetrics(meter metric.Meter, log zerolog.Logger) *serviceMetrics {
	fallback := noop.NewMeterProvider().Meter("")
	m := &serviceMetrics{}

	var err error
	m.predictions, err = meter.Int64Counter("ecoscore.predictions",
		metric.WithDescription("Prediction calls by kind and outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("predictions counter unavailable")
		m.predictions, _ = fallback.Int64Counter("ecoscore.predictions")
	}

	m.latency, err = meter.Float64Histogram("ecoscore.prediction.duration",
		metric.WithDescription("Prediction latency"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Warn().Err(err).Msg("latency histogram unavailable")
		m.latency, _ = fallback.Float64Histogram("ecoscore.prediction.duration")
	}

	m.scores, err = meter.Float64Histogram("ecoscore.prediction.score",
		metric.WithDescription("Distribution of served eco scores"),
		metric.WithExplicitBucketBoundaries(20, 40, 60, 80, 100))
	if err != nil {
		log.Warn().Err(err).Msg("score histogram unavailable")
		m.scores, _ = fallback.Float64Histogram("ecoscore.prediction.score")
	}

	return m
}

func (m *serviceMetrics) record(ctx context.Context, kind, outcome string, started time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.predictions.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)
}

func (m *serviceMetrics) score(ctx context.Context, kind string, score float64) {
	m.scores.Record(ctx, score, metric.WithAttributes(attribute.String("kind", kind)))
}
