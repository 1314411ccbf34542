// Package worker provides the ecoscore HTTP and gRPC service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gorm.io/gorm/logger"

	"github.com/thebtf/ecoscore/internal/auth"
	"github.com/thebtf/ecoscore/internal/config"
	"github.com/thebtf/ecoscore/internal/db/gorm"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/internal/observability"
	"github.com/thebtf/ecoscore/internal/prediction"
	"github.com/thebtf/ecoscore/internal/rpc"
	"github.com/thebtf/ecoscore/pkg/models"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ReadyPollInterval is how often WaitReady checks initialization status.
	ReadyPollInterval = 50 * time.Millisecond
)

// errInitializing is reported by gRPC calls that arrive before the store and
// model are loaded.
var errInitializing = fmt.Errorf("service initializing: %w", prediction.ErrModelUnavailable)

// Service is the main worker service. HTTP and gRPC share one port.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration
	config   *config.Config
	verifier *auth.Verifier

	// Database and orchestrator (set by initialization)
	store       *gorm.Store
	repos       *gorm.Repositories
	predictions *prediction.Service

	// Transports
	router       *chi.Mux
	server       *http.Server
	rpcServer    *rpc.Server
	mux          cmux.CMux
	listener     net.Listener
	quickLimiter *PerClientRateLimiter
	startTime    time.Time

	// Metrics
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler

	log zerolog.Logger
	now prediction.Clock

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Initialization state (for deferred init)
	ready     atomic.Bool
	initError error
	initMu    sync.RWMutex
}

// NewService creates a new worker service with deferred initialization.
// The service starts immediately with health endpoints available, while
// database and model loading happen in the background. A nil cfg uses
// config.Get().
func NewService(version string, cfg *config.Config) (*Service, error) {
	svc, err := newService(version, cfg)
	if err != nil {
		return nil, err
	}

	go svc.initializeAsync()

	return svc, nil
}

func newService(version string, cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:      version,
		config:       cfg,
		verifier:     auth.NewVerifier(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}),
		router:       chi.NewRouter(),
		quickLimiter: NewPerClientRateLimiter(cfg.QuickRateLimit, cfg.QuickRateBurst),
		startTime:    time.Now(),
		log:          log.With().Str("component", "worker").Logger(),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}

	if cfg.MetricsEnabled {
		provider, handler, err := observability.InitMetrics(observability.MetricsConfig{})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		svc.meterProvider = provider
		svc.metricsHandler = handler
	}

	svc.rpcServer = rpc.NewServer(lazyPredictions{svc}, svc.verifier)

	svc.setupMiddleware()
	svc.setupRoutes()

	if !svc.verifier.Enabled() {
		svc.log.Warn().Msg("ECOSCORE_JWT_SECRET not set: trusting " + UserIDHeader + " header")
	}

	return svc, nil
}

// initializeAsync opens the database and loads the model in the background.
func (s *Service) initializeAsync() {
	s.log.Info().Msg("Starting async initialization...")

	if s.config.DatabaseDSN == "" {
		if err := config.EnsureAll(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to prepare data directory")
		}
	}

	store, err := gorm.NewStore(gorm.Config{
		DSN:      s.config.DatabaseDSN,
		Path:     s.config.DBPath,
		MaxConns: s.config.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		s.setInitError(fmt.Errorf("init database: %w", err))
		return
	}

	predictor := model.Load(s.config.ModelDir, model.LoadOptions{
		ModelFile:        s.config.ModelFile,
		FeatureNamesFile: s.config.FeatureNamesFile,
	})

	s.attach(store, predictor)
	s.log.Info().Msg("Async initialization complete - service ready")
}

// attach wires the store and predictor into the orchestrator and marks the
// service ready. The predictor may be unloaded.
func (s *Service) attach(store *gorm.Store, predictor *model.Predictor) {
	repos := gorm.NewRepositories(store)

	opts := prediction.Options{Clock: s.now}
	if s.meterProvider != nil {
		opts.Meter = s.meterProvider.Meter("github.com/thebtf/ecoscore/internal/prediction")
	}
	predictions := prediction.NewService(predictor, repos.PredictionStores(), opts)

	s.initMu.Lock()
	s.store = store
	s.repos = repos
	s.predictions = predictions
	s.initError = nil
	s.initMu.Unlock()

	s.rpcServer.SetServing(predictor.IsLoaded())
	s.ready.Store(true)
}

// setInitError records an initialization error.
func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	s.log.Error().Err(err).Msg("Async initialization failed")
}

// GetInitError returns any initialization error.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// WaitReady blocks until initialization finishes or fails, or ctx is done.
func (s *Service) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(ReadyPollInterval)
	defer ticker.Stop()

	for {
		if s.ready.Load() {
			return nil
		}
		if err := s.GetInitError(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// components returns the initialized components under the read lock.
func (s *Service) components() (*gorm.Repositories, *prediction.Service) {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.repos, s.predictions
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(SecurityHeaders)
	s.router.Use(MaxBodySize(s.config.MaxBodyBytes))
	s.router.Use(RequireJSONContentType)
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health answers during init; /api/ready only once initialized.
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/ready", s.handleReady)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Get("/api/model/status", s.handleModelStatus)
		r.With(PerClientRateLimitMiddleware(s.quickLimiter)).
			Post("/api/predictions/quick", s.handleQuickPredict)

		r.Group(func(r chi.Router) {
			r.Use(UserAuth(s.verifier))

			r.Post("/api/predictions", s.handlePredict)
			r.Get("/api/predictions/history", s.handleHistory)
			r.Get("/api/predictions/average", s.handleAverage)
			r.Get("/api/predictions/trend", s.handleTrend)

			r.Get("/api/profile", s.handleGetProfile)
			r.Put("/api/profile", s.handlePutProfile)
			r.Put("/api/daily-log", s.handlePutDailyLog)
			r.Post("/api/trips", s.handleCreateTrip)
			r.Post("/api/activities", s.handleCreateActivity)
			r.Put("/api/weekly-log", s.handlePutWeeklyLog)
		})
	})
}

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address. HTTP and gRPC share the port;
// gRPC is matched by content type. Initialization continues in the background.
func (s *Service) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener.
func (s *Service) Serve(lis net.Listener) error {
	s.listener = lis
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpL := lis
	if s.config.GRPCEnabled {
		s.mux = cmux.New(lis)
		grpcL := s.mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
		httpL = s.mux.Match(cmux.Any())

		s.serve("gRPC server", func() error { return s.rpcServer.GRPC().Serve(grpcL) })
		s.serve("connection mux", s.mux.Serve)
	}
	s.serve("HTTP server", func() error { return s.server.Serve(httpL) })

	s.log.Info().
		Str("addr", lis.Addr().String()).
		Bool("grpc", s.config.GRPCEnabled).
		Bool("auth", s.verifier.Enabled()).
		Int("pid", os.Getpid()).
		Msg("Worker started (initialization in progress)")

	return nil
}

func (s *Service) serve(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil && !isClosedErr(err) && s.ctx.Err() == nil {
			s.log.Error().Err(err).Msg(name + " error")
		}
	}()
}

func isClosedErr(err error) bool {
	return errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed)
}

// Addr returns the bound listen address, or nil before Start.
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	s.rpcServer.GracefulStop()
	if s.mux != nil {
		s.mux.Close()
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	}

	if s.meterProvider != nil {
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}

	s.initMu.RLock()
	store := s.store
	s.initMu.RUnlock()
	if store != nil {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	s.wg.Wait()

	s.log.Info().Msg("Worker service shutdown complete")
	return errors.Join(errs...)
}

// lazyPredictions lets the gRPC server start before initialization ends.
type lazyPredictions struct {
	s *Service
}

func (l lazyPredictions) PredictForUser(ctx context.Context, userID string) (*models.PredictionOutcome, error) {
	_, p := l.s.components()
	if p == nil {
		return nil, errInitializing
	}
	return p.PredictForUser(ctx, userID)
}

func (l lazyPredictions) QuickPredict(ctx context.Context, raw models.Signals) (*models.PredictionOutcome, error) {
	_, p := l.s.components()
	if p == nil {
		return nil, errInitializing
	}
	return p.QuickPredict(ctx, raw)
}

func (l lazyPredictions) History(ctx context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error) {
	_, p := l.s.components()
	if p == nil {
		return nil, errInitializing
	}
	return p.History(ctx, userID, limit)
}

func (l lazyPredictions) ModelStatus() model.Status {
	_, p := l.s.components()
	if p == nil {
		return model.Status{LoadError: "service initializing"}
	}
	return p.ModelStatus()
}
