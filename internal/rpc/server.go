package rpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/thebtf/ecoscore/internal/auth"
	"github.com/thebtf/ecoscore/internal/model"
	"github.com/thebtf/ecoscore/internal/prediction"
	"github.com/thebtf/ecoscore/pkg/models"
)

// Predictions is the orchestrator surface served over gRPC.
// *prediction.Service satisfies it.
type Predictions interface {
	PredictForUser(ctx context.Context, userID string) (*models.PredictionOutcome, error)
	QuickPredict(ctx context.Context, raw models.Signals) (*models.PredictionOutcome, error)
	History(ctx context.Context, userID string, limit int) ([]*models.PredictionLogEntry, error)
	ModelStatus() model.Status
}

var _ Predictions = (*prediction.Service)(nil)

// Server wraps a gRPC server with the prediction service and health
// service registered.
type Server struct {
	gs     *grpclib.Server
	health *health.Server
	log    zerolog.Logger
}

// NewServer creates and configures the gRPC server. A nil or disabled
// verifier trusts the user id carried in each request.
func NewServer(svc Predictions, verifier *auth.Verifier) *Server {
	logger := log.With().Str("component", "grpc").Logger()

	gs := grpclib.NewServer(grpclib.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		authInterceptor(verifier),
	))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)

	RegisterPredictionServiceServer(gs, &handler{svc: svc})

	s := &Server{gs: gs, health: healthSrv, log: logger}
	s.SetServing(svc.ModelStatus().Loaded)
	return s
}

// GRPC returns the underlying server for Serve and GracefulStop.
func (s *Server) GRPC() *grpclib.Server {
	return s.gs
}

// SetServing reports the prediction service health. It is NOT_SERVING while
// no model is loaded.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// GracefulStop stops the server gracefully.
func (s *Server) GracefulStop() {
	s.log.Info().Msg("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}

type handler struct {
	svc Predictions
}

func (h *handler) Predict(ctx context.Context, in *PredictRequest) (*models.PredictionOutcome, error) {
	userID, err := resolveUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	out, err := h.svc.PredictForUser(ctx, userID)
	if err != nil {
		return nil, statusFor(err)
	}
	return out, nil
}

func (h *handler) QuickPredict(ctx context.Context, in *QuickPredictRequest) (*models.PredictionOutcome, error) {
	out, err := h.svc.QuickPredict(ctx, in.Signals)
	if err != nil {
		return nil, statusFor(err)
	}
	return out, nil
}

func (h *handler) History(ctx context.Context, in *HistoryRequest) (*HistoryResponse, error) {
	userID, err := resolveUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := h.svc.History(ctx, userID, in.Limit)
	if err != nil {
		return nil, statusFor(err)
	}
	if entries == nil {
		entries = []*models.PredictionLogEntry{}
	}
	return &HistoryResponse{Entries: entries}, nil
}

func (h *handler) ModelStatus(context.Context, *ModelStatusRequest) (*model.Status, error) {
	st := h.svc.ModelStatus()
	return &st, nil
}

// resolveUser picks the authenticated user when present. A request naming a
// different user is rejected.
func resolveUser(ctx context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	authed := auth.UserID(ctx)
	switch {
	case authed == "" && requested == "":
		return "", status.Error(codes.InvalidArgument, "user_id is required")
	case authed == "":
		return requested, nil
	case requested != "" && requested != authed:
		return "", status.Error(codes.PermissionDenied, "token subject does not match user_id")
	default:
		return authed, nil
	}
}

// statusFor maps orchestrator errors to gRPC status codes.
func statusFor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, prediction.ErrModelUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, prediction.ErrProfileMissing):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, prediction.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func loggingInterceptor(logger zerolog.Logger) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, next grpclib.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		code := status.Code(err)
		ev := logger.Debug()
		if code == codes.Internal || code == codes.Unknown {
			ev = logger.Error().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("elapsed", time.Since(start)).
			Msg("gRPC call")
		return resp, err
	}
}

// authInterceptor verifies the bearer token in the "authorization" metadata.
// Health checks, model status and quick predictions stay anonymous.
func authInterceptor(verifier *auth.Verifier) grpclib.UnaryServerInterceptor {
	anonymous := map[string]bool{
		"/" + ServiceName + "/QuickPredict": true,
		"/" + ServiceName + "/ModelStatus":  true,
	}
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, next grpclib.UnaryHandler) (any, error) {
		if !verifier.Enabled() || anonymous[info.FullMethod] || strings.HasPrefix(info.FullMethod, "/grpc.health.v1.") {
			return next(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}
		userID, err := verifier.Verify(auth.BearerToken(values[0]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return next(auth.WithUserID(ctx, userID), req)
	}
}
