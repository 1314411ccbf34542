package worker

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ecoscore/internal/auth"
	"github.com/thebtf/ecoscore/internal/db/gorm"
	"github.com/thebtf/ecoscore/internal/prediction"
	"github.com/thebtf/ecoscore/pkg/models"
)

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps orchestrator and store errors to HTTP statuses.
func (s *Service) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, prediction.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, prediction.ErrProfileMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prediction.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body into v. It reports a 400 or 413 and
// returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// handleHealth returns 200 immediately, even during init.
// Use /api/ready for the full readiness check.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	} else if err := s.GetInitError(); err != nil {
		status = "error"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleVersion returns the worker version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleReady returns 200 only when fully initialized, 503 otherwise.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		if err := s.GetInitError(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "service initializing")
		return
	}

	_, predictions := s.components()
	s.initMu.RLock()
	store := s.store
	s.initMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"model":            predictions.ModelStatus(),
		"database":         store.HealthCheck(r.Context()),
		"quick_rate_limit": s.quickLimiter.Stats(),
	})
}

// requireReady is middleware that returns 503 if the service isn't ready.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				writeError(w, http.StatusInternalServerError, "service initialization failed: "+err.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, "service initializing")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	_, predictions := s.components()
	writeJSON(w, http.StatusOK, predictions.ModelStatus())
}

func (s *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	_, predictions := s.components()
	out, err := predictions.PredictForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleQuickPredict scores the signal map in the body without storing it.
func (s *Service) handleQuickPredict(w http.ResponseWriter, r *http.Request) {
	var raw models.Signals
	if !decodeBody(w, r, &raw) {
		return
	}

	_, predictions := s.components()
	out, err := predictions.QuickPredict(r.Context(), raw)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := gorm.ParseLimitParamWithMax(r, prediction.DefaultHistoryLimit, prediction.MaxHistoryLimit)

	_, predictions := s.components()
	entries, err := predictions.History(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.PredictionLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": limit})
}

func (s *Service) handleAverage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	_, predictions := s.components()
	avg, err := predictions.Average(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "average": avg})
}

func (s *Service) handleTrend(w http.ResponseWriter, r *http.Request) {
	window := gorm.ParseIntParamWithMax(r, "window", prediction.DefaultTrendWindow, prediction.MaxHistoryLimit)

	_, predictions := s.components()
	trend, err := predictions.Trend(r.Context(), auth.UserID(r.Context()), window)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	repos, _ := s.components()
	p, err := repos.Profiles.GetProfile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if p == nil {
		s.writeServiceError(w, r, prediction.ErrProfileMissing)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p models.EcoProfile
	if !decodeBody(w, r, &p) {
		return
	}
	p.UserID = auth.UserID(r.Context())

	if p.HouseholdSize < 0 {
		writeError(w, http.StatusBadRequest, "household_size must not be negative")
		return
	}
	if p.RenewableEnergyPercent < 0 || p.RenewableEnergyPercent > 100 {
		writeError(w, http.StatusBadRequest, "renewable_energy_percent must be within 0-100")
		return
	}

	repos, _ := s.components()
	if err := repos.Profiles.UpsertProfile(r.Context(), &p); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

func (s *Service) handlePutDailyLog(w http.ResponseWriter, r *http.Request) {
	var d models.DailyLog
	if !decodeBody(w, r, &d) {
		return
	}
	d.UserID = auth.UserID(r.Context())

	date, ok := s.resolveDate(w, d.Date)
	if !ok {
		return
	}
	d.Date = date

	repos, _ := s.components()
	if err := repos.DailyLogs.UpsertDailyLog(r.Context(), &d); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &d)
}

func (s *Service) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var t models.Trip
	if !decodeBody(w, r, &t) {
		return
	}
	t.ID = 0
	t.UserID = auth.UserID(r.Context())

	if strings.TrimSpace(t.TransportMode) == "" {
		writeError(w, http.StatusBadRequest, "transport_mode is required")
		return
	}
	if t.DistanceKm < 0 {
		writeError(w, http.StatusBadRequest, "distance_km must not be negative")
		return
	}
	date, ok := s.resolveDate(w, t.Date)
	if !ok {
		return
	}
	t.Date = date

	repos, _ := s.components()
	if err := repos.Trips.CreateTrip(r.Context(), &t); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &t)
}

func (s *Service) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var a models.Activity
	if !decodeBody(w, r, &a) {
		return
	}
	a.ID = 0
	a.UserID = auth.UserID(r.Context())

	if strings.TrimSpace(a.TypeName) == "" {
		writeError(w, http.StatusBadRequest, "type_name is required")
		return
	}
	date, ok := s.resolveDate(w, a.Date)
	if !ok {
		return
	}
	a.Date = date

	repos, _ := s.components()
	if err := repos.Activities.CreateActivity(r.Context(), &a); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &a)
}

// handlePutWeeklyLog stores the weekly log. Any date within the week is
// accepted and normalized to that week's Monday.
func (s *Service) handlePutWeeklyLog(w http.ResponseWriter, r *http.Request) {
	var wl models.WeeklyLog
	if !decodeBody(w, r, &wl) {
		return
	}
	wl.UserID = auth.UserID(r.Context())

	date, ok := s.resolveDate(w, wl.WeekStart)
	if !ok {
		return
	}
	day, _ := time.Parse(time.DateOnly, date)
	wl.WeekStart = models.DayKey(models.WeekStart(day))

	repos, _ := s.components()
	if err := repos.WeeklyLogs.UpsertWeeklyLog(r.Context(), &wl); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &wl)
}

// resolveDate defaults an empty date to today and validates YYYY-MM-DD.
func (s *Service) resolveDate(w http.ResponseWriter, date string) (string, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return models.DayKey(s.now()), true
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}
