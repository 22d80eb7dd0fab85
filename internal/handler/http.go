package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/team-balancer/internal/capacity"
	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/metrics"
	"github.com/team-balancer/internal/websocket"
)

// Teams is the team engine as seen by the API
type Teams interface {
	GenerateTeams(ctx context.Context, matchID int64) ([]domain.Team, error)
	GetTeams(ctx context.Context, matchID int64) ([]domain.Team, error)
	GetTeam(ctx context.Context, teamID int64) (*domain.Team, error)
	DeleteTeams(ctx context.Context, matchID int64) error
}

// Alerts is the alert store as seen by the API
type Alerts interface {
	Create(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Alert, error)
	ListUnreadByUser(ctx context.Context, userID int64) ([]domain.Alert, error)
	MarkRead(ctx context.Context, alertID int64) (*domain.Alert, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, alertID int64) error
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// Ratings is the rating store as seen by the API
type Ratings interface {
	Create(ctx context.Context, req domain.RatingRequest) (*domain.RatingRecord, error)
	Get(ctx context.Context, ratingID int64) (*domain.RatingRecord, error)
	Delete(ctx context.Context, ratingID int64) error
	ListByMatch(ctx context.Context, matchID int64) ([]domain.RatingRecord, error)
	AverageForMatch(ctx context.Context, matchID int64) (float64, error)
	Skill(ctx context.Context, userID int64) (domain.SkillEstimate, error)
}

// Capacity reports the capacity signal of a match
type Capacity interface {
	Check(ctx context.Context, matchID int64) (capacity.Signal, error)
}

// Pinger is a dependency checked by the readiness endpoint
type Pinger func(ctx context.Context) error

// Handler provides HTTP handlers for the team balancer API
type Handler struct {
	teams    Teams
	alerts   Alerts
	ratings  Ratings
	capacity Capacity
	hub      *websocket.Hub
	metrics  *metrics.Metrics
	checks   map[string]Pinger
	logger   *slog.Logger

	retentionDays int
}

// Config groups the collaborators of the handler
type Config struct {
	Teams         Teams
	Alerts        Alerts
	Ratings       Ratings
	Capacity      Capacity
	Hub           *websocket.Hub
	Metrics       *metrics.Metrics
	ReadyChecks   map[string]Pinger
	RetentionDays int
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg Config, logger *slog.Logger) *Handler {
	return &Handler{
		teams:         cfg.Teams,
		alerts:        cfg.Alerts,
		ratings:       cfg.Ratings,
		capacity:      cfg.Capacity,
		hub:           cfg.Hub,
		metrics:       cfg.Metrics,
		checks:        cfg.ReadyChecks,
		logger:        logger,
		retentionDays: cfg.RetentionDays,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(h.metrics.Middleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/teams", func(r chi.Router) {
			r.Post("/match/{matchID}/generate", h.GenerateTeams)
			r.Get("/match/{matchID}", h.GetTeamsByMatch)
			r.Delete("/match/{matchID}", h.DeleteTeams)
			r.Get("/{teamID}", h.GetTeam)
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/capacity", h.GetCapacity)
			r.Get("/ratings", h.ListMatchRatings)
			r.Get("/ratings/average", h.GetMatchAverage)
		})

		r.Route("/ratings", func(r chi.Router) {
			r.Post("/", h.CreateRating)
			r.Get("/{ratingID}", h.GetRating)
			r.Delete("/{ratingID}", h.DeleteRating)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", h.CreateAlert)
			r.Post("/purge", h.PurgeAlerts)
			r.Put("/{alertID}/read", h.MarkAlertRead)
			r.Delete("/{alertID}", h.DeleteAlert)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/skill", h.GetUserSkill)
			r.Get("/alerts", h.ListUserAlerts)
			r.Put("/alerts/read", h.MarkAllAlertsRead)
		})

		if h.hub != nil {
			r.Get("/ws/stats", h.GetWebSocketStats)
		}
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a service error onto an HTTP status. Unexpected errors
// are logged and hidden behind a generic message.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if domain.IsClientError(err) {
		h.logger.Debug("request rejected", "op", op, "reason", domain.Reason(err))
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, errors.New(domain.Reason(err)))
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, errors.New(domain.Reason(err)))
	case errors.Is(err, domain.ErrBusinessRule):
		h.writeError(w, http.StatusUnprocessableEntity, errors.New(domain.Reason(err)))
	case errors.Is(err, domain.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		h.writeError(w, http.StatusConflict, errors.New(domain.Reason(err)))
	default:
		h.logger.Error("request failed",
			"op", op,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    status,
			Error:   "not ready",
		})
		return
	}
	status["status"] = "ready"
	h.writeSuccess(w, status)
}
