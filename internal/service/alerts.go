package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/metrics"
)

// AlertStore is the persistence the alert service needs
type AlertStore interface {
	GetMatch(ctx context.Context, matchID int64) (*domain.Match, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	CreateAlert(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error)
	GetAlert(ctx context.Context, alertID int64) (*domain.Alert, error)
	ListAlertsByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Alert, error)
	MarkAlertRead(ctx context.Context, alertID int64) (*domain.Alert, error)
	MarkAllAlertsRead(ctx context.Context, userID int64) (int64, error)
	DeleteAlert(ctx context.Context, alertID int64) error
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher fans created alerts out to live subscribers
type Publisher interface {
	PublishAlert(alert domain.Alert)
}

// maxMessageLength bounds the free-text part of an alert
const maxMessageLength = 1000

// AlertService creates and maintains alert records
type AlertService struct {
	store     AlertStore
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewAlertService creates a new alert service. publisher and m may be nil.
func NewAlertService(store AlertStore, publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *AlertService {
	return &AlertService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates and stores an unread alert, then publishes it
func (s *AlertService) Create(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	if !req.Type.Valid() {
		return nil, domain.Validation("unknown alert type %q", req.Type)
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, domain.Validation("alert message is required")
	}
	if len(req.Message) > maxMessageLength {
		return nil, domain.Validation("alert message exceeds %d characters", maxMessageLength)
	}

	if req.MatchID != nil {
		if err := domain.ValidateID("match", *req.MatchID); err != nil {
			return nil, err
		}
		if _, err := s.store.GetMatch(ctx, *req.MatchID); err != nil {
			return nil, err
		}
	}
	if req.UserID != nil {
		if err := domain.ValidateID("user", *req.UserID); err != nil {
			return nil, err
		}
		if _, err := s.store.GetUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
	}

	alert, err := s.store.CreateAlert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	s.metrics.AlertCreated(string(alert.Type))
	if s.publisher != nil {
		s.publisher.PublishAlert(*alert)
	}

	s.logger.Debug("alert created", "alert_id", alert.ID, "type", alert.Type)
	return alert, nil
}

// Get returns a single alert
func (s *AlertService) Get(ctx context.Context, alertID int64) (*domain.Alert, error) {
	if err := domain.ValidateID("alert", alertID); err != nil {
		return nil, err
	}
	return s.store.GetAlert(ctx, alertID)
}

// ListByUser returns every alert addressed to a user, newest first
func (s *AlertService) ListByUser(ctx context.Context, userID int64) ([]domain.Alert, error) {
	return s.list(ctx, userID, false)
}

// ListUnreadByUser returns the unread alerts addressed to a user, newest first
func (s *AlertService) ListUnreadByUser(ctx context.Context, userID int64) ([]domain.Alert, error) {
	return s.list(ctx, userID, true)
}

func (s *AlertService) list(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Alert, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return nil, err
	}
	alerts, err := s.store.ListAlertsByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead flags an alert as read
func (s *AlertService) MarkRead(ctx context.Context, alertID int64) (*domain.Alert, error) {
	if err := domain.ValidateID("alert", alertID); err != nil {
		return nil, err
	}
	return s.store.MarkAlertRead(ctx, alertID)
}

// MarkAllRead flags every alert of a user as read and returns how many changed
func (s *AlertService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return 0, err
	}
	return s.store.MarkAllAlertsRead(ctx, userID)
}

// Delete removes an alert
func (s *AlertService) Delete(ctx context.Context, alertID int64) error {
	if err := domain.ValidateID("alert", alertID); err != nil {
		return err
	}
	return s.store.DeleteAlert(ctx, alertID)
}

// PurgeOlderThan removes alerts created more than days ago
func (s *AlertService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, domain.Validation("purge age must not be negative, got %d days", days)
	}
	cutoff := s.now().AddDate(0, 0, -days)

	removed, err := s.store.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging alerts: %w", err)
	}

	s.metrics.AlertsPurged(removed)
	s.logger.Info("alerts purged", "older_than_days", days, "removed", removed)
	return removed, nil
}
