package capacity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/team-balancer/internal/domain"
)

// MatchReader is the read side of the match-lifecycle collaborator
type MatchReader interface {
	GetMatch(ctx context.Context, matchID int64) (*domain.Match, error)
	ConfirmedParticipants(ctx context.Context, matchID int64) ([]domain.Participant, error)
}

// AlertSink accepts alert-creation requests
type AlertSink interface {
	Create(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error)
}

// Notifier turns roster events into alerts. Each state-changing event is
// evaluated once; duplicate suppression is left to the alert sink.
type Notifier struct {
	matches   MatchReader
	alerts    AlertSink
	threshold int
	logger    *slog.Logger
}

// NewNotifier creates a new capacity notifier
func NewNotifier(matches MatchReader, alerts AlertSink, threshold int, logger *slog.Logger) *Notifier {
	if threshold <= 0 {
		threshold = DefaultLowThreshold
	}
	return &Notifier{
		matches:   matches,
		alerts:    alerts,
		threshold: threshold,
		logger:    logger,
	}
}

// Check returns the current capacity signal of a match without side effects
func (n *Notifier) Check(ctx context.Context, matchID int64) (Signal, error) {
	if err := domain.ValidateID("match", matchID); err != nil {
		return Signal{}, err
	}
	match, err := n.matches.GetMatch(ctx, matchID)
	if err != nil {
		return Signal{}, err
	}
	s := Evaluate(match.MaxPlayers, match.ConfirmedCount, n.threshold)
	s.MatchID = match.ID
	return s, nil
}

// HandleRosterEvent raises the alerts that follow from one roster change
func (n *Notifier) HandleRosterEvent(ctx context.Context, event domain.RosterEvent) error {
	if err := domain.ValidateID("match", event.MatchID); err != nil {
		return err
	}

	match, err := n.matches.GetMatch(ctx, event.MatchID)
	if err != nil {
		return fmt.Errorf("loading match %d: %w", event.MatchID, err)
	}

	switch event.Type {
	case domain.RosterEventJoined:
		if event.UserID > 0 {
			userID := event.UserID
			if _, err := n.alerts.Create(ctx, domain.AlertRequest{
				Type:    domain.AlertTypeReservationConfirmed,
				Message: fmt.Sprintf("Your reservation for match '%s' is confirmed", match.Title),
				MatchID: &match.ID,
				UserID:  &userID,
			}); err != nil {
				return fmt.Errorf("creating reservation alert: %w", err)
			}
		}
		return n.raiseCapacity(ctx, match, event)

	case domain.RosterEventLeft:
		return n.raiseCapacity(ctx, match, event)

	case domain.RosterEventCancelled:
		return n.notifyRoster(ctx, match, domain.AlertTypeMatchCancelled,
			fmt.Sprintf("Match '%s' has been cancelled", match.Title))

	case domain.RosterEventStartingSoon:
		return n.notifyRoster(ctx, match, domain.AlertTypeMatchImminent,
			fmt.Sprintf("Match '%s' starts soon. Kick-off: %s", match.Title, match.ScheduledAt.Format("2006-01-02 15:04")))

	default:
		return domain.Validation("unknown roster event type %q", event.Type)
	}
}

// raiseCapacity creates at most one capacity alert for the roster size the
// event reports. Events without a count fall back to the match's count at
// consumption time, which may already include later changes.
func (n *Notifier) raiseCapacity(ctx context.Context, match *domain.Match, event domain.RosterEvent) error {
	confirmed := match.ConfirmedCount
	if event.ConfirmedCount != nil {
		confirmed = *event.ConfirmedCount
	}
	s := Evaluate(match.MaxPlayers, confirmed, n.threshold)

	var req domain.AlertRequest
	switch s.Band {
	case BandLow:
		req = domain.AlertRequest{
			Type:    domain.AlertTypeLowCapacity,
			Message: fmt.Sprintf("Match '%s' has only %d slots left", match.Title, s.SlotsRemaining),
		}
	case BandFull:
		req = domain.AlertRequest{
			Type:    domain.AlertTypeMatchFull,
			Message: fmt.Sprintf("Match '%s' is full", match.Title),
		}
	case BandOver:
		n.logger.Warn("roster exceeds match capacity",
			"match_id", match.ID,
			"max_players", match.MaxPlayers,
			"confirmed", confirmed,
		)
		return nil
	default:
		return nil
	}

	req.MatchID = &match.ID
	if _, err := n.alerts.Create(ctx, req); err != nil {
		return fmt.Errorf("creating %s alert: %w", req.Type, err)
	}
	n.logger.Info("capacity alert raised",
		"match_id", match.ID,
		"type", req.Type,
		"slots_remaining", s.SlotsRemaining,
	)
	return nil
}

// notifyRoster sends one alert to every confirmed participant of a match
func (n *Notifier) notifyRoster(ctx context.Context, match *domain.Match, alertType domain.AlertType, message string) error {
	participants, err := n.matches.ConfirmedParticipants(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("loading participants of match %d: %w", match.ID, err)
	}
	for _, p := range participants {
		userID := p.UserID
		if _, err := n.alerts.Create(ctx, domain.AlertRequest{
			Type:    alertType,
			Message: message,
			MatchID: &match.ID,
			UserID:  &userID,
		}); err != nil {
			return fmt.Errorf("creating %s alert for user %d: %w", alertType, userID, err)
		}
	}
	return nil
}
