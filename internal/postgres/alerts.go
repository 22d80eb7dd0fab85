package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/team-balancer/internal/domain"
)

const alertColumns = `a.id, a.type, a.message, a.match_id, COALESCE(m.title, ''), a.user_id, a.read, a.created_at`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(&a.ID, &a.Type, &a.Message, &a.MatchID, &a.MatchTitle, &a.UserID, &a.Read, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAlert stores a new unread alert
func (r *Repository) CreateAlert(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO alerts (type, message, match_id, user_id, read)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`, string(req.Type), req.Message, req.MatchID, req.UserID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	return r.GetAlert(ctx, id)
}

// GetAlert retrieves an alert by ID
func (r *Repository) GetAlert(ctx context.Context, alertID int64) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts a
		LEFT JOIN matches m ON m.id = a.match_id
		WHERE a.id = $1
	`
	a, err := scanAlert(r.pool.QueryRow(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("alert", alertID)
		}
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	return a, nil
}

// ListAlertsByUser returns a user's alerts, newest first
func (r *Repository) ListAlertsByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts a
		LEFT JOIN matches m ON m.id = a.match_id
		WHERE a.user_id = $1 AND ($2 = FALSE OR a.read = FALSE)
		ORDER BY a.created_at DESC, a.id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead flags one alert as read
func (r *Repository) MarkAlertRead(ctx context.Context, alertID int64) (*domain.Alert, error) {
	result, err := r.pool.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return nil, fmt.Errorf("marking alert read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, domain.NotFound("alert", alertID)
	}
	return r.GetAlert(ctx, alertID)
}

// MarkAllAlertsRead flags every unread alert of a user as read
func (r *Repository) MarkAllAlertsRead(ctx context.Context, userID int64) (int64, error) {
	result, err := r.pool.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking alerts read: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteAlert removes an alert
func (r *Repository) DeleteAlert(ctx context.Context, alertID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFound("alert", alertID)
	}
	return nil
}

// DeleteAlertsBefore removes every alert created before cutoff
func (r *Repository) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging alerts: %w", err)
	}
	return result.RowsAffected(), nil
}
