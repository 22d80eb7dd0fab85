package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/team-balancer/internal/domain"
)

// GetMatch retrieves a match with its confirmed participant count
func (r *Repository) GetMatch(ctx context.Context, matchID int64) (*domain.Match, error) {
	query := `
		SELECT m.id, m.title, m.scheduled_at, m.max_players, m.status,
			(SELECT COUNT(*) FROM match_participants p
			 WHERE p.match_id = m.id AND p.status = 'CONFIRMED') AS confirmed
		FROM matches m
		WHERE m.id = $1
	`
	var m domain.Match
	err := r.pool.QueryRow(ctx, query, matchID).Scan(
		&m.ID,
		&m.Title,
		&m.ScheduledAt,
		&m.MaxPlayers,
		&m.Status,
		&m.ConfirmedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("match", matchID)
		}
		return nil, fmt.Errorf("getting match: %w", err)
	}
	return &m, nil
}

// ConfirmedParticipants lists a match roster in confirmation order
func (r *Repository) ConfirmedParticipants(ctx context.Context, matchID int64) ([]domain.Participant, error) {
	query := `
		SELECT user_id, COALESCE(position, ''), confirmed_at
		FROM match_participants
		WHERE match_id = $1 AND status = 'CONFIRMED'
		ORDER BY confirmed_at ASC, user_id ASC
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.Position, &p.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	return participants, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT id, name, COALESCE(email, '') FROM users WHERE id = $1`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("user", userID)
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// UserNames resolves display names for the given ids. Unknown ids are absent
// from the result.
func (r *Repository) UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("resolving user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning user name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
