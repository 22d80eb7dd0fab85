package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/team-balancer/internal/domain"
)

const ratingColumns = `
	r.id, r.user_id, COALESCE(u.name, ''), r.match_id, COALESCE(m.title, ''),
	r.rater_id, r.score, COALESCE(r.comment, ''), r.created_at
`

func scanRating(row pgx.Row) (*domain.RatingRecord, error) {
	var rec domain.RatingRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.UserName,
		&rec.MatchID,
		&rec.MatchTitle,
		&rec.RaterID,
		&rec.Score,
		&rec.Comment,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ScoresForUser returns every score the user received
func (r *Repository) ScoresForUser(ctx context.Context, userID int64) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT score FROM ratings WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("getting scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// RatingExists checks if the user was already rated for the match
func (r *Repository) RatingExists(ctx context.Context, userID, matchID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ratings WHERE user_id = $1 AND match_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, matchID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking rating existence: %w", err)
	}
	return exists, nil
}

// CreateRating stores a new rating record
func (r *Repository) CreateRating(ctx context.Context, req domain.RatingRequest) (*domain.RatingRecord, error) {
	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ratings (user_id, match_id, rater_id, score, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, req.UserID, req.MatchID, req.RaterID, req.Score, comment).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.BusinessRule("user %d was already rated for match %d", req.UserID, req.MatchID)
		}
		return nil, fmt.Errorf("creating rating: %w", err)
	}
	return r.GetRating(ctx, id)
}

// GetRating retrieves a rating by ID
func (r *Repository) GetRating(ctx context.Context, ratingID int64) (*domain.RatingRecord, error) {
	query := `SELECT ` + ratingColumns + `
		FROM ratings r
		LEFT JOIN users u ON u.id = r.user_id
		LEFT JOIN matches m ON m.id = r.match_id
		WHERE r.id = $1
	`
	rec, err := scanRating(r.pool.QueryRow(ctx, query, ratingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("rating", ratingID)
		}
		return nil, fmt.Errorf("getting rating: %w", err)
	}
	return rec, nil
}

// ListRatingsByMatch returns the ratings of a match, newest first
func (r *Repository) ListRatingsByMatch(ctx context.Context, matchID int64) ([]domain.RatingRecord, error) {
	query := `SELECT ` + ratingColumns + `
		FROM ratings r
		LEFT JOIN users u ON u.id = r.user_id
		LEFT JOIN matches m ON m.id = r.match_id
		WHERE r.match_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	defer rows.Close()

	records := []domain.RatingRecord{}
	for rows.Next() {
		rec, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// AverageForMatch returns the mean score of a match, 0 when it has none
func (r *Repository) AverageForMatch(ctx context.Context, matchID int64) (float64, error) {
	var avg float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(AVG(score), 0) FROM ratings WHERE match_id = $1`, matchID).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("averaging ratings: %w", err)
	}
	return avg, nil
}

// DeleteRating removes a rating
func (r *Repository) DeleteRating(ctx context.Context, ratingID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM ratings WHERE id = $1`, ratingID)
	if err != nil {
		return fmt.Errorf("deleting rating: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NotFound("rating", ratingID)
	}
	return nil
}
