package domain

import "time"

// RatingRecord is a score a user received for a finished match. At most one
// record exists per (user, match).
type RatingRecord struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	MatchID    int64     `json:"match_id"`
	MatchTitle string    `json:"match_title,omitempty"`
	RaterID    *int64    `json:"rater_id,omitempty"`
	Score      float64   `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingRequest represents a request to rate a user for a match
type RatingRequest struct {
	UserID  int64   `json:"user_id"`
	MatchID int64   `json:"match_id"`
	RaterID *int64  `json:"rater_id,omitempty"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}
