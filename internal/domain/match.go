package domain

import "time"

// MatchStatus represents the lifecycle state of a match
type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "SCHEDULED"
	MatchStatusFull       MatchStatus = "FULL"
	MatchStatusInProgress MatchStatus = "IN_PROGRESS"
	MatchStatusFinished   MatchStatus = "FINISHED"
	MatchStatusCancelled  MatchStatus = "CANCELLED"
)

// Valid reports whether s is a known status
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusScheduled, MatchStatusFull, MatchStatusInProgress, MatchStatusFinished, MatchStatusCancelled:
		return true
	}
	return false
}

// AcceptsTeams reports whether teams may be generated for a match in this status
func (s MatchStatus) AcceptsTeams() bool {
	return s != MatchStatusCancelled && s != MatchStatusFinished
}

// Match is a scheduled game. It is owned by the match-lifecycle collaborator and
// only read here.
type Match struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	ScheduledAt    time.Time   `json:"scheduled_at"`
	MaxPlayers     int         `json:"max_players"`
	ConfirmedCount int         `json:"confirmed_count"`
	Status         MatchStatus `json:"status"`
}

// Participant is a user confirmed into a match roster
type Participant struct {
	UserID      int64     `json:"user_id"`
	Position    string    `json:"position,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// User holds the display data of a player
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
