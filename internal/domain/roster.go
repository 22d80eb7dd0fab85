package domain

import "time"

// RosterEventType identifies a change published by the match-lifecycle service
type RosterEventType string

const (
	RosterEventJoined       RosterEventType = "participant_joined"
	RosterEventLeft         RosterEventType = "participant_left"
	RosterEventCancelled    RosterEventType = "match_cancelled"
	RosterEventStartingSoon RosterEventType = "match_starting_soon"
)

// RosterEvent is a state-changing event on a match roster. ConfirmedCount is
// the roster size right after the change, when the publisher knows it.
type RosterEvent struct {
	Type           RosterEventType `json:"type"`
	MatchID        int64           `json:"match_id"`
	UserID         int64           `json:"user_id,omitempty"`
	ConfirmedCount *int            `json:"confirmed_count,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
