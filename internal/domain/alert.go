package domain

import "time"

// AlertType enumerates the notification classes
type AlertType string

const (
	AlertTypeLowCapacity          AlertType = "LOW_CAPACITY"
	AlertTypeMatchImminent        AlertType = "MATCH_IMMINENT"
	AlertTypeMatchCancelled       AlertType = "MATCH_CANCELLED"
	AlertTypeReservationConfirmed AlertType = "RESERVATION_CONFIRMED"
	AlertTypeMatchFull            AlertType = "MATCH_FULL"
)

var alertDescriptions = map[AlertType]string{
	AlertTypeLowCapacity:          "Few slots left",
	AlertTypeMatchImminent:        "Match starting soon",
	AlertTypeMatchCancelled:       "Match cancelled",
	AlertTypeReservationConfirmed: "Reservation confirmed",
	AlertTypeMatchFull:            "Match full",
}

// Valid reports whether t is a known alert type
func (t AlertType) Valid() bool {
	_, ok := alertDescriptions[t]
	return ok
}

// Description returns the human-readable name of the alert type
func (t AlertType) Description() string {
	return alertDescriptions[t]
}

// Alert is a typed notification record
type Alert struct {
	ID         int64     `json:"id"`
	Type       AlertType `json:"type"`
	Message    string    `json:"message"`
	MatchID    *int64    `json:"match_id,omitempty"`
	MatchTitle string    `json:"match_title,omitempty"`
	UserID     *int64    `json:"user_id,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertRequest is the input of alert creation
type AlertRequest struct {
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
	MatchID *int64    `json:"match_id,omitempty"`
	UserID  *int64    `json:"user_id,omitempty"`
}
