// Package capacity evaluates remaining match slots after roster changes and
// raises the matching alerts.
package capacity

// DefaultLowThreshold is the slot count at or below which a match is low on capacity
const DefaultLowThreshold = 5

// Band classifies the remaining capacity of a match
type Band string

const (
	// BandOpen means more slots remain than the low threshold
	BandOpen Band = "open"
	// BandLow means 0 < slots <= threshold
	BandLow Band = "low"
	// BandFull means no slots remain. Full and low never overlap.
	BandFull Band = "full"
	// BandOver means the roster exceeds capacity; no alert is raised for it
	BandOver Band = "over"
)

// Signal is the evaluated capacity of a match at one point in time
type Signal struct {
	MatchID        int64 `json:"match_id"`
	MaxPlayers     int   `json:"max_players"`
	Confirmed      int   `json:"confirmed"`
	SlotsRemaining int   `json:"slots_remaining"`
	Threshold      int   `json:"threshold"`
	Band           Band  `json:"band"`
}

// Evaluate computes slotsRemaining = maxPlayers - confirmed and its band
func Evaluate(maxPlayers, confirmed, threshold int) Signal {
	slots := maxPlayers - confirmed
	s := Signal{
		MaxPlayers:     maxPlayers,
		Confirmed:      confirmed,
		SlotsRemaining: slots,
		Threshold:      threshold,
	}
	switch {
	case slots < 0:
		s.Band = BandOver
	case slots == 0:
		s.Band = BandFull
	case slots <= threshold:
		s.Band = BandLow
	default:
		s.Band = BandOpen
	}
	return s
}
