package domain

import (
	"fmt"
	"time"
)

// TeamMember is a participant placed on a team, with the skill value used when
// the team was balanced.
type TeamMember struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name,omitempty"`
	Skill  float64 `json:"skill"`
	Order  int     `json:"order"`
}

// Team is one side of a balanced match
type Team struct {
	ID         int64        `json:"id"`
	MatchID    int64        `json:"match_id"`
	Index      int          `json:"index"`
	Label      string       `json:"label"`
	Members    []TeamMember `json:"members"`
	SkillTotal float64      `json:"skill_total"`
	CreatedAt  time.Time    `json:"created_at"`
}

// MemberIDs returns the member user ids in assignment order
func (t Team) MemberIDs() []int64 {
	ids := make([]int64, len(t.Members))
	for i, m := range t.Members {
		ids[i] = m.UserID
	}
	return ids
}

// TeamLabel returns "Team A", "Team B", ... and falls back to a number past Z
func TeamLabel(index int) string {
	if index >= 0 && index < 26 {
		return fmt.Sprintf("Team %c", 'A'+index)
	}
	return fmt.Sprintf("Team %d", index+1)
}

// SkillEstimate is a derived, never persisted skill value
type SkillEstimate struct {
	UserID  int64   `json:"user_id"`
	Value   float64 `json:"value"`
	Samples int     `json:"samples"`
	Default bool    `json:"default"`
}
