// Package balance splits a match roster into skill- and size-balanced teams.
//
// The partition is a deterministic greedy approximation: participants are taken
// strongest first and each one joins the team with the lowest running skill sum.
// It is not guaranteed to be optimal.
package balance

import (
	"sort"

	"github.com/team-balancer/internal/domain"
)

// MinTeams is the smallest team count the partitioner accepts
const MinTeams = 2

// Candidate is a participant to be placed on a team
type Candidate struct {
	UserID int64
	Skill  float64
	// Order is the confirmation position in the roster, used to break skill ties
	Order int
}

// Assignment is one team produced by Partition
type Assignment struct {
	Index      int
	Members    []Candidate
	SkillTotal float64
}

// UserIDs returns the member ids in assignment order
func (a Assignment) UserIDs() []int64 {
	ids := make([]int64, len(a.Members))
	for i, m := range a.Members {
		ids[i] = m.UserID
	}
	return ids
}

// Partition distributes participants over teamCount teams.
//
// Participants are sorted by skill descending, ties broken by Order and then by
// UserID. Each participant joins the team with the lowest skill sum; ties go to
// the team with fewer members, then to the lowest index. Teams that already hold
// their share of the roster are skipped, so sizes never differ by more than one.
// The input slice is not modified.
func Partition(participants []Candidate, teamCount int) ([]Assignment, error) {
	if len(participants) == 0 {
		return nil, domain.Validation("cannot partition an empty roster")
	}
	if teamCount < MinTeams {
		return nil, domain.Validation("team count must be at least %d, got %d", MinTeams, teamCount)
	}
	if len(participants) < teamCount {
		return nil, domain.BusinessRule("%d participants cannot fill %d teams", len(participants), teamCount)
	}

	sorted := make([]Candidate, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Skill != b.Skill {
			return a.Skill > b.Skill
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.UserID < b.UserID
	})

	teams := make([]Assignment, teamCount)
	for i := range teams {
		teams[i] = Assignment{
			Index:   i,
			Members: make([]Candidate, 0, len(sorted)/teamCount+1),
		}
	}

	caps := newCapacity(len(sorted), teamCount)
	for _, c := range sorted {
		t := &teams[lightest(teams, caps)]
		caps.take(len(t.Members))
		t.Members = append(t.Members, c)
		t.SkillTotal += c.Skill
	}

	return teams, nil
}

// capacity tracks how many teams may still grow to base+1 members. Every team
// ends with base or base+1 members and exactly extra teams end with base+1.
type capacity struct {
	base  int
	extra int
}

func newCapacity(n, teamCount int) *capacity {
	return &capacity{base: n / teamCount, extra: n % teamCount}
}

func (c *capacity) accepts(size int) bool {
	return size < c.base || (size == c.base && c.extra > 0)
}

func (c *capacity) take(size int) {
	if size == c.base {
		c.extra--
	}
}

// lightest returns the index of the team that should receive the next participant
func lightest(teams []Assignment, caps *capacity) int {
	best := -1
	for i, t := range teams {
		if !caps.accepts(len(t.Members)) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := teams[best]
		switch {
		case t.SkillTotal < b.SkillTotal:
			best = i
		case t.SkillTotal == b.SkillTotal && len(t.Members) < len(b.Members):
			best = i
		}
	}
	return best
}

// Spread returns the gap between the strongest and weakest team skill sums
func Spread(teams []Assignment) float64 {
	if len(teams) == 0 {
		return 0
	}
	lo, hi := teams[0].SkillTotal, teams[0].SkillTotal
	for _, t := range teams[1:] {
		if t.SkillTotal < lo {
			lo = t.SkillTotal
		}
		if t.SkillTotal > hi {
			hi = t.SkillTotal
		}
	}
	return hi - lo
}

// SizeGap returns the difference between the largest and smallest team
func SizeGap(teams []Assignment) int {
	if len(teams) == 0 {
		return 0
	}
	lo, hi := len(teams[0].Members), len(teams[0].Members)
	for _, t := range teams[1:] {
		n := len(t.Members)
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	return hi - lo
}
