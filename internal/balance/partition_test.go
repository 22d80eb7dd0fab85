package balance_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team-balancer/internal/balance"
	"github.com/team-balancer/internal/domain"
)

func roster(skills ...float64) []balance.Candidate {
	out := make([]balance.Candidate, len(skills))
	for i, s := range skills {
		out[i] = balance.Candidate{UserID: int64(i + 1), Skill: s, Order: i}
	}
	return out
}

func skillsOf(a balance.Assignment) []float64 {
	out := make([]float64, len(a.Members))
	for i, m := range a.Members {
		out[i] = m.Skill
	}
	return out
}

func TestPartition_EightPlayersTwoTeams(t *testing.T) {
	teams, err := balance.Partition(roster(9, 8, 7, 6, 5, 4, 3, 2), 2)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	assert.Equal(t, []float64{9, 6, 5, 2}, skillsOf(teams[0]))
	assert.Equal(t, []float64{8, 7, 4, 3}, skillsOf(teams[1]))
	assert.Equal(t, 22.0, teams[0].SkillTotal)
	assert.Equal(t, 22.0, teams[1].SkillTotal)
	assert.Equal(t, 0.0, balance.Spread(teams))
}

func TestPartition_UnsortedInputIsSortedBySkill(t *testing.T) {
	teams, err := balance.Partition(roster(2, 9, 5, 7, 3, 8, 6, 4), 2)
	require.NoError(t, err)

	assert.Equal(t, []float64{9, 6, 5, 2}, skillsOf(teams[0]))
	assert.Equal(t, []float64{8, 7, 4, 3}, skillsOf(teams[1]))
}

func TestPartition_TiesUseConfirmationOrder(t *testing.T) {
	in := []balance.Candidate{
		{UserID: 40, Skill: 5, Order: 3},
		{UserID: 10, Skill: 5, Order: 0},
		{UserID: 30, Skill: 5, Order: 2},
		{UserID: 20, Skill: 5, Order: 1},
	}

	teams, err := balance.Partition(in, 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 30}, teams[0].UserIDs())
	assert.Equal(t, []int64{20, 40}, teams[1].UserIDs())
}

func TestPartition_SizeCapOverridesSkillSum(t *testing.T) {
	teams, err := balance.Partition(roster(10, 1, 1, 1), 2)
	require.NoError(t, err)

	assert.Len(t, teams[0].Members, 2)
	assert.Len(t, teams[1].Members, 2)
	assert.Equal(t, []float64{10, 1}, skillsOf(teams[0]))
}

func TestPartition_OddRoster(t *testing.T) {
	teams, err := balance.Partition(roster(7, 6, 5, 4, 3), 2)
	require.NoError(t, err)

	assert.Equal(t, 1, balance.SizeGap(teams))
	assert.Len(t, teams[0].Members, 3)
	assert.Len(t, teams[1].Members, 2)
}

func TestPartition_HighestTwoSplit(t *testing.T) {
	for n := 2; n <= 12; n++ {
		skills := make([]float64, n)
		for i := range skills {
			skills[i] = float64(i + 1)
		}
		teams, err := balance.Partition(roster(skills...), 2)
		require.NoError(t, err)

		top := float64(n)
		second := float64(n - 1)
		assert.Equal(t, top, teams[0].Members[0].Skill, "n=%d", n)
		assert.Equal(t, second, teams[1].Members[0].Skill, "n=%d", n)
	}
}

func TestPartition_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(30) + 2
		k := rng.Intn(n-1) + 2
		if k > n {
			k = n
		}
		in := make([]balance.Candidate, n)
		for i := range in {
			in[i] = balance.Candidate{
				UserID: int64(1000 + i),
				Skill:  float64(rng.Intn(10) + 1),
				Order:  i,
			}
		}

		teams, err := balance.Partition(in, k)
		require.NoError(t, err)
		require.Len(t, teams, k)

		seen := make(map[int64]int)
		for idx, team := range teams {
			assert.Equal(t, idx, team.Index)
			assert.NotEmpty(t, team.Members)
			for _, m := range team.Members {
				seen[m.UserID]++
			}
		}
		assert.Len(t, seen, n, "every participant placed")
		for id, c := range seen {
			assert.Equal(t, 1, c, "participant %d placed once", id)
		}
		assert.LessOrEqual(t, balance.SizeGap(teams), 1)

		again, err := balance.Partition(in, k)
		require.NoError(t, err)
		assert.Equal(t, teams, again)
	}
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	in := roster(1, 5, 3)
	snapshot := append([]balance.Candidate(nil), in...)

	_, err := balance.Partition(in, 2)
	require.NoError(t, err)
	assert.Equal(t, snapshot, in)
}

func TestPartition_Errors(t *testing.T) {
	_, err := balance.Partition(nil, 2)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = balance.Partition(roster(1, 2, 3), 1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = balance.Partition(roster(1, 2), 3)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}
