package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/skill"
)

func newRatingFixture() (*RatingService, *memStore) {
	store := newMemStore()
	store.addMatch(1, domain.MatchStatusFinished, 10)
	store.addMatch(2, domain.MatchStatusScheduled, 10)
	store.addUser(5, "Dana")
	store.addUser(6, "Eli")
	estimator := skill.NewEstimator(store, skill.Scale{Min: 1, Max: 10})
	return NewRatingService(store, estimator, testLogger()), store
}

func TestRatingService_Create(t *testing.T) {
	svc, _ := newRatingFixture()

	rec, err := svc.Create(context.Background(), domain.RatingRequest{
		UserID:  5,
		MatchID: 1,
		RaterID: int64Ptr(6),
		Score:   7.5,
		Comment: " solid defence ",
	})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.Equal(t, "Dana", rec.UserName)
	assert.Equal(t, "solid defence", rec.Comment)
	assert.InDelta(t, 7.5, rec.Score, 1e-9)
}

func TestRatingService_CreateRejects(t *testing.T) {
	tests := []struct {
		name string
		req  domain.RatingRequest
		kind error
	}{
		{"score below scale", domain.RatingRequest{UserID: 5, MatchID: 1, Score: 0.5}, domain.ErrValidation},
		{"score above scale", domain.RatingRequest{UserID: 5, MatchID: 1, Score: 10.5}, domain.ErrValidation},
		{"bad user id", domain.RatingRequest{UserID: 0, MatchID: 1, Score: 5}, domain.ErrValidation},
		{"bad match id", domain.RatingRequest{UserID: 5, MatchID: -3, Score: 5}, domain.ErrValidation},
		{"self rating", domain.RatingRequest{UserID: 5, MatchID: 1, RaterID: int64Ptr(5), Score: 5}, domain.ErrBusinessRule},
		{"match not finished", domain.RatingRequest{UserID: 5, MatchID: 2, Score: 5}, domain.ErrBusinessRule},
		{"missing match", domain.RatingRequest{UserID: 5, MatchID: 9, Score: 5}, domain.ErrNotFound},
		{"missing user", domain.RatingRequest{UserID: 77, MatchID: 1, Score: 5}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newRatingFixture()
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.kind)
			assert.Empty(t, store.ratings)
		})
	}
}

func TestRatingService_DuplicateRating(t *testing.T) {
	svc, _ := newRatingFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.RatingRequest{UserID: 5, MatchID: 1, Score: 6})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.RatingRequest{UserID: 5, MatchID: 1, Score: 8})
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}

func TestRatingService_MatchAggregates(t *testing.T) {
	svc, _ := newRatingFixture()
	ctx := context.Background()

	avg, err := svc.AverageForMatch(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, avg)

	_, err = svc.Create(ctx, domain.RatingRequest{UserID: 5, MatchID: 1, Score: 6})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.RatingRequest{UserID: 6, MatchID: 1, Score: 9})
	require.NoError(t, err)

	avg, err = svc.AverageForMatch(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, avg, 1e-9)

	list, err := svc.ListByMatch(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListByMatch(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRatingService_GetAndDelete(t *testing.T) {
	svc, _ := newRatingFixture()
	ctx := context.Background()

	rec, err := svc.Create(ctx, domain.RatingRequest{UserID: 5, MatchID: 1, Score: 4})
	require.NoError(t, err)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	require.NoError(t, svc.Delete(ctx, rec.ID))
	assert.ErrorIs(t, svc.Delete(ctx, rec.ID), domain.ErrNotFound)
	_, err = svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRatingService_Skill(t *testing.T) {
	svc, _ := newRatingFixture()
	ctx := context.Background()

	est, err := svc.Skill(ctx, 5)
	require.NoError(t, err)
	assert.True(t, est.Default)
	assert.InDelta(t, 5.5, est.Value, 1e-9)

	_, err = svc.Create(ctx, domain.RatingRequest{UserID: 5, MatchID: 1, Score: 8})
	require.NoError(t, err)

	est, err = svc.Skill(ctx, 5)
	require.NoError(t, err)
	assert.False(t, est.Default)
	assert.Equal(t, 1, est.Samples)
	assert.InDelta(t, 8.0, est.Value, 1e-9)

	_, err = svc.Skill(ctx, 77)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
