// Package skill derives a participant's skill value from the ratings they
// received in finished matches.
package skill

import (
	"context"
	"fmt"

	"github.com/team-balancer/internal/domain"
)

// RatingSource returns the scores a user received. Only ratings on finished
// matches exist, so no status filter is applied here.
type RatingSource interface {
	ScoresForUser(ctx context.Context, userID int64) ([]float64, error)
}

// Scale is the closed range of valid rating scores
type Scale struct {
	Min float64
	Max float64
}

// Neutral returns the midpoint of the scale
func (s Scale) Neutral() float64 {
	return (s.Min + s.Max) / 2
}

// Contains reports whether score lies within the scale
func (s Scale) Contains(score float64) bool {
	return score >= s.Min && score <= s.Max
}

// Estimator computes skill estimates on demand. It keeps no state between
// calls and is safe for concurrent use.
type Estimator struct {
	source RatingSource
	scale  Scale
}

// NewEstimator creates an estimator over the given rating source
func NewEstimator(source RatingSource, scale Scale) *Estimator {
	return &Estimator{source: source, scale: scale}
}

// Scale returns the rating scale the estimator was built with
func (e *Estimator) Scale() Scale {
	return e.scale
}

// Estimate returns the mean rating of a user, or the neutral value when the user
// has not been rated yet.
func (e *Estimator) Estimate(ctx context.Context, userID int64) (domain.SkillEstimate, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return domain.SkillEstimate{}, err
	}

	scores, err := e.source.ScoresForUser(ctx, userID)
	if err != nil {
		return domain.SkillEstimate{}, fmt.Errorf("loading ratings for user %d: %w", userID, err)
	}

	if len(scores) == 0 {
		return domain.SkillEstimate{
			UserID:  userID,
			Value:   e.scale.Neutral(),
			Default: true,
		}, nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return domain.SkillEstimate{
		UserID:  userID,
		Value:   sum / float64(len(scores)),
		Samples: len(scores),
	}, nil
}

// EstimateAll estimates every user in ids. Duplicate ids are looked up once;
// the memo lives only for this call.
func (e *Estimator) EstimateAll(ctx context.Context, ids []int64) (map[int64]domain.SkillEstimate, error) {
	memo := make(map[int64]domain.SkillEstimate, len(ids))
	for _, id := range ids {
		if _, ok := memo[id]; ok {
			continue
		}
		est, err := e.Estimate(ctx, id)
		if err != nil {
			return nil, err
		}
		memo[id] = est
	}
	return memo, nil
}
