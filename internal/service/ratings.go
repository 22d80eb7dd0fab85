package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/skill"
)

// RatingStore is the persistence the rating service needs
type RatingStore interface {
	GetMatch(ctx context.Context, matchID int64) (*domain.Match, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	RatingExists(ctx context.Context, userID, matchID int64) (bool, error)
	CreateRating(ctx context.Context, req domain.RatingRequest) (*domain.RatingRecord, error)
	GetRating(ctx context.Context, ratingID int64) (*domain.RatingRecord, error)
	ListRatingsByMatch(ctx context.Context, matchID int64) ([]domain.RatingRecord, error)
	AverageForMatch(ctx context.Context, matchID int64) (float64, error)
	DeleteRating(ctx context.Context, ratingID int64) error
}

// maxCommentLength bounds the free-text part of a rating
const maxCommentLength = 500

// RatingService records ratings and exposes the skill derived from them
type RatingService struct {
	store     RatingStore
	estimator *skill.Estimator
	logger    *slog.Logger
}

// NewRatingService creates a new rating service
func NewRatingService(store RatingStore, estimator *skill.Estimator, logger *slog.Logger) *RatingService {
	return &RatingService{
		store:     store,
		estimator: estimator,
		logger:    logger,
	}
}

// Create records a rating for a participant of a finished match. A user is
// rated at most once per match.
func (s *RatingService) Create(ctx context.Context, req domain.RatingRequest) (*domain.RatingRecord, error) {
	if err := domain.ValidateID("user", req.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateID("match", req.MatchID); err != nil {
		return nil, err
	}
	if req.RaterID != nil {
		if err := domain.ValidateID("rater", *req.RaterID); err != nil {
			return nil, err
		}
		if *req.RaterID == req.UserID {
			return nil, domain.BusinessRule("users cannot rate themselves")
		}
	}
	scale := s.estimator.Scale()
	if !scale.Contains(req.Score) {
		return nil, domain.Validation("score must be between %v and %v, got %v", scale.Min, scale.Max, req.Score)
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if len(req.Comment) > maxCommentLength {
		return nil, domain.Validation("comment exceeds %d characters", maxCommentLength)
	}

	match, err := s.store.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status != domain.MatchStatusFinished {
		return nil, domain.BusinessRule("match %d is %s, ratings are accepted only after it finished", match.ID, match.Status)
	}

	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	exists, err := s.store.RatingExists(ctx, req.UserID, req.MatchID)
	if err != nil {
		return nil, fmt.Errorf("checking existing rating: %w", err)
	}
	if exists {
		return nil, domain.BusinessRule("user %d was already rated for match %d", req.UserID, req.MatchID)
	}

	rec, err := s.store.CreateRating(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("rating recorded", "rating_id", rec.ID, "user_id", rec.UserID, "match_id", rec.MatchID)
	return rec, nil
}

// Get returns a single rating
func (s *RatingService) Get(ctx context.Context, ratingID int64) (*domain.RatingRecord, error) {
	if err := domain.ValidateID("rating", ratingID); err != nil {
		return nil, err
	}
	return s.store.GetRating(ctx, ratingID)
}

// ListByMatch returns the ratings given in a match
func (s *RatingService) ListByMatch(ctx context.Context, matchID int64) ([]domain.RatingRecord, error) {
	if err := domain.ValidateID("match", matchID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.store.ListRatingsByMatch(ctx, matchID)
}

// AverageForMatch returns the mean score given in a match, 0 when none
func (s *RatingService) AverageForMatch(ctx context.Context, matchID int64) (float64, error) {
	if err := domain.ValidateID("match", matchID); err != nil {
		return 0, err
	}
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return 0, err
	}
	return s.store.AverageForMatch(ctx, matchID)
}

// Delete removes a rating
func (s *RatingService) Delete(ctx context.Context, ratingID int64) error {
	if err := domain.ValidateID("rating", ratingID); err != nil {
		return err
	}
	if err := s.store.DeleteRating(ctx, ratingID); err != nil {
		return err
	}
	s.logger.Info("rating deleted", "rating_id", ratingID)
	return nil
}

// Skill returns the current skill estimate of a user
func (s *RatingService) Skill(ctx context.Context, userID int64) (domain.SkillEstimate, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return domain.SkillEstimate{}, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.SkillEstimate{}, err
	}
	return s.estimator.Estimate(ctx, userID)
}
