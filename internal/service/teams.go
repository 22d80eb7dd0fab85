package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/team-balancer/internal/balance"
	"github.com/team-balancer/internal/config"
	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/metrics"
)

// TeamStore is the persistence the team engine needs
type TeamStore interface {
	GetMatch(ctx context.Context, matchID int64) (*domain.Match, error)
	ConfirmedParticipants(ctx context.Context, matchID int64) ([]domain.Participant, error)
	UserNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	ReplaceTeams(ctx context.Context, matchID int64, teams []domain.Team) ([]domain.Team, error)
	ListTeams(ctx context.Context, matchID int64) ([]domain.Team, error)
	GetTeam(ctx context.Context, teamID int64) (*domain.Team, error)
	DeleteTeams(ctx context.Context, matchID int64) (int64, error)
}

// SkillSource estimates the skill of a roster
type SkillSource interface {
	EstimateAll(ctx context.Context, userIDs []int64) (map[int64]domain.SkillEstimate, error)
}

// Locker grants exclusive access to a match. TryLock never waits; ok is false
// when another holder has the match.
type Locker interface {
	TryLock(ctx context.Context, matchID int64) (unlock func(), ok bool, err error)
}

// TeamCache holds generated teams in front of the store
type TeamCache interface {
	Get(ctx context.Context, matchID int64) ([]domain.Team, bool, error)
	Set(ctx context.Context, matchID int64, teams []domain.Team) error
	Invalidate(ctx context.Context, matchID int64) error
}

// TeamService generates, reads and removes the balanced teams of a match
type TeamService struct {
	store   TeamStore
	skills  SkillSource
	locker  Locker
	cache   TeamCache
	config  *config.BalancingConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTeamService creates a new team service. cache and m may be nil.
func NewTeamService(
	store TeamStore,
	skills SkillSource,
	locker Locker,
	cache TeamCache,
	cfg *config.BalancingConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TeamService {
	return &TeamService{
		store:   store,
		skills:  skills,
		locker:  locker,
		cache:   cache,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// GenerateTeams partitions the confirmed roster of a match into balanced teams
// and replaces any teams generated before. Running it again on an unchanged
// roster and rating history yields the same teams.
func (s *TeamService) GenerateTeams(ctx context.Context, matchID int64) ([]domain.Team, error) {
	if err := domain.ValidateID("match", matchID); err != nil {
		return nil, err
	}
	start := time.Now()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Status.AcceptsTeams() {
		return nil, domain.BusinessRule("cannot generate teams for a %s match", match.Status)
	}

	unlock, err := s.lock(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	participants, err := s.store.ConfirmedParticipants(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	if len(participants) < balance.MinTeams {
		return nil, domain.BusinessRule("match %d has %d confirmed participants, at least %d are required",
			matchID, len(participants), balance.MinTeams)
	}

	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}

	estimates, err := s.skills.EstimateAll(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("estimating skills: %w", err)
	}

	candidates := make([]balance.Candidate, len(participants))
	for i, p := range participants {
		candidates[i] = balance.Candidate{
			UserID: p.UserID,
			Skill:  estimates[p.UserID].Value,
			Order:  i,
		}
	}

	assignments, err := balance.Partition(candidates, s.teamCount())
	if err != nil {
		return nil, err
	}

	names, err := s.store.UserNames(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve participant names", "match_id", matchID, "error", err)
		names = nil
	}

	teams := make([]domain.Team, len(assignments))
	for i, a := range assignments {
		members := make([]domain.TeamMember, len(a.Members))
		for j, c := range a.Members {
			members[j] = domain.TeamMember{
				UserID: c.UserID,
				Name:   names[c.UserID],
				Skill:  c.Skill,
				Order:  j,
			}
		}
		teams[i] = domain.Team{
			MatchID:    matchID,
			Index:      a.Index,
			Label:      domain.TeamLabel(a.Index),
			Members:    members,
			SkillTotal: a.SkillTotal,
		}
	}

	saved, err := s.store.ReplaceTeams(ctx, matchID, teams)
	if err != nil {
		return nil, fmt.Errorf("saving teams: %w", err)
	}

	s.refreshCache(ctx, matchID, saved)

	spread := balance.Spread(assignments)
	s.metrics.TeamsGenerated(time.Since(start), spread)
	s.logger.Info("teams generated",
		"match_id", matchID,
		"participants", len(participants),
		"teams", len(saved),
		"skill_spread", spread,
	)

	return saved, nil
}

// GetTeams returns the current teams of a match. A cache miss is refilled only
// while holding the match lock, so a read racing a delete or a regeneration can
// never write superseded teams back into the cache.
func (s *TeamService) GetTeams(ctx context.Context, matchID int64) ([]domain.Team, error) {
	if err := domain.ValidateID("match", matchID); err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.listTeams(ctx, matchID)
	}

	teams, ok, err := s.cache.Get(ctx, matchID)
	if err != nil {
		s.logger.Warn("failed to read team cache", "match_id", matchID, "error", err)
	} else if ok {
		return teams, nil
	}

	unlock, locked, err := s.locker.TryLock(ctx, matchID)
	if err != nil {
		s.logger.Warn("failed to lock match for cache refill", "match_id", matchID, "error", err)
	}
	if !locked {
		return s.listTeams(ctx, matchID)
	}
	defer unlock()

	teams, err = s.listTeams(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, matchID, teams); err != nil {
		s.logger.Warn("failed to cache teams", "match_id", matchID, "error", err)
	}
	return teams, nil
}

func (s *TeamService) listTeams(ctx context.Context, matchID int64) ([]domain.Team, error) {
	teams, err := s.store.ListTeams(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	if len(teams) == 0 {
		return nil, &domain.Error{
			Kind:   domain.ErrNotFound,
			Reason: fmt.Sprintf("no teams generated for match %d", matchID),
		}
	}
	return teams, nil
}

// GetTeam returns a single team by ID
func (s *TeamService) GetTeam(ctx context.Context, teamID int64) (*domain.Team, error) {
	if err := domain.ValidateID("team", teamID); err != nil {
		return nil, err
	}
	return s.store.GetTeam(ctx, teamID)
}

// DeleteTeams removes all teams of a match. Deleting a match without teams
// succeeds.
func (s *TeamService) DeleteTeams(ctx context.Context, matchID int64) error {
	if err := domain.ValidateID("match", matchID); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, matchID)
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := s.store.DeleteTeams(ctx, matchID)
	if err != nil {
		return fmt.Errorf("deleting teams: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, matchID); err != nil {
			s.logger.Warn("failed to invalidate team cache", "match_id", matchID, "error", err)
		}
	}

	s.logger.Info("teams deleted", "match_id", matchID, "removed", removed)
	return nil
}

// lock takes the match lock, retrying once after the configured delay
func (s *TeamService) lock(ctx context.Context, matchID int64) (func(), error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.LockRetryDelay):
			}
		}

		unlock, ok, err := s.locker.TryLock(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
	}

	s.metrics.LockConflict()
	s.logger.Warn("match is locked by a concurrent operation", "match_id", matchID)
	return nil, domain.Conflict("teams for match %d are being changed by another request", matchID)
}

func (s *TeamService) refreshCache(ctx context.Context, matchID int64, teams []domain.Team) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, matchID); err != nil {
		s.logger.Warn("failed to invalidate team cache", "match_id", matchID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, matchID, teams); err != nil {
		s.logger.Warn("failed to cache teams", "match_id", matchID, "error", err)
	}
}

func (s *TeamService) teamCount() int {
	if s.config.TeamCount < balance.MinTeams {
		return balance.MinTeams
	}
	return s.config.TeamCount
}

// LocalLocker is an in-process Locker keyed by match, for single-node
// deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[int64]bool)}
}

// TryLock implements Locker
func (l *LocalLocker) TryLock(_ context.Context, matchID int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[matchID] {
		return nil, false, nil
	}
	l.held[matchID] = true

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, matchID)
			l.mu.Unlock()
		})
	}
	return unlock, true, nil
}
