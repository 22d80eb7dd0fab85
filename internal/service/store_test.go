package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/team-balancer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the Postgres repository
type memStore struct {
	mu sync.Mutex

	matches      map[int64]*domain.Match
	participants map[int64][]domain.Participant
	users        map[int64]domain.User
	ratings      map[int64]domain.RatingRecord
	teams        map[int64][]domain.Team
	alerts       map[int64]domain.Alert

	nextID int64

	replaceCalls int
	// replaceEntered and replaceGate, when set, let a test hold ReplaceTeams open
	replaceEntered chan struct{}
	replaceGate    chan struct{}
	replaceErr     error
}

func newMemStore() *memStore {
	return &memStore{
		matches:      make(map[int64]*domain.Match),
		participants: make(map[int64][]domain.Participant),
		users:        make(map[int64]domain.User),
		ratings:      make(map[int64]domain.RatingRecord),
		teams:        make(map[int64][]domain.Team),
		alerts:       make(map[int64]domain.Alert),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addMatch(id int64, status domain.MatchStatus, maxPlayers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[id] = &domain.Match{
		ID:          id,
		Title:       "Sunday five-a-side",
		ScheduledAt: time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC),
		MaxPlayers:  maxPlayers,
		Status:      status,
	}
}

func (s *memStore) addUser(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.User{ID: id, Name: name}
}

func (s *memStore) confirm(matchID int64, userIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range userIDs {
		s.participants[matchID] = append(s.participants[matchID], domain.Participant{
			UserID:      u,
			ConfirmedAt: time.Unix(int64(len(s.participants[matchID])), 0),
		})
	}
}

func (s *memStore) rate(userID, matchID int64, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.ratings[id] = domain.RatingRecord{ID: id, UserID: userID, MatchID: matchID, Score: score}
}

func (s *memStore) GetMatch(_ context.Context, matchID int64) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, domain.NotFound("match", matchID)
	}
	cp := *m
	cp.ConfirmedCount = len(s.participants[matchID])
	return &cp, nil
}

func (s *memStore) ConfirmedParticipants(_ context.Context, matchID int64) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Participant(nil), s.participants[matchID]...), nil
}

func (s *memStore) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.NotFound("user", userID)
	}
	return &u, nil
}

func (s *memStore) UserNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[int64]string)
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			names[id] = u.Name
		}
	}
	return names, nil
}

func (s *memStore) ScoresForUser(_ context.Context, userID int64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, r := range s.ratings {
		if r.UserID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	scores := make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = s.ratings[id].Score
	}
	return scores, nil
}

func (s *memStore) ReplaceTeams(_ context.Context, matchID int64, teams []domain.Team) ([]domain.Team, error) {
	if s.replaceEntered != nil {
		s.replaceEntered <- struct{}{}
	}
	if s.replaceGate != nil {
		<-s.replaceGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return nil, s.replaceErr
	}

	saved := make([]domain.Team, len(teams))
	for i, t := range teams {
		t.ID = s.id()
		t.MatchID = matchID
		t.CreatedAt = time.Now()
		saved[i] = t
	}
	s.teams[matchID] = saved
	return append([]domain.Team(nil), saved...), nil
}

func (s *memStore) ListTeams(_ context.Context, matchID int64) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Team(nil), s.teams[matchID]...), nil
}

func (s *memStore) GetTeam(_ context.Context, teamID int64) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, teams := range s.teams {
		for _, t := range teams {
			if t.ID == teamID {
				return &t, nil
			}
		}
	}
	return nil, domain.NotFound("team", teamID)
}

func (s *memStore) DeleteTeams(_ context.Context, matchID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.teams[matchID]))
	delete(s.teams, matchID)
	return n, nil
}

func (s *memStore) teamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, teams := range s.teams {
		n += len(teams)
	}
	return n
}

func (s *memStore) CreateAlert(_ context.Context, req domain.AlertRequest) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := domain.Alert{
		ID:        s.id(),
		Type:      req.Type,
		Message:   req.Message,
		MatchID:   req.MatchID,
		UserID:    req.UserID,
		CreatedAt: time.Now(),
	}
	if req.MatchID != nil {
		if m, ok := s.matches[*req.MatchID]; ok {
			a.MatchTitle = m.Title
		}
	}
	s.alerts[a.ID] = a
	return &a, nil
}

func (s *memStore) GetAlert(_ context.Context, alertID int64) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.NotFound("alert", alertID)
	}
	return &a, nil
}

func (s *memStore) ListAlertsByUser(_ context.Context, userID int64, unreadOnly bool) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alerts := []domain.Alert{}
	for _, a := range s.alerts {
		if a.UserID == nil || *a.UserID != userID {
			continue
		}
		if unreadOnly && a.Read {
			continue
		}
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID > alerts[j].ID })
	return alerts, nil
}

func (s *memStore) MarkAlertRead(_ context.Context, alertID int64) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.NotFound("alert", alertID)
	}
	a.Read = true
	s.alerts[alertID] = a
	return &a, nil
}

func (s *memStore) MarkAllAlertsRead(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.alerts {
		if a.UserID != nil && *a.UserID == userID && !a.Read {
			a.Read = true
			s.alerts[id] = a
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteAlert(_ context.Context, alertID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alertID]; !ok {
		return domain.NotFound("alert", alertID)
	}
	delete(s.alerts, alertID)
	return nil
}

func (s *memStore) DeleteAlertsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.alerts {
		if a.CreatedAt.Before(cutoff) {
			delete(s.alerts, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) RatingExists(_ context.Context, userID, matchID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ratings {
		if r.UserID == userID && r.MatchID == matchID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateRating(_ context.Context, req domain.RatingRequest) (*domain.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := domain.RatingRecord{
		ID:        s.id(),
		UserID:    req.UserID,
		UserName:  s.users[req.UserID].Name,
		MatchID:   req.MatchID,
		RaterID:   req.RaterID,
		Score:     req.Score,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	s.ratings[rec.ID] = rec
	return &rec, nil
}

func (s *memStore) GetRating(_ context.Context, ratingID int64) (*domain.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[ratingID]
	if !ok {
		return nil, domain.NotFound("rating", ratingID)
	}
	return &r, nil
}

func (s *memStore) ListRatingsByMatch(_ context.Context, matchID int64) ([]domain.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.RatingRecord{}
	for _, r := range s.ratings {
		if r.MatchID == matchID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) AverageForMatch(_ context.Context, matchID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	var n int
	for _, r := range s.ratings {
		if r.MatchID == matchID {
			sum += r.Score
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (s *memStore) DeleteRating(_ context.Context, ratingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ratings[ratingID]; !ok {
		return domain.NotFound("rating", ratingID)
	}
	delete(s.ratings, ratingID)
	return nil
}
