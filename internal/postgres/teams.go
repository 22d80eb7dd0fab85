package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/team-balancer/internal/domain"
)

// ReplaceTeams deletes every team of a match and inserts the given ones in a
// single transaction. A transaction-scoped advisory lock keyed on the match id
// serializes concurrent replacements of the same match.
func (r *Repository) ReplaceTeams(ctx context.Context, matchID int64, teams []domain.Team) ([]domain.Team, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, matchID); err != nil {
		return nil, fmt.Errorf("locking match %d: %w", matchID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM teams WHERE match_id = $1`, matchID); err != nil {
		return nil, fmt.Errorf("deleting previous teams: %w", err)
	}

	saved := make([]domain.Team, len(teams))
	for i, team := range teams {
		team.MatchID = matchID
		err := tx.QueryRow(ctx, `
			INSERT INTO teams (match_id, team_index, label, skill_total)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, matchID, team.Index, team.Label, team.SkillTotal).Scan(&team.ID, &team.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting team %d: %w", team.Index, err)
		}
		saved[i] = team
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO team_members (team_id, match_id, user_id, skill, member_order)
		VALUES ($1, $2, $3, $4, $5)
	`
	queued := 0
	for _, team := range saved {
		for _, m := range team.Members {
			batch.Queue(query, team.ID, matchID, m.UserID, m.Skill, m.Order)
			queued++
		}
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isUniqueViolation(err) {
				return nil, domain.BusinessRule("participant placed on two teams of match %d", matchID)
			}
			return nil, fmt.Errorf("inserting team members: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("closing member batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing teams: %w", err)
	}
	return saved, nil
}

// ListTeams retrieves the teams of a match ordered by index
func (r *Repository) ListTeams(ctx context.Context, matchID int64) ([]domain.Team, error) {
	query := `
		SELECT id, match_id, team_index, label, skill_total, created_at
		FROM teams
		WHERE match_id = $1
		ORDER BY team_index ASC
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.MatchID, &t.Index, &t.Label, &t.SkillTotal, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	if len(teams) == 0 {
		return nil, nil
	}

	if err := r.loadMembers(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetTeam retrieves a single team by ID
func (r *Repository) GetTeam(ctx context.Context, teamID int64) (*domain.Team, error) {
	query := `
		SELECT id, match_id, team_index, label, skill_total, created_at
		FROM teams
		WHERE id = $1
	`
	var t domain.Team
	err := r.pool.QueryRow(ctx, query, teamID).Scan(&t.ID, &t.MatchID, &t.Index, &t.Label, &t.SkillTotal, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("team", teamID)
		}
		return nil, fmt.Errorf("getting team: %w", err)
	}

	teams := []domain.Team{t}
	if err := r.loadMembers(ctx, teams); err != nil {
		return nil, err
	}
	return &teams[0], nil
}

// DeleteTeams removes all teams of a match and reports how many were removed
func (r *Repository) DeleteTeams(ctx context.Context, matchID int64) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM teams WHERE match_id = $1`, matchID)
	if err != nil {
		return 0, fmt.Errorf("deleting teams: %w", err)
	}
	return result.RowsAffected(), nil
}

// loadMembers fills Members on each team, in assignment order
func (r *Repository) loadMembers(ctx context.Context, teams []domain.Team) error {
	ids := make([]int64, len(teams))
	byID := make(map[int64]*domain.Team, len(teams))
	for i := range teams {
		ids[i] = teams[i].ID
		byID[teams[i].ID] = &teams[i]
	}

	query := `
		SELECT tm.team_id, tm.user_id, COALESCE(u.name, ''), tm.skill, tm.member_order
		FROM team_members tm
		LEFT JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = ANY($1)
		ORDER BY tm.team_id, tm.member_order
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("loading team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var teamID int64
		var m domain.TeamMember
		if err := rows.Scan(&teamID, &m.UserID, &m.Name, &m.Skill, &m.Order); err != nil {
			return fmt.Errorf("scanning team member: %w", err)
		}
		if t, ok := byID[teamID]; ok {
			t.Members = append(t.Members, m)
		}
	}
	return rows.Err()
}
