package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/team-balancer/internal/config"
)

// uniqueViolation is the SQLSTATE Postgres reports for duplicate keys
const uniqueViolation = "23505"

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return NewRepositoryFromPool(pool, logger), nil
}

// NewRepositoryFromPool wraps an existing pool
func NewRepositoryFromPool(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger,
	}
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations. The users, matches and
// match_participants tables belong to the match-lifecycle service; they are
// created here so a standalone deployment has something to read.
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			max_players INT NOT NULL CHECK (max_players > 0),
			status VARCHAR(20) NOT NULL DEFAULT 'SCHEDULED',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_participants (
			match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			position VARCHAR(50),
			status VARCHAR(20) NOT NULL DEFAULT 'CONFIRMED',
			confirmed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (match_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			rater_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			score DOUBLE PRECISION NOT NULL,
			comment TEXT,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, match_id)
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id BIGSERIAL PRIMARY KEY,
			match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			team_index INT NOT NULL,
			label VARCHAR(50) NOT NULL,
			skill_total DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (match_id, team_index)
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			match_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			skill DOUBLE PRECISION NOT NULL,
			member_order INT NOT NULL,
			PRIMARY KEY (team_id, user_id),
			UNIQUE (match_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			type VARCHAR(40) NOT NULL,
			message TEXT NOT NULL,
			match_id BIGINT REFERENCES matches(id) ON DELETE CASCADE,
			user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_participants_match ON match_participants(match_id, status, confirmed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_user ON ratings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_match ON ratings(match_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_match ON teams(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id, read, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
