package bundb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	badgedb "github.com/SaveSquad-App/gamify-engine/app/modules/badges/infrastructure/repositories"
	leaderboarddb "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/infrastructure/repositories"
	"github.com/SaveSquad-App/gamify-engine/config"
)

// DBService bundles the bun connection with the per-module repositories.
type DBService struct {
	LeaderboardDB *leaderboarddb.Impl
	BadgeDB       *badgedb.Impl
	db            *bun.DB
}

// GetDB returns the underlying database connection pool.
func (s *DBService) GetDB() *bun.DB {
	return s.db
}

// HealthCheck verifies database connectivity.
func (s *DBService) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("bundb: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *DBService) Close() error {
	return s.db.Close()
}

// NewBunDBService opens the Postgres connection and builds the repositories.
func NewBunDBService(ctx context.Context, cfg config.PostgresConfig) (*DBService, error) {
	sqldb, err := pgConn(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	db.RegisterModel(&leaderboarddb.UserScore{})
	db.RegisterModel(&leaderboarddb.ProcessedEvent{})
	db.RegisterModel(&leaderboarddb.PeriodCounter{})
	db.RegisterModel(&badgedb.BadgeAward{})
	db.RegisterModel(&badgedb.PeriodSeal{})

	return &DBService{
		LeaderboardDB: leaderboarddb.New(db),
		BadgeDB:       badgedb.New(db),
		db:            db,
	}, nil
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqldb, nil
}
