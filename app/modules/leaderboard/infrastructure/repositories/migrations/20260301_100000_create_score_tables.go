package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating user_scores, processed_events and period_counters tables...")

		_, err := db.NewRaw(`
			CREATE TABLE IF NOT EXISTS user_scores (
				user_id            text        PRIMARY KEY,
				country_code       text        NOT NULL DEFAULT 'UNKNOWN',
				totals             jsonb       NOT NULL DEFAULT '{}'::jsonb,
				counters           jsonb       NOT NULL DEFAULT '{}'::jsonb,
				reached_at         jsonb       NOT NULL DEFAULT '{}'::jsonb,
				badges             jsonb       NOT NULL DEFAULT '[]'::jsonb,
				last_streak_day_at timestamptz NULL,
				flagged            boolean     NOT NULL DEFAULT false,
				last_updated_at    timestamptz NOT NULL
			)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE TABLE IF NOT EXISTS processed_events (
				event_id       text             PRIMARY KEY,
				user_id        text             NOT NULL,
				type           text             NOT NULL,
				magnitude      double precision NOT NULL DEFAULT 0,
				country_code   text             NOT NULL,
				occurred_at    timestamptz      NOT NULL,
				applied_points jsonb            NULL,
				processed_at   timestamptz      NOT NULL DEFAULT now()
			)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_processed_events_user
			ON processed_events (user_id, occurred_at)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE TABLE IF NOT EXISTS period_counters (
				user_id    text             NOT NULL,
				period_key text             NOT NULL,
				metric     text             NOT NULL,
				value      double precision NOT NULL DEFAULT 0,
				updated_at timestamptz      NOT NULL,
				PRIMARY KEY (user_id, period_key, metric)
			)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_period_counters_ranking
			ON period_counters (period_key, metric, value DESC)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Score tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping score tables...")

		for _, stmt := range []string{
			"DROP TABLE IF EXISTS period_counters",
			"DROP TABLE IF EXISTS processed_events",
			"DROP TABLE IF EXISTS user_scores",
		} {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Score tables dropped successfully!")
		return nil
	})
}
