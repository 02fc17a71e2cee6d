package badgemigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating badge_awards and badge_period_seals tables...")

		_, err := db.NewRaw(`
			CREATE TABLE IF NOT EXISTS badge_awards (
				id         bigserial   PRIMARY KEY,
				badge_id   text        NOT NULL,
				user_id    text        NOT NULL,
				period_key text        NOT NULL DEFAULT '',
				awarded_at timestamptz NOT NULL,
				UNIQUE (badge_id, user_id, period_key)
			)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_badge_awards_user
			ON badge_awards (user_id)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		_, err = db.NewRaw(`
			CREATE TABLE IF NOT EXISTS badge_period_seals (
				badge_id   text        NOT NULL,
				period_key text        NOT NULL,
				sealed_at  timestamptz NOT NULL,
				PRIMARY KEY (badge_id, period_key)
			)
		`).Exec(ctx)
		if err != nil {
			return err
		}

		fmt.Println("Badge tables created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping badge tables...")

		for _, stmt := range []string{
			"DROP TABLE IF EXISTS badge_period_seals",
			"DROP TABLE IF EXISTS badge_awards",
		} {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Badge tables dropped successfully!")
		return nil
	})
}
