package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	leaderboardservice "github.com/SaveSquad-App/gamify-engine/app/modules/leaderboard/application"
	scoringdomain "github.com/SaveSquad-App/gamify-engine/app/modules/scoring/domain"
	"github.com/SaveSquad-App/gamify-engine/app/shared"
	"github.com/SaveSquad-App/gamify-engine/config"
	"github.com/SaveSquad-App/gamify-engine/db/bundb"
)

// Seeds demo users and activity events straight through the aggregation
// service, bypassing the stream. Development convenience only.
func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	users := flag.Int("users", 25, "Number of demo users to create")
	events := flag.Int("events", 40, "Activity events per user")
	seed := flag.Uint64("seed", 1, "Deterministic random seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbService.Close()

	svc := leaderboardservice.NewService(
		&shared.BunTxRunner{DB: dbService.GetDB()},
		dbService.LeaderboardDB,
		dbService.BadgeDB,
		logger,
		nil,
		nil,
		nil,
	)

	faker := gofakeit.New(*seed)
	types := []scoringdomain.EventType{
		scoringdomain.EventTipShared,
		scoringdomain.EventLikeReceived,
		scoringdomain.EventCommentPosted,
		scoringdomain.EventSavingsLogged,
		scoringdomain.EventStreakDay,
		scoringdomain.EventGoalCompleted,
		scoringdomain.EventTransactionLogged,
	}

	applied := 0
	start := time.Now().UTC().AddDate(0, -3, 0)
	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("demo-%s-%d", faker.Username(), u)
		country := faker.CountryAbr()

		at := start.Add(time.Duration(faker.Number(0, 72)) * time.Hour)
		for e := 0; e < *events; e++ {
			typ := types[faker.Number(0, len(types)-1)]
			ev := scoringdomain.ActivityEvent{
				EventID:     uuid.NewString(),
				UserID:      userID,
				Type:        typ,
				CountryCode: country,
				OccurredAt:  at,
			}
			switch typ {
			case scoringdomain.EventSavingsLogged:
				ev.Magnitude = float64(faker.Number(5, 500))
			case scoringdomain.EventStreakDay:
				ev.Magnitude = float64(faker.Number(1, 14))
			}

			if _, err := svc.Apply(ctx, ev); err != nil {
				logger.Error("failed to apply seed event",
					slog.String("user_id", userID),
					slog.Any("error", err),
				)
				os.Exit(1)
			}
			applied++
			at = at.Add(time.Duration(faker.Number(1, 48)) * time.Hour)
		}
	}

	logger.Info("seed complete",
		slog.Int("users", *users),
		slog.Int("events", applied),
	)
}
