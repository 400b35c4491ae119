// cmd/historian/main.go is the historian service: it pops room events from the
// Redis queue the game server writes to and persists them to PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/partycards/internal/cache"
	"github.com/jason-s-yu/partycards/internal/config"
	"github.com/jason-s-yu/partycards/internal/database"
	"github.com/jason-s-yu/partycards/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "partycards-historian",
		Usage:  "persist room events from the redis queue to postgres",
		Flags:  config.HistorianFlags(),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.HistorianFromCommand(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := database.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	svc := historian.NewService(cache.NewRoomEventQueue(rdb, cfg.RoomEventsQueue), store, historian.Options{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Inactivity:    cfg.Inactivity,
		SweepInterval: cfg.SweepInterval,
	}, logger)
	return svc.Run(ctx)
}
