// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/partycards/internal/cache"
	"github.com/jason-s-yu/partycards/internal/config"
	"github.com/jason-s-yu/partycards/internal/database"
	"github.com/jason-s-yu/partycards/internal/deck"
	"github.com/jason-s-yu/partycards/internal/handlers"
	"github.com/jason-s-yu/partycards/internal/pubsub"
	"github.com/jason-s-yu/partycards/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := &cli.Command{
		Name:   "partycards",
		Usage:  "serve party card game rooms over websockets",
		Flags:  config.ServerFlags(),
		Action: serve,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := config.FromCommand(cmd)
	rules, err := config.LoadRules(cfg.RulesFile, cfg.Rules)
	if err != nil {
		return err
	}
	cfg.Rules = rules
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	var recorders []session.Recorder
	var feedback handlers.FeedbackStore

	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		q := cache.NewRoomEventQueue(rdb, cfg.RoomEventsQueue)
		recorders = append(recorders, q)
		logger.Infof("Recording room events to redis list %s", q.Name())
	}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = pubsub.BrokerConnect(cfg.NATSURL, "partycards-server")
		if err != nil {
			return err
		}
		defer nc.Drain()
		recorders = append(recorders, pubsub.NewNATSRecorder(nc))
		logger.Infof("Publishing room events to %s", cfg.NATSURL)
	}

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := database.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		feedback = store
		logger.Info("Storing feedback in postgres")
	}

	mgr := session.NewManager(logger, cfg.Rules, recorders...)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		mgr.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	if nc != nil {
		sub, err := pubsub.ServeStatus(nc, logger, func(ctx context.Context) (interface{}, error) {
			return mgr.Stats(ctx)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", pubsub.StatusSubject, err)
		}
		defer sub.Unsubscribe()
	}

	decks := deck.NewLoader(cfg.DecksDir, cfg.DefaultDeck, logger)
	decks.AllowedHosts = cfg.DeckHosts

	gs := &handlers.GameServer{
		Logger:      logger,
		Manager:     mgr,
		Decks:       decks,
		Feedback:    feedback,
		StaticDir:   cfg.StaticDir,
		DecksDir:    cfg.DecksDir,
		DefaultDeck: cfg.DefaultDeck,
		AnalyticsID: cfg.AnalyticsID,
		DeckTimeout: cfg.DeckTimeout,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gs.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.UseSSL {
		tlsCfg, err := config.LoadTLS(cfg.SSLCert, cfg.SSLKey, cfg.SSLIntermediate)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	return listen(ctx, srv, cfg.UseSSL, logger)
}

// listen serves until ctx is cancelled, then drains open requests.
func listen(ctx context.Context, srv *http.Server, useSSL bool, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s (tls=%v)", srv.Addr, useSSL)
		var err error
		if useSSL {
			// Certificates are already in TLSConfig.
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
