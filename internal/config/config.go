// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/partycards/internal/cache"
	"github.com/jason-s-yu/partycards/internal/database"
	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// Config is everything cmd/server needs to start.
type Config struct {
	Addr        string
	StaticDir   string
	DecksDir    string
	DefaultDeck string
	DeckTimeout time.Duration
	DeckHosts   []string // hosts remote decks may come from; "*" allows any
	AnalyticsID string
	Rules       game.HouseRules
	RulesFile   string // TOML overrides applied by LoadRules

	UseSSL          bool
	SSLKey          string
	SSLCert         string
	SSLIntermediate string

	RedisAddr       string // empty disables the room event queue
	RedisDB         int
	RoomEventsQueue string
	NATSURL         string // empty disables event fan-out
	DatabaseURL     string // empty keeps feedback in the log only

	LogLevel  string
	LogFormat string
}

// HistorianConfig is everything cmd/historian needs to start.
type HistorianConfig struct {
	RedisAddr       string
	RedisDB         int
	RoomEventsQueue string
	DatabaseURL     string

	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "logrus level", Sources: cli.EnvVars("LOG_LEVEL")},
		&cli.StringFlag{Name: "log-format", Value: "text", Usage: "text or json", Sources: cli.EnvVars("LOG_FORMAT")},
	}
}

func storageFlags(redisDefault string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "redis-addr", Value: redisDefault, Usage: "redis host:port for the room event queue", Sources: cli.EnvVars("REDIS_ADDR")},
		&cli.IntFlag{Name: "redis-db", Value: 0, Usage: "redis database number", Sources: cli.EnvVars("REDIS_DB")},
		&cli.StringFlag{Name: "room-events-queue", Value: cache.DefaultQueueName, Usage: "redis list room events are pushed to", Sources: cli.EnvVars("ROOM_EVENTS_QUEUE")},
		&cli.StringFlag{Name: "database-url", Usage: "postgres connection URL", Sources: cli.EnvVars("DATABASE_URL")},
		&cli.StringFlag{Name: "pg-user", Usage: "postgres user when no URL is given", Sources: cli.EnvVars("POSTGRES_USER")},
		&cli.StringFlag{Name: "pg-password", Usage: "postgres password when no URL is given", Sources: cli.EnvVars("POSTGRES_PASSWORD")},
		&cli.StringFlag{Name: "pg-host", Value: "localhost", Sources: cli.EnvVars("PG_HOST")},
		&cli.StringFlag{Name: "pg-port", Value: "5432", Sources: cli.EnvVars("PG_PORT")},
		&cli.StringFlag{Name: "pg-database", Value: "partycards", Sources: cli.EnvVars("PG_DATABASE")},
	}
}

// ServerFlags are the flags of cmd/server, each bound to an env var.
func ServerFlags() []cli.Flag {
	defaults := game.DefaultHouseRules()
	flags := []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "listen address, overrides --port", Sources: cli.EnvVars("ADDR")},
		&cli.StringFlag{Name: "port", Value: "8080", Usage: "listen port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "static-dir", Value: "static", Usage: "directory holding index.html and assets", Sources: cli.EnvVars("STATIC_DIR")},
		&cli.StringFlag{Name: "decks-dir", Value: "decks", Usage: "directory holding deck JSON files", Sources: cli.EnvVars("DECKS_DIR")},
		&cli.StringFlag{Name: "default-deck", Value: "base.json", Usage: "deck used when a join names none", Sources: cli.EnvVars("DEFAULT_DECK")},
		&cli.DurationFlag{Name: "deck-timeout", Value: 10 * time.Second, Usage: "upper bound on loading a deck", Sources: cli.EnvVars("DECK_TIMEOUT")},
		&cli.StringFlag{Name: "deck-hosts", Usage: "comma-separated hosts remote decks may be fetched from, * for any", Sources: cli.EnvVars("DECK_HOSTS")},
		&cli.IntFlag{Name: "hand-size", Value: defaults.HandSize, Sources: cli.EnvVars("HAND_SIZE")},
		&cli.IntFlag{Name: "max-players", Value: defaults.MaxPlayers, Sources: cli.EnvVars("MAX_PLAYERS")},
		&cli.StringFlag{Name: "rules-file", Usage: "TOML file overriding the house rules flags", Sources: cli.EnvVars("HOUSE_RULES_FILE")},
		&cli.StringFlag{Name: "analytics-id", Usage: "analytics property rendered into the game page", Sources: cli.EnvVars("GA_PROPERTY_ID")},
		&cli.BoolFlag{Name: "use-ssl", Sources: cli.EnvVars("USE_SSL")},
		&cli.StringFlag{Name: "ssl-key", Sources: cli.EnvVars("SSL_KEY")},
		&cli.StringFlag{Name: "ssl-cert", Sources: cli.EnvVars("SSL_CERT")},
		&cli.StringFlag{Name: "ssl-intermediate", Usage: "optional chain appended to the certificate", Sources: cli.EnvVars("SSL_INTERMEDIATE")},
		&cli.StringFlag{Name: "nats-url", Usage: "broker URL for live room events", Sources: cli.EnvVars("NATS_URL")},
	}
	flags = append(flags, storageFlags("")...)
	return append(flags, logFlags()...)
}

// HistorianFlags are the flags of cmd/historian, each bound to an env var.
func HistorianFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{Name: "batch-size", Value: 20, Sources: cli.EnvVars("HISTORIAN_BATCH_SIZE")},
		&cli.DurationFlag{Name: "flush-interval", Value: 500 * time.Millisecond, Sources: cli.EnvVars("HISTORIAN_FLUSH_INTERVAL")},
		&cli.DurationFlag{Name: "inactivity", Value: 10 * time.Minute, Usage: "idle time after which a room is marked abandoned", Sources: cli.EnvVars("ROOM_INACTIVITY_TIMEOUT")},
		&cli.DurationFlag{Name: "sweep-interval", Value: time.Minute, Sources: cli.EnvVars("ROOM_SWEEP_INTERVAL")},
	}
	flags = append(flags, storageFlags("localhost:6379")...)
	return append(flags, logFlags()...)
}

// databaseURL prefers --database-url and falls back to the discrete postgres settings.
func databaseURL(cmd *cli.Command) string {
	if u := cmd.String("database-url"); u != "" {
		return u
	}
	if cmd.String("pg-user") == "" {
		return ""
	}
	return database.ConnString(cmd.String("pg-user"), cmd.String("pg-password"),
		cmd.String("pg-host"), cmd.String("pg-port"), cmd.String("pg-database"))
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FromCommand reads a Config out of a command parsed with ServerFlags.
func FromCommand(cmd *cli.Command) Config {
	addr := cmd.String("addr")
	if addr == "" {
		addr = ":" + cmd.String("port")
	}
	return Config{
		Addr:        addr,
		StaticDir:   cmd.String("static-dir"),
		DecksDir:    cmd.String("decks-dir"),
		DefaultDeck: cmd.String("default-deck"),
		DeckTimeout: cmd.Duration("deck-timeout"),
		DeckHosts:   splitList(cmd.String("deck-hosts")),
		AnalyticsID: cmd.String("analytics-id"),
		Rules: game.HouseRules{
			HandSize:   int(cmd.Int("hand-size")),
			MaxPlayers: int(cmd.Int("max-players")),
		},
		RulesFile:       cmd.String("rules-file"),
		UseSSL:          cmd.Bool("use-ssl"),
		SSLKey:          cmd.String("ssl-key"),
		SSLCert:         cmd.String("ssl-cert"),
		SSLIntermediate: cmd.String("ssl-intermediate"),
		RedisAddr:       cmd.String("redis-addr"),
		RedisDB:         int(cmd.Int("redis-db")),
		RoomEventsQueue: cmd.String("room-events-queue"),
		NATSURL:         cmd.String("nats-url"),
		DatabaseURL:     databaseURL(cmd),
		LogLevel:        cmd.String("log-level"),
		LogFormat:       cmd.String("log-format"),
	}
}

// HistorianFromCommand reads a HistorianConfig out of a command parsed with HistorianFlags.
func HistorianFromCommand(cmd *cli.Command) HistorianConfig {
	return HistorianConfig{
		RedisAddr:       cmd.String("redis-addr"),
		RedisDB:         int(cmd.Int("redis-db")),
		RoomEventsQueue: cmd.String("room-events-queue"),
		DatabaseURL:     databaseURL(cmd),
		BatchSize:       int(cmd.Int("batch-size")),
		FlushInterval:   cmd.Duration("flush-interval"),
		Inactivity:      cmd.Duration("inactivity"),
		SweepInterval:   cmd.Duration("sweep-interval"),
		LogLevel:        cmd.String("log-level"),
		LogFormat:       cmd.String("log-format"),
	}
}

func validateLog(level, format string) error {
	if _, err := logrus.ParseLevel(level); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("unknown log format %q", format)
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DeckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("deck timeout must be positive, got %s", c.DeckTimeout))
	}
	if c.DefaultDeck == "" {
		errs = append(errs, errors.New("default deck is required"))
	}
	if c.UseSSL && (c.SSLKey == "" || c.SSLCert == "") {
		errs = append(errs, errors.New("USE_SSL requires SSL_KEY and SSL_CERT"))
	}
	if err := validateLog(c.LogLevel, c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate reports settings the historian cannot start with.
func (c HistorianConfig) Validate() error {
	var errs []error
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL or POSTGRES_USER is required"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.FlushInterval <= 0 || c.Inactivity <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("flush interval, inactivity and sweep interval must be positive"))
	}
	if err := validateLog(c.LogLevel, c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger. Call it after Validate.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
