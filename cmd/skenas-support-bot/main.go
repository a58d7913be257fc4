// skenas-support-bot relays pending-transaction alerts from the Skenas
// platform to reviewers over Telegram and records exactly one decision per
// alert.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Nikaat/skenas-support-bot/internal/api"
	"github.com/Nikaat/skenas-support-bot/internal/arbiter"
	"github.com/Nikaat/skenas-support-bot/internal/backend"
	"github.com/Nikaat/skenas-support-bot/internal/conversation"
	"github.com/Nikaat/skenas-support-bot/internal/messaging"
	"github.com/Nikaat/skenas-support-bot/internal/session"
	"github.com/Nikaat/skenas-support-bot/internal/store"
	"github.com/Nikaat/skenas-support-bot/internal/util"
	"github.com/Nikaat/skenas-support-bot/internal/workflow"
)

// DefaultStateDB is the SQLite path used when no DATABASE_URL is set.
const DefaultStateDB = "/var/lib/skenas-support-bot/state.db"

// Config holds the application configuration sourced from the environment.
type Config struct {
	DatabaseDSN     string
	TelegramToken   string
	APIAddr         string
	APIKey          string
	AdminNumbers    []string
	DeciderNumbers  []string
	SkenasBaseURL   string
	SkenasAPIKey    string
	ReasonsPath     string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	SMSMirrorers    []string
	SMSMirrorEnable bool
}

// Flags holds command-line flag overrides.
type Flags struct {
	DatabaseDSN string
	APIAddr     string
	ReasonsPath string
}

func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = DefaultStateDB
	}
	return Config{
		DatabaseDSN:     dsn,
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		APIAddr:         getenvDefault("API_ADDR", api.DefaultAddr),
		APIKey:          os.Getenv("API_KEY"),
		AdminNumbers:    util.ParseListEnv("ADMIN_PHONE_NUMBERS"),
		DeciderNumbers:  util.ParseListEnv("DECIDER_PHONE_NUMBERS"),
		SkenasBaseURL:   os.Getenv("SKENAS_API_BASE_URL"),
		SkenasAPIKey:    os.Getenv("SKENAS_API_KEY"),
		ReasonsPath:     os.Getenv("REJECTION_REASONS_PATH"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		SMSMirrorers:    util.ParseListEnv("SMS_MIRROR_NUMBERS"),
		SMSMirrorEnable: util.ParseBoolEnv("SMS_MIRROR_ENABLED", false),
	}
}

func parseCommandLineFlags() Flags {
	var f Flags
	flag.StringVar(&f.DatabaseDSN, "db", "", "database DSN (PostgreSQL URL or SQLite path)")
	flag.StringVar(&f.APIAddr, "addr", "", "management API listen address")
	flag.StringVar(&f.ReasonsPath, "reasons", "", "path to the rejection reasons YAML file")
	flag.Parse()
	return f
}

func applyFlags(cfg *Config, f Flags) {
	if f.DatabaseDSN != "" {
		cfg.DatabaseDSN = f.DatabaseDSN
	}
	if f.APIAddr != "" {
		cfg.APIAddr = f.APIAddr
	}
	if f.ReasonsPath != "" {
		cfg.ReasonsPath = f.ReasonsPath
	}
}

func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func buildStore(dsn string) (store.Store, error) {
	switch store.DetectDSNType(dsn) {
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

func run() error {
	initializeLogger()
	cfg := loadConfig()
	applyFlags(&cfg, parseCommandLineFlags())

	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.SkenasBaseURL == "" {
		return fmt.Errorf("SKENAS_API_BASE_URL is required")
	}
	if len(cfg.AdminNumbers) == 0 && len(cfg.DeciderNumbers) == 0 {
		return fmt.Errorf("at least one of ADMIN_PHONE_NUMBERS or DECIDER_PHONE_NUMBERS is required")
	}

	st, err := buildStore(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	sessions := session.NewManager(st,
		session.WithAdminNumbers(cfg.AdminNumbers),
		session.WithDeciderNumbers(cfg.DeciderNumbers),
	)
	conversations := conversation.NewManager(st)
	arb := arbiter.New(st)

	platform, err := backend.NewClient(
		backend.WithBaseURL(cfg.SkenasBaseURL),
		backend.WithAPIKey(cfg.SkenasAPIKey),
	)
	if err != nil {
		return fmt.Errorf("failed to create platform client: %w", err)
	}

	msgService, err := messaging.NewTelegramService(messaging.WithToken(cfg.TelegramToken))
	if err != nil {
		return fmt.Errorf("failed to create messaging service: %w", err)
	}

	catalog := workflow.NewRejectionCatalog()
	if cfg.ReasonsPath != "" {
		catalog, err = workflow.LoadRejectionCatalog(cfg.ReasonsPath)
		if err != nil {
			return fmt.Errorf("failed to load rejection catalog: %w", err)
		}
	}

	wfOpts := []workflow.Option{workflow.WithCatalog(catalog)}
	if cfg.SMSMirrorEnable && cfg.TwilioSID != "" {
		sms, err := messaging.NewTwilioSMS(
			messaging.WithAccountSID(cfg.TwilioSID),
			messaging.WithAuthToken(cfg.TwilioToken),
			messaging.WithFromNumber(cfg.TwilioFrom),
		)
		if err != nil {
			return fmt.Errorf("failed to create SMS notifier: %w", err)
		}
		wfOpts = append(wfOpts, workflow.WithSMSMirror(sms, cfg.SMSMirrorers))
	}

	wf := workflow.New(st, sessions, conversations, arb, platform, msgService, wfOpts...)
	server := api.NewServer(wf, sessions,
		api.WithAddr(cfg.APIAddr),
		api.WithAPIKey(cfg.APIKey),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := wf.Run(ctx); err != nil {
			errCh <- fmt.Errorf("workflow stopped: %w", err)
		}
	}()
	go func() {
		if err := server.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}
