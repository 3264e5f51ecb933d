package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shift-staffing-client/config"
	"shift-staffing-client/database"
	"shift-staffing-client/logger"
	"shift-staffing-client/services"
)

// sessionKey holds the signed-in credentials between invocations.
const sessionKey = "session"

var (
	// Global flags
	verbose  bool
	jsonOut  bool
	timeout  time.Duration
	envFile  string
	storeDSN string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "staffing",
	Short: "Shift staffing client for nurses",
	Long: `staffing browses open shifts, manages bookings and swap requests,
tracks notifications and records attendance against a staffing service.

Run "staffing serve-mock" to start a seeded local service for trying it out.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		if err := config.Load(); err != nil {
			return err
		}
		cfg = config.AppConfig
		if verbose {
			cfg.Log.Level = "debug"
		}
		if storeDSN != "" {
			cfg.Store.DSN = storeDSN
		}

		var err error
		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print raw JSON instead of tables")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "store", "", "Override the local store DSN")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type savedSession struct {
	Token   string `json:"token"`
	UserID  uint   `json:"user_id"`
	NurseID uint   `json:"nurse_id"`
}

// withEngine opens the store, builds a signed-in engine and runs fn under a
// context that ends on timeout or SIGINT.
func withEngine(fn func(ctx context.Context, e *services.Engine, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(timeout)
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, e, args)
	}
}

func signalContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func openEngine(ctx context.Context) (*services.Engine, error) {
	store, err := database.Open(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.Session.Token == "" {
		if s, ok := loadSession(ctx, store); ok {
			cfg.Session.Token, cfg.Session.UserID, cfg.Session.NurseID = s.Token, s.UserID, s.NurseID
		}
	}

	e := services.NewEngine(cfg, store, log)
	if err := e.Restore(ctx); err != nil {
		log.Warn("restore local state", zap.Error(err))
	}
	return e, nil
}

func loadSession(ctx context.Context, store database.Store) (savedSession, bool) {
	raw, err := store.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Warn("read saved session", zap.Error(err))
		}
		return savedSession{}, false
	}
	var s savedSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		return savedSession{}, false
	}
	return s, true
}

func saveSession(ctx context.Context, e *services.Engine) error {
	raw, err := json.Marshal(savedSession{
		Token:   e.Session.Token(),
		UserID:  e.Session.UserID(),
		NurseID: e.Session.NurseID(),
	})
	if err != nil {
		return err
	}
	return e.Store.Set(ctx, sessionKey, string(raw))
}

// requireSession fails early when no usable token is available.
func requireSession(e *services.Engine) error {
	if e.Session.Token() == "" || e.Session.NurseID() == 0 {
		return errors.New(`not signed in, run "staffing login" first`)
	}
	if !e.Session.Valid() {
		return errors.New(`session expired, run "staffing login" again`)
	}
	return nil
}
