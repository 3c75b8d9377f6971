package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/cekrek/internal/config"
	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/inquiry"
	"github.com/kalambet/cekrek/internal/mirror"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/session"
	"github.com/kalambet/cekrek/internal/storage"
)

var version = "dev"

var noColor bool

// errReported marks an error already shown to the user.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:           "cekrek",
	Short:         "Look up the holder name of Indonesian bank accounts and e-wallets",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !noColor {
			detectColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(checkCmd, validateCmd, providersCmd)
	rootCmd.AddCommand(historyCmd, recentCmd, favoritesCmd)
	rootCmd.AddCommand(configCmd, serveCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

// app is the wired object graph shared by every command.
type app struct {
	cfg     config.Config
	db      *storage.SQLiteStore
	history *history.Store
	session *session.Session
}

// openApp loads config and wires mirror pool, inquiry client, catalog,
// storage and session. Tests replace it.
var openApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	logMirrorSetup(slog.Default(), cfg.Inquiry.Mirrors)

	pool := mirror.New(cfg.Inquiry.Mirrors, cfg.Inquiry.AttemptTimeout)

	var loader provider.Loader = provider.StaticLoader{}
	if cfg.Catalog.Source == config.CatalogRemote {
		loader = provider.NewRemoteLoader(pool, cfg.Catalog.Path)
	}
	catalog, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	hist := history.New(db)
	return &app{
		cfg:     cfg,
		db:      db,
		history: hist,
		session: session.New(inquiry.New(pool), hist, catalog),
	}, nil
}

// logMirrorSetup notes a mirror list with no fallback. The stock single
// mirror is only worth a Debug line; a user-configured one gets a Warn.
func logMirrorSetup(logger *slog.Logger, mirrors []string) {
	if len(mirrors) != 1 {
		return
	}
	level := slog.LevelWarn
	if mirrors[0] == config.DefaultMirror {
		level = slog.LevelDebug
	}
	logger.Log(context.Background(), level, "only one inquiry mirror configured, fallback disabled", "mirror", mirrors[0])
}

func (a *app) Close() error {
	return a.db.Close()
}
