package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/leftoverlink/internal/api"
	"github.com/erazemk/leftoverlink/internal/auth"
	"github.com/erazemk/leftoverlink/internal/config"
	"github.com/erazemk/leftoverlink/internal/db"
	"github.com/erazemk/leftoverlink/internal/metrics"
	"github.com/erazemk/leftoverlink/internal/store"
)

// purgeInterval is how often expired revoked tokens are removed.
const purgeInterval = time.Hour

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			fmt.Fprint(os.Stdout, config.Usage)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		fmt.Fprint(os.Stderr, config.Usage)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg, os.Stdout); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, out io.Writer) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	if err := ensurePasscode(ctx, database, cfg.Passcode, out); err != nil {
		return err
	}

	m := metrics.New(nil)
	repo, err := openRepository(ctx, cfg, database, m)
	if err != nil {
		return err
	}

	server := newServer(ctx, cfg.Addr, newHandler(database, repo, jwtSecret, cfg.MaxImageBytes, m))

	go purgeRevokedTokens(ctx, database, purgeInterval)

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// newServer returns a server whose request contexts end with ctx, so open
// listing streams finish when shutdown starts.
func newServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// newHandler combines the API with the metrics endpoint.
func newHandler(database *sql.DB, repo store.Repository, jwtSecret string, maxImageBytes int, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(database, repo, jwtSecret, maxImageBytes))
	mux.Handle("GET /metrics", m.Handler())

	return api.LoggingMiddleware(api.MetricsMiddleware(m)(mux))
}

// openRepository builds the configured listing store and loads the demo
// listings into it when asked to.
func openRepository(ctx context.Context, cfg *config.Config, database *sql.DB, m *metrics.Metrics) (store.Repository, error) {
	var repo store.Repository
	switch cfg.Store {
	case config.StoreSQLite:
		sqlRepo, err := store.NewSQLRepository(ctx, database, m)
		if err != nil {
			return nil, fmt.Errorf("loading listings: %w", err)
		}
		repo = sqlRepo
	default:
		repo = store.NewMemoryRepository(nil, m)
	}

	// A persistent store keeps its listings between runs.
	if cfg.Seed && len(repo.Listings()) == 0 {
		if err := store.Seed(ctx, repo, store.SeedListings(time.Now())); err != nil {
			return nil, fmt.Errorf("seeding listings: %w", err)
		}
		slog.Info("demo listings loaded", "count", len(repo.Listings()))
	}
	return repo, nil
}

// ensurePasscode stores the configured passcode, or generates one when none
// is configured or stored yet.
func ensurePasscode(ctx context.Context, database *sql.DB, passcode string, out io.Writer) error {
	if passcode == "" {
		hash, err := store.GetPasscodeHash(ctx, database)
		if err != nil {
			return fmt.Errorf("loading passcode: %w", err)
		}
		if hash != "" {
			return nil
		}

		passcode, err = auth.GeneratePasscode(12)
		if err != nil {
			return fmt.Errorf("generating passcode: %w", err)
		}
		fmt.Fprintf(out, "Resident passcode: %s\n", passcode)
		fmt.Fprintln(out, "Share it with residents; it is not shown again.")
		fmt.Fprintln(out)
	} else if err := auth.ValidatePasscode(passcode); err != nil {
		return err
	}

	hash, err := auth.HashPasscode(passcode)
	if err != nil {
		return fmt.Errorf("hashing passcode: %w", err)
	}
	if err := store.SetPasscodeHash(ctx, database, hash); err != nil {
		return fmt.Errorf("storing passcode: %w", err)
	}
	return nil
}

func purgeRevokedTokens(ctx context.Context, database *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}
