// Package cli builds the series-adapter command tree.
//
//	series-adapter            # same as serve
//	├── serve                 # HTTP adapter + retention scheduler
//	├── latest                # print the newest processed measurement
//	├── range --from --to     # print measurements within a date range
//	└── prune --before        # delete measurements dated before a day
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/series-adapter/internal/api/http"
	"github.com/i474232898/series-adapter/internal/config"
	"github.com/i474232898/series-adapter/internal/logger"
	"github.com/i474232898/series-adapter/internal/metrics"
	"github.com/i474232898/series-adapter/internal/scheduler"
	"github.com/i474232898/series-adapter/internal/series"
	"github.com/i474232898/series-adapter/internal/series/providers"
	"github.com/i474232898/series-adapter/internal/store"
)

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "series-adapter",
		Short:         "Fetch the latest observation of a FRED series for job runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildLatestCommand())
	rootCmd.AddCommand(buildRangeCommand())
	rootCmd.AddCommand(buildPruneCommand())

	return rootCmd
}

func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func buildLatestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the newest processed measurement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(p *series.PersistenceCoordinator) error {
				m, err := p.Latest(cmd.Context())
				if err != nil {
					return err
				}
				if m == nil {
					return fmt.Errorf("no processed measurement")
				}
				return printJSON(cmd.OutOrStdout(), m)
			})
		},
	}
}

func buildRangeCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print measurements dated within [from, to]",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := series.ParseCalendarDate(from)
			if err != nil {
				return fmt.Errorf("invalid --from %q", from)
			}
			end, err := series.ParseCalendarDate(to)
			if err != nil {
				return fmt.Errorf("invalid --to %q", to)
			}
			if end.Before(start) {
				return fmt.Errorf("--to must not be before --from")
			}

			return withCoordinator(func(p *series.PersistenceCoordinator) error {
				ms, err := p.MeasurementsInRange(cmd.Context(), start, end)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ms)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func buildPruneCommand() *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete measurements dated before a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := series.ParseCalendarDate(before)
			if err != nil {
				return fmt.Errorf("invalid --before %q", before)
			}

			return withCoordinator(func(p *series.PersistenceCoordinator) error {
				n, err := p.DeleteOlderThan(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d measurements\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "cutoff day, YYYY-MM-DD (exclusive)")
	_ = cmd.MarkFlagRequired("before")

	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.LogLevel)

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	collector := metrics.NewCollector()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var persistence *series.PersistenceCoordinator
	if st != nil {
		persistence = series.NewPersistenceCoordinator(st, collector, log)
	}

	httpClient := &http.Client{
		Timeout: cfg.FRED.HTTPTimeout,
	}
	provider := providers.NewFREDProvider(httpClient, cfg.FRED.APIKey,
		providers.WithBaseURL(cfg.FRED.BaseURL),
		providers.WithBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.FRED.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}),
		providers.WithFetchObserver(collector),
	)

	service := series.NewService(provider, persistence,
		series.WithObserver(collector),
		series.WithLogger(log),
	)

	if persistence != nil {
		sched := scheduler.New(persistence, cfg.Retention.MaxAge, cfg.Retention.Interval, collector)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = collector.Handler()
	}
	app := httpapi.NewApp(service, metricsHandler)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(":" + cfg.Port)
	}()
	log.Info("server is running", "port", cfg.Port, "store", cfg.Store.Driver)

	return waitForShutdown(sigCtx, listenErr, app.ShutdownWithContext)
}

// waitForShutdown blocks until ctx is cancelled or the listener returns.
// A listener that stops on its own is reported as an error.
func waitForShutdown(ctx context.Context, listenErr <-chan error, shutdown func(context.Context) error) error {
	select {
	case err := <-listenErr:
		if err == nil {
			err = errors.New("server stopped unexpectedly")
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	return nil
}

// withCoordinator opens the configured store for a one-shot housekeeping command.
func withCoordinator(fn func(p *series.PersistenceCoordinator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.LogLevel)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if st == nil {
		return fmt.Errorf("store driver %q keeps no measurements", cfg.Store.Driver)
	}
	return fn(series.NewPersistenceCoordinator(st, nil, log))
}

// openStore returns the configured store, or nil when persistence is off.
func openStore(cfg *config.AppConfig) (series.Store, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreNone:
		return nil, noop, nil
	case config.StoreMemory:
		return store.NewMemoryStore(cfg.Store.MaxHistory), noop, nil
	case config.StorePostgres, config.StoreSQLite:
		var (
			gs  *store.GormStore
			err error
		)
		if cfg.Store.Driver == config.StorePostgres {
			db, openErr := store.OpenPostgres(cfg.Store.PostgresDSN())
			if openErr != nil {
				return nil, noop, openErr
			}
			gs = store.NewGormStore(db)
		} else {
			db, openErr := store.OpenSQLite(cfg.Store.SQLitePath)
			if openErr != nil {
				return nil, noop, openErr
			}
			gs = store.NewGormStore(db)
		}
		if err = gs.Migrate(); err != nil {
			_ = gs.Close()
			return nil, noop, fmt.Errorf("migrate measurements: %w", err)
		}
		return gs, func() {
			if err := gs.Close(); err != nil {
				slog.Error("closing store", "error", err)
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := BuildCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
