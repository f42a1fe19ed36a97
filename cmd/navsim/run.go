package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ethanmclark1/conav-suite/internal/api"
	"github.com/ethanmclark1/conav-suite/internal/config"
	"github.com/ethanmclark1/conav-suite/internal/engine"
	"github.com/ethanmclark1/conav-suite/internal/entropy"
	"github.com/ethanmclark1/conav-suite/internal/observe"
	"github.com/ethanmclark1/conav-suite/internal/persistence"
)

var version = "dev"

func newRunCmd() *cobra.Command {
	var (
		episodes  int
		scenarios []string
		seed      int64
		listen    string
		dbPath    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes with a random policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("episodes") {
				cfg.Run.Episodes = episodes
			}
			if flags.Changed("scenario") {
				cfg.Run.Scenarios = scenarios
			}
			if flags.Changed("seed") {
				cfg.Run.Seed = &seed
			}
			if flags.Changed("listen") {
				cfg.Server.Listen = listen
			}
			if flags.Changed("db") {
				cfg.Storage.DBPath = dbPath
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&episodes, "episodes", "n", 1, "episodes to run (0 = until interrupted)")
	cmd.Flags().StringSliceVarP(&scenarios, "scenario", "s", nil, "scenarios to cycle through")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed of the first episode")
	cmd.Flags().StringVar(&listen, "listen", "", "serve the status API on this address")
	cmd.Flags().StringVar(&dbPath, "db", "", "store episodes in this SQLite file")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown failed", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Seeds ─────────────────────────────────────────────────────────
	seeds := entropy.NewClient(cfg.Run.RandomOrgAPIKey)
	if seeds.Enabled() {
		slog.Info("random.org seeds enabled")
	} else if cfg.Run.Seed == nil {
		slog.Info("RANDOM_ORG_API_KEY not set, drawing seeds from crypto/rand")
	}

	// ── Environment ───────────────────────────────────────────────────
	opts := cfg.Options()
	opts.Seeds = seeds
	opts.Metrics = metrics
	env, err := engine.New(opts)
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}

	runner := engine.NewRunner(env, cfg.Run.PolicySeed)
	runner.Interval = cfg.Run.Interval
	runner.Scenarios = cfg.Run.Scenarios
	runner.Seed = cfg.Run.Seed

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Storage.DBPath != "" {
		if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Storage.DBPath)
	}

	var totalRounds int64
	runner.OnRound = func(round int) {
		totalRounds++
		slog.Debug("round complete", "round", round)
	}
	runner.OnEpisode = func(res engine.EpisodeResult) {
		fmt.Printf("%s episode: %s seed=%d, %s rounds, %s (%s)\n",
			humanize.Ordinal(runner.Status().Completed),
			res.Scenario, res.Seed,
			humanize.Comma(int64(res.Rounds)),
			res.Outcome,
			res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
		)
		if db == nil {
			return
		}
		if err := db.SaveEpisode(res); err != nil {
			slog.Error("save episode failed", "id", res.ID, "error", err)
			return
		}
		if err := db.SaveMeta("last_episode", res.ID); err != nil {
			slog.Warn("save meta failed", "error", err)
		}
		if err := db.SaveMeta("last_seed", strconv.FormatInt(res.Seed, 10)); err != nil {
			slog.Warn("save meta failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	serverErr := make(chan error, 1)
	if cfg.Server.Listen != "" {
		adminKey := os.Getenv("NAVSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("NAVSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := &api.Server{
			Runner:         runner,
			DB:             db,
			Metrics:        metrics,
			MetricsHandler: provider.Handler(),
			Addr:           cfg.Server.Listen,
			AdminKey:       adminKey,
		}
		go func() { serverErr <- srv.ListenAndServe(ctx) }()
		fmt.Printf("API: http://%s/api/v1/status\n", cfg.Server.Listen)
	}

	// ── Start ─────────────────────────────────────────────────────────
	started := time.Now()
	runErr := runner.Run(ctx, cfg.Run.Episodes)
	stop()

	if cfg.Server.Listen != "" {
		if err := <-serverErr; err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	st := runner.Status()
	fmt.Printf("\n%s episodes (%d reached goals, %d truncated), %s rounds in %s.\n",
		humanize.Comma(int64(st.Completed)), st.Terminated, st.Truncated,
		humanize.Comma(totalRounds), humanize.RelTime(started, time.Now(), "", ""),
	)
	return nil
}
