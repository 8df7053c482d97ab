package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskcal/internal/app"
	"taskcal/internal/clock"
	"taskcal/internal/config"
	"taskcal/internal/ics"
	appLog "taskcal/internal/log"
	"taskcal/internal/planner"
	"taskcal/internal/scheduler"
	"taskcal/internal/web"
)

// flagConfig holds CLI flag values before the config file is merged in.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	tomorrow   bool
	now        string
}

func main() {
	appLog.Info("taskcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.SetFormat(conf.LogFormat)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"rollover", conf.Rollover,
		"cache_dir", conf.CacheDir,
		"ics_count", len(conf.ICS),
		"recurring_count", len(conf.Recurring),
		"once", flags.once,
	)

	c, err := buildClock(flags.now)
	if err != nil {
		appLog.Error("invalid -now", err, "now", flags.now)
		os.Exit(2)
	}

	svc, err := buildService(conf, c)
	if err != nil {
		appLog.Error("failed to build service", err)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, svc, flags.tomorrow); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(svc, conf.Schedule)
	if err := sched.Start(); err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Catch up once at startup so the board is populated before the first tick.
	if _, err := svc.Materialize(ctx, false); err != nil {
		appLog.Error("startup materialize failed", err)
	}
	if _, err := svc.SyncToday(ctx); err != nil {
		appLog.Warn("startup calendar sync failed", "error", err.Error())
	}

	if err := web.Serve(ctx, conf, svc); err != nil {
		appLog.Error("http server stopped", err)
		os.Exit(1)
	}
	appLog.Info("taskcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/taskcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Materialize, sync calendars, print the board and exit")
	flag.BoolVar(&cfg.tomorrow, "tomorrow", false, "With -once, materialize for tomorrow instead of today")
	flag.StringVar(&cfg.now, "now", "", "Pin the clock to an RFC3339 instant (for dry runs)")

	flag.Parse()

	return cfg
}

func buildClock(now string) (clock.Clock, error) {
	if now == "" {
		return clock.System{}, nil
	}
	t, err := time.Parse(time.RFC3339, now)
	if err != nil {
		return nil, err
	}
	return clock.Fixed(t), nil
}

func buildService(conf *config.Config, c clock.Clock) (*app.Service, error) {
	defs, err := conf.Definitions()
	if err != nil {
		return nil, err
	}

	defStore := planner.NewDefinitionStore()
	taskStore := planner.NewTaskStore()
	ctx := context.Background()
	for _, d := range defs {
		if err := defStore.Save(ctx, d); err != nil {
			return nil, err
		}
	}

	return &app.Service{
		Clock:    c,
		Rollover: conf.Rollover,
		Planner:  planner.New(c, defStore, taskStore, conf.Rollover),
		Defs:     defStore,
		Fetcher:  ics.NewFetcher(conf.CacheDir, nil),
		Sources:  app.SourcesFromConfig(conf.ICS),
	}, nil
}

// runOnce performs one materialize+sync cycle and prints the resulting board.
func runOnce(ctx context.Context, svc *app.Service, forTomorrow bool) error {
	res, err := svc.Materialize(ctx, forTomorrow)
	if err != nil {
		return err
	}
	if _, err := svc.SyncCalendars(ctx, res.Target); err != nil {
		appLog.Warn("calendar sync failed", "error", err.Error())
	}

	board, err := svc.Planner.Board(ctx, res.Target)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"date":    res.Target,
		"skipped": res.Skipped,
		"tasks":   board,
	}); err != nil {
		return fmt.Errorf("write board: %w", err)
	}
	return nil
}
