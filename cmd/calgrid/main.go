package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/render"
	"calgrid/internal/store"
	"calgrid/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	month      string
	entity     string
	debug      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("calgrid failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("calgrid starting", "version", version)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	opts, err := conf.CalendarOptions()
	if err != nil {
		return fmt.Errorf("calendar options: %w", err)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"inline_limit", conf.InlineLimit,
		"refresh", conf.RefreshCron,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()
	refresher := store.NewRefresher(conf, st, ics.NewFetcher(conf.CacheDir), calendar.RealClock{})

	if err := refresher.RunOnce(ctx); err != nil {
		if errors.Is(err, store.ErrAllSourcesFailed) && flags.once {
			return err
		}
		appLog.Error("initial refresh reported errors", err)
	}

	if flags.once {
		return printMonth(st, opts, flags)
	}

	if err := refresher.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}

	srv := web.NewServer(conf, opts, st, refresher, calendar.RealClock{})
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}

	appLog.Info("calgrid exiting")
	return nil
}

// printMonth renders one month of the current snapshot to stdout.
func printMonth(st *store.Store, opts calendar.Options, flags flagConfig) error {
	view := calendar.NewView(opts, calendar.RealClock{})
	view.SetFilter(calendar.FilterFor(flags.entity))

	if flags.month != "" {
		t, err := time.Parse("2006-01", strings.TrimSpace(flags.month))
		if err != nil {
			return fmt.Errorf("invalid -month %q, want YYYY-MM: %w", flags.month, err)
		}
		if err := view.Navigator().Jump(t.Year(), t.Month()); err != nil {
			return err
		}
	}

	grid, buckets, err := view.Render(st.Records())
	if err != nil {
		return err
	}
	if buckets.Skipped() > 0 {
		appLog.Warn("records skipped for missing effective date", "count", buckets.Skipped())
	}
	return render.Month(color.Output, grid, opts.InlineLimit)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calgrid/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, print the month grid and exit")
	flag.StringVar(&cfg.month, "month", "", "Month to print with -once (YYYY-MM, default current)")
	flag.StringVar(&cfg.entity, "entity", "", "Only show records of this entity")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
