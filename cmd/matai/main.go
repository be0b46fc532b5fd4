package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"

	"matai/internal/calendar"
	"matai/internal/config"
	"matai/internal/holidays"
	"matai/internal/images"
	appLog "matai/internal/log"
	"matai/internal/months"
	"matai/internal/netprobe"
	"matai/internal/parasha"
	"matai/internal/remote"
	"matai/internal/scheduler"
	"matai/internal/storage"
	"matai/internal/web"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

// Options are the global command-line options.
type Options struct {
	Config    string `short:"c" long:"config" env:"MATAI_CONFIG" default:"/etc/matai/config.yaml" description:"Path to config file"`
	Debug     bool   `long:"debug" description:"Enable debug logging"`
	Ephemeral bool   `long:"ephemeral" description:"Keep local data in memory instead of the database"`

	Serve      serveCommand      `command:"serve" description:"Run the HTTP API and the periodic refresh"`
	Holidays   holidaysCommand   `command:"holidays" description:"Print upcoming holidays"`
	Parasha    parashaCommand    `command:"parasha" description:"Print the weekly Torah portion"`
	ClearCache clearCacheCommand `command:"clear-cache" description:"Remove cached images and the holiday snapshot"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// app holds the wired components shared by every command.
type app struct {
	cfg *config.Config
	loc *time.Location

	store      storage.Store
	calendar   *calendar.Client
	images     *images.Enricher
	snapshot   *holidays.Cache
	aggregator *holidays.Aggregator
	portions   *parasha.Resolver
	months     *months.Service

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", opts.Config, err)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if opts.Debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", cfg.Timezone, err)
	}

	a := &app{cfg: cfg, loc: loc}

	if opts.Ephemeral {
		a.store = storage.NewMemory()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err := storage.OpenSQLite(cfg.DatabasePath())
		if err != nil {
			return nil, err
		}
		a.store = db
		a.closers = append(a.closers, db.Close)
	}

	var rs remote.Store
	if r, err := remote.NewRedis(ctx, cfg.Remote); err != nil {
		appLog.Error("remote store unavailable, continuing without it", err)
	} else if r != nil {
		rs = r
		a.closers = append(a.closers, r.Close)
	}

	a.calendar, err = calendar.NewClient(cfg, loc)
	if err != nil {
		a.Close()
		return nil, err
	}

	probe := netprobe.NewHTTPProbe(cfg.Connectivity.ProbeURL, time.Duration(cfg.Connectivity.TimeoutSeconds)*time.Second)

	a.images = images.New(cfg, a.store, loc)
	a.snapshot = holidays.NewCache(a.store, cfg.CacheTTL(), loc, nil)
	a.aggregator = holidays.NewAggregator(a.calendar, a.images, a.snapshot, probe, nil)
	a.portions = parasha.NewResolver(a.calendar, loc)
	a.months = months.NewService(rs, a.store)

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"data_dir", cfg.DataDir,
		"ephemeral", opts.Ephemeral,
		"remote", rs != nil,
		"occasions", len(cfg.Occasions),
		"images_enabled", cfg.Images.AccessKey != "",
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			appLog.Error("close failed", err)
		}
	}
}

type serveCommand struct {
	Listen string `long:"listen" description:"HTTP listen address (overrides config if set)"`
}

func (c *serveCommand) Execute([]string) error {
	appLog.Info("matai starting", "version", Version)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		appLog.Error("startup failed", err)
		return err
	}
	defer a.Close()

	if c.Listen != "" {
		a.cfg.Listen = c.Listen
	}

	if err := a.months.Initialize(ctx); err != nil {
		appLog.Error("month names initialization failed", err)
	}

	sched, err := scheduler.New(ctx, a.cfg.RefreshCron, a.loc, func(ctx context.Context) {
		a.aggregator.GetHolidays(ctx)
		if _, err := a.images.HeaderImage(ctx); err != nil {
			appLog.Warn("header image warm-up interrupted", "err", err)
		}
	})
	if err != nil {
		return err
	}
	sched.Start()

	srv := web.NewServer(a.cfg, a.loc, web.Deps{
		Holidays: a.aggregator,
		Portions: a.portions,
		Images:   a.images,
		Snapshot: a.snapshot,
		Months:   a.months,
	})
	httpServer := &http.Server{
		Addr:         a.cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		appLog.Error("HTTP server failed", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		appLog.Error("HTTP server shutdown failed", serr)
	}
	sched.Stop(shutdownCtx)

	appLog.Info("matai exiting")
	return err
}

type holidaysCommand struct{}

func (c *holidaysCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	events := a.aggregator.GetHolidays(ctx)
	names := a.months.Get(ctx)
	now := time.Now().In(a.loc)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			months.FormatDate(ev.Date, now, names), ev.Name, months.FormatCountdown(ev.DaysLeft), ev.ImageURL)
	}
	return tw.Flush()
}

type parashaCommand struct {
	Date string `long:"date" description:"Date as YYYY-MM-DD (default today)"`
}

func (c *parashaCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date := time.Now().In(a.loc)
	if c.Date != "" {
		date, err = time.ParseInLocation("2006-01-02", c.Date, a.loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", c.Date, err)
		}
	}

	p := a.portions.Resolve(ctx, date)
	if p == nil {
		fmt.Println("No weekly portion available for", date.Format("2006-01-02"))
		return nil
	}
	fmt.Printf("%s (%s)\n%s\n", p.FullTitle(), p.EnglishName, p.Description)
	return nil
}

type clearCacheCommand struct{}

func (c *clearCacheCommand) Execute([]string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.images.ClearCache(ctx); err != nil {
		return err
	}
	if err := a.snapshot.Clear(ctx); err != nil {
		return err
	}
	appLog.Info("caches cleared")
	return nil
}
