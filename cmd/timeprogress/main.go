package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"timeprogress/internal/capture"
	"timeprogress/internal/clock"
	"timeprogress/internal/config"
	"timeprogress/internal/events"
	"timeprogress/internal/i18n"
	"timeprogress/internal/kv"
	appLog "timeprogress/internal/log"
	"timeprogress/internal/render"
	"timeprogress/internal/scheduler"
	"timeprogress/internal/snapshot"
	"timeprogress/internal/tui"
	"timeprogress/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	user       string
	once       bool
	tui        bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	logOut := os.Stderr
	if flags.tui {
		// The terminal belongs to the dashboard; keep logs in a file.
		f, err := os.OpenFile(filepath.Join(os.TempDir(), "timeprogress.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			appLog.Error("failed to open log file", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	appLog.Setup(logOut, conf.LogFormat, level)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("timeprogress starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Location().String(),
		"refresh", conf.RefreshCron,
		"language", conf.Language,
		"store_path", conf.Store.Path,
		"capture", conf.Capture.Enabled,
	)

	clk := clock.New(conf.Location())
	tr := i18n.New(conf.Language)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(conf)
	if err != nil {
		appLog.Error("failed to open store", err, "path", conf.Store.Path)
		os.Exit(1)
	}
	defer closeStore()
	repo := events.NewRepository(store, clk)

	if flags.once {
		if err := runOnce(ctx, clk, repo, tr, flags.user); err != nil {
			appLog.Error("render failed", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, conf, clk, repo, tr, flags); err != nil {
		appLog.Error("timeprogress stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("timeprogress exiting")
}

// runOnce prints one snapshot, plus the user's events when -user is set.
func runOnce(ctx context.Context, clk clock.Clock, repo *events.Repository, tr *i18n.Translator, user string) error {
	now := clk.Now()
	fmt.Print(render.Text(snapshot.Build(now), tr, render.DefaultBarWidth))
	if user == "" {
		return nil
	}
	items, err := repo.List(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(render.Events(events.ProgressAll(items, now), tr, render.DefaultBarWidth))
	return nil
}

func run(ctx context.Context, conf *config.Config, clk clock.Clock, repo *events.Repository, tr *i18n.Translator, flags flagConfig) error {
	sched, err := scheduler.New(snapshot.NewBuilder(clk), conf.RefreshCron)
	if err != nil {
		return err
	}

	deps := web.Deps{Config: conf, Clock: clk, Snapshots: sched, Events: repo}
	if conf.Capture.Enabled {
		shooter, err := capture.New(capture.Options{
			URL:        captureURL(conf),
			OutputPath: conf.Capture.Output,
			FramePath:  conf.Capture.FrameOutput,
			Width:      conf.Capture.Width,
			Height:     conf.Capture.Height,
		})
		if err != nil {
			return err
		}
		if err := sched.AddJob(conf.Capture.Cron, "capture", shooter.Run); err != nil {
			return err
		}
		deps.Preview = shooter
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- sched.Run(ctx) }()
	go func() { errCh <- web.NewServer(deps).Start(ctx) }()
	running := 2
	if flags.tui {
		running++
		go func() {
			err := tui.Run(ctx, sched, tr)
			// Leaving the TUI stops the process.
			cancel()
			errCh <- err
		}()
	}

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

func openStore(conf *config.Config) (kv.Store, func(), error) {
	if conf.Store.Path == "" {
		appLog.Warn("store.path is empty; events are kept in memory only")
		return kv.NewMemory(), func() {}, nil
	}
	db, err := kv.OpenSQLite(conf.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			appLog.Error("failed to close store", err)
		}
	}
	return kv.NewCached(db, conf.Store.CacheSize, conf.CacheTTL()), closeFn, nil
}

// captureURL points the browser at the local dashboard unless a URL is
// configured.
func captureURL(conf *config.Config) string {
	if conf.Capture.URL != "" {
		return conf.Capture.URL
	}
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		return "http://" + conf.Listen + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/timeprogress/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print one snapshot to stdout and exit")
	flag.StringVar(&cfg.user, "user", "", "With -once, also print this user's events")
	flag.BoolVar(&cfg.tui, "tui", false, "Show the live terminal dashboard while serving")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
