package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"calmark/internal/capture"
	"calmark/internal/config"
	"calmark/internal/holiday"
	"calmark/internal/host"
	"calmark/internal/ics"
	appLog "calmark/internal/log"
	"calmark/internal/mark"
	"calmark/internal/metrics"
	"calmark/internal/store"
	"calmark/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.Resolve(flags.configPath)

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("calmark starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"marks_file", conf.MarksFile,
		"ics_count", len(conf.ICS),
		"holiday_rules", len(conf.Holidays.Rules),
		"edit", conf.Edit,
		"watch", conf.Watch,
		"preview", conf.Preview.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("calmark exited with error", err)
		os.Exit(1)
	}
	appLog.Info("calmark exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := web.ResolveLocationOrLocal(conf.Timezone)
	m := metrics.New()

	cacheDir := filepath.Join(filepath.Dir(conf.MarksFile), "ics-cache")
	fetcher := ics.NewFetcher(cacheDir, &http.Client{Timeout: 30 * time.Second})

	// Later sources win corner and festival slots on shared dates.
	h := host.New(mark.NewIndexer(), m,
		holiday.NewSource(conf.Holidays, func() time.Time { return time.Now().In(loc) }),
		ics.NewMarkSource(fetcher, conf.ICS, loc, 7, 90),
		store.FileSource{Path: conf.MarksFile, Location: loc},
	)

	changed, err := h.Refresh(ctx)
	if err != nil {
		return err
	}
	appLog.Info("initial marks loaded", "dates", len(changed))

	if flags.once {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	if conf.Preview.Enabled {
		url := conf.Preview.URL
		if url == "" {
			url = "http://" + localAddr(conf.Listen) + "/calendar"
		}
		p := capture.NewPreviewer(ctx, capture.CaptureOptions{
			URL:        url,
			OutputPath: conf.Preview.Path,
		}, conf.WeekStart, loc, m, nil)
		h.OnChange(p.OnChange)
		g.Go(func() error {
			<-ctx.Done()
			p.Wait()
			return nil
		})
	}
	h.MarkLoaded()

	refresh := func(reason string) {
		appLog.Debug("refresh triggered", "reason", reason)
		if _, err := h.Refresh(ctx); err != nil {
			appLog.Error("refresh failed", err, "reason", reason)
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() { refresh("cron") }); err != nil {
		return err
	}
	c.Start()
	g.Go(func() error {
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	})

	if conf.Watch {
		w := store.NewWatcher(conf.MarksFile, 0, func() { refresh("marks file changed") })
		g.Go(func() error { return w.Run(ctx) })
	}

	srv := web.NewServer(conf, h, m)
	g.Go(func() error { return srv.Run(ctx) })

	// Draw once the server had a moment to start listening.
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			refresh("startup")
		}
		return nil
	})

	return g.Wait()
}

// localAddr turns a wildcard listen address into one Chromium can reach.
func localAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "127.0.0.1" + listen
	}
	if strings.HasPrefix(listen, "0.0.0.0:") {
		return "127.0.0.1" + strings.TrimPrefix(listen, "0.0.0.0")
	}
	return listen
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calmark/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load every source once, log the result and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
