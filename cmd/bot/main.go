package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"roster-bot/internal/cadence"
	"roster-bot/internal/checkin"
	"roster-bot/internal/clock"
	"roster-bot/internal/config"
	"roster-bot/internal/identity"
	"roster-bot/internal/jobs"
	"roster-bot/internal/metrics"
	"roster-bot/internal/models"
	"roster-bot/internal/roster"
	"roster-bot/internal/server"
	"roster-bot/internal/sheets"
	"roster-bot/internal/tgbot"
	"roster-bot/internal/tournament"
)

func main() {
	app := &cli.App{
		Name:  "roster-bot",
		Usage: "collect team submissions and check-ins from Telegram into Google Sheets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading the environment"},
			&cli.StringFlag{Name: "events", Usage: "event manifest YAML (overrides EVENTS_FILE)"},
			&cli.StringFlag{Name: "http-addr", Usage: "side server address (overrides HTTP_ADDR)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides LOG_LEVEL)"},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "tabs",
				Usage:  "print the tab each event writes to right now",
				Action: printTabs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (config.Config, []models.EventManifest, error) {
	_ = godotenv.Load(c.String("env-file"))

	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	if v := c.String("events"); v != "" {
		cfg.EventsFile = v
	}
	if v := c.String("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	events, err := config.LoadEvents(cfg.EventsFile)
	if err != nil {
		return cfg, nil, fmt.Errorf("events: %w", err)
	}
	return cfg, events, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func cadenceOpts(cfg config.Config) []cadence.Option {
	if cfg.ResolvedYearLabels {
		return []cadence.Option{cadence.WithResolvedYear()}
	}
	return nil
}

func printTabs(c *cli.Context) error {
	cfg, events, err := loadConfig(c)
	if err != nil {
		return err
	}
	loc, _ := cfg.Location()
	now := clock.NewSystem(loc).Now()
	for _, e := range events {
		tab, err := cadence.TabFor(e, now, cadenceOpts(cfg)...)
		if err != nil {
			tab = "error: " + err.Error()
		}
		fmt.Printf("%-24s %-20s %s\n", e.Channel, e.Kind, tab)
	}
	return nil
}

func runBot(c *cli.Context) error {
	cfg, events, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	loc, _ := cfg.Location()
	clk := clock.NewSystem(loc)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A collaborator that cannot be built stays nil; its commands answer with
	// the configuration error until restart.
	var (
		engine  *roster.Engine
		mapper  *identity.Mapper
		checkIn *checkin.Coordinator
		job     *jobs.FreshnessJob
	)
	sheetsClient, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, logger.With(slog.String("component", "sheets")))
	if err != nil {
		logger.Error("sheets unavailable", slog.Any("error", err))
	} else {
		master := roster.Target{SheetID: cfg.MasterSheetID, Tab: cfg.MasterTab, Layout: cfg.MasterLayout()}
		engine = roster.NewEngine(sheetsClient, logger.With(slog.String("component", "roster")))
		mapper = identity.NewMapper(sheetsClient, master, logger.With(slog.String("component", "identity")))
		job = jobs.NewFreshnessJob(sheetsClient, sheetIDs(cfg, events), cfg.FreshnessInterval,
			logger.With(slog.String("component", "freshness")), m).
			WithTabs(sheetsClient, func() map[string][]string {
				return cadence.CurrentTabs(events, clk.Now(), cadenceOpts(cfg)...)
			})
	}

	provider, err := tournament.NewProvider(cfg, logger.With(slog.String("component", "tournament")))
	switch {
	case err != nil:
		logger.Error("tournament provider unavailable", slog.Any("error", err))
	case mapper != nil:
		logger.Info("tournament provider ready", slog.String("provider", provider.Name()))
		checkIn = checkin.NewCoordinator(mapper, provider, cfg.BotName, logger.With(slog.String("component", "checkin")), m)
	}

	router := tgbot.NewRouter(tgbot.RouterConfig{
		BotName:       cfg.BotName,
		AdminIDs:      cfg.AdminTGIDs,
		BasePublicURL: cfg.BasePublicURL,
		HTTPAddr:      cfg.HTTPAddr,
		ExportSecret:  cfg.ExportSecret,
		CadenceOpts:   cadenceOpts(cfg),
	}, events, engine, mapper, checkIn, clk, logger.With(slog.String("component", "router")), m)

	botApp, err := tgbot.New(cfg.TelegramToken, router, logger.With(slog.String("component", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	httpSrv := server.New(cfg.HTTPAddr, cfg.ExportSecret, reg, router, logger.With(slog.String("component", "http")))
	go func() {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	if job != nil {
		job.Start(ctx)
	}

	logger.Info("bot started",
		slog.Int("events", len(events)),
		slog.String("events_file", cfg.EventsFile),
		slog.String("channels", channelList(events)),
	)
	if err := botApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", slog.Any("error", err))
	}

	logger.Info("shutting down")
	if job != nil {
		job.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	logger.Info("bye")
	return nil
}

// sheetIDs lists every spreadsheet the bot writes to, the master sheet first.
func sheetIDs(cfg config.Config, events []models.EventManifest) []string {
	ids := []string{cfg.MasterSheetID}
	for _, e := range events {
		ids = append(ids, e.SpreadsheetID)
	}
	return ids
}

func channelList(events []models.EventManifest) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Channel
	}
	return strings.Join(names, ",")
}
