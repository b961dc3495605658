package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"piso-search/internal/api"
	"piso-search/internal/autofill"
	"piso-search/internal/config"
	"piso-search/internal/db"
	"piso-search/internal/extractor"
	"piso-search/internal/llm"
	"piso-search/internal/rentmarket"
	"piso-search/internal/scraper"
	"piso-search/internal/territory"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	gaz, err := loadGazetteer(cfg)
	if err != nil {
		slog.Error("loading gazetteer", "error", err)
		os.Exit(1)
	}

	store, err := rentmarket.OpenStore(cfg.RentMarketPath, cfg.RentMarketTTL)
	if err != nil {
		slog.Error("opening rent market store", "error", err)
		os.Exit(1)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	jar := scraper.NewCookieJar()
	throttle := scraper.NewThrottle(cfg.RateLimit)
	httpFetcher := scraper.NewFetcher()

	var fetcher autofill.Fetcher = httpFetcher
	var browser *scraper.BrowserFetcher
	if cfg.UseBrowser {
		browser = scraper.NewBrowserFetcher(true)
		if err := browser.Start(); err != nil {
			slog.Error("starting browser", "error", err)
			os.Exit(1)
		}
		defer browser.Stop()
		fetcher = browser
		slog.Info("using headless browser for listing fetches")
	}

	client := llm.NewClient(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       float32(cfg.LLM.Temperature),
		Timeout:           cfg.LLM.Timeout,
		MaxCallsPerMinute: cfg.LLM.MaxCallsPerMinute,
		MaxCallsPerHour:   cfg.LLM.MaxCallsPerHour,
	})

	market := rentmarket.NewLookup(gaz, store, httpFetcher, jar, throttle)
	static, err := rentmarket.NewStatic(gaz)
	if err != nil {
		slog.Error("loading static rent data", "error", err)
		os.Exit(1)
	}

	svc := autofill.New(extractor.New(gaz), fetcher, jar, throttle, client, market, static, database,
		autofill.Options{
			CacheTTL:    cfg.CacheTTL,
			ForceSource: cfg.ForceSource,
		})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(svc, gaz, database),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Warn("flushing rent market store", "error", err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})))
}

func loadGazetteer(cfg config.Config) (*territory.Index, error) {
	if cfg.TerritoryDir != "" {
		return territory.LoadDir(cfg.TerritoryDir)
	}
	return territory.Load()
}
