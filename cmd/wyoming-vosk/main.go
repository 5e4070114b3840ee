package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/wirgen/wyoming-vosk/config"
	"github.com/wirgen/wyoming-vosk/internal/application"
	"github.com/wirgen/wyoming-vosk/internal/asr"
	"github.com/wirgen/wyoming-vosk/internal/health"
	"github.com/wirgen/wyoming-vosk/internal/infra/admin"
	"github.com/wirgen/wyoming-vosk/internal/observe"
	"github.com/wirgen/wyoming-vosk/internal/sentences"
	"github.com/wirgen/wyoming-vosk/internal/textnorm"
)

// version is stamped by the release build.
var version = "2.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env feeds the ${VAR} expansions in the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	asr.SetVerbose(cfg.Log.Level == "debug")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	shutdownMetrics, err := observe.InitProvider(observe.ProviderConfig{
		ServiceName:    "wyoming-vosk",
		ServiceVersion: version,
	})
	if err != nil {
		logger.Error("initializing metrics", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics(context.Background())

	downloader := asr.NewDownloader(cfg.Models.BaseURL, logger)
	registry := asr.NewRegistry(
		cfg.Models.DataDirs,
		cfg.Models.DownloadDir,
		cfg.Models.ModelForLanguage,
		cfg.Models.ModelIndex,
		downloader,
		logger,
	)
	defer registry.Close()

	var catalog *sentences.Catalog
	if cfg.Sentences.Dir != "" {
		catalog, err = sentences.NewCatalog(cfg.Sentences.Dir, cfg.Sentences.DatabaseDir, logger)
		if err != nil {
			logger.Error("opening sentence catalog", "error", err)
			os.Exit(1)
		}
	}

	cutoff := 0
	if cfg.Sentences.Correct != nil {
		cutoff = *cfg.Sentences.Correct
	}
	overrides := cfg.Sentences.CasingOverrides()
	opts := application.Options{
		DefaultLanguage: cfg.Models.DefaultLanguage,
		Mode:            application.ResolveMode(cfg.Sentences.Limit, cfg.Sentences.Correct),
		Cutoff:          cutoff,
		AllowUnknown:    cfg.Sentences.AllowUnknown,
		PhoneticRepair:  cfg.Sentences.PhoneticRepair,
		CasingOverrides: overrides,
	}

	handler := application.NewHandler(
		&modelSource{registry: registry},
		catalog,
		opts,
		application.ServiceInfo(version),
		observe.DefaultMetrics(),
		logger,
	)

	preload(ctx, cfg, registry, catalog, overrides, logger)

	server := application.NewServer(cfg.Server.URI, handler, logger)

	logger.Info("starting speech to text service",
		"version", version,
		"uri", cfg.Server.URI,
		"mode", opts.Mode,
		"default_language", opts.DefaultLanguage,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	if cfg.Admin.Listen != "" {
		adminServer := admin.NewServer(
			cfg.Admin.Listen,
			cfg.Admin.AuthToken,
			cutoff,
			handler,
			healthChecks(cfg, registry, catalog, overrides),
			logger,
		)
		if err := adminServer.Start(gctx); err != nil {
			logger.Error("starting admin server", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			return adminServer.Stop()
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
}

// preload warms the configured languages so the first utterance does not
// pay for a model download. Failures are logged, not fatal: the language
// still loads lazily once the problem is fixed.
func preload(ctx context.Context, cfg *config.Config, registry *asr.Registry, catalog *sentences.Catalog, overrides map[string]textnorm.Casing, logger *slog.Logger) {
	for _, language := range cfg.Models.PreloadLanguages {
		model, _, err := registry.Get(ctx, language, "")
		if err != nil {
			logger.Warn("preloading model failed", "language", language, "error", err)
			continue
		}
		if catalog != nil {
			casing := asr.CasingFor(model, language, overrides)
			if _, err := catalog.Load(ctx, language, casing); err != nil {
				logger.Warn("preloading sentences failed", "language", language, "error", err)
			}
		}
	}
}

func healthChecks(cfg *config.Config, registry *asr.Registry, catalog *sentences.Catalog, overrides map[string]textnorm.Casing) []health.Check {
	checks := []health.Check{
		{Name: "models", Probe: func(context.Context) error {
			_, err := registry.ResolveName(cfg.Models.DefaultLanguage, "")
			return err
		}},
	}
	if catalog != nil {
		checks = append(checks, health.Check{Name: "sentences", Probe: func(ctx context.Context) error {
			casing := asr.CasingFor("", cfg.Models.DefaultLanguage, overrides)
			_, err := catalog.Load(ctx, cfg.Models.DefaultLanguage, casing)
			return err
		}})
	}
	return checks
}

// modelSource adapts the registry's concrete engines to the session
// interfaces.
type modelSource struct {
	registry *asr.Registry
}

func (s *modelSource) Get(ctx context.Context, language, requested string) (string, application.Recognizer, error) {
	model, engine, err := s.registry.Get(ctx, language, requested)
	if err != nil {
		return "", nil, err
	}
	return model, engineRecognizer{engine: engine}, nil
}

type engineRecognizer struct {
	engine *asr.Engine
}

func (r engineRecognizer) NewSession(sampleRate int, grammar []string) (application.RecognizerSession, error) {
	session, err := r.engine.NewSession(sampleRate, grammar)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr: with a stdio:// server, stdout carries the event
	// stream.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
