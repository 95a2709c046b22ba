package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/five82/shelf/internal/config"
	"github.com/five82/shelf/internal/library"
	"github.com/five82/shelf/internal/metrics"
	"github.com/five82/shelf/internal/prefs"
	"github.com/five82/shelf/internal/state"
	"github.com/five82/shelf/internal/ui"
)

// Options configure the shelf application.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/shelf/prefs.toml
	RefreshEvery int    // seconds; zero uses the config value
}

// Run boots the shelf TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.RefreshEvery > 0 {
		cfg.RefreshEvery = time.Duration(opts.RefreshEvery) * time.Second
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	logger, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, reg, logger)
	}

	client, err := library.NewClient(cfg.APIBase, library.ClientOptions{
		Timeout: cfg.RequestTimeout,
		Logger:  logger.Named("client"),
	})
	if err != nil {
		return fmt.Errorf("init book client: %w", err)
	}

	store, err := state.New(client, state.Options{
		Logger:        logger,
		Metrics:       m,
		LookupQuiet:   cfg.LookupQuiet,
		LookupPersist: cfg.LookupPersist,
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	logger.Info("shelf starting",
		zap.String("api_base", cfg.APIBase),
		zap.Duration("refresh", cfg.RefreshEvery),
		zap.Duration("lookup_quiet", cfg.LookupQuiet))

	// Do initial refresh to populate the cache before UI starts
	if err := store.Refresh(ctx); err != nil {
		logger.Warn("initial refresh failed", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.RefreshEvery > 0 {
		StartPoller(runCtx, store, cfg.RefreshEvery, logger.Named("poller"))
	}

	return ui.Run(ui.Options{
		Context:   runCtx,
		Store:     store,
		ChartURL:  client.ChartURL(),
		LogPath:   cfg.LogFile,
		ThemeName: userPrefs.Theme,
		Sort:      userPrefs.Sort,
		PrefsPath: opts.PrefsPath,
		Logger:    logger.Named("ui"),
	})
}

// newLogger writes JSON lines to path; the terminal belongs to the TUI.
func newLogger(path string, level zapcore.Level) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	return cfg.Build()
}

func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}
