package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/cache"
	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/client"
	"github.com/raaihank/grammar-sentinel/internal/config"
	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/logger"
	"github.com/raaihank/grammar-sentinel/internal/metrics"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
	"github.com/raaihank/grammar-sentinel/internal/privacy"
	"github.com/raaihank/grammar-sentinel/internal/render"
	"github.com/raaihank/grammar-sentinel/internal/session"
)

// app holds the configuration and the components built from it. Components
// are created on demand and released by close.
type app struct {
	loader *config.Loader
	cfg    *config.Config
	log    *logger.Logger

	metrics *metrics.Metrics
	client  *client.Client
	closers []func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		logCfg.File = &logger.FileConfig{Enabled: true, Path: cfg.Logging.File.Path}
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{loader: loader, cfg: cfg, log: log}
	a.closers = append(a.closers, func() error {
		log.Sync()
		return nil
	})
	if file := loader.ConfigFile(); file != "" {
		log.Debug("Configuration loaded", zap.String("file", file))
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) withMetrics() *metrics.Metrics {
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}
	return a.metrics
}

func (a *app) grammarClient() *client.Client {
	if a.client == nil {
		var opts []client.Option
		if a.metrics != nil {
			opts = append(opts, client.WithObserver(a.metrics.ObserveUpstream))
		}
		a.client = client.New(a.cfg.Service, a.log, opts...)
	}
	return a.client
}

func (a *app) sessionStore() (session.Store, error) {
	switch a.cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		store, err := session.NewRedisStore(a.cfg.Session.RedisURL, a.cfg.Cache.KeyPrefix, a.cfg.Session.Profile, a.cfg.Session.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		path := a.cfg.Session.Path
		if path == "" {
			var err error
			if path, err = session.DefaultPath(a.cfg.Session.Profile); err != nil {
				return nil, err
			}
		}
		return session.NewFileStore(path), nil
	}
}

func (a *app) sessions() (*session.Manager, error) {
	store, err := a.sessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return session.NewManager(store, a.grammarClient(), a.log), nil
}

func newEngine(cfg config.OverlayConfig) (*overlay.Engine, error) {
	unit, err := overlay.ParseUnit(cfg.PositionUnit)
	if err != nil {
		return nil, err
	}
	return overlay.NewEngine(overlay.WithTolerance(cfg.Tolerance), overlay.WithUnit(unit))
}

func (a *app) resultCache() (*cache.ResultCache, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	rc, err := cache.NewResultCache(&cache.Config{
		RedisURL:       a.cfg.Cache.RedisURL,
		MaxConnections: a.cfg.Cache.MaxConnections,
		MinIdleConns:   a.cfg.Cache.MinIdleConns,
		DefaultTTL:     a.cfg.Cache.DefaultTTL,
		KeyPrefix:      a.cfg.Cache.KeyPrefix,
	}, a.log.WithComponent("cache").Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rc.Close)
	return rc, nil
}

func (a *app) historyStore() (*history.Store, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.NewStore(&history.Config{
		Driver:          a.cfg.History.Driver,
		DSN:             a.cfg.History.DSN,
		MaxOpenConns:    a.cfg.History.MaxOpenConns,
		MaxIdleConns:    a.cfg.History.MaxIdleConns,
		ConnMaxLifetime: a.cfg.History.ConnMaxLifetime,
	}, a.log.WithComponent("history").Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// checker wires the checker with every enabled optional component
func (a *app) checker(sessions *session.Manager, opts ...checker.Option) (*checker.Checker, *history.Store, error) {
	engine, err := newEngine(a.cfg.Overlay)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid overlay settings: %w", err)
	}
	opts = append(opts, checker.WithEngine(engine))

	if a.metrics != nil {
		opts = append(opts, checker.WithMetrics(a.metrics))
	}

	rc, err := a.resultCache()
	if err != nil {
		// the cache is an optimization; run without it
		a.log.Warn("Result cache unavailable", zap.Error(err))
	} else if rc != nil {
		opts = append(opts, checker.WithCache(rc))
	}

	store, err := a.historyStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	if store != nil {
		var redactor *privacy.Redactor
		if a.cfg.History.Redact {
			if redactor, err = privacy.New(a.cfg.Privacy, a.log); err != nil {
				return nil, nil, err
			}
		}
		opts = append(opts, checker.WithHistory(store, redactor))
	}

	return checker.New(a.grammarClient(), sessions, a.log, opts...), store, nil
}

// renderer builds the renderer for format, or the configured one when empty
func (a *app) renderer(format string) (render.Renderer, error) {
	if format == "" {
		format = a.cfg.Render.Format
	}
	return render.New(format, render.Options{
		HighlightClass: a.cfg.Render.HighlightClass,
		MarkerOpen:     a.cfg.Render.MarkerOpen,
		MarkerClose:    a.cfg.Render.MarkerClose,
		Placeholder:    a.cfg.Render.Placeholder,
		Profile:        termenv.NewOutput(os.Stdout).EnvColorProfile(),
	})
}
