// Package app is the application root: it builds every component from the
// configuration and wires them together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/scoutme/client/core"
	"github.com/scoutme/client/internal/config"
	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/metrics"
	"github.com/scoutme/client/router"
	"github.com/scoutme/client/services"
	"github.com/scoutme/client/ui"
)

// App owns the components of a running client.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Tracing   *sdktrace.TracerProvider
	Storage   core.Storage
	Client    *services.ApiClient
	Session   *core.SessionStore
	Router    *router.Router
	Boundary  *core.ErrorBoundary
	Refresher *core.SessionRefresher
	Shell     *ui.Shell

	closers []func() error
	cancel  context.CancelFunc
}

// New builds the client. fyneApp provides the window and, for the
// preferences backend, the storage.
func New(cfg *config.Config, fyneApp fyne.App, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	// Spans are not exported; the provider gives API calls real trace ids
	// so their log records can be correlated.
	a.Tracing = sdktrace.NewTracerProvider()
	a.closers = append(a.closers, func() error { return a.Tracing.Shutdown(context.Background()) })

	storage, err := a.openStorage(fyneApp)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Storage = storage

	a.Client = services.NewApiClient(services.Options{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
		Debug:   cfg.Debug,
		Tokens:  core.StorageTokenSource{Storage: storage},
		Logger:  logger,
		Metrics: a.Metrics,

		TracerProvider: a.Tracing,
	})

	a.Session = core.NewSessionStore(services.NewAuthService(a.Client), storage,
		core.WithStoreLogger(logger),
		core.WithStoreMetrics(a.Metrics),
	)
	a.Shell = ui.NewShell(fyneApp, a.Session, logger)

	a.Router, err = router.New(router.DefaultRoutes(), router.NewGuard(a.Session, a.Shell),
		router.WithLogger(logger),
		router.WithMetrics(a.Metrics),
	)
	if err != nil {
		_ = a.Close()
		return nil, oops.In("app").Code("ROUTES_INVALID").Wrapf(err, "failed to build router")
	}
	a.Session.SetNavigator(a.Router)
	a.Shell.Attach(a.Router)

	a.Boundary = core.NewErrorBoundary(a.Session, a.Router, logger)
	a.Client.OnError(a.Boundary.Handle)

	a.Refresher = core.NewSessionRefresher(a.Session, cfg.Session.Refresh, cfg.API.Timeout, logger)
	return a, nil
}

func (a *App) openStorage(fyneApp fyne.App) (core.Storage, error) {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return core.NewMemoryStorage(), nil

	case config.BackendPreferences:
		return core.NewPreferenceStorage(fyneApp.Preferences()), nil

	case config.BackendSQLite:
		path := cfg.Storage.Path
		if path == "" {
			p, err := core.DefaultDatabasePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		db := core.NewDatabase(path)
		if err := db.Connect(); err != nil {
			return nil, oops.In("app").Code("STORAGE_UNAVAILABLE").With("path", path).Wrap(err)
		}
		a.closers = append(a.closers, db.Close)
		a.Logger.Debug("using sqlite session storage", "path", path)
		return db, nil

	case config.BackendRedis:
		st := core.NewRedisStorage(redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr}), cfg.Redis.Prefix)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, oops.In("app").Code("STORAGE_UNAVAILABLE").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Start refreshes a rehydrated session, opens the home page and starts
// the background work. It does not block.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if _, err := a.Router.Replace(router.Location{Name: router.RouteHome}); err != nil {
		return oops.In("app").Code("NAVIGATION_FAILED").Wrapf(err, "failed to open home page")
	}

	// A 401 here goes through the error boundary and lands on the login page.
	if err := a.Session.FetchUser(ctx); err != nil {
		a.Logger.Warn("could not refresh stored session", "error", err)
	}

	a.Refresher.Start()

	if addr := a.Config.Metrics.Addr; addr != "" {
		go func() {
			if err := a.Metrics.Serve(ctx, addr, a.Logger); err != nil {
				a.Logger.Error("metrics server stopped", "error", err)
			}
		}()
	}
	return nil
}

// Run starts the client and blocks in the fyne event loop.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.Shell.Run()
	return a.Close()
}

// Close stops background work and releases the storage.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Refresher != nil {
		a.Refresher.Stop()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
