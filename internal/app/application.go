// Package app wires configuration, storage, services, and the HTTP surface
// into one runnable application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app/httpapi"
	"github.com/dreamwell/sleepdiary/internal/app/services/admin"
	"github.com/dreamwell/sleepdiary/internal/app/services/auth"
	"github.com/dreamwell/sleepdiary/internal/app/services/entries"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	"github.com/dreamwell/sleepdiary/internal/app/storage/memory"
	"github.com/dreamwell/sleepdiary/internal/app/storage/postgres"
	"github.com/dreamwell/sleepdiary/internal/app/storage/sqlite"
	"github.com/dreamwell/sleepdiary/internal/app/system"
	"github.com/dreamwell/sleepdiary/internal/config"
	"github.com/dreamwell/sleepdiary/pkg/logger"
)

// Application owns the assembled server and its background services.
type Application struct {
	cfg     config.Config
	log     *logger.Logger
	handle  *storage.Handle
	manager *system.Manager
	server  *http.Server
	closers []func() error
}

// New assembles the application. Storage opens asynchronously: the HTTP
// server accepts requests immediately and serves 503 until the store handle
// is published.
func New(cfg config.Config, log *logger.Logger) *Application {
	if log == nil {
		log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	}

	handle := storage.NewHandle()

	authSvc := auth.New(handle, []byte(cfg.Auth.JWTSecret), log.WithField("component", "auth"))
	entriesSvc := entries.New(handle, log.WithField("component", "entries"))
	adminSvc := admin.New(handle, authSvc, log.WithField("component", "admin"))

	mux := httpapi.NewHandler(authSvc, entriesSvc, adminSvc, httpapi.Config{
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health: func() error {
			if handle.State() == storage.Failed {
				return handle.Err()
			}
			return nil
		},
	}, log.WithField("component", "httpapi"))

	return &Application{
		cfg:     cfg,
		log:     log,
		handle:  handle,
		manager: system.NewManager(),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start opens the storage backend in the background and begins serving HTTP.
// It returns once the listener goroutine is up. Fatal conditions — a listener
// failure or a storage initialisation failure — are delivered on the returned
// channel; the caller must shut the process down when it receives one, since
// a Failed store handle is terminal.
func (a *Application) Start(ctx context.Context) (<-chan error, error) {
	errCh := make(chan error, 2)

	go func() {
		if err := a.initStore(ctx); err != nil {
			a.handle.Fail(err)
			errCh <- fmt.Errorf("storage initialisation: %w", err)
		}
	}()

	go func() {
		a.log.Infof("listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh, nil
}

// initStore opens the configured backend, seeds the admin account, and
// publishes the store. Requests arriving before this completes get 503.
func (a *Application) initStore(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		a.log.WithError(err).Error("storage initialisation failed")
		return err
	}

	if err := auth.SeedAdmin(ctx, store, a.log); err != nil {
		a.log.WithError(err).Error("admin seeding failed")
		return err
	}

	if err := a.manager.Start(ctx); err != nil {
		a.log.WithError(err).Error("background services failed to start")
		return err
	}

	a.handle.SetReady(store)
	a.log.Infof("storage ready (driver=%s)", a.cfg.Store.Driver)
	return nil
}

func (a *Application) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		var (
			store *memory.Store
			err   error
		)
		if a.cfg.Store.SnapshotPath != "" {
			store, err = memory.Open(a.cfg.Store.SnapshotPath)
			if err != nil {
				return nil, err
			}
			flusher := memory.NewFlusher(store, a.cfg.Store.FlushInterval, a.log)
			if err := a.manager.Register(flusher); err != nil {
				return nil, err
			}
		} else {
			store = memory.New()
		}
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	case config.DriverPostgres:
		store, err := postgres.Open(ctx, a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// Stop drains the HTTP server, stops background services, and closes the
// storage backend.
func (a *Application) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := a.manager.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.log.Info("application stopped")
	return firstErr
}
