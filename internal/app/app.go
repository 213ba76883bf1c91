package app

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/config"
	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/store"
	"github.com/alexismendozaa/chat/internal/store/badger"
	"github.com/alexismendozaa/chat/internal/store/postgres"
	"github.com/alexismendozaa/chat/internal/store/sqlite"
	transporthttp "github.com/alexismendozaa/chat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	cfg     *config.Config
	store   store.MessageStore
	closers []func()
	log     *zerolog.Logger
}

// New opens the configured message store. Everything that needs the run
// context (validator refresh, gateway, server) is built in Run.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &App{
		cfg:   cfg,
		store: st,
		log:   logger,
	}, nil
}

// OpenStore opens the message store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.MessageStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("sqlite store initialized")
		return st, nil
	case config.StoreDriverPostgres:
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("postgres store initialized")
		return st, nil
	case config.StoreDriverBadger:
		st, err := badger.New(cfg.DatabasePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("badger store initialized")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewValidator picks remote JWKS keys when configured, the shared secret otherwise.
func NewValidator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (auth.Validator, func(), error) {
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSValidator(ctx, cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("jwks_url", cfg.JWKSURL).Msg("validating tokens against jwks")
		return v, v.Close, nil
	}

	v := auth.NewJWTValidator(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	return v, func() {}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	validator, closeValidator, err := NewValidator(ctx, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}
	a.closers = append(a.closers, closeValidator)

	gateway := core.NewGateway(a.store, a.log, core.Options{
		HistoryLimit: a.cfg.HistoryLimit,
		QueueSize:    a.cfg.ClientQueueSize,
	})
	server := transporthttp.NewServer(ctx, gateway, a.store, validator, a.cfg, a.log)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Str("store", a.cfg.StoreDriver).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Websocket handlers close on ctx; wait for their queued sends to land
		// before the store goes away.
		done := make(chan struct{})
		go func() {
			gateway.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			a.log.Warn().Msg("timed out waiting for connections to drain")
		}

		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
