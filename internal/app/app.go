package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/sqlstore"
	transporthttp "github.com/vovakirdan/relaychat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	tlsCertFile     string
	tlsKeyFile      string
	hub             *core.Hub
	store           store.Store
	feed            feed.Broker
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
// The schema is applied before the server is built.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	broker, err := openFeed(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	hub := core.NewHub(st, broker, logger)
	server := transporthttp.NewServer(hub, st, broker, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		tlsCertFile:     cfg.TLSCertFile,
		tlsKeyFile:      cfg.TLSKeyFile,
		hub:             hub,
		store:           st,
		feed:            broker,
		log:             logger,
	}, nil
}

// Migrate applies the schema to the configured store and closes it.
func Migrate(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return st.Close()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*sqlstore.SQLStore, error) {
	st, err := sqlstore.New(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	logger.Info().Str("driver", cfg.Store.Driver).Msg("database initialized")
	return st, nil
}

func openFeed(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (feed.Broker, error) {
	switch cfg.Feed.Backend {
	case config.FeedRedis:
		broker, err := feed.DialRedis(ctx, &redis.Options{
			Addr:     cfg.Feed.RedisAddr,
			Password: cfg.Feed.RedisPassword,
			DB:       cfg.Feed.RedisDB,
		}, cfg.Feed.ChannelPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init unread feed: %w", err)
		}
		logger.Info().Str("addr", cfg.Feed.RedisAddr).Msg("redis unread feed connected")
		return broker, nil
	default:
		return feed.NewMemory(), nil
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	// Long-lived streams and sockets derive from baseCtx and end when shutdown begins.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	a.server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	a.server.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Bool("tls", a.tlsCertFile != "").Msg("starting relaychat server")

		var err error
		if a.tlsCertFile != "" && a.tlsKeyFile != "" {
			err = a.server.ListenAndServeTLS(a.tlsCertFile, a.tlsKeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close unread feed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
