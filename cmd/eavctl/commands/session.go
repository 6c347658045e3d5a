package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ruslano69/eavsql/pkg/adapters"
	"github.com/ruslano69/eavsql/pkg/adapters/all"
	"github.com/ruslano69/eavsql/pkg/cache"
	"github.com/ruslano69/eavsql/pkg/config"
	"github.com/ruslano69/eavsql/pkg/events"
	"github.com/ruslano69/eavsql/pkg/store"
)

// session - ресурсы, открытые на время одной команды
type session struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	conn     *adapters.Conn
	store    *store.Store

	closers []func() error
}

// loadConfig читает конфигурацию и применяет глобальные флаги
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Collection != "" {
		cfg.Collection = opts.Collection
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.MetricsAddr != "" {
		cfg.Server.MetricsAddr = opts.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// openSession подключается к БД и собирает Store с кэшем и событиями из конфигурации
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &session{cfg: cfg, logger: logger, registry: reg}
	if cfg.Server.MetricsAddr != "" {
		s.serveMetrics(cfg.Server.MetricsAddr)
	}

	conn, err := all.Factory().Open(ctx, cfg.Database.AdapterConfig(),
		adapters.WithLogger(logger),
		adapters.WithMetrics(adapters.NewMetrics(reg)),
		adapters.WithRetry(cfg.Retry),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Database.Type, err)
	}
	s.conn = conn
	s.closers = append(s.closers, conn.Close)

	storeOpts := []store.Option{store.WithLogger(logger)}

	if cfg.Cache.Enabled {
		c, err := cache.Dial(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cache.Config{
			Prefix:  cfg.Cache.Prefix,
			TTL:     cfg.Cache.TTL,
			Breaker: cfg.Cache.Breaker,
		}, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to cache: %w", err)
		}
		s.closers = append(s.closers, c.Close)
		storeOpts = append(storeOpts, store.WithCache(c))
	}

	pub, err := events.New(ctx, cfg.Events)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create %s publisher: %w", cfg.Events.Type, err)
	}
	s.closers = append(s.closers, pub.Close)
	if pub.Type() != events.TypeNone {
		storeOpts = append(storeOpts, store.WithPublisher(pub))
	}

	st, err := store.New(conn, cfg.Collection, storeOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = st

	logger.Debug().
		Str("database", cfg.Database.Type).
		Str("collection", cfg.Collection).
		Bool("cache", cfg.Cache.Enabled).
		Str("events", pub.Type()).
		Msg("session opened")
	return s, nil
}

// serveMetrics публикует реестр на addr до закрытия сессии
func (s *session) serveMetrics(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()

	s.closers = append(s.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Close освобождает ресурсы в обратном порядке
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn().Err(err).Msg("close failed")
		}
	}
	s.closers = nil
}

// withSession открывает сессию вокруг тела команды
func withSession(opts *RootOptions, fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, opts)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, s, args)
	}
}
