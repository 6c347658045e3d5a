package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruslano69/eavsql/pkg/api"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collection over HTTP",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			if err := s.store.SystemSetup(cmd.Context()); err != nil {
				return err
			}

			server := api.New(s.store,
				api.WithLogger(s.logger),
				api.WithMetrics(s.registry),
				api.WithTimeout(s.cfg.Server.RequestTimeout),
			)
			srv := &http.Server{
				Addr:              addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			// SIGINT/SIGTERM - плавная остановка
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				s.logger.Info().
					Str("addr", addr).
					Str("collection", s.store.Collection()).
					Str("database", s.cfg.Database.Type).
					Msg("eavctl serve started")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			s.logger.Info().Msg("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error().Err(err).Msg("graceful shutdown error")
				return err
			}
			s.logger.Info().Msg("stopped")
			return nil
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
