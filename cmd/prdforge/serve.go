package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/prdforge/internal/api"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}

			handler := api.NewHandler(a.artifacts, a.generator, a.notion, a.logger)
			server := &http.Server{
				Addr:         ":" + a.cfg.Port,
				Handler:      api.NewRouter(handler, api.CORSConfig{AllowedOrigins: a.cfg.CORSOrigins}),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: a.cfg.GenerationTimeout + 30*time.Second, // outlive the model call
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", "port", a.cfg.Port, "db_path", a.cfg.DBPath)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PRDFORGE_API_PORT)")
	return cmd
}
