package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/multipolicy/internal/config"
	httpServer "github.com/cartridge/multipolicy/internal/http"
	"github.com/cartridge/multipolicy/internal/registry"
)

func newServeCmd(v *viper.Viper, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forward passes over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, load)
		},
	}
	cmd.Flags().String("addr", config.Default().Addr, "HTTP listen address")
	mustBind(v, "addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(cmd *cobra.Command, load configLoader) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	router, err := registry.Build(cfg, logger)
	if err != nil {
		return err
	}

	h := httpServer.NewServer(router, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("multipolicy HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("multipolicy server stopped")
	return nil
}
