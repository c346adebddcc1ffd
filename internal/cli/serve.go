package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habinest-backend/bootstrap"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Open the store, rebuild the geo index and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "port to listen on (default: PORT)")

	return cmd
}

func runServe(ctx context.Context, port string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Rdb != nil {
		if err := app.Rdb.Ping(ctx).Err(); err != nil {
			return errors.New("redis connection failed: " + err.Error())
		}
		log.Info().Msg("Redis connected")
	}
	if _, err := app.Reindex(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server running")
		errCh <- app.Fiber.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Fiber.ShutdownWithContext(shutdownCtx)
	}
}
