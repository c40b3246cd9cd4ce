package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/pagereorganizer/internal/logging"
	"github.com/Lllllllleong/pagereorganizer/internal/pdfengine"
	"github.com/Lllllllleong/pagereorganizer/internal/services"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the page organizer HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				slog.Warn(".env file not found or could not be loaded", "path", envFile, "error", err)
			}
			config, err := services.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				config.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			logging.Setup(config.LogLevel)
			if port != "" {
				config.Port = port
			}

			f, err := services.NewOrganizer(cmd.Context(), *config, pdfengine.NewRasterizer())
			if err != nil {
				return err
			}
			defer f.Close()

			server := &http.Server{
				Addr:              ":" + config.Port,
				Handler:           f.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				slog.Info("Server listening", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errc:
				return err
			case <-quit:
			}

			slog.Info("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default: $PORT or 8080)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "environment file to load")
	return cmd
}
