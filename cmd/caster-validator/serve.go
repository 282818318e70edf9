package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/app"
	"github.com/haasonsaas/nexus/internal/config"
)

// buildServeCmd creates the "serve" command that starts the tool dispatch
// HTTP server every running sandbox's tool proxy calls back into.
func buildServeCmd() *cobra.Command {
	var (
		configPath       string
		hostContainerURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool dispatch server",
		Long: `Start the tool dispatch HTTP server.

The server exposes POST /v1/tools/execute, the surface every sandboxed
candidate agent's tool proxy calls into. Every request must carry a valid
Bittensor sr25519 signature from an allow-listed hotkey.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runServe(cmd.Context(), cfg, hostContainerURL)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "caster-validator.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&hostContainerURL, "host-container-url", "", "Address sandboxed agents use to reach this server")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, hostContainerURL string) error {
	application, err := app.Build(cfg, hostContainerURL)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	mux := http.NewServeMux()
	application.DispatchHTTP.Routes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.ToolExecutePort)
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info(ctx, "tool dispatch server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
		application.Logger.Info(context.Background(), "shutting down tool dispatch server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}
