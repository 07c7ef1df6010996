// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tlchat/internal/config"
	"github.com/jeranaias/tlchat/internal/gateway"
	"github.com/jeranaias/tlchat/internal/logger"
)

// shutdownTimeout bounds the graceful drain after a signal.
const shutdownTimeout = 10 * time.Second

func newGatewayCmd(flags *GlobalFlags) *cobra.Command {
	var listen, upstream string

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the HTTP gateway in front of the answer service",
		Long: `Run a small HTTP server that forwards browser chat traffic to the
answer service.

Routes:
  POST   /api/chat            forward a question
  DELETE /api/sessions/{id}   clear a session
  GET    /api/health          liveness

Only origins in gateway.allowed_origins receive CORS grants. Set
TLCHAT_ENV=production to log sanitized errors only.`,
		Example: `  tlchat gateway
  tlchat gateway --listen :3001 --upstream http://answers.internal:8000`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Gateway.Listen = listen
			}
			if upstream != "" {
				cfg.Gateway.UpstreamURL = upstream
			}
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Err: err}
			}
			setupLogging(cfg, cmd.ErrOrStderr())

			srv, err := gateway.NewServer(GatewayOptions(cfg))
			if err != nil {
				return &ConfigError{Err: err}
			}
			return serveGateway(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "host:port to bind (default from config)")
	cmd.Flags().StringVar(&upstream, "upstream", "", "answer service base URL (default from config)")
	return cmd
}

// GatewayOptions maps the gateway config section onto server options.
func GatewayOptions(cfg *config.Config) gateway.Options {
	g := cfg.Gateway
	return gateway.Options{
		Listen:         g.Listen,
		UpstreamURL:    g.UpstreamURL,
		AllowedOrigins: g.AllowedOrigins,
		Production:     strings.EqualFold(g.Environment, "production"),
		RatePerSec:     g.RatePerSec,
		Burst:          g.Burst,
		ServiceName:    g.ServiceName,
	}
}

// serveGateway runs srv until ctx is cancelled, then drains it.
func serveGateway(ctx context.Context, srv *gateway.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("GATEWAY_SHUTDOWN | forced")
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return <-errCh
}
