package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/secretary-go/internal/server"
)

var serveWipe bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inbound message server",
	Long: `Serve starts the HTTP server that receives patient messages.

Messages arrive on POST /webhook (one message per request) or over the
GET /chat websocket (one message per text frame). GET /stats exposes
runtime counters and GET /health the liveness probe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveWipe {
			logger.Warn("wiping all conversation data")
			if err := dbClient.WipeData(ctx); err != nil {
				return fmt.Errorf("wipe data: %w", err)
			}
		}

		engine, stats, err := buildEngine(ctx)
		if err != nil {
			return err
		}

		srv := server.New(cfg.ListenAddr, engine, stats, logger)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWipe, "wipe", false, "wipe all data before starting (development only)")
}
