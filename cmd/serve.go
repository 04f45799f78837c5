package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/abhisek/examgen/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exam generation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := commandConfig()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := openDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		orch, err := d.orchestrator(ctx)
		if err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		srv := server.New(orch, d.ingester(), server.WithLogger(d.logger))
		return srv.Run(ctx, cfg.HTTP.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8000)")
}
