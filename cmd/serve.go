package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"healthpipe/internal/audit"
	"healthpipe/internal/server"
	"healthpipe/internal/ui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP monitoring API",
	Long: `Serve the read-only monitoring API without the scheduler: recent runs,
quality checks and the masked dashboard. The caller's role for masking is
taken from the ` + server.RoleHeader + ` header.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		ui.ShowError(err)
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		addr = ":8080"
	}

	svc, err := connectWarehouse(cfg)
	if err != nil {
		ui.ShowError(err)
		return err
	}
	defer svc.Close()

	console.Info(fmt.Sprintf("Monitoring API listening on %s", addr))

	srv := server.New(addr, svc, audit.NewLogger(svc), nil)
	if err := srv.ListenAndServe(ctx); err != nil && err != context.Canceled {
		ui.ShowError(err)
		return err
	}
	return nil
}
