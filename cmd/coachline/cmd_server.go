package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/coachline/coachline/internal/app"
	"github.com/spf13/cobra"
)

// coachline serve: start the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunServer(ctx, appConfig)
	},
}
