package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rea/internal/api"
	"rea/internal/metrics"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
		gate string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		Long:  "Starts the HTTP API: run history and status, POST /runs to start a run in the background, and Prometheus metrics and a websocket event stream. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.API.Host = host
			}
			if port != 0 {
				cfg.API.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{gateMode: gate})
			if err != nil {
				return err
			}
			defer a.close()

			srv := api.New(api.Config{
				Host:      cfg.API.Host,
				Port:      cfg.API.Port,
				Store:     a.store,
				Active:    a.runner,
				Submitter: a.runner,
				MaxActive: cfg.General.MaxConcurrentRuns,
				Metrics:   metrics.Collector.Handler(),
				Events:    a.events,
				Secret:    cfg.API.Secret,
				Logger:    logger,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default api.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default api.port)")
	cmd.Flags().StringVar(&gate, "gate", "", "human gate: console, telegram, slack, discord or none")
	return cmd
}
