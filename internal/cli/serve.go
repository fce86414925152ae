package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hed1ad/wqguard/internal/server"
	"github.com/hed1ad/wqguard/pkg/pipeline"
)

func (a *app) newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and detection API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			models, err := a.loadRegistry(ctx)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			srv := server.New(a.pipeline(models, pipeline.NewMetrics(reg)), models, server.Options{
				CORSOrigins: a.cfg.Server.CORSOrigins,
				MaxUploadMB: a.cfg.Server.MaxUploadMB,
				Gatherer:    reg,
				Logger:      a.logger,
			})
			a.logger.Printf("serving %s models", models.Variant())
			return srv.Run(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
