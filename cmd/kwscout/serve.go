package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/FranksOps/kwscout/internal/api"
	"github.com/FranksOps/kwscout/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the keyword analysis HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := buildDeps(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer d.Close()

			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := api.NewHandler(d.pipeline, a.cfg.Analysis.DefaultDomain, a.logger)
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           api.NewRouter(handler, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
				// Analyses are slow by nature; a full batch can take minutes.
				WriteTimeout: 10 * time.Minute,
			}

			var metricsSrv *metrics.Server
			if port := a.cfg.Server.MetricsPort; port > 0 {
				metricsSrv = metrics.Start(port)
				a.logger.Info("metrics server listening", "port", port)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("kwscout API listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := metricsSrv.Stop(shutdownCtx); err != nil {
					a.logger.Warn("metrics server shutdown failed", "err", err)
				}
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int("metrics-port", 0, "Prometheus metrics port (0 disables)")
	bindFlag(a.v, "server.addr", cmd, "addr")
	bindFlag(a.v, "server.metrics_port", cmd, "metrics-port")
	return cmd
}
