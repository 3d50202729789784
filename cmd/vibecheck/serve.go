package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/internal/api"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.ListenAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	metricsHandler, shutdownMetrics, err := observe.InitProvider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	metrics := observe.DefaultMetrics()

	svc, err := a.openServices(ctx, metrics)
	if err != nil {
		return err
	}
	defer svc.close()
	src, err := a.photoSource(ctx)
	if err != nil {
		return err
	}

	meta := svc.recommender.Meta()
	router := api.NewRouter(api.Deps{
		Searcher:       svc.recommender,
		Records:        svc.records,
		Models:         svc.bank,
		Meta:           meta,
		Photos:         src,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Logger:         a.logger,
		TopK:           a.cfg.Index.TopK,
		MaxBodyBytes:   a.cfg.Server.MaxUploadBytes,
		RateLimit:      a.cfg.Server.RateLimit,
		RateBurst:      a.cfg.Server.RateBurst,
	})
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", srv.Addr, "rows", meta.Rows,
			"build_tag", meta.BuildTag, "metric", meta.Metric, "device", svc.bank.Device())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
