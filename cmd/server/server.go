package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/infrastructure/crontab"
	"github.com/convohq/chat-api/internal/interfaces/httpserver"
)

// Application bundles the long-running components of the service.
type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	config     *config.Config
}

// Start runs the HTTP server, the metrics endpoint and the pruning cron
// until the context is cancelled or one of them fails.
func (application *Application) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", application.config.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := application.httpServer.Run(ctx)
		cancel()
		return err
	})
	eg.Go(func() error {
		err := metricsServer.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		cancel()
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		cancel()
		return err
	})

	return eg.Wait()
}
