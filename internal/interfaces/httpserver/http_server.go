package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/convohq/chat-api/internal/config"
	"github.com/convohq/chat-api/internal/domain/session"
	middleware "github.com/convohq/chat-api/internal/interfaces/httpserver/middlewares"
	v1 "github.com/convohq/chat-api/internal/interfaces/httpserver/routes/v1"
)

// ratePerMinute caps the request rate per caller before any pipeline work
// happens.
const ratePerMinute = 120

type HTTPServer struct {
	engine   *gin.Engine
	server   *http.Server
	v1Route  *v1.V1Route
	resolver session.Resolver
	config   *config.Config
	logger   zerolog.Logger
}

func NewHTTPServer(
	v1Route *v1.V1Route,
	resolver session.Resolver,
	cfg *config.Config,
	logger zerolog.Logger,
) *HTTPServer {
	if !config.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &HTTPServer{
		engine:   gin.New(),
		v1Route:  v1Route,
		resolver: resolver,
		config:   cfg,
		logger:   logger,
	}

	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.CORSMiddleware())
	server.engine.Use(middleware.MetricsMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	server.engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return server
}

// Run blocks serving HTTP until the context is cancelled, then drains
// in-flight requests.
func (httpServer *HTTPServer) Run(ctx context.Context) error {
	protected := httpServer.engine.Group("/")
	protected.Use(
		middleware.AuthMiddleware(httpServer.resolver, httpServer.logger, httpServer.config.SessionTimeout),
		middleware.RateLimitMiddleware(ratePerMinute),
	)

	httpServer.v1Route.RegisterRouter(protected)

	httpServer.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", httpServer.config.HTTPPort),
		Handler:           httpServer.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.server.Shutdown(shutdownCtx)
	}
}
