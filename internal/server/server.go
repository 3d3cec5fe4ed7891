// Package server exposes the forecast pipeline over HTTP for map clients.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shiftcast/internal/forecast"
	"shiftcast/internal/observability"
)

// Forecaster is the part of forecast.Pipeline the API needs.
type Forecaster interface {
	Cities(ctx context.Context) ([]string, error)
	Features(ctx context.Context, city string, shift forecast.Shift) ([]forecast.FeatureRow, error)
	Predict(ctx context.Context, city string, shift forecast.Shift) ([]forecast.PredictionRow, error)
	Partition() forecast.Partition
}

// Options configures a Server. Zero values are usable.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Version string
	// Ping reports whether the backing warehouse is reachable. Nil skips the check.
	Ping func(ctx context.Context) error
	// Details adds entries such as cache counters to the /health body. Nil adds nothing.
	Details func() map[string]interface{}
	// RequestTimeout bounds each pipeline call. Zero means two minutes.
	RequestTimeout time.Duration
}

// Server is the gin HTTP API.
type Server struct {
	forecaster Forecaster
	opts       Options
	engine     *gin.Engine
	now        func() time.Time
}

const requestIDHeader = "X-Request-ID"

// New builds the router.
func New(f Forecaster, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 2 * time.Minute
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		forecaster: f,
		opts:       opts,
		engine:     gin.New(),
		now:        time.Now,
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.GET("/health", s.health)
	if opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	{
		api.GET("/cities", s.cities)
		api.GET("/features", s.features)
		api.GET("/predictions", s.predictions)
		api.GET("/predictions.geojson", s.predictionsGeoJSON)
	}

	return s
}

// Handler returns the router for use with httptest or a custom http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.opts.Logger.Info("api shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger tags every request with an ID and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.opts.Metrics.ObserveRequest(route, status)

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed", time.Since(start).String(),
		}
		if status >= http.StatusInternalServerError {
			s.opts.Logger.Warn("request failed", fields...)
		} else {
			s.opts.Logger.Debug("request", fields...)
		}
	}
}
