// Package server exposes the dashboard, the resource grid and the detail
// pages over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/browse"
	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/Sternrassler/modelzoo-client/pkg/dashboard"
	"github.com/Sternrassler/modelzoo-client/pkg/detail"
	"github.com/Sternrassler/modelzoo-client/pkg/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Dashboard is the reload cycle behind /api/dashboard/.
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	Reload(ctx context.Context) (dashboard.Snapshot, error)
}

// Grid serves resource grid pages, or every matching resource at once.
type Grid interface {
	Page(ctx context.Context, q browse.Query) (*browse.GridPage, error)
	All(ctx context.Context, q browse.Query) ([]catalog.ResourceItem, int, error)
}

// Details serves resource detail pages and their rdf.yaml source.
type Details interface {
	Load(ctx context.Context, id, version string) (*detail.Detail, error)
	Source(ctx context.Context, id string) (*detail.Source, error)
}

// Config holds server settings.
type Config struct {
	Addr string

	// ShutdownTimeout bounds the graceful shutdown in Run.
	ShutdownTimeout time.Duration

	// ExportFS and ExportPath enable writing every successful reload to a
	// JSON file. Both must be set.
	ExportFS   afero.Fs
	ExportPath string
}

// Server is the HTTP surface of the service.
type Server struct {
	echo      *echo.Echo
	dashboard Dashboard
	grid      Grid
	details   Details
	config    Config
	logger    zerolog.Logger
}

// New creates a server and registers its routes.
func New(cfg Config, d Dashboard, g Grid, det Details) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{
		echo:      echo.New(),
		dashboard: d,
		grid:      g,
		details:   det,
		config:    cfg,
		logger:    log.With().Str("component", "server").Logger(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.AddTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(s.logRequests)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		s.logger.Debug().Err(err).Str("path", c.Request().URL.Path).Msg("Request failed")
	}

	e.GET("/health/", s.health)
	e.GET("/metrics/", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/dashboard/", s.getDashboard)
	api.POST("/dashboard/reload/", s.postReload)

	api.GET("/tags/", s.listTags)
	api.GET("/resources/", s.listResources)
	api.GET("/resources/:alias/", s.getResource)
	api.GET("/resources/:workspace/:alias/", s.getResource)
	api.GET("/resources/:alias/source/", s.getSource)
	api.GET("/resources/:workspace/:alias/source/", s.getSource)

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Reload runs a dashboard reload and, when configured, exports the
// successful snapshot. A failed export is logged and does not fail the reload.
func (s *Server) Reload(ctx context.Context) (dashboard.Snapshot, error) {
	snap, err := s.dashboard.Reload(ctx)
	if err != nil {
		return snap, err
	}
	if s.config.ExportFS != nil && s.config.ExportPath != "" {
		if err := dashboard.Export(s.config.ExportFS, s.config.ExportPath, snap); err != nil {
			s.logger.Error().Err(err).Str("path", s.config.ExportPath).Msg("Failed to export snapshot")
		} else {
			s.logger.Debug().Str("path", s.config.ExportPath).Msg("Snapshot exported")
		}
	}
	return snap, nil
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("HTTP server listening")
		errCh <- s.echo.Start(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.config.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", s.config.ShutdownTimeout).Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}

		event := s.logger.Debug()
		if status >= 500 {
			event = s.logger.Warn()
		}
		event.
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
		return err
	}
}
