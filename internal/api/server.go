// Package api implements the agent's HTTP control-plane surface: session
// authentication, per-request HMAC authorization, and the resource
// handlers for tests, multi-result aggregation, and system introspection.
// Scaffolding grounded on the teacher's pkg/api/server.go (Echo v5 setup,
// route groups, Start/StartWithListener/Shutdown); per-endpoint semantics
// grounded on original_source/.../api/endpoints/*.py.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/rysavy-ondrej/project-inventor/internal/auth"
	"github.com/rysavy-ondrej/project-inventor/internal/config"
	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/logging"
)

// maxBodyBytes bounds request bodies the HMAC canonicalizer will ever have
// to re-encode, well above any realistic test_params/config payload.
const maxBodyBytes = 4 * 1024 * 1024

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg        *config.Config
	configPath string

	set      *dao.Set
	sessions *auth.SessionSigner
	verifier *auth.Verifier

	debugSink      *logging.Sink
	accountingSink *logging.Sink
}

// NewServer wires an HTTP API server from its dependencies and registers
// every route. configPath is the config.ini path PATCH /system/config
// writes back to.
func NewServer(
	cfg *config.Config,
	configPath string,
	set *dao.Set,
	sessions *auth.SessionSigner,
	verifier *auth.Verifier,
	debugSink *logging.Sink,
	accountingSink *logging.Sink,
) *Server {
	s := &Server{
		echo:           echo.New(),
		cfg:            cfg,
		configPath:     configPath,
		set:            set,
		sessions:       sessions,
		verifier:       verifier,
		debugSink:      debugSink,
		accountingSink: accountingSink,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(maxBodyBytes))
	s.echo.Use(s.accounting())

	authGroup := s.echo.Group("/auth")
	authGroup.GET("/time", s.authTimeHandler)
	authGroup.POST("/token", s.authTokenHandler)

	test := s.echo.Group("/test")
	test.GET("/all", s.testAllHandler)
	test.POST("", s.testCreateHandler)
	test.GET("/:id", s.testGetHandler)
	test.GET("/:id/full", s.testFullHandler)
	test.GET("/:id/results", s.testResultsHandler)
	test.GET("/:id/events", s.testEventsHandler)
	test.GET("/:id/old_params", s.testOldParamsHandler)
	test.GET("/:id/old_params/:version", s.testOldParamsVersionHandler)
	test.POST("/:id/request", s.testRequestHandler)
	test.PATCH("/:id", s.testUpdateHandler)

	multi := s.echo.Group("/multi-results")
	multi.POST("/init", s.multiResultInitHandler)
	multi.POST("/:id", s.multiResultAddTestHandler)
	multi.GET("/:id", s.multiResultGetHandler)

	system := s.echo.Group("/system")
	system.GET("/config", s.systemConfigHandler)
	system.PATCH("/config", s.systemConfigPatchHandler)
	system.GET("/config/all", s.systemConfigAllHandler)
	system.GET("/orchestrators", s.systemOrchestratorsHandler)
	system.GET("/logs", s.systemLogsHandler)
	system.GET("/logs/stats", s.systemLogsStatsHandler)
	system.GET("/accounting", s.systemAccountingHandler)
}

// Handler returns the server's http.Handler, letting tests drive requests
// with httptest.NewServer without binding a real listener.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that bind an ephemeral port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
