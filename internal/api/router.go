package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/identity-service/docs"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	metricsNamespace = "identity"
	metricsSubsystem = "http"
)

// RouterConfig carries everything NewRouter wires into the Echo instance.
type RouterConfig struct {
	Service ports.IdentityService
	Checks  []handler.DependencyCheck
	Log     zerolog.Logger

	// Registry receives the HTTP metrics. Defaults to the global Prometheus
	// registry; tests pass their own to avoid duplicate registration.
	Registry interface {
		prometheus.Registerer
		prometheus.Gatherer
	}
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		registerer, gatherer = cfg.Registry, cfg.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	// Metrics wrap the request logger so they read the status the error
	// handler committed rather than the raw handler error.
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  metricsSubsystem,
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(middleware.RequestLogger(cfg.Log))

	// --- Auth routes ---
	identityHandler := handler.NewIdentityHandler(cfg.Service)
	e.POST("/auth/register", identityHandler.Register)
	e.POST("/auth/login", identityHandler.Login)

	// --- Profile routes ---
	profiles := e.Group("/profiles")
	profiles.GET("", identityHandler.List)
	profiles.GET("/:id", identityHandler.Get)
	profiles.PUT("/:id", identityHandler.Update)
	profiles.DELETE("/:id", identityHandler.Delete)

	// --- Health probes ---
	healthHandler := handler.NewHealthHandler(cfg.Checks...)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
