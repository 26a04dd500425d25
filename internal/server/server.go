package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/webview/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/webview/internal/config"
	"github.com/GriffinCanCode/AgentOS/webview/internal/monitoring"
	"github.com/GriffinCanCode/AgentOS/webview/internal/webview"
)

// Deps are the components the server exposes.
type Deps struct {
	Config  *config.Config
	Manager *webview.Manager
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	config  *config.Config
	manager *webview.Manager
	metrics *monitoring.Metrics
	hub     *Hub
	logger  *zap.Logger
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(monitoring.Middleware(deps.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	s := &Server{
		router:  router,
		config:  cfg,
		manager: deps.Manager,
		metrics: deps.Metrics,
		hub:     NewHub(logger.Named("stream"), deps.Metrics),
		logger:  logger,
	}

	router.GET("/health", s.health)

	webviews := router.Group("/webviews")
	webviews.POST("", s.createWebview)
	webviews.GET("", s.listWebviews)
	webviews.GET("/:id", s.getWebview)
	webviews.GET("/:id/history", s.getHistory)
	webviews.PUT("/:id/size", s.resizeWebview)
	webviews.POST("/:id/navigate", s.navigate)
	webviews.POST("/:id/javascript", s.runJavascript)
	webviews.GET("/:id/frame", s.frame)
	webviews.DELETE("/:id", s.closeWebview)

	router.GET("/stream", s.hub.HandleConnection)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Server.Addr(),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
