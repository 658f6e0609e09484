// Package server exposes plan graphs, sessions and the advisor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/config"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "pgplanviz"

// Deps are the collaborators a Server needs. A nil Advisor disables the
// analysis, comparison and chat endpoints' advice.
type Deps struct {
	Store    *session.Store
	Advisor  advisor.Advisor
	Graph    graph.Options
	Logger   log.Logger
	Registry *prometheus.Registry
}

type Server struct {
	cfg     *config.Config
	store   *session.Store
	advisor advisor.Advisor
	opts    graph.Options
	logger  log.Logger
	metrics *Metrics
	router  *gin.Engine
}

// executeExplain runs EXPLAIN for a session; tests replace it.
var executeExplain = plan.Execute

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.NewNopLogger()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Graph == (graph.Options{}) {
		deps.Graph = graph.DefaultOptions()
	}
	if deps.Store == nil {
		deps.Store = session.NewStore(deps.Graph, cfg.Timeouts.Connect)
	}

	corsCfg := corsConfig(cfg.CORSOrigins)
	if err := corsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cors_origins: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		advisor: deps.Advisor,
		opts:    deps.Graph,
		logger:  deps.Logger,
		metrics: NewMetrics(deps.Registry),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(cors.New(corsCfg))
	router.Use(s.observe)

	api := router.Group("/api")
	api.GET("/", s.handleRoot)
	api.POST("/graph", s.handleGraph)
	api.POST("/pg/connect", s.handleConnect)
	api.POST("/pg/execute-explain", s.handleExecuteExplain)
	api.POST("/pg/analyze-plan", s.handleAnalyzePlan)
	api.POST("/pg/compare-plans", s.handleComparePlans)
	api.POST("/pg/chat", s.handleChat)

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "listening", "addr", s.cfg.Listen, "advisor", s.cfg.Advisor)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	level.Info(s.logger).Log("msg", "shutting down")
	return srv.Shutdown(shutdownCtx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	code := c.Writer.Status()
	s.metrics.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	level.Debug(s.logger).Log("msg", "request", "method", c.Request.Method, "route", route,
		"code", code, "duration", time.Since(start))
}
