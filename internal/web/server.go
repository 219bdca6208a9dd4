// internal/web/server.go
package web

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"watchtower/internal/config"
	"watchtower/internal/metrics"
	"watchtower/internal/store"
	"watchtower/internal/worker"
)

type Server struct {
	config    *config.Config
	store     store.Store
	worker    *worker.Worker
	metrics   *metrics.Collector
	router    *gin.Engine
	wsMu      sync.Mutex
	wsClients map[*WSClient]bool
	server    *http.Server
}

func NewServer(cfg *config.Config, st store.Store, w *worker.Worker, metricsCollector *metrics.Collector) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	server := &Server{
		config:    cfg,
		store:     st,
		worker:    w,
		metrics:   metricsCollector,
		router:    router,
		wsClients: make(map[*WSClient]bool),
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	// Relay worker evaluation entries to websocket clients
	go s.consumeEvents(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/ping", s.ping)

	api := s.router.Group("/api")
	{
		api.POST("/users", s.createUser)
		api.POST("/tokens", s.createToken)
		api.GET("/tokens/:id", s.getToken)
		api.PUT("/tokens/:id", s.extendToken)
		api.DELETE("/tokens/:id", s.deleteToken)

		authed := api.Group("")
		authed.Use(s.requireToken())
		{
			authed.GET("/users/:phone", s.getUser)
			authed.PUT("/users/:phone", s.updateUser)
			authed.DELETE("/users/:phone", s.deleteUser)

			authed.POST("/checks", s.createCheck)
			authed.GET("/checks/:id", s.getCheck)
			authed.PUT("/checks/:id", s.updateCheck)
			authed.DELETE("/checks/:id", s.deleteCheck)
		}
	}

	s.router.GET("/ws", s.handleWebSocket)

	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) consumeEvents(ctx context.Context) {
	entries := s.worker.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-entries:
			s.broadcast(WSMessage{Type: "evaluation", Data: entry})
		}
	}
}
