package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/config"
	"github.com/user/importcars-service/internal/engine"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	engine     *engine.Engine
	runs       *runRegistry
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, e *engine.Engine, l *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		engine: e,
		runs:   newRunRegistry(),
		logger: l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
