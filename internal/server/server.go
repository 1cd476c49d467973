package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/internal/analytics"
	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/discovery"
	"github.com/modelmux/modelmux/internal/dynamic"
	"github.com/modelmux/modelmux/internal/engine"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/modelmux/modelmux/internal/server/middleware"
	"github.com/modelmux/modelmux/internal/server/validator"
	v1 "github.com/modelmux/modelmux/internal/server/v1"
	"go.uber.org/zap"
)

// Deps carries everything the HTTP layer routes to.
type Deps struct {
	Store     *registry.Store
	Engine    *engine.Engine
	Adapter   *dynamic.Adapter
	Scanner   *discovery.Scanner
	Ingestor  analytics.Ingestor
	Analytics analytics.Service
	// Tester overrides the live registration check; nil uses a real call.
	Tester  v1.ModelTester
	Version string
}

type Server struct {
	router *gin.Engine
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
