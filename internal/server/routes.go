package server

import (
	"github.com/modelmux/modelmux/internal/server/middleware"
	v1 "github.com/modelmux/modelmux/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Tracing("modelmux"))
	s.router.Use(middleware.ErrorHandler())

	// Public surface
	healthHandler := v1.NewHealthHandler(s.deps.Store, s.deps.Version)
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/", healthHandler.Root)

	chatHandler := v1.NewChatHandler(s.deps.Engine, s.deps.Ingestor)
	modelHandler := v1.NewModelHandler(s.deps.Store, s.deps.Adapter, s.deps.Scanner, s.deps.Tester)

	limiter := middleware.NewRateLimiter(
		s.config.RateLimit.RequestsPerSecond,
		s.config.RateLimit.Burst,
		s.logger,
	)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.AuthToken))
	api.Use(limiter.Middleware())
	{
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		api.GET("/models", modelHandler.ListOpenAIModels)
		api.POST("/models", modelHandler.RegisterModel)
		api.DELETE("/models/:id", modelHandler.DeregisterModel)
		api.POST("/models/discover", modelHandler.DiscoverModels)

		if s.deps.Analytics != nil {
			analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
			api.GET("/analytics/usage", analyticsHandler.Usage)
			api.GET("/analytics/requests", analyticsHandler.Requests)
			api.GET("/analytics/requests/:id", analyticsHandler.RequestByID)
		}
	}

	// Detailed registry listing outside the OpenAI-compatible surface.
	admin := s.router.Group("/models")
	admin.Use(middleware.Auth(s.config.Server.AuthToken))
	{
		admin.GET("", modelHandler.ListModels)
	}
}
