package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/config"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/database"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/handlers"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/metrics"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/middleware"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/repository"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/settings"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/voting"
)

type Server struct {
	cfg      *config.Config
	db       database.Service
	handler  *handlers.Handler
	jwt      *middleware.JWT
	registry *prometheus.Registry
	logger   *slog.Logger
}

// New wires repositories, services and handlers over an open database.
func New(cfg *config.Config, db database.Service, logger *slog.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	repo := repository.NewRepository(db.GetDB())
	store := settings.NewStore(repo, settings.Config{
		SettingsTTL: cfg.App.SettingsCacheTTL,
		HistoryTTL:  cfg.App.HistoryCacheTTL,
		Metrics:     m,
	})
	durations := voting.NewResolver(store)
	jwt := middleware.NewJWT(cfg.App.JWTSecret)

	handler := handlers.NewHandler(handlers.Deps{
		Users:     repo,
		JWT:       jwt,
		Proposals: voting.NewProposalService(repo, repo, durations, m),
		Votes:     voting.NewVoteService(repo, repo, durations, m),
		Settings:  store,
		Rules:     durations,
	})

	return &Server{
		cfg:      cfg,
		db:       db,
		handler:  handler,
		jwt:      jwt,
		registry: registry,
		logger:   logger,
	}
}

// HTTPServer returns the configured http.Server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Server.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.logger))

	origins := s.cfg.Origins()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.jwt))
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.GET("/proposals", s.handler.Proposal.GetProposals)
			protected.POST("/proposals", s.handler.Proposal.CreateProposal)
			protected.GET("/proposals/:id", s.handler.Proposal.GetProposal)
			protected.POST("/proposals/:id/vote", s.handler.Vote.CastVote)
			protected.GET("/proposals/:id/votes", s.handler.Vote.GetVotes)

			protected.GET("/settings/voting", s.handler.Settings.GetVotingSettings)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/settings", s.handler.Settings.ListSettings)
				admin.PUT("/settings/:key", s.handler.Settings.UpdateSetting)
				admin.GET("/settings/:key/history", s.handler.Settings.GetSettingHistory)
			}
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
