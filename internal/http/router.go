package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fieldops/backend/internal/assign"
	"github.com/fieldops/backend/internal/config"
	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/geocode"
	"github.com/fieldops/backend/internal/http/handlers"
	"github.com/fieldops/backend/internal/http/middleware"
	"github.com/fieldops/backend/internal/llm"
	"github.com/fieldops/backend/internal/realtime"

	_ "github.com/fieldops/backend/docs"
)

func Router(cfg config.Config, store *db.Store, assigner *assign.Service, assistant *llm.Service, geocoder geocode.Geocoder, hub *realtime.Hub, bus *realtime.Bus, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Assign:    assigner,
		LLM:       assistant,
		Geocoder:  geocoder,
		Hub:       hub,
		Events:    bus,
		Validator: validator.New(),
		Logger:    logger,
		AdminKey:  cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/ws", h.WebSocket)

	api := r.Group("/api")
	{
		api.GET("/tickets", h.TicketsList)
		api.GET("/tickets/analytics/overview", h.TicketAnalytics)
		api.GET("/tickets/:id", h.TicketDetails)
		api.GET("/tickets/:id/troubleshooting", h.TicketTroubleshooting)
		api.POST("/tickets/:id/assistance", h.TicketAssistance)

		api.GET("/teams", h.TeamsList)
		api.GET("/teams/nearby", h.TeamsNearby)
		api.GET("/teams/:id", h.TeamDetails)
		api.GET("/teams/:id/performance", h.TeamPerformance)
		api.GET("/teams/:id/journey", h.TeamJourney)
		api.GET("/teams/:id/insights", h.TeamInsights)
		api.POST("/teams/:id/assistance", h.TeamAssistance)

		api.GET("/assignments", h.AssignmentsList)
		api.GET("/assignments/analytics/overview", h.AssignmentAnalytics)
		api.GET("/assignments/analytics/performance", h.AssignmentPerformance)
		api.GET("/assignments/:id", h.AssignmentDetails)

		api.POST("/ai/team-query", h.AITeamQuery)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/tickets", h.TicketCreate)
		admin.PUT("/tickets/:id", h.TicketUpdate)
		admin.POST("/tickets/:id/assign", h.TicketAssign)
		admin.POST("/tickets/:id/auto-assign", h.TicketAutoAssign)
		admin.PATCH("/tickets/:id/status", h.TicketStatus)

		admin.POST("/teams", h.TeamCreate)
		admin.PUT("/teams/:id", h.TeamUpdate)
		admin.PATCH("/teams/:id/location", h.TeamLocation)
		admin.PATCH("/teams/:id/availability", h.TeamAvailability)
		admin.PATCH("/teams/:id/status", h.TeamStatus)

		admin.PATCH("/assignments/:id/status", h.AssignmentStatus)
		admin.POST("/assignments/:id/reject", h.AssignmentReject)

		admin.POST("/ai/query", h.AIQuery)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
