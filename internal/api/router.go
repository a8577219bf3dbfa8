package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/api/handlers"
	"github.com/vigil-ops/vigil-backend-go/internal/api/middleware"
	"github.com/vigil-ops/vigil-backend-go/internal/config"
)

// NewRouter creates and configures the main HTTP router.
func NewRouter(cfg *config.Config, h *handlers.Handlers, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if cfg.Security.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))
	}

	// Service endpoints
	router.GET("/health", h.Liveness)
	router.GET("/ws", h.WebSocketHandler())
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	{
		samples := api.Group("/samples")
		{
			samples.POST("", h.IngestSample)
			samples.POST("/batch", h.IngestBatch)
		}

		failures := api.Group("/failures")
		{
			failures.GET("", h.ListFailures)
			failures.GET("/:id", h.GetFailure)
			failures.POST("/:id/false-positive", h.MarkFalsePositive)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", h.ListAlerts)
			alerts.GET("/:id", h.GetAlert)
			alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
			alerts.POST("/:id/investigate", h.InvestigateAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
			alerts.POST("/:id/close", h.CloseAlert)
			alerts.POST("/:id/suppress", h.SuppressAlert)
		}

		incidents := api.Group("/incidents")
		{
			incidents.GET("", h.ListIncidents)
			incidents.POST("", h.CreateIncident)
			incidents.GET("/:id", h.GetIncident)
			incidents.POST("/:id/transition", h.TransitionIncident)
			incidents.POST("/:id/merge", h.MergeIncident)
		}

		rules := api.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
		}

		system := api.Group("/system")
		{
			system.GET("/health", h.GetSystemHealth)
			system.GET("/health/history", h.GetHealthHistory)
		}
	}

	return router
}
