package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/config"
	"github.com/vigil-ops/vigil-backend-go/internal/core/alerting"
	"github.com/vigil-ops/vigil-backend-go/internal/core/health"
	"github.com/vigil-ops/vigil-backend-go/internal/core/incident"
	"github.com/vigil-ops/vigil-backend-go/internal/core/pipeline"
	"github.com/vigil-ops/vigil-backend-go/internal/database"
	"github.com/vigil-ops/vigil-backend-go/internal/websocket"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	cfg       *config.Config
	repos     *database.Repositories
	pipeline  *pipeline.Pipeline
	alerts    *alerting.Manager
	incidents *incident.Coordinator
	health    *health.Service
	hub       *websocket.Hub
	logger    *logrus.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *config.Config, repos *database.Repositories, pipe *pipeline.Pipeline,
	alerts *alerting.Manager, incidents *incident.Coordinator, healthSvc *health.Service,
	hub *websocket.Hub, logger *logrus.Logger) *Handlers {

	return &Handlers{
		cfg:       cfg,
		repos:     repos,
		pipeline:  pipe,
		alerts:    alerts,
		incidents: incidents,
		health:    healthSvc,
		hub:       hub,
		logger:    logger,
	}
}

// Liveness reports service liveness plus connection stats.
func (h *Handlers) Liveness(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"websocket": h.hub.GetStats(),
	})
}

// WebSocketHandler upgrades dashboard connections.
func (h *Handlers) WebSocketHandler() gin.HandlerFunc {
	return websocket.HandleWebSocketGin(h.hub)
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, key+" must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}
