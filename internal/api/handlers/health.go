package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// GetSystemHealth returns the most recent health snapshot, computing one
// on demand when none has been recorded yet.
func (h *Handlers) GetSystemHealth(c *gin.Context) {
	snapshot, err := h.health.Latest(c.Request.Context())
	if err != nil {
		if errors.IsNotFound(err) {
			snapshot, err = h.health.Snapshot(c.Request.Context())
		}
		if err != nil {
			utils.SendEngineError(c, err)
			return
		}
	}
	utils.SendSuccess(c, snapshot)
}

// GetHealthHistory returns snapshots over a window (default 24h).
func (h *Handlers) GetHealthHistory(c *gin.Context) {
	since, ok := parseTimeQuery(c, "since")
	if !ok {
		return
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.SendError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	history, err := h.health.History(c.Request.Context(), since, limit)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, history)
}
