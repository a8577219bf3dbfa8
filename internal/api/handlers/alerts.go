package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// ListAlerts returns alerts matching the query filters.
func (h *Handlers) ListAlerts(c *gin.Context) {
	filter := repositories.AlertFilter{
		Component: c.Query("component"),
		Metric:    types.MetricName(c.Query("metric")),
	}
	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, types.AlertStatus(s))
	}
	for _, s := range c.QueryArray("severity") {
		filter.Severities = append(filter.Severities, types.Severity(s))
	}
	since, ok := parseTimeQuery(c, "since")
	if !ok {
		return
	}
	filter.Since = since
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			utils.SendError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alerts)
}

// GetAlert returns one alert by id.
func (h *Handlers) GetAlert(c *gin.Context) {
	alert, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type resolveRequest struct {
	Actor string `json:"actor"`
	Notes string `json:"notes"`
}

type suppressRequest struct {
	Reason string `json:"reason"`
}

// AcknowledgeAlert moves an alert to Acknowledged.
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.alerts.Acknowledge(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// InvestigateAlert moves an alert to Investigating.
func (h *Handlers) InvestigateAlert(c *gin.Context) {
	alert, err := h.alerts.StartInvestigation(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// ResolveAlert moves an alert to Resolved with resolution notes.
func (h *Handlers) ResolveAlert(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), c.Param("id"), req.Actor, req.Notes)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// CloseAlert administratively confirms a resolved alert.
func (h *Handlers) CloseAlert(c *gin.Context) {
	alert, err := h.alerts.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// SuppressAlert moves an Open alert to Suppressed.
func (h *Handlers) SuppressAlert(c *gin.Context) {
	var req suppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.alerts.Suppress(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}
