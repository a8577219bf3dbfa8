package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil-backend-go/internal/core/incident"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// ListIncidents returns incidents matching the query filters.
func (h *Handlers) ListIncidents(c *gin.Context) {
	filter := repositories.IncidentFilter{}
	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, types.IncidentStatus(s))
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

	incidents, err := h.incidents.List(c.Request.Context(), filter)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, incidents)
}

// GetIncident returns one incident by id.
func (h *Handlers) GetIncident(c *gin.Context) {
	inc, err := h.incidents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, inc)
}

// CreateIncident opens an incident manually.
func (h *Handlers) CreateIncident(c *gin.Context) {
	var params incident.CreateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	inc, err := h.incidents.Create(c.Request.Context(), params)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendCreated(c, inc)
}

type transitionRequest struct {
	To    types.IncidentStatus `json:"to"`
	Actor string               `json:"actor"`
	Note  string               `json:"note"`
}

// TransitionIncident moves an incident through its lifecycle.
func (h *Handlers) TransitionIncident(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.To.Valid() {
		utils.SendError(c, http.StatusBadRequest, "unknown target status")
		return
	}

	inc, err := h.incidents.Transition(c.Request.Context(), c.Param("id"), req.To, req.Actor, req.Note)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, inc)
}

type mergeRequest struct {
	Into  string `json:"into"`
	Actor string `json:"actor"`
}

// MergeIncident folds this incident into a surviving one.
func (h *Handlers) MergeIncident(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Into == "" {
		utils.SendError(c, http.StatusBadRequest, "into is required")
		return
	}

	survivor, err := h.incidents.Merge(c.Request.Context(), c.Param("id"), req.Into, req.Actor)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, survivor)
}
