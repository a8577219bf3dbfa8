package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// ListFailures returns failure detections matching the query filters.
func (h *Handlers) ListFailures(c *gin.Context) {
	filter := repositories.FailureFilter{
		Component:   c.Query("component"),
		FailureType: types.FailureType(c.Query("failure_type")),
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

	failures, err := h.repos.Failure.List(c.Request.Context(), filter)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, failures)
}

// GetFailure returns one failure detection by id.
func (h *Handlers) GetFailure(c *gin.Context) {
	failure, err := h.repos.Failure.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, failure)
}

type falsePositiveRequest struct {
	Reason string `json:"reason"`
}

// MarkFalsePositive flags a detection as a false positive.
func (h *Handlers) MarkFalsePositive(c *gin.Context) {
	var req falsePositiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		utils.SendError(c, http.StatusBadRequest, "reason is required")
		return
	}

	if err := h.repos.Failure.MarkFalsePositive(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"id": c.Param("id"), "false_positive": true})
}
