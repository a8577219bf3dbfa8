package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// ListRules returns monitoring rules; pass enabled=true for active only.
func (h *Handlers) ListRules(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	rules, err := h.repos.Rule.List(c.Request.Context(), enabledOnly)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rules)
}

// GetRule returns one rule by id.
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.repos.Rule.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// CreateRule adds a monitoring rule.
func (h *Handlers) CreateRule(c *gin.Context) {
	var rule types.MonitoringRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = time.Now().UTC()

	if err := h.repos.Rule.Create(c.Request.Context(), &rule); err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendCreated(c, rule)
}

// UpdateRule replaces a monitoring rule's definition.
func (h *Handlers) UpdateRule(c *gin.Context) {
	var rule types.MonitoringRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	rule.ID = c.Param("id")

	if err := h.repos.Rule.Update(c.Request.Context(), &rule); err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// DeleteRule removes a monitoring rule.
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.repos.Rule.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"id": c.Param("id"), "deleted": true})
}
