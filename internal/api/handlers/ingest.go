package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/utils"
)

// IngestSample accepts one metric sample and runs it through the
// detection pipeline synchronously, returning whatever it produced.
func (h *Handlers) IngestSample(c *gin.Context) {
	var sample types.MetricSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid sample payload: "+err.Error())
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	result, err := h.pipeline.IngestSample(c.Request.Context(), sample)
	if err != nil {
		utils.SendEngineError(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

// IngestBatch accepts a batch of samples. Each sample is evaluated
// independently; one malformed sample does not reject the rest.
func (h *Handlers) IngestBatch(c *gin.Context) {
	var samples []types.MetricSample
	if err := c.ShouldBindJSON(&samples); err != nil {
		utils.SendError(c, http.StatusBadRequest, "invalid batch payload: "+err.Error())
		return
	}

	accepted := 0
	rejected := 0
	for i := range samples {
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = time.Now().UTC()
		}
		if _, err := h.pipeline.IngestSample(c.Request.Context(), samples[i]); err != nil {
			rejected++
			continue
		}
		accepted++
	}
	utils.SendSuccess(c, gin.H{"accepted": accepted, "rejected": rejected})
}
