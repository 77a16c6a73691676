package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/triplens/service-trip-duration/internal/application"
)

// PredictionHandler handles HTTP requests for trip duration predictions.
type PredictionHandler struct {
	service *application.PredictionService
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(service *application.PredictionService) *PredictionHandler {
	RegisterValidators()
	return &PredictionHandler{service: service}
}

// RegisterRoutes registers prediction, metadata and health routes.
func (h *PredictionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/model_info", h.ModelInfo)
	r.POST("/predict", h.Predict)
	r.POST("/predict_batch", h.PredictBatch)
}

// Health handles GET /health.
func (h *PredictionHandler) Health(c *gin.Context) {
	health := h.service.Health()
	if health.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	success(c, health)
}

// ModelInfo handles GET /model_info.
func (h *PredictionHandler) ModelInfo(c *gin.Context) {
	success(c, h.service.ModelInfo())
}

// Predict handles POST /predict.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req application.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	result, err := h.service.Predict(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Internal server error during prediction")
		return
	}

	success(c, result)
}

// PredictBatch handles POST /predict_batch.
func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	var req application.TripBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	result, err := h.service.PredictBatch(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Internal server error during batch prediction")
		return
	}

	success(c, result)
}
