package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/triplens/service-trip-duration/internal/domain"
	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/domain/trip"
)

// TripRequest is the request DTO for a single trip. Pointers distinguish a missing
// coordinate from a legitimate 0.
type TripRequest struct {
	PickupLat      *float64 `json:"pickup_lat" binding:"required,gte=-90,lte=90"`
	PickupLon      *float64 `json:"pickup_lon" binding:"required,gte=-180,lte=180"`
	DropoffLat     *float64 `json:"dropoff_lat" binding:"required,gte=-90,lte=90"`
	DropoffLon     *float64 `json:"dropoff_lon" binding:"required,gte=-180,lte=180"`
	PickupDatetime string   `json:"pickup_datetime" binding:"required,iso8601"`
}

// TripBatchRequest is the request DTO for batch predictions.
type TripBatchRequest struct {
	Trips []TripRequest `json:"trips" binding:"required,min=1,dive"`
}

// PredictionResponse is the API response for a single prediction.
type PredictionResponse struct {
	PredictedDurationSeconds float64 `json:"predicted_duration_seconds"`
	ModelVersion             string  `json:"model_version"`
	InferenceTimeMs          float64 `json:"inference_time_ms"`
}

// BatchPredictionResponse is the API response for a batch prediction.
type BatchPredictionResponse struct {
	Predictions     []float64 `json:"predictions"`
	ModelVersion    string    `json:"model_version"`
	InferenceTimeMs float64   `json:"inference_time_ms"`
}

// ModelInfoDTO describes the served model and its input schema.
type ModelInfoDTO struct {
	ModelName        string   `json:"model_name"`
	ModelVersion     string   `json:"model_version"`
	Task             string   `json:"task"`
	PredictionTarget string   `json:"prediction_target"`
	NumFeatures      int      `json:"num_features"`
	Features         []string `json:"features"`
}

// HealthDTO is the liveness/readiness payload.
type HealthDTO struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
}

// ModelRuntime is the loaded scoring capability the service depends on.
type ModelRuntime interface {
	Score(ctx context.Context, v trip.FeatureVector) (float64, error)
	ScoreBatch(ctx context.Context, vs []trip.FeatureVector) ([]float64, error)
	Card() modelDomain.Card
	Loaded() bool
}

// PredictionService implements the trip duration use cases.
type PredictionService struct {
	runtime      ModelRuntime
	maxBatchSize int
	logger       *zap.Logger
}

// NewPredictionService creates a new PredictionService.
func NewPredictionService(runtime ModelRuntime, maxBatchSize int, logger *zap.Logger) *PredictionService {
	return &PredictionService{runtime: runtime, maxBatchSize: maxBatchSize, logger: logger}
}

// Predict derives features for one trip and scores them.
func (s *PredictionService) Predict(ctx context.Context, req TripRequest) (*PredictionResponse, error) {
	obs, err := req.toObservation()
	if err != nil {
		return nil, err
	}

	vector, err := trip.Assemble(obs)
	if err != nil {
		s.logFeatureError(err, 1)
		return nil, err
	}

	start := time.Now()
	prediction, err := s.runtime.Score(ctx, vector)
	elapsed := sinceMs(start)
	if err != nil {
		s.logScoringError(err, 1)
		return nil, fmt.Errorf("score trip: %w", err)
	}

	return &PredictionResponse{
		PredictedDurationSeconds: prediction,
		ModelVersion:             s.runtime.Card().Version,
		InferenceTimeMs:          elapsed,
	}, nil
}

// PredictBatch derives features for every trip independently and scores them in one call.
// Predictions are returned in request order.
func (s *PredictionService) PredictBatch(ctx context.Context, req TripBatchRequest) (*BatchPredictionResponse, error) {
	if len(req.Trips) == 0 {
		return nil, domain.NewMalformedInputError("trips must contain at least one trip")
	}
	if s.maxBatchSize > 0 && len(req.Trips) > s.maxBatchSize {
		return nil, domain.NewMalformedInputError(
			fmt.Sprintf("batch of %d trips exceeds the limit of %d", len(req.Trips), s.maxBatchSize))
	}

	observations := make([]*trip.Observation, len(req.Trips))
	for i, t := range req.Trips {
		obs, err := t.toObservation()
		if err != nil {
			return nil, fmt.Errorf("trip %d: %w", i, err)
		}
		observations[i] = obs
	}

	vectors, err := trip.AssembleBatch(observations)
	if err != nil {
		s.logFeatureError(err, len(observations))
		return nil, err
	}

	start := time.Now()
	predictions, err := s.runtime.ScoreBatch(ctx, vectors)
	elapsed := sinceMs(start)
	if err != nil {
		s.logScoringError(err, len(vectors))
		return nil, fmt.Errorf("score batch: %w", err)
	}
	if len(predictions) != len(vectors) {
		return nil, fmt.Errorf("scorer returned %d predictions for %d trips", len(predictions), len(vectors))
	}

	return &BatchPredictionResponse{
		Predictions:     predictions,
		ModelVersion:    s.runtime.Card().Version,
		InferenceTimeMs: elapsed,
	}, nil
}

// ModelInfo returns the served model's metadata and feature schema.
func (s *PredictionService) ModelInfo() ModelInfoDTO {
	card := s.runtime.Card()
	features := make([]string, trip.NumFeatures)
	copy(features, trip.FeatureColumns[:])
	return ModelInfoDTO{
		ModelName:        card.Name,
		ModelVersion:     card.Version,
		Task:             card.Task,
		PredictionTarget: card.Target,
		NumFeatures:      len(features),
		Features:         features,
	}
}

// Health reports "ok" once the model is loaded.
func (s *PredictionService) Health() HealthDTO {
	if !s.runtime.Loaded() {
		return HealthDTO{Status: "loading"}
	}
	return HealthDTO{Status: "ok", ModelVersion: s.runtime.Card().Version}
}

func (s *PredictionService) logFeatureError(err error, batchSize int) {
	if domain.KindOf(err) != domain.KindMissingFeature {
		return
	}
	// should not happen with valid observations; points at a schema/derivation bug
	s.logger.Error("feature vector incomplete",
		zap.Error(err),
		zap.Int("batch_size", batchSize),
	)
}

func (s *PredictionService) logScoringError(err error, batchSize int) {
	if domain.KindOf(err) == domain.KindScoringUnavailable {
		s.logger.DPanic("scoring requested before model load", zap.Error(err))
		return
	}
	s.logger.Error("scoring failed", zap.Error(err), zap.Int("batch_size", batchSize))
}

func (r TripRequest) toObservation() (*trip.Observation, error) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"pickup_lat", r.PickupLat},
		{"pickup_lon", r.PickupLon},
		{"dropoff_lat", r.DropoffLat},
		{"dropoff_lon", r.DropoffLon},
	}
	for _, f := range fields {
		if f.value == nil {
			return nil, domain.NewMalformedInputError(f.name + " is required")
		}
	}
	return trip.NewObservation(*r.PickupLat, *r.PickupLon, *r.DropoffLat, *r.DropoffLon, r.PickupDatetime)
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
