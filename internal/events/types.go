package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TripRequested         = "trip.requested"
	TripDurationPredicted = "trip.duration.predicted"
)

// TripRequestedEvent asks for a duration estimate for one trip. Coordinates are pointers so
// an event that omits one is rejected instead of being scored at 0.
type TripRequestedEvent struct {
	TripID         string   `json:"trip_id"`
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLon      *float64 `json:"pickup_lon"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLon     *float64 `json:"dropoff_lon"`
	PickupDatetime string   `json:"pickup_datetime"`
}

// TripDurationPredictedEvent carries the estimate for a TripRequestedEvent.
type TripDurationPredictedEvent struct {
	PredictionID             uuid.UUID `json:"prediction_id"`
	TripID                   string    `json:"trip_id"`
	PredictedDurationSeconds float64   `json:"predicted_duration_seconds"`
	ModelVersion             string    `json:"model_version"`
	OccurredAt               time.Time `json:"occurred_at"`
}
