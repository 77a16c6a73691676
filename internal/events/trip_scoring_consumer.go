package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/triplens/service-trip-duration/internal/application"
	"github.com/triplens/service-trip-duration/internal/domain"
)

// EventSource identifies this service on published events.
const EventSource = "service-trip-duration"

// Predictor scores a single trip.
type Predictor interface {
	Predict(ctx context.Context, req application.TripRequest) (*application.PredictionResponse, error)
}

// TripScoringConsumer scores trip.requested events and publishes the estimates.
type TripScoringConsumer struct {
	consumer    *Consumer
	producer    *Producer
	service     Predictor
	outputTopic string
	logger      *zap.Logger
}

// NewTripScoringConsumer creates a new TripScoringConsumer.
func NewTripScoringConsumer(
	consumer *Consumer,
	producer *Producer,
	service Predictor,
	outputTopic string,
	logger *zap.Logger,
) *TripScoringConsumer {
	return &TripScoringConsumer{
		consumer:    consumer,
		producer:    producer,
		service:     service,
		outputTopic: outputTopic,
		logger:      logger,
	}
}

// Start begins consuming trip requests. This blocks until the context is cancelled.
func (c *TripScoringConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the consumer and producer.
func (c *TripScoringConsumer) Close() error {
	cerr := c.consumer.Close()
	if err := c.producer.Close(); err != nil {
		return err
	}
	return cerr
}

func (c *TripScoringConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from trip topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case TripRequested:
		return c.handleTripRequested(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled trip event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *TripScoringConsumer) handleTripRequested(ctx context.Context, cloudEvent CloudEvent) error {
	var evt TripRequestedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse TripRequestedEvent data",
			zap.String("event_id", cloudEvent.ID),
			zap.Error(err),
		)
		return nil
	}

	result, err := c.service.Predict(ctx, application.TripRequest{
		PickupLat:      evt.PickupLat,
		PickupLon:      evt.PickupLon,
		DropoffLat:     evt.DropoffLat,
		DropoffLon:     evt.DropoffLon,
		PickupDatetime: evt.PickupDatetime,
	})
	if err != nil {
		if domain.IsClientError(err) {
			c.logger.Warn("rejecting invalid trip request",
				zap.String("trip_id", evt.TripID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	out, err := NewCloudEvent(EventSource, TripDurationPredicted, TripDurationPredictedEvent{
		PredictionID:             uuid.New(),
		TripID:                   evt.TripID,
		PredictedDurationSeconds: result.PredictedDurationSeconds,
		ModelVersion:             result.ModelVersion,
		OccurredAt:               time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := c.producer.PublishEvent(ctx, c.outputTopic, evt.TripID, out); err != nil {
		return err
	}

	c.logger.Info("trip duration published",
		zap.String("trip_id", evt.TripID),
		zap.Float64("predicted_duration_seconds", result.PredictedDurationSeconds),
	)
	return nil
}
