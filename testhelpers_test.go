//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/triplens/service-trip-duration/internal/application"
	"github.com/triplens/service-trip-duration/internal/database"
	"github.com/triplens/service-trip-duration/internal/events"
	"github.com/triplens/service-trip-duration/internal/repository"
	"github.com/triplens/service-trip-duration/internal/scoring"
)

const (
	inputTopic  = "trip.requested"
	outputTopic = "trip.duration.predicted"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// scoringStack holds wired-up prediction components backed by the registry.
type scoringStack struct {
	Adapter  *scoring.Adapter
	Service  *application.PredictionService
	Consumer *events.TripScoringConsumer
}

// setupPostgres starts a PostgreSQL testcontainer and returns a migrated GORM DB.
func setupPostgres(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_trip_duration",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_trip_duration sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.Migrate(db))

	return db, func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}
}

// setupContainers starts PostgreSQL and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	db, cleanupPG := setupPostgres(t)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, inputTopic, outputTopic)

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup: func() {
			if err := kafkaContainer.Terminate(ctx); err != nil {
				t.Logf("failed to terminate Kafka container: %v", err)
			}
			cleanupPG()
		},
	}
}

// setupScoringStack loads the latest published model and wires the service around it.
func setupScoringStack(t *testing.T, db *gorm.DB, brokers []string, modelName string) *scoringStack {
	t.Helper()
	logger := zap.NewNop()

	repo := repository.NewGormArtifactRepository(db)
	adapter := scoring.NewAdapter(scoring.FromArtifacts(repository.NewRegistrySource(repo, modelName, "")), logger)
	require.NoError(t, adapter.Load(context.Background()))

	svc := application.NewPredictionService(adapter, 100, logger)

	stack := &scoringStack{Adapter: adapter, Service: svc}
	if len(brokers) > 0 {
		groupID := fmt.Sprintf("test-trip-duration-%s", uuid.New().String()[:8])
		stack.Consumer = events.NewTripScoringConsumer(
			events.NewConsumer(brokers, groupID, inputTopic, logger),
			events.NewProducer(brokers, logger),
			svc,
			outputTopic,
			logger,
		)
	}
	return stack
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, key, eventType string, data any) {
	t.Helper()
	producer := events.NewProducer(brokers, zap.NewNop())
	defer func() { _ = producer.Close() }()

	ce, err := events.NewCloudEvent("integration-test", eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	require.NoError(t, producer.PublishEvent(context.Background(), topic, key, ce), "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) events.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := events.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// linearArtifact renders a linear model payload.
func linearArtifact(t *testing.T, bias float64, weights map[string]float64) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"bias": bias, "weights": weights})
	require.NoError(t, err)
	return payload
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
