package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, ModelSourceFile, cfg.Model.Source)
	assert.Equal(t, "artifacts/model.json", cfg.Model.Path)
	assert.Equal(t, "nyc_taxi_xgb_regressor", cfg.Model.Name)
	assert.Equal(t, "v1.0", cfg.Model.Version)
	assert.Empty(t, cfg.Model.RegistryVersion)
	assert.Equal(t, 5*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 1000, cfg.Model.MaxBatchSize)
	assert.False(t, cfg.KafkaConfig.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRIPDUR_SERVICE_PORT", "9090")
	t.Setenv("TRIPDUR_MODEL_SOURCE", "REMOTE")
	t.Setenv("TRIPDUR_MODEL_ENDPOINT", "http://scorer:8080/predict")
	t.Setenv("TRIPDUR_MODEL_TIMEOUT", "750ms")
	t.Setenv("TRIPDUR_KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, ModelSourceRemote, cfg.Model.Source)
	assert.Equal(t, "http://scorer:8080/predict", cfg.Model.Endpoint)
	assert.Equal(t, 750*time.Millisecond, cfg.Model.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
}

func TestLoad_InvalidSource(t *testing.T) {
	t.Setenv("TRIPDUR_MODEL_SOURCE", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown MODEL_SOURCE")
}

func TestValidate(t *testing.T) {
	base := func() *ServiceConfig {
		return &ServiceConfig{Model: ModelConfig{Source: ModelSourceFile, Path: "m.json", MaxBatchSize: 10}}
	}

	tests := []struct {
		name    string
		mutate  func(c *ServiceConfig)
		wantErr string
	}{
		{name: "valid file source", mutate: func(c *ServiceConfig) {}},
		{name: "file without path", mutate: func(c *ServiceConfig) { c.Model.Path = "" }, wantErr: "MODEL_PATH"},
		{name: "remote without endpoint", mutate: func(c *ServiceConfig) { c.Model.Source = ModelSourceRemote }, wantErr: "MODEL_ENDPOINT"},
		{name: "registry without name", mutate: func(c *ServiceConfig) { c.Model.Source = ModelSourceRegistry }, wantErr: "MODEL_NAME"},
		{name: "zero batch size", mutate: func(c *ServiceConfig) { c.Model.MaxBatchSize = 0 }, wantErr: "MODEL_MAX_BATCH_SIZE"},
		{name: "kafka without brokers", mutate: func(c *ServiceConfig) { c.KafkaConfig.Enabled = true }, wantErr: "KAFKA_BROKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "models", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=models sslmode=disable", c.DSN())
}
