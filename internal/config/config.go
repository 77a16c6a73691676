package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TRIPDUR"

// Model artifact sources.
const (
	ModelSourceFile     = "file"
	ModelSourceRegistry = "registry"
	ModelSourceRemote   = "remote"
)

// ModelConfig describes which model to serve and how to load it.
type ModelConfig struct {
	Source  string
	Path    string
	Name    string
	Version string
	// RegistryVersion pins the registry version to load; empty means latest.
	RegistryVersion string
	Task            string
	Target          string
	Endpoint        string
	Timeout         time.Duration
	MaxBatchSize    int
}

// DatabaseConfig holds PostgreSQL connection settings for the model registry.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the connection string understood by the gorm postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// KafkaConfig holds settings for the streaming scoring consumer.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	GroupPrefix string
	InputTopic  string
	OutputTopic string
}

// ServiceConfig holds all configuration for the trip duration service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	Model       ModelConfig
	DBConfig    DatabaseConfig
	KafkaConfig KafkaConfig
}

// Load reads configuration from the environment, an optional .env file and an
// optional config file named by TRIPDUR_CONFIG_FILE.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", ":8000")
	v.SetDefault("APP_ENV", "production")

	v.SetDefault("MODEL_SOURCE", ModelSourceFile)
	v.SetDefault("MODEL_PATH", "artifacts/model.json")
	v.SetDefault("MODEL_NAME", "nyc_taxi_xgb_regressor")
	v.SetDefault("MODEL_VERSION", "v1.0")
	v.SetDefault("MODEL_REGISTRY_VERSION", "")
	v.SetDefault("MODEL_TASK", "regression")
	v.SetDefault("MODEL_TARGET", "trip_duration_seconds")
	v.SetDefault("MODEL_TIMEOUT", 5*time.Second)
	v.SetDefault("MODEL_MAX_BATCH_SIZE", 1000)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "trip_duration")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "")
	v.SetDefault("KAFKA_INPUT_TOPIC", "trip.requested")
	v.SetDefault("KAFKA_OUTPUT_TOPIC", "trip.duration.predicted")
}

func fromViper(v *viper.Viper) *ServiceConfig {
	port := v.GetString("SERVICE_PORT")
	if port != "" && !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:   port,
		AppEnv: v.GetString("APP_ENV"),
		Model: ModelConfig{
			Source:          strings.ToLower(v.GetString("MODEL_SOURCE")),
			Path:            v.GetString("MODEL_PATH"),
			Name:            v.GetString("MODEL_NAME"),
			Version:         v.GetString("MODEL_VERSION"),
			RegistryVersion: v.GetString("MODEL_REGISTRY_VERSION"),
			Task:            v.GetString("MODEL_TASK"),
			Target:          v.GetString("MODEL_TARGET"),
			Endpoint:        v.GetString("MODEL_ENDPOINT"),
			Timeout:         v.GetDuration("MODEL_TIMEOUT"),
			MaxBatchSize:    v.GetInt("MODEL_MAX_BATCH_SIZE"),
		},
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		KafkaConfig: KafkaConfig{
			Enabled:     v.GetBool("KAFKA_ENABLED"),
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
			InputTopic:  v.GetString("KAFKA_INPUT_TOPIC"),
			OutputTopic: v.GetString("KAFKA_OUTPUT_TOPIC"),
		},
	}
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *ServiceConfig) Validate() error {
	switch c.Model.Source {
	case ModelSourceFile:
		if c.Model.Path == "" {
			return errors.New("MODEL_PATH is required when MODEL_SOURCE=file")
		}
	case ModelSourceRegistry:
		if c.Model.Name == "" {
			return errors.New("MODEL_NAME is required when MODEL_SOURCE=registry")
		}
	case ModelSourceRemote:
		if c.Model.Endpoint == "" {
			return errors.New("MODEL_ENDPOINT is required when MODEL_SOURCE=remote")
		}
	default:
		return fmt.Errorf("unknown MODEL_SOURCE %q", c.Model.Source)
	}
	if c.Model.MaxBatchSize < 1 {
		return errors.New("MODEL_MAX_BATCH_SIZE must be positive")
	}
	if c.KafkaConfig.Enabled && len(c.KafkaConfig.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
