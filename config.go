package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/jpkontreras/cw-sub006/awspkg"
)

type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	RedisURL string
	CacheTTL time.Duration

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	CatalogServiceURL string
	CatalogTimeout    time.Duration

	TaxRate          float64
	AuthThresholdPct float64

	RecoveryTTL  time.Duration
	AbandonAfter time.Duration
	ReapInterval time.Duration

	AWSRegion   string
	SNSTopicArn string
	SQSQueueURL string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		CacheTTL: getEnvDuration("SESSION_CACHE_TTL", 15*time.Minute),

		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-session.events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "order-session-projections"),

		CatalogServiceURL: getEnv("CATALOG_SERVICE_URL", "http://catalog-service:8082"),
		CatalogTimeout:    getEnvDuration("CATALOG_TIMEOUT", 3*time.Second),

		TaxRate:          getEnvFloat("TAX_RATE", 0.19),
		AuthThresholdPct: getEnvFloat("ADJUSTMENT_AUTH_THRESHOLD_PCT", 20),

		RecoveryTTL:  getEnvDuration("SESSION_RECOVERY_TTL", 24*time.Hour),
		AbandonAfter: getEnvDuration("SESSION_ABANDON_AFTER", 2*time.Hour),
		ReapInterval: getEnvDuration("SESSION_REAP_INTERVAL", 5*time.Minute),

		AWSRegion:   os.Getenv("AWS_REGION"),
		SNSTopicArn: os.Getenv("SNS_TOPIC_ARN"),
		SQSQueueURL: os.Getenv("SQS_QUEUE_URL"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadConfig(context.Background(), cfg.AWSRegion); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)

			if dbjson, err := sm.GetSecret(context.Background(), "order-session/DB_CREDENTIALS"); err == nil && dbjson != "" {
				var m map[string]string
				if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
					if v, ok := m["POSTGRES_USER"]; ok && v != "" {
						cfg.PostgresUser = v
					}
					if v, ok := m["POSTGRES_PASSWORD"]; ok && v != "" {
						cfg.PostgresPassword = v
					}
					if v, ok := m["POSTGRES_DB"]; ok && v != "" {
						cfg.PostgresDB = v
					}
					if v, ok := m["POSTGRES_HOST"]; ok && v != "" {
						cfg.PostgresHost = v
					}
					if v, ok := m["POSTGRES_PORT"]; ok && v != "" {
						cfg.PostgresPort = v
					}
				}
			}
		}
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.CatalogServiceURL == "" {
		return nil, fmt.Errorf("CATALOG_SERVICE_URL is required")
	}
	return cfg, nil
}

// PostgresDSN builds the gorm connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
