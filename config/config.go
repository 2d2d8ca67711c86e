package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		Kafka           Kafka
		KafkaController KafkaController
		RabbitMQ        RabbitMQ
		Exports         Exports
		Webhook         Webhook
		Stream          Stream
		Swagger         Swagger
		Metrics         Metrics
	}

	HTTP struct {
		Port           string        `env:"HTTP_PORT" envDefault:"8080"`
		UsePreforkMode bool          `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
		// 0 - без ограничения, иначе SSE рвется по таймауту
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BodyLimit       int           `env:"HTTP_BODY_LIMIT" envDefault:"1048576"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	PG struct {
		PoolMax        int    `env:"PG_POOL_MAX" envDefault:"10"`
		URL            string `env:"PG_URL,required"`
		MigrateOnStart bool   `env:"PG_MIGRATE_ON_START" envDefault:"false"`
		TxIsolation    string `env:"PG_TX_ISOLATION" envDefault:"read committed"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers     []string `env:"KAFKA_BROKERS,required"`
		GroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"crm-payments"`
		EventsTopic string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"payments.events"`
		// Origin помечает свои сообщения, чтобы consumer их пропускал. Пусто - hostname + случайный суффикс.
		Origin      string `env:"KAFKA_ORIGIN"`
		Compression string `env:"KAFKA_COMPRESSION" envDefault:"snappy"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"4"`
	}

	RabbitMQ struct {
		URL             string        `env:"RABBITMQ_URL,required"`
		ExportQueue     string        `env:"RABBITMQ_EXPORT_QUEUE" envDefault:"payments.exports"`
		StatusQueue     string        `env:"RABBITMQ_EXPORT_STATUS_QUEUE" envDefault:"payments.exports.status"`
		Prefetch        int           `env:"RABBITMQ_PREFETCH" envDefault:"16"`
		ProcessTimeout  time.Duration `env:"RABBITMQ_PROCESS_TIMEOUT" envDefault:"2m"`
		ShutdownTimeout time.Duration `env:"RABBITMQ_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Exports struct {
		Bucket        string        `env:"EXPORTS_BUCKET" envDefault:"crm-payments"`
		Prefix        string        `env:"EXPORTS_PREFIX" envDefault:"payments/exports"`
		BaseURL       string        `env:"EXPORTS_BASE_URL"`
		URLTTL        time.Duration `env:"EXPORTS_URL_TTL" envDefault:"24h"`
		SweepInterval time.Duration `env:"EXPORTS_SWEEP_INTERVAL" envDefault:"1m"`
		StuckAfter    time.Duration `env:"EXPORTS_STUCK_AFTER" envDefault:"30m"`
		SweepTimeout  time.Duration `env:"EXPORTS_SWEEP_TIMEOUT" envDefault:"30s"`
		WorkerEnabled bool          `env:"EXPORTS_WORKER_ENABLED" envDefault:"true"`
	}

	Webhook struct {
		Secret string `env:"CRM_WEBHOOK_SECRET,required,notEmpty"`
	}

	Stream struct {
		// MaxBuffered - 0 без ограничения.
		MaxBuffered int           `env:"STREAM_MAX_BUFFERED" envDefault:"0"`
		Heartbeat   time.Duration `env:"STREAM_HEARTBEAT" envDefault:"15s"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}

	Metrics struct {
		Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if strings.TrimSpace(cfg.Kafka.Origin) == "" {
		cfg.Kafka.Origin = instanceOrigin()
	}

	return cfg, nil
}

// NewPG reads only the PG section, enough for migrations.
func NewPG() (*PG, error) {
	cfg := &PG{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func instanceOrigin() string {
	suffix := uuid.NewString()[:8]

	host, err := os.Hostname()
	if err != nil || host == "" {
		return "crm-payments-" + suffix
	}

	return host + "-" + suffix
}
