package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/fern/pkg/utils"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`
	HttpPort                      int    `env:"HTTP_PORT" env-default:"8080" validate:"min=1,max=65535"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	HttpBodyLimit                 string `env:"HTTP_BODY_LIMIT" env-default:"32M"`

	// Pipeline
	Separator          string   `env:"SEPARATOR" env-default:"_" validate:"required"`
	MaxDepth           int      `env:"MAX_DEPTH" env-default:"32" validate:"min=1"`
	IdentityField      string   `env:"IDENTITY_FIELD" env-default:"id" validate:"required"`
	PageSize           int      `env:"PAGE_SIZE" env-default:"100" validate:"min=1"`
	FieldNameOverrides []string `env:"FIELD_NAME_OVERRIDES"`
	FieldNormalizers   []string `env:"FIELD_NORMALIZERS"`
	RequiredFields     []string `env:"REQUIRED_FIELDS"`
	BatchLabel         string   `env:"BATCH_LABEL"`
	ChangedOnly        bool     `env:"CHANGED_ONLY" env-default:"false"`

	// Source
	SourceType        string        `env:"SOURCE_TYPE" env-default:"jsonfile" validate:"oneof=jsonfile http kafka"`
	SourceInput       string        `env:"SOURCE_INPUT"`
	SourceHeaders     []string      `env:"SOURCE_HEADERS"`
	SourceTimeout     time.Duration `env:"SOURCE_TIMEOUT" env-default:"30s"`
	RecordsPath       string        `env:"RECORDS_PATH" env-default:"records"`
	SourceMaxMessages int           `env:"SOURCE_MAX_MESSAGES" env-default:"10000"`
	SourceIdleTimeout time.Duration `env:"SOURCE_IDLE_TIMEOUT" env-default:"5s"`

	// Export
	ExportTargets []string `env:"EXPORT_TARGETS" env-default:"json" validate:"min=1,dive,oneof=csv json yaml kafka sql mongo hashstore"`
	ExportDir     string   `env:"EXPORT_DIR" env-default:"./exports"`

	// Kafka
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTopic        string   `env:"KAFKA_TOPIC" env-default:"fern-records"`
	KafkaSourceTopic  string   `env:"KAFKA_SOURCE_TOPIC" env-default:"fern-raw-records"`
	KafkaGroupID      string   `env:"KAFKA_GROUP_ID" env-default:"fern"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`

	// Redis
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RedisHashKey  string        `env:"REDIS_HASH_KEY" env-default:"fern:hashes"`
	RedisHashTTL  time.Duration `env:"REDIS_HASH_TTL" env-default:"0s"`

	// SQL
	SQLDriver             string `env:"SQL_DRIVER" env-default:"postgres" validate:"oneof=postgres mysql sqlite"`
	SQLDSN                string `env:"SQL_DSN"`
	SQLTable              string `env:"SQL_TABLE" env-default:"fern_records"`
	SQLMaxOpenConns       int    `env:"SQL_MAX_OPEN_CONNS" env-default:"10"`
	SQLMigrationsEnabled  bool   `env:"SQL_MIGRATIONS_ENABLED" env-default:"true"`
	MigrationsPath        string `env:"MIGRATIONS_PATH" env-default:"migrations/postgres"`
	MigrationVersion      int    `env:"MIGRATION_VERSION" env-default:"0"`
	MigrationForce        int    `env:"MIGRATION_FORCE" env-default:"0"`
	MigrationAutoRollback bool   `env:"MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Mongo
	MongoURI        string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase   string `env:"MONGO_DATABASE" env-default:"fern"`
	MongoCollection string `env:"MONGO_COLLECTION" env-default:"records"`

	// Tracing
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
	OtelProtocol string `env:"OTEL_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OtelInsecure bool   `env:"OTEL_INSECURE" env-default:"true"`

	// Triggers
	Schedule      string        `env:"SCHEDULE" env-default:"*/15 * * * *"`
	WatchDebounce time.Duration `env:"WATCH_DEBOUNCE" env-default:"500ms"`
}

// Load reads an optional .env file, binds the environment and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if _, err := utils.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) KafkaBatchTimeoutDuration() time.Duration {
	return time.Duration(c.KafkaBatchTimeout) * time.Millisecond
}
