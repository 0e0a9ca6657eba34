// Package app wires configuration into a running fern: connections, source, pipeline and
// export sinks. Every command (sync, serve, watch, schedule) goes through it.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/startup"
)

const (
	DependencyRedis         = "redis"
	DependencySQL           = "sql"
	DependencyKafkaProducer = "kafka-producer"
	DependencyKafkaConsumer = "kafka-consumer"
	DependencyMongo         = "mongo"
)

type App struct {
	config  *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	health  *health.Checker

	pipelineConfig pipeline.Config

	redis    *redis.Client
	db       *database.DatabaseInstance
	producer *kafka.Producer
	consumer *kafka.Consumer
	mongo    *sinks.MongoCollection

	hashStore *sinks.HashStore
	pipeline  *pipeline.Pipeline
	exporter  *sinks.Exporter
	sinks     []sinks.Sink

	// one run at a time; watch and schedule can fire while a run is in flight
	runMu sync.Mutex
}

// New validates everything that can be checked without a network and registers the
// connections the configured source and targets need.
func New(cfg *config.Config, logger ectologger.Logger, version string) (*App, error) {
	overrides, err := fields.ParseOverrides(cfg.FieldNameOverrides)
	if err != nil {
		return nil, err
	}
	fieldNormalizers, err := normalizers.ParseFieldNormalizers(cfg.FieldNormalizers)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(version),
		pipelineConfig: pipeline.Config{
			Separator:          cfg.Separator,
			MaxDepth:           cfg.MaxDepth,
			IdentityField:      cfg.IdentityField,
			PageSize:           cfg.PageSize,
			FieldNameOverrides: overrides,
			FieldNormalizers:   fieldNormalizers,
			ChangedOnly:        cfg.ChangedOnly,
		},
		exporter: sinks.NewExporter(logger),
	}

	for _, target := range cfg.ExportTargets {
		if !ectolinq.Contains(sinks.Targets, target) {
			return nil, fmt.Errorf("unknown export target %q", target)
		}
	}

	a.registerDependencies()
	return a, nil
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Health() *health.Checker {
	return a.health
}

func (a *App) wants(target string) bool {
	return ectolinq.Contains(a.config.ExportTargets, target)
}

func (a *App) registerDependencies() {
	if a.wants(sinks.TargetHashStore) || a.config.ChangedOnly {
		a.startup.AddDependency(startup.Func{
			Name:      DependencyRedis,
			StartFunc: a.startRedis,
			StopFunc: func(context.Context) error {
				return a.redis.Close()
			},
		})
	}

	if a.wants(sinks.TargetSQL) {
		a.startup.AddDependency(startup.Func{
			Name:      DependencySQL,
			StartFunc: a.startSQL,
			StopFunc: func(context.Context) error {
				return a.db.Close()
			},
		})
	}

	if a.wants(sinks.TargetKafka) {
		a.startup.AddDependency(startup.Func{
			Name:      DependencyKafkaProducer,
			StartFunc: a.startProducer,
			StopFunc: func(context.Context) error {
				return a.producer.Close()
			},
		})
	}

	if a.config.SourceType == sources.TypeKafka {
		a.startup.AddDependency(startup.Func{
			Name:      DependencyKafkaConsumer,
			StartFunc: a.startConsumer,
			StopFunc: func(context.Context) error {
				return a.consumer.Close()
			},
		})
	}

	if a.wants(sinks.TargetMongo) {
		a.startup.AddDependency(startup.Func{
			Name:      DependencyMongo,
			StartFunc: a.startMongo,
			StopFunc: func(ctx context.Context) error {
				return a.mongo.Close(ctx)
			},
		})
	}
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.config.RedisHost,
		Port:     a.config.RedisPort,
		Password: a.config.RedisPassword,
		DB:       a.config.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	if a.pipelineConfig.ChangedOnly {
		a.health.AddCheck(DependencyRedis, client)
	} else {
		a.health.AddOptionalCheck(DependencyRedis, client)
	}
	return nil
}

func (a *App) startSQL(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Driver:       a.config.SQLDriver,
		DSN:          a.config.SQLDSN,
		MaxOpenConns: a.config.SQLMaxOpenConns,
	}, a.logger)
	if err != nil {
		return err
	}

	if a.config.SQLMigrationsEnabled {
		migrations := database.NewMigrator(a.logger, database.MigrationConfig{
			Dir:          a.config.MigrationsPath,
			Version:      uint(a.config.MigrationVersion),
			Force:        a.config.MigrationForce,
			AutoRollback: a.config.MigrationAutoRollback,
		})
		if err := migrations.Apply(db); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate %s database: %w", a.config.SQLDriver, err)
		}
	}

	a.db = db
	a.health.AddOptionalCheck(DependencySQL, health.PingFunc(db.PingContext))
	return nil
}

func (a *App) startProducer(context.Context) error {
	producerConfig := kafka.DefaultProducerConfig()
	producerConfig.Brokers = a.config.KafkaBrokers
	producerConfig.Topic = a.config.KafkaTopic
	producerConfig.BatchSize = a.config.KafkaBatchSize
	producerConfig.BatchTimeout = a.config.KafkaBatchTimeoutDuration()
	producerConfig.RequiredAcks = a.config.KafkaRequiredAcks
	producerConfig.Compression = a.config.KafkaCompression

	producer, err := kafka.NewProducer(producerConfig, a.logger)
	if err != nil {
		return err
	}
	a.producer = producer
	return nil
}

func (a *App) startConsumer(context.Context) error {
	consumerConfig := kafka.DefaultConsumerConfig()
	consumerConfig.Brokers = a.config.KafkaBrokers
	consumerConfig.Topic = a.config.KafkaSourceTopic
	consumerConfig.GroupID = a.config.KafkaGroupID
	consumerConfig.MaxMessages = a.config.SourceMaxMessages
	consumerConfig.IdleTimeout = a.config.SourceIdleTimeout

	consumer, err := kafka.NewConsumer(consumerConfig, a.logger)
	if err != nil {
		return err
	}
	a.consumer = consumer
	return nil
}

func (a *App) startMongo(ctx context.Context) error {
	collection, err := sinks.ConnectMongo(ctx, a.config.MongoURI, a.config.MongoDatabase, a.config.MongoCollection)
	if err != nil {
		return err
	}
	a.mongo = collection
	a.health.AddOptionalCheck(DependencyMongo, collection)
	return nil
}

// Start brings connections up, then builds the pipeline and sinks on top of them.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	if a.redis != nil {
		a.hashStore = sinks.NewHashStore(a.redis, a.config.RedisHashKey, a.logger).WithTTL(a.config.RedisHashTTL)
	}

	var opts []pipeline.Option
	if a.hashStore != nil {
		opts = append(opts, pipeline.WithHashStore(a.hashStore))
	}
	p, err := pipeline.New(a.pipelineConfig, a.logger, opts...)
	if err != nil {
		return err
	}
	a.pipeline = p

	built, err := a.buildSinks()
	if err != nil {
		return err
	}
	a.sinks = built

	a.health.SetReady(true)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)
	return a.startup.Stop(ctx)
}

func (a *App) buildSinks() ([]sinks.Sink, error) {
	out := make([]sinks.Sink, 0, len(a.config.ExportTargets))
	for _, target := range a.config.ExportTargets {
		var sink sinks.Sink
		var err error

		switch target {
		case sinks.TargetCSV:
			sink, err = sinks.NewCSVSink(a.config.ExportDir, a.logger)
		case sinks.TargetJSON:
			sink, err = sinks.NewJSONSink(a.config.ExportDir, a.logger)
		case sinks.TargetYAML:
			sink, err = sinks.NewYAMLSink(a.config.ExportDir, a.logger)
		case sinks.TargetKafka:
			sink = sinks.NewKafkaSink(a.producer, a.logger)
		case sinks.TargetSQL:
			sink = sinks.NewSQLSink(a.db, a.config.SQLTable, a.logger)
		case sinks.TargetMongo:
			sink = sinks.NewMongoSink(a.mongo, a.logger)
		case sinks.TargetHashStore:
			sink = a.hashStore
		default:
			err = fmt.Errorf("unknown export target %q", target)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sink)
	}
	return out, nil
}

// Source builds the configured source. The kafka source needs Start to have run.
func (a *App) Source() (sources.Source, error) {
	options := sources.Options{
		Label:          a.config.BatchLabel,
		RecordsPath:    a.config.RecordsPath,
		RequiredFields: a.requiredFields(),
	}

	switch a.config.SourceType {
	case sources.TypeJSONFile:
		return sources.NewJSONFileSource(a.config.SourceInput, options, a.logger)
	case sources.TypeHTTP:
		headers, err := ParseHeaders(a.config.SourceHeaders)
		if err != nil {
			return nil, err
		}
		return sources.NewHTTPSource(a.config.SourceInput, headers, a.config.SourceTimeout, options, a.logger)
	case sources.TypeKafka:
		if a.consumer == nil {
			return nil, fmt.Errorf("kafka source used before startup")
		}
		return sources.NewKafkaSource(a.consumer, options, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", a.config.SourceType)
	}
}

// SourceOptions are used for batches that arrive over the API.
func (a *App) SourceOptions(label string) sources.Options {
	return sources.Options{
		Label:          label,
		RecordsPath:    a.config.RecordsPath,
		RequiredFields: a.requiredFields(),
	}
}

func (a *App) requiredFields() []string {
	if len(a.config.RequiredFields) > 0 {
		return a.config.RequiredFields
	}
	return []string{a.config.IdentityField}
}

// ParseHeaders reads "Name=value" pairs. Values may contain '='.
func ParseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("source header %q must look like Name=value", pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
