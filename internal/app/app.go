package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreyxaxa/crm-payments/config"
	amqpctrl "github.com/andreyxaxa/crm-payments/internal/controller/amqp"
	kafkactrl "github.com/andreyxaxa/crm-payments/internal/controller/kafka"
	"github.com/andreyxaxa/crm-payments/internal/controller/restapi"
	"github.com/andreyxaxa/crm-payments/internal/controller/worker/exportsweeper"
	"github.com/andreyxaxa/crm-payments/internal/entity"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/exporter"
	infrakafka "github.com/andreyxaxa/crm-payments/internal/infrastructure/kafka"
	"github.com/andreyxaxa/crm-payments/internal/infrastructure/metrics"
	infrarabbitmq "github.com/andreyxaxa/crm-payments/internal/infrastructure/rabbitmq"
	"github.com/andreyxaxa/crm-payments/internal/repo/persistent"
	"github.com/andreyxaxa/crm-payments/internal/usecase/export"
	"github.com/andreyxaxa/crm-payments/internal/usecase/exportworker"
	"github.com/andreyxaxa/crm-payments/internal/usecase/payment"
	"github.com/andreyxaxa/crm-payments/internal/usecase/webhook"
	"github.com/andreyxaxa/crm-payments/migrations"
	"github.com/andreyxaxa/crm-payments/pkg/fanout"
	"github.com/andreyxaxa/crm-payments/pkg/httpserver"
	"github.com/andreyxaxa/crm-payments/pkg/kafka/consumer"
	"github.com/andreyxaxa/crm-payments/pkg/kafka/producer"
	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/andreyxaxa/crm-payments/pkg/postgres"
	"github.com/andreyxaxa/crm-payments/pkg/rabbitmq"
	"github.com/andreyxaxa/crm-payments/pkg/s3client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stopper - общий интерфейс фоновых компонентов.
type stopper interface {
	Shutdown(ctx context.Context) error
}

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Repository

	// migrations
	if cfg.PG.MigrateOnStart {
		err := postgres.Migrate(ctx, cfg.PG.URL, migrations.FS, ".")
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - postgres.Migrate: %w", err))
		}
	}

	// postgres
	pg, err := postgres.New(cfg.PG.URL,
		postgres.MaxPoolSize(cfg.PG.PoolMax),
		postgres.TxIsolation(cfg.PG.TxIsolation),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
		s3client.EnsureBucket(cfg.Exports.Bucket),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	paymentRepo := persistent.NewPaymentRepo(pg)
	artifactRepo := persistent.NewExportArtifactRepo(s3c, cfg.Exports.Bucket)

	// RabbitMQ
	rmq, err := rabbitmq.New(cfg.RabbitMQ.URL, rabbitmq.Prefetch(cfg.RabbitMQ.Prefetch))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - rabbitmq.New: %w", err))
	}
	defer rmq.Close()

	for _, queue := range []string{cfg.RabbitMQ.ExportQueue, cfg.RabbitMQ.StatusQueue} {
		err = rmq.DeclareQueue(queue)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - rmq.DeclareQueue %s: %w", queue, err))
		}
	}

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, producer.Compression(cfg.Kafka.Compression))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}
	eventProducer := infrakafka.NewEventProducer(kafkaProducer, cfg.Kafka.EventsTopic, cfg.Kafka.Origin, m)

	// Stream
	sink := fanout.New[entity.StreamEvent](l, fanout.MaxBuffered(cfg.Stream.MaxBuffered))
	m.ObserveStreamSubscribers(sink.Subscribers)

	// Use-Case

	// payment use-case
	paymentUseCase := payment.New(
		paymentRepo,
		persistent.NewPaymentHistoryRepo(pg),
		pg,
		eventProducer,
		sink,
		l,
	)

	// webhook use-case
	webhookUseCase := webhook.New(paymentUseCase, cfg.Webhook.Secret, l)

	// export use-case
	exportUseCase := export.New(
		persistent.NewExportJobRepo(pg),
		artifactRepo,
		infrarabbitmq.NewExportJobPublisher(rmq, cfg.RabbitMQ.ExportQueue, m),
		entity.ExportStorage{
			Bucket:        cfg.Exports.Bucket,
			Prefix:        cfg.Exports.Prefix,
			BaseURL:       cfg.Exports.BaseURL,
			URLTTLSeconds: int64(cfg.Exports.URLTTL / time.Second),
		},
		l,
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.EventsTopic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}
	m.ObserveConsumerLag(cfg.Kafka.EventsTopic, kafkaConsumer.Lag)

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		paymentUseCase,
		infrakafka.NewEventConsumer(kafkaConsumer),
		cfg.Kafka.Origin,
		m,
		l,
		cfg.KafkaController.CommitTimeout,
		cfg.KafkaController.ProcessTimeout,
		cfg.KafkaController.Workers,
	)

	// RabbitMQ as Controller
	statusController := amqpctrl.NewStatusController(rmq, cfg.RabbitMQ.StatusQueue, exportUseCase, m, l, cfg.RabbitMQ.ProcessTimeout)

	var jobController *amqpctrl.QueueController
	if cfg.Exports.WorkerEnabled {
		worker := exportworker.New(
			paymentRepo,
			artifactRepo,
			exporter.New(),
			infrarabbitmq.NewExportStatusPublisher(rmq, cfg.RabbitMQ.StatusQueue, m),
			l,
		)
		jobController = amqpctrl.NewJobController(rmq, cfg.RabbitMQ.ExportQueue, worker, m, l, cfg.RabbitMQ.ProcessTimeout)
	}

	// Export Sweeper Worker
	sweeper := exportsweeper.New(exportUseCase, l, cfg.Exports.SweepInterval, cfg.Exports.StuckAfter, cfg.Exports.SweepTimeout)

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpserver.BodyLimit(cfg.HTTP.BodyLimit),
	)
	restapi.NewRouter(httpServer.App, cfg, paymentUseCase, webhookUseCase, exportUseCase, m, reg, l)

	// Start Components
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	err = statusController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - statusController.Start: %w", err))
	}
	if jobController != nil {
		err = jobController.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - jobController.Start: %w", err))
		}
	}
	err = sweeper.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - sweeper.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown

	// SSE-потоки держат соединения, закрываем их до остановки сервера
	sink.Close()

	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	background := map[string]stopper{"statusController": statusController, "sweeper": sweeper}
	if jobController != nil {
		background["jobController"] = jobController
	}
	for name, component := range background {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.RabbitMQ.ShutdownTimeout)
		err = component.Shutdown(shutdownCtx)
		shutdownCancel()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - %s.Shutdown: %w", name, err))
		}
	}

	err = eventProducer.Close()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - eventProducer.Close: %w", err))
	}
}

// Migrate applies pending migrations, or rolls back the latest one when down is set.
func Migrate(ctx context.Context, cfg *config.PG, down bool) error {
	if down {
		err := postgres.MigrateDown(ctx, cfg.URL, migrations.FS, ".")
		if err != nil {
			return fmt.Errorf("app - Migrate - postgres.MigrateDown: %w", err)
		}

		return nil
	}

	err := postgres.Migrate(ctx, cfg.URL, migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("app - Migrate - postgres.Migrate: %w", err)
	}

	return nil
}
