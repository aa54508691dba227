// The consumer binary runs the ingestion pipeline: it consumes search
// events from Kafka, records and aggregates them in Postgres, and
// drains the outbox to the stats-updates topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/config"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/ingest"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/outbox"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.ConnString()

	// Run database migrations
	logger.Info("running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pool.Close()

	rawEvents := repository.NewRawEventRepository(pool)
	statRepo := repository.NewStatRepository(pool)
	errorLog := repository.NewErrorRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()

	deadLetter := kafka.NewDeadLetterPublisher(producer, cfg.Kafka.SearchEventsDLT, logger)
	aggregator := stats.NewService(pool, statRepo, outboxRepo, logger)
	processor := ingest.NewProcessor(rawEvents, errorLog, aggregator, deadLetter, logger)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Consumer.FetchBackoff, processor, logger)
	outboxPublisher := outbox.NewPublisher(
		outboxRepo, producer, cfg.Kafka.StatsUpdates,
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger,
	)

	// Ops endpoint: health and Prometheus metrics.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("ops endpoint listening", "addr", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server error", logging.Err(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			logger.Error("consumer loop exited with error", logging.Err(err))
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		outboxPublisher.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down, waiting for in-flight work")

	// The consumer finishes its in-flight message before returning, so
	// no acknowledged position has incomplete side effects.
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server forced to shut down", logging.Err(err))
	}

	logger.Info("consumer stopped")
	os.Exit(0)
}
