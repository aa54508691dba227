// The api binary serves the thin HTTP surface: stats queries and the
// search-event publish endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/api"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/config"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/producer"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.Database.Postgres.ConnString())
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pool.Close()

	statRepo := repository.NewStatRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	kafkaProducer := kafka.NewProducer(cfg.Kafka, logger)
	defer kafkaProducer.Close()

	statsService := stats.NewService(pool, statRepo, outboxRepo, logger)
	producerService := producer.NewService(kafkaProducer, cfg.Kafka.SearchEvents, logger)

	handler := api.NewHandler(statsService, producerService, logger)
	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("api server stopped")
}
