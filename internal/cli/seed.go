package cli

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/producer"
)

var (
	seedCount int
	seedDays  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic search events for testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Default()
		kafkaProducer := kafka.NewProducer(cfg.Kafka, logger)
		defer kafkaProducer.Close()

		svc := producer.NewService(kafkaProducer, cfg.Kafka.SearchEvents, logger)

		for i := 0; i < seedCount; i++ {
			occurredAt := gofakeit.DateRange(
				time.Now().UTC().AddDate(0, 0, -seedDays),
				time.Now().UTC(),
			)

			payload := &models.SearchEventPayload{
				UserID:     gofakeit.UUID(),
				SessionID:  fmt.Sprintf("sess-%s", gofakeit.UUID()[:8]),
				Query:      gofakeit.ProductName(),
				Country:    gofakeit.CountryAbr(),
				OccurredAt: &occurredAt,
			}

			if _, err := svc.Send(cmd.Context(), payload); err != nil {
				return fmt.Errorf("failed after %d events: %w", i, err)
			}
		}

		fmt.Printf("seeded %d search events\n", seedCount)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of events to publish")
	seedCmd.Flags().IntVar(&seedDays, "days", 7, "spread occurred-at over the past N days")

	rootCmd.AddCommand(seedCmd)
}
