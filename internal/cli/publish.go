package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/kafka"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/logging"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/models"
	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/producer"
)

var (
	publishQuery   string
	publishUserID  string
	publishCountry string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish one search event to the main topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		if publishQuery == "" {
			return fmt.Errorf("--query is required")
		}

		logger := logging.Default()
		kafkaProducer := kafka.NewProducer(cfg.Kafka, logger)
		defer kafkaProducer.Close()

		svc := producer.NewService(kafkaProducer, cfg.Kafka.SearchEvents, logger)

		now := time.Now().UTC()
		sent, err := svc.Send(cmd.Context(), &models.SearchEventPayload{
			UserID:     publishUserID,
			Query:      publishQuery,
			Country:    publishCountry,
			OccurredAt: &now,
		})
		if err != nil {
			return err
		}

		fmt.Printf("published event %s (key=%s)\n", sent.EventID, sent.Key())
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishQuery, "query", "", "search query text")
	publishCmd.Flags().StringVar(&publishUserID, "user", "", "user id")
	publishCmd.Flags().StringVar(&publishCountry, "country", "", "ISO country code")

	rootCmd.AddCommand(publishCmd)
}
