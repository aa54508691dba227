package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
)

var outboxIDs []int64

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Operate on the transactional outbox",
}

// The publisher never retries FAILED rows on its own; resetting them to
// NEW is the designated manual retry path.
var outboxRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reset FAILED outbox rows to NEW so the next drain picks them up",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := repository.NewPool(ctx, cfg.Database.Postgres.ConnString())
		if err != nil {
			return err
		}
		defer pool.Close()

		reset, err := repository.NewOutboxRepository(pool).ResetFailed(ctx, outboxIDs)
		if err != nil {
			return err
		}

		fmt.Printf("reset %d outbox row(s) to NEW\n", reset)
		return nil
	},
}

func init() {
	outboxRetryCmd.Flags().Int64SliceVar(&outboxIDs, "id", nil, "outbox row ids (default: all FAILED rows)")

	outboxCmd.AddCommand(outboxRetryCmd)
	rootCmd.AddCommand(outboxCmd)
}
