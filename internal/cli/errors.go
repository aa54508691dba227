package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/repository"
)

var (
	errorsLimit   int
	errorsRetryID int64
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Inspect the processing error log",
}

var errorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent processing errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := repository.NewPool(ctx, cfg.Database.Postgres.ConnString())
		if err != nil {
			return err
		}
		defer pool.Close()

		errs, err := repository.NewErrorRepository(pool).ListRecent(ctx, errorsLimit)
		if err != nil {
			return err
		}

		for _, e := range errs {
			fmt.Printf("#%d  %-16s  %s[%d]@%d  retries=%d  %s\n",
				e.ID, e.ErrorType, e.KafkaTopic, e.KafkaPartition, e.KafkaOffset,
				e.RetryCount, e.ErrorMessage)
		}
		return nil
	},
}

// errors retry is the external retry driver reserved by the error log:
// it only bumps the bookkeeping; actually replaying the event is up to
// the operator's tooling.
var errorsRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Record a retry attempt for one error row",
	RunE: func(cmd *cobra.Command, args []string) error {
		if errorsRetryID == 0 {
			return fmt.Errorf("--id is required")
		}

		ctx := cmd.Context()
		pool, err := repository.NewPool(ctx, cfg.Database.Postgres.ConnString())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repository.NewErrorRepository(pool).IncrementRetry(ctx, errorsRetryID); err != nil {
			return err
		}

		fmt.Printf("recorded retry for error #%d\n", errorsRetryID)
		return nil
	},
}

func init() {
	errorsListCmd.Flags().IntVar(&errorsLimit, "limit", 20, "maximum rows")
	errorsRetryCmd.Flags().Int64Var(&errorsRetryID, "id", 0, "error row id")

	errorsCmd.AddCommand(errorsListCmd, errorsRetryCmd)
	rootCmd.AddCommand(errorsCmd)
}
