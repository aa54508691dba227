// Package cli implements the searchctl operations CLI: producing test
// events, querying stats, and driving manual retries of failed outbox
// rows and processing errors.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	apiURL  string
)

var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "Search analytics operations CLI",
	Long: `searchctl is the operations CLI for the search analytics pipeline.

Publish test events, seed synthetic traffic, query aggregated stats,
and drive manual retries of failed outbox rows and processing errors.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "base URL of the stats API")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = &config.Config{}
	}
}
