package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	statsDay   string
	statsFrom  string
	statsTo    string
	statsLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query aggregated search statistics",
}

var statsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Top queries for one UTC day",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsDay == "" {
			return fmt.Errorf("--day is required")
		}
		params := url.Values{"day": {statsDay}, "limit": {strconv.Itoa(statsLimit)}}
		return fetchStats("/api/stats/daily", params)
	},
}

var statsRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Top queries across an inclusive day range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsFrom == "" || statsTo == "" {
			return fmt.Errorf("--from and --to are required")
		}
		params := url.Values{"from": {statsFrom}, "to": {statsTo}, "limit": {strconv.Itoa(statsLimit)}}
		return fetchStats("/api/stats/range", params)
	},
}

func fetchStats(path string, params url.Values) error {
	resp, err := http.Get(apiURL + path + "?" + params.Encode())
	if err != nil {
		return fmt.Errorf("failed to query stats API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats API returned %d: %s", resp.StatusCode, body)
	}

	var rows []struct {
		Day   string `json:"day"`
		Query string `json:"query"`
		Count int64  `json:"count"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	for _, row := range rows {
		if row.Day != "" {
			fmt.Printf("%s  %8d  %s\n", row.Day, row.Count, row.Query)
		} else {
			fmt.Printf("%8d  %s\n", row.Count, row.Query)
		}
	}
	return nil
}

func init() {
	statsDailyCmd.Flags().StringVar(&statsDay, "day", "", "day (YYYY-MM-DD)")
	statsRangeCmd.Flags().StringVar(&statsFrom, "from", "", "first day (YYYY-MM-DD)")
	statsRangeCmd.Flags().StringVar(&statsTo, "to", "", "last day (YYYY-MM-DD)")
	statsCmd.PersistentFlags().IntVar(&statsLimit, "limit", 10, "maximum rows")

	statsCmd.AddCommand(statsDailyCmd, statsRangeCmd)
	rootCmd.AddCommand(statsCmd)
}
