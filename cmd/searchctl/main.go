// searchctl is the operations CLI for the search analytics pipeline.
package main

import (
	"os"

	"github.com/DimitryIvaniuta/kafka-search-analytics-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
