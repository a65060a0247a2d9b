package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load everything once and show request statistics",
	Long: `Load texts, options, clips and every analytics view once, then show
per-endpoint request counts and latencies. Useful to see how slow the
service is for the current texts.`,
	RunE: runStats,
}

func init() {
	addSelectionFlags(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	start := time.Now()
	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}
	printSelection(s)
	fmt.Printf("Loaded in %s\n\n", time.Since(start).Round(time.Millisecond))

	printStats(collector.Snapshot())
	return analyticsError(s)
}

func printStats(snap metrics.Snapshot) {
	fmt.Printf("Requests\n")
	fmt.Printf("═══════════════════════════════════════\n\n")

	if len(snap.Operations) == 0 {
		fmt.Println("No requests.")
		return
	}

	fmt.Printf("%-16s %6s %6s %6s %10s %10s %10s\n", "OPERATION", "COUNT", "FAILED", "CANCEL", "AVG", "MIN", "MAX")
	for _, op := range snap.Operations {
		fmt.Printf("%-16s %6d %6d %6d %8.0fms %8dms %8dms\n",
			op.Operation, op.Count, op.Failures, op.Cancelled, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
