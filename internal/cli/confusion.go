package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var confusionCmd = &cobra.Command{
	Use:   "confusion",
	Short: "Show the top-K confusion matrices",
	Long: `Show one confusion matrix per K. A clip is predicted as alarm when any
of its K most similar texts is classified as alarm.`,
	RunE: runConfusion,
}

func init() {
	addSelectionFlags(confusionCmd)
}

func runConfusion(cmd *cobra.Command, args []string) error {
	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}
	printSelection(s)

	matrices := s.ConfusionMatrices()
	if len(matrices) == 0 {
		fmt.Println("\nNo confusion matrices.")
		return analyticsError(s)
	}

	fmt.Printf("\n%-6s %6s %6s %6s %6s %9s\n", "K", "TP", "FN", "FP", "TN", "ACCURACY")
	fmt.Println("------------------------------------------")
	for _, m := range matrices {
		fmt.Printf("%-6d %6d %6d %6d %6d %8.1f%%\n", m.K, m.TP, m.FN, m.FP, m.TN, m.Accuracy()*100)
	}
	return analyticsError(s)
}
