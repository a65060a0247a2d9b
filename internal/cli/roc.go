package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rocPoints bool

var rocCmd = &cobra.Command{
	Use:   "roc",
	Short: "Show the ROC curve and AUC of the texts",
	RunE:  runRoc,
}

func init() {
	rocCmd.Flags().BoolVar(&rocPoints, "points", false, "print every curve point")
	addSelectionFlags(rocCmd)
}

func runRoc(cmd *cobra.Command, args []string) error {
	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}
	printSelection(s)

	if s.Roc.Data == nil {
		fmt.Println("\nNo ROC curve (add texts first).")
		return analyticsError(s)
	}

	fmt.Printf("\nAUC: %.4f\n", s.Roc.Data.AUC)
	if rocPoints {
		fmt.Printf("\n%10s %10s %10s\n", "FPR", "TPR", "THRESHOLD")
		for _, p := range s.RocPoints() {
			fmt.Printf("%10.4f %10.4f %10.4f\n", p.FPR, p.TPR, p.Threshold)
		}
	}
	return analyticsError(s)
}
