package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List model variations and text classification methods",
	RunE:  runOptions,
}

var selectCmd = &cobra.Command{
	Use:   "select <model-variation> [text-classification-method]",
	Short: "Evaluate the texts under a model variation and method",
	Long: `Select a model variation (and optionally a text classification method)
and print a summary of how the current texts perform with it: accuracy per K
and the ROC AUC.

Examples:
  playground select ViT-B-32
  playground select ViT-L-14 by-mean`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSelect,
}

func init() {
	selectCmd.Flags().BoolVar(&selNoSoftmax, "no-softmax", false, "do not apply softmax to similarities")
	selectCmd.Flags().StringVar(&selSubtract, "subtract", "", "comma-separated texts subtracted from every text embedding")
}

func runOptions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := st.FetchModelVariations(ctx); err != nil {
		return fmt.Errorf("list model variations: %w", err)
	}
	if err := st.FetchTextClassificationMethods(ctx); err != nil {
		return fmt.Errorf("list text classification methods: %w", err)
	}
	s := st.Snapshot()

	fmt.Printf("Model variations (%d):\n", len(s.Options.ModelVariations))
	for _, v := range s.Options.ModelVariations {
		mark := " "
		if v == s.Options.SelectedModelVariation {
			mark = "*"
		}
		fmt.Printf("  %s %s\n", mark, v)
	}

	fmt.Printf("\nText classification methods (%d):\n", len(s.Options.TextClassificationMethods))
	for _, m := range s.Options.TextClassificationMethods {
		mark := " "
		if m == s.Options.SelectedTextClassificationMethod {
			mark = "*"
		}
		fmt.Printf("  %s %s\n", mark, m)
	}
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	selModel = args[0]
	if len(args) == 2 {
		selMethod = args[1]
	}

	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}
	printSelection(s)
	fmt.Println()

	for _, m := range s.ConfusionMatrices() {
		fmt.Printf("  top-%-3d accuracy %5.1f%%\n", m.K, m.Accuracy()*100)
	}
	if s.Roc.Data != nil {
		fmt.Printf("  ROC AUC  %.3f\n", s.Roc.Data.AUC)
	}
	return analyticsError(s)
}
