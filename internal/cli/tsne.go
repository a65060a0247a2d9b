package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

var tsneJSON bool

var tsneCmd = &cobra.Command{
	Use:   "tsne",
	Short: "Show 2D projections of clips or texts",
	Long: `Show the t-SNE projection of the clip features (images) or of the
text features (texts), one series per category.

The text projection needs more than a handful of texts.

Examples:
  playground tsne images
  playground tsne texts --json > texts.json`,
}

var tsneImagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Project the clip features of the model variation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTsne(cmd, true)
	},
}

var tsneTextsCmd = &cobra.Command{
	Use:   "texts",
	Short: "Project the text features",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTsne(cmd, false)
	},
}

func init() {
	for _, c := range []*cobra.Command{tsneImagesCmd, tsneTextsCmd} {
		c.Flags().BoolVar(&tsneJSON, "json", false, "print series as JSON")
		c.Flags().StringVarP(&selModel, "model", "m", "", "model variation (default: first available)")
		tsneCmd.AddCommand(c)
	}
}

func runTsne(cmd *cobra.Command, images bool) error {
	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}

	series := s.Tsne.Texts
	if images {
		series = s.Tsne.Images
	}

	if tsneJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(series); err != nil {
			return fmt.Errorf("encode series: %w", err)
		}
		return analyticsError(s)
	}

	if len(series) == 0 {
		fmt.Println("No projection.")
		return analyticsError(s)
	}
	printSeries(series)
	return analyticsError(s)
}

func printSeries(series []models.TsneSeries) {
	for _, ser := range series {
		fmt.Printf("%s (%d):\n", ser.Name, len(ser.Points))
		for _, p := range ser.Points {
			fmt.Printf("  %9.3f %9.3f  %s\n", p.X, p.Y, p.Label)
		}
	}
}
