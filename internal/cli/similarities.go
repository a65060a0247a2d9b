package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const barWidth = 20

var similaritiesCmd = &cobra.Command{
	Use:   "similarities [clip]...",
	Short: "Show the most similar texts of clips",
	Long: `Show, for each clip, its texts ranked by similarity. Bars are scaled
between the lowest and highest similarity of the response.

Examples:
  playground similarities
  playground similarities 0001 0042 --all
  playground similarities --model ViT-L-14 --no-softmax`,
	RunE: runSimilarities,
}

func init() {
	addSelectionFlags(similaritiesCmd)
}

func runSimilarities(cmd *cobra.Command, args []string) error {
	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}

	clips := args
	if len(clips) == 0 {
		for _, c := range s.FilteredClips() {
			clips = append(clips, c.Index)
		}
	}

	printSelection(s)
	for _, clip := range clips {
		ranked := s.RankedSimilarities(clip)
		fmt.Printf("\n%s:\n", clip)
		if len(ranked) == 0 {
			fmt.Println("  no similarities")
			continue
		}
		for _, sim := range ranked {
			mark := " "
			if sim.Classification {
				mark = "!"
			}
			fmt.Printf("  [%s] %s %.4f  %s\n", mark, bar(s.NormalizedSimilarity(sim.Similarity)), sim.Similarity, sim.Text)
		}
	}
	return analyticsError(s)
}

// bar renders a fraction in [0,1] as a fixed-width bar.
func bar(fraction float64) string {
	n := int(fraction*barWidth + 0.5)
	n = max(0, min(barWidth, n))
	return strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
}
