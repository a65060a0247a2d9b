package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

var (
	clipsHideAlarms    bool
	clipsHideNotAlarms bool
	clipsWrongTopK     []int
)

var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "List clips with their top-K verdicts",
	Long: `List the clip catalogue with, for every K, whether the clip is
predicted as alarm (its K most similar texts contain an alarm text) and
whether that prediction is right.

Examples:
  playground clips
  playground clips --hide-not-alarms
  playground clips --wrong 1 --wrong 3`,
	RunE: runClips,
}

func init() {
	clipsCmd.Flags().BoolVar(&clipsHideAlarms, "hide-alarms", false, "hide alarm clips")
	clipsCmd.Flags().BoolVar(&clipsHideNotAlarms, "hide-not-alarms", false, "hide background and distraction clips")
	clipsCmd.Flags().IntSliceVar(&clipsWrongTopK, "wrong", nil, "only clips mispredicted at any of these K")
	addSelectionFlags(clipsCmd)
}

func runClips(cmd *cobra.Command, args []string) error {
	if clipsHideAlarms {
		if err := st.Dispatch(store.ToggleShowAlarms{}); err != nil {
			return err
		}
	}
	if clipsHideNotAlarms {
		if err := st.Dispatch(store.ToggleShowNotAlarms{}); err != nil {
			return err
		}
	}
	for _, k := range clipsWrongTopK {
		if err := st.Dispatch(store.ToggleShowOnlyWrongTopK{K: k}); err != nil {
			return err
		}
	}

	s, err := loadAnalytics(cmd.Context())
	if err != nil {
		return err
	}

	clips := s.FilteredClips()
	if len(clips) == 0 {
		fmt.Println("No clips found.")
		return analyticsError(s)
	}

	printSelection(s)
	fmt.Printf("\nClips (%d of %d):\n\n", len(clips), len(s.Clips.List))
	for _, c := range clips {
		var verdicts []string
		for _, v := range s.TopKVerdicts(c) {
			mark := "ok"
			if !v.Correct {
				mark = "WRONG"
			}
			verdicts = append(verdicts, fmt.Sprintf("k%d:%s", v.K, mark))
		}
		fmt.Printf("- %s [%s] %s\n", c.Index, c.Category, strings.Join(verdicts, " "))
		if verbose {
			if c.Description != nil && *c.Description != "" {
				fmt.Printf("  %s\n", *c.Description)
			}
			if c.Distance != nil {
				fmt.Printf("  Distance: %.1f\n", *c.Distance)
			}
			if c.Approach != nil {
				fmt.Printf("  Approach: %s\n", *c.Approach)
			}
		}
	}
	return analyticsError(s)
}
