package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

// Selection flags shared by the analytics commands
var (
	selModel     string
	selMethod    string
	selNoSoftmax bool
	selSubtract  string
	selAll       bool
)

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&selModel, "model", "m", "", "model variation (default: first available)")
	cmd.Flags().StringVar(&selMethod, "method", "", "text classification method (default: first available)")
	cmd.Flags().BoolVar(&selNoSoftmax, "no-softmax", false, "do not apply softmax to similarities")
	cmd.Flags().StringVar(&selSubtract, "subtract", "", "comma-separated texts subtracted from every text embedding")
	cmd.Flags().BoolVar(&selAll, "all", false, "show every similarity instead of the top 6")
}

// loadAnalytics initializes the store, applies the selection flags and waits
// for the resulting analytics.
func loadAnalytics(ctx context.Context) (store.State, error) {
	if err := st.Init(ctx); err != nil {
		return store.State{}, err
	}

	var actions []store.Action
	if selModel != "" {
		actions = append(actions, store.SelectModelVariation{Value: selModel})
	}
	if selMethod != "" {
		actions = append(actions, store.SelectTextClassificationMethod{Value: selMethod})
	}
	if selNoSoftmax {
		actions = append(actions, store.ToggleApplySoftmax{})
	}
	if selSubtract != "" {
		actions = append(actions, store.SetSubtractionTexts{Value: selSubtract})
	}
	if selAll {
		actions = append(actions, store.ToggleShowAllSimilarities{})
	}
	for _, a := range actions {
		if err := st.Dispatch(a); err != nil {
			return store.State{}, err
		}
	}

	st.Wait()
	return st.Snapshot(), nil
}

// analyticsError returns the first analytics failure recorded in s.
func analyticsError(s store.State) error {
	for _, e := range []struct{ what, msg string }{
		{"similarities", s.Similarities.LastError},
		{"roc", s.Roc.LastError},
		{"t-SNE", s.Tsne.LastError},
		{"clips", s.Clips.LastError},
	} {
		if e.msg != "" {
			return fmt.Errorf("%s: %s", e.what, e.msg)
		}
	}
	return nil
}

func printSelection(s store.State) {
	softmax := "on"
	if !s.Similarities.ApplySoftmax {
		softmax = "off"
	}
	fmt.Printf("Model: %s  Method: %s  Softmax: %s  Texts: %d (%d alarm)\n",
		s.Options.SelectedModelVariation, s.Options.SelectedTextClassificationMethod,
		softmax, len(s.Texts.List), s.AlarmTexts())
	if s.Similarities.SubtractionTexts != "" {
		fmt.Printf("Subtracting: %s\n", s.Similarities.SubtractionTexts)
	}
}
