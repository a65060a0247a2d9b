package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

var textsAlarm bool

var textsCmd = &cobra.Command{
	Use:   "texts",
	Short: "Manage the labeled probe texts",
	Long: `Manage the labeled probe texts. Texts are lowercased and trimmed,
kept unique and sorted. Every change is sent to the service and cached locally;
a change the service rejects is rolled back.

Examples:
  playground texts
  playground texts add "a person climbing a fence" --alarm
  playground texts add "an empty street"
  playground texts toggle "an empty street"
  playground texts remove "an empty street"
  playground texts toggle-all false
  playground texts sync`,
	RunE: runTextsList,
}

var textsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List texts",
	RunE:  runTextsList,
}

var textsAddCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Add texts or overwrite their classification",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTextsAdd,
}

var textsRemoveCmd = &cobra.Command{
	Use:   "remove <text>...",
	Short: "Remove texts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTextsRemove,
}

var textsToggleCmd = &cobra.Command{
	Use:   "toggle <text>...",
	Short: "Flip the classification of texts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTextsToggle,
}

var textsToggleAllCmd = &cobra.Command{
	Use:       "toggle-all <true|false>",
	Short:     "Set the classification of every text",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"true", "false"},
	RunE:      runTextsToggleAll,
}

var textsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge cached and server texts",
	Long: `Merge the locally cached texts with the server's list. The server wins
on conflicting classifications; texts only known locally are pushed.`,
	RunE: runTextsList,
}

func init() {
	textsAddCmd.Flags().BoolVarP(&textsAlarm, "alarm", "a", false, "classify the texts as alarm")

	textsCmd.AddCommand(textsListCmd)
	textsCmd.AddCommand(textsAddCmd)
	textsCmd.AddCommand(textsRemoveCmd)
	textsCmd.AddCommand(textsToggleCmd)
	textsCmd.AddCommand(textsToggleAllCmd)
	textsCmd.AddCommand(textsSyncCmd)
}

func runTextsList(cmd *cobra.Command, args []string) error {
	if err := st.LoadTexts(cmd.Context()); err != nil {
		return err
	}
	st.Wait()
	printTexts(st.Snapshot())
	return nil
}

func runTextsAdd(cmd *cobra.Command, args []string) error {
	actions := make([]store.Action, len(args))
	for i, text := range args {
		actions[i] = store.AddText{Text: text, Classification: textsAlarm}
	}
	return editTexts(cmd, actions)
}

func runTextsRemove(cmd *cobra.Command, args []string) error {
	actions := make([]store.Action, len(args))
	for i, text := range args {
		actions[i] = store.RemoveText{Text: text}
	}
	return editTexts(cmd, actions)
}

func runTextsToggle(cmd *cobra.Command, args []string) error {
	actions := make([]store.Action, len(args))
	for i, text := range args {
		actions[i] = store.ToggleTextClassification{Text: text}
	}
	return editTexts(cmd, actions)
}

func runTextsToggleAll(cmd *cobra.Command, args []string) error {
	var v bool
	switch strings.ToLower(args[0]) {
	case "true", "alarm", "1":
		v = true
	case "false", "not-alarm", "0":
		v = false
	default:
		return fmt.Errorf("invalid classification %q (want true or false)", args[0])
	}
	return editTexts(cmd, []store.Action{store.ToggleAllTo{Value: v}})
}

// editTexts applies text actions and waits for the server to confirm them.
func editTexts(cmd *cobra.Command, actions []store.Action) error {
	if err := st.LoadTexts(cmd.Context()); err != nil {
		return err
	}
	for _, a := range actions {
		if err := st.Dispatch(a); err != nil {
			return err
		}
	}
	st.Wait()

	s := st.Snapshot()
	printTexts(s)
	if s.Texts.LastError != "" {
		return errors.New("sync texts: " + s.Texts.LastError)
	}
	return nil
}

func printTexts(s store.State) {
	list := s.Texts.List
	if len(list) == 0 {
		fmt.Println("No texts.")
		return
	}

	fmt.Printf("Texts (%d, %d alarm):\n\n", len(list), s.AlarmTexts())
	for _, t := range list {
		mark := " "
		if t.Classification {
			mark = "!"
		}
		fmt.Printf("  [%s] %s\n", mark, t.Text)
	}
}
