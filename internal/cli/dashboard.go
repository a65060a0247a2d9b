package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

const (
	paneRows    = 12
	playTimeout = 30 * time.Second
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive terminal dashboard",
	Long: `Open the interactive dashboard: edit texts, switch model variation and
method, and watch confusion matrices, AUC and mispredicted clips update live.

Keys:
  ↑/↓ j/k   move          tab      switch pane
  a / n     add alarm / non-alarm text
  space     toggle text   d        remove text
  A / N     all alarm / all non-alarm
  m / c     next model variation / method
  s         softmax       t        all similarities
  f / g     alarm / non-alarm clips
  1-9       only clips wrong at K
  -         texts to subtract
  p         play clip     r        refresh
  q         quit`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("dashboard needs a terminal")
	}

	changes, unsubscribe := st.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(newDashboardModel(st, changes))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard UI error: %w", err)
	}
	return nil
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeAddAlarm
	modeAddNotAlarm
	modeSubtract
)

type pane int

const (
	paneTexts pane = iota
	paneClips
)

// stateChangedMsg is sent after every store change
type stateChangedMsg struct{}

// initDoneMsg carries the result of the initial load
type initDoneMsg struct {
	err error
}

// playDoneMsg carries the result of playing a clip
type playDoneMsg struct {
	clip string
	err  error
}

// dashboardModel is the bubbletea model of the dashboard.
type dashboardModel struct {
	store   *store.Store
	changes <-chan struct{}
	state   store.State

	input   textinput.Model
	spinner spinner.Model
	gauge   progress.Model
	theme   Theme

	mode        inputMode
	focus       pane
	textCursor  int
	clipCursor  int
	status      string
	statusIsErr bool
}

func newDashboardModel(s *store.Store, changes <-chan struct{}) dashboardModel {
	input := textinput.New()
	input.CharLimit = 200

	return dashboardModel{
		store:   s,
		changes: changes,
		state:   s.Snapshot(),
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		gauge:   progress.New(progress.WithDefaultBlend(), progress.WithWidth(30)),
		theme:   defaultTheme,
	}
}

// Init starts loading and listening for store changes.
func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForChange(m.changes),
		loadStore(m.store),
	)
}

// waitForChange blocks until the store signals a change.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func loadStore(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		return initDoneMsg{err: s.Init(context.Background())}
	}
}

func playClip(s *store.Store, clip string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
		defer cancel()
		return playDoneMsg{clip: clip, err: s.PlayClip(ctx, clip)}
	}
}

// Update handles messages and returns the updated model.
func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.handleKey(msg.String())

	case stateChangedMsg:
		m.state = m.store.Snapshot()
		m.clampCursors()
		return m, waitForChange(m.changes)

	case initDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("loaded")
		}
		return m, nil

	case playDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("playing " + msg.clip)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.gauge, cmd = m.gauge.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateInput handles keys while the text input is open.
func (m dashboardModel) updateInput(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.closeInput()
		return m.submitInput(mode, value), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m dashboardModel) submitInput(mode inputMode, value string) dashboardModel {
	switch mode {
	case modeAddAlarm, modeAddNotAlarm:
		if strings.TrimSpace(value) == "" {
			return m
		}
		m.dispatch(store.AddText{Text: value, Classification: mode == modeAddAlarm})
		m.state = m.store.Snapshot()
		if i := models.IndexOfText(m.state.Texts.List, value); i >= 0 {
			m.textCursor = i
		}
	case modeSubtract:
		m.dispatch(store.SetSubtractionTexts{Value: value})
	}
	return m
}

func (m *dashboardModel) openInput(mode inputMode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	return m.input.Focus()
}

func (m *dashboardModel) closeInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.Reset()
}

// handleKey applies a key in normal mode.
func (m dashboardModel) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		if m.focus == paneTexts {
			m.focus = paneClips
		} else {
			m.focus = paneTexts
		}
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)

	case "a":
		return m, m.openInput(modeAddAlarm, "alarm text", "")
	case "n":
		return m, m.openInput(modeAddNotAlarm, "non-alarm text", "")
	case "-":
		return m, m.openInput(modeSubtract, "texts to subtract, comma-separated", m.state.Similarities.SubtractionTexts)
	case "space", " ":
		if t, ok := m.selectedText(); ok {
			m.dispatch(store.ToggleTextClassification{Text: t.Text})
		}
	case "d", "x", "delete":
		if t, ok := m.selectedText(); ok {
			m.dispatch(store.RemoveText{Text: t.Text})
		}
	case "A":
		m.dispatch(store.ToggleAllTo{Value: true})
	case "N":
		m.dispatch(store.ToggleAllTo{Value: false})

	case "m":
		if v, ok := next(m.state.Options.ModelVariations, m.state.Options.SelectedModelVariation); ok {
			m.dispatch(store.SelectModelVariation{Value: v})
		}
	case "c":
		if v, ok := next(m.state.Options.TextClassificationMethods, m.state.Options.SelectedTextClassificationMethod); ok {
			m.dispatch(store.SelectTextClassificationMethod{Value: v})
		}
	case "s":
		m.dispatch(store.ToggleApplySoftmax{})
	case "t":
		m.dispatch(store.ToggleShowAllSimilarities{})
	case "f":
		m.dispatch(store.ToggleShowAlarms{})
	case "g":
		m.dispatch(store.ToggleShowNotAlarms{})
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		k, _ := strconv.Atoi(key)
		m.dispatch(store.ToggleShowOnlyWrongTopK{K: k})

	case "p":
		if c, ok := m.selectedClip(); ok {
			m.setStatus("asking to play " + c.Index)
			return m, playClip(m.store, c.Index)
		}
	case "r":
		m.store.Refresh()
		m.setStatus("refreshing")
	}

	m.state = m.store.Snapshot()
	m.clampCursors()
	return m, nil
}

func (m *dashboardModel) dispatch(a store.Action) {
	if err := m.store.Dispatch(a); err != nil {
		m.setError(err)
		return
	}
	m.status = ""
}

func (m *dashboardModel) setStatus(s string) {
	m.status, m.statusIsErr = s, false
}

func (m *dashboardModel) setError(err error) {
	m.status, m.statusIsErr = err.Error(), true
}

func (m *dashboardModel) moveCursor(delta int) {
	if m.focus == paneTexts {
		m.textCursor += delta
	} else {
		m.clipCursor += delta
	}
	m.clampCursors()
}

func (m *dashboardModel) clampCursors() {
	m.textCursor = clamp(m.textCursor, len(m.state.Texts.List))
	m.clipCursor = clamp(m.clipCursor, len(m.state.FilteredClips()))
}

func clamp(i, n int) int {
	return max(0, min(i, n-1))
}

func (m dashboardModel) selectedText() (models.TextClassification, bool) {
	list := m.state.Texts.List
	if m.focus != paneTexts || m.textCursor >= len(list) {
		return models.TextClassification{}, false
	}
	return list[m.textCursor], true
}

func (m dashboardModel) selectedClip() (models.ClipIndex, bool) {
	clips := m.state.FilteredClips()
	if m.focus != paneClips || m.clipCursor >= len(clips) {
		return models.ClipIndex{}, false
	}
	return clips[m.clipCursor], true
}

// next returns the option after current, wrapping around.
func next(options []string, current string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	i := slices.Index(options, current)
	return options[(i+1)%len(options)], true
}

// View renders the dashboard.
func (m dashboardModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m dashboardModel) renderContent() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderTexts(), m.renderMetrics()))
	b.WriteString("\n")
	b.WriteString(m.renderClips())
	b.WriteString("\n")

	if m.mode != modeNormal {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.theme.hintStyle().Render("enter to confirm, esc to cancel"))
	} else {
		b.WriteString(m.theme.hintStyle().Render("a/n add  space toggle  d remove  m/c model/method  s softmax  1-9 wrong@K  tab pane  q quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m dashboardModel) renderHeader() string {
	s := m.state
	title := m.theme.titleStyle().Render("iLIDS playground")

	softmax := "softmax"
	if !s.Similarities.ApplySoftmax {
		softmax = "no softmax"
	}
	selection := m.theme.statusStyle().Render(fmt.Sprintf("[%s · %s · %s]",
		or(s.Options.SelectedModelVariation, "no model"),
		or(s.Options.SelectedTextClassificationMethod, "no method"),
		softmax))

	line := title + " " + selection
	if s.Loading() {
		line += " " + m.spinner.View()
	}
	if s.Similarities.SubtractionTexts != "" {
		line += "\n" + m.theme.hintStyle().Render("subtracting: "+s.Similarities.SubtractionTexts)
	}

	switch {
	case m.status != "" && m.statusIsErr:
		line += "\n" + m.theme.errorStyle().Render("✗ "+m.status)
	case m.status != "":
		line += "\n" + m.theme.successStyle().Render("✓ "+m.status)
	}
	for _, e := range []string{s.Texts.LastError, s.Options.LastError, s.Similarities.LastError, s.Roc.LastError, s.Tsne.LastError, s.Clips.LastError} {
		if e != "" {
			line += "\n" + m.theme.errorStyle().Render("✗ "+e)
		}
	}
	return line
}

func (m dashboardModel) renderTexts() string {
	list := m.state.Texts.List
	var b strings.Builder
	fmt.Fprintf(&b, "Texts (%d, %d alarm)\n", len(list), m.state.AlarmTexts())

	if len(list) == 0 {
		b.WriteString(m.theme.hintStyle().Render("press a or n to add a text"))
	}
	from, to := window(m.textCursor, len(list), paneRows)
	for i := from; i < to; i++ {
		t := list[i]
		line := "  " + t.Text
		if t.Classification {
			line = m.theme.alarmStyle().Render("! " + t.Text)
		}
		if m.focus == paneTexts && i == m.textCursor {
			line = m.theme.cursorStyle().Render(line)
		}
		b.WriteString(line + "\n")
	}
	return m.theme.paneStyle(m.focus == paneTexts).Width(44).Render(strings.TrimRight(b.String(), "\n"))
}

func (m dashboardModel) renderMetrics() string {
	s := m.state
	var b strings.Builder

	b.WriteString("Top-K confusion\n")
	matrices := s.ConfusionMatrices()
	if len(matrices) == 0 {
		b.WriteString(m.theme.hintStyle().Render("no results yet") + "\n")
	} else {
		fmt.Fprintf(&b, "%-4s %4s %4s %4s %4s %6s\n", "K", "TP", "FN", "FP", "TN", "ACC")
		for _, c := range matrices {
			fmt.Fprintf(&b, "%-4d %4d %4d %4d %4d %5.1f%%\n", c.K, c.TP, c.FN, c.FP, c.TN, c.Accuracy()*100)
		}
	}

	b.WriteString("\nROC AUC\n")
	if s.Roc.Data != nil {
		fmt.Fprintf(&b, "%s %.3f\n", m.gauge.ViewAs(s.Roc.Data.AUC), s.Roc.Data.AUC)
	} else {
		b.WriteString(m.theme.hintStyle().Render("no curve yet") + "\n")
	}

	b.WriteString("\nt-SNE\n")
	fmt.Fprintf(&b, "images: %s\ntexts:  %s", seriesSummary(s.Tsne.Images), seriesSummary(s.Tsne.Texts))
	return m.theme.paneStyle(false).Render(b.String())
}

func (m dashboardModel) renderClips() string {
	s := m.state
	clips := s.FilteredClips()

	var b strings.Builder
	filters := []string{}
	if !s.Clips.Filtering.ShowAlarms {
		filters = append(filters, "no alarms")
	}
	if !s.Clips.Filtering.ShowNotAlarms {
		filters = append(filters, "no non-alarms")
	}
	for _, k := range s.Clips.Filtering.ShowOnlyWrongTopK {
		filters = append(filters, fmt.Sprintf("wrong@%d", k))
	}
	fmt.Fprintf(&b, "Clips (%d of %d)", len(clips), len(s.Clips.List))
	if len(filters) > 0 {
		b.WriteString(" " + m.theme.hintStyle().Render(strings.Join(filters, ", ")))
	}
	b.WriteString("\n")

	from, to := window(m.clipCursor, len(clips), paneRows)
	for i := from; i < to; i++ {
		c := clips[i]
		var verdicts []string
		for _, v := range s.TopKVerdicts(c) {
			if v.Correct {
				verdicts = append(verdicts, m.theme.successStyle().Render(strconv.Itoa(v.K)))
			} else {
				verdicts = append(verdicts, m.theme.errorStyle().Render(strconv.Itoa(v.K)))
			}
		}
		top := ""
		if ranked := s.RankedSimilarities(c.Index); len(ranked) > 0 {
			top = fmt.Sprintf("%s %s", bar(s.NormalizedSimilarity(ranked[0].Similarity)), ranked[0].Text)
		}
		line := fmt.Sprintf("%-8s %-12s %s  %s", c.Index, c.Category, strings.Join(verdicts, " "), top)
		if m.focus == paneClips && i == m.clipCursor {
			line = m.theme.cursorStyle().Render(line)
		}
		b.WriteString(line + "\n")
	}
	return m.theme.paneStyle(m.focus == paneClips).Render(strings.TrimRight(b.String(), "\n"))
}

func seriesSummary(series []models.TsneSeries) string {
	if len(series) == 0 {
		return "-"
	}
	parts := make([]string, len(series))
	for i, s := range series {
		parts[i] = fmt.Sprintf("%s %d", s.Name, len(s.Points))
	}
	return strings.Join(parts, ", ")
}

// window returns the bounds of a size-row window of n items keeping cursor visible.
func window(cursor, n, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	from := max(0, min(cursor-size/2, n-size))
	return from, from + size
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
