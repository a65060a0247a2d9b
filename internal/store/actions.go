package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// ErrUnknownOption is returned when selecting a value that is not part of the loaded option list.
var ErrUnknownOption = errors.New("unknown option")

// Action is a state transition. Reducers run under the store lock and must
// replace slices and maps rather than mutate them in place.
type Action interface {
	reduce(s *State) error
}

// =============================================================================
// TEXTS
// =============================================================================

// AddText inserts a text or overwrites the classification of an existing one.
type AddText struct {
	Text           string
	Classification bool
}

func (a AddText) reduce(s *State) error {
	key := models.NormalizeText(a.Text)
	if key == "" {
		return models.ErrEmptyText
	}
	s.Texts.List = putText(s.Texts.List, models.TextClassification{Text: key, Classification: a.Classification})
	return nil
}

// SetTexts replaces the whole list. Later duplicates win.
type SetTexts struct {
	List []models.TextClassification
}

func (a SetTexts) reduce(s *State) error {
	s.Texts.List = models.NormalizeTexts(a.List)
	return nil
}

// RemoveText removes a text. Removing an absent text is a no-op.
type RemoveText struct {
	Text string
}

func (a RemoveText) reduce(s *State) error {
	i := models.IndexOfText(s.Texts.List, a.Text)
	if i < 0 {
		return nil
	}
	s.Texts.List = slices.Delete(slices.Clone(s.Texts.List), i, i+1)
	return nil
}

// ToggleTextClassification flips the classification of a text, if present.
type ToggleTextClassification struct {
	Text string
}

func (a ToggleTextClassification) reduce(s *State) error {
	i := models.IndexOfText(s.Texts.List, a.Text)
	if i < 0 {
		return nil
	}
	list := slices.Clone(s.Texts.List)
	list[i].Classification = !list[i].Classification
	s.Texts.List = list
	return nil
}

// ToggleAllTo sets every classification to Value.
type ToggleAllTo struct {
	Value bool
}

func (a ToggleAllTo) reduce(s *State) error {
	list := slices.Clone(s.Texts.List)
	for i := range list {
		list[i].Classification = a.Value
	}
	s.Texts.List = list
	return nil
}

// mergeServerTexts unions the server list into the local one. The server wins on conflicts.
type mergeServerTexts struct {
	server []models.TextClassification
}

func (a mergeServerTexts) reduce(s *State) error {
	s.Texts.List = models.NormalizeTexts(append(slices.Clone(s.Texts.List), a.server...))
	return nil
}

// textEntry is the state of one key: present with a classification, or absent.
type textEntry struct {
	key            string
	present        bool
	classification bool
}

func entryOf(list []models.TextClassification, key string) textEntry {
	i := models.IndexOfText(list, key)
	if i < 0 {
		return textEntry{key: key}
	}
	return textEntry{key: key, present: true, classification: list[i].Classification}
}

// putEntry sets key to e in a sorted list, returning a new slice.
func putEntry(list []models.TextClassification, e textEntry) []models.TextClassification {
	if e.present {
		return putText(list, models.TextClassification{Text: e.key, Classification: e.classification})
	}
	if i := models.IndexOfText(list, e.key); i >= 0 {
		return slices.Delete(slices.Clone(list), i, i+1)
	}
	return list
}

// textEdit is one server round trip: the entries the server holds once it
// succeeds, and the local entries they replaced. Both are indexed alike.
type textEdit struct {
	target []textEntry
	before []textEntry
}

// keySync tracks the unsettled edits of one key. base is the server's value
// of the key as last known: the local value before the first unsettled edit,
// replaced by the target of every edit the server accepts.
type keySync struct {
	pending int
	base    textEntry
}

// beginSync records an edit as sent.
func (t *TextsState) beginSync(edit textEdit) {
	inflight := maps.Clone(t.inflight)
	if inflight == nil {
		inflight = make(map[string]keySync, len(edit.target))
	}
	for i, e := range edit.target {
		k := inflight[e.key]
		if k.pending == 0 {
			k.base = edit.before[i]
		}
		k.pending++
		inflight[e.key] = k
	}
	t.inflight = inflight
	t.Syncing++
}

// textSyncDone settles an edit. A failed edit puts a key back to its base
// only when no later edit of that key is still pending; the last one decides.
type textSyncDone struct {
	edit      textEdit
	err       error
	cancelled bool
}

func (a textSyncDone) reduce(s *State) error {
	t := &s.Texts
	if t.Syncing > 0 {
		t.Syncing--
	}

	inflight := maps.Clone(t.inflight)
	list := t.List
	for _, e := range a.edit.target {
		k := inflight[e.key]
		k.pending--
		if a.err == nil && !a.cancelled {
			k.base = e
		}
		if k.pending > 0 {
			inflight[e.key] = k
			continue
		}
		delete(inflight, e.key)
		if a.err != nil && !a.cancelled {
			list = putEntry(list, k.base)
		}
	}
	t.inflight = inflight
	t.List = list

	switch {
	case a.cancelled:
	case a.err != nil:
		t.LastError = a.err.Error()
	default:
		t.LastError = ""
	}
	return nil
}

// putText inserts or overwrites t in a sorted list, returning a new slice.
func putText(list []models.TextClassification, t models.TextClassification) []models.TextClassification {
	out := slices.Clone(list)
	if i := models.IndexOfText(out, t.Text); i >= 0 {
		out[i] = t
		return out
	}
	i, _ := slices.BinarySearchFunc(out, t.Text, func(e models.TextClassification, k string) int {
		return strings.Compare(e.Text, k)
	})
	return slices.Insert(out, i, t)
}

// =============================================================================
// OPTIONS
// =============================================================================

// SelectModelVariation selects one of the loaded model variations.
type SelectModelVariation struct {
	Value string
}

func (a SelectModelVariation) reduce(s *State) error {
	if a.Value == s.Options.SelectedModelVariation {
		return nil
	}
	if !slices.Contains(s.Options.ModelVariations, a.Value) {
		return fmt.Errorf("model variation %q: %w", a.Value, ErrUnknownOption)
	}
	s.Options.SelectedModelVariation = a.Value
	return nil
}

// SelectTextClassificationMethod selects one of the loaded classification methods.
type SelectTextClassificationMethod struct {
	Value string
}

func (a SelectTextClassificationMethod) reduce(s *State) error {
	if a.Value == s.Options.SelectedTextClassificationMethod {
		return nil
	}
	if !slices.Contains(s.Options.TextClassificationMethods, a.Value) {
		return fmt.Errorf("text classification method %q: %w", a.Value, ErrUnknownOption)
	}
	s.Options.SelectedTextClassificationMethod = a.Value
	return nil
}

type modelVariationsPending struct{}

func (modelVariationsPending) reduce(s *State) error {
	s.Options.LoadingModelVariations = true
	return nil
}

type modelVariationsFulfilled struct {
	list []string
}

func (a modelVariationsFulfilled) reduce(s *State) error {
	s.Options.LoadingModelVariations = false
	s.Options.ModelVariations = slices.Clone(a.list)
	if s.Options.SelectedModelVariation == "" && len(a.list) > 0 {
		s.Options.SelectedModelVariation = a.list[0]
	}
	return nil
}

type modelVariationsRejected struct {
	err error
}

func (a modelVariationsRejected) reduce(s *State) error {
	s.Options.LoadingModelVariations = false
	s.Options.LastError = a.err.Error()
	return nil
}

type methodsPending struct{}

func (methodsPending) reduce(s *State) error {
	s.Options.LoadingTextClassificationMethods = true
	return nil
}

type methodsFulfilled struct {
	list []string
}

func (a methodsFulfilled) reduce(s *State) error {
	s.Options.LoadingTextClassificationMethods = false
	s.Options.TextClassificationMethods = slices.Clone(a.list)
	if s.Options.SelectedTextClassificationMethod == "" && len(a.list) > 0 {
		s.Options.SelectedTextClassificationMethod = a.list[0]
	}
	return nil
}

type methodsRejected struct {
	err error
}

func (a methodsRejected) reduce(s *State) error {
	s.Options.LoadingTextClassificationMethods = false
	s.Options.LastError = a.err.Error()
	return nil
}

// =============================================================================
// CLIPS
// =============================================================================

// ToggleShowAlarms flips the display of alarm clips.
type ToggleShowAlarms struct{}

func (ToggleShowAlarms) reduce(s *State) error {
	s.Clips.Filtering.ShowAlarms = !s.Clips.Filtering.ShowAlarms
	return nil
}

// ToggleShowNotAlarms flips the display of non-alarm clips.
type ToggleShowNotAlarms struct{}

func (ToggleShowNotAlarms) reduce(s *State) error {
	s.Clips.Filtering.ShowNotAlarms = !s.Clips.Filtering.ShowNotAlarms
	return nil
}

// ToggleShowOnlyWrongTopK adds K to the wrong-prediction filter, or removes it if present.
type ToggleShowOnlyWrongTopK struct {
	K int
}

func (a ToggleShowOnlyWrongTopK) reduce(s *State) error {
	ks := slices.Clone(s.Clips.Filtering.ShowOnlyWrongTopK)
	if i := slices.Index(ks, a.K); i >= 0 {
		ks = slices.Delete(ks, i, i+1)
	} else {
		ks = append(ks, a.K)
		slices.Sort(ks)
	}
	s.Clips.Filtering.ShowOnlyWrongTopK = ks
	return nil
}

type clipsPending struct{}

func (clipsPending) reduce(s *State) error {
	s.Clips.Loading = true
	return nil
}

type clipsFulfilled struct {
	list []models.ClipIndex
}

func (a clipsFulfilled) reduce(s *State) error {
	s.Clips.Loading = false
	s.Clips.List = slices.Clone(a.list)
	s.Clips.LastError = ""
	return nil
}

type clipsRejected struct {
	err error
}

func (a clipsRejected) reduce(s *State) error {
	s.Clips.Loading = false
	s.Clips.LastError = a.err.Error()
	return nil
}

type playClipFailed struct {
	err error
}

func (a playClipFailed) reduce(s *State) error {
	s.Clips.LastError = a.err.Error()
	return nil
}

// =============================================================================
// SIMILARITIES
// =============================================================================

// ToggleApplySoftmax flips whether the service applies softmax to similarities.
type ToggleApplySoftmax struct{}

func (ToggleApplySoftmax) reduce(s *State) error {
	s.Similarities.ApplySoftmax = !s.Similarities.ApplySoftmax
	return nil
}

// ToggleShowAllSimilarities switches between the top 6 and all similarities per clip.
type ToggleShowAllSimilarities struct{}

func (ToggleShowAllSimilarities) reduce(s *State) error {
	if s.Similarities.TopK == AllTopK {
		s.Similarities.TopK = DefaultTopK
	} else {
		s.Similarities.TopK = AllTopK
	}
	return nil
}

// SetSubtractionTexts sets the comma-separated texts subtracted from every text embedding.
type SetSubtractionTexts struct {
	Value string
}

func (a SetSubtractionTexts) reduce(s *State) error {
	s.Similarities.SubtractionTexts = a.Value
	return nil
}

// =============================================================================
// ANALYTICS LIFECYCLE
// =============================================================================

// family identifies an async request family with its own generation counter.
type family int

const (
	familySimilarities family = iota
	familyTsneImages
	familyTsneTexts
	familyRoc
	familyCount
)

func (f family) String() string {
	switch f {
	case familySimilarities:
		return "similarities"
	case familyTsneImages:
		return "tsne-images"
	case familyTsneTexts:
		return "tsne-texts"
	case familyRoc:
		return "roc"
	}
	return "unknown"
}

// generational is implemented by lifecycle actions of an async family.
// The store drops them when their generation is no longer current.
type generational interface {
	generation() (family, uint64)
}

type fetchPending struct {
	family family
	gen    uint64
}

func (a fetchPending) generation() (family, uint64) { return a.family, a.gen }

func (a fetchPending) reduce(s *State) error {
	switch a.family {
	case familySimilarities:
		s.Similarities.Loading = true
	case familyTsneImages:
		s.Tsne.ImagesLoading = true
	case familyTsneTexts:
		s.Tsne.TextsLoading = true
	case familyRoc:
		s.Roc.Loading = true
	}
	return nil
}

type fetchRejected struct {
	family family
	gen    uint64
	err    error
}

func (a fetchRejected) generation() (family, uint64) { return a.family, a.gen }

func (a fetchRejected) reduce(s *State) error {
	msg := a.err.Error()
	switch a.family {
	case familySimilarities:
		s.Similarities.Loading = false
		s.Similarities.LastError = msg
	case familyTsneImages:
		s.Tsne.ImagesLoading = false
		s.Tsne.LastError = msg
	case familyTsneTexts:
		s.Tsne.TextsLoading = false
		s.Tsne.LastError = msg
	case familyRoc:
		s.Roc.Loading = false
		s.Roc.LastError = msg
	}
	return nil
}

type similaritiesFulfilled struct {
	gen    uint64
	result *models.SimilarityResult
}

func (a similaritiesFulfilled) generation() (family, uint64) { return familySimilarities, a.gen }

func (a similaritiesFulfilled) reduce(s *State) error {
	s.Similarities.Loading = false
	s.Similarities.LastError = ""
	s.Similarities.SimilaritiesMap = a.result.Similarities
	s.Similarities.ConfusionsMap = a.result.Confusion
	s.Similarities.MinSimilarity = a.result.Min
	s.Similarities.MaxSimilarity = a.result.Max
	return nil
}

type tsneImagesFulfilled struct {
	gen    uint64
	series []models.TsneSeries
}

func (a tsneImagesFulfilled) generation() (family, uint64) { return familyTsneImages, a.gen }

func (a tsneImagesFulfilled) reduce(s *State) error {
	s.Tsne.ImagesLoading = false
	s.Tsne.LastError = ""
	s.Tsne.Images = a.series
	return nil
}

type tsneTextsFulfilled struct {
	gen    uint64
	series []models.TsneSeries
}

func (a tsneTextsFulfilled) generation() (family, uint64) { return familyTsneTexts, a.gen }

func (a tsneTextsFulfilled) reduce(s *State) error {
	s.Tsne.TextsLoading = false
	s.Tsne.LastError = ""
	s.Tsne.Texts = a.series
	return nil
}

type rocFulfilled struct {
	gen  uint64
	data *models.RocResponse
}

func (a rocFulfilled) generation() (family, uint64) { return familyRoc, a.gen }

func (a rocFulfilled) reduce(s *State) error {
	s.Roc.Loading = false
	s.Roc.LastError = ""
	s.Roc.Data = a.data
	return nil
}
