package store

import (
	"maps"
	"slices"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// Similarity display sizes.
const (
	DefaultTopK = 6
	AllTopK     = -1
)

// Initial similarity bounds, replaced by the first response.
const (
	initialMinSimilarity = 1000
	initialMaxSimilarity = -1
)

// TextsState is the canonical text list, unique by text and sorted ascending.
type TextsState struct {
	List      []models.TextClassification `json:"list"`
	Syncing   int                         `json:"syncing"`
	LastError string                      `json:"lastError,omitempty"`

	inflight map[string]keySync
}

// OptionsState holds the loaded option lists and the current selections.
// An empty selection means unset.
type OptionsState struct {
	LoadingModelVariations bool     `json:"loadingModelVariations"`
	ModelVariations        []string `json:"modelVariations"`
	SelectedModelVariation string   `json:"selectedModelVariation,omitempty"`

	LoadingTextClassificationMethods bool     `json:"loadingTextClassificationMethods"`
	TextClassificationMethods        []string `json:"textClassificationMethods"`
	SelectedTextClassificationMethod string   `json:"selectedTextClassificationMethod,omitempty"`

	LastError string `json:"lastError,omitempty"`
}

// ClipsState holds the clip catalogue and its display filter.
type ClipsState struct {
	Loading   bool                  `json:"loading"`
	List      []models.ClipIndex    `json:"list"`
	Filtering models.ClipsFiltering `json:"filtering"`
	LastError string                `json:"lastError,omitempty"`
}

// SimilaritiesState holds the last similarity search result and its display options.
type SimilaritiesState struct {
	ApplySoftmax     bool                               `json:"applySoftmax"`
	SubtractionTexts string                             `json:"subtractionTexts,omitempty"`
	Loading          bool                               `json:"loading"`
	SimilaritiesMap  map[string][]models.ClipSimilarity `json:"similaritiesMap"`
	ConfusionsMap    map[int]models.ConfusionTopK       `json:"confusionsMap"`
	MinSimilarity    float64                            `json:"minSimilarity"`
	MaxSimilarity    float64                            `json:"maxSimilarity"`
	TopK             int                                `json:"topk"`
	LastError        string                             `json:"lastError,omitempty"`
}

// TsneState holds the clip and text projections.
type TsneState struct {
	ImagesLoading bool                `json:"imagesLoading"`
	Images        []models.TsneSeries `json:"images"`
	TextsLoading  bool                `json:"textsLoading"`
	Texts         []models.TsneSeries `json:"texts"`
	LastError     string              `json:"lastError,omitempty"`
}

// RocState holds the last ROC curve.
type RocState struct {
	Loading   bool                `json:"loading"`
	Data      *models.RocResponse `json:"data"`
	LastError string              `json:"lastError,omitempty"`
}

// State is the full client state. Values returned by Store.Snapshot are deep
// copies and may be read freely.
type State struct {
	Texts        TextsState        `json:"texts"`
	Options      OptionsState      `json:"options"`
	Clips        ClipsState        `json:"clips"`
	Similarities SimilaritiesState `json:"similarities"`
	Tsne         TsneState         `json:"tsne"`
	Roc          RocState          `json:"roc"`
}

// InitialState returns the state of a freshly started application.
func InitialState() State {
	return State{
		Texts:   TextsState{List: []models.TextClassification{}},
		Options: OptionsState{ModelVariations: []string{}, TextClassificationMethods: []string{}},
		Clips:   ClipsState{List: []models.ClipIndex{}, Filtering: models.DefaultClipsFiltering()},
		Similarities: SimilaritiesState{
			ApplySoftmax:    true,
			SimilaritiesMap: map[string][]models.ClipSimilarity{},
			ConfusionsMap:   map[int]models.ConfusionTopK{},
			MinSimilarity:   initialMinSimilarity,
			MaxSimilarity:   initialMaxSimilarity,
			TopK:            DefaultTopK,
		},
		Tsne: TsneState{Images: []models.TsneSeries{}, Texts: []models.TsneSeries{}},
	}
}

// clone returns a deep copy. Reducers replace slices and maps instead of
// mutating them, so element-level copies are only needed for nested maps.
func (s State) clone() State {
	c := s
	c.Texts.List = slices.Clone(s.Texts.List)
	c.Texts.inflight = maps.Clone(s.Texts.inflight)
	c.Options.ModelVariations = slices.Clone(s.Options.ModelVariations)
	c.Options.TextClassificationMethods = slices.Clone(s.Options.TextClassificationMethods)
	c.Clips.List = slices.Clone(s.Clips.List)
	c.Clips.Filtering.ShowOnlyWrongTopK = slices.Clone(s.Clips.Filtering.ShowOnlyWrongTopK)

	c.Similarities.SimilaritiesMap = make(map[string][]models.ClipSimilarity, len(s.Similarities.SimilaritiesMap))
	for k, v := range s.Similarities.SimilaritiesMap {
		c.Similarities.SimilaritiesMap[k] = slices.Clone(v)
	}
	c.Similarities.ConfusionsMap = make(map[int]models.ConfusionTopK, len(s.Similarities.ConfusionsMap))
	for k, v := range s.Similarities.ConfusionsMap {
		v.TopKTextClassification = maps.Clone(v.TopKTextClassification)
		c.Similarities.ConfusionsMap[k] = v
	}

	c.Tsne.Images = cloneSeries(s.Tsne.Images)
	c.Tsne.Texts = cloneSeries(s.Tsne.Texts)

	if s.Roc.Data != nil {
		roc := *s.Roc.Data
		roc.FPR = slices.Clone(roc.FPR)
		roc.TPR = slices.Clone(roc.TPR)
		roc.Thresholds = slices.Clone(roc.Thresholds)
		c.Roc.Data = &roc
	}
	return c
}

func cloneSeries(in []models.TsneSeries) []models.TsneSeries {
	if in == nil {
		return nil
	}
	out := make([]models.TsneSeries, len(in))
	for i, s := range in {
		out[i] = models.TsneSeries{Name: s.Name, Points: slices.Clone(s.Points)}
	}
	return out
}
