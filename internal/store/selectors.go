package store

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// FilterByCategory keeps the clips whose alarm flag is shown by f.
func FilterByCategory(clips []models.ClipIndex, f models.ClipsFiltering) []models.ClipIndex {
	out := make([]models.ClipIndex, 0, len(clips))
	for _, c := range clips {
		if (f.ShowAlarms && c.IsAlarm) || (f.ShowNotAlarms && !c.IsAlarm) {
			out = append(out, c)
		}
	}
	return out
}

// FilterWrongTopK keeps the clips mispredicted for at least one of ks.
// An empty ks keeps every clip. A missing K or clip counts as correctly
// predicted and is logged.
func FilterWrongTopK(clips []models.ClipIndex, ks []int, confusions map[int]models.ConfusionTopK) []models.ClipIndex {
	if len(ks) == 0 {
		return clips
	}
	out := make([]models.ClipIndex, 0, len(clips))
	for _, c := range clips {
		for _, k := range ks {
			if wrongTopK(c, k, confusions) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func wrongTopK(c models.ClipIndex, k int, confusions map[int]models.ConfusionTopK) bool {
	confusion, ok := confusions[k]
	if !ok {
		slog.Warn("missing top-k in confusion map", "k", k)
		return false
	}
	predicted, ok := confusion.TopKTextClassification[c.Index]
	if !ok {
		slog.Warn("missing clip in top-k classification", "k", k, "clip", c.Index)
		return false
	}
	return c.IsAlarm != predicted
}

// FilteredClips returns the clips passing both the category and the wrong-top-K filters.
func (s State) FilteredClips() []models.ClipIndex {
	byCategory := FilterByCategory(s.Clips.List, s.Clips.Filtering)
	return FilterWrongTopK(byCategory, s.Clips.Filtering.ShowOnlyWrongTopK, s.Similarities.ConfusionsMap)
}

// RankedSimilarities returns the similarities of a clip, most similar first,
// limited to TopK unless all are shown.
func (s State) RankedSimilarities(clip string) []models.ClipSimilarity {
	ranked := slices.Clone(s.Similarities.SimilaritiesMap[clip])
	slices.SortStableFunc(ranked, func(a, b models.ClipSimilarity) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if s.Similarities.TopK > 0 && len(ranked) > s.Similarities.TopK {
		ranked = ranked[:s.Similarities.TopK]
	}
	return ranked
}

// ShowAllSimilarities reports whether every similarity is listed per clip.
func (s State) ShowAllSimilarities() bool {
	return s.Similarities.TopK == AllTopK
}

// NormalizedSimilarity rescales v to [0,1] using the bounds of the last
// response. Without usable bounds v is returned as is.
func (s State) NormalizedSimilarity(v float64) float64 {
	lo, hi := s.Similarities.MinSimilarity, s.Similarities.MaxSimilarity
	if hi <= lo {
		return v
	}
	return (v - lo) / (hi - lo)
}

// ConfusionMatrix is the confusion matrix of one K.
type ConfusionMatrix struct {
	K int
	models.ConfusionTopK
}

// ConfusionMatrices returns the confusion matrices ordered by K.
func (s State) ConfusionMatrices() []ConfusionMatrix {
	ks := slices.Sorted(maps.Keys(s.Similarities.ConfusionsMap))
	out := make([]ConfusionMatrix, len(ks))
	for i, k := range ks {
		out[i] = ConfusionMatrix{K: k, ConfusionTopK: s.Similarities.ConfusionsMap[k]}
	}
	return out
}

// TopKVerdict is the prediction of a clip for one K.
type TopKVerdict struct {
	K              int  `json:"k"`
	PredictedAlarm bool `json:"predictedAlarm"`
	Correct        bool `json:"correct"`
	Missing        bool `json:"missing,omitempty"`
}

// TopKVerdicts returns, for every K, whether the clip is predicted as alarm
// and whether that matches its category. A clip missing from a matrix is
// reported as predicted non-alarm and flagged Missing.
func (s State) TopKVerdicts(clip models.ClipIndex) []TopKVerdict {
	matrices := s.ConfusionMatrices()
	out := make([]TopKVerdict, len(matrices))
	for i, m := range matrices {
		predicted, ok := m.TopKTextClassification[clip.Index]
		if !ok {
			slog.Warn("missing clip in top-k classification", "k", m.K, "clip", clip.Index)
		}
		out[i] = TopKVerdict{K: m.K, PredictedAlarm: predicted, Correct: predicted == clip.IsAlarm, Missing: !ok}
	}
	return out
}

// RocPoints returns the points of the last ROC curve, or nil.
func (s State) RocPoints() []models.RocPoint {
	if s.Roc.Data == nil {
		return nil
	}
	return s.Roc.Data.Points()
}

// AlarmTexts counts the texts classified as alarm.
func (s State) AlarmTexts() int {
	n := 0
	for _, t := range s.Texts.List {
		if t.Classification {
			n++
		}
	}
	return n
}

// Loading reports whether any request is in flight.
func (s State) Loading() bool {
	return s.Options.LoadingModelVariations || s.Options.LoadingTextClassificationMethods ||
		s.Clips.Loading || s.Similarities.Loading || s.Tsne.ImagesLoading || s.Tsne.TextsLoading ||
		s.Roc.Loading || s.Texts.Syncing > 0
}
