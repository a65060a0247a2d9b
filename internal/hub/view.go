package hub

import (
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

// ClipView is a filtered clip with its ranked similarities and per-K verdicts.
type ClipView struct {
	models.ClipIndex
	Similarities []models.ClipSimilarity `json:"similarities"`
	Verdicts     []store.TopKVerdict     `json:"verdicts"`
}

// ConfusionView is the confusion matrix of one K.
type ConfusionView struct {
	K        int     `json:"k"`
	TP       int     `json:"tp"`
	FN       int     `json:"fn"`
	FP       int     `json:"fp"`
	TN       int     `json:"tn"`
	Accuracy float64 `json:"accuracy"`
}

// View is the state pushed to browser views: the raw state plus the
// derived data a view renders.
type View struct {
	State      store.State       `json:"state"`
	Clips      []ClipView        `json:"clips"`
	Confusions []ConfusionView   `json:"confusions"`
	Roc        []models.RocPoint `json:"roc"`
	Loading    bool              `json:"loading"`
}

// NewView derives the view of a state snapshot.
func NewView(s store.State) View {
	filtered := s.FilteredClips()
	clips := make([]ClipView, len(filtered))
	for i, c := range filtered {
		clips[i] = ClipView{
			ClipIndex:    c,
			Similarities: s.RankedSimilarities(c.Index),
			Verdicts:     s.TopKVerdicts(c),
		}
	}

	matrices := s.ConfusionMatrices()
	confusions := make([]ConfusionView, len(matrices))
	for i, m := range matrices {
		confusions[i] = ConfusionView{K: m.K, TP: m.TP, FN: m.FN, FP: m.FP, TN: m.TN, Accuracy: m.Accuracy()}
	}

	roc := s.RocPoints()
	if roc == nil {
		roc = []models.RocPoint{}
	}

	return View{
		State:      s,
		Clips:      clips,
		Confusions: confusions,
		Roc:        roc,
		Loading:    s.Loading(),
	}
}
