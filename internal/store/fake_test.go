package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

var errBoom = errors.New("boom")

// fakeAPI is an in-memory stand-in for the remote service.
type fakeAPI struct {
	mu sync.Mutex

	texts      []models.TextClassification
	variations []string
	methods    []string
	clips      []models.ClipIndex

	textErr error
	playErr error
	// editErrs answers text edits in order; textErr applies once it is drained
	editErrs []error

	similarity func(ctx context.Context, req client.SimilarityRequest) (*models.SimilarityResult, error)
	tsneImages func(ctx context.Context, req client.TsneImagesRequest) ([]models.TsneSeries, error)
	tsneTexts  func(ctx context.Context, req client.TsneTextsRequest) ([]models.TsneSeries, error)
	roc        func(ctx context.Context, req client.RocRequest) (*models.RocResponse, error)

	calls  map[string]int
	addAll [][]models.TextClassification
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		variations: []string{"ViT-B-32", "ViT-L-14"},
		methods:    []string{"by-mean", "by-topk"},
		clips: []models.ClipIndex{
			models.NewClipIndex("c1", models.CategoryAlarm),
			models.NewClipIndex("c2", models.CategoryBackground),
		},
		calls: map[string]int{},
	}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

// editResult records a text edit and returns its outcome.
func (f *fakeAPI) editResult(name string) error {
	f.record(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.editErrs) > 0 {
		err := f.editErrs[0]
		f.editErrs = f.editErrs[1:]
		return err
	}
	return f.textErr
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Clips(ctx context.Context) ([]models.ClipIndex, error) {
	f.record("clips")
	return slices.Clone(f.clips), nil
}

func (f *fakeAPI) PlayClip(ctx context.Context, index string) error {
	f.record("play")
	return f.playErr
}

func (f *fakeAPI) Texts(ctx context.Context) ([]models.TextClassification, error) {
	f.record("texts")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return nil, f.textErr
	}
	return slices.Clone(f.texts), nil
}

func (f *fakeAPI) AddText(ctx context.Context, t models.TextClassification) error {
	return f.editResult("add")
}

func (f *fakeAPI) AddAllTexts(ctx context.Context, list []models.TextClassification) error {
	f.mu.Lock()
	f.addAll = append(f.addAll, slices.Clone(list))
	f.mu.Unlock()
	return f.editResult("add-all")
}

func (f *fakeAPI) RemoveText(ctx context.Context, text string) error {
	return f.editResult("remove")
}

func (f *fakeAPI) UpdateText(ctx context.Context, t models.TextClassification) error {
	return f.editResult("update")
}

func (f *fakeAPI) ModelVariations(ctx context.Context) ([]string, error) {
	f.record("variations")
	return slices.Clone(f.variations), nil
}

func (f *fakeAPI) TextClassificationMethods(ctx context.Context) ([]string, error) {
	f.record("methods")
	return slices.Clone(f.methods), nil
}

func (f *fakeAPI) Similarity(ctx context.Context, req client.SimilarityRequest) (*models.SimilarityResult, error) {
	f.record("similarity")
	if f.similarity != nil {
		return f.similarity(ctx, req)
	}
	return &models.SimilarityResult{
		Similarities: map[string][]models.ClipSimilarity{},
		Confusion:    map[int]models.ConfusionTopK{},
		Min:          0,
		Max:          1,
	}, nil
}

func (f *fakeAPI) TsneImages(ctx context.Context, req client.TsneImagesRequest) ([]models.TsneSeries, error) {
	f.record("tsne-images")
	if f.tsneImages != nil {
		return f.tsneImages(ctx, req)
	}
	return []models.TsneSeries{{Name: "Alarm", Points: []models.TsnePoint{{X: 1, Y: 2, Label: "c1"}}}}, nil
}

func (f *fakeAPI) TsneTexts(ctx context.Context, req client.TsneTextsRequest) ([]models.TsneSeries, error) {
	f.record("tsne-texts")
	if f.tsneTexts != nil {
		return f.tsneTexts(ctx, req)
	}
	return []models.TsneSeries{{Name: "true", Points: []models.TsnePoint{{X: 0, Y: 0, Label: req.Texts[0]}}}}, nil
}

func (f *fakeAPI) RocAuc(ctx context.Context, req client.RocRequest) (*models.RocResponse, error) {
	f.record("roc")
	if f.roc != nil {
		return f.roc(ctx, req)
	}
	return &models.RocResponse{FPR: []float64{0, 1}, TPR: []float64{0, 1}, Thresholds: []float64{1, 0}, AUC: 0.5}, nil
}

// memCache is an in-memory text cache.
type memCache struct {
	mu    sync.Mutex
	texts []models.TextClassification
	saves int
}

func (c *memCache) Load(ctx context.Context) ([]models.TextClassification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.texts), nil
}

func (c *memCache) Save(ctx context.Context, texts []models.TextClassification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = slices.Clone(texts)
	c.saves++
	return nil
}

func (c *memCache) snapshot() ([]models.TextClassification, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.texts), c.saves
}
