package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/metrics"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient starts a fake service with the given handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*client.Client, *metrics.Collector) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewCollector()
	return client.New(srv.URL, 5*time.Second, client.WithMetrics(m)), m
}

func TestNewDefaultsBaseURL(t *testing.T) {
	t.Setenv("PLAYGROUND_API_URL", "")
	c := client.New("", 0)
	assert.Equal(t, client.DefaultBaseURL, c.BaseURL())

	t.Setenv("PLAYGROUND_API_URL", "http://service:9000/")
	c = client.New("", 0)
	assert.Equal(t, "http://service:9000", c.BaseURL())
}

func TestClips(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/images", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		io.WriteString(w, `{
			"index": ["c1", "c2"],
			"categories": ["Alarm", "Background"],
			"distances": [12.5],
			"approaches": ["left", null],
			"descriptions": []
		}`)
	})

	clips, err := c.Clips(context.Background())
	require.NoError(t, err)
	require.Len(t, clips, 2)

	assert.Equal(t, "c1", clips[0].Index)
	assert.True(t, clips[0].IsAlarm)
	require.NotNil(t, clips[0].Distance)
	assert.Equal(t, 12.5, *clips[0].Distance)
	require.NotNil(t, clips[0].Approach)
	assert.Equal(t, "left", *clips[0].Approach)
	assert.Nil(t, clips[0].Description)

	assert.Equal(t, models.CategoryBackground, clips[1].Category)
	assert.False(t, clips[1].IsAlarm)
	assert.Nil(t, clips[1].Distance)
	assert.Nil(t, clips[1].Approach)

	snap := m.Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, metrics.OpClips, snap.Operations[0].Operation)
}

func TestClipsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"index": ["c1", "c2"], "categories": ["Alarm"]}`)
	})

	_, err := c.Clips(context.Background())
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
}

func TestEmptyBodyIsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"similarity", func() error {
			_, err := c.Similarity(ctx, client.SimilarityRequest{ModelVariation: "vanilla"})
			return err
		}},
		{"roc", func() error {
			_, err := c.RocAuc(ctx, client.RocRequest{ModelVariation: "vanilla"})
			return err
		}},
		{"texts", func() error {
			_, err := c.Texts(ctx)
			return err
		}},
		{"variations", func() error {
			_, err := c.ModelVariations(ctx)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), client.ErrMalformedResponse)
		})
	}

	assert.NoError(t, c.AddText(ctx, models.TextClassification{Text: "fence"}), "edits expect no body")
}

func TestStatusError(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "variation unknown", http.StatusUnprocessableEntity)
	})

	_, err := c.ModelVariations(context.Background())
	require.Error(t, err)

	var statusErr *client.StatusError
	require.True(t, errors.As(err, &statusErr), "error should carry the raw response")
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
	assert.Equal(t, "/variations", statusErr.Path)
	assert.Contains(t, statusErr.Body, "variation unknown")

	snap := m.Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, int64(1), snap.Operations[0].Failures)
}

func TestTextEndpoints(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	var calls []call

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				assert.NoError(t, json.Unmarshal(data, &body))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			}
		}
		calls = append(calls, call{r.Method, r.URL.Path, body})
		if r.Method == http.MethodGet {
			io.WriteString(w, `{"text": ["a man", "fence"], "classification": [true, false]}`)
		}
	})

	ctx := context.Background()

	texts, err := c.Texts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TextClassification{
		{Text: "a man", Classification: true},
		{Text: "fence", Classification: false},
	}, texts)

	require.NoError(t, c.AddText(ctx, models.TextClassification{Text: "a dog", Classification: true}))
	require.NoError(t, c.AddAllTexts(ctx, texts))
	require.NoError(t, c.RemoveText(ctx, "a dog"))
	require.NoError(t, c.UpdateText(ctx, models.TextClassification{Text: "fence", Classification: true}))

	require.Len(t, calls, 5)
	assert.Equal(t, call{http.MethodPost, "/text/add", map[string]any{"text": "a dog", "classification": true}}, calls[1])
	assert.Equal(t, call{http.MethodPost, "/text/add-all", map[string]any{
		"texts":           []any{"a man", "fence"},
		"classifications": []any{true, false},
	}}, calls[2])
	assert.Equal(t, call{http.MethodDelete, "/text", map[string]any{"text": "a dog"}}, calls[3])
	assert.Equal(t, call{http.MethodPut, "/text", map[string]any{"text": "fence", "classification": true}}, calls[4])
}

func TestSimilarity(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/similarity", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vanilla", body["model_variation"])
		assert.Equal(t, "by_majority", body["text_classification_method"])
		assert.Nil(t, body["texts_to_subtract"], "empty subtraction list is sent as null")
		assert.Contains(t, body, "texts_to_subtract")
		assert.Equal(t, true, body["apply_softmax"])

		io.WriteString(w, `{
			"similarities": {"c1": [{"text": "a man", "classification": true, "similarity": 0.8}]},
			"confusion": {"1": {"tp": 2, "fn": 1, "fp": 0, "tn": 3, "topk_text_classification": {"c1": true}}},
			"min": 0.1,
			"max": 0.9
		}`)
	})

	res, err := c.Similarity(context.Background(), client.SimilarityRequest{
		ModelVariation:           "vanilla",
		TextClassificationMethod: "by_majority",
		Texts:                    []string{"a man"},
		Classifications:          []bool{true},
		ApplySoftmax:             true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.8, res.Similarities["c1"][0].Similarity)
	require.Contains(t, res.Confusion, 1)
	assert.Equal(t, 2, res.Confusion[1].TP)
	assert.True(t, res.Confusion[1].TopKTextClassification["c1"])
	assert.Equal(t, 0.1, res.Min)
	assert.Equal(t, 0.9, res.Max)
}

func TestTsneSeriesSortedByCategory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tsne-texts", r.URL.Path)
		io.WriteString(w, `{
			"positive": {"text": ["a man"], "x": [1.5], "y": [-2]},
			"negative": {"text": ["fence", "tree"], "x": [0, 1], "y": [3, 4]}
		}`)
	})

	series, err := c.TsneTexts(context.Background(), client.TsneTextsRequest{Texts: []string{"a man"}})
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "negative", series[0].Name)
	assert.Equal(t, models.TsnePoint{X: 1, Y: 4, Label: "tree"}, series[0].Points[1])
	assert.Equal(t, "positive", series[1].Name)
}

func TestTsneMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Alarm": {"text": ["c1"], "x": [1, 2], "y": [3]}}`)
	})

	_, err := c.TsneImages(context.Background(), client.TsneImagesRequest{ModelVariation: "vanilla"})
	assert.ErrorIs(t, err, client.ErrMalformedResponse)
}

func TestRocAuc(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"fpr": [0, 1], "tpr": [0, 1], "thresholds": [2, 0], "auc": 0.5}`)
	})

	roc, err := c.RocAuc(context.Background(), client.RocRequest{ModelVariation: "vanilla"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, roc.AUC)
	assert.Len(t, roc.Points(), 2)
}

func TestCancelledRequest(t *testing.T) {
	release := make(chan struct{})
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.RocAuc(ctx, client.RocRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	snap := m.Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, int64(1), snap.Operations[0].Cancelled)
}

func TestPlayClipAndImage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/play/c1":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusNoContent)
		case "/image/c1":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.PlayClip(ctx, "c1"))

	data, contentType, err := c.Image(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	var statusErr *client.StatusError
	assert.ErrorAs(t, c.PlayClip(ctx, "missing"), &statusErr)
}
