// Package client provides an HTTP client for the playground inference service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/metrics"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// DefaultBaseURL is used when neither an explicit base URL nor PLAYGROUND_API_URL is set.
const DefaultBaseURL = "http://localhost:8000"

// ErrMalformedResponse indicates a response that decoded but violates the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned for non-2xx responses. It carries the raw response body.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: server error: %s", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: server error: %s - %s", e.Method, e.Path, e.Status, e.Body)
}

// Client is an HTTP client for the playground service. Every call is a fresh
// read: there is no caching and no retry.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	metrics       *metrics.Collector
	logger        *slog.Logger
	slowThreshold time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request statistics into the collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSlowThreshold sets the duration above which requests are logged at WARN level.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Client) { c.slowThreshold = d }
}

// New creates a new client.
// If baseURL is empty, uses PLAYGROUND_API_URL env var or defaults to localhost:8000.
// A zero timeout means no client-side timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PLAYGROUND_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        slog.Default(),
		slowThreshold: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// send performs one request and returns the raw response body of a 2xx response.
func (c *Client) send(ctx context.Context, op, method, path string, body any) ([]byte, string, error) {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	respBody, contentType, err := c.roundTrip(req, method, path)
	duration := time.Since(start)

	c.observe(ctx, op, requestID, duration, err)
	return respBody, contentType, err
}

func (c *Client) roundTrip(req *http.Request, method, path string) ([]byte, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	return respBody, resp.Header.Get("Content-Type"), nil
}

// observe records metrics and logs the outcome of a request.
func (c *Client) observe(ctx context.Context, op, requestID string, duration time.Duration, err error) {
	attrs := []any{
		"op", op,
		"request_id", requestID,
		"duration_ms", duration.Milliseconds(),
	}

	switch {
	case err != nil && ctx.Err() != nil:
		c.metrics.Record(op, duration, metrics.OutcomeCancelled)
		c.logger.Debug("request cancelled", attrs...)
	case err != nil:
		c.metrics.Record(op, duration, metrics.OutcomeFailure)
		attrs = append(attrs, "error", err.Error())
		c.logger.Warn("request failed", attrs...)
	default:
		c.metrics.Record(op, duration, metrics.OutcomeSuccess)
		if c.slowThreshold > 0 && duration > c.slowThreshold {
			c.logger.Warn("slow request", attrs...)
		} else {
			c.logger.Debug("request completed", attrs...)
		}
	}
}

// call sends a request and decodes a JSON response into result (when non-nil).
// An empty body is malformed when a result is expected.
func (c *Client) call(ctx context.Context, op, method, path string, body, result any) error {
	respBody, _, err := c.send(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return fmt.Errorf("%w: empty response body", ErrMalformedResponse)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// =============================================================================
// CLIPS
// =============================================================================

// imagesResponse is the column-oriented clip catalogue.
type imagesResponse struct {
	Index        []string   `json:"index"`
	Categories   []string   `json:"categories"`
	Distances    []*float64 `json:"distances"`
	Approaches   []*string  `json:"approaches"`
	Descriptions []*string  `json:"descriptions"`
}

// Clips fetches the clip catalogue.
func (c *Client) Clips(ctx context.Context) ([]models.ClipIndex, error) {
	var resp imagesResponse
	if err := c.call(ctx, metrics.OpClips, http.MethodGet, "/images", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch clips: %w", err)
	}

	if len(resp.Index) != len(resp.Categories) {
		return nil, fmt.Errorf("fetch clips: %w: %d indexes for %d categories",
			ErrMalformedResponse, len(resp.Index), len(resp.Categories))
	}

	clips := make([]models.ClipIndex, len(resp.Index))
	for i, index := range resp.Index {
		clip := models.NewClipIndex(index, models.Category(resp.Categories[i]))
		if i < len(resp.Distances) {
			clip.Distance = resp.Distances[i]
		}
		if i < len(resp.Approaches) {
			clip.Approach = resp.Approaches[i]
		}
		if i < len(resp.Descriptions) {
			clip.Description = resp.Descriptions[i]
		}
		clips[i] = clip
	}
	return clips, nil
}

// PlayClip asks the service to play a clip. Nothing is returned on success.
func (c *Client) PlayClip(ctx context.Context, index string) error {
	if err := c.call(ctx, metrics.OpPlayClip, http.MethodPost, "/play/"+url.PathEscape(index), nil, nil); err != nil {
		return fmt.Errorf("play clip %s: %w", index, err)
	}
	return nil
}

// Image fetches the raw image of a clip and its content type.
func (c *Client) Image(ctx context.Context, index string) ([]byte, string, error) {
	data, contentType, err := c.send(ctx, metrics.OpImage, http.MethodGet, "/image/"+url.PathEscape(index), nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image %s: %w", index, err)
	}
	return data, contentType, nil
}

// =============================================================================
// TEXTS
// =============================================================================

type textsResponse struct {
	Text           []string `json:"text"`
	Classification []bool   `json:"classification"`
}

type textRequest struct {
	Text           string `json:"text"`
	Classification bool   `json:"classification"`
}

type textsRequest struct {
	Texts           []string `json:"texts"`
	Classifications []bool   `json:"classifications"`
}

type removeTextRequest struct {
	Text string `json:"text"`
}

// Texts fetches the server's canonical text list.
func (c *Client) Texts(ctx context.Context) ([]models.TextClassification, error) {
	var resp textsResponse
	if err := c.call(ctx, metrics.OpListTexts, http.MethodGet, "/text", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch texts: %w", err)
	}
	if len(resp.Text) != len(resp.Classification) {
		return nil, fmt.Errorf("fetch texts: %w: %d texts for %d classifications",
			ErrMalformedResponse, len(resp.Text), len(resp.Classification))
	}
	return models.Delinearize(resp.Text, resp.Classification), nil
}

// AddText adds one text to the server's list.
func (c *Client) AddText(ctx context.Context, t models.TextClassification) error {
	body := textRequest{Text: t.Text, Classification: t.Classification}
	if err := c.call(ctx, metrics.OpAddText, http.MethodPost, "/text/add", body, nil); err != nil {
		return fmt.Errorf("add text: %w", err)
	}
	return nil
}

// AddAllTexts sends a whole text list to the server.
func (c *Client) AddAllTexts(ctx context.Context, list []models.TextClassification) error {
	lt := models.Linearize(list)
	body := textsRequest{Texts: lt.Texts, Classifications: lt.Classifications}
	if err := c.call(ctx, metrics.OpAddAllTexts, http.MethodPost, "/text/add-all", body, nil); err != nil {
		return fmt.Errorf("add all texts: %w", err)
	}
	return nil
}

// RemoveText deletes one text from the server's list.
func (c *Client) RemoveText(ctx context.Context, text string) error {
	if err := c.call(ctx, metrics.OpRemoveText, http.MethodDelete, "/text", removeTextRequest{Text: text}, nil); err != nil {
		return fmt.Errorf("remove text: %w", err)
	}
	return nil
}

// UpdateText sets the classification of an existing text.
func (c *Client) UpdateText(ctx context.Context, t models.TextClassification) error {
	body := textRequest{Text: t.Text, Classification: t.Classification}
	if err := c.call(ctx, metrics.OpUpdateText, http.MethodPut, "/text", body, nil); err != nil {
		return fmt.Errorf("update text: %w", err)
	}
	return nil
}

// =============================================================================
// OPTIONS
// =============================================================================

// ModelVariations lists the available model variations.
func (c *Client) ModelVariations(ctx context.Context) ([]string, error) {
	var variations []string
	if err := c.call(ctx, metrics.OpVariations, http.MethodGet, "/variations", nil, &variations); err != nil {
		return nil, fmt.Errorf("fetch model variations: %w", err)
	}
	return variations, nil
}

// TextClassificationMethods lists the available text classification methods.
func (c *Client) TextClassificationMethods(ctx context.Context) ([]string, error) {
	var methods []string
	if err := c.call(ctx, metrics.OpTextMethods, http.MethodGet, "/text-classification", nil, &methods); err != nil {
		return nil, fmt.Errorf("fetch text classification methods: %w", err)
	}
	return methods, nil
}

// =============================================================================
// ANALYTICS
// =============================================================================

// SimilarityRequest is the input of a similarity search.
// A nil TextsToSubtract is sent as null.
type SimilarityRequest struct {
	ModelVariation           string   `json:"model_variation"`
	TextClassificationMethod string   `json:"text_classification_method"`
	Texts                    []string `json:"texts"`
	Classifications          []bool   `json:"classifications"`
	TextsToSubtract          []string `json:"texts_to_subtract"`
	ApplySoftmax             bool     `json:"apply_softmax"`
}

// Similarity ranks every clip against every text and returns per-K confusion matrices.
func (c *Client) Similarity(ctx context.Context, req SimilarityRequest) (*models.SimilarityResult, error) {
	var resp models.SimilarityResult
	if err := c.call(ctx, metrics.OpSimilarity, http.MethodPost, "/similarity", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch similarities: %w", err)
	}
	if resp.Similarities == nil {
		resp.Similarities = map[string][]models.ClipSimilarity{}
	}
	if resp.Confusion == nil {
		resp.Confusion = map[int]models.ConfusionTopK{}
	}
	return &resp, nil
}

// TsneImagesRequest is the input of the clip projection.
type TsneImagesRequest struct {
	Texts          []string `json:"texts"`
	ModelVariation string   `json:"model_variation"`
}

// TsneTextsRequest is the input of the text projection.
type TsneTextsRequest struct {
	Texts           []string `json:"texts"`
	Classifications []bool   `json:"classifications"`
	ModelVariation  string   `json:"model_variation"`
}

// tsneCategory is one category of a projection response.
type tsneCategory struct {
	Text []string  `json:"text"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// TsneImages projects the clip features of a model variation to 2D.
func (c *Client) TsneImages(ctx context.Context, req TsneImagesRequest) ([]models.TsneSeries, error) {
	var resp map[string]tsneCategory
	if err := c.call(ctx, metrics.OpTsneImages, http.MethodPost, "/tsne-images", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch image projection: %w", err)
	}
	series, err := toSeries(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch image projection: %w", err)
	}
	return series, nil
}

// TsneTexts projects the text features to 2D.
func (c *Client) TsneTexts(ctx context.Context, req TsneTextsRequest) ([]models.TsneSeries, error) {
	var resp map[string]tsneCategory
	if err := c.call(ctx, metrics.OpTsneTexts, http.MethodPost, "/tsne-texts", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch text projection: %w", err)
	}
	series, err := toSeries(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch text projection: %w", err)
	}
	return series, nil
}

// toSeries converts a projection response into one series per category, sorted by name.
func toSeries(resp map[string]tsneCategory) ([]models.TsneSeries, error) {
	names := make([]string, 0, len(resp))
	for name := range resp {
		names = append(names, name)
	}
	slices.Sort(names)

	series := make([]models.TsneSeries, 0, len(names))
	for _, name := range names {
		cat := resp[name]
		if len(cat.X) != len(cat.Y) || len(cat.Text) != len(cat.X) {
			return nil, fmt.Errorf("%w: category %q has %d texts, %d x, %d y",
				ErrMalformedResponse, name, len(cat.Text), len(cat.X), len(cat.Y))
		}
		points := make([]models.TsnePoint, len(cat.X))
		for i := range cat.X {
			points[i] = models.TsnePoint{X: cat.X[i], Y: cat.Y[i], Label: cat.Text[i]}
		}
		series = append(series, models.TsneSeries{Name: name, Points: points})
	}
	return series, nil
}

// RocRequest is the input of the ROC computation.
type RocRequest struct {
	ModelVariation  string   `json:"model_variation"`
	Texts           []string `json:"texts"`
	Classifications []bool   `json:"classifications"`
}

// RocAuc computes the ROC curve and AUC of the current texts.
func (c *Client) RocAuc(ctx context.Context, req RocRequest) (*models.RocResponse, error) {
	var resp models.RocResponse
	if err := c.call(ctx, metrics.OpRocAuc, http.MethodPost, "/roc-auc", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch roc: %w", err)
	}
	if len(resp.FPR) != len(resp.TPR) || len(resp.FPR) != len(resp.Thresholds) {
		return nil, fmt.Errorf("fetch roc: %w: %d fpr, %d tpr, %d thresholds",
			ErrMalformedResponse, len(resp.FPR), len(resp.TPR), len(resp.Thresholds))
	}
	return &resp, nil
}
