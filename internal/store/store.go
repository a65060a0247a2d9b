// Package store holds the client state of the playground and runs the
// network effects that keep it in sync with the remote service.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/cache"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/models"
)

// DefaultMinTextsForTsne is the text count at or below which the text
// projection is not requested.
const DefaultMinTextsForTsne = 5

// API is the part of the remote service the store talks to.
// *client.Client implements it.
type API interface {
	Clips(ctx context.Context) ([]models.ClipIndex, error)
	PlayClip(ctx context.Context, index string) error
	Texts(ctx context.Context) ([]models.TextClassification, error)
	AddText(ctx context.Context, t models.TextClassification) error
	AddAllTexts(ctx context.Context, list []models.TextClassification) error
	RemoveText(ctx context.Context, text string) error
	UpdateText(ctx context.Context, t models.TextClassification) error
	ModelVariations(ctx context.Context) ([]string, error)
	TextClassificationMethods(ctx context.Context) ([]string, error)
	Similarity(ctx context.Context, req client.SimilarityRequest) (*models.SimilarityResult, error)
	TsneImages(ctx context.Context, req client.TsneImagesRequest) ([]models.TsneSeries, error)
	TsneTexts(ctx context.Context, req client.TsneTextsRequest) ([]models.TsneSeries, error)
	RocAuc(ctx context.Context, req client.RocRequest) (*models.RocResponse, error)
}

var _ API = (*client.Client)(nil)

// flight tracks the latest request of an async family.
type flight struct {
	gen    uint64
	key    string
	cancel context.CancelFunc
}

func (f *flight) finish() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Store owns the client state. Every transition goes through Dispatch and is
// applied under a single lock; network effects run on background goroutines
// and report back through lifecycle actions.
type Store struct {
	api             API
	cache           cache.TextCache
	logger          *slog.Logger
	minTextsForTsne int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	initialized bool
	flights     [familyCount]flight
	textsTail   chan struct{}
	cacheTail   chan struct{}

	subMu       sync.Mutex
	subscribers map[uint64]chan struct{}
	nextSub     uint64
}

// Option configures a Store.
type Option func(*Store)

// WithCache mirrors every text change to c.
func WithCache(c cache.TextCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithLogger sets the logger used for effect failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMinTextsForTsne overrides DefaultMinTextsForTsne.
func WithMinTextsForTsne(n int) Option {
	return func(s *Store) { s.minTextsForTsne = n }
}

// New creates a store in its initial state. Call Init to load texts and options.
func New(api API, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:             api,
		logger:          slog.Default(),
		minTextsForTsne: DefaultMinTextsForTsne,
		ctx:             ctx,
		cancel:          cancel,
		state:           InitialState(),
		subscribers:     make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel signalled after state changes. Signals are
// coalesced: a reader that falls behind sees one pending signal, then reads
// the latest Snapshot. The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until every background effect started so far, and the effects
// they started in turn, have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight requests and waits for background effects.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Store) spawn(run func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run()
	}()
}

// Dispatch applies an action. Rejected actions return an error and leave the
// state untouched. Lifecycle actions of superseded requests are dropped.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	if g, ok := a.(generational); ok {
		f, gen := g.generation()
		if gen != s.flights[f].gen {
			s.mu.Unlock()
			s.logger.Debug("dropping stale result", "family", f.String(), "generation", gen)
			return nil
		}
		if _, pending := a.(fetchPending); !pending {
			s.flights[f].finish()
		}
	}

	prev := s.state.Texts.List
	if err := a.reduce(&s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	effects := s.effectsLocked(a, prev)
	s.mu.Unlock()

	s.notify()
	for _, run := range effects {
		s.spawn(run)
	}
	return nil
}

// effectsLocked collects the effects caused by a just-reduced action.
func (s *Store) effectsLocked(a Action, prevTexts []models.TextClassification) []func() {
	var effects []func()
	if run := s.textSyncLocked(a, prevTexts); run != nil {
		effects = append(effects, run)
	}
	if s.initialized && s.cache != nil && !slices.Equal(prevTexts, s.state.Texts.List) {
		effects = append(effects, s.cacheSaveLocked(slices.Clone(s.state.Texts.List)))
	}
	return append(effects, s.triggersLocked()...)
}

// chainLocked wraps fn so that it starts only after the previous fn chained
// on the same tail has returned.
func chainLocked(tail *chan struct{}, fn func()) func() {
	prev := *tail
	done := make(chan struct{})
	*tail = done
	return func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		fn()
	}
}

// =============================================================================
// TEXTS
// =============================================================================

// textSyncLocked returns the server round trip of a user text edit, or nil
// when the action does not edit texts on the server.
func (s *Store) textSyncLocked(a Action, prev []models.TextClassification) func() {
	next := s.state.Texts.List

	var (
		name string
		call func(ctx context.Context) error
		edit textEdit
	)
	switch a := a.(type) {
	case AddText:
		t := models.TextClassification{Text: models.NormalizeText(a.Text), Classification: a.Classification}
		name = "add"
		call = func(ctx context.Context) error { return s.api.AddText(ctx, t) }
		edit = singleEdit(prev, textEntry{key: t.Text, present: true, classification: t.Classification})
	case RemoveText:
		i := models.IndexOfText(prev, a.Text)
		if i < 0 {
			return nil
		}
		key := prev[i].Text
		name = "remove"
		call = func(ctx context.Context) error { return s.api.RemoveText(ctx, key) }
		edit = singleEdit(prev, textEntry{key: key})
	case ToggleTextClassification:
		i := models.IndexOfText(next, a.Text)
		if i < 0 {
			return nil
		}
		t := next[i]
		name = "toggle"
		call = func(ctx context.Context) error { return s.api.UpdateText(ctx, t) }
		edit = singleEdit(prev, textEntry{key: t.Text, present: true, classification: t.Classification})
	case ToggleAllTo:
		if len(next) == 0 {
			return nil
		}
		list := slices.Clone(next)
		name = "toggle-all"
		call = func(ctx context.Context) error { return s.api.AddAllTexts(ctx, list) }
		for _, t := range list {
			edit.target = append(edit.target, textEntry{key: t.Text, present: true, classification: t.Classification})
			edit.before = append(edit.before, entryOf(prev, t.Text))
		}
	default:
		return nil
	}

	s.state.Texts.beginSync(edit)
	return chainLocked(&s.textsTail, func() {
		err := call(s.ctx)
		cancelled := err != nil && s.ctx.Err() != nil
		if err != nil && !cancelled {
			s.logger.Error("text sync failed", "op", name, "error", err)
		}
		_ = s.Dispatch(textSyncDone{edit: edit, err: err, cancelled: cancelled})
	})
}

func singleEdit(prev []models.TextClassification, target textEntry) textEdit {
	return textEdit{target: []textEntry{target}, before: []textEntry{entryOf(prev, target.key)}}
}

func (s *Store) cacheSaveLocked(list []models.TextClassification) func() {
	return chainLocked(&s.cacheTail, func() {
		if err := s.cache.Save(s.ctx, list); err != nil {
			s.logger.Warn("failed to save text cache", "texts", len(list), "error", err)
		}
	})
}

// Init loads the cached texts, then concurrently syncs texts with the
// server and loads options and clips. The first failure is returned after
// every load has finished; the others are logged and recorded in the state.
func (s *Store) Init(ctx context.Context) error {
	s.loadCache(ctx)

	var g errgroup.Group
	g.Go(func() error { return s.SyncTexts(ctx) })
	g.Go(func() error { return s.FetchModelVariations(ctx) })
	g.Go(func() error { return s.FetchTextClassificationMethods(ctx) })
	g.Go(func() error { return s.FetchClips(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

// LoadTexts loads the cached texts and syncs them with the server, without
// loading options. No analytics request is started.
func (s *Store) LoadTexts(ctx context.Context) error {
	s.loadCache(ctx)
	if err := s.SyncTexts(ctx); err != nil {
		return fmt.Errorf("load texts: %w", err)
	}
	return nil
}

// loadCache restores the cached texts and enables mirroring texts to the cache.
func (s *Store) loadCache(ctx context.Context) {
	if s.cache != nil {
		cached, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			s.logger.Warn("failed to load text cache", "error", err)
		case len(cached) > 0:
			_ = s.Dispatch(SetTexts{List: cached})
		}
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// SyncTexts merges the server list into the local one, the server winning on
// conflicts, and pushes the texts only known locally.
func (s *Store) SyncTexts(ctx context.Context) error {
	server, err := s.api.Texts(ctx)
	if err != nil {
		s.recordTextsError(err)
		return err
	}

	s.mu.Lock()
	local := s.state.Texts.List
	s.mu.Unlock()

	serverNorm := models.NormalizeTexts(server)
	var localOnly []models.TextClassification
	for _, t := range local {
		if models.IndexOfText(serverNorm, t.Text) < 0 {
			localOnly = append(localOnly, t)
		}
	}

	_ = s.Dispatch(mergeServerTexts{server: serverNorm})

	if len(localOnly) == 0 {
		return nil
	}
	s.logger.Info("pushing local texts", "texts", len(localOnly))
	if err := s.api.AddAllTexts(ctx, localOnly); err != nil {
		s.recordTextsError(err)
		return err
	}
	return nil
}

func (s *Store) recordTextsError(err error) {
	s.logger.Error("texts sync failed", "error", err)
	s.mu.Lock()
	s.state.Texts.LastError = err.Error()
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// OPTIONS & CLIPS
// =============================================================================

// FetchModelVariations loads the model variations and selects the first one
// when none is selected yet.
func (s *Store) FetchModelVariations(ctx context.Context) error {
	_ = s.Dispatch(modelVariationsPending{})
	list, err := s.api.ModelVariations(ctx)
	if err != nil {
		s.logger.Error("failed to load model variations", "error", err)
		_ = s.Dispatch(modelVariationsRejected{err: err})
		return err
	}
	return s.Dispatch(modelVariationsFulfilled{list: list})
}

// FetchTextClassificationMethods loads the classification methods and
// selects the first one when none is selected yet.
func (s *Store) FetchTextClassificationMethods(ctx context.Context) error {
	_ = s.Dispatch(methodsPending{})
	list, err := s.api.TextClassificationMethods(ctx)
	if err != nil {
		s.logger.Error("failed to load text classification methods", "error", err)
		_ = s.Dispatch(methodsRejected{err: err})
		return err
	}
	return s.Dispatch(methodsFulfilled{list: list})
}

// FetchClips loads the clip catalogue. On failure the previous list is kept.
func (s *Store) FetchClips(ctx context.Context) error {
	_ = s.Dispatch(clipsPending{})
	list, err := s.api.Clips(ctx)
	if err != nil {
		s.logger.Error("failed to load clips", "error", err)
		_ = s.Dispatch(clipsRejected{err: err})
		return err
	}
	return s.Dispatch(clipsFulfilled{list: list})
}

// PlayClip asks the service to play a clip. Only a failure changes the state.
func (s *Store) PlayClip(ctx context.Context, index string) error {
	if err := s.api.PlayClip(ctx, index); err != nil {
		s.logger.Warn("failed to play clip", "clip", index, "error", err)
		_ = s.Dispatch(playClipFailed{err: err})
		return err
	}
	return nil
}

// =============================================================================
// ANALYTICS
// =============================================================================

// triggersLocked starts the analytics requests whose inputs changed since
// they were last issued.
func (s *Store) triggersLocked() []func() {
	st := &s.state
	texts := st.Texts.List
	mv := st.Options.SelectedModelVariation
	method := st.Options.SelectedTextClassificationMethod
	tk := textsKey(texts)

	var effects []func()

	if mv != "" && method != "" {
		key := strings.Join([]string{tk, mv, method, strconv.FormatBool(st.Similarities.ApplySoftmax), st.Similarities.SubtractionTexts}, "\x1e")
		if key != s.flights[familySimilarities].key {
			lt := models.Linearize(texts)
			effects = append(effects, s.similaritiesLocked(key, client.SimilarityRequest{
				ModelVariation:           mv,
				TextClassificationMethod: method,
				Texts:                    lt.Texts,
				Classifications:          lt.Classifications,
				TextsToSubtract:          models.SplitSubtractionTexts(st.Similarities.SubtractionTexts),
				ApplySoftmax:             st.Similarities.ApplySoftmax,
			}))
		}
	}

	if mv == "" {
		return effects
	}
	key := tk + "\x1e" + mv

	if key != s.flights[familyTsneImages].key {
		lt := models.Linearize(texts)
		effects = append(effects, s.tsneImagesLocked(key, client.TsneImagesRequest{Texts: lt.Texts, ModelVariation: mv}))
	}

	if key != s.flights[familyTsneTexts].key {
		lt := models.Linearize(texts)
		if run := s.tsneTextsLocked(key, client.TsneTextsRequest{Texts: lt.Texts, Classifications: lt.Classifications, ModelVariation: mv}); run != nil {
			effects = append(effects, run)
		}
	}

	if len(texts) > 0 && key != s.flights[familyRoc].key {
		lt := models.Linearize(texts)
		effects = append(effects, s.rocLocked(key, client.RocRequest{ModelVariation: mv, Texts: lt.Texts, Classifications: lt.Classifications}))
	}

	return effects
}

func textsKey(texts []models.TextClassification) string {
	var b strings.Builder
	for _, t := range texts {
		b.WriteString(t.Text)
		if t.Classification {
			b.WriteString("\x1f1")
		} else {
			b.WriteString("\x1f0")
		}
		b.WriteByte('\x1d')
	}
	return b.String()
}

// beginLocked supersedes the in-flight request of f and marks it loading.
func (s *Store) beginLocked(f family, key string) (context.Context, uint64) {
	fl := &s.flights[f]
	fl.finish()
	fl.gen++
	fl.key = key
	ctx, cancel := context.WithCancel(s.ctx)
	fl.cancel = cancel
	_ = fetchPending{family: f, gen: fl.gen}.reduce(&s.state)
	return ctx, fl.gen
}

// startLocked begins a request of f and returns the effect that performs it.
func (s *Store) startLocked(f family, key string, fetch func(ctx context.Context, gen uint64) (Action, error)) func() {
	ctx, gen := s.beginLocked(f, key)
	return func() {
		start := time.Now()
		action, err := fetch(ctx, gen)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				s.logger.Debug("request cancelled", "family", f.String(), "generation", gen)
				return
			}
			s.logger.Error("request failed", "family", f.String(), "generation", gen, "error", err)
			action = fetchRejected{family: f, gen: gen, err: err}
		} else {
			s.logger.Debug("request completed", "family", f.String(), "generation", gen, "duration_ms", time.Since(start).Milliseconds())
		}
		_ = s.Dispatch(action)
	}
}

func (s *Store) similaritiesLocked(key string, req client.SimilarityRequest) func() {
	return s.startLocked(familySimilarities, key, func(ctx context.Context, gen uint64) (Action, error) {
		res, err := s.api.Similarity(ctx, req)
		if err != nil {
			return nil, err
		}
		return similaritiesFulfilled{gen: gen, result: res}, nil
	})
}

func (s *Store) tsneImagesLocked(key string, req client.TsneImagesRequest) func() {
	return s.startLocked(familyTsneImages, key, func(ctx context.Context, gen uint64) (Action, error) {
		series, err := s.api.TsneImages(ctx, req)
		if err != nil {
			return nil, err
		}
		return tsneImagesFulfilled{gen: gen, series: series}, nil
	})
}

// tsneTextsLocked returns nil when there are too few texts to project; the
// projection is then cleared without a request.
func (s *Store) tsneTextsLocked(key string, req client.TsneTextsRequest) func() {
	if len(req.Texts) <= s.minTextsForTsne {
		_, gen := s.beginLocked(familyTsneTexts, key)
		s.flights[familyTsneTexts].finish()
		_ = tsneTextsFulfilled{gen: gen, series: []models.TsneSeries{}}.reduce(&s.state)
		return nil
	}
	return s.startLocked(familyTsneTexts, key, func(ctx context.Context, gen uint64) (Action, error) {
		series, err := s.api.TsneTexts(ctx, req)
		if err != nil {
			return nil, err
		}
		return tsneTextsFulfilled{gen: gen, series: series}, nil
	})
}

func (s *Store) rocLocked(key string, req client.RocRequest) func() {
	return s.startLocked(familyRoc, key, func(ctx context.Context, gen uint64) (Action, error) {
		data, err := s.api.RocAuc(ctx, req)
		if err != nil {
			return nil, err
		}
		return rocFulfilled{gen: gen, data: data}, nil
	})
}

// FetchSimilarities issues a similarity search with explicit inputs,
// superseding any in-flight one.
func (s *Store) FetchSimilarities(req client.SimilarityRequest) {
	s.mu.Lock()
	run := s.similaritiesLocked(s.flights[familySimilarities].key, req)
	s.mu.Unlock()
	s.notify()
	s.spawn(run)
}

// FetchTsneImages issues a clip projection with explicit inputs.
func (s *Store) FetchTsneImages(req client.TsneImagesRequest) {
	s.mu.Lock()
	run := s.tsneImagesLocked(s.flights[familyTsneImages].key, req)
	s.mu.Unlock()
	s.notify()
	s.spawn(run)
}

// FetchTsneTexts issues a text projection with explicit inputs.
func (s *Store) FetchTsneTexts(req client.TsneTextsRequest) {
	s.mu.Lock()
	run := s.tsneTextsLocked(s.flights[familyTsneTexts].key, req)
	s.mu.Unlock()
	s.notify()
	if run != nil {
		s.spawn(run)
	}
}

// FetchRoc issues a ROC computation with explicit inputs.
func (s *Store) FetchRoc(req client.RocRequest) {
	s.mu.Lock()
	run := s.rocLocked(s.flights[familyRoc].key, req)
	s.mu.Unlock()
	s.notify()
	s.spawn(run)
}

// Refresh re-issues every analytics request whose guards hold, even when
// its inputs did not change.
func (s *Store) Refresh() {
	s.mu.Lock()
	for f := range s.flights {
		s.flights[f].key = ""
	}
	effects := s.triggersLocked()
	s.mu.Unlock()
	s.notify()
	for _, run := range effects {
		s.spawn(run)
	}
}
