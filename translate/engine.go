// Package translate fills empty locale items of an asset by machine
// translation. Requests fan out to goroutines; their results come back
// through a single completion queue that the owning goroutine drains and
// applies, so asset state is only ever touched by its owner.
package translate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/minios-linux/locasset/asset"
)

// Request is one translation of a single text into a single language.
type Request struct {
	SourceLang string
	TargetLang string
	Text       string
	// AssetName gives the service some context; it may be empty.
	AssetName string
}

// Service translates text. Each call has exactly one outcome.
type Service interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Completion is the outcome of one dispatched request, delivered on the
// engine's queue.
type Completion struct {
	Batch      uint64
	AssetID    string
	ItemID     asset.ItemID
	SourceLang string
	TargetLang string
	SourceText string
	Text       string
	Err        error
}

// Lookup resolves asset IDs to live assets on the owner goroutine.
type Lookup interface {
	Lookup(id string) (*asset.Asset, bool)
}

// DirtyMarker records assets that need persisting.
type DirtyMarker interface {
	MarkDirty(a *asset.Asset)
}

// Options tune the engine.
type Options struct {
	// MaxConcurrent bounds requests in flight across all batches. Default: 3.
	MaxConcurrent int
	// RequestTimeout bounds a single request. Zero means no engine-side
	// timeout: a service that never answers leaves its request dispatched.
	RequestTimeout time.Duration
	// QueueSize is the completion queue buffer. Default: 64.
	QueueSize int
	// Registerer receives the engine metrics when set.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
	// OnApplied is called on the owner goroutine after a value was written.
	OnApplied func(a *asset.Asset, it *asset.LocaleItem, c Completion)
	// OnFailure is called on the owner goroutine for every failed item.
	OnFailure func(err error, c Completion)
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 3
}

func (o *Options) effectiveQueueSize() int {
	if o.QueueSize > 0 {
		return o.QueueSize
	}
	return 64
}

// Engine dispatches translation batches. TranslateMissing and Apply must
// be called from the owner goroutine; dispatched requests run elsewhere.
type Engine struct {
	svc   Service
	dirty DirtyMarker
	opts  Options
	log   *zap.Logger

	sem       *semaphore.Weighted
	queue     chan Completion
	closed    chan struct{}
	closeOnce sync.Once
	nextBatch atomic.Uint64
	batches   map[uint64]*Batch
	metrics   *metrics
}

// NewEngine builds an engine around svc.
func NewEngine(svc Service, dirty DirtyMarker, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := newMetrics()
	if opts.Registerer != nil {
		if err := m.register(opts.Registerer); err != nil {
			return nil, errors.Wrap(err, "registering translation metrics")
		}
	}
	return &Engine{
		svc:     svc,
		dirty:   dirty,
		opts:    opts,
		log:     log,
		sem:     semaphore.NewWeighted(int64(opts.effectiveMaxConcurrent())),
		queue:   make(chan Completion, opts.effectiveQueueSize()),
		closed:  make(chan struct{}),
		batches: make(map[uint64]*Batch),
		metrics: m,
	}, nil
}

// Completions is the queue the owner goroutine drains and feeds to Apply.
func (e *Engine) Completions() <-chan Completion {
	return e.queue
}

// Close releases requests still waiting to deliver their completion.
// The owner calls it once it stops draining the queue; completions that
// have not been delivered by then are dropped and their batches never
// settle.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
}

// Pending returns the number of dispatched requests not yet applied.
func (e *Engine) Pending() int {
	n := 0
	for _, b := range e.batches {
		n += b.pending
	}
	return n
}

// TranslateMissing dispatches one request per empty item of a whose
// language is set and differs from the source item's language.
// Validation errors are returned synchronously; per-item outcomes arrive
// on the completion queue. ctx governs the dispatched requests.
func (e *Engine) TranslateMissing(ctx context.Context, a *asset.Asset, sourceID asset.ItemID) (*Batch, error) {
	if !a.Translatable() {
		return nil, errors.Wrapf(asset.ErrInvariantViolation, "asset %q has type %s, only text can be translated", a.Name, a.Type)
	}
	src, ok := a.Items.Get(sourceID)
	if !ok {
		return nil, errors.Wrapf(asset.ErrNotFound, "source item %s in asset %q", sourceID, a.Name)
	}
	if src.Language == "" {
		return nil, errors.Wrapf(asset.ErrInvariantViolation, "source item of %q has no language", a.Name)
	}
	if src.Empty() {
		return nil, errors.Wrapf(asset.ErrInvariantViolation, "source %s of %q is empty", src.Language, a.Name)
	}

	b := &Batch{
		id:       e.nextBatch.Add(1),
		assetID:  a.ID,
		sourceID: src.ID,
		done:     make(chan struct{}),
	}
	for _, it := range a.Items.All() {
		if it.ID == src.ID || !it.Empty() || it.Language == "" || it.Language == src.Language {
			continue
		}
		b.targets = append(b.targets, it.ID)
		c := Completion{
			Batch:      b.id,
			AssetID:    a.ID,
			ItemID:     it.ID,
			SourceLang: src.Language,
			TargetLang: it.Language,
			SourceText: src.Value,
		}
		e.dispatch(ctx, c, a.Name)
	}
	b.pending = len(b.targets)
	if b.pending == 0 {
		close(b.done)
	} else {
		e.batches[b.id] = b
	}
	e.log.Info("translation batch dispatched",
		zap.Uint64("batch", b.id),
		zap.String("asset", a.Name),
		zap.String("source", src.Language),
		zap.Int("requests", b.pending))
	return b, nil
}

func (e *Engine) dispatch(ctx context.Context, c Completion, assetName string) {
	e.metrics.dispatched.Inc()
	e.metrics.inFlight.Inc()
	req := Request{SourceLang: c.SourceLang, TargetLang: c.TargetLang, Text: c.SourceText, AssetName: assetName}
	go func() {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			c.Err = err
		} else {
			c.Text, c.Err = e.call(ctx, req)
			e.sem.Release(1)
		}
		e.metrics.inFlight.Dec()
		select {
		case e.queue <- c:
		case <-e.closed:
			e.log.Debug("completion dropped after close",
				zap.String("asset", assetName),
				zap.String("lang", c.TargetLang))
		}
	}()
}

func (e *Engine) call(ctx context.Context, req Request) (string, error) {
	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}
	text, err := e.svc.Translate(ctx, req)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("service returned an empty translation")
	}
	return text, nil
}

// Apply applies one completion. It must run on the owner goroutine.
// The target item is found by ID, never by position, so concurrent
// reordering does not misroute results. The returned error, if any, is
// the per-item failure that was also passed to OnFailure.
func (e *Engine) Apply(lookup Lookup, c Completion) error {
	defer e.settle(c)

	if c.Err != nil {
		return e.fail(c, fmt.Errorf("%w: %s -> %s: %w", asset.ErrTranslationFailure, c.SourceLang, c.TargetLang, c.Err))
	}
	a, ok := lookup.Lookup(c.AssetID)
	if !ok {
		return e.fail(c, errors.Wrapf(asset.ErrNotFound, "asset %s is gone", c.AssetID))
	}
	it, ok := a.Items.Get(c.ItemID)
	if !ok {
		return e.fail(c, errors.Wrapf(asset.ErrNotFound, "locale item %s of %q is gone", c.ItemID, a.Name))
	}
	if it.Language != c.TargetLang {
		return e.fail(c, fmt.Errorf("%w: %s translation discarded, item %s is now %q",
			asset.ErrTranslationFailure, c.TargetLang, c.ItemID, it.Language))
	}

	it.Value = c.Text
	a.SetDirty(true)
	if e.dirty != nil {
		e.dirty.MarkDirty(a)
	}
	e.metrics.completed.WithLabelValues(outcomeSuccess).Inc()
	if b := e.batches[c.Batch]; b != nil {
		b.succeeded++
	}
	e.log.Debug("translation applied",
		zap.Uint64("batch", c.Batch),
		zap.String("asset", a.Name),
		zap.String("lang", c.TargetLang))
	if e.opts.OnApplied != nil {
		e.opts.OnApplied(a, it, c)
	}
	return nil
}

func (e *Engine) fail(c Completion, err error) error {
	e.metrics.completed.WithLabelValues(outcomeFailure).Inc()
	if b := e.batches[c.Batch]; b != nil {
		b.failed++
		b.errs = append(b.errs, err)
	}
	e.log.Warn("translation failed",
		zap.Uint64("batch", c.Batch),
		zap.String("asset", c.AssetID),
		zap.String("lang", c.TargetLang),
		zap.Error(err))
	if e.opts.OnFailure != nil {
		e.opts.OnFailure(err, c)
	}
	return err
}

func (e *Engine) settle(c Completion) {
	b := e.batches[c.Batch]
	if b == nil {
		return
	}
	b.pending--
	if b.pending == 0 {
		close(b.done)
		delete(e.batches, b.id)
		e.log.Info("translation batch settled",
			zap.Uint64("batch", b.id),
			zap.Int("succeeded", b.succeeded),
			zap.Int("failed", b.failed))
	}
}

// Batch tracks one TranslateMissing invocation. Counters are updated on
// the owner goroutine; Done may be waited on from anywhere.
type Batch struct {
	id       uint64
	assetID  string
	sourceID asset.ItemID
	targets  []asset.ItemID
	done     chan struct{}

	pending   int
	succeeded int
	failed    int
	errs      []error
}

// ID returns the batch number.
func (b *Batch) ID() uint64 { return b.id }

// AssetID returns the translated asset's ID.
func (b *Batch) AssetID() string { return b.assetID }

// Targets returns the items a request was dispatched for.
func (b *Batch) Targets() []asset.ItemID { return append([]asset.ItemID(nil), b.targets...) }

// Done is closed once every request of the batch has been applied.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Settled reports whether every request has been applied.
func (b *Batch) Settled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Succeeded returns the number of applied translations.
func (b *Batch) Succeeded() int { return b.succeeded }

// Failed returns the number of failed items.
func (b *Batch) Failed() int { return b.failed }

// Errors returns the per-item failures seen so far.
func (b *Batch) Errors() []error { return append([]error(nil), b.errs...) }
