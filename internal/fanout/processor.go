// Package fanout persists event batches and triggers device notifications
// on a single background consumer, off the request path.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

//go:generate mockgen -source=./processor.go -destination=../mocks/mock_fanout.go -package=mocks EventStore,Notifier,Alerter

var (
	ErrQueueFull       = errors.New("fan-out queue is full")
	ErrProcessorClosed = errors.New("fan-out processor is shut down")
	ErrDrainIncomplete = errors.New("fan-out drain incomplete")
	ErrInvalidBatch    = errors.New("invalid fan-out batch")
)

// Batch is one unit of work: documents for a single collection, written with
// one InsertMany call or one InsertOne call per document.
type Batch struct {
	Collection   string
	Documents    []any
	InsertMany   bool
	Notify       bool
	SerialNumber string
	EnqueuedAt   time.Time
}

// EventStore is the append-only document store.
type EventStore interface {
	InsertOne(ctx context.Context, collection string, doc any) error
	InsertMany(ctx context.Context, collection string, docs []any) error
}

// Notifier pushes activity notifications for a locker's logged actions.
type Notifier interface {
	NotifyLockerActivity(ctx context.Context, serialNumber string, docs []any) error
}

// Alerter reports operational failures. It must not block for long.
type Alerter interface {
	NotifyException(ctx context.Context, err error, fields map[string]any)
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending  int  `json:"pending"`
	Draining bool `json:"draining"`
}

// Processor is a FIFO queue drained by exactly one goroutine. Persistence
// is at-most-once: a failed batch is alerted and skipped, never retried.
type Processor struct {
	store        EventStore
	notifier     Notifier
	alerter      Alerter
	logger       *slog.Logger
	metrics      *Metrics
	maxPending   int
	batchTimeout time.Duration

	mu        sync.Mutex
	queue     []Batch
	draining  bool
	closed    bool
	abandoned bool
	started   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func WithNotifier(n Notifier) func(*Processor) {
	return func(p *Processor) {
		p.notifier = n
	}
}

func WithAlerter(a Alerter) func(*Processor) {
	return func(p *Processor) {
		p.alerter = a
	}
}

func WithLogger(logger *slog.Logger) func(*Processor) {
	return func(p *Processor) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) func(*Processor) {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithMaxPending bounds the number of queued batches. Zero means unbounded.
func WithMaxPending(n int) func(*Processor) {
	return func(p *Processor) {
		p.maxPending = n
	}
}

func WithBatchTimeout(d time.Duration) func(*Processor) {
	return func(p *Processor) {
		p.batchTimeout = d
	}
}

func NewProcessor(store EventStore, opts ...func(*Processor)) *Processor {
	p := &Processor{
		store:        store,
		logger:       slog.Default(),
		batchTimeout: 30 * time.Second,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the consumer. Calling it more than once has no effect.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.run()
}

// Enqueue appends a batch and returns without waiting for it to be
// processed.
func (p *Processor) Enqueue(b Batch) error {
	if b.Collection == "" || len(b.Documents) == 0 {
		return fmt.Errorf("%w: collection and documents are required", ErrInvalidBatch)
	}
	if b.Notify && b.SerialNumber == "" {
		return fmt.Errorf("%w: notification requires a serial number", ErrInvalidBatch)
	}
	if b.EnqueuedAt.IsZero() {
		b.EnqueuedAt = time.Now()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrProcessorClosed
	}
	if p.maxPending > 0 && len(p.queue) >= p.maxPending {
		p.mu.Unlock()
		p.metrics.dropped("queue_full", 1)
		return ErrQueueFull
	}
	p.queue = append(p.queue, b)
	pending := len(p.queue)
	p.mu.Unlock()

	p.metrics.enqueued(b.Collection, pending)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Pending: len(p.queue), Draining: p.draining}
}

// Shutdown stops accepting batches and waits for the queue to drain. If ctx
// ends first the unconsumed tail is dropped and reported in the error.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()
	close(p.stop)

	if !started {
		return p.abandon(nil)
	}

	select {
	case <-p.done:
		p.logger.Info("fan-out processor drained")
		return nil
	case <-ctx.Done():
		return p.abandon(ctx.Err())
	}
}

// Wait blocks until the consumer goroutine has exited. After a Shutdown that
// ran out of time this is when the in-flight batch, if any, has finished
// with the event store.
func (p *Processor) Wait(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fan-out consumer still running: %w", ctx.Err())
	}
}

func (p *Processor) abandon(cause error) error {
	p.mu.Lock()
	n := len(p.queue)
	p.queue = nil
	p.abandoned = true
	p.mu.Unlock()

	p.metrics.pending(0)
	if n == 0 {
		return nil
	}
	p.metrics.dropped("shutdown", n)
	p.logger.Error("fan-out batches abandoned at shutdown", "abandoned", n, "error", cause)
	if cause != nil {
		return fmt.Errorf("%w: %d batches abandoned: %w", ErrDrainIncomplete, n, cause)
	}
	return fmt.Errorf("%w: %d batches abandoned", ErrDrainIncomplete, n)
}

func (p *Processor) run() {
	defer close(p.done)
	for {
		if b, ok := p.next(); ok {
			p.process(b)
			continue
		}
		select {
		case <-p.wake:
		case <-p.stop:
			if p.idle() {
				return
			}
		}
	}
}

// next pops the head of the queue and marks the processor draining.
func (p *Processor) next() (Batch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abandoned || len(p.queue) == 0 {
		p.draining = false
		return Batch{}, false
	}
	b := p.queue[0]
	p.queue[0] = Batch{}
	p.queue = p.queue[1:]
	p.draining = true
	p.metrics.pending(len(p.queue))
	return b, true
}

func (p *Processor) idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.abandoned || len(p.queue) == 0
}

func (p *Processor) process(b Batch) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.batchTimeout)
	defer cancel()

	stage := "persist"
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("fan-out batch panicked: %v", r)
			p.logger.Error("fan-out batch panicked",
				"collection", b.Collection,
				"stage", stage,
				"panic", r,
				"stack", string(debug.Stack()))
			p.metrics.panicked(b.Collection, stage)
			p.alert(ctx, err, b, "panic")
		}
		p.metrics.processed(b.Collection, time.Since(start))
	}()

	err := p.persist(ctx, b)
	p.metrics.persisted(b.Collection, err)
	if err != nil {
		p.logger.Error("fan-out persistence failed",
			"collection", b.Collection,
			"documents", len(b.Documents),
			"error", err)
		p.alert(ctx, err, b, "persist")
		return
	}

	if !b.Notify || p.notifier == nil {
		return
	}
	stage = "notify"
	err = p.notifier.NotifyLockerActivity(ctx, b.SerialNumber, b.Documents)
	p.metrics.notified(err)
	if err != nil {
		p.logger.Warn("fan-out notification failed",
			"serial_number", b.SerialNumber,
			"error", err)
		p.alert(ctx, err, b, "notify")
	}
}

func (p *Processor) persist(ctx context.Context, b Batch) error {
	if b.InsertMany {
		return p.store.InsertMany(ctx, b.Collection, b.Documents)
	}
	for i, doc := range b.Documents {
		if err := p.store.InsertOne(ctx, b.Collection, doc); err != nil {
			return fmt.Errorf("document %d of %d: %w", i+1, len(b.Documents), err)
		}
	}
	return nil
}

func (p *Processor) alert(ctx context.Context, err error, b Batch, stage string) {
	if p.alerter == nil {
		return
	}
	p.alerter.NotifyException(context.WithoutCancel(ctx), err, map[string]any{
		"component":     "fanout",
		"stage":         stage,
		"collection":    b.Collection,
		"documents":     len(b.Documents),
		"serial_number": b.SerialNumber,
		"enqueued_at":   b.EnqueuedAt.Format(time.RFC3339),
	})
}
