package livequery

import (
	"context"
	"sync"
	"sync/atomic"

	"tripwise-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Snapshot is the full result set of a query at one point in time. Seq
// increases by one with every snapshot of the same subscription.
type Snapshot struct {
	Seq   uint64
	Query Query
	Docs  []Document
}

// Engine runs live queries. Each subscription refetches its query whenever
// a change is reported for its collection path.
type Engine struct {
	source Source

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewEngine creates an engine reading from source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe opens a live query. onSnapshot receives the complete result set
// once immediately and again after every change to the collection. If a
// fetch fails, onError is called once and the subscription stops; it is not
// retried.
//
// Callbacks run on the subscription's own goroutine, one at a time. No
// callback runs after Close returns, so Close must not be called from inside
// one; cancel ctx instead to stop from within a callback.
func (e *Engine) Subscribe(ctx context.Context, q Query, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		engine:     e,
		query:      q,
		key:        q.Path.String(),
		onSnapshot: onSnapshot,
		onError:    onError,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		cancel:     cancel,
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return nil, context.Canceled
	}
	set, ok := e.subs[s.key]
	if !ok {
		set = make(map[*Subscription]struct{})
		e.subs[s.key] = set
	}
	set[s] = struct{}{}
	e.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	s.trigger()
	go s.run(ctx)

	return s, nil
}

// Notify reports a change in the collection at path. Every subscription on
// that collection refetches; bursts collapse into a single refetch.
func (e *Engine) Notify(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for s := range e.subs[path] {
		s.trigger()
	}
}

// Listen feeds change notices from broker into the engine until ctx ends.
func (e *Engine) Listen(ctx context.Context, broker Broker) error {
	return broker.Listen(ctx, e.Notify)
}

// Count returns the number of open subscriptions.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, set := range e.subs {
		n += len(set)
	}
	return n
}

// Close stops every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	var all []*Subscription
	for _, set := range e.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	e.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (e *Engine) remove(s *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := e.subs[s.key]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(e.subs, s.key)
	}
	metrics.ActiveSubscriptions.Dec()
}

// Subscription is one open live query.
type Subscription struct {
	engine     *Engine
	query      Query
	key        string
	onSnapshot func(Snapshot)
	onError    func(error)

	kick    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	closed  atomic.Bool
	deliver sync.Mutex
	seq     uint64
}

// Query returns the subscribed query.
func (s *Subscription) Query() Query { return s.query }

// Close detaches the subscription and waits for a callback in progress to
// return. No callback runs after Close returns. It is safe to call more than
// once.
func (s *Subscription) Close() {
	s.detach()
	s.deliver.Lock()
	s.deliver.Unlock()
}

func (s *Subscription) detach() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.engine.remove(s)
}

// Done is closed once the subscription's goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.detach()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}

		docs, err := s.engine.source.Fetch(ctx, s.query)
		if !s.emit(ctx, docs, err) {
			return
		}
	}
}

// emit hands one fetch result to the callbacks. It holds the delivery lock
// so that Close can wait for it, and reports whether to keep running.
func (s *Subscription) emit(ctx context.Context, docs []Document, err error) bool {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	if ctx.Err() != nil || s.closed.Load() {
		return false
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("path", s.key).
			Msg("Live query failed")
		metrics.SubscriptionErrors.Inc()
		if s.onError != nil {
			s.onError(err)
		}
		return false
	}

	s.seq++
	metrics.SnapshotsDelivered.Inc()
	if s.onSnapshot != nil {
		s.onSnapshot(Snapshot{Seq: s.seq, Query: s.query, Docs: docs})
	}
	return true
}
