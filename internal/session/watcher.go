package session

import (
	"sync"

	"github.com/teamreel/teamreel/internal/observability"
)

// Watcher fans out out-of-band session changes (token refresh, sign-out
// in another tab, revocation push) to subscribers. Delivery is
// last-write-wins: when updates race, only the newest session state
// reaches subscribers and stale in-flight updates are discarded. After
// Close no callback is ever invoked again.
//
// Callbacks run serialized on the watcher's delivery path and must not
// call back into the watcher.
type Watcher struct {
	mu          sync.Mutex
	subscribers map[uint64]func(*Session)
	nextID      uint64
	generation  uint64
	closed      bool
	logger      observability.Logger
	metrics     *Metrics
}

// WatcherOption is a functional option for the watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithWatcherMetrics sets the metrics.
func WithWatcherMetrics(metrics *Metrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = metrics
	}
}

// NewWatcher creates a session change watcher.
func NewWatcher(opts ...WatcherOption) *Watcher {
	w := &Watcher{
		subscribers: make(map[uint64]func(*Session)),
		logger:      observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe registers a callback for session changes and returns a
// function that removes it. Unsubscribing is idempotent and always
// takes effect: a removed subscriber receives no further callbacks.
func (w *Watcher) Subscribe(fn func(*Session)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return func() {}
	}

	id := w.nextID
	w.nextID++
	w.subscribers[id] = fn

	return func() {
		w.mu.Lock()
		delete(w.subscribers, id)
		w.mu.Unlock()
	}
}

// Update publishes a new session state to subscribers. A nil session
// signals sign-out. Delivery is asynchronous; the caller never blocks on
// subscriber callbacks.
func (w *Watcher) Update(sess *Session) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.generation++
	gen := w.generation
	w.mu.Unlock()

	go w.deliver(gen, sess)
}

// deliver invokes subscriber callbacks for an update, unless a newer
// update superseded it or the watcher closed in the meantime.
func (w *Watcher) deliver(gen uint64, sess *Session) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if gen != w.generation {
		w.logger.Debug("stale session update discarded",
			observability.Int64("generation", int64(gen)),
		)
		w.metrics.RecordStaleUpdate()
		return
	}

	for _, fn := range w.subscribers {
		fn(sess)
	}
	w.metrics.RecordNotification(len(w.subscribers))
}

// Close shuts the watcher down. Pending deliveries are dropped and no
// subscriber callback runs after Close returns.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.subscribers = nil
}
