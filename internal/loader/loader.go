package loader

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ProgressFunc receives load progress as a fraction in [0,1].
type ProgressFunc func(fraction float64)

// ProvideFunc performs the actual one-time initialization of a resource.
type ProvideFunc[T any] func(ctx context.Context, report ProgressFunc) (T, error)

// Status describes the lifecycle of a loader: not-started, loading,
// ready, or failed. A failed loader returns to loading when the next
// Get call starts a fresh attempt.
type Status struct {
	Ready    bool
	Loading  bool
	Progress float64
	Err      error
}

type attempt[T any] struct {
	done     chan struct{}
	value    T
	err      error
	watchers []ProgressFunc
}

// Loader initializes a heavyweight resource exactly once. Concurrent
// callers before first completion join the same in-flight attempt and
// all resolve from it. A failed attempt is not sticky: the next call
// starts over.
type Loader[T any] struct {
	name    string
	provide ProvideFunc[T]
	logger  *zap.Logger

	mu       sync.Mutex
	value    T
	loaded   bool
	inflight *attempt[T]
	progress float64
	lastErr  error
}

func New[T any](name string, provide ProvideFunc[T], logger *zap.Logger) *Loader[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader[T]{name: name, provide: provide, logger: logger}
}

// Get returns the loaded resource, starting or joining a load as
// needed. onProgress, when non-nil, is invoked with fractions in [0,1]
// while the load is running; it is never invoked once the resource is
// ready. Loads run to completion even if ctx is canceled; cancellation
// only detaches the waiting caller.
func (l *Loader[T]) Get(ctx context.Context, onProgress ProgressFunc) (T, error) {
	l.mu.Lock()
	if l.loaded {
		value := l.value
		l.mu.Unlock()
		return value, nil
	}

	at := l.inflight
	if at == nil {
		at = &attempt[T]{done: make(chan struct{})}
		l.inflight = at
		l.lastErr = nil
		l.progress = 0
		go l.run(context.WithoutCancel(ctx), at)
	}
	if onProgress != nil {
		at.watchers = append(at.watchers, onProgress)
	}
	l.mu.Unlock()

	select {
	case <-at.done:
		return at.value, at.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Loaded reports whether the resource is ready without triggering a load.
func (l *Loader[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *Loader[T]) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Ready:    l.loaded,
		Loading:  l.inflight != nil,
		Progress: l.progress,
		Err:      l.lastErr,
	}
}

func (l *Loader[T]) run(ctx context.Context, at *attempt[T]) {
	value, err := l.provide(ctx, func(fraction float64) {
		l.report(at, fraction)
	})

	l.mu.Lock()
	if err == nil {
		l.value = value
		l.loaded = true
		l.progress = 1
	} else {
		l.lastErr = err
	}
	l.inflight = nil
	l.mu.Unlock()

	at.value = value
	at.err = err
	close(at.done)

	if err != nil {
		l.logger.Warn("load failed", zap.String("resource", l.name), zap.Error(err))
	} else {
		l.logger.Info("load finished", zap.String("resource", l.name))
	}
}

func (l *Loader[T]) report(at *attempt[T], fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	l.mu.Lock()
	if fraction < l.progress {
		fraction = l.progress
	}
	l.progress = fraction
	watchers := make([]ProgressFunc, len(at.watchers))
	copy(watchers, at.watchers)
	l.mu.Unlock()

	for _, watch := range watchers {
		watch(fraction)
	}
}
