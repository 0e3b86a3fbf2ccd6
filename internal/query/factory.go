package query

import (
	"context"
	"sync"
)

// Executor contributes items for one set of parameters.
// It returns false when the processor stopped consumption.
type Executor[P, T any] interface {
	Execute(ctx context.Context, params P, p Processor[T]) (bool, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc[P, T any] func(ctx context.Context, params P, p Processor[T]) (bool, error)

// Execute calls f.
func (f ExecutorFunc[P, T]) Execute(ctx context.Context, params P, p Processor[T]) (bool, error) {
	return f(ctx, params, p)
}

// Factory builds queries that run an ordered list of executors.
// Executors are fixed at composition time; there is no lookup by name.
type Factory[P, T any] struct {
	mu        sync.RWMutex
	executors []Executor[P, T]
}

// NewFactory creates a Factory with the given executors in order.
func NewFactory[P, T any](executors ...Executor[P, T]) *Factory[P, T] {
	return &Factory[P, T]{executors: append([]Executor[P, T](nil), executors...)}
}

// Register appends an executor. Queries created earlier are unaffected.
func (f *Factory[P, T]) Register(e Executor[P, T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executors = append(f.executors, e)
}

// Len returns the number of registered executors.
func (f *Factory[P, T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.executors)
}

// Create returns a not-yet-executed query bound to params and to the
// executors registered at the time of the call.
func (f *Factory[P, T]) Create(params P) Query[T] {
	f.mu.RLock()
	executors := append([]Executor[P, T](nil), f.executors...)
	f.mu.RUnlock()

	return New(func(ctx context.Context, p Processor[T]) (bool, error) {
		for _, e := range executors {
			ok, err := e.Execute(ctx, params, p)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	})
}
