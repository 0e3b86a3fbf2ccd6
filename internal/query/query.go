// Package query provides lazy, push-based, short-circuitable queries.
//
// A Query does no work until it is consumed. Consumption pushes items into a
// Processor one at a time; a Processor returning false stops the whole
// consumption and no further items are produced.
package query

import (
	"context"
	"errors"
)

// Processor receives one item and reports whether consumption should continue.
type Processor[T any] func(item T) bool

// Query is a lazy producer of T.
//
// ForEach reports completed=true when every item was pushed and false when the
// processor stopped consumption early. A non-nil error aborts consumption;
// completed is meaningless in that case.
type Query[T any] interface {
	ForEach(ctx context.Context, p Processor[T]) (completed bool, err error)
}

// ErrNilProcessor is returned when a query is consumed without a processor.
var ErrNilProcessor = errors.New("query: nil processor")

type funcQuery[T any] struct {
	run func(ctx context.Context, p Processor[T]) (bool, error)
}

func (q funcQuery[T]) ForEach(ctx context.Context, p Processor[T]) (bool, error) {
	if p == nil {
		return false, ErrNilProcessor
	}
	return q.run(ctx, p)
}

// New wraps run as a Query. run is invoked once per consumption.
func New[T any](run func(ctx context.Context, p Processor[T]) (bool, error)) Query[T] {
	return funcQuery[T]{run: run}
}

// Of returns a query over a fixed list of items.
func Of[T any](items ...T) Query[T] {
	return New(func(ctx context.Context, p Processor[T]) (bool, error) {
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			if !p(it) {
				return false, nil
			}
		}
		return true, nil
	})
}

// Empty returns a query that produces nothing.
func Empty[T any]() Query[T] {
	return New(func(context.Context, Processor[T]) (bool, error) {
		return true, nil
	})
}

// Concat consumes each query in order against the same processor, skipping
// the remaining ones once the processor stops.
func Concat[T any](qs ...Query[T]) Query[T] {
	return New(func(ctx context.Context, p Processor[T]) (bool, error) {
		for _, q := range qs {
			ok, err := q.ForEach(ctx, p)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Filter returns a query producing only the items of q accepted by keep.
func Filter[T any](q Query[T], keep func(T) bool) Query[T] {
	return New(func(ctx context.Context, p Processor[T]) (bool, error) {
		return q.ForEach(ctx, func(it T) bool {
			if !keep(it) {
				return true
			}
			return p(it)
		})
	})
}

// ToSlice consumes q and collects every item.
func ToSlice[T any](ctx context.Context, q Query[T]) ([]T, error) {
	var out []T
	if _, err := q.ForEach(ctx, func(it T) bool {
		out = append(out, it)
		return true
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// FindFirst consumes q until the first item is produced.
func FindFirst[T any](ctx context.Context, q Query[T]) (T, bool, error) {
	var (
		first T
		found bool
	)
	_, err := q.ForEach(ctx, func(it T) bool {
		first = it
		found = true
		return false
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return first, found, nil
}

// Exists reports whether q produces at least one item.
func Exists[T any](ctx context.Context, q Query[T]) (bool, error) {
	_, found, err := FindFirst(ctx, q)
	return found, err
}

// Count consumes q and returns the number of items produced.
func Count[T any](ctx context.Context, q Query[T]) (int, error) {
	n := 0
	if _, err := q.ForEach(ctx, func(T) bool {
		n++
		return true
	}); err != nil {
		return 0, err
	}
	return n, nil
}
