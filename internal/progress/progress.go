// Package progress bridges long-running searches to a cooperative
// cancellation and progress-reporting facility.
//
// The Indicator travels inside a context.Context. Callers that do not install
// one get a default indicator whose cancellation follows the context.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCancelled reports that an operation was aborted by a cancellation
// request. It is never used for "finished with no results".
var ErrCancelled = errors.New("operation cancelled")

// Indicator is a progress scope stack with a cancellation flag.
type Indicator interface {
	PushState(label string)
	PopState()
	IsCancelled() bool
}

type indicatorKey struct{}

// WithIndicator returns a context carrying ind.
func WithIndicator(ctx context.Context, ind Indicator) context.Context {
	return context.WithValue(ctx, indicatorKey{}, ind)
}

// FromContext returns the indicator installed in ctx, or a logging indicator
// whose cancellation follows ctx.
func FromContext(ctx context.Context) Indicator {
	if ind, ok := ctx.Value(indicatorKey{}).(Indicator); ok && ind != nil {
		return ind
	}
	return &logIndicator{ctx: ctx, logger: slog.Default()}
}

// Check returns an error wrapping ErrCancelled when either ind or ctx has
// been cancelled.
func Check(ctx context.Context, ind Indicator) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if ind != nil && ind.IsCancelled() {
		return ErrCancelled
	}
	return nil
}

// Run pushes label on the context's indicator, runs fn and pops the state
// again however fn exits.
func Run(ctx context.Context, label string, fn func(ind Indicator) error) error {
	ind := FromContext(ctx)
	ind.PushState(label)
	defer ind.PopState()
	return fn(ind)
}

// logIndicator logs state transitions and is cancelled with its context.
type logIndicator struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	labels []string
	starts []time.Time
}

func (l *logIndicator) PushState(label string) {
	l.mu.Lock()
	l.labels = append(l.labels, label)
	l.starts = append(l.starts, time.Now())
	depth := len(l.labels)
	l.mu.Unlock()
	l.logger.Debug("progress.push", "label", label, "depth", depth)
}

func (l *logIndicator) PopState() {
	l.mu.Lock()
	if len(l.labels) == 0 {
		l.mu.Unlock()
		return
	}
	last := len(l.labels) - 1
	label, start := l.labels[last], l.starts[last]
	l.labels, l.starts = l.labels[:last], l.starts[:last]
	l.mu.Unlock()
	l.logger.Debug("progress.pop", "label", label, "elapsed", time.Since(start))
}

func (l *logIndicator) IsCancelled() bool {
	return l.ctx.Err() != nil
}
