package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codebase-inheritors/internal/progress"
	"github.com/DeusData/codebase-inheritors/internal/query"
)

// Search outcomes, as reported in logs and metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Engine runs inheritor searches against an Index. An Engine holds no
// per-search state and may serve concurrent searches.
type Engine struct {
	index    Index
	verifier Verifier
	logger   *slog.Logger
	factory  *query.Factory[Parameters, *Class]
}

// Option configures an Engine.
type Option func(*Engine)

// WithVerifier replaces the default DeclaredSupertypes verifier.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithLogger sets the logger used for search events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine over index.
func NewEngine(index Index, opts ...Option) *Engine {
	e := &Engine{
		index:    index,
		verifier: DeclaredSupertypes{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.factory = query.NewFactory[Parameters, *Class](e)
	return e
}

// Factory returns the query factory backed by this engine. Additional
// executors registered on it contribute to every query created afterwards.
func (e *Engine) Factory() *query.Factory[Parameters, *Class] {
	return e.factory
}

// Inheritors returns a lazy query over the inheritors described by params.
// Nothing runs until the query is consumed.
func (e *Engine) Inheritors(params Parameters) query.Query[*Class] {
	return e.factory.Create(params)
}

// Execute implements query.Executor.
func (e *Engine) Execute(ctx context.Context, params Parameters, p query.Processor[*Class]) (bool, error) {
	return e.Search(ctx, params, p)
}

// Search pushes every inheritor described by params into p.
//
// It returns (true, nil) when the hierarchy was exhausted and (false, nil)
// when p stopped the search. Cancellation returns an error wrapping
// progress.ErrCancelled.
func (e *Engine) Search(ctx context.Context, params Parameters, p query.Processor[*Class]) (bool, error) {
	if err := params.Validate(); err != nil {
		return false, err
	}
	if e.index == nil {
		return false, fmt.Errorf("%w: nil index", ErrInvalidParameters)
	}
	if p == nil {
		return false, fmt.Errorf("%w: nil processor", ErrInvalidParameters)
	}

	ctx, span := startSearchSpan(ctx, params)
	defer span.End()
	start := time.Now()

	s := &search{
		engine:  e,
		params:  params,
		emit:    p,
		visited: make(visitedSet),
		canon:   make(map[string]*Class),
	}
	var completed bool
	label := "Searching inheritors of " + params.Root().ShortName()
	err := progress.Run(ctx, label, func(ind progress.Indicator) error {
		s.ind = ind
		var runErr error
		completed, runErr = s.run(ctx)
		return runErr
	})

	outcome := OutcomeCompleted
	switch {
	case errors.Is(err, progress.ErrCancelled):
		outcome = OutcomeCancelled
	case err != nil:
		outcome = OutcomeFailed
	case !completed:
		outcome = OutcomeStopped
	}
	elapsed := time.Since(start)
	setSearchSpanResult(span, outcome, s.stats)
	recordSearchMetrics(ctx, outcome, elapsed, s.stats)
	e.logger.Debug("search.done",
		"root", params.Root().DisplayName(),
		"scope", params.Scope().String(),
		"outcome", outcome,
		"lookups", s.stats.lookups,
		"emitted", s.stats.emitted,
		"dropped", s.stats.dropped,
		"duplicates", s.stats.duplicates,
		"elapsed", elapsed,
	)
	if err != nil {
		return false, err
	}
	return completed, nil
}

// SearchAll runs independent searches concurrently, each with its own
// visited set, and collects their results in input order. A failure or
// cancellation of any search cancels the others; the classes found until
// then are returned along with the error.
func (e *Engine) SearchAll(ctx context.Context, params []Parameters) ([][]*Class, error) {
	results := make([][]*Class, len(params))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range params {
		g.Go(func() error {
			_, err := e.Inheritors(p).ForEach(gctx, func(c *Class) bool {
				results[i] = append(results[i], c)
				return true
			})
			if err != nil {
				return fmt.Errorf("search %s: %w", p.Root().DisplayName(), err)
			}
			return nil
		})
	}
	return results, g.Wait()
}

// search is the state of one top-level invocation. It is never shared.
type search struct {
	engine  *Engine
	params  Parameters
	ind     progress.Indicator
	emit    query.Processor[*Class]
	visited visitedSet
	// canon memoises canonical lookups by qualified name; a nil value means
	// the scope knows no representative.
	canon   map[string]*Class
	stopped bool
	stats   searchStats
}

// run expands classes depth-first from an explicit stack.
func (s *search) run(ctx context.Context) (bool, error) {
	root := s.params.Root()
	s.visited.add(root)
	stack := []*Class{root}

	for len(stack) > 0 {
		if err := progress.Check(ctx, s.ind); err != nil {
			return false, err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.expand(ctx, current)
		if err != nil {
			return false, err
		}
		if s.stopped {
			return false, nil
		}
		// first discovered child is expanded first
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return true, nil
}

// expand consults the index once for current and returns the candidates to
// expand next.
func (s *search) expand(ctx context.Context, current *Class) ([]*Class, error) {
	if current.Anonymous || current.Final {
		return nil, nil
	}
	s.stats.lookups++

	var (
		next  []*Class
		cbErr error
	)
	_, err := s.engine.index.DirectInheritors(ctx, current).ForEach(ctx, func(candidate *Class) bool {
		if cbErr = progress.Check(ctx, s.ind); cbErr != nil {
			return false
		}
		var recurse bool
		recurse, cbErr = s.accept(ctx, current, candidate)
		if cbErr != nil || s.stopped {
			return false
		}
		if recurse {
			next = append(next, candidate)
		}
		return true
	})
	if cbErr != nil {
		return nil, cbErr
	}
	if err != nil {
		return nil, lookupError("direct inheritors of "+current.DisplayName(), err)
	}
	return next, nil
}

// accept applies verification, dedup, scope filtering and canonicalization to
// one candidate, emitting it when it qualifies. It reports whether the
// candidate should be expanded. s.stopped is set when the processor stops.
func (s *search) accept(ctx context.Context, current, candidate *Class) (bool, error) {
	if candidate == nil {
		return false, nil
	}
	deep := s.params.CheckDeep()

	if s.params.CheckInheritance() || (deep && !candidate.Anonymous) {
		if !s.engine.verifier.IsInheritor(candidate, current) {
			s.stats.dropped++
			s.engine.logger.Debug("search.candidate.stale",
				"base", current.DisplayName(), "candidate", candidate.DisplayName(), "id", candidate.ID)
			return false, nil
		}
		if !s.visited.add(candidate) {
			return false, nil
		}
	}

	scope := s.params.Scope()
	if candidate.Anonymous {
		// anonymous classes cannot be subclassed: emit only
		if InScope(scope, candidate) {
			s.emitClass(candidate)
		}
		return false, nil
	}

	if InScope(scope, candidate) {
		duplicate, err := s.nonCanonical(ctx, candidate)
		if err != nil {
			return false, err
		}
		if duplicate {
			s.stats.duplicates++
		} else {
			s.emitClass(candidate)
			if s.stopped {
				return false, nil
			}
		}
	}
	return deep && !candidate.Final, nil
}

func (s *search) emitClass(c *Class) {
	s.stats.emitted++
	if !s.emit(c) {
		s.stopped = true
	}
}

// nonCanonical reports whether the scope resolves c's qualified name to a
// different declaration.
func (s *search) nonCanonical(ctx context.Context, c *Class) (bool, error) {
	if _, global := s.params.Scope().(*GlobalScope); !global || c.QualifiedName == "" {
		return false, nil
	}
	canon, seen := s.canon[c.QualifiedName]
	if !seen {
		var err error
		canon, err = Canonicalize(ctx, s.params.Scope(), c)
		if err != nil {
			return false, lookupError("canonical "+c.QualifiedName, err)
		}
		s.canon[c.QualifiedName] = canon
	}
	return canon != nil && !canon.Same(c), nil
}

// lookupError wraps an index or resolver failure, mapping context
// cancellation to progress.ErrCancelled.
func lookupError(what string, err error) error {
	if errors.Is(err, progress.ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", progress.ErrCancelled, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
