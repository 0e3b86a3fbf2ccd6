// Package hierarchy searches a class hierarchy for every (transitive)
// inheritor of a base class.
//
// The search asks an Index for one level of direct inheritors at a time,
// re-verifies index candidates, deduplicates by declaration identity, filters
// by scope and emits accepted classes to a query.Processor. The result is
// exposed as a lazy query.Query.
package hierarchy

import (
	"context"
	"errors"

	"github.com/DeusData/codebase-inheritors/internal/query"
)

// Class kinds as stored in the symbol table.
const (
	KindClass     = "Class"
	KindInterface = "Interface"
	KindEnum      = "Enum"
	KindType      = "Type"
)

// ErrInvalidParameters is returned when a search is started with a missing
// root, scope, index or processor. It signals a caller bug.
var ErrInvalidParameters = errors.New("invalid search parameters")

// Class is a handle to one class declaration in the symbol table.
//
// Identity is the declaration ID. Two declarations living in different roots
// may share a qualified name and are still different classes.
type Class struct {
	ID            int64
	Root          string
	Name          string
	QualifiedName string
	FilePath      string
	Kind          string
	Anonymous     bool
	Final         bool
	Supertypes    []string

	// Package and Imports give the context the declared supertype names are
	// written in. Both may be empty when the symbol table does not know them.
	Package string
	Imports []string
}

// Same reports whether c and o denote the same declaration.
func (c *Class) Same(o *Class) bool {
	return c != nil && o != nil && c.ID == o.ID
}

// DisplayName returns the qualified name, falling back to the simple name and
// then to a placeholder.
func (c *Class) DisplayName() string {
	switch {
	case c == nil:
		return "<unnamed class>"
	case c.QualifiedName != "":
		return c.QualifiedName
	case c.Name != "":
		return c.Name
	default:
		return "<unnamed class>"
	}
}

// ShortName returns the simple name, falling back to DisplayName.
func (c *Class) ShortName() string {
	if c != nil && c.Name != "" {
		return c.Name
	}
	return c.DisplayName()
}

// Index returns the direct inheritors of a class: declarations naming it as an
// immediate supertype. Results are unordered, may include stale entries and
// may miss declarations that are not indexed yet.
type Index interface {
	DirectInheritors(ctx context.Context, c *Class) query.Query[*Class]
}

// CanonicalResolver returns the declaration a global scope treats as
// authoritative for a qualified name, or nil when it knows none.
type CanonicalResolver interface {
	ResolveCanonical(ctx context.Context, qualifiedName string, scope *GlobalScope) (*Class, error)
}

// visitedSet tracks declarations already accepted by one search invocation.
type visitedSet map[int64]struct{}

// add inserts c and reports whether it was absent.
func (v visitedSet) add(c *Class) bool {
	if _, ok := v[c.ID]; ok {
		return false
	}
	v[c.ID] = struct{}{}
	return true
}
