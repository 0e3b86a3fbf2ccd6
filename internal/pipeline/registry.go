package pipeline

import (
	"strings"
	"sync"

	"github.com/DeusData/codebase-inheritors/internal/fqn"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// classEntry is a resolvable class declaration.
type classEntry struct {
	ID    int64
	Label string
	QN    string
}

// ClassRegistry indexes the class declarations of several projects by
// qualified name and simple name for supertype resolution. Lookups honour the
// order in which projects were registered.
type ClassRegistry struct {
	mu    sync.RWMutex
	roots []string
	// exact maps project -> qualifiedName -> entry
	exact map[string]map[string]classEntry
	// byName maps project -> simpleName -> entries
	byName map[string]map[string][]classEntry
}

// NewClassRegistry creates an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		exact:  make(map[string]map[string]classEntry),
		byName: make(map[string]map[string][]classEntry),
	}
}

// Register adds a class node. Nodes of other labels are ignored.
func (r *ClassRegistry) Register(n *store.Node) {
	if !isClassLabel(n.Label) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exact[n.Project]; !ok {
		r.roots = append(r.roots, n.Project)
		r.exact[n.Project] = make(map[string]classEntry)
		r.byName[n.Project] = make(map[string][]classEntry)
	}
	e := classEntry{ID: n.ID, Label: n.Label, QN: n.QualifiedName}
	r.exact[n.Project][n.QualifiedName] = e
	if n.Name != "" {
		r.byName[n.Project][n.Name] = append(r.byName[n.Project][n.Name], e)
	}
}

// Resolve finds the declaration a supertype reference written in a file of
// package pkg points to, searching roots in order:
//  1. Exact qualified name (dotted nested names also match $-separated ones)
//  2. Import whose simple name matches
//  3. Same package
//  4. Single declaration with that simple name
func (r *ClassRegistry) Resolve(ref, pkg string, imports []string, roots []string) (classEntry, bool) {
	ref = cleanTypeRef(ref)
	if ref == "" {
		return classEntry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []string
	if strings.Contains(ref, ".") {
		candidates = append(candidates, nestedForms(ref)...)
	} else {
		for _, imp := range imports {
			if fqn.Short(imp) == ref {
				candidates = append(candidates, imp)
			}
		}
	}
	candidates = append(candidates, nestedForms(fqn.Join(pkg, ref))...)

	for _, qn := range candidates {
		for _, root := range roots {
			if e, ok := r.exact[root][qn]; ok {
				return e, true
			}
		}
	}

	simple := fqn.Short(ref)
	for _, root := range roots {
		if matches := r.byName[root][simple]; len(matches) == 1 {
			return matches[0], true
		}
	}
	return classEntry{}, false
}

// nestedForms returns qn followed by the variants where trailing dots are
// read as nested-class separators: a.B.C → a.B.C, a.B$C, a$B$C.
func nestedForms(qn string) []string {
	forms := []string{qn}
	cur := qn
	for {
		i := strings.LastIndexByte(cur[:indexOrLen(cur, '$')], '.')
		if i < 0 {
			return forms
		}
		cur = cur[:i] + "$" + cur[i+1:]
		forms = append(forms, cur)
	}
}

func indexOrLen(s string, b byte) int {
	if i := strings.IndexByte(s, b); i >= 0 {
		return i
	}
	return len(s)
}

// cleanTypeRef strips type arguments, call parentheses and array/nullable
// markers from a supertype reference.
func cleanTypeRef(ref string) string {
	if i := strings.IndexAny(ref, "<("); i >= 0 {
		ref = ref[:i]
	}
	return strings.TrimRight(strings.TrimSpace(ref), "?[] ")
}

func isClassLabel(label string) bool {
	for _, l := range store.ClassLabels {
		if l == label {
			return true
		}
	}
	return false
}
