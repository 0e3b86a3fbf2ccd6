package hierarchy

import "strings"

// Verifier independently checks that candidate names base as a direct
// supertype. It guards against stale or over-approximating index entries.
type Verifier interface {
	IsInheritor(candidate, base *Class) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(candidate, base *Class) bool

// IsInheritor calls f.
func (f VerifierFunc) IsInheritor(candidate, base *Class) bool { return f(candidate, base) }

// DeclaredSupertypes checks the candidate's declared supertype list against
// the base, non-transitively. Each name is resolved in the candidate's own
// context: an import binding its leading segment, then the fully qualified
// name, then the candidate's package.
type DeclaredSupertypes struct {
	// Declares reports whether root declares a class with the qualified
	// name. A declaration in the candidate's package shadows any other class
	// of the same simple name. Nil means only imports shadow.
	Declares func(root, qualifiedName string) bool
}

// IsInheritor reports whether one of candidate.Supertypes refers to base.
func (v DeclaredSupertypes) IsInheritor(candidate, base *Class) bool {
	if candidate == nil || base == nil || candidate.Same(base) {
		return false
	}
	for _, raw := range candidate.Supertypes {
		if v.refersTo(normalizeTypeRef(raw), candidate, base) {
			return true
		}
	}
	return false
}

// normalizeTypeRef strips generic arguments, array and nullability suffixes
// and turns nested-class separators into dots.
// "java.util.List<String>" -> "java.util.List", "Outer$Inner" -> "Outer.Inner"
func normalizeTypeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "<("); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "?[] \t")
	return strings.ReplaceAll(ref, "$", ".")
}

func (v DeclaredSupertypes) refersTo(ref string, candidate, base *Class) bool {
	if ref == "" {
		return false
	}
	qn := strings.ReplaceAll(base.QualifiedName, "$", ".")
	if qn == "" {
		return base.Name != "" && (ref == base.Name || strings.HasSuffix(ref, "."+base.Name))
	}

	head, rest := ref, ""
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		head, rest = ref[:i], ref[i:]
	}
	for _, imp := range candidate.Imports {
		imp = strings.ReplaceAll(imp, "$", ".")
		if imp[strings.LastIndexByte(imp, '.')+1:] == head {
			return imp+rest == qn
		}
	}
	if ref == qn {
		return true
	}
	if candidate.Package != "" {
		if candidate.Package+"."+ref == qn {
			return true
		}
		if v.Declares != nil && v.Declares(candidate.Root, candidate.Package+"."+head) {
			return false
		}
	}
	// simple or partially qualified name left to a wildcard import or a
	// unique declaration elsewhere
	return strings.HasSuffix(qn, "."+ref)
}
