package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTypeRef(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"java.util.List<String>", "java.util.List"},
		{"  Base ", "Base"},
		{"Outer$Inner", "Outer.Inner"},
		{"Foo[]", "Foo"},
		{"Bar?", "Bar"},
		{"Map<K, V>", "Map"},
		{"Base(args)", "Base"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeTypeRef(tt.in), "normalizeTypeRef(%q)", tt.in)
	}
}

func TestDeclaredSupertypes(t *testing.T) {
	base := &Class{ID: 1, Name: "Base", QualifiedName: "com.acme.Base"}
	inner := &Class{ID: 2, Name: "Inner", QualifiedName: "com.acme.Outer$Inner"}
	nameless := &Class{ID: 3, Name: "Widget"}

	tests := []struct {
		name   string
		supers []string
		base   *Class
		want   bool
	}{
		{"qualified", []string{"com.acme.Base"}, base, true},
		{"simple", []string{"Base"}, base, true},
		{"generic", []string{"Base<T>"}, base, true},
		{"second supertype", []string{"Runnable", "acme.Base"}, base, true},
		{"other package", []string{"org.other.Base"}, base, false},
		{"prefix is not a match", []string{"MyBase"}, base, false},
		{"no supertypes", nil, base, false},
		{"nested dotted", []string{"Outer.Inner"}, inner, true},
		{"nested dollar", []string{"com.acme.Outer$Inner"}, inner, true},
		{"nameless base by simple name", []string{"ui.Widget"}, nameless, true},
		{"nameless base mismatch", []string{"Gadget"}, nameless, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := &Class{ID: 100, Supertypes: tt.supers}
			assert.Equal(t, tt.want, DeclaredSupertypes{}.IsInheritor(cand, tt.base))
		})
	}
}

func TestDeclaredSupertypesResolvesInCandidateContext(t *testing.T) {
	base := &Class{ID: 1, Name: "Base", QualifiedName: "com.lib.Base"}
	color := &Class{ID: 2, Name: "Color", QualifiedName: "com.app.Widget$Color"}

	tests := []struct {
		name    string
		pkg     string
		imports []string
		supers  []string
		base    *Class
		want    bool
	}{
		{"import binds simple name", "com.app", []string{"com.lib.Base"}, []string{"Base"}, base, true},
		{"import of another Base", "com.app", []string{"com.other.Base"}, []string{"Base"}, base, false},
		{"import binds outer of nested ref", "com.app", []string{"com.other.Outer"}, []string{"Outer.Base"}, base, false},
		{"qualified ignores imports", "com.app", []string{"com.other.Base"}, []string{"com.lib.Base"}, base, true},
		{"same package", "com.lib", nil, []string{"Base"}, base, true},
		{"nested in own package", "com.app", nil, []string{"Widget.Color"}, color, true},
		{"unbound simple name", "com.app", []string{"java.util.List"}, []string{"Base"}, base, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := &Class{ID: 100, Root: "app", Package: tt.pkg, Imports: tt.imports, Supertypes: tt.supers}
			assert.Equal(t, tt.want, DeclaredSupertypes{}.IsInheritor(cand, tt.base))
		})
	}
}

func TestDeclaredSupertypesPackageShadowing(t *testing.T) {
	base := &Class{ID: 1, Name: "Base", QualifiedName: "com.lib.Base"}
	cand := &Class{ID: 2, Root: "app", Package: "com.app", Supertypes: []string{"Base"}}

	var asked []string
	v := DeclaredSupertypes{Declares: func(root, qn string) bool {
		asked = append(asked, root+":"+qn)
		return qn == "com.app.Base"
	}}
	assert.False(t, v.IsInheritor(cand, base))
	assert.Equal(t, []string{"app:com.app.Base"}, asked)

	v.Declares = func(string, string) bool { return false }
	assert.True(t, v.IsInheritor(cand, base))
}

func TestDeclaredSupertypesRejectsSelfAndNil(t *testing.T) {
	base := &Class{ID: 1, QualifiedName: "com.Base", Supertypes: []string{"com.Base"}}
	v := DeclaredSupertypes{}
	assert.False(t, v.IsInheritor(base, base))
	assert.False(t, v.IsInheritor(nil, base))
	assert.False(t, v.IsInheritor(base, nil))
}

func TestWithVerifierOverridesDefault(t *testing.T) {
	idx := newFakeIndex()
	a := cls("com.A")
	idx.link(a, cls("com.B", "Unrelated"))

	trusting := VerifierFunc(func(*Class, *Class) bool { return true })
	found, err := collectErr(NewEngine(idx, WithVerifier(trusting)), NewParameters(a, NewGlobalScope(nil), true, true))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func collectErr(e *Engine, p Parameters) ([]*Class, error) {
	var out []*Class
	_, err := e.Search(context.Background(), p, func(c *Class) bool {
		out = append(out, c)
		return true
	})
	return out, err
}
