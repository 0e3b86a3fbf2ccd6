package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/codebase-inheritors/internal/fqn"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

// ErrInvalidManifest is returned for manifests that parse but describe an
// unusable hierarchy.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest describes the class declarations of one project.
//
//	project: app
//	root: /src/app
//	dependencies: [lib]
//	files:
//	  - path: com/acme/Widget.java
//	    imports: [com.lib.Base]
//	    classes:
//	      - name: Widget
//	        supertypes: [Base, Runnable]
//	        anonymous:
//	          - supertypes: [Runnable]
type Manifest struct {
	Project      string         `yaml:"project"`
	Root         string         `yaml:"root,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty"`
	Files        []ManifestFile `yaml:"files,omitempty"`
}

// ManifestFile lists the classes declared in one source file.
type ManifestFile struct {
	Path    string      `yaml:"path"`
	Package string      `yaml:"package,omitempty"` // derived from Path when empty
	Imports []string    `yaml:"imports,omitempty"` // qualified names visible by simple name
	Classes []ClassDecl `yaml:"classes,omitempty"`
}

// ClassDecl is one class declaration. Nested and anonymous classes are
// declared inside their enclosing class.
type ClassDecl struct {
	Name       string      `yaml:"name,omitempty"`
	Kind       string      `yaml:"kind,omitempty"` // Class (default), Interface, Enum, Type
	Final      bool        `yaml:"final,omitempty"`
	Supertypes []string    `yaml:"supertypes,omitempty"`
	StartLine  int         `yaml:"start_line,omitempty"`
	EndLine    int         `yaml:"end_line,omitempty"`
	Nested     []ClassDecl `yaml:"nested,omitempty"`
	Anonymous  []ClassDecl `yaml:"anonymous,omitempty"`
}

// ParseManifest decodes and validates a manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReadManifest reads and parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteManifest validates m and encodes it as YAML to w.
func WriteManifest(w io.Writer, m *Manifest) error {
	if err := m.validate(); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

func (m *Manifest) validate() error {
	if m.Project == "" {
		return fmt.Errorf("%w: missing project", ErrInvalidManifest)
	}
	if slices.Contains(m.Dependencies, m.Project) {
		return fmt.Errorf("%w: project %s depends on itself", ErrInvalidManifest, m.Project)
	}
	for _, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: file without path", ErrInvalidManifest)
		}
		for _, c := range f.Classes {
			if err := c.validate(f.Path, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *ClassDecl) validate(path string, anonymous bool) error {
	if c.Name == "" && !anonymous {
		return fmt.Errorf("%w: %s: class without name", ErrInvalidManifest, path)
	}
	if c.Kind != "" && !slices.Contains(store.ClassLabels, c.Kind) {
		return fmt.Errorf("%w: %s: class %s has unknown kind %q", ErrInvalidManifest, path, c.Name, c.Kind)
	}
	for i := range c.Nested {
		if err := c.Nested[i].validate(path, false); err != nil {
			return err
		}
	}
	for i := range c.Anonymous {
		if err := c.Anonymous[i].validate(path, true); err != nil {
			return err
		}
	}
	return nil
}

// packageOf returns the file's declared package, or the one implied by its
// directory.
func (f *ManifestFile) packageOf() string {
	if f.Package != "" {
		return f.Package
	}
	return fqn.Prefix(fqn.FromPath(f.Path, ""))
}

// Nodes flattens the manifest into store nodes. Supertypes are kept as the
// base_classes property for edge resolution and verification.
func (m *Manifest) Nodes() []*store.Node {
	var out []*store.Node
	for i := range m.Files {
		f := &m.Files[i]
		pkg := f.packageOf()
		for j := range f.Classes {
			c := &f.Classes[j]
			out = m.appendClass(out, f, c, fqn.Join(pkg, c.Name), c.Name, false)
		}
	}
	return out
}

func (m *Manifest) appendClass(out []*store.Node, f *ManifestFile, c *ClassDecl, qn, name string, anonymous bool) []*store.Node {
	kind := c.Kind
	if kind == "" {
		kind = "Class"
	}
	bases := make([]any, 0, len(c.Supertypes))
	for _, s := range c.Supertypes {
		bases = append(bases, s)
	}
	out = append(out, &store.Node{
		Project:       m.Project,
		Label:         kind,
		Name:          name,
		QualifiedName: qn,
		FilePath:      f.Path,
		StartLine:     c.StartLine,
		EndLine:       c.EndLine,
		Properties: map[string]any{
			"base_classes": bases,
			"is_final":     c.Final,
			"is_anonymous": anonymous,
			"imports":      importsProp(f.Imports),
		},
	})
	for i := range c.Nested {
		n := &c.Nested[i]
		out = m.appendClass(out, f, n, fqn.Nested(qn, n.Name), n.Name, false)
	}
	for i := range c.Anonymous {
		// anonymous classes have no name of their own
		out = m.appendClass(out, f, &c.Anonymous[i], fqn.Anonymous(qn, i+1), "", true)
	}
	return out
}

func importsProp(imports []string) []any {
	out := make([]any, 0, len(imports))
	for _, s := range imports {
		out = append(out, s)
	}
	return out
}
