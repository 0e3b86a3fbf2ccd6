package parser

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codebase-inheritors/internal/classindex"
	"github.com/DeusData/codebase-inheritors/internal/hierarchy"
	"github.com/DeusData/codebase-inheritors/internal/pipeline"
	"github.com/DeusData/codebase-inheritors/internal/query"
	"github.com/DeusData/codebase-inheritors/internal/store"
)

const widgetSource = `package com.acme;

import com.lib.Base;
import java.util.*;
import static java.util.Collections.emptyList;

public class Widget extends Base implements Runnable, Comparable<Widget> {
    static final class Inner extends Widget {}

    public void run() {
        Runnable r = new Runnable() {
            public void run() {}
        };
        helper(new Widget() {});
    }

    enum Color {
        RED,
        GREEN { int shade() { return 1; } };
        int shade() { return 0; }
    }
}

interface Shape extends java.io.Serializable, Comparable<Shape> {}

record Point(int x, int y) implements Shape {}
`

func TestParseJava(t *testing.T) {
	tree, err := Parse([]byte(widgetSource))
	if err != nil {
		t.Fatalf("Parse Java: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		t.Fatal("root node is nil")
	}
	var classCount int
	Walk(root, func(n *tree_sitter.Node) bool {
		if n.Kind() == "class_declaration" {
			classCount++
		}
		return true
	})
	if classCount != 2 {
		t.Errorf("expected 2 class_declarations, got %d", classCount)
	}
}

func findClass(classes []pipeline.ClassDecl, name string) *pipeline.ClassDecl {
	for i := range classes {
		if classes[i].Name == name {
			return &classes[i]
		}
	}
	return nil
}

func TestExtractJava(t *testing.T) {
	f, err := ExtractJava("com/acme/Widget.java", []byte(widgetSource))
	if err != nil {
		t.Fatal(err)
	}
	if f.Package != "com.acme" {
		t.Errorf("package = %q", f.Package)
	}
	if !slices.Equal(f.Imports, []string{"com.lib.Base"}) {
		t.Errorf("imports = %v", f.Imports)
	}
	if len(f.Classes) != 3 {
		t.Fatalf("expected 3 top-level types, got %d", len(f.Classes))
	}

	widget := findClass(f.Classes, "Widget")
	if widget == nil {
		t.Fatal("Widget not extracted")
	}
	if widget.Final || widget.Kind != "" {
		t.Errorf("Widget kind=%q final=%v", widget.Kind, widget.Final)
	}
	if !slices.Equal(widget.Supertypes, []string{"Base", "Runnable", "Comparable<Widget>"}) {
		t.Errorf("Widget supertypes = %v", widget.Supertypes)
	}
	if widget.StartLine != 7 {
		t.Errorf("Widget start line = %d", widget.StartLine)
	}

	inner := findClass(widget.Nested, "Inner")
	if inner == nil || !inner.Final || !slices.Equal(inner.Supertypes, []string{"Widget"}) {
		t.Errorf("Inner = %+v", inner)
	}

	if len(widget.Anonymous) != 2 {
		t.Fatalf("expected 2 anonymous classes, got %d", len(widget.Anonymous))
	}
	if widget.Anonymous[0].Supertypes[0] != "Runnable" || widget.Anonymous[1].Supertypes[0] != "Widget" {
		t.Errorf("anonymous supertypes = %v, %v", widget.Anonymous[0].Supertypes, widget.Anonymous[1].Supertypes)
	}

	color := findClass(widget.Nested, "Color")
	if color == nil || color.Kind != "Enum" {
		t.Fatalf("Color = %+v", color)
	}
	if color.Final {
		t.Error("enum with constant bodies must not be final")
	}
	if len(color.Anonymous) != 1 || color.Anonymous[0].Supertypes[0] != "Widget.Color" {
		t.Errorf("Color anonymous = %+v", color.Anonymous)
	}

	shape := findClass(f.Classes, "Shape")
	if shape == nil || shape.Kind != "Interface" {
		t.Fatalf("Shape = %+v", shape)
	}
	if !slices.Equal(shape.Supertypes, []string{"java.io.Serializable", "Comparable<Shape>"}) {
		t.Errorf("Shape supertypes = %v", shape.Supertypes)
	}

	point := findClass(f.Classes, "Point")
	if point == nil || !point.Final || !slices.Equal(point.Supertypes, []string{"Shape"}) {
		t.Errorf("Point = %+v", point)
	}
}

func TestExtractJavaPlainEnumIsFinal(t *testing.T) {
	f, err := ExtractJava("Level.java", []byte("enum Level { LOW, HIGH }\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Classes) != 1 || !f.Classes[0].Final || f.Classes[0].Kind != "Enum" {
		t.Errorf("Level = %+v", f.Classes)
	}
}

func TestExtractJavaToleratesSyntaxErrors(t *testing.T) {
	f, err := ExtractJava("Broken.java", []byte("package p;\nclass Ok extends Base {}\nclass Broken { void f() { int x = ; } }\n"))
	if err != nil {
		t.Fatal(err)
	}
	if findClass(f.Classes, "Ok") == nil {
		t.Errorf("expected Ok to survive the syntax error, got %+v", f.Classes)
	}
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverJavaSkipsIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "src/A.java", "class A {}")
	writeSource(t, root, "build/B.java", "class B {}")
	writeSource(t, root, ".git/C.java", "class C {}")
	writeSource(t, root, "src/notes.txt", "")

	files, err := discoverJava(root)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(files, []string{"src/A.java"}) {
		t.Errorf("files = %v", files)
	}
}

func TestScanJavaLoadsIntoStore(t *testing.T) {
	libRoot := t.TempDir()
	writeSource(t, libRoot, "com/lib/Base.java", "package com.lib;\npublic abstract class Base {}\n")
	appRoot := t.TempDir()
	writeSource(t, appRoot, "com/app/Widget.java", `package com.app;
import com.lib.Base;
public class Widget extends Base {
    void f() { Runnable r = new Runnable() { public void run() {} }; }
}
`)
	writeSource(t, appRoot, "com/app/Button.java", "package com.app;\npublic final class Button extends Widget {}\n")

	ctx := context.Background()
	manifests := t.TempDir()
	for _, p := range []struct {
		root, project string
		deps          []string
	}{
		{libRoot, "lib", nil},
		{appRoot, "app", []string{"lib"}},
	} {
		m, err := ScanJava(ctx, p.root, p.project, p.deps)
		if err != nil {
			t.Fatalf("scan %s: %v", p.project, err)
		}
		var buf bytes.Buffer
		if err := pipeline.WriteManifest(&buf, m); err != nil {
			t.Fatal(err)
		}
		if _, err := pipeline.ParseManifest(buf.Bytes()); err != nil {
			t.Fatalf("written manifest does not parse: %v\n%s", err, buf.String())
		}
		if err := os.WriteFile(filepath.Join(manifests, p.project+".yaml"), buf.Bytes(), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := pipeline.New(ctx, s, manifests).Run(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ix := classindex.New(s)
	base, err := ix.Lookup(ctx, "lib", "com.lib.Base")
	if err != nil || base == nil {
		t.Fatalf("lookup Base: %v", err)
	}
	scope, err := ix.GlobalScopeFor(ctx, "app")
	if err != nil {
		t.Fatal(err)
	}
	engine := hierarchy.NewEngine(ix)
	found, err := query.ToSlice(ctx, engine.Inheritors(hierarchy.NewParameters(base, scope, true, false)))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range found {
		names = append(names, c.QualifiedName)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"com.app.Button", "com.app.Widget"}) {
		t.Errorf("inheritors = %v", names)
	}
}
