package parser

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codebase-inheritors/internal/pipeline"
)

// ignoreDirs are directory names skipped while scanning sources.
var ignoreDirs = map[string]bool{
	"build": true, "out": true, "target": true, "bin": true,
	"node_modules": true, "vendor": true, "tmp": true,
}

// ScanJava parses every .java file under root and returns the manifest of
// project. Paths in the manifest are relative to root, slash-separated.
func ScanJava(ctx context.Context, root, project string, deps []string) (*pipeline.Manifest, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	files, err := discoverJava(abs)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("scan.discovered", "root", abs, "files", len(files))

	results := make([]*pipeline.ManifestFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			f, err := ExtractJava(rel, source)
			if err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &pipeline.Manifest{
		Project:      project,
		Root:         abs,
		Dependencies: deps,
	}
	classes := 0
	for _, f := range results {
		if len(f.Classes) == 0 {
			continue
		}
		classes += len(f.Classes)
		m.Files = append(m.Files, *f)
	}
	slog.Info("scan.done", "project", project, "files", len(m.Files), "top_level_classes", classes)
	return m, nil
}

// discoverJava returns the .java files under root, relative and sorted.
func discoverJava(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || ignoreDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".java" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
