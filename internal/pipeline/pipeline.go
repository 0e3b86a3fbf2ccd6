package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codebase-inheritors/internal/store"
)

// Pipeline loads hierarchy manifests into a store: one pass for class
// declarations, one for supertype edges.
type Pipeline struct {
	ctx   context.Context
	Store *store.Store
	// Paths are manifest files or directories scanned for *.yaml / *.yml.
	Paths []string
	// KeepStaleEdges leaves the edges of reloaded projects in place instead of
	// rebuilding them, so the index may name classes that no longer extend
	// their recorded base.
	KeepStaleEdges bool
}

// Result summarises a pipeline run.
type Result struct {
	Loaded  []string `json:"loaded"`
	Skipped []string `json:"skipped"`
	Nodes   int      `json:"nodes"`
	Edges   int      `json:"edges"`
	// Pruned lists the project:file pairs reindexed from scratch during a
	// stale reload because declarations disappeared from them.
	Pruned []string `json:"pruned,omitempty"`
}

type manifestResult struct {
	Path     string
	Hash     string
	Manifest *Manifest
	Err      error
}

// New creates a new Pipeline.
func New(ctx context.Context, s *store.Store, paths ...string) *Pipeline {
	return &Pipeline{ctx: ctx, Store: s, Paths: paths}
}

// checkCancel returns ctx.Err() if the pipeline's context has been cancelled.
func (p *Pipeline) checkCancel() error {
	return p.ctx.Err()
}

// Run loads every manifest within a single transaction. Manifests whose
// content hash is unchanged since the last run are skipped.
func (p *Pipeline) Run() (*Result, error) {
	slog.Info("pipeline.start", "paths", len(p.Paths))

	files, err := DiscoverManifests(p.Paths)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "manifests", len(files))

	parsed, err := p.parseManifests(files)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(parsed))
	for _, r := range parsed {
		if r.Err != nil {
			return nil, r.Err
		}
		if prev, dup := seen[r.Manifest.Project]; dup {
			return nil, fmt.Errorf("%w: project %s declared by %s and %s", ErrInvalidManifest, r.Manifest.Project, prev, r.Path)
		}
		seen[r.Manifest.Project] = r.Path
	}

	result := &Result{}
	err = p.Store.WithTransaction(func(txStore *store.Store) error {
		origStore := p.Store
		p.Store = txStore
		defer func() { p.Store = origStore }()
		return p.runPasses(parsed, result)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("pipeline.done", "loaded", len(result.Loaded), "skipped", len(result.Skipped),
		"nodes", result.Nodes, "edges", result.Edges)
	return result, nil
}

// parseManifests hashes and parses manifests in parallel (no DB access).
func (p *Pipeline) parseManifests(files []string) ([]*manifestResult, error) {
	results := make([]*manifestResult, len(files))
	numWorkers := min(runtime.NumCPU(), max(len(files), 1))

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, path := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			r := &manifestResult{Path: path}
			r.Hash, r.Err = fileHash(path)
			if r.Err == nil {
				r.Manifest, r.Err = ReadManifest(path)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runPasses executes the declaration and inheritance passes (called within a
// transaction).
func (p *Pipeline) runPasses(parsed []*manifestResult, result *Result) error {
	var changed []*manifestResult
	for _, r := range parsed {
		m := r.Manifest
		prev, err := p.Store.GetProject(m.Project)
		if err != nil {
			return fmt.Errorf("get project %s: %w", m.Project, err)
		}
		if prev != nil && slices.Equal(prev.Dependencies, m.Dependencies) {
			hashes, err := p.Store.GetFileHashes(m.Project)
			if err != nil {
				return err
			}
			if hashes[r.Path] == r.Hash {
				slog.Info("pipeline.skip", "project", m.Project, "reason", "unchanged")
				result.Skipped = append(result.Skipped, m.Project)
				continue
			}
		}
		changed = append(changed, r)
	}
	if len(changed) == 0 {
		slog.Info("pipeline.noop", "reason", "no_changes")
		return nil
	}

	t := time.Now()
	for _, r := range changed {
		if err := p.checkCancel(); err != nil {
			return err
		}
		n, err := p.passDeclarations(r, result)
		if err != nil {
			return fmt.Errorf("declarations %s: %w", r.Manifest.Project, err)
		}
		result.Nodes += n
		result.Loaded = append(result.Loaded, r.Manifest.Project)
	}
	slog.Info("pass.timing", "pass", "declarations", "elapsed", time.Since(t))

	affected, err := p.affectedProjects(result.Loaded)
	if err != nil {
		return err
	}
	t = time.Now()
	for _, project := range affected {
		if err := p.checkCancel(); err != nil {
			return err
		}
		n, err := p.passInherits(project)
		if err != nil {
			return fmt.Errorf("inherits %s: %w", project, err)
		}
		result.Edges += n
	}
	slog.Info("pass.timing", "pass", "inherits", "elapsed", time.Since(t))

	for _, r := range changed {
		if err := p.recordHash(r); err != nil {
			return fmt.Errorf("file hash: %w", err)
		}
	}
	return nil
}

// recordHash stores the manifest hash of r's project and forgets hashes
// recorded under other paths: a project has one manifest, so those belong
// to a manifest that moved and must not match on a later run.
func (p *Pipeline) recordHash(r *manifestResult) error {
	project := r.Manifest.Project
	hashes, err := p.Store.GetFileHashes(project)
	if err != nil {
		return err
	}
	for path := range hashes {
		if path == r.Path {
			continue
		}
		slog.Info("pipeline.hash.forget", "project", project, "manifest", path)
		if err := p.Store.DeleteFileHash(project, path); err != nil {
			return err
		}
	}
	return p.Store.UpsertFileHash(project, r.Path, r.Hash)
}

// passDeclarations replaces a project's class nodes with the manifest's.
func (p *Pipeline) passDeclarations(r *manifestResult, result *Result) (int, error) {
	m := r.Manifest
	slog.Info("pass.declarations", "project", m.Project, "manifest", r.Path)

	root := m.Root
	if root == "" {
		root = filepath.Dir(r.Path)
	}
	if err := p.Store.UpsertProject(m.Project, root, m.Dependencies); err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	nodes := m.Nodes()
	if p.KeepStaleEdges {
		pruned, err := p.pruneVanished(m.Project, nodes)
		if err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
		for _, f := range pruned {
			result.Pruned = append(result.Pruned, m.Project+":"+f)
		}
		// upserts keep IDs by qualified name, so old edges still attach
		if _, err := p.Store.UpsertNodeBatch(nodes); err != nil {
			return 0, err
		}
		return len(nodes), nil
	}
	if err := p.Store.DeleteNodesByProject(m.Project); err != nil {
		return 0, fmt.Errorf("clear project: %w", err)
	}
	if _, err := p.Store.UpsertNodeBatch(nodes); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// pruneVanished deletes the stored classes of every file that is gone from
// the manifest or lost a declaration, edges included. Surviving classes of
// those files come back with the following upsert and get their edges from
// the inheritance pass; other files keep their stale edges.
func (p *Pipeline) pruneVanished(project string, nodes []*store.Node) ([]string, error) {
	declared := make(map[string]map[string]bool)
	for _, n := range nodes {
		if declared[n.FilePath] == nil {
			declared[n.FilePath] = make(map[string]bool)
		}
		declared[n.FilePath][n.QualifiedName] = true
	}

	stale := make(map[string]bool)
	for _, label := range store.ClassLabels {
		stored, err := p.Store.FindNodesByLabel(project, label)
		if err != nil {
			return nil, err
		}
		for _, n := range stored {
			if declared[n.FilePath] == nil {
				stale[n.FilePath] = true
			}
		}
	}
	for file, qns := range declared {
		stored, err := p.Store.FindNodesByFile(project, file)
		if err != nil {
			return nil, err
		}
		for _, n := range stored {
			if !qns[n.QualifiedName] {
				stale[file] = true
				break
			}
		}
	}

	files := slices.Sorted(maps.Keys(stale))
	for _, f := range files {
		slog.Info("pass.declarations.prune", "project", project, "file", f)
		if err := p.Store.DeleteNodesByFile(project, f); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// affectedProjects returns the loaded projects plus every stored project
// depending on one of them, directly or not. Their edges into reloaded
// projects were dropped along with the old nodes.
func (p *Pipeline) affectedProjects(loaded []string) ([]string, error) {
	all, err := p.Store.ListProjects()
	if err != nil {
		return nil, err
	}
	affected := slices.Clone(loaded)
	for grew := true; grew; {
		grew = false
		for _, proj := range all {
			if slices.Contains(affected, proj.Name) {
				continue
			}
			for _, dep := range proj.Dependencies {
				if slices.Contains(affected, dep) {
					affected = append(affected, proj.Name)
					grew = true
					break
				}
			}
		}
	}
	return affected, nil
}

// DiscoverManifests expands directories into their manifest files, sorted.
// Hidden directories are skipped.
func DiscoverManifests(paths []string) ([]string, error) {
	var out []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, filepath.Clean(root))
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
