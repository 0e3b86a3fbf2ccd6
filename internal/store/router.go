package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WorkspaceInfo holds metadata about a workspace database.
type WorkspaceInfo struct {
	Name     string   `json:"name"`
	DBPath   string   `json:"db_path"`
	Projects []string `json:"projects"`
}

// StoreRouter manages per-workspace SQLite databases. A workspace holds a
// project together with the dependencies its classes may extend, since
// inheritance edges cross project boundaries.
type StoreRouter struct {
	dir    string            // ~/.cache/codebase-inheritors/
	driver string            // DriverPure or DriverCGO
	stores map[string]*Store // workspace name → open Store (lazy)
	mu     sync.Mutex
}

// NewRouterWithDir creates a StoreRouter using a custom directory and driver.
func NewRouterWithDir(dir, driver string) (*StoreRouter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	if driver == "" {
		driver = DriverPure
	}
	if _, err := fileDSN(driver, ""); err != nil {
		return nil, err
	}
	return &StoreRouter{
		dir:    dir,
		driver: driver,
		stores: make(map[string]*Store),
	}, nil
}

func validWorkspaceName(name string) error {
	if name == "" || name == "*" || name == "all" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid workspace name: %q", name)
	}
	return nil
}

// ForWorkspace returns the Store for the given workspace, opening it lazily.
func (r *StoreRouter) ForWorkspace(name string) (*Store, error) {
	if err := validWorkspaceName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[name]; ok {
		return s, nil
	}

	s, err := OpenPathWithDriver(r.driver, r.dbPath(name))
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", name, err)
	}
	r.stores[name] = s
	return s, nil
}

func (r *StoreRouter) dbPath(name string) string {
	return filepath.Join(r.dir, name+".db")
}

// ListWorkspaces scans .db files and queries each for the projects it holds.
func (r *StoreRouter) ListWorkspaces() ([]*WorkspaceInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("readdir: %w", err)
	}

	result := make([]*WorkspaceInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".db")
		info := &WorkspaceInfo{
			Name:   name,
			DBPath: filepath.Join(r.dir, e.Name()),
		}

		s, err := r.ForWorkspace(name)
		if err != nil {
			slog.Warn("router.list.open", "workspace", name, "err", err)
		} else if projects, listErr := s.ListProjects(); listErr == nil {
			for _, p := range projects {
				info.Projects = append(info.Projects, p.Name)
			}
		}
		result = append(result, info)
	}
	return result, nil
}

// DeleteWorkspace closes the Store connection and removes the .db + WAL/SHM files.
func (r *StoreRouter) DeleteWorkspace(name string) error {
	if err := validWorkspaceName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[name]; ok {
		s.Close()
		delete(r.stores, name)
	}

	dbPath := r.dbPath(name)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := dbPath + suffix
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	slog.Info("router.delete", "workspace", name)
	return nil
}

// HasWorkspace checks if a .db file exists for the given workspace (without opening it).
func (r *StoreRouter) HasWorkspace(name string) bool {
	if validWorkspaceName(name) != nil {
		return false
	}
	_, err := os.Stat(r.dbPath(name))
	return err == nil
}

// Dir returns the cache directory path.
func (r *StoreRouter) Dir() string {
	return r.dir
}

// CloseAll closes all open Store connections.
func (r *StoreRouter) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, s := range r.stores {
		if err := s.Close(); err != nil {
			slog.Warn("router.close", "workspace", name, "err", err)
		}
	}
	r.stores = make(map[string]*Store)
}
