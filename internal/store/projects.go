package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Project represents a loaded project. Dependencies lists, in lookup order,
// the projects whose classes it may extend.
type Project struct {
	Name         string
	IndexedAt    string
	RootPath     string
	Dependencies []string
}

// UpsertProject creates or updates a project record.
func (s *Store) UpsertProject(name, rootPath string, deps []string) error {
	if deps == nil {
		deps = []string{}
	}
	b, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("marshal deps: %w", err)
	}
	_, err = s.q.Exec(`
		INSERT INTO projects (name, indexed_at, root_path, dependencies) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path,
			dependencies=excluded.dependencies`,
		name, Now(), rootPath, string(b))
	return err
}

// GetProject returns a project by name, or nil if it does not exist.
func (s *Store) GetProject(name string) (*Project, error) {
	row := s.q.QueryRow("SELECT name, indexed_at, root_path, dependencies FROM projects WHERE name=?", name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListProjects returns all loaded projects.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query("SELECT name, indexed_at, root_path, dependencies FROM projects ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ProjectDependencies returns the dependency list of a project. An unknown
// project has none.
func (s *Store) ProjectDependencies(name string) ([]string, error) {
	p, err := s.GetProject(name)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Dependencies, nil
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(name string) error {
	_, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	return err
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var deps string
	if err := row.Scan(&p.Name, &p.IndexedAt, &p.RootPath, &deps); err != nil {
		return nil, err
	}
	if deps != "" {
		if err := json.Unmarshal([]byte(deps), &p.Dependencies); err != nil {
			return nil, fmt.Errorf("project %s deps: %w", p.Name, err)
		}
	}
	return &p, nil
}

// UpsertFileHash stores a file's content hash.
func (s *Store) UpsertFileHash(project, relPath, hash string) error {
	_, err := s.q.Exec(`
		INSERT INTO file_hashes (project, rel_path, sha256) VALUES (?, ?, ?)
		ON CONFLICT(project, rel_path) DO UPDATE SET sha256=excluded.sha256`,
		project, relPath, hash)
	return err
}

// GetFileHashes returns all file hashes for a project.
func (s *Store) GetFileHashes(project string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT rel_path, sha256 FROM file_hashes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// DeleteFileHash deletes a single file hash entry.
func (s *Store) DeleteFileHash(project, relPath string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE project=? AND rel_path=?", project, relPath)
	return err
}
