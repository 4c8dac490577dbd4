// Package storage manages job working directories and, optionally, S3
// publication of finished artifacts. Every job owns one directory under the
// workspace root; directories are never shared between jobs and are removed
// by the TTL sweep.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace owns the root working directory for all jobs.
type Workspace struct {
	root string
}

// NewWorkspace creates a Workspace rooted at root, creating it if needed.
// If root is empty, a directory under os.TempDir is used.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "videoapi")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("storage: create workspace root: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root path.
func (w *Workspace) Root() string {
	return w.root
}

// Create allocates the working directory for a job and returns its path.
func (w *Workspace) Create(jobID string) (string, error) {
	dir := filepath.Join(w.root, jobID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("storage: create job directory: %w", err)
	}
	return dir, nil
}

// Remove deletes a job's working directory and everything in it.
func (w *Workspace) Remove(jobID string) error {
	if err := os.RemoveAll(filepath.Join(w.root, jobID)); err != nil {
		return fmt.Errorf("storage: remove job directory: %w", err)
	}
	return nil
}
