// Package storage confines file operations to a fixed directory tree.
// Paths read back from session manifests pass through a Sandbox before
// deletion, so a damaged or hand-edited manifest cannot reach files
// outside the recording root.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox resolves relative paths against a root directory and refuses
// any path that would land outside it.
type Sandbox struct {
	root string
}

// NewSandbox roots a sandbox at dir, creating the directory when missing.
func NewSandbox(dir string) (*Sandbox, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	return &Sandbox{root: root}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve turns a root-relative path into an absolute one. Absolute
// inputs and paths that climb out through ".." are rejected.
func (s *Sandbox) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q escapes %s: absolute path", rel, s.root)
	}
	abs := filepath.Join(s.root, rel)
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, s.root)
	}
	return abs, nil
}

// Stat stats a path inside the root.
func (s *Sandbox) Stat(rel string) (os.FileInfo, error) {
	abs, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(abs)
}

// Remove deletes a file inside the root. A path that is already gone is
// not an error.
func (s *Sandbox) Remove(rel string) error {
	abs, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
