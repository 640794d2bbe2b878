// Package dotdir resolves the .ragstream/ and ~/.ragstream directories that
// hold the relay's config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the ragstream directory.
	dirName = ".ragstream"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .ragstream/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.ragstream/ dir
//  3. Home ~/.ragstream/ dir
//
// If none is found an empty path is returned.
func (m *Manager) Target(overrideDir string) (string, error) {
	switch {
	case overrideDir != "":
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating ragstream directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", nil
	}

	return dir, nil
}

// EnsureHome creates ~/.ragstream/ if needed and returns its absolute path.
func (m *Manager) EnsureHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating ragstream directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .ragstream/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
