// Package dotdir resolves the .spyre/ directory that holds config.toml and,
// optionally, the prompt template file.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the spyre directory.
	dirName = ".spyre"

	// PromptsFile is the prompt template file looked up inside the directory.
	PromptsFile = "prompts.json"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .spyre/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.spyre/ dir
//  3. Home ~/.spyre/ dir
//
// When none of these exist, Target returns "" and callers fall back to
// defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating spyre directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if isDir(filepath.Join(cwd, dirName)) {
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if isDir(filepath.Join(home, dirName)) {
		return filepath.Join(home, dirName), nil
	}

	return "", nil
}

// Ensure is Target, but creates ~/.spyre/ when nothing else resolves.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating spyre directory %s: %w", dir, err)
	}

	return dir, nil
}

// PromptsPath returns the prompts.json inside the resolved directory, or ""
// when there is no directory or no such file.
func (m *Manager) PromptsPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return "", err
	}

	path := filepath.Join(dir, PromptsFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("checking %s: %w", path, err)
	}

	return path, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
