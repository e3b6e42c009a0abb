// Package dotdir manages the .chronos/ and ~/.chronos directories that hold
// the config file and the default SQLite database.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the chronos directory.
	dirName = ".chronos"

	// dbFile is the default SQLite database file inside the directory.
	dbFile = "chronos.db"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .chronos/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.chronos/ dir
//  3. Home ~/.chronos/ dir
//  4. If none found, attempt to create ~/.chronos/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chronos directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// DefaultDBPath resolves the default SQLite database path inside the
// resolved .chronos/ directory.
func (m *Manager) DefaultDBPath(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, dbFile), nil
}

// localDirExists checks whether a .chronos/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
