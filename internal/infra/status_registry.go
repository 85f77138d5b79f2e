package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// StatusFileName is the status file name inside the data directory.
const StatusFileName = "status.json"

// statusVersion is bumped when StatusEntry changes incompatibly.
const statusVersion = 1

// FileStatusRegistry implements domain.StatusRegistry using a JSON file.
// Only the daemon writes it; CLI commands read it.
type FileStatusRegistry struct {
	path string
}

// NewFileStatusRegistry creates a registry in dataDir.
func NewFileStatusRegistry(dataDir string) *FileStatusRegistry {
	return &FileStatusRegistry{path: filepath.Join(dataDir, StatusFileName)}
}

// NewFileStatusRegistryWithPath creates a registry at a specific path (for testing).
func NewFileStatusRegistryWithPath(path string) *FileStatusRegistry {
	return &FileStatusRegistry{path: path}
}

// Path returns the status file path.
func (r *FileStatusRegistry) Path() string {
	return r.path
}

// Write replaces the stored status.
func (r *FileStatusRegistry) Write(entry domain.StatusEntry) error {
	if entry.Version == 0 {
		entry.Version = statusVersion
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create status dir: %w", err)
	}
	return r.atomicWrite(&entry)
}

// Read returns the stored status, or nil if the daemon never wrote one.
func (r *FileStatusRegistry) Read() (*domain.StatusEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.StatusEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt status file %s: %w", r.path, err)
	}
	return &entry, nil
}

// Clear removes the status file. A missing file is not an error.
func (r *FileStatusRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the status to file atomically (write + rename).
func (r *FileStatusRegistry) atomicWrite(entry *domain.StatusEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileStatusRegistry implements domain.StatusRegistry.
var _ domain.StatusRegistry = (*FileStatusRegistry)(nil)
