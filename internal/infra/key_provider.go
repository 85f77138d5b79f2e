package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

const (
	settingsKeyFile = "settings.key"
	settingsKeySize = 32 // SQLCipher raw key
)

// FileKeyProvider keeps the settings database key hex-encoded in an
// owner-only file next to the database.
type FileKeyProvider struct {
	path string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{path: filepath.Join(dataDir, settingsKeyFile)}
}

// Path returns the key file location.
func (p *FileKeyProvider) Path() string {
	return p.path
}

// GetKey reads the key. A key file readable by others is tightened to 0600.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings key: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(p.path, 0600); err != nil {
			return nil, fmt.Errorf("failed to restrict settings key permissions: %w", err)
		}
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("settings key %s is not hex: %w", p.path, err)
	}
	if err := checkKeySize(key); err != nil {
		return nil, err
	}
	return key, nil
}

// StoreKey replaces the key file atomically.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp := fmt.Sprintf("%s.%d.tmp", p.path, os.Getpid())
	if err := os.WriteFile(tmp, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write settings key: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings key: %w", err)
	}
	return nil
}

// KeyExists reports whether a key file is present.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.path)
	return !errors.Is(err, os.ErrNotExist)
}

func checkKeySize(key []byte) error {
	if len(key) != settingsKeySize {
		return fmt.Errorf("invalid settings key size: got %d, want %d", len(key), settingsKeySize)
	}
	return nil
}

// GenerateKey returns a new random settings key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, settingsKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate settings key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, creating one on first use.
// An existing but unreadable key is an error, never replaced: the database
// it encrypts would become unreadable.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
