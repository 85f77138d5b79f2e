package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const settingsDBName = "settings.db"

// Setting keys accepted by SettingsDB.Set.
const (
	SettingEnabled      = "enabled"
	SettingHideFilename = "privacy.hide_filename"
	SettingHideButtons  = "privacy.hide_buttons"
	SettingHideActivity = "privacy.hide_activity"
	SettingClientID     = "discord.client_id"
)

// SettingKeys returns every accepted setting key, sorted.
func SettingKeys() []string {
	keys := []string{SettingEnabled, SettingHideFilename, SettingHideButtons, SettingHideActivity, SettingClientID}
	sort.Strings(keys)
	return keys
}

// SettingsDB implements domain.SettingsStore using a SQLCipher encrypted SQLite database.
type SettingsDB struct {
	db     *sql.DB
	dbPath string
}

// NewSettingsDB opens (or creates) the encrypted settings database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewSettingsDB(dataDir string, key []byte) (*SettingsDB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, settingsDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to settings database: %w", err)
	}

	s := &SettingsDB{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// OpenSettingsDB opens the settings database with the data dir's key file,
// creating the key on first use.
func OpenSettingsDB(dataDir string) (*SettingsDB, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, err
	}
	return NewSettingsDB(dataDir, key)
}

func (s *SettingsDB) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`)
	return err
}

// Load returns the stored preferences merged over domain.DefaultSettings.
func (s *SettingsDB) Load() (domain.Settings, error) {
	settings := domain.DefaultSettings()

	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return settings, err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return settings, err
		}
		// Rows that no longer parse are skipped; the default stays in effect
		_ = applySetting(&settings, k, v)
	}
	return settings, rows.Err()
}

// Set validates and stores a single preference.
func (s *SettingsDB) Set(key, value string) error {
	var probe domain.Settings
	if err := applySetting(&probe, key, value); err != nil {
		return err
	}
	value = normalizeSetting(key, value)

	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// Reset removes every stored preference.
func (s *SettingsDB) Reset() error {
	_, err := s.db.Exec(`DELETE FROM settings`)
	return err
}

// Path returns the database file path.
func (s *SettingsDB) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *SettingsDB) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func applySetting(settings *domain.Settings, key, value string) error {
	switch key {
	case SettingEnabled, SettingHideFilename, SettingHideButtons, SettingHideActivity:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("setting %s: %q is not a boolean", key, value)
		}
		switch key {
		case SettingEnabled:
			settings.Enabled = b
		case SettingHideFilename:
			settings.Privacy.HideFilename = b
		case SettingHideButtons:
			settings.Privacy.HideButtons = b
		case SettingHideActivity:
			settings.Privacy.HideActivity = b
		}
	case SettingClientID:
		id := strings.TrimSpace(value)
		for _, r := range id {
			if r < '0' || r > '9' {
				return fmt.Errorf("setting %s: client id must be numeric", key)
			}
		}
		settings.ClientID = id
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys(), ", "))
	}
	return nil
}

// SettingValues renders settings keyed like Set accepts them.
func SettingValues(settings domain.Settings) map[string]string {
	return map[string]string{
		SettingEnabled:      strconv.FormatBool(settings.Enabled),
		SettingHideFilename: strconv.FormatBool(settings.Privacy.HideFilename),
		SettingHideButtons:  strconv.FormatBool(settings.Privacy.HideButtons),
		SettingHideActivity: strconv.FormatBool(settings.Privacy.HideActivity),
		SettingClientID:     settings.ClientID,
	}
}

func normalizeSetting(key, value string) string {
	value = strings.TrimSpace(value)
	if key == SettingClientID {
		return value
	}
	b, _ := strconv.ParseBool(value)
	return strconv.FormatBool(b)
}

// Ensure SettingsDB implements domain.SettingsStore.
var _ domain.SettingsStore = (*SettingsDB)(nil)

// StoreSettingsProvider re-reads the settings store on every call and keeps
// serving the last good value when a read fails.
type StoreSettingsProvider struct {
	store  domain.SettingsStore
	logger *zap.Logger

	mu   sync.Mutex
	last domain.Settings
}

// NewStoreSettingsProvider creates a provider over store.
func NewStoreSettingsProvider(store domain.SettingsStore, logger *zap.Logger) *StoreSettingsProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSettingsProvider{
		store:  store,
		logger: logger,
		last:   domain.DefaultSettings(),
	}
}

// Current returns the stored settings.
func (p *StoreSettingsProvider) Current() domain.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	settings, err := p.store.Load()
	if err != nil {
		p.logger.Warn("failed to load settings, using last known", zap.Error(err))
		return p.last
	}
	p.last = settings
	return settings
}

var _ domain.SettingsProvider = (*StoreSettingsProvider)(nil)
