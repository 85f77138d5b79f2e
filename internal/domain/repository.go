package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes whose executable name equals name,
	// case-insensitively and ignoring a ".exe" suffix.
	FindByName(name string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// Terminate asks a process to exit gracefully (SIGTERM).
	Terminate(pid int) error

	// Hangup sends SIGHUP; the daemon treats it as a reconnect request.
	Hangup(pid int) error
}

// SourceStateProbe samples the watched application.
// Failures are reported as nil, never as errors.
type SourceStateProbe interface {
	Sample(ctx context.Context) *FileState
}

// SettingsProvider returns the current user preferences.
// Called once per sync cycle; implementations must not block for long.
type SettingsProvider interface {
	Current() Settings
}

// BroadcastChannel is the transport to the presence service.
// Implementation: Discord local IPC socket.
type BroadcastChannel interface {
	// Open performs the handshake and returns once the channel is ready.
	Open(ctx context.Context, creds Credentials) error

	// Send replaces the broadcast presence.
	Send(ctx context.Context, payload PresencePayload) error

	// Clear removes the broadcast presence.
	Clear(ctx context.Context) error

	// Close tears down the connection. It does not emit ChannelDisconnected.
	Close() error

	// Events delivers unsolicited ready/disconnected notifications.
	// The same channel is returned for the lifetime of the BroadcastChannel.
	Events() <-chan ChannelEvent

	// Session identifies the live connection: it changes on every successful
	// Open and is 0 when nothing is open. Events carry the same value.
	Session() uint64
}

// SettingsStore persists user preferences.
// Implementation: SQLCipher encrypted SQLite database.
type SettingsStore interface {
	// Load returns the stored preferences merged over DefaultSettings.
	Load() (Settings, error)

	// Set stores a single preference by key (e.g. "privacy.hide_filename").
	Set(key, value string) error

	// Reset removes every stored preference.
	Reset() error

	// Close releases the database connection.
	Close() error
}

// StatusRegistry persists daemon status for the CLI.
// Implementation: JSON file written atomically in the data directory.
type StatusRegistry interface {
	// Write replaces the stored status.
	Write(entry StatusEntry) error

	// Read returns the stored status, or nil if there is none.
	Read() (*StatusEntry, error)

	// Clear removes the status file.
	Clear() error

	// Path returns the status file location.
	Path() string
}

// KeyProvider abstracts the source of the settings database key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// AutostartManager installs the daemon as a login item.
type AutostartManager interface {
	// Install writes and loads the login item for execPath.
	Install(execPath string) error

	// Uninstall unloads and removes the login item.
	Uninstall() error

	// IsInstalled checks if the login item exists.
	IsInstalled() bool

	// NeedsUpdate reports whether the installed item differs from the expected one.
	NeedsUpdate(execPath string) bool

	// Path returns the login item file path.
	Path() string
}
