// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// FileState describes the file open in the watched application.
// A nil *FileState means no active file or the application is not running.
type FileState struct {
	Identity     string `json:"identity"`               // Stable key (file key, or display name if none)
	DisplayName  string `json:"display_name"`           // Shown to the user
	ReferenceURL string `json:"reference_url,omitempty"` // Empty when the file has no link
}

// PrivacySettings controls how much of the current activity is broadcast.
type PrivacySettings struct {
	HideFilename bool `json:"hide_filename"`
	HideButtons  bool `json:"hide_buttons"`
	HideActivity bool `json:"hide_activity"`
}

// Settings is the user-owned preference set read by the sync engine every cycle.
type Settings struct {
	Enabled  bool            `json:"enabled"`
	Privacy  PrivacySettings `json:"privacy"`
	ClientID string          `json:"client_id,omitempty"` // Overrides the configured Discord client ID
}

// DefaultSettings returns the preferences used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{Enabled: true}
}

// Action is a clickable button attached to a presence.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PresencePayload is what gets broadcast to the presence channel.
type PresencePayload struct {
	Details   string
	State     string
	StartedAt time.Time
	Actions   []Action
}

// Equal reports whether two payloads carry the same visible content.
// StartedAt is a free-running session clock and is not compared.
func (p PresencePayload) Equal(other PresencePayload) bool {
	if p.Details != other.Details || p.State != other.State {
		return false
	}
	if len(p.Actions) != len(other.Actions) {
		return false
	}
	for i := range p.Actions {
		if p.Actions[i] != other.Actions[i] {
			return false
		}
	}
	return true
}

// ConnectionState is the lifecycle state of the presence channel connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ParseConnectionState is the inverse of ConnectionState.String.
func ParseConnectionState(s string) ConnectionState {
	switch s {
	case "connecting":
		return Connecting
	case "connected":
		return Connected
	default:
		return Disconnected
	}
}

// ChangeResult is the verdict of comparing two successive FileState samples.
type ChangeResult int

const (
	NoChange ChangeResult = iota
	Changed
)

func (c ChangeResult) String() string {
	if c == Changed {
		return "changed"
	}
	return "no_change"
}

// PublishResult classifies what happened to a publish request.
type PublishResult int

const (
	Sent PublishResult = iota
	SuppressedCooldown
	SuppressedDuplicate
	NotConnected
	Failed
)

func (r PublishResult) String() string {
	switch r {
	case Sent:
		return "sent"
	case SuppressedCooldown:
		return "suppressed_cooldown"
	case SuppressedDuplicate:
		return "suppressed_duplicate"
	case NotConnected:
		return "not_connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PublishOutcome captures the result of a single publish call.
type PublishOutcome struct {
	Result PublishResult
	Err    error // Set only when Result is Failed or NotConnected
}

// Suppressed reports whether the payload was filtered before reaching the channel.
func (o PublishOutcome) Suppressed() bool {
	return o.Result == SuppressedCooldown || o.Result == SuppressedDuplicate
}

// Credentials identify this application to the presence channel.
type Credentials struct {
	ClientID string
}

// ChannelEventKind is the type of an asynchronous channel notification.
type ChannelEventKind int

const (
	ChannelReady ChannelEventKind = iota
	ChannelDisconnected
)

func (k ChannelEventKind) String() string {
	if k == ChannelReady {
		return "ready"
	}
	return "disconnected"
}

// ChannelEvent is emitted by a BroadcastChannel outside of any request.
type ChannelEvent struct {
	Kind    ChannelEventKind
	Err     error  // Reason for a disconnect, if known
	Session uint64 // Connection the event belongs to; 0 means the current one
}

// StatusEntry is the daemon state persisted for the CLI status command.
type StatusEntry struct {
	Version         int        `json:"version"`
	PID             int        `json:"pid"`
	AppVersion      string     `json:"app_version,omitempty"`
	StartedAt       int64      `json:"started_at"`
	LastHeartbeat   int64      `json:"last_heartbeat"`
	ConnectionState string     `json:"connection_state"`
	CurrentFile     *FileState `json:"current_file,omitempty"`
	Enabled         bool       `json:"enabled"`
	LastPublish     string     `json:"last_publish,omitempty"` // PublishResult of the latest attempt
	LastPublishAt   int64      `json:"last_publish_at,omitempty"`
}
