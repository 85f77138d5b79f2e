package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// Labels holds the fixed strings a presence is made of.
type Labels struct {
	IdleDetails    string
	IdleState      string
	HiddenDetails  string // Replaces the file name when HideFilename is set
	ActivityState  string
	HiddenActivity string // Generic state used when HideActivity is set
	ViewAction     string
}

// DefaultLabels returns the app-neutral label set.
func DefaultLabels() Labels {
	return Labels{
		IdleDetails:    "Idle",
		IdleState:      "Not working on any file",
		HiddenDetails:  "Working on a file",
		ActivityState:  "Designing",
		HiddenActivity: "Working",
		ViewAction:     "View",
	}
}

// PresenceBuilder maps a FileState and privacy settings to a payload.
type PresenceBuilder struct {
	labels Labels
}

// NewPresenceBuilder creates a builder using the given labels.
func NewPresenceBuilder(labels Labels) *PresenceBuilder {
	return &PresenceBuilder{labels: labels}
}

// Build returns the payload for fs. sessionStart is the start of the current
// channel session and is copied through unchanged.
func (b *PresenceBuilder) Build(fs *domain.FileState, privacy domain.PrivacySettings, sessionStart time.Time) domain.PresencePayload {
	if fs == nil {
		return domain.PresencePayload{
			Details:   b.labels.IdleDetails,
			State:     b.labels.IdleState,
			StartedAt: sessionStart,
			Actions:   []domain.Action{},
		}
	}

	details := fs.DisplayName
	if privacy.HideFilename {
		details = b.labels.HiddenDetails
	}

	state := b.labels.ActivityState
	if privacy.HideActivity {
		state = b.labels.HiddenActivity
	}

	actions := []domain.Action{}
	if !privacy.HideButtons && fs.ReferenceURL != "" {
		actions = append(actions, domain.Action{Label: b.labels.ViewAction, URL: fs.ReferenceURL})
	}

	return domain.PresencePayload{
		Details:   details,
		State:     state,
		StartedAt: sessionStart,
		Actions:   actions,
	}
}
