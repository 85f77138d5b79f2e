// Package usecase contains application business logic.
package usecase

import "github.com/eliteGoblin/focusd/figpresence/internal/domain"

// DetectChange compares two successive samples by identity.
// Display names are ignored: a rename with a stable key is not a change,
// and two different files sharing a name are.
func DetectChange(previous, current *domain.FileState) domain.ChangeResult {
	switch {
	case previous == nil && current == nil:
		return domain.NoChange
	case previous == nil || current == nil:
		return domain.Changed
	case previous.Identity != current.Identity:
		return domain.Changed
	default:
		return domain.NoChange
	}
}
