package infra

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
	"github.com/eliteGoblin/focusd/figpresence/internal/policy"
)

// AppProbe samples the watched desktop app: is it running, and which file
// does its window title name.
type AppProbe struct {
	profile policy.AppProfile
	pm      domain.ProcessManager
	titles  WindowTitleReader
	recent  *RecentFilesResolver
	logger  *zap.Logger
}

// NewAppProbe creates a probe for profile. recent may be nil.
func NewAppProbe(
	profile policy.AppProfile,
	pm domain.ProcessManager,
	titles WindowTitleReader,
	recent *RecentFilesResolver,
	logger *zap.Logger,
) *AppProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppProbe{
		profile: profile,
		pm:      pm,
		titles:  titles,
		recent:  recent,
		logger:  logger,
	}
}

// Sample returns the open file, or nil when the app is not running.
// A running app whose title cannot be read reports a generic file.
func (p *AppProbe) Sample(ctx context.Context) *domain.FileState {
	pids := p.findPIDs()
	if len(pids) == 0 {
		return nil
	}

	titles, err := p.titles.Titles(ctx, pids)
	if err != nil {
		p.logger.Debug("failed to read window titles",
			zap.String("app", p.profile.ID()),
			zap.Error(err))
	}

	for _, title := range titles {
		name, ok := p.profile.ParseTitle(title)
		if !ok {
			continue
		}
		return p.fileState(name)
	}

	return &domain.FileState{
		Identity:     policy.GenericFileName,
		DisplayName:  policy.GenericFileName,
		ReferenceURL: p.profile.HomeURL(),
	}
}

func (p *AppProbe) findPIDs() []int {
	var pids []int
	for _, name := range p.profile.ProcessNames() {
		found, err := p.pm.FindByName(name)
		if err != nil {
			p.logger.Debug("process lookup failed", zap.String("name", name), zap.Error(err))
			continue
		}
		pids = append(pids, found...)
	}
	return pids
}

// fileState prefers the recent-files key as identity and link target.
func (p *AppProbe) fileState(name string) *domain.FileState {
	if p.recent != nil {
		if key, ok := p.recent.Resolve(name); ok {
			return &domain.FileState{
				Identity:     key,
				DisplayName:  name,
				ReferenceURL: p.profile.FileURL(key),
			}
		}
	}
	return &domain.FileState{
		Identity:     name,
		DisplayName:  name,
		ReferenceURL: p.profile.HomeURL(),
	}
}

// Ensure AppProbe implements domain.SourceStateProbe.
var _ domain.SourceStateProbe = (*AppProbe)(nil)
