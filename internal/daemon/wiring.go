package daemon

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/config"
	"github.com/eliteGoblin/focusd/figpresence/internal/discord"
	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
	"github.com/eliteGoblin/focusd/figpresence/internal/metrics"
	"github.com/eliteGoblin/focusd/figpresence/internal/policy"
	"github.com/eliteGoblin/focusd/figpresence/internal/usecase"
)

// Components is the assembled daemon.
type Components struct {
	Service  *Service
	Engine   *usecase.Engine
	Profile  policy.AppProfile
	Settings *infra.StoreSettingsProvider
}

// Build assembles the production daemon from cfg.
// The returned service owns the settings database and closes it on exit.
func Build(cfg *config.Config, version string, logger *zap.Logger) (*Components, error) {
	profile, err := policy.NewRegistry().Lookup(cfg.App)
	if err != nil {
		return nil, err
	}
	paths := infra.ResolvePaths(cfg.DataDir)

	store, err := infra.OpenSettingsDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	settings := infra.NewStoreSettingsProvider(store, logger)

	pm := infra.NewProcessManager()
	titles := infra.NewWindowTitleReader(&infra.RealCommandRunner{})
	recent := infra.NewRecentFilesResolver(profile.RecentFilesDir(paths.UserConfigDir), cfg.RecentFilesTTL, logger)
	probe := infra.NewAppProbe(profile, pm, titles, recent, logger)

	client := discord.NewClient(discord.Options{SocketDir: cfg.Discord.SocketDir}, logger)
	publisher := usecase.NewPublisher(cfg.PublisherConfig(), client, Credentials(cfg, settings), logger)
	builder := usecase.NewPresenceBuilder(LabelsFor(profile))
	engine := usecase.NewEngine(cfg.EngineConfig(), probe, settings, publisher, builder, client.Events(), logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := NewService(ServiceConfig{
		HeartbeatInterval: cfg.HeartbeatInterval,
		MetricsAddr:       cfg.MetricsAddr,
		AppVersion:        version,
	}, engine, infra.NewFileStatusRegistry(cfg.DataDir), settings, pm, metrics.New(reg), reg, logger)
	service.AddCloser(store)

	return &Components{
		Service:  service,
		Engine:   engine,
		Profile:  profile,
		Settings: settings,
	}, nil
}

// Credentials resolves the client ID on every connect: the stored setting
// wins over the configured one.
func Credentials(cfg *config.Config, settings domain.SettingsProvider) func() domain.Credentials {
	return func() domain.Credentials {
		id := settings.Current().ClientID
		if id == "" {
			id = cfg.Discord.ClientID
		}
		return domain.Credentials{ClientID: id}
	}
}

// LabelsFor overlays a profile's wording on the default labels.
func LabelsFor(profile policy.AppProfile) usecase.Labels {
	labels := usecase.DefaultLabels()
	if s := profile.ActivityLabel(); s != "" {
		labels.ActivityState = s
	}
	if s := profile.ViewLabel(); s != "" {
		labels.ViewAction = s
	}
	return labels
}
