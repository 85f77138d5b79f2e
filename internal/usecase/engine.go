package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// EngineConfig holds sync engine configuration.
type EngineConfig struct {
	PollInterval      time.Duration // How often to sample the watched app (default 5s)
	ProbeTimeout      time.Duration // Bound on a single sample
	ReconnectInterval time.Duration // How often to retry a lost connection (0 disables)
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PollInterval:      5 * time.Second,
		ProbeTimeout:      3 * time.Second,
		ReconnectInterval: 30 * time.Second,
	}
}

// Engine mirrors the watched app's state into the presence channel.
//
// All core work (sampling, change detection, building, publishing, connection
// lifecycle) happens on the goroutine running Run. Out-of-band requests such as
// RequestReconnect are queued to that goroutine.
type Engine struct {
	config    EngineConfig
	probe     domain.SourceStateProbe
	settings  domain.SettingsProvider
	publisher *Publisher
	builder   *PresenceBuilder
	events    <-chan domain.ChannelEvent
	logger    *zap.Logger

	observers   observers
	reconnectCh chan struct{}

	// Owned by the Run goroutine.
	observed    *domain.FileState
	pending     bool
	enabled     bool
	lastPrivacy domain.PrivacySettings

	// Snapshot for pull accessors.
	mu        sync.RWMutex
	current   *domain.FileState
	connState domain.ConnectionState
}

// NewEngine creates a sync engine. events is the channel's notification stream.
func NewEngine(
	config EngineConfig,
	probe domain.SourceStateProbe,
	settings domain.SettingsProvider,
	publisher *Publisher,
	builder *PresenceBuilder,
	events <-chan domain.ChannelEvent,
	logger *zap.Logger,
) *Engine {
	e := &Engine{
		config:      config,
		probe:       probe,
		settings:    settings,
		publisher:   publisher,
		builder:     builder,
		events:      events,
		logger:      logger,
		reconnectCh: make(chan struct{}, 1),
		enabled:     true,
		connState:   publisher.State(),
	}
	publisher.OnStateChange(e.handleStateChange)
	return e
}

// OnFileChanged registers a handler for active file transitions.
func (e *Engine) OnFileChanged(fn FileChangedHandler) {
	e.observers.addFileChanged(fn)
}

// OnConnectionStateChanged registers a handler for connection state transitions.
func (e *Engine) OnConnectionStateChanged(fn ConnectionStateHandler) {
	e.observers.addStateChanged(fn)
}

// OnPublished registers a handler for publish outcomes.
func (e *Engine) OnPublished(fn PublishedHandler) {
	e.observers.addPublished(fn)
}

// CurrentFile returns the last observed active file, or nil.
func (e *Engine) CurrentFile() *domain.FileState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil
	}
	fs := *e.current
	return &fs
}

// ConnectionState returns the last known connection state.
func (e *Engine) ConnectionState() domain.ConnectionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connState
}

// RequestReconnect asks the engine to reconnect. Safe to call from any goroutine;
// requests made while one is already queued are coalesced.
func (e *Engine) RequestReconnect() {
	select {
	case e.reconnectCh <- struct{}{}:
	default:
	}
}

// Run connects and drives the sampling loop until ctx is canceled.
// The connection is closed on return.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("presence sync engine started",
		zap.Duration("poll_interval", e.config.PollInterval))

	// Sample before the first handshake so the initial publish carries
	// the open file rather than an idle payload.
	e.RunCycle(ctx)
	e.connect(ctx)

	pollTicker := time.NewTicker(e.config.PollInterval)
	defer pollTicker.Stop()

	var reconnectC <-chan time.Time
	if e.config.ReconnectInterval > 0 {
		reconnectTicker := time.NewTicker(e.config.ReconnectInterval)
		defer reconnectTicker.Stop()
		reconnectC = reconnectTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("presence sync engine stopping")
			_ = e.publisher.Disconnect()
			return ctx.Err()

		case <-pollTicker.C:
			e.RunCycle(ctx)

		case ev := <-e.events:
			e.publisher.HandleChannelEvent(ev)

		case <-e.reconnectCh:
			if err := e.publisher.Reconnect(ctx); err != nil {
				e.logger.Warn("reconnect failed", zap.Error(err))
			}
			e.flush(ctx)

		case <-reconnectC:
			if e.publisher.State() == domain.Disconnected {
				e.connect(ctx)
			}
		}
	}
}

// RunCycle performs one sample → detect → build → publish pass.
func (e *Engine) RunCycle(ctx context.Context) {
	current := e.sample(ctx)
	if ctx.Err() != nil {
		return
	}

	changed := DetectChange(e.observed, current) == domain.Changed
	e.observed = current
	e.setCurrent(current)

	if changed {
		e.logger.Info("active file changed", fileFields(current)...)
		e.observers.notifyFileChanged(current)
		e.pending = true
	}

	settings := e.settings.Current()
	if settings.Privacy != e.lastPrivacy {
		e.lastPrivacy = settings.Privacy
		e.pending = true
	}

	if !settings.Enabled {
		if e.enabled {
			e.logger.Info("presence disabled, clearing")
			if err := e.publisher.Clear(ctx); err != nil {
				// Stay enabled so the next cycle clears again.
				e.logger.Warn("failed to clear presence, retrying next cycle", zap.Error(err))
				return
			}
			e.enabled = false
		}
		return
	}
	if !e.enabled {
		e.logger.Info("presence enabled")
		e.enabled = true
		e.pending = true
	}

	e.flush(ctx)
}

// flush publishes the observed file if a publish is owed.
// Nothing is attempted while the publisher is not connected.
func (e *Engine) flush(ctx context.Context) {
	if !e.pending || e.publisher.State() != domain.Connected {
		return
	}

	settings := e.settings.Current()
	if !settings.Enabled {
		return
	}

	payload := e.builder.Build(e.observed, settings.Privacy, e.publisher.SessionStart())

	// An in-flight publish is allowed to finish on shutdown; its result is dropped.
	outcome := e.publisher.Publish(context.WithoutCancel(ctx), payload)
	if ctx.Err() != nil {
		return
	}

	e.observers.notifyPublished(outcome)

	switch outcome.Result {
	case domain.Failed:
		e.logger.Warn("publish failed, will retry next cycle", zap.Error(outcome.Err))
	case domain.NotConnected:
		// Lost the connection between the state check and the send.
	default:
		e.pending = false
	}
}

func (e *Engine) connect(ctx context.Context) {
	if err := e.publisher.Connect(ctx); err != nil {
		e.logger.Warn("presence channel unavailable", zap.Error(err))
		return
	}
	e.flush(ctx)
}

func (e *Engine) sample(ctx context.Context) *domain.FileState {
	sampleCtx, cancel := context.WithTimeout(ctx, e.config.ProbeTimeout)
	defer cancel()

	result := make(chan *domain.FileState, 1)
	go func() {
		result <- e.probe.Sample(sampleCtx)
	}()

	select {
	case fs := <-result:
		return fs
	case <-sampleCtx.Done():
		e.logger.Debug("probe sample timed out", zap.Error(domain.ErrProbeUnavailable))
		return nil
	}
}

func (e *Engine) handleStateChange(s domain.ConnectionState) {
	e.mu.Lock()
	e.connState = s
	e.mu.Unlock()

	if s == domain.Connected {
		// A fresh session has no presence; owe one.
		e.pending = true
	}

	e.logger.Info("connection state changed", zap.Stringer("state", s))
	e.observers.notifyStateChanged(s)
}

func (e *Engine) setCurrent(fs *domain.FileState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fs == nil {
		e.current = nil
		return
	}
	cp := *fs
	e.current = &cp
}

func fileFields(fs *domain.FileState) []zap.Field {
	if fs == nil {
		return []zap.Field{zap.Bool("active", false)}
	}
	return []zap.Field{
		zap.Bool("active", true),
		zap.String("identity", fs.Identity),
		zap.String("name", fs.DisplayName),
	}
}
