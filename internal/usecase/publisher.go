package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// PublisherConfig holds publisher timing configuration.
type PublisherConfig struct {
	MinInterval      time.Duration // Minimum gap between two sends (Discord allows one per 15s)
	ReconnectDelay   time.Duration // Pause between disconnect and connect on reconnect
	HandshakeTimeout time.Duration // Bound on a single connect attempt
	SendTimeout      time.Duration // Bound on a single send or clear
}

// DefaultPublisherConfig returns default publisher configuration.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MinInterval:      15 * time.Second,
		ReconnectDelay:   1 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SendTimeout:      5 * time.Second,
	}
}

// Publisher owns the presence channel connection and rate limits what is sent on it.
//
// Publisher is driven by a single goroutine (the sync engine). Only State may be
// called concurrently.
type Publisher struct {
	config      PublisherConfig
	channel     domain.BroadcastChannel
	credentials func() domain.Credentials
	logger      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state        atomic.Int32
	onState      func(domain.ConnectionState)
	sessionStart time.Time
	session      uint64 // Channel session opened by the last Connect
	lastSent     *domain.PresencePayload
	lastSendTime time.Time
}

// NewPublisher creates a disconnected publisher.
// credentials is consulted on every connect so a changed client ID takes effect on reconnect.
func NewPublisher(
	config PublisherConfig,
	channel domain.BroadcastChannel,
	credentials func() domain.Credentials,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		config:      config,
		channel:     channel,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// OnStateChange registers the handler called on every connection state transition.
func (p *Publisher) OnStateChange(fn func(domain.ConnectionState)) {
	p.onState = fn
}

// State returns the current connection state.
func (p *Publisher) State() domain.ConnectionState {
	return domain.ConnectionState(p.state.Load())
}

// SessionStart returns when the current channel session began.
func (p *Publisher) SessionStart() time.Time {
	return p.sessionStart
}

// Connect opens the channel. It is a no-op unless the publisher is Disconnected.
func (p *Publisher) Connect(ctx context.Context) error {
	if s := p.State(); s != domain.Disconnected {
		p.logger.Debug("connect ignored", zap.Stringer("state", s))
		return nil
	}

	p.setState(domain.Connecting)

	openCtx, cancel := context.WithTimeout(ctx, p.config.HandshakeTimeout)
	defer cancel()

	if err := p.channel.Open(openCtx, p.credentials()); err != nil {
		p.setState(domain.Disconnected)
		p.logger.Warn("failed to connect to presence channel", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrChannelHandshakeFailed, err)
	}

	p.sessionStart = p.now()
	p.session = p.channel.Session()
	p.forget()
	p.setState(domain.Connected)
	p.logger.Info("connected to presence channel")
	return nil
}

// Publish sends payload unless it is filtered by the cooldown or duplicate checks.
// Both filters must pass before the channel is contacted.
func (p *Publisher) Publish(ctx context.Context, payload domain.PresencePayload) domain.PublishOutcome {
	if p.State() != domain.Connected {
		return domain.PublishOutcome{Result: domain.NotConnected, Err: domain.ErrNotConnected}
	}

	now := p.now()
	if !p.lastSendTime.IsZero() && now.Sub(p.lastSendTime) < p.config.MinInterval {
		p.logger.Debug("update cooldown active, skipping update",
			zap.Duration("remaining", p.config.MinInterval-now.Sub(p.lastSendTime)))
		return domain.PublishOutcome{Result: domain.SuppressedCooldown}
	}

	if p.lastSent != nil && p.lastSent.Equal(payload) {
		p.logger.Debug("presence unchanged, skipping update")
		return domain.PublishOutcome{Result: domain.SuppressedDuplicate}
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
	defer cancel()

	if err := p.channel.Send(sendCtx, payload); err != nil {
		p.logger.Warn("failed to update presence", zap.Error(err))
		return domain.PublishOutcome{
			Result: domain.Failed,
			Err:    fmt.Errorf("%w: %w", domain.ErrChannelSendFailed, err),
		}
	}

	sent := payload
	sent.Actions = append([]domain.Action(nil), payload.Actions...)
	p.lastSent = &sent
	p.lastSendTime = now

	p.logger.Info("presence updated",
		zap.String("details", payload.Details),
		zap.String("state", payload.State))
	return domain.PublishOutcome{Result: domain.Sent}
}

// Clear removes the broadcast presence. It does nothing unless Connected.
func (p *Publisher) Clear(ctx context.Context) error {
	if p.State() != domain.Connected {
		return nil
	}

	clearCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
	defer cancel()

	if err := p.channel.Clear(clearCtx); err != nil {
		p.logger.Warn("failed to clear presence", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrChannelSendFailed, err)
	}

	p.lastSent = nil
	p.logger.Info("presence cleared")
	return nil
}

// Disconnect closes the channel and forgets everything sent on it.
func (p *Publisher) Disconnect() error {
	err := p.channel.Close()
	p.forget()
	p.setState(domain.Disconnected)
	if err != nil {
		p.logger.Debug("channel close returned error", zap.Error(err))
	}
	return err
}

// Reconnect disconnects, waits ReconnectDelay and connects again.
// The delay is required: the IPC server rejects an immediate re-handshake.
func (p *Publisher) Reconnect(ctx context.Context) error {
	p.logger.Info("reconnecting to presence channel")
	_ = p.Disconnect()

	if err := p.sleep(ctx, p.config.ReconnectDelay); err != nil {
		return err
	}
	return p.Connect(ctx)
}

// HandleChannelEvent applies an unsolicited channel notification.
func (p *Publisher) HandleChannelEvent(ev domain.ChannelEvent) {
	switch ev.Kind {
	case domain.ChannelDisconnected:
		if p.State() == domain.Disconnected {
			return
		}
		// A disconnect from a connection already replaced by Reconnect.
		if ev.Session != 0 && ev.Session != p.session {
			p.logger.Debug("ignoring disconnect of a previous session", zap.Uint64("session", ev.Session))
			return
		}
		p.logger.Warn("presence channel disconnected", zap.Error(ev.Err))
		p.forget()
		p.setState(domain.Disconnected)
	case domain.ChannelReady:
		p.logger.Debug("presence channel ready")
	}
}

func (p *Publisher) forget() {
	p.lastSent = nil
	p.lastSendTime = time.Time{}
}

func (p *Publisher) setState(s domain.ConnectionState) {
	old := domain.ConnectionState(p.state.Swap(int32(s)))
	if old == s {
		return
	}
	if p.onState != nil {
		p.onState(s)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
