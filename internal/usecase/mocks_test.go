package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// mockChannel implements domain.BroadcastChannel for testing
type mockChannel struct {
	mu       sync.Mutex
	openErr  error
	sendErr  error
	clearErr error
	closeErr error

	opens  []domain.Credentials
	sent   []domain.PresencePayload
	clears int
	closes int
	events chan domain.ChannelEvent
	onSend func()
}

func newMockChannel() *mockChannel {
	return &mockChannel{events: make(chan domain.ChannelEvent, 8)}
}

func (m *mockChannel) Open(ctx context.Context, creds domain.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, creds)
	return m.openErr
}

func (m *mockChannel) Send(ctx context.Context, payload domain.PresencePayload) error {
	if m.onSend != nil {
		m.onSend()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, payload)
	return nil
}

func (m *mockChannel) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clears++
	return nil
}

func (m *mockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.closeErr
}

func (m *mockChannel) Events() <-chan domain.ChannelEvent {
	return m.events
}

// Session numbers connections by Open call.
func (m *mockChannel) Session() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.opens))
}

func (m *mockChannel) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockChannel) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opens)
}

func (m *mockChannel) lastSent() domain.PresencePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

// mockProbe returns queued samples in order, then repeats the last one
type mockProbe struct {
	mu      sync.Mutex
	samples []*domain.FileState
	calls   int
	delay   time.Duration
}

func (m *mockProbe) Sample(ctx context.Context) *domain.FileState {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.samples) == 0 {
		return nil
	}
	fs := m.samples[0]
	if len(m.samples) > 1 {
		m.samples = m.samples[1:]
	}
	return fs
}

func (m *mockProbe) set(samples ...*domain.FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = samples
}

// mockSettings implements domain.SettingsProvider for testing
type mockSettings struct {
	mu       sync.Mutex
	settings domain.Settings
}

func newMockSettings() *mockSettings {
	return &mockSettings{settings: domain.DefaultSettings()}
}

func (m *mockSettings) Current() domain.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *mockSettings) update(fn func(*domain.Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.settings)
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fileState(identity, name, url string) *domain.FileState {
	return &domain.FileState{Identity: identity, DisplayName: name, ReferenceURL: url}
}
