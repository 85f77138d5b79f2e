package daemon

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// mockRegistry is an in-memory StatusRegistry
type mockRegistry struct {
	mu       sync.Mutex
	entry    *domain.StatusEntry
	writes   int
	cleared  bool
	writeErr error
}

func (m *mockRegistry) Write(entry domain.StatusEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.entry = &entry
	m.writes++
	return nil
}

func (m *mockRegistry) Read() (*domain.StatusEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return nil, nil
	}
	cp := *m.entry
	return &cp, nil
}

func (m *mockRegistry) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
	m.cleared = true
	return nil
}

func (m *mockRegistry) Path() string {
	return "/tmp/figpresence-test/status.json"
}

func (m *mockRegistry) snapshot() (domain.StatusEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return domain.StatusEntry{}, false
	}
	return *m.entry, true
}

func (m *mockRegistry) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockRegistry) wasCleared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// mockProcessManager reports a fixed set of live PIDs
type mockProcessManager struct {
	running map[int]bool
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) { return nil, nil }
func (m *mockProcessManager) IsRunning(pid int) bool                 { return m.running[pid] }
func (m *mockProcessManager) GetCurrentPID() int                     { return os.Getpid() }
func (m *mockProcessManager) Terminate(pid int) error                { return nil }
func (m *mockProcessManager) Hangup(pid int) error                   { return nil }

// mockChannel accepts everything
type mockChannel struct {
	mu     sync.Mutex
	sent   []domain.PresencePayload
	closes int
	events chan domain.ChannelEvent
}

func newMockChannel() *mockChannel {
	return &mockChannel{events: make(chan domain.ChannelEvent, 8)}
}

func (m *mockChannel) Open(ctx context.Context, creds domain.Credentials) error { return nil }

func (m *mockChannel) Send(ctx context.Context, payload domain.PresencePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, payload)
	return nil
}

func (m *mockChannel) Clear(ctx context.Context) error { return nil }

func (m *mockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockChannel) Events() <-chan domain.ChannelEvent { return m.events }

func (m *mockChannel) Session() uint64 { return 1 }

func (m *mockChannel) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// staticProbe always reports the same file
type staticProbe struct {
	fs *domain.FileState
}

func (p *staticProbe) Sample(ctx context.Context) *domain.FileState { return p.fs }

type staticSettings struct {
	settings domain.Settings
}

func (s *staticSettings) Current() domain.Settings { return s.settings }

// recordingCloser records Close calls
type recordingCloser struct {
	mu     sync.Mutex
	closed int
	err    error
}

func (c *recordingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.err
}

func (c *recordingCloser) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var errMock = errors.New("mock failure")
