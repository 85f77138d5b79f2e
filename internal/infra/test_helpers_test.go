package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	byName      map[string][]int
	runningPIDs map[int]bool
	findErr     error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		byName:      make(map[string][]int),
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[name], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) Terminate(pid int) error {
	return nil
}

func (m *mockProcessManager) Hangup(pid int) error {
	return nil
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// Ensure mockProcessManager implements domain.ProcessManager
var _ domain.ProcessManager = (*mockProcessManager)(nil)

// mockCommandRunner records commands and returns canned output keyed by command name
type mockCommandRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
	errs    map[string]error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (m *mockCommandRunner) record(name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	m.record(name, args)
	return m.errs[name]
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(name, args)
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	return []byte(m.outputs[name]), nil
}

func (m *mockCommandRunner) called(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// mockTitleReader returns fixed titles
type mockTitleReader struct {
	titles []string
	err    error
	pids   []int
}

func (m *mockTitleReader) Titles(ctx context.Context, pids []int) ([]string, error) {
	m.pids = pids
	return m.titles, m.err
}

var errMock = fmt.Errorf("mock failure")
