//go:build integration && !windows

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/config"
	"github.com/eliteGoblin/focusd/figpresence/internal/daemon"
	"github.com/eliteGoblin/focusd/figpresence/internal/discord"
	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
	"github.com/eliteGoblin/focusd/figpresence/internal/metrics"
	"github.com/eliteGoblin/focusd/figpresence/internal/policy"
	"github.com/eliteGoblin/focusd/figpresence/internal/usecase"
	"github.com/eliteGoblin/focusd/figpresence/test/fixtures"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const figmaPID = 4242

// fakeFigma stands in for the desktop app: a process table with at most
// one Figma process and the title of its window.
type fakeFigma struct {
	mu      sync.Mutex
	running bool
	title   string
}

func (f *fakeFigma) open(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.title = title
}

func (f *fakeFigma) quit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.title = ""
}

func (f *fakeFigma) FindByName(name string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running && strings.EqualFold(name, "Figma") {
		return []int{figmaPID}, nil
	}
	return nil, nil
}

func (f *fakeFigma) IsRunning(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running && pid == figmaPID
}

func (f *fakeFigma) GetCurrentPID() int     { return os.Getpid() }
func (f *fakeFigma) Terminate(pid int) error { return nil }
func (f *fakeFigma) Hangup(pid int) error    { return nil }

func (f *fakeFigma) Titles(ctx context.Context, pids []int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running || f.title == "" {
		return nil, nil
	}
	return []string{f.title}, nil
}

// harness runs a complete daemon against a fake Discord client on a real
// unix socket, with settings and status in a temp data dir.
type harness struct {
	dataDir string
	discord *fixtures.FakeDiscord
	figma   *fakeFigma
	store   *infra.SettingsDB
	status  *infra.FileStatusRegistry
	engine  *usecase.Engine
	service *daemon.Service

	cancel context.CancelFunc
	done   chan error
}

// newHarness builds the daemon. cooldown is the publisher's minimum interval.
func newHarness(cooldown time.Duration) *harness {
	// Socket paths are length limited; keep the directory short.
	sockDir, err := os.MkdirTemp("", "fpi")
	Expect(err).NotTo(HaveOccurred())
	dataDir, err := os.MkdirTemp("", "figpresence-integration-*")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		os.RemoveAll(sockDir)
		os.RemoveAll(dataDir)
	})

	fake := fixtures.NewFakeDiscord()
	Expect(fake.Listen(sockDir)).To(Succeed())
	DeferCleanup(fake.Close)

	recentDir := filepath.Join(dataDir, "recent")
	Expect(os.MkdirAll(recentDir, 0755)).To(Succeed())

	store, err := infra.OpenSettingsDB(dataDir)
	Expect(err).NotTo(HaveOccurred())

	logger := zap.NewNop()
	settings := infra.NewStoreSettingsProvider(store, logger)
	profile := policy.NewFigmaProfile()
	figma := &fakeFigma{}
	probe := infra.NewAppProbe(profile, figma, figma,
		infra.NewRecentFilesResolver(recentDir, 0, logger), logger)

	cfg := &config.Config{
		Discord: config.DiscordConfig{ClientID: config.DefaultClientID, SocketDir: sockDir},
	}
	client := discord.NewClient(discord.Options{SocketDir: sockDir}, logger)
	publisher := usecase.NewPublisher(usecase.PublisherConfig{
		MinInterval:      cooldown,
		ReconnectDelay:   10 * time.Millisecond,
		HandshakeTimeout: 2 * time.Second,
		SendTimeout:      2 * time.Second,
	}, client, daemon.Credentials(cfg, settings), logger)
	engine := usecase.NewEngine(usecase.EngineConfig{
		PollInterval:      50 * time.Millisecond,
		ProbeTimeout:      time.Second,
		ReconnectInterval: 200 * time.Millisecond,
	}, probe, settings, publisher, usecase.NewPresenceBuilder(daemon.LabelsFor(profile)), client.Events(), logger)

	status := infra.NewFileStatusRegistry(dataDir)
	reg := prometheus.NewRegistry()
	service := daemon.NewService(daemon.ServiceConfig{
		HeartbeatInterval: 100 * time.Millisecond,
		AppVersion:        "integration",
	}, engine, status, settings, infra.NewProcessManager(), metrics.New(reg), reg, logger)
	service.AddCloser(store)

	h := &harness{
		dataDir: dataDir,
		discord: fake,
		figma:   figma,
		store:   store,
		status:  status,
		engine:  engine,
		service: service,
	}
	Expect(h.writeRecentFile("Mockup v2", "abc123")).To(Succeed())
	return h
}

func (h *harness) writeRecentFile(name, key string) error {
	data, err := json.Marshal(map[string]string{"name": name, "key": key})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(h.dataDir, "recent", key+".json"), data, 0644)
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.service.Run(ctx) }()
	DeferCleanup(h.stop)
}

// stop cancels the daemon and returns its exit error. Safe to call twice.
func (h *harness) stop() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	h.cancel = nil
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("daemon did not stop")
	}
}

// lastActivity returns the last presence Discord received; nil means cleared
// or nothing received.
func (h *harness) lastActivity() *discord.Activity {
	a, _ := h.discord.LastActivity()
	return a
}

func (h *harness) details() string {
	if a := h.lastActivity(); a != nil {
		return a.Details
	}
	return ""
}
