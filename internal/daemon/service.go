// Package daemon runs the presence sync engine as a background service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
	"github.com/eliteGoblin/focusd/figpresence/internal/metrics"
	"github.com/eliteGoblin/focusd/figpresence/internal/usecase"
)

// ErrAlreadyRunning is returned when another live daemon owns the status file.
var ErrAlreadyRunning = errors.New("daemon already running")

// ServiceConfig holds daemon configuration.
type ServiceConfig struct {
	HeartbeatInterval time.Duration // How often to refresh the status file
	MetricsAddr       string        // Serve /metrics here when set
	AppVersion        string
}

// DefaultServiceConfig returns default daemon configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		HeartbeatInterval: 30 * time.Second,
	}
}

// Service owns the engine for the lifetime of the daemon process.
// It publishes the engine's state to the status registry and to metrics,
// and releases every resource when the engine stops.
type Service struct {
	config   ServiceConfig
	engine   *usecase.Engine
	registry domain.StatusRegistry
	settings domain.SettingsProvider
	pm       domain.ProcessManager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	now     func() time.Time
	closers []io.Closer

	mu     sync.Mutex
	status domain.StatusEntry
}

// NewService creates a daemon service. m and gatherer may be nil.
func NewService(
	config ServiceConfig,
	engine *usecase.Engine,
	registry domain.StatusRegistry,
	settings domain.SettingsProvider,
	pm domain.ProcessManager,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Service {
	return &Service{
		config:   config,
		engine:   engine,
		registry: registry,
		settings: settings,
		pm:       pm,
		metrics:  m,
		gatherer: gatherer,
		logger:   logger,
		now:      time.Now,
	}
}

// AddCloser registers a resource to close after the engine stops.
func (s *Service) AddCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Run registers the daemon and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	self := s.pm.GetCurrentPID()
	if entry, ok := FindRunning(s.registry, s.pm); ok && entry.PID != self {
		return multierr.Append(fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, entry.PID), s.closeAll())
	}

	now := s.now().Unix()
	s.mu.Lock()
	s.status = domain.StatusEntry{
		PID:             self,
		AppVersion:      s.config.AppVersion,
		StartedAt:       now,
		LastHeartbeat:   now,
		ConnectionState: s.engine.ConnectionState().String(),
		Enabled:         s.settings.Current().Enabled,
	}
	s.mu.Unlock()

	if err := s.writeStatus(); err != nil {
		s.logger.Error("failed to register daemon", zap.Error(err))
		return multierr.Append(fmt.Errorf("failed to register daemon: %w", err), s.closeAll())
	}

	s.logger.Info("daemon started",
		zap.Int("pid", self),
		zap.String("version", s.config.AppVersion),
		zap.String("status_file", s.registry.Path()))

	s.engine.OnFileChanged(s.handleFileChanged)
	s.engine.OnConnectionStateChanged(s.handleStateChanged)
	s.engine.OnPublished(s.handlePublished)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeatLoop(runCtx)
	}()

	if s.config.MetricsAddr != "" && s.gatherer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.ListenAndServe(runCtx, s.config.MetricsAddr, s.gatherer, s.logger); err != nil {
				s.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	err := s.engine.Run(runCtx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.logger.Info("daemon stopping")
	return multierr.Append(err, s.shutdown())
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update(func(st *domain.StatusEntry) {
				st.LastHeartbeat = s.now().Unix()
				st.Enabled = s.settings.Current().Enabled
			})
		}
	}
}

func (s *Service) handleFileChanged(fs *domain.FileState) {
	if s.metrics != nil {
		s.metrics.RecordFileChange(fs)
	}
	s.update(func(st *domain.StatusEntry) {
		if fs == nil {
			st.CurrentFile = nil
			return
		}
		cp := *fs
		st.CurrentFile = &cp
	})
}

func (s *Service) handleStateChanged(state domain.ConnectionState) {
	if s.metrics != nil {
		s.metrics.SetConnectionState(state)
	}
	s.update(func(st *domain.StatusEntry) {
		st.ConnectionState = state.String()
	})
}

func (s *Service) handlePublished(outcome domain.PublishOutcome) {
	if s.metrics != nil {
		s.metrics.RecordPublish(outcome)
	}
	if outcome.Suppressed() {
		return
	}
	s.update(func(st *domain.StatusEntry) {
		st.LastPublish = outcome.Result.String()
		st.LastPublishAt = s.now().Unix()
	})
}

// update applies fn to the status and persists it. Write failures are logged.
func (s *Service) update(fn func(*domain.StatusEntry)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()

	if err := s.writeStatus(); err != nil {
		s.logger.Warn("failed to write status", zap.Error(err))
	}
}

func (s *Service) writeStatus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Write(s.status)
}

// Status returns a copy of the last written status.
func (s *Service) Status() domain.StatusEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) shutdown() error {
	var err error
	if cerr := s.registry.Clear(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to clear status: %w", cerr))
	}
	return multierr.Append(err, s.closeAll())
}

func (s *Service) closeAll() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	s.closers = nil
	return err
}

// FindRunning returns the registered daemon if its process is still alive.
// A status file left behind by a crashed daemon is treated as absent.
func FindRunning(registry domain.StatusRegistry, pm domain.ProcessManager) (*domain.StatusEntry, bool) {
	entry, err := registry.Read()
	if err != nil || entry == nil {
		return nil, false
	}
	if !pm.IsRunning(entry.PID) {
		return nil, false
	}
	return entry, true
}
