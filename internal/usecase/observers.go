package usecase

import (
	"sync"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// FileChangedHandler is called with the new active file (nil when none).
type FileChangedHandler func(*domain.FileState)

// ConnectionStateHandler is called on every publisher state transition.
type ConnectionStateHandler func(domain.ConnectionState)

// PublishedHandler is called with the outcome of every publish attempt.
type PublishedHandler func(domain.PublishOutcome)

// observers is a typed callback registry. Handlers run synchronously on the
// engine goroutine, in registration order.
type observers struct {
	mu           sync.RWMutex
	fileChanged  []FileChangedHandler
	stateChanged []ConnectionStateHandler
	published    []PublishedHandler
}

func (o *observers) addFileChanged(fn FileChangedHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fileChanged = append(o.fileChanged, fn)
}

func (o *observers) addStateChanged(fn ConnectionStateHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stateChanged = append(o.stateChanged, fn)
}

func (o *observers) addPublished(fn PublishedHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.published = append(o.published, fn)
}

func (o *observers) notifyFileChanged(fs *domain.FileState) {
	o.mu.RLock()
	handlers := o.fileChanged
	o.mu.RUnlock()
	for _, fn := range handlers {
		fn(fs)
	}
}

func (o *observers) notifyStateChanged(s domain.ConnectionState) {
	o.mu.RLock()
	handlers := o.stateChanged
	o.mu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (o *observers) notifyPublished(outcome domain.PublishOutcome) {
	o.mu.RLock()
	handlers := o.published
	o.mu.RUnlock()
	for _, fn := range handlers {
		fn(outcome)
	}
}
