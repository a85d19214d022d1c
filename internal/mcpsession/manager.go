package mcpsession

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiryNotifier is invoked with the ids of sessions removed by a sweep,
// so the caller can react per id (mcpserver drops the session's resource
// subscriptions and logs the expiry).
type ExpiryNotifier func(ctx context.Context, expiredIDs []string)

// Manager runs a ticker-driven background sweep that expires sessions
// whose last_activity has aged past the configured TTL, grounded on
// the teacher's internal/retention/manager.go Start/Stop/stopCh/stoppedCh
// idiom.
type Manager struct {
	config  *Config
	storage SessionStorage
	notify  ExpiryNotifier
	stopCh  chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

// NewManager creates a Manager. notify may be nil if the caller doesn't
// care about expiry notifications.
func NewManager(config *Config, storage SessionStorage, notify ExpiryNotifier) *Manager {
	return &Manager{
		config:  config.withDefaults(),
		storage: storage,
		notify:  notify,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the background sweep goroutine. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	go m.run()
}

// Stop signals the sweep goroutine to stop and blocks until it exits.
func (m *Manager) Stop() {
	shouldStop := false
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.running {
			return
		}
		m.running = false
		shouldStop = true
	}()

	if !shouldStop {
		return
	}

	close(m.stopCh)
	<-m.stopped
}

func (m *Manager) run() {
	defer close(m.stopped)

	interval := time.Duration(m.config.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) sweep() {
	ttl := time.Duration(m.config.SessionTTLSeconds) * time.Second
	ctx := context.Background()

	expired, err := m.storage.ExpireSessions(ctx, ttl)
	if err != nil {
		slog.Error("session_expiry_sweep_failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	slog.Info("session_expiry_sweep", "count", len(expired))
	if m.notify != nil {
		m.notify(ctx, expired)
	}
}

// SweepNow triggers an immediate sweep, for tests.
func (m *Manager) SweepNow() {
	m.sweep()
}
