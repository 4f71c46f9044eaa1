// Package connection manages the lifecycle of the record store connection.
//
// The Manager makes a bounded number of connection attempts with a fixed backoff.
// If they all fail it keeps retrying in the background at a longer interval, and
// once connected it pings the store on the same interval to detect outages.
package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mpa-academy/schooladmin/internal/metrics"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

// State is the connection lifecycle state.
type State string

const (
	StateInit     State = "init"
	StateReady    State = "ready"
	StateRetrying State = "retrying"
	StateDegraded State = "degraded"
)

var states = []State{StateInit, StateReady, StateRetrying, StateDegraded}

// ErrNotReady is returned by operations that need a connected store.
var ErrNotReady = errors.New("store not connected")

// OpenFunc opens and verifies a new store.
type OpenFunc func(ctx context.Context) (storage.Store, error)

// Options configures retry timing. Zero values fall back to the defaults.
type Options struct {
	// MaxAttempts is the number of startup attempts before falling back to the
	// background interval.
	MaxAttempts int

	// Backoff is the fixed delay between startup attempts.
	Backoff time.Duration

	// ReconnectInterval is the delay between background reconnects and health pings.
	ReconnectInterval time.Duration

	// PingTimeout bounds each health ping.
	PingTimeout time.Duration
}

// DefaultOptions returns 5 attempts, 5s apart, then a 30s background interval.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       5,
		Backoff:           5 * time.Second,
		ReconnectInterval: 30 * time.Second,
		PingTimeout:       5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = d.Backoff
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = d.ReconnectInterval
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = d.PingTimeout
	}
	return o
}

// Manager owns the store connection. It is safe for concurrent use.
type Manager struct {
	open OpenFunc
	opts Options

	mu    sync.RWMutex
	store storage.Store
	state State
}

// NewManager creates a manager in the init state. Call Run to connect.
func NewManager(open OpenFunc, opts Options) *Manager {
	m := &Manager{
		open: open,
		opts: opts.withDefaults(),
	}
	m.setState(StateInit)
	return m
}

// Store returns the connected store. ok is false unless the state is ready.
func (m *Manager) Store() (store storage.Store, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return nil, false
	}
	return m.store, true
}

// Ready reports whether the store is connected.
func (m *Manager) Ready() bool {
	return m.State() == StateReady
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run connects and then supervises the connection until ctx is cancelled.
// The store is closed on return. Run returns nil on cancellation.
func (m *Manager) Run(ctx context.Context) error {
	defer func() {
		m.close()
		m.setState(StateDegraded)
	}()

	if !m.connectWithRetry(ctx) && ctx.Err() == nil {
		slog.Error("Store unavailable, retrying in background",
			"attempts", m.opts.MaxAttempts,
			"interval", m.opts.ReconnectInterval,
		)
	}

	ticker := time.NewTicker(m.opts.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if m.Ready() {
				m.checkHealth(ctx)
			} else {
				m.attempt(ctx)
			}
		}
	}
}

// connectWithRetry makes up to MaxAttempts attempts, Backoff apart.
func (m *Manager) connectWithRetry(ctx context.Context) bool {
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		if m.attempt(ctx) {
			return true
		}
		if attempt == m.opts.MaxAttempts {
			break
		}

		slog.Warn("Retrying store connection", "attempt", attempt, "backoff", m.opts.Backoff)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.opts.Backoff):
		}
	}
	return false
}

// attempt makes one connection attempt and updates the state.
func (m *Manager) attempt(ctx context.Context) bool {
	if m.State() != StateInit {
		m.setState(StateRetrying)
	}

	store, err := m.open(ctx)
	if err != nil {
		metrics.StoreConnectAttempts.WithLabelValues("failure").Inc()
		slog.Warn("Store connection failed", "error", err)
		m.setState(StateDegraded)
		return false
	}

	metrics.StoreConnectAttempts.WithLabelValues("success").Inc()
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
	m.setState(StateReady)
	slog.Info("Store connected")
	return true
}

// checkHealth pings the store and drops the connection if the ping fails.
func (m *Manager) checkHealth(ctx context.Context) {
	store, ok := m.Store()
	if !ok {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Store ping failed, reconnecting", "error", err)
		m.close()
		m.setState(StateDegraded)
		m.attempt(ctx)
	}
}

func (m *Manager) close() {
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close store", "error", err)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	for _, st := range states {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.StoreState.WithLabelValues(string(st)).Set(v)
	}
	if prev != s && prev != "" {
		slog.Debug("Store connection state changed", "from", prev, "to", s)
	}
}
