package circuitbreaker

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Manager owns one breaker per dependency key, creating them lazily with a
// shared configuration. Independent keys never contend on one another's
// state.
type Manager struct {
	config *Config
	logger *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewManager creates a breaker manager.
func NewManager(config *Config, logger *zap.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = DefaultConfig().WindowDuration
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultConfig().OpenTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:   config,
		logger:   logger.With(zap.String("component", "circuit_breaker")),
		breakers: make(map[string]*Breaker),
	}
}

// OnStateChange registers fn to run after every transition of every breaker,
// chained after any callback already configured. Register during setup,
// before calls flow.
func (m *Manager) OnStateChange(fn func(key string, from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.config.OnStateChange
	m.config.OnStateChange = func(key string, from, to State) {
		if prev != nil {
			prev(key, from, to)
		}
		fn(key, from, to)
	}
}

// Get returns the breaker for key, creating it if needed.
func (m *Manager) Get(key string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[key]; ok {
		return b
	}
	b = newBreaker(key, m.config, m.logger)
	m.breakers[key] = b
	return b
}

// Reset forces the breaker for key closed, if it exists.
func (m *Manager) Reset(key string) {
	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		b.Reset()
	}
}

// ResetAll forces every breaker closed.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.breakers {
		b.Reset()
	}
}

// Stats returns snapshots for every breaker, ordered by key.
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.breakers))
	for _, b := range m.breakers {
		out = append(out, b.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
