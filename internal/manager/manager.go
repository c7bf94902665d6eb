package manager

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the lifecycle of the generative backend. Transitions are
// serialized by lifecycle; mu guards the fields readers observe and is
// never held across provider calls.
type Manager struct {
	lifecycle sync.Mutex

	mu            sync.RWMutex
	state         State
	cur           *Handle
	lastErr       string
	loadedAt      time.Time
	loadsTotal    uint64
	failuresTotal uint64
	closed        bool

	pinned atomic.Int64

	provider       Provider
	modelID        string
	credentialEnvs []string
	allowAnon      bool
	lookupEnv      func(string) (string, bool)
	loadTimeout    time.Duration
	log            zerolog.Logger
	publisher      EventPublisher
	startTime      time.Time
}

// New builds a Manager for a single model served by provider.
func New(provider Provider, modelID string) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Provider: provider, ModelID: modelID})
}

// SetEventPublisher installs an EventPublisher; nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.publisher = noopPublisher{}
		return
	}
	m.publisher = p
}

func (m *Manager) publish(name string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: m.modelID, Time: time.Now(), Fields: fields})
}

// Ready reports whether a handle is installed and can be acquired.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.cur != nil
}

// ModelID returns the configured model identifier.
func (m *Manager) ModelID() string { return m.modelID }

// Uptime returns time since the manager was constructed.
func (m *Manager) Uptime() time.Duration { return time.Since(m.startTime) }

// Acquire pins the current handle if the manager is ready. The release func
// must be called once the caller is done with the handle; it is safe to call
// more than once. A reload that happens while the handle is pinned does not
// affect the caller: the old backend is closed after the last release.
func (m *Manager) Acquire() (*Handle, func(), bool) {
	m.mu.RLock()
	h := m.cur
	if m.state != StateReady || h == nil {
		m.mu.RUnlock()
		return nil, func() {}, false
	}
	// The owner reference is only dropped after cur is cleared under the
	// write lock, so refs > 0 here.
	h.retain()
	m.mu.RUnlock()
	m.pinned.Add(1)

	var once sync.Once
	return h, func() {
		once.Do(func() {
			m.pinned.Add(-1)
			h.release()
		})
	}, true
}

// setStateLocked must be called with mu held for writing.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	setStateGauge(s)
}

func (m *Manager) credential() (string, string, bool) {
	for _, name := range m.credentialEnvs {
		if v, ok := m.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), name, true
		}
	}
	return "", "", false
}
