package manager

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the lifecycle phase of the generative backend.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// allStates is used to reset the state gauge.
var allStates = []State{StateUnloaded, StateLoading, StateReady, StateFailed}

// Status is a read-only projection of the manager state.
type Status struct {
	State     State
	ModelID   string // empty unless ready
	Device    string // empty unless ready
	LastError string
	LoadedAt  time.Time
	// Pinned counts handle references currently lent to callers, across
	// the current handle and retired ones still in use.
	Pinned        int64
	LoadsTotal    uint64
	FailuresTotal uint64
}

// Handle is a loaded backend owned by the Manager. Callers obtain it through
// Acquire and must call the returned release func exactly once; the backend
// is closed when the manager has retired the handle and the last reader has
// released it.
type Handle struct {
	id       string
	modelID  string
	device   string
	backend  Backend
	loadedAt time.Time

	refs      atomic.Int64
	closeOnce sync.Once
	onClose   func(h *Handle, err error)
}

// ID is a per-load identifier, distinct for every successful load.
func (h *Handle) ID() string { return h.id }

// ModelID returns the identifier of the loaded model.
func (h *Handle) ModelID() string { return h.modelID }

// Device returns the execution device descriptor (e.g. cuda, cpu).
func (h *Handle) Device() string { return h.device }

// Backend returns the loaded backend for read-only use.
func (h *Handle) Backend() Backend { return h.backend }

func (h *Handle) retain() { h.refs.Add(1) }

// release drops one reference and closes the backend on the last one.
func (h *Handle) release() {
	if h.refs.Add(-1) != 0 {
		return
	}
	h.closeOnce.Do(func() {
		err := h.backend.Close()
		if h.onClose != nil {
			h.onClose(h, err)
		}
	})
}
