package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Load and Reload after Close.
var ErrClosed = errors.New("manager closed")

// Load acquires the credential and a backend from the provider and installs
// it as the current handle. Any failure moves the manager to StateFailed and
// is returned as a *Error; no partial handle is ever visible to readers.
func (m *Manager) Load(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.loadLocked(ctx)
}

// Unload retires the current handle and moves to StateUnloaded. Idempotent.
// The backend is closed once no caller holds it pinned.
func (m *Manager) Unload() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.unloadLocked()
	return nil
}

// Reload runs Unload then Load as one serialized transition. In-flight
// callers keep the handle they acquired; callers arriving meanwhile observe
// unloaded/loading and are expected to degrade.
func (m *Manager) Reload(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.log.Info().Msg("reload requested")
	m.publish("reload_start", nil)
	m.unloadLocked()
	return m.loadLocked(ctx)
}

// Close unloads and prevents further loads. Idempotent.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.unloadLocked()
	return nil
}

func (m *Manager) loadLocked(ctx context.Context) error {
	start := time.Now()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.cur
	m.cur = nil
	m.lastErr = ""
	m.setStateLocked(StateLoading)
	m.mu.Unlock()
	if old != nil {
		old.release()
	}
	m.log.Info().Str("model", m.modelID).Msg("loading model")
	m.publish("load_start", nil)

	cred, credEnv, ok := m.credential()
	if !ok && !m.allowAnon {
		return m.fail(configError(fmt.Sprintf("credential not set (checked %s)", strings.Join(m.credentialEnvs, ", "))), start)
	}
	if m.provider == nil {
		return m.fail(configError("no model provider configured"), start)
	}
	if strings.TrimSpace(m.modelID) == "" {
		return m.fail(configError("model id is empty"), start)
	}
	if credEnv != "" {
		m.log.Debug().Str("credential_env", credEnv).Msg("using credential")
	}

	lctx, cancel := context.WithTimeout(ctx, m.loadTimeout)
	defer cancel()
	backend, err := m.loadBackend(lctx, LoadSpec{ModelID: m.modelID, Credential: cred})
	if err != nil {
		return m.fail(loadError("load "+m.modelID, err), start)
	}

	h := &Handle{
		id:       uuid.NewString(),
		modelID:  m.modelID,
		device:   backend.Device(),
		backend:  backend,
		loadedAt: time.Now(),
		onClose:  m.handleClosed,
	}
	h.refs.Store(1)

	m.mu.Lock()
	m.cur = h
	m.loadedAt = h.loadedAt
	m.loadsTotal++
	m.setStateLocked(StateReady)
	m.mu.Unlock()

	loadsTotal.WithLabelValues("success").Inc()
	dur := time.Since(start)
	m.log.Info().Str("model", m.modelID).Str("device", h.device).Str("handle", h.id).Dur("dur", dur).Msg("model ready")
	m.publish("load_ready", map[string]any{"device": h.device, "handle": h.id, "dur_ms": int(dur / time.Millisecond)})
	return nil
}

// loadBackend calls the provider without letting a hung or panicking
// provider outlive ctx. A backend that arrives after ctx expired is closed.
func (m *Manager) loadBackend(ctx context.Context, spec LoadSpec) (Backend, error) {
	type result struct {
		b   Backend
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		b, err := m.provider.Load(ctx, spec)
		if err == nil && b == nil {
			err = errors.New("provider returned no backend")
		}
		ch <- result{b: b, err: err}
	}()
	select {
	case r := <-ch:
		return r.b, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.b != nil {
				_ = r.b.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (m *Manager) fail(err error, start time.Time) error {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.failuresTotal++
	m.setStateLocked(StateFailed)
	m.mu.Unlock()
	loadsTotal.WithLabelValues("failure").Inc()
	m.log.Error().Err(err).Str("model", m.modelID).Dur("dur", time.Since(start)).Msg("model load failed")
	m.publish("load_failed", map[string]any{"error": err.Error()})
	return err
}

func (m *Manager) unloadLocked() {
	m.mu.Lock()
	old := m.cur
	if old == nil && m.state == StateUnloaded {
		m.mu.Unlock()
		return
	}
	m.cur = nil
	m.setStateLocked(StateUnloaded)
	m.mu.Unlock()
	if old != nil {
		// Drop the owner reference; pinned readers keep the backend alive.
		old.release()
	}
	m.log.Info().Str("model", m.modelID).Msg("model unloaded")
	m.publish("unload_done", nil)
}

func (m *Manager) handleClosed(h *Handle, err error) {
	ev := m.log.Info()
	if err != nil {
		ev = m.log.Warn().Err(err)
	}
	ev.Str("handle", h.id).Msg("backend released")
	fields := map[string]any{"handle": h.id}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.publish("handle_closed", fields)
}
