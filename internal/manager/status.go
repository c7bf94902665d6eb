package manager

// Status returns a read-only view of the manager state. It never waits on an
// in-progress load or reload.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{
		State:         m.state,
		LastError:     m.lastErr,
		Pinned:        m.pinned.Load(),
		LoadsTotal:    m.loadsTotal,
		FailuresTotal: m.failuresTotal,
	}
	if m.state == StateReady && m.cur != nil {
		st.ModelID = m.cur.modelID
		st.Device = m.cur.device
		st.LoadedAt = m.loadedAt
	}
	return st
}
