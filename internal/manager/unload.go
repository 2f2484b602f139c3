package manager

// Invalidate drops the cached model so the next EnsureLoaded reloads it.
// A load already in flight is not affected. It reports whether a model was
// dropped.
func (m *Manager) Invalidate() bool {
	m.mu.Lock()
	lm := m.cur
	if m.state == StateReady {
		m.state = StateNotLoaded
	}
	m.cur = nil
	m.mu.Unlock()
	if lm == nil {
		return false
	}
	if err := lm.close(); err != nil {
		m.log.Warn().Err(err).Str("model_id", lm.ID).Msg("closing model runtime failed")
	}
	m.log.Info().Str("model_id", lm.ID).Msg("model unloaded")
	m.publish(EventUnload, lm.ID, nil)
	return true
}

// Close releases the cached model on shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	lm := m.cur
	m.cur = nil
	if m.state == StateReady {
		m.state = StateNotLoaded
	}
	m.mu.Unlock()
	if lm == nil {
		return nil
	}
	return lm.close()
}
