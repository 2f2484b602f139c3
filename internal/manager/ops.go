package manager

import (
	"context"

	"github.com/google/uuid"
)

// Preload kicks off a background load and returns an operation ID. Callers
// poll Status to observe the transition.
func (m *Manager) Preload() string {
	op := uuid.NewString()
	go func(opID string) {
		lm, err := m.EnsureLoaded(context.Background())
		if err != nil {
			m.log.Warn().Err(err).Str("op", opID).Msg("preload failed")
			return
		}
		m.log.Info().Str("op", opID).Str("model_id", lm.ID).Msg("preload complete")
	}(op)
	return op
}
