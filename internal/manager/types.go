package manager

import (
	"sync"
	"time"

	"wastesort/internal/errs"
	"wastesort/internal/tensor"
)

// State represents the lifecycle state of the model cache.
type State string

const (
	StateNotLoaded State = "not_loaded"
	StateLoading   State = "loading"
	StateReady     State = "ready"
)

// LoadedModel is created once per successful load and shared read-only by
// every classification until it is invalidated.
type LoadedModel struct {
	ID          string
	Model       RuntimeModel
	Labels      []string
	InputHeight int
	InputWidth  int
	Layout      tensor.Layout
	SourceDir   string
	Backend     string
	LoadedAt    time.Time
	LoadTime    time.Duration

	mu     sync.RWMutex
	closed bool
}

// predict runs the runtime while holding a read lock so close waits for
// in-flight predictions.
func (lm *LoadedModel) predict(in *tensor.Tensor) (outs []*tensor.Tensor, err error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	if lm.closed {
		return nil, errs.New(errs.InferenceError, "model was unloaded")
	}
	defer func() {
		if p := recover(); p != nil {
			err = errs.New(errs.InferenceError, "model prediction panicked")
		}
	}()
	return lm.Model.Predict(in)
}

func (lm *LoadedModel) close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closed {
		return nil
	}
	lm.closed = true
	return lm.Model.Close()
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State     State
	Model     *LoadedModel
	LastError string
}
