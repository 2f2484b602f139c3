package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Manager caches the single loaded model and runs classifications on it.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	state   State
	cur     *LoadedModel
	lastErr string

	group singleflight.Group

	log           zerolog.Logger
	candidates    []string
	defaultLabels []string
	inputSize     int
	adapters      []RuntimeAdapter
	source        ArtifactSource
	publisher     EventPublisher
	onnxLibPath   string
	startTime     time.Time

	loadsTotal    atomic.Uint64
	failuresTotal atomic.Uint64
	classified    atomic.Uint64
}

// New constructs a Manager that searches the given directories after the
// TFJS_MODEL_DIR override and the built-in fallbacks.
func New(log zerolog.Logger, envModelDir string, modelDirs ...string) *Manager {
	return NewWithConfig(ManagerConfig{Logger: log, EnvModelDir: envModelDir, ModelDirs: modelDirs})
}

// Ready reports whether a model is cached.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.cur != nil
}

// Candidates returns the artifact directories searched, in order.
func (m *Manager) Candidates() []string {
	return append([]string(nil), m.candidates...)
}

// SetEventPublisher replaces the event sink. nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}
