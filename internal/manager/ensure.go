package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"wastesort/internal/errs"
)

const loadKey = "model"

// EnsureLoaded returns the cached model, loading it first if needed.
// Concurrent callers share one in-flight load; ctx only bounds this
// caller's wait, the load itself runs to completion.
func (m *Manager) EnsureLoaded(ctx context.Context) (*LoadedModel, error) {
	m.mu.RLock()
	if m.state == StateReady && m.cur != nil {
		lm := m.cur
		m.mu.RUnlock()
		return lm, nil
	}
	m.mu.RUnlock()

	ch := m.group.DoChan(loadKey, func() (any, error) { return m.load() })
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*LoadedModel), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) load() (*LoadedModel, error) {
	m.mu.Lock()
	if m.state == StateReady && m.cur != nil {
		lm := m.cur
		m.mu.Unlock()
		return lm, nil
	}
	m.state = StateLoading
	m.mu.Unlock()

	m.publish(EventLoadStart, "", nil)
	start := time.Now()
	lm, err := m.build()
	took := time.Since(start)
	loadDuration.Observe(took.Seconds())

	m.mu.Lock()
	if err != nil {
		m.state = StateNotLoaded
		m.cur = nil
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.failuresTotal.Add(1)
		loadsTotal.WithLabelValues("error").Inc()
		m.log.Error().Err(err).Str("kind", errs.KindOf(err).String()).Dur("took", took).Msg("model load failed")
		m.publish(EventLoadError, "", map[string]any{"error": err.Error(), "kind": errs.KindOf(err).String()})
		return nil, err
	}
	lm.LoadTime = took
	m.state = StateReady
	m.cur = lm
	m.lastErr = ""
	m.mu.Unlock()

	m.loadsTotal.Add(1)
	loadsTotal.WithLabelValues("ok").Inc()
	m.log.Info().
		Str("model_id", lm.ID).
		Str("dir", lm.SourceDir).
		Str("backend", lm.Backend).
		Int("height", lm.InputHeight).
		Int("width", lm.InputWidth).
		Strs("labels", lm.Labels).
		Dur("took", took).
		Msg("model ready")
	m.publish(EventLoadReady, lm.ID, map[string]any{"dir": lm.SourceDir, "backend": lm.Backend})
	return lm, nil
}

// build runs Locator, Loader, runtime construction and input introspection.
func (m *Manager) build() (lm *LoadedModel, err error) {
	dir, err := m.source.Locate(m.candidates)
	if err != nil {
		return nil, err
	}
	art, err := m.source.Load(dir)
	if err != nil {
		return nil, err
	}
	adapter := m.adapterFor(art.Format)
	if adapter == nil {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("no runtime adapter for %s artifacts", art.Format))
	}

	var rm RuntimeModel
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = errs.WithPath(errs.ArtifactCorrupt, dir, "model construction panicked", fmt.Errorf("%v", p))
			}
		}()
		rm, err = adapter.Build(art)
	}()
	if err != nil {
		return nil, err
	}

	md, mdErr := m.source.Metadata(dir)
	switch {
	case mdErr == nil:
	case errors.Is(mdErr, os.ErrNotExist):
		m.log.Info().Str("dir", dir).Msg("no metadata.json; using default labels")
	default:
		m.log.Warn().Err(mdErr).Str("dir", dir).Msg("ignoring unreadable metadata.json; using default labels")
		md = nil
	}

	layout := rm.Layout()
	h, w := inputSize(rm.InputShape(), layout, md, m.inputSize)
	return &LoadedModel{
		ID:          uuid.NewString(),
		Model:       rm,
		Labels:      m.resolveLabels(md),
		InputHeight: h,
		InputWidth:  w,
		Layout:      layout,
		SourceDir:   dir,
		Backend:     adapter.Name(),
		LoadedAt:    time.Now(),
	}, nil
}

func (m *Manager) adapterFor(format string) RuntimeAdapter {
	for _, a := range m.adapters {
		if a.Supports(format) {
			return a
		}
	}
	return nil
}
