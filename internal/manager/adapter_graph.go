package manager

import (
	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
	"wastesort/internal/errs"
	"wastesort/internal/graph"
	"wastesort/internal/tensor"
)

// graphAdapter runs layers-model artifacts on the pure-Go executor.
type graphAdapter struct {
	log zerolog.Logger
}

// NewGraphAdapter returns the adapter for model.json artifacts.
func NewGraphAdapter(log zerolog.Logger) RuntimeAdapter {
	return &graphAdapter{log: log}
}

func (a *graphAdapter) Name() string { return "layers" }

func (a *graphAdapter) Supports(format string) bool { return format == artifact.FormatLayers }

func (a *graphAdapter) Build(art *artifact.Artifacts) (RuntimeModel, error) {
	m, err := graph.FromArtifacts(art, graph.Options{Logger: a.log})
	if err != nil {
		return nil, errs.WithPath(errs.ArtifactCorrupt, art.Dir, "build layers model", err)
	}
	a.log.Info().
		Str("model", m.Name()).
		Int("layers", m.Layers()).
		Int("params", m.Params()).
		Str("generated_by", art.GeneratedBy).
		Msg("layers model ready")
	return &graphModel{m: m}, nil
}

type graphModel struct {
	m *graph.Model
}

func (g *graphModel) InputShape() []int { return g.m.InputShape() }

func (g *graphModel) Layout() tensor.Layout { return tensor.NHWC }

func (g *graphModel) Predict(in *tensor.Tensor) ([]*tensor.Tensor, error) { return g.m.Predict(in) }

// Close is a no-op; weights are plain Go memory.
func (g *graphModel) Close() error { return nil }
