// Package graph executes Keras layers models exported in the TensorFlow.js
// layers format. Only channels-last float inference with batch size 1 is
// supported; that is what image classifiers exported for the browser need.
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"wastesort/internal/artifact"
	"wastesort/internal/tensor"
)

// Options configures Build.
type Options struct {
	Logger zerolog.Logger
}

// Model is an executable layer graph. It is safe for concurrent Predict
// calls; weights are read-only after Build.
type Model struct {
	net    *network
	name   string
	layers int
	params int
}

// Build parses a modelTopology document and binds its weights.
func Build(topology json.RawMessage, specs []artifact.WeightSpec, data []byte, opts Options) (*Model, error) {
	top, err := unwrapTopology(topology)
	if err != nil {
		return nil, err
	}
	ws, err := newWeightStore(specs, data)
	if err != nil {
		return nil, err
	}
	b := &builder{ws: ws, log: opts.Logger}
	net, err := b.build(top.ClassName, top.Config, nil)
	if err != nil {
		return nil, err
	}
	if len(net.inputs) != 1 {
		return nil, fmt.Errorf("model %s has %d inputs; only single-input models are supported", net.name, len(net.inputs))
	}
	m := &Model{net: net, name: net.name}
	m.layers = countLayers(net)
	for _, w := range ws.byName {
		m.params += w.numel()
	}
	opts.Logger.Debug().
		Str("model", m.name).
		Int("layers", m.layers).
		Int("params", m.params).
		Ints("input_shape", m.InputShape()).
		Msg("layers model built")
	return m, nil
}

func countLayers(n *network) int {
	c := 0
	for _, nd := range n.nodes {
		switch o := nd.op.(type) {
		case nil:
		case *network:
			c += countLayers(o)
		default:
			c++
		}
	}
	return c
}

// FromArtifacts builds a model from loaded layers-model artifacts.
func FromArtifacts(a *artifact.Artifacts, opts Options) (*Model, error) {
	if a.Format != artifact.FormatLayers {
		return nil, fmt.Errorf("artifacts in %s are %s, not %s", a.Dir, a.Format, artifact.FormatLayers)
	}
	return Build(a.Topology, a.WeightSpecs, a.WeightData, opts)
}

// Name returns the model name from the topology.
func (m *Model) Name() string { return m.name }

// Layers returns the number of executable layers.
func (m *Model) Layers() int { return m.layers }

// Params returns the number of weight values bound to the model.
func (m *Model) Params() int { return m.params }

// InputShape returns the per-sample input shape declared by the model, e.g.
// [224 224 3]. Unknown dimensions are -1; nil means the model declares none.
func (m *Model) InputShape() []int {
	return append([]int(nil), m.net.inputShape...)
}

// Predict runs the model on in, which must have batch size 1. The caller
// keeps ownership of in and owns the returned tensors.
func (m *Model) Predict(in *tensor.Tensor) ([]*tensor.Tensor, error) {
	if in == nil || in.Released() {
		return nil, fmt.Errorf("predict: input tensor is nil or released")
	}
	if in.Rank() == 0 || in.Dim(0) != 1 {
		return nil, fmt.Errorf("predict: batch size must be 1, got shape %v", in.Shape())
	}
	if want := m.net.inputShape; len(want) > 0 {
		got := in.Shape()[1:]
		if len(got) != len(want) {
			return nil, fmt.Errorf("predict: input shape %v does not match model input %v", got, want)
		}
		for i, d := range want {
			if d > 0 && got[i] != d {
				return nil, fmt.Errorf("predict: input shape %v does not match model input %v", got, want)
			}
		}
	}
	return m.net.run([]*tensor.Tensor{in})
}
