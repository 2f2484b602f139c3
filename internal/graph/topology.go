package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"wastesort/internal/tensor"
)

type layerSpec struct {
	ClassName    string          `json:"class_name"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config"`
	InboundNodes json.RawMessage `json:"inbound_nodes"`
}

type layerName struct {
	Name            string `json:"name"`
	BatchInputShape []*int `json:"batch_input_shape"`
	BatchShape      []*int `json:"batch_shape"`
}

func (l layerSpec) common() layerName {
	var c layerName
	_ = decode(l.Config, &c)
	if c.Name == "" {
		c.Name = l.Name
	}
	return c
}

// sampleShape drops the batch axis and maps unknown dims to -1.
func (c layerName) sampleShape() []int {
	s := c.BatchInputShape
	if s == nil {
		s = c.BatchShape
	}
	if len(s) < 2 {
		return nil
	}
	out := make([]int, len(s)-1)
	for i, d := range s[1:] {
		out[i] = -1
		if d != nil {
			out[i] = *d
		}
	}
	return out
}

// nodeRef is a Keras 2 inbound reference: [layer, node_index, tensor_index, kwargs].
type nodeRef struct {
	layer  string
	node   int
	tensor int
}

func (r *nodeRef) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("empty node reference")
	}
	if err := json.Unmarshal(parts[0], &r.layer); err != nil {
		return fmt.Errorf("node reference: %w", err)
	}
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &r.node); err != nil {
			return fmt.Errorf("node reference: %w", err)
		}
	}
	if len(parts) > 2 {
		if err := json.Unmarshal(parts[2], &r.tensor); err != nil {
			return fmt.Errorf("node reference: %w", err)
		}
	}
	return nil
}

func parseRefs(raw json.RawMessage) ([]nodeRef, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var many []nodeRef
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var single nodeRef
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []nodeRef{single}, nil
}

type node struct {
	name   string
	op     op // nil for graph inputs
	inputs []int
	uses   int
}

// network is a built layer graph in execution order.
type network struct {
	name       string
	nodes      []node
	inputs     []int
	outputs    []int
	inputShape []int
	log        zerolog.Logger
}

func (n *network) forward(ins []*tensor.Tensor) (*tensor.Tensor, error) {
	outs, err := n.run(ins)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// run executes the graph. Inputs stay owned by the caller; outputs are owned
// by the caller on success. Intermediates are released as soon as their
// last consumer has run.
func (n *network) run(ins []*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(ins) != len(n.inputs) {
		return nil, fmt.Errorf("%s: expected %d inputs, got %d", n.name, len(n.inputs), len(ins))
	}
	scope := tensor.NewScope(n.log)
	defer scope.Close()

	vals := make([]*tensor.Tensor, len(n.nodes))
	left := make([]int, len(n.nodes))
	for i, nd := range n.nodes {
		left[i] = nd.uses
	}
	for i, idx := range n.inputs {
		vals[idx] = ins[i]
	}
	for i := range n.nodes {
		nd := &n.nodes[i]
		if nd.op == nil {
			continue
		}
		args := make([]*tensor.Tensor, len(nd.inputs))
		for j, src := range nd.inputs {
			args[j] = vals[src]
		}
		out, err := nd.op.forward(args)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", nd.name, err)
		}
		scope.Track(out)
		vals[i] = out
		for _, src := range nd.inputs {
			left[src]--
			if left[src] == 0 && n.nodes[src].op != nil {
				if scope.Forget(vals[src]) {
					if err := vals[src].Release(); err != nil {
						n.log.Warn().Err(err).Str("layer", n.nodes[src].name).Msg("failed to release intermediate")
					}
				}
				vals[src] = nil
			}
		}
	}

	outs := make([]*tensor.Tensor, len(n.outputs))
	for k, idx := range n.outputs {
		t := vals[idx]
		if n.nodes[idx].op == nil || !scope.Forget(t) {
			// borrowed input or an output listed twice
			var err error
			if t, err = tensor.FromSlice(t.Data(), t.Shape()...); err != nil {
				for _, o := range outs[:k] {
					scope.Track(o)
				}
				return nil, err
			}
		}
		outs[k] = t
	}
	return outs, nil
}

type topology struct {
	ClassName   string          `json:"class_name"`
	Config      json.RawMessage `json:"config"`
	ModelConfig json.RawMessage `json:"model_config"`
}

func unwrapTopology(raw json.RawMessage) (topology, error) {
	var t topology
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("parse model topology: %w", err)
	}
	if t.ClassName == "" && len(t.ModelConfig) > 0 {
		return unwrapTopology(t.ModelConfig)
	}
	return t, nil
}

type builder struct {
	ws  *weightStore
	log zerolog.Logger
}

func (b *builder) build(className string, cfg json.RawMessage, path []string) (*network, error) {
	switch className {
	case "Sequential":
		return b.sequential(cfg, path)
	case "Model", "Functional":
		return b.functional(cfg, path)
	}
	return nil, fmt.Errorf("unsupported model class %q", className)
}

func isNetwork(className string) bool {
	return className == "Sequential" || className == "Model" || className == "Functional"
}

func (b *builder) layer(spec layerSpec, path []string) (op, []int, error) {
	name := spec.common().Name
	lp := append(append([]string(nil), path...), name)
	if isNetwork(spec.ClassName) {
		sub, err := b.build(spec.ClassName, spec.Config, lp)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(sub.outputs) != 1 || len(sub.inputs) != 1 {
			return nil, nil, fmt.Errorf("%s: nested models must have one input and one output", name)
		}
		return sub, sub.inputShape, nil
	}
	fn, ok := builders[spec.ClassName]
	if !ok {
		return nil, nil, fmt.Errorf("layer %s: unsupported layer class %q", name, spec.ClassName)
	}
	o, err := fn(buildContext{name: name, path: lp, ws: b.ws}, spec.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("layer %s (%s): %w", name, spec.ClassName, err)
	}
	return o, spec.common().sampleShape(), nil
}

func (b *builder) sequential(cfg json.RawMessage, path []string) (*network, error) {
	var c struct {
		Name   string      `json:"name"`
		Layers []layerSpec `json:"layers"`
	}
	if err := json.Unmarshal(cfg, &c); err != nil {
		// legacy format: config is the layer list
		if err2 := json.Unmarshal(cfg, &c.Layers); err2 != nil {
			return nil, fmt.Errorf("parse sequential config: %w", err)
		}
	}
	if len(c.Layers) == 0 {
		return nil, fmt.Errorf("sequential model %q has no layers", c.Name)
	}
	net := &network{name: c.Name, log: b.log, nodes: []node{{name: "input"}}, inputs: []int{0}}
	prev := 0
	for i, spec := range c.Layers {
		o, shape, err := b.layer(spec, path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			net.inputShape = shape
		}
		if _, ok := o.(identity); ok {
			continue
		}
		net.nodes = append(net.nodes, node{name: spec.common().Name, op: o, inputs: []int{prev}})
		prev = len(net.nodes) - 1
	}
	net.outputs = []int{prev}
	net.prune()
	return net, nil
}

func (b *builder) functional(cfg json.RawMessage, path []string) (*network, error) {
	var c struct {
		Name         string          `json:"name"`
		Layers       []layerSpec     `json:"layers"`
		InputLayers  json.RawMessage `json:"input_layers"`
		OutputLayers json.RawMessage `json:"output_layers"`
	}
	if err := json.Unmarshal(cfg, &c); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	inRefs, err := parseRefs(c.InputLayers)
	if err != nil {
		return nil, fmt.Errorf("model %s input_layers: %w", c.Name, err)
	}
	outRefs, err := parseRefs(c.OutputLayers)
	if err != nil {
		return nil, fmt.Errorf("model %s output_layers: %w", c.Name, err)
	}
	if len(inRefs) == 0 || len(outRefs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", c.Name)
	}

	net := &network{name: c.Name, log: b.log}
	// resolved maps a layer name to the node producing its output.
	resolved := make(map[string]int, len(c.Layers))
	isInput := make(map[string]bool, len(inRefs))
	for _, r := range inRefs {
		isInput[r.layer] = true
	}

	pending := c.Layers
	for len(pending) > 0 {
		var next []layerSpec
		for _, spec := range pending {
			name := spec.common().Name
			if isInput[name] {
				net.nodes = append(net.nodes, node{name: name})
				resolved[name] = len(net.nodes) - 1
				net.inputs = append(net.inputs, len(net.nodes)-1)
				if net.inputShape == nil {
					net.inputShape = spec.common().sampleShape()
				}
				continue
			}
			var calls [][]nodeRef
			if err := decode(spec.InboundNodes, &calls); err != nil {
				return nil, fmt.Errorf("layer %s inbound_nodes: %w", name, err)
			}
			if len(calls) != 1 {
				return nil, fmt.Errorf("layer %s is called %d times; only single-call layers are supported", name, len(calls))
			}
			srcs := make([]int, 0, len(calls[0]))
			ready := true
			for _, r := range calls[0] {
				if r.node != 0 || r.tensor != 0 {
					return nil, fmt.Errorf("layer %s references %s[%d][%d]; shared layers are not supported", name, r.layer, r.node, r.tensor)
				}
				idx, ok := resolved[r.layer]
				if !ok {
					ready = false
					break
				}
				srcs = append(srcs, idx)
			}
			if !ready {
				next = append(next, spec)
				continue
			}
			o, _, err := b.layer(spec, path)
			if err != nil {
				return nil, err
			}
			if _, ok := o.(identity); ok && len(srcs) == 1 {
				resolved[name] = srcs[0]
				continue
			}
			net.nodes = append(net.nodes, node{name: name, op: o, inputs: srcs})
			resolved[name] = len(net.nodes) - 1
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("model %s: layer %s has unresolvable inputs", c.Name, next[0].common().Name)
		}
		pending = next
	}

	if len(net.inputs) != len(inRefs) {
		return nil, fmt.Errorf("model %s: %d of %d input layers found", c.Name, len(net.inputs), len(inRefs))
	}
	for _, r := range outRefs {
		idx, ok := resolved[r.layer]
		if !ok {
			return nil, fmt.Errorf("model %s: unknown output layer %s", c.Name, r.layer)
		}
		net.outputs = append(net.outputs, idx)
	}
	net.prune()
	return net, nil
}

// prune drops nodes that do not contribute to an output and recounts uses.
func (n *network) prune() {
	live := make([]bool, len(n.nodes))
	for _, o := range n.outputs {
		live[o] = true
	}
	for _, in := range n.inputs {
		live[in] = true
	}
	for i := len(n.nodes) - 1; i >= 0; i-- {
		if !live[i] {
			continue
		}
		for _, src := range n.nodes[i].inputs {
			live[src] = true
		}
	}
	remap := make([]int, len(n.nodes))
	kept := n.nodes[:0:0]
	for i, nd := range n.nodes {
		if !live[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, nd)
	}
	for i := range kept {
		kept[i].uses = 0
		for j, src := range kept[i].inputs {
			kept[i].inputs[j] = remap[src]
		}
	}
	for i := range kept {
		for _, src := range kept[i].inputs {
			kept[src].uses++
		}
	}
	for i, o := range n.outputs {
		n.outputs[i] = remap[o]
		kept[n.outputs[i]].uses++
	}
	for i, in := range n.inputs {
		n.inputs[i] = remap[in]
	}
	n.nodes = kept
}
