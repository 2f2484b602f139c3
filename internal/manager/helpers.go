package manager

import (
	"wastesort/internal/artifact"
	"wastesort/internal/labels"
	"wastesort/internal/tensor"
)

// maxInputSide bounds what counts as a sensible declared input size.
const maxInputSide = 4096

func sensible(d int) bool { return d > 0 && d <= maxInputSide }

// inputSize derives the model's input height and width from its declared
// per-sample shape, then metadata imageSize, then def.
func inputSize(shape []int, layout tensor.Layout, md *artifact.Metadata, def int) (h, w int) {
	if len(shape) == 3 {
		h, w = shape[0], shape[1]
		if layout == tensor.NCHW {
			h, w = shape[1], shape[2]
		}
		if sensible(h) && sensible(w) {
			return h, w
		}
	}
	if md != nil && sensible(md.ImageSize) {
		return md.ImageSize, md.ImageSize
	}
	return def, def
}

// resolveLabels picks metadata labels when present, the defaults otherwise,
// and fixes recognized typos either way.
func (m *Manager) resolveLabels(md *artifact.Metadata) []string {
	l := md.ClassLabels()
	if len(l) == 0 {
		l = append([]string(nil), m.defaultLabels...)
	}
	return labels.FixTypos(l)
}
