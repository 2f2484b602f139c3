// Package scores turns a raw model output vector into a probability
// distribution.
//
// Models differ in whether their last layer already applies softmax. The
// detection below treats a vector as probabilities when it sums to roughly
// one and every entry lies in [0,1]; anything else is taken as logits and
// passed through a max-shifted softmax.
package scores

import "math"

// Detection thresholds for already-normalized output.
const (
	MinProbabilitySum = 0.95
	MaxProbabilitySum = 1.05
)

// Stats summarizes a score vector.
type Stats struct {
	Sum, Min, Max float64
}

// Summarize computes sum, min and max. An empty vector yields zeros.
func Summarize(v []float32) Stats {
	if len(v) == 0 {
		return Stats{}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, x := range v {
		f := float64(x)
		s.Sum += f
		s.Min = math.Min(s.Min, f)
		s.Max = math.Max(s.Max, f)
	}
	return s
}

// LooksLikeProbabilities reports whether v is already a distribution.
func LooksLikeProbabilities(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	s := Summarize(v)
	return s.Sum >= MinProbabilitySum && s.Sum <= MaxProbabilitySum && s.Min >= 0 && s.Max <= 1
}

// Softmax applies a numerically stable softmax. NaN entries get zero
// probability. When any entry is +Inf the +Inf entries share all the mass.
// A zero exponential sum is replaced by 1.
func Softmax(v []float32) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	m := math.Inf(-1)
	for _, x := range v {
		if f := float64(x); !math.IsNaN(f) && f > m {
			m = f
		}
	}
	var sum float64
	for i, x := range v {
		f := float64(x)
		switch {
		case math.IsNaN(f):
			out[i] = 0
		case math.IsInf(m, 0):
			// all finite mass vanishes next to +Inf; an all -Inf vector stays zero
			if f == m && m > 0 {
				out[i] = 1
			}
		default:
			out[i] = math.Exp(f - m)
		}
		sum += out[i]
	}
	if sum == 0 {
		sum = 1
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Normalize returns probabilities for v and whether softmax was applied.
// Already-normalized vectors are passed through unchanged.
func Normalize(v []float32) ([]float64, bool) {
	if LooksLikeProbabilities(v) {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, false
	}
	return Softmax(v), true
}

// ArgMax returns the index of the largest value; the first wins ties.
// It returns -1 for an empty slice.
func ArgMax(v []float64) int {
	idx := -1
	best := math.Inf(-1)
	for i, x := range v {
		if x > best || idx < 0 {
			best = x
			idx = i
		}
	}
	return idx
}
