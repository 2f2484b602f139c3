package scores

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSoftmaxScenario(t *testing.T) {
	probs, applied := Normalize([]float32{2.0, 1.0, 0.1})
	require.True(t, applied)
	assert.InDelta(t, 0.659, probs[0], 5e-4)
	assert.InDelta(t, 0.242, probs[1], 5e-4)
	assert.InDelta(t, 0.099, probs[2], 5e-4)
	assert.Equal(t, 0, ArgMax(probs))
}

func TestNormalizePassThroughScenario(t *testing.T) {
	in := []float32{0.1, 0.7, 0.2}
	probs, applied := Normalize(in)
	require.False(t, applied)
	for i := range in {
		assert.Equal(t, float64(in[i]), probs[i])
	}
	assert.Equal(t, 1, ArgMax(probs))
	assert.InDelta(t, 0.7, probs[1], 1e-6)
}

func TestLooksLikeProbabilitiesBounds(t *testing.T) {
	cases := []struct {
		name string
		in   []float32
		want bool
	}{
		{"exact one", []float32{0.5, 0.5}, true},
		{"near lower edge", []float32{0.96}, true},
		{"near upper edge", []float32{0.5, 0.54}, true},
		{"sum too small", []float32{0.3, 0.3}, false},
		{"sum too large", []float32{0.6, 0.6}, false},
		{"negative entry", []float32{-0.1, 1.1}, false},
		{"entry above one", []float32{1.02, 0}, false},
		{"empty", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, LooksLikeProbabilities(c.in))
		})
	}
}

func TestSoftmaxIsStableForLargeLogits(t *testing.T) {
	probs := Softmax([]float32{1000, 999, -1000})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p) || math.IsInf(p, 0))
	}
	assert.InDelta(t, 1.0, probs[0]+probs[1]+probs[2], 1e-9)
	assert.Greater(t, probs[0], probs[1])
}

func TestSoftmaxEmpty(t *testing.T) {
	assert.Empty(t, Softmax(nil))
	assert.Equal(t, -1, ArgMax(nil))
}

// Vectors that pass detection come back unchanged.
func TestPropertyPassThrough(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for n := 0; n < 500; n++ {
		k := 1 + r.IntN(8)
		v := make([]float32, k)
		var sum float32
		for i := range v {
			v[i] = r.Float32()
			sum += v[i]
		}
		for i := range v {
			v[i] /= sum
		}
		if !LooksLikeProbabilities(v) {
			continue
		}
		probs, applied := Normalize(v)
		require.False(t, applied)
		for i := range v {
			require.Equal(t, float64(v[i]), probs[i])
		}
	}
}

// Vectors that fail detection are softmaxed: they sum to one and keep the arg-max.
func TestPropertySoftmaxPreservesOrder(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for n := 0; n < 500; n++ {
		k := 2 + r.IntN(8)
		v := make([]float32, k)
		for i := range v {
			v[i] = float32(r.NormFloat64() * 5)
		}
		if LooksLikeProbabilities(v) {
			continue
		}
		probs, applied := Normalize(v)
		require.True(t, applied)
		var sum float64
		for _, p := range probs {
			sum += p
		}
		require.InDelta(t, 1.0, sum, 1e-9)
		for i := range v {
			for j := range v {
				if v[i] < v[j] {
					require.LessOrEqual(t, probs[i], probs[j])
				}
			}
		}
		raw := make([]float64, k)
		for i, x := range v {
			raw[i] = float64(x)
		}
		require.Equal(t, ArgMax(raw), ArgMax(probs))
	}
}

func TestSoftmaxNonFinite(t *testing.T) {
	inf, nan := float32(math.Inf(1)), float32(math.NaN())
	cases := []struct {
		name string
		in   []float32
		want []float64
	}{
		{"positive infinity takes all mass", []float32{1, inf, 0.5}, []float64{0, 1, 0}},
		{"infinities share the mass", []float32{inf, -3, inf}, []float64{0.5, 0, 0.5}},
		{"nan gets nothing", []float32{nan, 0, 0}, []float64{0, 0.5, 0.5}},
		{"negative infinity gets nothing", []float32{float32(math.Inf(-1)), 0}, []float64{0, 1}},
		{"all negative infinity", []float32{float32(math.Inf(-1)), float32(math.Inf(-1))}, []float64{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			probs, applied := Normalize(tc.in)
			require.True(t, applied)
			require.Len(t, probs, len(tc.want))
			for i := range probs {
				assert.False(t, math.IsNaN(probs[i]), "index %d is NaN", i)
				assert.InDelta(t, tc.want[i], probs[i], 1e-9, "index %d", i)
			}
		})
	}

	probs, _ := Normalize([]float32{1, inf, 0.5})
	assert.Equal(t, 1, ArgMax(probs))
}
