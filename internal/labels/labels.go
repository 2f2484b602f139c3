// Package labels maps raw model class names onto the canonical waste
// categories and turns a probability vector into a ClassificationResult.
package labels

import (
	"math"
	"strconv"
	"strings"

	"wastesort/internal/scores"
)

// Category is one of the canonical waste classes.
type Category string

const (
	Biodegradable Category = "biodegradable"
	Hazardous     Category = "hazardous"
	Recyclable    Category = "recyclable"
)

// Categories lists the canonical classes in their default model order.
var Categories = []Category{Biodegradable, Recyclable, Hazardous}

// Precision is the number of decimals kept in reported probabilities.
const Precision = 4

// DefaultLabels returns the label set assumed when a model ships no metadata.
func DefaultLabels() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = string(c)
	}
	return out
}

// match recognizes a category in free label text. Substrings are checked
// loosely so misspelled training labels ("Biodgradable", "Hazrdous") still
// resolve.
func match(raw string) (Category, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "bio"):
		return Biodegradable, true
	case strings.Contains(v, "haz"):
		return Hazardous, true
	case strings.Contains(v, "recy"), strings.Contains(v, "reuse"):
		return Recyclable, true
	}
	return "", false
}

// Canonicalize returns the category for raw label text, defaulting to
// Recyclable when nothing matches.
func Canonicalize(raw string) Category {
	if c, ok := match(raw); ok {
		return c
	}
	return Recyclable
}

// FixTypos rewrites recognized labels to their canonical spelling and keeps
// everything else as-is.
func FixTypos(in []string) []string {
	out := make([]string, len(in))
	for i, l := range in {
		if c, ok := match(l); ok {
			out[i] = string(c)
			continue
		}
		out[i] = l
	}
	return out
}

// Result is the outcome of one classification.
type Result struct {
	RawLabel           string
	Category           Category
	Confidence         float64
	TopIndex           int
	Labels             []string
	ClassProbabilities map[string]float64
}

// Align returns exactly n labels: positional when the lengths agree,
// otherwise the known labels followed by class_<i> placeholders. Blank
// labels become "unknown".
func Align(labels []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		switch {
		case i < len(labels) && strings.TrimSpace(labels[i]) != "":
			out[i] = labels[i]
		case len(labels) == n:
			out[i] = "unknown"
		default:
			out[i] = "class_" + strconv.Itoa(i)
		}
	}
	return out
}

// Reconcile pairs labels with probabilities and picks the arg-max class.
// It never fails: mismatched lengths get placeholder names.
func Reconcile(labels []string, probs []float64) Result {
	names := Align(labels, len(probs))
	top := max(scores.ArgMax(probs), 0)
	res := Result{
		TopIndex:           top,
		Labels:             names,
		ClassProbabilities: make(map[string]float64, len(probs)),
	}
	for i, name := range names {
		res.ClassProbabilities[name] = Round(Clamp(probs[i]))
	}
	if len(probs) == 0 {
		res.RawLabel = "unknown"
		res.Category = Canonicalize(res.RawLabel)
		return res
	}
	res.RawLabel = names[top]
	res.Category = Canonicalize(res.RawLabel)
	res.Confidence = Round(Clamp(probs[top]))
	return res
}

// Clamp limits p to [0,1]; NaN becomes 0.
func Clamp(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Round rounds to Precision decimals.
func Round(p float64) float64 {
	const scale = 1e4
	return math.Round(p*scale) / scale
}
