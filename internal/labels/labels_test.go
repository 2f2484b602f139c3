package labels

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"biodegradable", Biodegradable},
		{"Biodgradable", Biodegradable},
		{"  BIO waste ", Biodegradable},
		{"Hazrdous", Hazardous},
		{"hazardous", Hazardous},
		{"Recycleable", Recyclable},
		{"reuseable", Recyclable},
		{"recyclable", Recyclable},
		{"glass bottle", Recyclable},
		{"", Recyclable},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	for _, c := range Categories {
		if got := Canonicalize(string(c)); got != c {
			t.Fatalf("Canonicalize(%q) = %q", c, got)
		}
		if got := Canonicalize(string(Canonicalize(string(c) + " typo"))); got != c {
			t.Fatalf("second pass changed %q to %q", c, got)
		}
	}
}

func TestFixTyposKeepsUnknownLabels(t *testing.T) {
	got := FixTypos([]string{"Biodgradable", "Hazrdous", "Recyclabel", "Class 4"})
	want := []string{"biodegradable", "hazardous", "recyclable", "Class 4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FixTypos mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileSoftmaxScenario(t *testing.T) {
	probs := []float64{0.6590011388859679, 0.24243297070471392, 0.09856589040931818}
	res := Reconcile([]string{"biodegradable", "hazardous", "recyclable"}, probs)
	if res.TopIndex != 0 || res.RawLabel != "biodegradable" || res.Category != Biodegradable {
		t.Fatalf("unexpected top: %+v", res)
	}
	if res.Confidence != 0.659 {
		t.Fatalf("confidence=%v want 0.659", res.Confidence)
	}
	want := map[string]float64{"biodegradable": 0.659, "hazardous": 0.2424, "recyclable": 0.0986}
	if diff := cmp.Diff(want, res.ClassProbabilities); diff != "" {
		t.Fatalf("probabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileSynthesizesPlaceholders(t *testing.T) {
	res := Reconcile([]string{"biodegradable", "hazardous"}, []float64{0.1, 0.2, 0.7})
	if diff := cmp.Diff([]string{"biodegradable", "hazardous", "class_2"}, res.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if res.RawLabel != "class_2" || res.Category != Recyclable {
		t.Fatalf("unexpected top: %+v", res)
	}
	if _, ok := res.ClassProbabilities["class_2"]; !ok {
		t.Fatalf("class_2 missing from distribution: %v", res.ClassProbabilities)
	}
}

func TestReconcileMoreLabelsThanScores(t *testing.T) {
	res := Reconcile([]string{"a", "b", "c", "d"}, []float64{0.3, 0.7})
	if diff := cmp.Diff([]string{"a", "b"}, res.Labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileBlankLabelBecomesUnknown(t *testing.T) {
	res := Reconcile([]string{"hazardous", " "}, []float64{0.1, 0.9})
	if res.RawLabel != "unknown" {
		t.Fatalf("raw label=%q", res.RawLabel)
	}
}

func TestReconcileClampsAndRounds(t *testing.T) {
	res := Reconcile([]string{"x", "y", "z"}, []float64{1.2, -0.5, 0.123456})
	if res.ClassProbabilities["x"] != 1 || res.ClassProbabilities["y"] != 0 || res.ClassProbabilities["z"] != 0.1235 {
		t.Fatalf("unexpected distribution: %v", res.ClassProbabilities)
	}
	if res.Confidence != 1 {
		t.Fatalf("confidence=%v", res.Confidence)
	}
}

func TestReconcileFirstMaxWins(t *testing.T) {
	res := Reconcile([]string{"hazardous", "biodegradable"}, []float64{0.5, 0.5})
	if res.TopIndex != 0 || res.Category != Hazardous {
		t.Fatalf("unexpected tie break: %+v", res)
	}
}

func TestActionForFallsBackToRecyclable(t *testing.T) {
	a := ActionFor("unknown")
	if a.Recommended != ActionFor(Recyclable).Recommended {
		t.Fatalf("unexpected fallback: %+v", a)
	}
	h := ActionFor(Hazardous)
	h.Alternatives[0] = "mutated"
	if ActionFor(Hazardous).Alternatives[0] == "mutated" {
		t.Fatalf("ActionFor must return a copy")
	}
}
