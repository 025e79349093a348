package stats

import (
	"math"
	"testing"
)

func TestComputeInsufficientSamples(t *testing.T) {
	for _, values := range [][]float64{nil, {}, {1}, {1, 2}} {
		b := Compute(values)
		if b.Valid() {
			t.Fatalf("baseline over %d samples should be invalid", len(values))
		}
		if b.SampleCount != len(values) {
			t.Fatalf("sample count should be %d, got %d", len(values), b.SampleCount)
		}
	}
}

func TestComputeMeanAndStdDev(t *testing.T) {
	b := Compute([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !b.Valid() {
		t.Fatal("baseline should be valid")
	}
	if b.Mean != 5 {
		t.Fatalf("expected mean 5, got %v", b.Mean)
	}
	if b.StdDev != 2 {
		t.Fatalf("expected population stdev 2, got %v", b.StdDev)
	}
}

func TestChangeFractionGuardsZeroMean(t *testing.T) {
	if _, ok := ChangeFraction(10, 0); ok {
		t.Fatal("change fraction against a zero mean must be undefined")
	}

	change, ok := ChangeFraction(125, 100)
	if !ok {
		t.Fatal("change fraction should be defined")
	}
	if math.Abs(change-0.25) > 1e-9 {
		t.Fatalf("expected change 0.25, got %v", change)
	}
}

func TestZScoreZeroStdDev(t *testing.T) {
	if z := ZScore([]float64{100, 100, 100, 100}, 150); z != 0 {
		t.Fatalf("zero stdev must yield z-score 0, got %v", z)
	}
}

func TestZScore(t *testing.T) {
	z := ZScore([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 9)
	if math.Abs(z-2) > 1e-9 {
		t.Fatalf("expected z-score 2, got %v", z)
	}
}
