package vector

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

type pair struct{ i, j int }

func collect(scan func(snap *Snapshot, threshold float64, fn func(i, j int)), snap *Snapshot, threshold float64) map[pair]bool {
	out := make(map[pair]bool)
	scan(snap, threshold, func(i, j int) { out[pair{i, j}] = true })
	return out
}

func unitSnapshot(rows ...[]float32) *Snapshot {
	snap := &Snapshot{}
	for i, r := range rows {
		v := append([]float32(nil), r...)
		n := L2Norm(v)
		for k := range v {
			v[k] = float32(float64(v[k]) / n)
		}
		snap.IDs = append(snap.IDs, string(rune('a'+i)))
		snap.Vectors = append(snap.Vectors, v)
	}
	return snap
}

func randomUnitSnapshot(n, dims int, seed int64) *Snapshot {
	r := rand.New(rand.NewSource(seed))
	rows := make([][]float32, n)
	base := make([]float32, dims)
	for k := range base {
		base[k] = float32(r.NormFloat64())
	}
	for i := range rows {
		rows[i] = make([]float32, dims)
		for k := range rows[i] {
			// Mix a shared direction in so some pairs land near typical thresholds.
			rows[i][k] = base[k]*float32(r.Float64()) + float32(r.NormFloat64())*0.5
		}
	}
	return unitSnapshot(rows...)
}

func TestSimilar(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{float32(math.Sqrt(0.5)), float32(math.Sqrt(0.5))}
	if !Similar(a, a, 1.0) {
		t.Error("identical vectors must reach threshold 1.0")
	}
	if !Similar(a, b, 0.7) || Similar(a, b, 0.71) {
		t.Errorf("cos(a,b)=%v: unexpected Similar result", CosineSimilarity(a, b))
	}
	if !Similar(a, []float32{-1, 0}, 0) {
		t.Error("every pair reaches threshold 0")
	}
}

func TestSimilar_ExactOnlyAtOne(t *testing.T) {
	a := []float32{1, 0}
	// cos(a, near) is just under 1.0: within float rounding, but not equal.
	near := []float32{float32(math.Cos(0.001)), float32(math.Sin(0.001))}
	sim := CosineSimilarity(a, near)
	if sim >= 1 {
		t.Fatalf("setup: similarity %v should be below 1", sim)
	}
	if Similar(a, near, 1.0) {
		t.Errorf("similarity %v must not reach threshold 1.0", sim)
	}
	if !Similar(a, near, 0.999) {
		t.Errorf("similarity %v should reach 0.999", sim)
	}
	dup := append([]float32(nil), near...)
	if !Similar(near, dup, 1.0) {
		t.Error("element-wise equal vectors must reach threshold 1.0")
	}
}

func TestScanPairs_ThresholdOneNeedsEqualVectors(t *testing.T) {
	snap := unitSnapshot(
		[]float32{1, 0.01, 0},
		[]float32{1, 0.011, 0},
		[]float32{0.3, 0.4, 0.5},
	)
	if n := len(collect(ScanPairs, snap, 1.0)); n != 0 {
		t.Errorf("distinct vectors at threshold 1.0: got %d pairs, want 0", n)
	}
	snap.Vectors = append(snap.Vectors, append([]float32(nil), snap.Vectors[2]...))
	snap.IDs = append(snap.IDs, "dup")
	got := collect(ScanPairs, snap, 1.0)
	if !reflect.DeepEqual(got, map[pair]bool{{2, 3}: true}) {
		t.Errorf("threshold 1.0 with a duplicate: got %v", got)
	}
}

func TestScanPairs(t *testing.T) {
	snap := unitSnapshot(
		[]float32{1, 0, 0},
		[]float32{0.99, 0.1, 0},
		[]float32{0, 1, 0},
	)
	got := collect(ScanPairs, snap, 0.9)
	want := map[pair]bool{{0, 1}: true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanPairs = %v, want %v", got, want)
	}
	if n := len(collect(ScanPairs, snap, 0)); n != 3 {
		t.Errorf("threshold 0: got %d pairs, want 3", n)
	}
	if n := len(collect(ScanPairs, &Snapshot{}, 0)); n != 0 {
		t.Errorf("empty snapshot: got %d pairs", n)
	}
}

func TestFAISSPairs_MatchesScan(t *testing.T) {
	snap := randomUnitSnapshot(60, 8, 7)
	for _, threshold := range []float64{0, 0.3, 0.6, 0.9, 1} {
		want := collect(ScanPairs, snap, threshold)
		got := collect(FAISSPairs{BatchSize: 16}.Pairs, snap, threshold)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("threshold %v: FAISSPairs found %d pairs, ScanPairs %d (faiss=%v)",
				threshold, len(got), len(want), FAISSAvailable())
		}
	}
}

func TestFAISSPairs_Small(t *testing.T) {
	var calls int
	FAISSPairs{}.Pairs(unitSnapshot([]float32{1, 0}), 0, func(i, j int) { calls++ })
	if calls != 0 {
		t.Errorf("single entry produced %d pairs", calls)
	}
}
