package vector

// Similar reports whether a and b reach threshold. Element-wise equal vectors
// always qualify, so exact duplicates reach 1.0 despite float32 rounding in the
// dot product; any other pair must reach the threshold exactly.
func Similar(a, b []float32, threshold float64) bool {
	return CosineSimilarity(a, b) >= threshold || equalVectors(a, b)
}

func equalVectors(a, b []float32) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ScanPairs calls fn for every pair i < j of snap that is Similar at threshold.
// It compares every unordered pair: O(n^2) dot products.
func ScanPairs(snap *Snapshot, threshold float64, fn func(i, j int)) {
	n := snap.Len()
	for i := 0; i < n; i++ {
		a := snap.Vectors[i]
		for j := i + 1; j < n; j++ {
			if Similar(a, snap.Vectors[j], threshold) {
				fn(i, j)
			}
		}
	}
}
