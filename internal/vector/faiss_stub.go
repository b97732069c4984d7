//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

// FAISSPairs falls back to ScanPairs when built without the faiss tag.
type FAISSPairs struct {
	BatchSize int
}

// FAISSAvailable reports whether FAISS support is compiled in (build tag faiss).
func FAISSAvailable() bool { return false }

// Pairs calls fn for every pair i < j of snap that is Similar at threshold.
func (FAISSPairs) Pairs(snap *Snapshot, threshold float64, fn func(i, j int)) {
	ScanPairs(snap, threshold, fn)
}
