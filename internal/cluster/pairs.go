package cluster

import (
	"fmt"

	"github.com/hyperjump/ruiji/internal/vector"
)

// PairSource enumerates the index pairs (i < j) of a snapshot whose similarity is
// at least threshold. Compute only needs the pairs, so an approximate
// neighbour search can replace the brute-force scan without touching grouping.
type PairSource interface {
	Pairs(snap *vector.Snapshot, threshold float64, fn func(i, j int))
}

// BruteForce compares every unordered pair: O(n^2) dot products.
type BruteForce struct{}

// Pairs implements PairSource.
func (BruteForce) Pairs(snap *vector.Snapshot, threshold float64, fn func(i, j int)) {
	vector.ScanPairs(snap, threshold, fn)
}

// Pair source names accepted by NewPairSource.
const (
	PairsBruteForce = "brute_force"
	PairsFAISS      = "faiss"
)

// NewPairSource returns the named pair source. "" selects brute force. FAISS
// requires the faiss build tag; without it the request is an error.
func NewPairSource(name string) (PairSource, error) {
	switch name {
	case "", PairsBruteForce:
		return BruteForce{}, nil
	case PairsFAISS:
		if !vector.FAISSAvailable() {
			return nil, fmt.Errorf("FAISS not available: build with -tags=faiss and install the FAISS library")
		}
		return vector.FAISSPairs{}, nil
	default:
		return nil, fmt.Errorf("unknown pair source %q (supported: %s, %s)", name, PairsBruteForce, PairsFAISS)
	}
}
