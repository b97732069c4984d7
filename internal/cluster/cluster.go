// Package cluster partitions a vector snapshot into groups of visually similar
// images and resolves the complementary unclustered set.
package cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hyperjump/ruiji/internal/vector"
)

// Cluster is an ordered list of image identifiers with at least two members.
type Cluster []string

// ValidateThreshold rejects NaN and values outside [0, 1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// ParseThreshold parses s as a threshold. An empty string yields def.
func ParseThreshold(s string, def float64) (float64, error) {
	if s == "" {
		return def, ValidateThreshold(def)
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, s)
	}
	if err := ValidateThreshold(t); err != nil {
		return 0, err
	}
	return t, nil
}

// Compute groups the snapshot into connected components of the graph whose edges
// are pairs with similarity >= threshold. Singletons are dropped. Members keep
// snapshot order and clusters are sorted by ascending size; clusters of equal
// size keep the order of their first member. A nil pairs uses BruteForce.
func Compute(snap *vector.Snapshot, threshold float64, pairs PairSource) ([]Cluster, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if snap == nil || snap.Len() < 2 {
		return []Cluster{}, nil
	}
	if pairs == nil {
		pairs = BruteForce{}
	}

	uf := NewUnionFind(snap.Len())
	pairs.Pairs(snap, threshold, func(i, j int) {
		uf.Union(i, j)
	})

	slot := make(map[int]int)
	var groups []Cluster
	for i, id := range snap.IDs {
		root := uf.Find(i)
		k, ok := slot[root]
		if !ok {
			k = len(groups)
			slot[root] = k
			groups = append(groups, nil)
		}
		groups[k] = append(groups[k], id)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		if len(g) > 1 {
			clusters = append(clusters, g)
		}
	}
	sort.SliceStable(clusters, func(a, b int) bool {
		return len(clusters[a]) < len(clusters[b])
	})
	return clusters, nil
}
