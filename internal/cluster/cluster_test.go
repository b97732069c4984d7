package cluster

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(t *testing.T, ids []string, vecs [][]float32) *vector.Snapshot {
	t.Helper()
	s := vector.NewStore(0)
	for i, id := range ids {
		v := append([]float32(nil), vecs[i]...)
		utils.NormalizeL2(v)
		require.NoError(t, s.Put(id, v))
	}
	return s.Snapshot()
}

// abcSnapshot returns unit vectors with sim(A,B)=0.95, sim(A,C)=0.81, sim(B,C)=0.79.
func abcSnapshot(t *testing.T) *vector.Snapshot {
	by := math.Sqrt(1 - 0.95*0.95)
	cy := (0.79 - 0.95*0.81) / by
	cz := math.Sqrt(1 - 0.81*0.81 - cy*cy)
	return snapshotOf(t,
		[]string{"/p/A.jpg", "/p/B.jpg", "/p/C.jpg"},
		[][]float32{
			{1, 0, 0},
			{0.95, float32(by), 0},
			{0.81, float32(cy), float32(cz)},
		})
}

func randomSnapshot(t *testing.T, n, dims int, seed int64) *vector.Snapshot {
	r := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := range ids {
		ids[i] = "/r/" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".png"
		v := make([]float32, dims)
		for d := range v {
			v[d] = float32(r.Float64() + 0.1)
		}
		vecs[i] = v
	}
	return snapshotOf(t, ids, vecs)
}

func TestCompute_Scenario(t *testing.T) {
	snap := abcSnapshot(t)

	clusters, err := Compute(snap, 0.8, nil)
	require.NoError(t, err)
	assert.Equal(t, []Cluster{{"/p/A.jpg", "/p/B.jpg", "/p/C.jpg"}}, clusters)
	assert.Empty(t, Unclustered(snap, clusters, ByName, nil))

	clusters, err = Compute(snap, 0.9, BruteForce{})
	require.NoError(t, err)
	assert.Equal(t, []Cluster{{"/p/A.jpg", "/p/B.jpg"}}, clusters)
	assert.Equal(t, []string{"/p/C.jpg"}, Unclustered(snap, clusters, ByName, nil))
}

func TestCompute_Empty(t *testing.T) {
	clusters, err := Compute(vector.NewStore(0).Snapshot(), 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	clusters, err = Compute(nil, 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestCompute_InvalidThreshold(t *testing.T) {
	snap := abcSnapshot(t)
	for _, th := range []float64{-0.1, 1.01, math.NaN()} {
		_, err := Compute(snap, th, nil)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestCompute_ThresholdBoundaries(t *testing.T) {
	snap := snapshotOf(t,
		[]string{"/d/1.png", "/d/2.png", "/d/3.png", "/d/4.png"},
		[][]float32{{0.3, 0.4, 0.5}, {1, 0, 0}, {0.3, 0.4, 0.5}, {-1, 0, 0}})

	exact, err := Compute(snap, 1.0, nil)
	require.NoError(t, err)
	assert.Equal(t, []Cluster{{"/d/1.png", "/d/3.png"}}, exact)

	all, err := Compute(snap, 0.0, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, snap.IDs, []string(all[0]))
}

func TestCompute_SortedBySizeStable(t *testing.T) {
	snap := snapshotOf(t,
		[]string{"/s/a", "/s/b", "/s/c", "/s/d", "/s/e", "/s/f", "/s/g"},
		[][]float32{
			{1, 0, 0}, // triple
			{0, 1, 0}, // pair 1
			{1, 0, 0},
			{0, 0, 1}, // pair 2
			{0, 1, 0},
			{1, 0, 0},
			{0, 0, 1},
		})
	clusters, err := Compute(snap, 0.99, nil)
	require.NoError(t, err)
	assert.Equal(t, []Cluster{
		{"/s/b", "/s/e"},
		{"/s/d", "/s/g"},
		{"/s/a", "/s/c", "/s/f"},
	}, clusters)
}

func TestCompute_PartitionInvariant(t *testing.T) {
	snap := randomSnapshot(t, 60, 4, 7)
	for _, th := range []float64{0, 0.5, 0.9, 0.97, 0.99, 1} {
		clusters, err := Compute(snap, th, nil)
		require.NoError(t, err)
		rest := Unclustered(snap, clusters, ByName, nil)

		seen := make(map[string]int)
		for _, c := range clusters {
			assert.Greater(t, len(c), 1)
			for _, id := range c {
				seen[id]++
			}
		}
		for _, id := range rest {
			seen[id]++
		}
		assert.Len(t, seen, snap.Len(), "threshold %v", th)
		for id, n := range seen {
			assert.Equal(t, 1, n, "id %s at threshold %v", id, th)
		}
	}
}

func TestCompute_RefinementMonotonicity(t *testing.T) {
	snap := randomSnapshot(t, 50, 5, 42)
	lower, err := Compute(snap, 0.9, nil)
	require.NoError(t, err)
	higher, err := Compute(snap, 0.97, nil)
	require.NoError(t, err)

	owner := make(map[string]int)
	for i, c := range lower {
		for _, id := range c {
			owner[id] = i
		}
	}
	for _, c := range higher {
		first, ok := owner[c[0]]
		require.True(t, ok, "%s clustered at 0.97 but not at 0.9", c[0])
		for _, id := range c[1:] {
			assert.Equal(t, first, owner[id])
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	snap := randomSnapshot(t, 40, 3, 3)
	a, err := Compute(snap, 0.95, nil)
	require.NoError(t, err)
	b, err := Compute(snap, 0.95, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

type recordingPairs struct {
	called bool
}

func (r *recordingPairs) Pairs(snap *vector.Snapshot, threshold float64, fn func(i, j int)) {
	r.called = true
	fn(0, snap.Len()-1)
}

func TestCompute_CustomPairSource(t *testing.T) {
	snap := abcSnapshot(t)
	src := &recordingPairs{}
	clusters, err := Compute(snap, 0.99, src)
	require.NoError(t, err)
	assert.True(t, src.called)
	assert.Equal(t, []Cluster{{"/p/A.jpg", "/p/C.jpg"}}, clusters)
}

func TestParseThreshold(t *testing.T) {
	th, err := ParseThreshold("", 0.8)
	require.NoError(t, err)
	assert.Equal(t, 0.8, th)

	th, err = ParseThreshold("0.25", 0.8)
	require.NoError(t, err)
	assert.Equal(t, 0.25, th)

	for _, bad := range []string{"abc", "1.5", "-1", "NaN"} {
		_, err := ParseThreshold(bad, 0.8)
		assert.ErrorIs(t, err, ErrInvalidThreshold, bad)
	}
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind(5)
	assert.True(t, uf.Union(0, 1))
	assert.True(t, uf.Union(3, 4))
	assert.False(t, uf.Union(1, 0))
	assert.True(t, uf.Union(1, 4))

	roots := []int{uf.Find(0), uf.Find(1), uf.Find(3), uf.Find(4)}
	sort.Ints(roots)
	assert.Equal(t, roots[0], roots[3])
	assert.NotEqual(t, uf.Find(2), uf.Find(0))
}

func TestNewPairSource(t *testing.T) {
	for _, name := range []string{"", PairsBruteForce} {
		src, err := NewPairSource(name)
		require.NoError(t, err)
		assert.IsType(t, BruteForce{}, src)
	}

	src, err := NewPairSource(PairsFAISS)
	if vector.FAISSAvailable() {
		require.NoError(t, err)
		assert.IsType(t, vector.FAISSPairs{}, src)
	} else {
		assert.Error(t, err)
	}

	_, err = NewPairSource("annoy")
	assert.Error(t, err)
}

func TestCompute_FAISSPairsAgreesWithBruteForce(t *testing.T) {
	snap := randomSnapshot(t, 80, 6, 3)
	for _, threshold := range []float64{0.9, 0.97, 0.99} {
		want, err := Compute(snap, threshold, BruteForce{})
		require.NoError(t, err)
		got, err := Compute(snap, threshold, vector.FAISSPairs{BatchSize: 32})
		require.NoError(t, err)
		assert.Equal(t, want, got, "threshold %v", threshold)
	}
}
