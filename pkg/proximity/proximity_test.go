package proximity

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geohistoricaldata/cassinigraph/pkg/geo"
)

func scenario() []geo.Node {
	return []geo.Node{
		{ID: "A", Loc: orb.Point{0, 0}},
		{ID: "B", Loc: orb.Point{3, 0}},
		{ID: "C", Loc: orb.Point{10, 0}},
		{ID: "D", Loc: orb.Point{3, 4}},
	}
}

func TestNearInclusiveThreshold(t *testing.T) {
	nodes := scenario()
	idx := NewIndex(nodes)

	got := idx.Near(nodes[0], 5)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Node.ID)
	assert.Equal(t, 3.0, got[0].Distance)
	assert.Equal(t, "D", got[1].Node.ID)
	assert.Equal(t, 5.0, got[1].Distance, "distance equal to threshold is kept")

	assert.Empty(t, idx.Near(nodes[2], 5), "C has no neighbor within 5")
}

func TestCandidatesScenario(t *testing.T) {
	got, err := Candidates(context.Background(), scenario(), 5, Options{Workers: 2})
	require.NoError(t, err)

	var pairs []string
	for _, c := range got {
		pairs = append(pairs, fmt.Sprintf("%s-%s:%g", c.From.ID, c.To.ID, c.Distance))
	}
	assert.Equal(t, []string{
		"A-B:3", "A-D:5",
		"B-A:3", "B-D:4",
		"D-A:5", "D-B:4",
	}, pairs)
}

func TestCandidatesSymmetric(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	nodes := make([]geo.Node, 200)
	for i := range nodes {
		nodes[i] = geo.Node{ID: fmt.Sprintf("%d", i), Loc: orb.Point{rng.Float64() * 1000, rng.Float64() * 1000}}
	}

	got, err := Candidates(context.Background(), nodes, 60, Options{})
	require.NoError(t, err)

	seen := make(map[[2]string]float64, len(got))
	for _, c := range got {
		require.NotEqual(t, c.From.ID, c.To.ID)
		seen[[2]string{c.From.ID, c.To.ID}] = c.Distance
	}
	for k, d := range seen {
		back, ok := seen[[2]string{k[1], k[0]}]
		require.True(t, ok, "missing reverse of %v", k)
		assert.Equal(t, d, back)
	}
}

func TestCandidatesMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	nodes := make([]geo.Node, 150)
	for i := range nodes {
		nodes[i] = geo.Node{ID: fmt.Sprintf("n%d", i), Loc: orb.Point{rng.Float64() * 500, rng.Float64() * 500}}
	}
	const threshold = 40.0

	want := 0
	for _, a := range nodes {
		for _, b := range nodes {
			if a.ID != b.ID && geo.Distance(a.Loc, b.Loc) <= threshold {
				want++
			}
		}
	}

	got, err := Candidates(context.Background(), nodes, threshold, Options{Workers: 4})
	require.NoError(t, err)
	assert.Len(t, got, want)
}

func TestCandidatesIndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	nodes := make([]geo.Node, 300)
	for i := range nodes {
		nodes[i] = geo.Node{ID: fmt.Sprintf("n%d", i), Loc: orb.Point{rng.Float64() * 800, rng.Float64() * 800}}
	}

	serial, err := Candidates(context.Background(), nodes, 50, Options{Workers: 1})
	require.NoError(t, err)
	parallel, err := Candidates(context.Background(), nodes, 50, Options{Workers: 16})
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
}

func TestCandidatesEmpty(t *testing.T) {
	got, err := Candidates(context.Background(), nil, 10, Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCandidatesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Candidates(ctx, scenario(), 5, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
