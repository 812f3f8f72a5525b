package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagededup/evidence"
	"imagededup/types"
)

func pair(a, b types.RecordID, weight float64, ms ...types.Method) evidence.PairEvidence {
	p := evidence.PairEvidence{A: a, B: b, Weight: weight}
	for _, m := range ms {
		p.Edges = append(p.Edges, types.SimilarityEdge{A: a, B: b, Method: m, Weight: weight})
	}
	return p
}

func simpleRecords(n int) []types.ImageRecord {
	records := make([]types.ImageRecord, n)
	for i := range records {
		records[i] = types.ImageRecord{
			ID:   types.RecordID(i),
			Path: string(rune('a'+i)) + ".jpg",
		}
	}
	return records
}

func clusterOf(t *testing.T, clusters []types.Cluster, id types.RecordID) types.Cluster {
	t.Helper()
	for _, c := range clusters {
		for _, m := range c.Members {
			if m == id {
				return c
			}
		}
	}
	t.Fatalf("record %d not in any cluster", id)
	return types.Cluster{}
}

func TestBuildPartitionsRecords(t *testing.T) {
	records := simpleRecords(5)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 1.0, types.MethodExact),
		pair(2, 3, 0.6, types.MethodPerceptual),
	}
	clusters := Build(records, pairs, 0.5)

	seen := map[types.RecordID]int{}
	for _, c := range clusters {
		for _, m := range c.Members {
			seen[m]++
		}
	}
	// Every record in exactly one cluster; singletons included.
	require.Len(t, seen, 5)
	for id, count := range seen {
		assert.Equal(t, 1, count, "record %d", id)
	}
	assert.Len(t, clusters, 3)
}

func TestWeakChainsNeverMerge(t *testing.T) {
	// A≈B and B≈C with weak evidence only: bounded transitivity keeps all
	// three apart even though the chain connects them.
	records := simpleRecords(3)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 0.4, types.MethodPerceptual),
		pair(1, 2, 0.4, types.MethodPerceptual),
	}
	clusters := Build(records, pairs, 0.5)
	assert.Len(t, clusters, 3)
}

func TestWeakEdgeContributesSignalsInsideMergedCluster(t *testing.T) {
	records := simpleRecords(3)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 1.0, types.MethodExact),
		pair(1, 2, 0.6, types.MethodPerceptual),
		// Weak edge between records already in one cluster: it may not
		// change confidence, only tag the cluster.
		pair(0, 2, 0.4, types.MethodExifCamera),
	}
	clusters := Build(records, pairs, 0.5)

	c := clusterOf(t, clusters, 0)
	require.Len(t, c.Members, 3)
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)
	assert.Contains(t, c.Signals, types.MethodExifCamera)
}

func TestConfidenceIsWeakestMergeLink(t *testing.T) {
	records := simpleRecords(4)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 1.0, types.MethodExact),
		pair(1, 2, 0.85, types.MethodPerceptual),
		pair(2, 3, 0.6, types.MethodPerceptual),
	}
	clusters := Build(records, pairs, 0.5)

	c := clusterOf(t, clusters, 0)
	require.Len(t, c.Members, 4)
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)
}

func TestExactHashTransitivity(t *testing.T) {
	// Chained exact edges close the whole equivalence class.
	records := simpleRecords(4)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 1.0, types.MethodExact),
		pair(0, 2, 1.0, types.MethodExact),
		pair(0, 3, 1.0, types.MethodExact),
	}
	clusters := Build(records, pairs, 0.5)

	c := clusterOf(t, clusters, 0)
	assert.Equal(t, []types.RecordID{0, 1, 2, 3}, c.Members)
	assert.Equal(t, 1.0, c.Confidence)
}

func TestBuildIsDeterministic(t *testing.T) {
	records := simpleRecords(6)
	pairs := []evidence.PairEvidence{
		pair(0, 1, 1.0, types.MethodExact),
		pair(2, 5, 0.7, types.MethodPerceptual),
		pair(3, 4, 0.6, types.MethodPerceptual),
	}
	first := Build(records, pairs, 0.5)
	second := Build(records, pairs, 0.5)
	assert.Equal(t, first, second)
}
