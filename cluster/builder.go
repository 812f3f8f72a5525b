// Package cluster collapses the evidence graph into duplicate-equivalence
// clusters and picks a deterministic canonical per cluster.
package cluster

import (
	"sort"

	"imagededup/evidence"
	"imagededup/types"
)

// Build partitions the record set into clusters. Pairs must arrive in
// descending combined-weight order (evidence.Builder guarantees it) so
// strong evidence merges first.
//
// Bounded transitivity: a merge only ever happens on a single direct edge
// whose combined weight meets mergeThreshold. Weak edges never trigger a
// merge, no matter how long a chain they form; once their endpoints ended up
// in the same cluster anyway they only contribute their method tags to the
// cluster's signal list. Cluster confidence is the weakest merge-triggering
// edge along the merge history.
func Build(records []types.ImageRecord, pairs []evidence.PairEvidence, mergeThreshold float64) []types.Cluster {
	n := len(records)
	uf := newUnionFind(n)

	confidence := make([]float64, n)
	for i := range confidence {
		confidence[i] = 1.0
	}

	for _, p := range pairs {
		if p.Weight < mergeThreshold {
			continue
		}
		ra, rb := uf.find(int(p.A)), uf.find(int(p.B))
		if ra == rb {
			continue
		}
		merged := min3(confidence[ra], confidence[rb], p.Weight)
		root := uf.union(ra, rb)
		confidence[root] = merged
	}

	// Signal attribution pass: every edge whose endpoints share a cluster,
	// including weak ones that never merged anything, tags the cluster.
	signals := make(map[int]map[types.Method]struct{})
	for _, p := range pairs {
		root := uf.find(int(p.A))
		if root != uf.find(int(p.B)) {
			continue
		}
		set, ok := signals[root]
		if !ok {
			set = make(map[types.Method]struct{})
			signals[root] = set
		}
		for _, e := range p.Edges {
			set[e.Method] = struct{}{}
		}
	}

	members := make(map[int][]types.RecordID)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		members[root] = append(members[root], types.RecordID(i))
	}

	// Cluster ids follow the smallest member id, so unchanged input yields
	// identical numbering across runs.
	roots := make([]int, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return members[roots[i]][0] < members[roots[j]][0]
	})

	clusters := make([]types.Cluster, 0, len(roots))
	for i, root := range roots {
		ids := members[root]
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

		c := types.Cluster{
			ID:         i,
			Members:    ids,
			Canonical:  SelectCanonical(records, ids),
			Confidence: confidence[root],
			Signals:    sortedSignals(signals[root]),
		}
		clusters = append(clusters, c)
	}
	return clusters
}

func sortedSignals(set map[types.Method]struct{}) []types.Method {
	if len(set) == 0 {
		return nil
	}
	out := make([]types.Method, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
