// Package index provides the shared Hamming-distance similarity index over
// perceptual hashes. It is an explicitly constructed service instance, never
// ambient state, so isolated tests and parallel runs stay possible.
package index

import (
	"sync"

	"github.com/artyom/phash"

	"imagededup/logging"
	"imagededup/types"
)

// Match is one query hit.
type Match struct {
	ID       types.RecordID
	Distance int
}

// Index answers radius queries over inserted perceptual hashes in sub-linear
// time. Internally it is a BK-tree keyed by Hamming distance: every child
// edge is labeled with the distance to its parent, so a radius query only
// descends edges within [d-r, d+r] instead of comparing against every hash.
//
// Queries must return every inserted id within the requested radius; that is
// a correctness contract, not a performance hint. The tree is guarded by a
// readers-writer lock: queries proceed concurrently, inserts take the write
// side.
type Index struct {
	mu       sync.RWMutex
	root     *node
	byHash   map[uint64][]types.RecordID
	inserted map[types.RecordID]uint64
}

type node struct {
	hash     uint64
	children map[int]*node
}

// New returns an empty index.
func New() *Index {
	return &Index{
		byHash:   make(map[uint64][]types.RecordID),
		inserted: make(map[types.RecordID]uint64),
	}
}

// Insert adds a hash for an id. Re-inserting the same id with the same hash
// is a no-op; a conflicting hash for a known id keeps the first value.
func (ix *Index) Insert(id types.RecordID, hash uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.inserted[id]; ok {
		if prev != hash {
			logging.LogWarning("index: id %d re-inserted with different hash, keeping first", id)
		}
		return
	}
	ix.inserted[id] = hash

	_, known := ix.byHash[hash]
	ix.byHash[hash] = append(ix.byHash[hash], id)
	if known {
		// The tree stores distinct hash values; ids fan out via byHash.
		return
	}

	if ix.root == nil {
		ix.root = &node{hash: hash}
		return
	}
	cur := ix.root
	for {
		d := phash.Distance(cur.hash, hash)
		if cur.children == nil {
			cur.children = make(map[int]*node)
		}
		child, ok := cur.children[d]
		if !ok {
			cur.children[d] = &node{hash: hash}
			return
		}
		cur = child
	}
}

// Query returns every inserted id within maxDistance of hash, including
// exact matches. Results are unordered.
func (ix *Index) Query(hash uint64, maxDistance int) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.root == nil {
		return nil
	}

	var matches []Match
	stack := []*node{ix.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d := phash.Distance(cur.hash, hash)
		if d <= maxDistance {
			for _, id := range ix.byHash[cur.hash] {
				matches = append(matches, Match{ID: id, Distance: d})
			}
		}
		for edge, child := range cur.children {
			if edge >= d-maxDistance && edge <= d+maxDistance {
				stack = append(stack, child)
			}
		}
	}
	return matches
}

// ExactMatches is the O(1) distance-0 path, independent of the tree.
func (ix *Index) ExactMatches(hash uint64) []types.RecordID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := ix.byHash[hash]
	out := make([]types.RecordID, len(ids))
	copy(out, ids)
	return out
}

// Len reports the number of inserted ids.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.inserted)
}
