package repository

import (
	"context"
	"hash/maphash"
	"sync"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: points DESC, then profile id ASC (deterministic).
// "less" means ranks earlier, so an in-order traversal yields the
// leaderboard from best to worst. Each node tracks its subtree size so a
// profile's position is found in O(log n).

type row struct {
	displayName string
	weblink     string
	points      float64
	updatedAt   time.Time
}

type node struct {
	id     string
	points float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPoints, aID) should appear before (bPoints, bID).
func less(aPoints float64, aID string, bPoints float64, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, points float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, points: points, prio: prio, size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	case less(points, id, n.points, n.id):
		n.left = deleteNode(n.left, id, points)
	default:
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes have strictly more points.
func countAbove(n *node, points float64) int {
	count := 0
	for n != nil {
		if n.points > points {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// MemoryStore is a Store that lives in process memory. Nothing survives a
// restart; it suits one-shot runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]row
	seed maphash.Seed
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]row),
		seed: maphash.MakeSeed(),
	}
}

// Save implements Store with O(log n) expected time.
func (s *MemoryStore) Save(_ context.Context, p model.Profile, at time.Time) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Inserted
	if old, ok := s.byID[p.ID]; ok {
		result = Updated
		s.root = deleteNode(s.root, p.ID, old.points)
	}
	s.byID[p.ID] = row{displayName: p.DisplayName, weblink: p.Weblink, points: p.TotalPoints, updatedAt: at.UTC()}
	s.root = insert(s.root, p.ID, p.TotalPoints, maphash.String(s.seed, p.ID))
	return result, nil
}

// Rank implements Store.
func (s *MemoryStore) Rank(_ context.Context, profileID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[profileID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return s.entry(profileID, r, countAbove(s.root, r.points)+1), nil
}

// TopN implements Store.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)

	out := make([]Entry, 0, len(nodes))
	for i, nd := range nodes {
		rank := i + 1
		if i > 0 && nd.points == nodes[i-1].points {
			rank = out[i-1].Rank
		}
		out = append(out, s.entry(nd.id, s.byID[nd.id], rank))
	}
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) entry(id string, r row, rank int) Entry {
	return Entry{
		Rank:        rank,
		ProfileID:   id,
		DisplayName: r.displayName,
		Weblink:     r.weblink,
		Points:      r.points,
		UpdatedAt:   r.updatedAt,
	}
}
