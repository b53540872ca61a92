package history

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// BackendMemory is the name of the in-memory store.
const BackendMemory = "memory"

func pointLess(a, b Point) bool {
	if a.Series != b.Series {
		return a.Series < b.Series
	}
	return a.TimestampMillis < b.TimestampMillis
}

// MemoryStore keeps points in a B-tree ordered by series then timestamp.
type MemoryStore struct {
	mu        sync.RWMutex
	tree      *btree.BTreeG[Point]
	retention int64
	newest    int64
}

// NewMemoryStore creates a MemoryStore. With a positive retention, every
// write drops points older than the newest timestamp minus retention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		tree:      btree.NewBTreeG[Point](pointLess),
		retention: retention.Milliseconds(),
	}
}

func (s *MemoryStore) Backend() string {
	return BackendMemory
}

func (s *MemoryStore) Write(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.tree.Set(p)
		if p.TimestampMillis > s.newest {
			s.newest = p.TimestampMillis
		}
	}
	if s.retention > 0 {
		s.pruneLocked(s.newest - s.retention)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Point, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Point
	s.tree.Ascend(Point{Series: q.Series, TimestampMillis: q.FromMillis}, func(p Point) bool {
		if p.Series != q.Series || !q.contains(p.TimestampMillis) {
			return false
		}
		out = append(out, p)
		return q.Limit == 0 || len(out) < q.Limit
	})
	return out, nil
}

func (s *MemoryStore) Series(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	pivot := Point{TimestampMillis: math.MinInt64}
	for {
		found := false
		s.tree.Ascend(pivot, func(p Point) bool {
			if len(names) > 0 && p.Series == names[len(names)-1] {
				return true
			}
			names = append(names, p.Series)
			found = true
			return false
		})
		if !found {
			return names, nil
		}
		// skip to the end of the series just found
		pivot = Point{Series: names[len(names)-1], TimestampMillis: math.MaxInt64}
	}
}

func (s *MemoryStore) Prune(ctx context.Context, beforeMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(beforeMillis), nil
}

func (s *MemoryStore) pruneLocked(beforeMillis int64) int {
	var stale []Point
	s.tree.Scan(func(p Point) bool {
		if p.TimestampMillis < beforeMillis {
			stale = append(stale, p)
		}
		return true
	})
	for _, p := range stale {
		s.tree.Delete(p)
	}
	return len(stale)
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

func (s *MemoryStore) Close() error {
	return nil
}
