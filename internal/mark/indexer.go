package mark

import (
	"sync"
	"sync/atomic"

	"calmark/internal/model"
)

// Diff lists the dates whose cells must be redrawn after a rebuild.
//
// Updates holds every date present in the new index, whether or not its
// content changed. Deletions holds the dates that were indexed before but
// are gone now.
type Diff struct {
	Updates   []Date
	Deletions []Date
}

// Changed returns updates followed by deletions.
func (d Diff) Changed() []Date {
	out := make([]Date, 0, len(d.Updates)+len(d.Deletions))
	out = append(out, d.Updates...)
	return append(out, d.Deletions...)
}

// Indexer owns the live Index. Rebuilds are serialized; readers load the
// published index without locking and see either the old or the new one.
type Indexer struct {
	mu      sync.Mutex
	current atomic.Pointer[Index]
}

// NewIndexer returns an Indexer with no index published yet.
func NewIndexer() *Indexer {
	return &Indexer{}
}

// Rebuild replaces the index with one built from marks and returns the
// dates to redraw: updates first, then deletions.
func (x *Indexer) Rebuild(marks []model.Mark) ([]Date, error) {
	diff, err := x.RebuildDiff(marks)
	if err != nil {
		return nil, err
	}
	return diff.Changed(), nil
}

// RebuildDiff is Rebuild with the two blocks kept apart. On error the
// published index is left as it was.
func (x *Indexer) RebuildDiff(marks []model.Mark) (Diff, error) {
	next, err := build(marks)
	if err != nil {
		return Diff{}, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	var diff Diff
	if prev := x.current.Load(); prev != nil {
		for _, d := range prev.order {
			if !next.has(d) {
				diff.Deletions = append(diff.Deletions, d)
			}
		}
	}
	diff.Updates = next.Dates()

	x.current.Store(next)
	return diff, nil
}

// Snapshot returns the published index, or nil before the first rebuild.
func (x *Indexer) Snapshot() *Index {
	return x.current.Load()
}
