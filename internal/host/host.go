// Package host assembles the complete mark set from every source, feeds it
// to the indexer and tells redraw listeners which dates changed.
package host

import (
	"context"
	"slices"
	"sync"
	"time"

	appLog "calmark/internal/log"
	"calmark/internal/mark"
	"calmark/internal/metrics"
	"calmark/internal/model"
)

// Source produces a full list of marks. Every call returns the complete
// current set of that source, never a delta.
type Source interface {
	Name() string
	Marks(ctx context.Context) ([]model.Mark, error)
}

// Listener receives the dates whose cells must be redrawn.
type Listener func(changed []mark.Date)

// Host owns the Indexer and the last good marks of every source.
type Host struct {
	indexer *mark.Indexer
	sources []Source
	metrics *metrics.Metrics

	mu       sync.Mutex // serializes rebuilds
	lastGood map[string][]model.Mark

	lmu       sync.Mutex // guards loaded and listeners
	loaded    bool
	listeners []Listener
}

// New builds a Host. Sources are concatenated in the given order, which
// also decides which corner/festival mark wins on a shared date.
func New(indexer *mark.Indexer, m *metrics.Metrics, sources ...Source) *Host {
	return &Host{
		indexer:  indexer,
		sources:  sources,
		metrics:  m,
		lastGood: make(map[string][]model.Mark),
	}
}

// Indexer exposes the query surface.
func (h *Host) Indexer() *mark.Indexer {
	return h.indexer
}

// OnChange registers a redraw listener. Listeners run outside the Host's
// locks and may call back into it.
func (h *Host) OnChange(l Listener) {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	h.listeners = append(h.listeners, l)
}

// MarkLoaded enables listener dispatch. Refreshes before that still update
// the index but nobody is told to redraw.
func (h *Host) MarkLoaded() {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	h.loaded = true
}

// Refresh pulls every source, rebuilds the index and dispatches the changed
// dates. A failing source contributes its last good marks so a transient
// error does not wipe its dates from the calendar. Marks only become last
// good once a rebuild accepted them.
func (h *Host) Refresh(ctx context.Context) ([]mark.Date, error) {
	changed, err := h.rebuild(ctx)
	if err != nil {
		return nil, err
	}

	h.lmu.Lock()
	var listeners []Listener
	if h.loaded {
		listeners = slices.Clone(h.listeners)
	}
	h.lmu.Unlock()

	for _, l := range listeners {
		l(changed)
	}
	return changed, nil
}

func (h *Host) rebuild(ctx context.Context) ([]mark.Date, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	fresh := make(map[string][]model.Mark, len(h.sources))
	var all []model.Mark
	for _, src := range h.sources {
		marks, err := src.Marks(ctx)
		if err != nil {
			h.metrics.SourceError(src.Name())
			appLog.Error("mark source failed; keeping last good marks", err,
				"source", src.Name(), "kept", len(h.lastGood[src.Name()]))
			marks = h.lastGood[src.Name()]
		} else {
			fresh[src.Name()] = marks
		}
		all = append(all, marks...)
	}

	diff, err := h.indexer.RebuildDiff(all)
	if err != nil {
		h.metrics.RebuildFailed()
		appLog.Error("rebuild failed", err, "marks", len(all))
		return nil, err
	}
	for name, marks := range fresh {
		h.lastGood[name] = marks
	}
	h.metrics.Rebuilt(len(diff.Updates), len(diff.Deletions), time.Since(start))

	appLog.Info("marks rebuilt",
		"marks", len(all),
		"updates", len(diff.Updates),
		"deletions", len(diff.Deletions),
	)
	return diff.Changed(), nil
}
