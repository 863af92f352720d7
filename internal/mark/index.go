package mark

import (
	"fmt"
	"slices"

	"calmark/internal/model"
)

// Entry aggregates every mark that landed on one date.
type Entry struct {
	Corner   *model.Mark
	Festival *model.Mark
	Schedule []model.Mark
}

// Index maps DateKeys to entries. It is built once by build and never
// mutated afterwards, so it can be shared with readers freely.
type Index struct {
	entries map[string]*Entry
	order   []Date // insertion order of first appearance
}

// build groups marks by date. The last corner and festival mark of a date
// win; schedule marks accumulate in input order.
func build(marks []model.Mark) (*Index, error) {
	ix := &Index{entries: make(map[string]*Entry)}

	for i, m := range marks {
		d, err := locate(m)
		if err != nil {
			return nil, fmt.Errorf("mark %d: %w", i, err)
		}

		key := d.Key()
		e, ok := ix.entries[key]
		if !ok {
			e = &Entry{}
			ix.entries[key] = e
			ix.order = append(ix.order, d)
		}

		m = m.Clone()
		switch m.Kind {
		case model.KindSchedule:
			e.Schedule = append(e.Schedule, m)
		case model.KindCorner:
			e.Corner = &m
		case model.KindFestival:
			e.Festival = &m
		}
	}

	return ix, nil
}

// locate validates m and resolves its date.
func locate(m model.Mark) (Date, error) {
	if !m.Kind.Valid() {
		return Date{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	if !m.HasLocation() {
		return Date{}, fmt.Errorf("%w: %s mark needs a date or a full year/month/day", ErrMalformed, m.Kind)
	}
	if m.Date != nil {
		return DateOf(*m.Date), nil
	}
	return Normalize(*m.Year, *m.Month, *m.Day), nil
}

// Len returns the number of indexed dates.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.order)
}

// Dates returns the indexed dates in first-appearance order.
func (ix *Index) Dates() []Date {
	if ix == nil {
		return nil
	}
	return slices.Clone(ix.order)
}

// Lookup returns a deep copy of the entry for d; changing it does not
// affect the index.
func (ix *Index) Lookup(d Date) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	e, ok := ix.entries[d.Key()]
	if !ok {
		return Entry{}, false
	}
	out := Entry{
		Corner:   cloneMarkPtr(e.Corner),
		Festival: cloneMarkPtr(e.Festival),
	}
	if len(e.Schedule) > 0 {
		out.Schedule = make([]model.Mark, len(e.Schedule))
		for i, m := range e.Schedule {
			out.Schedule[i] = m.Clone()
		}
	}
	return out, true
}

func cloneMarkPtr(m *model.Mark) *model.Mark {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &c
}

func (ix *Index) has(d Date) bool {
	_, ok := ix.entries[d.Key()]
	return ok
}
