package ics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"calmark/internal/config"
	appLog "calmark/internal/log"
	"calmark/internal/model"
)

// Style is the look of schedule marks produced from one subscription.
type Style struct {
	Color   string
	BgColor string
}

// ScheduleMarks converts occurrences to schedule marks dated by their
// local start. Timed events are prefixed with their start time. Output is
// ordered by start so schedule lists read chronologically.
func ScheduleMarks(occs []model.Occurrence, style Style) []model.Mark {
	sorted := make([]model.Occurrence, len(occs))
	copy(sorted, occs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make([]model.Mark, 0, len(sorted))
	for _, o := range sorted {
		text := o.Summary
		if !o.AllDay {
			text = o.Start.Format("15:04") + " " + text
		}
		m := model.On(model.KindSchedule, o.Start, text, style.Color)
		m.BgColor = style.BgColor
		out = append(out, m)
	}
	return out
}

// MarkSource turns configured subscriptions into schedule marks for a
// window around now.
type MarkSource struct {
	fetcher  *Fetcher
	subs     []config.ICSConfig
	loc      *time.Location
	backfill int
	horizon  int
	now      func() time.Time
}

// NewMarkSource builds a source over subs. Events from backfill days ago
// up to horizon days ahead are expanded.
func NewMarkSource(fetcher *Fetcher, subs []config.ICSConfig, loc *time.Location, backfill, horizon int) *MarkSource {
	if loc == nil {
		loc = time.Local
	}
	return &MarkSource{
		fetcher:  fetcher,
		subs:     subs,
		loc:      loc,
		backfill: backfill,
		horizon:  horizon,
		now:      time.Now,
	}
}

func (s *MarkSource) Name() string { return "ics" }

// Marks fetches, parses and expands every subscription. A subscription
// that fails is skipped; the error is returned only when all failed.
func (s *MarkSource) Marks(ctx context.Context) ([]model.Mark, error) {
	if len(s.subs) == 0 {
		return []model.Mark{}, nil
	}

	sources := make([]Source, 0, len(s.subs))
	styles := make(map[string]Style, len(s.subs))
	for _, sub := range s.subs {
		if sub.URL == "" {
			continue
		}
		id := sub.ID
		if id == "" {
			id = sub.Name
		}
		if id == "" {
			id = sub.URL
		}
		sources = append(sources, Source{ID: id, URL: sub.URL})
		styles[id] = Style{Color: sub.Color, BgColor: sub.BgColor}
	}

	results, errs := s.fetcher.FetchAll(ctx, sources)
	if len(results) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	now := s.now().In(s.loc)
	cfg := ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      now.AddDate(0, 0, -s.backfill),
		RangeEnd:        now.AddDate(0, 0, s.horizon),
	}

	var out []model.Mark
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			continue
		}
		occs, err := ExpandOccurrences(events, cfg)
		if err != nil {
			return nil, fmt.Errorf("ics: expand %s: %w", res.Source.ID, err)
		}
		out = append(out, ScheduleMarks(occs, styles[res.Source.ID])...)
	}
	return out, nil
}
