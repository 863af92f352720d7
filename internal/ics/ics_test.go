package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmark/internal/config"
	"calmark/internal/mark"
	"calmark/internal/model"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calmark//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240205T090000Z\r\n" +
	"DTEND:20240205T091500Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"EXDATE:20240207T090000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"RECURRENCE-ID:20240208T090000Z\r\n" +
	"DTSTART:20240208T100000Z\r\n" +
	"DTEND:20240208T101500Z\r\n" +
	"SUMMARY:Standup (moved)\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.com\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240210\r\n" +
	"DTEND;VALUE=DATE:20240211\r\n" +
	"SUMMARY:Offsite\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240210T090000Z\r\n" +
	"SUMMARY:no uid\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	require.NoError(t, err)
	require.Len(t, events, 3, "event without UID is skipped")

	assert.Equal(t, "FREQ=DAILY;COUNT=5", events[0].RawRRule)
	require.Len(t, events[0].ExDates, 1)
	assert.False(t, events[0].AllDay)

	assert.True(t, events[1].IsOverride())
	assert.True(t, events[2].AllDay)

	_, err = ParseICS(Source{}, nil)
	require.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleICS))
	require.NoError(t, err)

	occs, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var summaries []string
	for _, o := range occs {
		summaries = append(summaries, o.Start.Format("01-02 15:04")+" "+o.Summary)
	}
	assert.Equal(t, []string{
		"02-05 09:00 Standup",
		"02-06 09:00 Standup",
		"02-08 10:00 Standup (moved)",
		"02-09 09:00 Standup",
		"02-10 00:00 Offsite",
	}, summaries)
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := ExpandOccurrences(nil, ExpandConfig{
		RangeStart: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestScheduleMarks(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	occs := []model.Occurrence{
		{Summary: "Late", Start: time.Date(2024, 2, 10, 23, 30, 0, 0, seoul)},
		{Summary: "Offsite", AllDay: true, Start: time.Date(2024, 2, 10, 0, 0, 0, 0, seoul)},
		{Summary: "Early", Start: time.Date(2024, 2, 10, 8, 0, 0, 0, seoul)},
	}

	marks := ScheduleMarks(occs, Style{Color: "white", BgColor: "#1f4e79"})
	require.Len(t, marks, 3)

	var texts []string
	for _, m := range marks {
		assert.Equal(t, model.KindSchedule, m.Kind)
		assert.Equal(t, "#1f4e79", m.BgColor)
		require.NotNil(t, m.Date)
		assert.Equal(t, mark.Date{Year: 2024, Month: 2, Day: 10}, mark.DateOf(*m.Date), "local date, not UTC")
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"Offsite", "08:00 Early", "23:30 Late"}, texts)
}

func TestFetcherUsesCacheOnNotModified(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/private/token.ics"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherFallsBackToCacheOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "work", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	_, err = NewFetcher(t.TempDir(), srv.Client()).FetchOne(context.Background(), src)
	require.Error(t, err, "no cache to fall back to")
}

func TestMarkSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.ics" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	src := NewMarkSource(NewFetcher(t.TempDir(), srv.Client()), []config.ICSConfig{
		{ID: "work", URL: srv.URL + "/work.ics", Color: "white", BgColor: "#123"},
		{ID: "broken", URL: srv.URL + "/broken.ics"},
		{ID: "empty"},
	}, time.UTC, 30, 30)
	src.now = func() time.Time { return time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC) }

	marks, err := src.Marks(context.Background())
	require.NoError(t, err)
	require.Len(t, marks, 5)
	assert.Equal(t, "09:00 Standup", marks[0].Text)
	assert.Equal(t, "#123", marks[0].BgColor)
	assert.Equal(t, "ics", src.Name())
}

func TestMarkSourceAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewMarkSource(NewFetcher(t.TempDir(), srv.Client()), []config.ICSConfig{
		{ID: "broken", URL: srv.URL},
	}, time.UTC, 1, 1)

	_, err := src.Marks(context.Background())
	require.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/abc.ics?token=1"))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
