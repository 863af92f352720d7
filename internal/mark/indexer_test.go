package mark

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calmark/internal/model"
)

func schedule(y, m, d int, text string) model.Mark {
	mk := model.YMD(model.KindSchedule, y, m, d, text, "blue")
	mk.BgColor = "#eee"
	return mk
}

func TestRebuildGroupsByDate(t *testing.T) {
	x := NewIndexer()
	explicit := time.Date(2024, 2, 10, 15, 30, 0, 0, time.UTC)

	_, err := x.Rebuild([]model.Mark{
		model.YMD(model.KindCorner, 2024, 2, 10, "first", "red"),
		schedule(2024, 2, 10, "a"),
		model.On(model.KindCorner, explicit, "second", "green"),
		schedule(2024, 2, 11, "other day"),
		model.On(model.KindSchedule, explicit, "b", "blue"),
		model.YMD(model.KindFestival, 2024, 2, 10, "NY", "red"),
	})
	require.NoError(t, err)

	ix := x.Snapshot()
	require.Equal(t, 2, ix.Len())

	e, ok := ix.Lookup(Date{2024, 2, 10})
	require.True(t, ok)
	require.NotNil(t, e.Corner)
	assert.Equal(t, "second", e.Corner.Text, "last corner wins")
	require.NotNil(t, e.Festival)
	assert.Equal(t, "NY", e.Festival.Text)
	require.Len(t, e.Schedule, 2)
	assert.Equal(t, "a", e.Schedule[0].Text)
	assert.Equal(t, "b", e.Schedule[1].Text)

	e, ok = ix.Lookup(Date{2024, 2, 11})
	require.True(t, ok)
	assert.Nil(t, e.Corner)
	assert.Nil(t, e.Festival)
	require.Len(t, e.Schedule, 1)
}

func TestRebuildLastFestivalWins(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{
		model.YMD(model.KindFestival, 2024, 5, 1, "one", "red"),
		model.YMD(model.KindFestival, 2024, 5, 1, "two", "red"),
		model.YMD(model.KindFestival, 2024, 5, 1, "three", "red"),
	})
	require.NoError(t, err)

	dec, ok := x.DecorationsFor(Date{2024, 5, 1})
	require.True(t, ok)
	assert.Equal(t, &Label{Text: "three", Color: "red"}, dec.Festival)
	assert.Nil(t, dec.Schedule)
}

func TestRebuildTripleAndDateFormsCollide(t *testing.T) {
	x := NewIndexer()
	changed, err := x.Rebuild([]model.Mark{
		model.YMD(model.KindCorner, 2024, 1, 32, "overflow", "red"),
		model.On(model.KindFestival, time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local), "explicit", "red"),
	})
	require.NoError(t, err)
	assert.Equal(t, []Date{{2024, 2, 1}}, changed)
}

func TestRebuildFirstCallHasNoDeletions(t *testing.T) {
	x := NewIndexer()
	diff, err := x.RebuildDiff([]model.Mark{schedule(2024, 2, 10, "a")})
	require.NoError(t, err)
	assert.Empty(t, diff.Deletions)
	assert.Equal(t, []Date{{2024, 2, 10}}, diff.Updates)
}

func TestRebuildEmptyOnFreshIndexer(t *testing.T) {
	x := NewIndexer()
	changed, err := x.Rebuild(nil)
	require.NoError(t, err)
	assert.Empty(t, changed)
	require.NotNil(t, x.Snapshot())
	assert.Equal(t, 0, x.Snapshot().Len())
}

func TestRebuildDiffCompleteness(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{
		schedule(2024, 2, 10, "a"),
		schedule(2024, 2, 11, "b"),
		schedule(2024, 2, 12, "c"),
	})
	require.NoError(t, err)

	diff, err := x.RebuildDiff([]model.Mark{
		schedule(2024, 2, 12, "c changed"),
		schedule(2024, 3, 1, "new"),
		schedule(2024, 2, 11, "b"),
	})
	require.NoError(t, err)

	wantUpdates := []Date{{2024, 2, 12}, {2024, 3, 1}, {2024, 2, 11}}
	wantDeletions := []Date{{2024, 2, 10}}
	if d := cmp.Diff(wantUpdates, diff.Updates); d != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff(wantDeletions, diff.Deletions); d != "" {
		t.Errorf("deletions mismatch (-want +got):\n%s", d)
	}

	for _, del := range diff.Deletions {
		assert.NotContains(t, diff.Updates, del)
	}
	if d := cmp.Diff(append(wantUpdates, wantDeletions...), diff.Changed()); d != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", d)
	}
}

func TestRebuildToEmptyDeletesEverything(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{schedule(2024, 2, 10, "a")})
	require.NoError(t, err)

	diff, err := x.RebuildDiff(nil)
	require.NoError(t, err)
	assert.Empty(t, diff.Updates)
	assert.Equal(t, []Date{{2024, 2, 10}}, diff.Deletions)

	_, ok := x.DecorationsFor(Date{2024, 2, 10})
	assert.False(t, ok)
}

func TestRebuildUnchangedDatesStillReported(t *testing.T) {
	x := NewIndexer()
	marks := []model.Mark{schedule(2024, 2, 10, "a")}
	_, err := x.Rebuild(marks)
	require.NoError(t, err)

	changed, err := x.Rebuild(marks)
	require.NoError(t, err)
	assert.Equal(t, []Date{{2024, 2, 10}}, changed)
}

func TestRebuildMalformedKeepsIndex(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{schedule(2024, 2, 10, "a")})
	require.NoError(t, err)

	year, month := 2024, 2
	bad := model.Mark{Kind: model.KindCorner, Year: &year, Month: &month, Text: "no day"}

	changed, err := x.Rebuild([]model.Mark{schedule(2024, 2, 11, "b"), bad})
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "mark 1")
	assert.Nil(t, changed)

	_, ok := x.DecorationsFor(Date{2024, 2, 10})
	assert.True(t, ok, "failed rebuild must not replace the index")
	_, ok = x.DecorationsFor(Date{2024, 2, 11})
	assert.False(t, ok)
}

func TestRebuildRejectsUnknownKind(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{model.YMD("sticker", 2024, 2, 10, "x", "red")})
	require.ErrorIs(t, err, ErrMalformed)
	assert.Nil(t, x.Snapshot())
}

func TestRebuildDoesNotAliasInput(t *testing.T) {
	x := NewIndexer()
	marks := []model.Mark{model.YMD(model.KindCorner, 2024, 2, 10, "before", "red")}
	_, err := x.Rebuild(marks)
	require.NoError(t, err)

	marks[0].Text = "after"
	dec, ok := x.DecorationsFor(Date{2024, 2, 10})
	require.True(t, ok)
	assert.Equal(t, "before", dec.Corner.Text)
}

func TestLookupReturnsDetachedEntry(t *testing.T) {
	x := NewIndexer()
	_, err := x.Rebuild([]model.Mark{
		model.YMD(model.KindCorner, 2024, 2, 10, "休", "green"),
		model.YMD(model.KindFestival, 2024, 2, 10, "NY", "red"),
		schedule(2024, 2, 10, "Meeting"),
	})
	require.NoError(t, err)

	d := Date{2024, 2, 10}
	e, ok := x.Snapshot().Lookup(d)
	require.True(t, ok)
	e.Corner.Text = "changed"
	*e.Corner.Day = 11
	e.Festival.Text = "changed"
	e.Schedule[0].Text = "changed"

	dec, ok := x.DecorationsFor(d)
	require.True(t, ok)
	assert.Equal(t, "休", dec.Corner.Text)
	assert.Equal(t, "NY", dec.Festival.Text)
	assert.Equal(t, "Meeting", dec.Schedule[0].Text)

	again, ok := x.Snapshot().Lookup(d)
	require.True(t, ok)
	assert.Equal(t, 10, *again.Corner.Day)
}

func TestReadersSeeWholeIndexes(t *testing.T) {
	x := NewIndexer()
	small := []model.Mark{schedule(2024, 1, 1, "a")}
	large := []model.Mark{schedule(2024, 1, 1, "a"), schedule(2024, 1, 2, "b"), schedule(2024, 1, 3, "c")}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			marks := small
			if i%2 == 1 {
				marks = large
			}
			if _, err := x.Rebuild(marks); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if n := x.Snapshot().Len(); n != 0 && n != 1 && n != 3 {
			t.Fatalf("observed partially built index with %d dates", n)
		}
	}
	wg.Wait()
}
