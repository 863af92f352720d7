package mark

import (
	"strconv"
	"time"
)

// Namespace is mixed into schedule item ids so they cannot collide with
// ids handed out by other decoration sources of the host.
const Namespace = "mark"

// OriginCustom labels schedule ranges coming from user-defined marks.
const OriginCustom = "custom"

// Label is the text and color of a corner or festival decoration.
type Label struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// ScheduleItem is one schedule line of a calendar cell.
type ScheduleItem struct {
	Text    string `json:"text"`
	Color   string `json:"color"`
	BgColor string `json:"bg_color"`
	ID      string `json:"id"`
}

// Decorations is the read-only view of an Entry handed to renderers.
type Decorations struct {
	Corner   *Label         `json:"corner,omitempty"`
	Festival *Label         `json:"festival,omitempty"`
	Schedule []ScheduleItem `json:"schedule,omitempty"`
}

// Range is the full-day span a schedule id refers to: [Start, End).
type Range struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Origin string    `json:"origin"`
}

// ScheduleItemID derives the id of the i-th schedule item under key. The
// id only depends on date and position, so it is stable across rebuilds.
func ScheduleItemID(key string, i int) string {
	return key + "_" + Namespace + "_" + strconv.Itoa(i)
}

// DecorationsFor looks d up in the published index.
func (x *Indexer) DecorationsFor(d Date) (Decorations, bool) {
	return x.Snapshot().Decorations(d)
}

// Decorations projects the entry for d. Reading several dates from one
// Index keeps them consistent even if a rebuild happens meanwhile.
// d must name a real calendar date; out-of-range components such as
// February 30 are not folded and report false.
func (ix *Index) Decorations(d Date) (Decorations, bool) {
	if ix == nil || Normalize(d.Year, d.Month, d.Day) != d {
		return Decorations{}, false
	}
	key := d.Key()
	e, ok := ix.entries[key]
	if !ok {
		return Decorations{}, false
	}

	var out Decorations
	if e.Corner != nil {
		out.Corner = &Label{Text: e.Corner.Text, Color: e.Corner.Color}
	}
	if e.Festival != nil {
		out.Festival = &Label{Text: e.Festival.Text, Color: e.Festival.Color}
	}
	if len(e.Schedule) > 0 {
		out.Schedule = make([]ScheduleItem, len(e.Schedule))
		for i, s := range e.Schedule {
			out.Schedule[i] = ScheduleItem{
				Text:    s.Text,
				Color:   s.Color,
				BgColor: s.BgColor,
				ID:      ScheduleItemID(key, i),
			}
		}
	}
	return out, true
}

// ScheduleRange decodes the DateKey at the start of id and returns the day
// it covers in loc. It does not consult any index. Empty or undecodable
// ids yield false.
func ScheduleRange(id string, loc *time.Location) (Range, bool) {
	if id == "" {
		return Range{}, false
	}
	d, err := parseKeyPrefix(id)
	if err != nil {
		return Range{}, false
	}
	start := d.Midnight(loc)
	return Range{
		Start:  start,
		End:    start.AddDate(0, 0, 1),
		Origin: OriginCustom,
	}, true
}
