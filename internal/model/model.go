package model

import "time"

// Kind selects which slot of a calendar cell a Mark decorates.
type Kind string

const (
	KindCorner   Kind = "corner"
	KindFestival Kind = "festival"
	KindSchedule Kind = "schedule"
)

// Valid reports whether k is one of the known mark kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCorner, KindFestival, KindSchedule:
		return true
	}
	return false
}

// Mark is a single annotation attached to one calendar date.
//
// The date is given either as Date or as the Year/Month/Day triple.
// When Date is set it takes precedence; otherwise all three components
// must be present.
type Mark struct {
	Kind Kind

	Date  *time.Time
	Year  *int
	Month *int
	Day   *int

	Text    string
	Color   string
	BgColor string // schedule only
}

// HasLocation reports whether the mark carries enough data to be keyed.
func (m Mark) HasLocation() bool {
	if m.Date != nil {
		return true
	}
	return m.Year != nil && m.Month != nil && m.Day != nil
}

// Clone returns a copy of m that shares no pointers with it.
func (m Mark) Clone() Mark {
	out := m
	if m.Date != nil {
		d := *m.Date
		out.Date = &d
	}
	out.Year = cloneInt(m.Year)
	out.Month = cloneInt(m.Month)
	out.Day = cloneInt(m.Day)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// YMD builds a Mark located by an explicit year/month/day triple.
func YMD(kind Kind, year, month, day int, text, color string) Mark {
	return Mark{
		Kind:  kind,
		Year:  &year,
		Month: &month,
		Day:   &day,
		Text:  text,
		Color: color,
	}
}

// On builds a Mark located by an explicit date.
func On(kind Kind, date time.Time, text, color string) Mark {
	return Mark{
		Kind:  kind,
		Date:  &date,
		Text:  text,
		Color: color,
	}
}

// Occurrence is a single concrete instance of a subscribed event after
// recurrence expansion, normalized to the display timezone.
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey identifies one occurrence of a recurring event; it is
	// derived from the local start time.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool

	Start time.Time
	End   time.Time
}
