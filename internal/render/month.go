// Package render lays out a month as week rows of decorated day cells.
package render

import (
	"time"

	"calmark/internal/mark"
)

// Lookup returns the decorations of one date.
type Lookup func(mark.Date) (mark.Decorations, bool)

// Cell is one day of the grid.
type Cell struct {
	Date        mark.Date         `json:"date"`
	InMonth     bool              `json:"in_month"`
	Today       bool              `json:"today"`
	Weekend     bool              `json:"weekend"`
	Decorations *mark.Decorations `json:"decorations,omitempty"`
}

// Grid is a month padded to whole weeks.
type Grid struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	WeekStart string   `json:"week_start"`
	Weekdays  []string `json:"weekdays"`
	Weeks     [][]Cell `json:"weeks"`
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Month builds the grid for year/month. weekStart is "monday" or
// "sunday"; today marks the matching cell.
func Month(year, month int, weekStart string, today mark.Date, lookup Lookup) Grid {
	first := mark.Normalize(year, month, 1)
	firstWeekday := time.Monday
	if weekStart == "sunday" {
		firstWeekday = time.Sunday
	} else {
		weekStart = "monday"
	}

	start := first.Midnight(time.UTC)
	lead := (int(start.Weekday()) - int(firstWeekday) + 7) % 7
	start = start.AddDate(0, 0, -lead)

	total := lead + DaysIn(first.Year, first.Month)
	weeks := (total + 6) / 7

	g := Grid{
		Year:      first.Year,
		Month:     first.Month,
		WeekStart: weekStart,
		Weeks:     make([][]Cell, weeks),
	}
	for i := 0; i < 7; i++ {
		g.Weekdays = append(g.Weekdays, time.Weekday((int(firstWeekday)+i)%7).String()[:3])
	}

	day := start
	for w := 0; w < weeks; w++ {
		row := make([]Cell, 7)
		for i := range row {
			d := mark.DateOf(day)
			c := Cell{
				Date:    d,
				InMonth: d.Month == first.Month,
				Today:   d == today,
				Weekend: day.Weekday() == time.Saturday || day.Weekday() == time.Sunday,
			}
			if lookup != nil {
				if dec, ok := lookup(d); ok {
					c.Decorations = &dec
				}
			}
			row[i] = c
			day = day.AddDate(0, 0, 1)
		}
		g.Weeks[w] = row
	}
	return g
}

// Contains reports whether d is one of the grid's cells.
func (g Grid) Contains(d mark.Date) bool {
	if len(g.Weeks) == 0 {
		return false
	}
	first := g.Weeks[0][0].Date.Midnight(time.UTC)
	last := g.Weeks[len(g.Weeks)-1][6].Date.Midnight(time.UTC)
	t := d.Midnight(time.UTC)
	return !t.Before(first) && !t.After(last)
}

// Touches reports whether any changed date is visible in g.
func (g Grid) Touches(changed []mark.Date) bool {
	for _, d := range changed {
		if g.Contains(d) {
			return true
		}
	}
	return false
}
