// Package holiday generates festival marks from fixed-date and
// Easter-relative rules.
package holiday

import (
	"context"
	"time"

	"calmark/internal/config"
	"calmark/internal/model"
)

// Easter returns Easter Sunday of year (Gregorian, Meeus/Jones/Butcher).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Marks returns one festival mark per rule and year in [from, to].
// Rules with neither a valid month/day nor an Easter offset are skipped.
func Marks(rules []config.HolidayRule, from, to int, color string) []model.Mark {
	var out []model.Mark
	for year := from; year <= to; year++ {
		var easter time.Time
		for _, r := range rules {
			switch {
			case r.EasterOffset != nil:
				if easter.IsZero() {
					easter = Easter(year)
				}
				out = append(out, model.On(model.KindFestival, easter.AddDate(0, 0, *r.EasterOffset), r.Name, color))
			case r.Month >= 1 && r.Month <= 12 && r.Day >= 1:
				out = append(out, model.YMD(model.KindFestival, year, r.Month, r.Day, r.Name, color))
			}
		}
	}
	return out
}

// Source produces holiday marks around the current year.
type Source struct {
	cfg config.HolidayConfig
	now func() time.Time
}

// NewSource builds a Source; now defaults to time.Now.
func NewSource(cfg config.HolidayConfig, now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{cfg: cfg, now: now}
}

func (s *Source) Name() string { return "holidays" }

func (s *Source) Marks(_ context.Context) ([]model.Mark, error) {
	year := s.now().Year()
	return Marks(s.cfg.Rules, year-s.cfg.YearsAround, year+s.cfg.YearsAround, s.cfg.Color), nil
}
