package mark

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a normalized calendar date. Month and Day are 1-based.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Normalize folds out-of-range components the way calendar arithmetic
// does: month 13 becomes January of the next year, day 0 the last day of
// the previous month.
func Normalize(year, month, day int) Date {
	return DateOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the wall-clock date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// Key encodes d as a DateKey, e.g. "2024_2_10".
func (d Date) Key() string {
	return strconv.Itoa(d.Year) + "_" + strconv.Itoa(d.Month) + "_" + strconv.Itoa(d.Day)
}

// Midnight returns the start of d in loc (time.Local when nil).
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseKey decodes a DateKey produced by Date.Key. Anything but exactly
// three numeric components naming a real date is rejected.
func ParseKey(key string) (Date, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q: want 3 components, got %d", ErrInvalidKey, key, len(parts))
	}
	return parseParts(key, parts)
}

// parseKeyPrefix decodes the leading DateKey of s and ignores any
// "_"-separated suffix after it.
func parseKeyPrefix(s string) (Date, error) {
	parts := strings.SplitN(s, "_", 4)
	if len(parts) < 3 {
		return Date{}, fmt.Errorf("%w: %q: want at least 3 components, got %d", ErrInvalidKey, s, len(parts))
	}
	return parseParts(s, parts[:3])
}

func parseParts(key string, parts []string) (Date, error) {
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q: component %d is not numeric", ErrInvalidKey, key, i)
		}
		nums[i] = n
	}

	d := Date{Year: nums[0], Month: nums[1], Day: nums[2]}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || Normalize(d.Year, d.Month, d.Day) != d {
		return Date{}, fmt.Errorf("%w: %q: no such date", ErrInvalidKey, key)
	}
	return d, nil
}
