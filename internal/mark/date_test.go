package mark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRollsOver(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		want             Date
	}{
		{"plain", 2024, 2, 10, Date{2024, 2, 10}},
		{"leap day", 2024, 2, 29, Date{2024, 2, 29}},
		{"non leap feb 29", 2023, 2, 29, Date{2023, 3, 1}},
		{"month 13", 2024, 13, 1, Date{2025, 1, 1}},
		{"day zero", 2024, 3, 0, Date{2024, 2, 29}},
		{"month zero", 2024, 0, 15, Date{2023, 12, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.year, tt.month, tt.day))
		})
	}
}

func TestDateOfUsesWallClock(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	// 2024-02-10 01:00 in Seoul is still 2024-02-09 in UTC.
	ts := time.Date(2024, 2, 10, 1, 0, 0, 0, seoul)
	assert.Equal(t, Date{2024, 2, 10}, DateOf(ts))
	assert.Equal(t, Date{2024, 2, 9}, DateOf(ts.UTC()))
}

func TestKeyRoundTrip(t *testing.T) {
	d := Date{2024, 2, 10}
	require.Equal(t, "2024_2_10", d.Key())

	got, err := ParseKey(d.Key())
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{
		"",
		"2024_2",
		"2024_2_10_mark_0",
		"2024_x_10",
		"2024_13_1",
		"2024_2_30",
		"2024_2_0",
	} {
		t.Run(key, func(t *testing.T) {
			_, err := ParseKey(key)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestParseKeyPrefixIgnoresSuffix(t *testing.T) {
	d, err := parseKeyPrefix("2024_12_31_mark_3")
	require.NoError(t, err)
	assert.Equal(t, Date{2024, 12, 31}, d)
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "2024-02-09", Date{2024, 2, 9}.String())
}
