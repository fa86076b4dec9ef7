package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00", "08:00", false},
		{"8:05", "08:05", false},
		{" 22:30 ", "22:30", false},
		{"00:00", "00:00", false},
		{"23:59", "23:59", false},
		{"", "", true},
		{"24:00", "", true},
		{"12:60", "", true},
		{"12", "", true},
		{"12:5", "", true},
		{"ab:cd", "", true},
		{"123:00", "", true},
		{"+8:00", "", true},
		{"-0:00", "", true},
		{"08:+5", "", true},
		{"８:00", "", true},
		{"1 :00", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTimeOfDay_Add(t *testing.T) {
	assert.Equal(t, "20:00", MustParse("08:00").Add(12*time.Hour).String())
	assert.Equal(t, "10:00", MustParse("22:00").Add(12*time.Hour).String())
	assert.Equal(t, "23:30", MustParse("00:15").Add(-45*time.Minute).String())
}

func TestTimeOfDay_On(t *testing.T) {
	loc := time.FixedZone("test", 3*3600)
	date := time.Date(2026, 3, 14, 17, 42, 11, 0, loc)

	got := MustParse("08:30").On(date)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 30, 0, 0, loc), got)
	assert.Equal(t, MustParse("17:42"), FromTime(date))
}

func TestTimeOfDay_Text(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.UnmarshalText([]byte("13:00")))
	assert.Equal(t, 13, tod.Hour())

	b, err := tod.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "13:00", string(b))

	assert.Error(t, tod.UnmarshalText([]byte("nope")))
}

func TestParseAll(t *testing.T) {
	got, err := ParseAll([]string{"08:00", "20:00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, Strings(got))

	_, err = ParseAll([]string{"08:00", "bad"})
	assert.Error(t, err)
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2026-02-28", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", FormatDate(AddDays(d, 1)))
	assert.Equal(t, "2026-02-21", FormatDate(AddDays(d, -7)))

	_, err = ParseDate("28/02/2026", time.UTC)
	assert.True(t, apperrors.IsInvalidInput(err))

	now := time.Date(2026, 5, 1, 13, 14, 15, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), StartOfDay(now))
}

func TestFixedClock(t *testing.T) {
	c := NewFixedClock(time.Date(2026, 1, 1, 23, 50, 0, 0, time.UTC))
	assert.Equal(t, "2026-01-01", Today(c))

	c.Advance(20 * time.Minute)
	assert.Equal(t, "2026-01-02", Today(c))
}
