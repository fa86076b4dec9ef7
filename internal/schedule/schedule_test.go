package schedule

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/medtrack/internal/timeofday"
)

func TestGenerate_DefaultsAreSortedAndDistinct(t *testing.T) {
	for f := 1; f <= 6; f++ {
		slots := Generate(f, "")
		require.Len(t, slots, f, "frequency %d", f)

		assert.True(t, sort.SliceIsSorted(slots, func(i, j int) bool { return slots[i] < slots[j] }))
		seen := map[timeofday.TimeOfDay]bool{}
		for _, s := range slots {
			assert.False(t, seen[s], "duplicate %s", s)
			seen[s] = true
		}
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		frequency int
		timing    string
		want      []string
	}{
		{"zero frequency", 0, "with meals", []string{}},
		{"negative frequency", -2, "", []string{}},
		{"once default", 1, "", []string{"08:00"}},
		{"twice default", 2, "", []string{"08:00", "20:00"}},
		{"six a day wraps past midnight", 6, "", []string{"02:00", "06:00", "10:00", "14:00", "18:00", "22:00"}},
		{"before breakfast", 1, "Before breakfast", []string{"07:00"}},
		{"before bed twice", 2, "before bed", []string{"10:00", "22:00"}},
		{"after lunch twice", 2, "after lunch", []string{"01:00", "13:00"}},
		{"single preset three a day", 3, "before dinner", []string{"08:00", "14:00", "22:00"}},
		{"with meals twice", 2, "with meals", []string{"08:00", "13:00"}},
		{"with meals thrice", 3, "  WITH   meals ", []string{"08:00", "13:00", "19:00"}},
		{"with meals four times", 4, "with meals", []string{"08:00", "12:00", "18:00", "22:00"}},
		{"as needed", 2, "as needed", []string{"08:00", "20:00"}},
		{"unknown hint", 1, "whenever", []string{"08:00"}},
		{"seven a day", 7, "", []string{"08:00", "10:00", "12:00", "15:00", "17:00", "19:00", "22:00"}},
		{"eight a day", 8, "", []string{"08:00", "10:00", "12:00", "14:00", "16:00", "18:00", "20:00", "22:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timeofday.Strings(Generate(tt.frequency, tt.timing))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_LargeFrequencyCollapses(t *testing.T) {
	slots := Generate(20, "")
	assert.Len(t, slots, 15)
	assert.Equal(t, "08:00", slots[0].String())
	assert.Equal(t, "22:00", slots[len(slots)-1].String())
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]string{"21:00", "9:00", "21:00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "21:00"}, timeofday.Strings(got))

	_, err = Normalize(nil)
	assert.Error(t, err)

	_, err = Normalize([]string{"25:00"})
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	names := Presets()
	assert.Contains(t, names, "with meals")
	assert.True(t, sort.StringsAreSorted(names))
}
