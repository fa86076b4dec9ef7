package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int) *int { return &v }

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		current, frequency, dpi int
		want                    int
	}{
		{30, 1, 1, 30},
		{30, 2, 1, 15},
		{30, 2, 2, 7},
		{5, 3, 1, 1},
		{2, 3, 1, 0},
		{30, 0, 1, 0},
		{30, 2, 0, 0},
		{0, 2, 1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysRemaining(tt.current, tt.frequency, tt.dpi),
			"DaysRemaining(%d, %d, %d)", tt.current, tt.frequency, tt.dpi)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		current *int
		freq    int
		dpi     int
		want    Status
	}{
		{"untracked", nil, 1, 1, StatusUnknown},
		{"empty", ptr(0), 1, 1, StatusOut},
		{"negative treated as out", ptr(-2), 1, 1, StatusOut},
		{"three days", ptr(3), 1, 1, StatusCritical},
		{"four days", ptr(4), 1, 1, StatusLow},
		{"seven days", ptr(14), 2, 1, StatusLow},
		{"fourteen days", ptr(14), 1, 1, StatusMedium},
		{"fifteen days", ptr(15), 1, 1, StatusHealthy},
		{"bad frequency falls back to one a day", ptr(10), 0, 1, StatusMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.current, ptr(30), tt.freq, tt.dpi))
		})
	}
}

func TestNeedsAttention(t *testing.T) {
	assert.True(t, StatusOut.NeedsAttention())
	assert.True(t, StatusCritical.NeedsAttention())
	assert.False(t, StatusLow.NeedsAttention())
	assert.False(t, StatusUnknown.NeedsAttention())
}

func TestDecrement(t *testing.T) {
	next, clamped := Decrement(10, 1)
	assert.Equal(t, 9, next)
	assert.False(t, clamped)

	next, clamped = Decrement(1, 2)
	assert.Equal(t, 0, next)
	assert.True(t, clamped)

	next, clamped = Decrement(0, 1)
	assert.Equal(t, 0, next)
	assert.True(t, clamped)

	next, _ = Decrement(5, 0)
	assert.Equal(t, 4, next, "dose per intake is at least one")
}

func TestIncrement(t *testing.T) {
	assert.Equal(t, 10, Increment(9, 1))
	assert.Equal(t, 2, Increment(0, 2))
}

func TestRefill(t *testing.T) {
	c, total := Refill(ptr(5), ptr(30), 20)
	assert.Equal(t, 25, c)
	assert.Equal(t, 30, total)

	c, total = Refill(ptr(25), ptr(30), 20)
	assert.Equal(t, 45, c)
	assert.Equal(t, 45, total)

	c, total = Refill(nil, nil, 28)
	assert.Equal(t, 28, c)
	assert.Equal(t, 28, total)
}

func TestPercentage(t *testing.T) {
	p := Percentage(ptr(10), ptr(30))
	require.NotNil(t, p)
	assert.Equal(t, 33.3, *p)

	assert.Nil(t, Percentage(nil, ptr(30)))
	assert.Nil(t, Percentage(ptr(10), nil))
	assert.Nil(t, Percentage(ptr(10), ptr(0)))
}
