package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	s := Every(time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	next1 := s.Next(start)
	next2 := s.Next(next1)

	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), next1)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next2)
}

func TestDaily(t *testing.T) {
	s := Daily(3, 30)

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"later today", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 3, 30, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC)},
		{"exactly at", time.Date(2024, 1, 1, 3, 30, 0, 0, time.UTC), time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC)},
		{"other zone", time.Date(2024, 1, 1, 4, 0, 0, 0, time.FixedZone("CET", 3600)), time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(s.Next(tt.from)), "got %s", s.Next(tt.from))
		})
	}
}

func TestParse(t *testing.T) {
	from := time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)

	tests := []struct {
		spec string
		want time.Time
	}{
		{"0 * * * *", time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"@daily 03:30", time.Date(2024, 1, 2, 3, 30, 0, 0, time.UTC)},
		{"@daily 18:45", time.Date(2024, 1, 1, 18, 45, 0, 0, time.UTC)},
		{"@every 15m", time.Date(2024, 1, 1, 12, 25, 0, 0, time.UTC)},
		{" @every 250ms ", from.Add(250 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(from))
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"not a schedule",
		"61 * * * *",
		"@every soon",
		"@every 0s",
		"@every -5m",
		"@daily 25:00",
		"@daily noon",
	}

	for _, spec := range tests {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), spec)
		})
	}
}
