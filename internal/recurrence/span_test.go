package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

func TestSpan(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		end       mo.Option[time.Time]
		allDay    bool
		want      []string
		truncated bool
	}{
		{"timed event", mo.Some(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)), false, []string{"2024-05-01"}, false},
		{"all-day without end", mo.None[time.Time](), true, []string{"2024-05-01"}, false},
		{"three days", mo.Some(Date(2024, 5, 3)), true, []string{"2024-05-01", "2024-05-02", "2024-05-03"}, false},
		{"single day", mo.Some(start), true, []string{"2024-05-01"}, false},
		{"end before start", mo.Some(Date(2024, 4, 28)), true, []string{"2024-05-01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Span(start, tt.end, tt.allDay, 0)
			assert.Equal(t, tt.want, formatAll(got))
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestSpanCap(t *testing.T) {
	start := Date(2024, 1, 1)
	got, truncated := Span(start, mo.Some(Date(2026, 1, 1)), true, 0)
	assert.True(t, truncated)
	assert.Len(t, got, DefaultCap)
	assert.Equal(t, "2024-01-01", FormatDate(got[0]))

	got, truncated = Span(start, mo.Some(Date(2024, 1, 10)), true, 4)
	assert.True(t, truncated)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}, formatAll(got))
}

func TestSpanLocalDates(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// An all-day event stored as local midnights keeps its local dates.
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, loc)
	end := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	got, _ := Span(DateOf(start, loc), mo.Some(DateOf(end, loc)), true, 0)
	assert.Equal(t, []string{"2024-03-09", "2024-03-10", "2024-03-11"}, formatAll(got))
}
