package task

import (
	"errors"
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		last  time.Time
		hours int
		want  time.Time
	}{
		{
			name:  "minute offset is dropped",
			last:  time.Date(2024, 1, 1, 1, 36, 0, 0, time.UTC),
			hours: 6,
			want:  time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name:  "exact hour is kept",
			last:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			hours: 1,
			want:  time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:  "crosses day boundary",
			last:  time.Date(2024, 1, 1, 23, 59, 59, 999, time.UTC),
			hours: 1,
			want:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "one week",
			last:  time.Date(2024, 2, 26, 8, 15, 0, 0, time.UTC),
			hours: 168,
			want:  time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		},
		{
			name:  "non-UTC input is normalized",
			last:  time.Date(2024, 1, 1, 12, 36, 0, 0, time.FixedZone("ACDT", 10*3600+30*60)),
			hours: 2,
			want:  time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NextRun(tt.last, tt.hours)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun(%v, %d) = %v, want %v", tt.last, tt.hours, got, tt.want)
			}
		})
	}
}

func TestNextRun_Law(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	for minute := 0; minute < 24*60; minute += 7 {
		last := base.Add(time.Duration(minute)*time.Minute + 13*time.Second)
		for _, h := range []int{1, 5, 24, 168} {
			got := NextRun(last, h)
			raw := last.Add(time.Duration(h) * time.Hour)
			if got.After(raw) {
				t.Fatalf("NextRun(%v, %d) = %v is after raw %v", last, h, got, raw)
			}
			if raw.Sub(got) >= time.Hour {
				t.Fatalf("NextRun(%v, %d) = %v drifts an hour or more", last, h, got)
			}
			if got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("NextRun(%v, %d) = %v is not on an hour boundary", last, h, got)
			}
		}
	}
}

func TestRecurrence_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		r       Recurrence
		wantErr bool
	}{
		{"minimum", Recurrence{IntervalHours: 1}, false},
		{"maximum", Recurrence{IntervalHours: 168, MaxExecutions: 10}, false},
		{"zero", Recurrence{IntervalHours: 0}, true},
		{"too large", Recurrence{IntervalHours: 169}, true},
		{"negative max", Recurrence{IntervalHours: 2, MaxExecutions: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation: %v", err)
			}
		})
	}
}
