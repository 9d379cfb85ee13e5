package recurrence

import (
	"testing"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

// 2024-03-11 is a Monday, 2024-03-15 a Friday.
func mustTime(t *testing.T, year int, month time.Month, day, hour, min, sec int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

func TestNextFire(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.Recurrence
		ref  time.Time
		want time.Time
	}{
		{
			name: "interval adds seconds",
			rec:  domain.Interval{Seconds: 5},
			ref:  time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 10, 0, 5, 0, time.UTC),
		},
		{
			name: "daily before occurrence fires same day",
			rec:  domain.Daily{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 11, 8, 59, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "daily at exact occurrence fires tomorrow",
			rec:  domain.Daily{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "daily after occurrence fires tomorrow",
			rec:  domain.Daily{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 11, 14, 30, 0, 0, time.UTC),
			want: time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekdays friday after occurrence skips to monday",
			rec:  domain.Weekdays{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 15, 9, 1, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekdays saturday fires monday",
			rec:  domain.Weekdays{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekdays thursday before occurrence fires same day",
			rec:  domain.Weekdays{Hour: 9, Minute: 0},
			ref:  time.Date(2024, 3, 14, 7, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly monday before occurrence fires same day",
			rec:  domain.Weekly{Weekday: time.Monday, Hour: 8, Minute: 0},
			ref:  time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly monday after occurrence fires next week",
			rec:  domain.Weekly{Weekday: time.Monday, Hour: 8, Minute: 0},
			ref:  time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly sunday",
			rec:  domain.Weekly{Weekday: time.Sunday, Hour: 12, Minute: 30},
			ref:  time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 17, 12, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextFire(tt.rec, tt.ref)
			if err != nil {
				t.Fatalf("NextFire() error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextFire() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextFire_StrictlyFuture(t *testing.T) {
	recs := []domain.Recurrence{
		domain.Daily{Hour: 9, Minute: 0},
		domain.Weekdays{Hour: 9, Minute: 0},
		domain.Weekly{Weekday: time.Monday, Hour: 9, Minute: 0},
	}

	// Monday 09:00:00 exactly coincides with every pattern above.
	ref := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	for _, rec := range recs {
		got, err := NextFire(rec, ref)
		if err != nil {
			t.Fatalf("NextFire(%T) error: %v", rec, err)
		}
		if !got.After(ref) {
			t.Errorf("NextFire(%T) = %s, want strictly after %s", rec, got, ref)
		}
	}
}

func TestNextFire_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ref := time.Date(2024, 3, 11, 8, 0, 0, 0, loc)

	got, err := NextFire(domain.Daily{Hour: 9, Minute: 0}, ref)
	if err != nil {
		t.Fatalf("NextFire() error: %v", err)
	}
	want := time.Date(2024, 3, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextFire() = %s, want %s (local calendar of reference)", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     domain.Recurrence
		wantErr bool
	}{
		{"valid interval", domain.Interval{Seconds: 60}, false},
		{"zero interval", domain.Interval{Seconds: 0}, true},
		{"negative interval", domain.Interval{Seconds: -5}, true},
		{"valid daily", domain.Daily{Hour: 23, Minute: 59}, false},
		{"hour too large", domain.Daily{Hour: 24, Minute: 0}, true},
		{"minute too large", domain.Weekdays{Hour: 9, Minute: 60}, true},
		{"negative hour", domain.Weekdays{Hour: -1, Minute: 0}, true},
		{"valid weekly", domain.Weekly{Weekday: time.Friday, Hour: 9, Minute: 0}, false},
		{"weekday out of range", domain.Weekly{Weekday: 7, Hour: 9, Minute: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
