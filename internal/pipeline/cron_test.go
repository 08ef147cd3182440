package pipeline

import (
	"testing"
	"time"
)

func TestNextCronTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"daily at 4am", "0 4 * * *", time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC)},
		{"top of next hour", "0 * * * *", time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
		{"every six hours", "0 */6 * * *", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"list of minutes", "15,45 * * * *", time.Date(2026, 3, 1, 10, 45, 0, 0, time.UTC)},
		{"hour range", "0 9-17 * * *", time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
		{"first of month", "0 3 1 * *", time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, base)
			if err != nil {
				t.Fatalf("nextCronTime(%q): %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("nextCronTime(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestNextCronTimeInvalid(t *testing.T) {
	for _, expr := range []string{"", "0 4 * *", "x * * * *", "*/0 * * * *", "5-1 * * * *"} {
		if _, err := nextCronTime(expr, time.Now()); err == nil {
			t.Fatalf("nextCronTime(%q) should fail", expr)
		}
	}
}
