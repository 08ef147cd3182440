package engine

import (
	"testing"
	"time"
)

func TestVelocity(t *testing.T) {
	tests := []struct {
		name   string
		delta  float64
		window time.Duration
		want   float64
	}{
		{"one hour", 6000, time.Hour, 6000},
		{"six hours", 6000, 6 * time.Hour, 1000},
		{"half hour", 500, 30 * time.Minute, 1000},
		{"zero window", 6000, 0, 0},
		{"negative window", 6000, -time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Velocity(tt.delta, tt.window); got != tt.want {
				t.Fatalf("Velocity(%v, %v) = %v, want %v", tt.delta, tt.window, got, tt.want)
			}
		})
	}
}

func TestVelocityPct(t *testing.T) {
	tests := []struct {
		name   string
		delta  float64
		total  float64
		window time.Duration
		want   float64
	}{
		{"ten percent per hour", 10000, 100000, time.Hour, 10},
		{"spread over four hours", 10000, 100000, 4 * time.Hour, 2.5},
		{"zero total", 500, 0, time.Hour, 0},
		{"negative total", 500, -1, time.Hour, 0},
		{"zero window", 500, 100000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VelocityPct(tt.delta, tt.total, tt.window); got != tt.want {
				t.Fatalf("VelocityPct(%v, %v, %v) = %v, want %v", tt.delta, tt.total, tt.window, got, tt.want)
			}
		})
	}
}
