package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "Mixed task (1.5x multiplier)",
			multiplier: 1.5,
			limit:      0,
			minExpect:  1,
			maxExpect:  int(float64(availableCPU)*1.5) + 1,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count("SCANNER_TEST_WORKERS", tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv("SCANNER_TEST_WORKERS", "3")

	if got := Count("SCANNER_TEST_WORKERS", 1.0, 0); got != 3 {
		t.Errorf("Count with env override = %d, want 3", got)
	}

	// The limit still applies over the override.
	if got := Count("SCANNER_TEST_WORKERS", 1.0, 2); got != 2 {
		t.Errorf("Count with env override and limit = %d, want 2", got)
	}
}

func TestCountInvalidEnv(t *testing.T) {
	t.Setenv("SCANNER_TEST_WORKERS", "not-a-number")

	got := Count("SCANNER_TEST_WORKERS", 1.0, 0)
	if got < 1 {
		t.Errorf("Count with invalid env = %d, want >= 1", got)
	}
}

func TestHelpers(t *testing.T) {
	if got := ForCPU("", 4); got < 1 || got > 4 {
		t.Errorf("ForCPU = %d, want between 1 and 4", got)
	}
	if got := ForIO("", 8); got < 1 || got > 8 {
		t.Errorf("ForIO = %d, want between 1 and 8", got)
	}
	if got := ForMixed("", 6); got < 1 || got > 6 {
		t.Errorf("ForMixed = %d, want between 1 and 6", got)
	}
}
