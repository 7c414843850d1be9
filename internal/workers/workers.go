package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count for a given task type, respecting container
// CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count to prevent resource exhaustion;
// use 0 for no cap. envVar, when non-empty, names an environment variable
// whose value overrides the computed count.
func Count(envVar string, multiplier float64, limit int) int {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				if limit > 0 && count > limit {
					return limit
				}
				return count
			}
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns a worker count for CPU-bound tasks (1 per CPU).
func ForCPU(envVar string, limit int) int {
	return Count(envVar, 1.0, limit)
}

// ForIO returns a worker count for I/O-bound tasks (2 per CPU).
func ForIO(envVar string, limit int) int {
	return Count(envVar, 2.0, limit)
}

// ForMixed returns a worker count for mixed tasks (1.5 per CPU).
func ForMixed(envVar string, limit int) int {
	return Count(envVar, 1.5, limit)
}
