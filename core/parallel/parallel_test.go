package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), Workers(-1))
	assert.Equal(t, runtime.NumCPU(), Workers(0))
	assert.Equal(t, 3, Workers(3))
}

func TestParallelizeNCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"more items than workers", 103, 4},
		{"more workers than items", 3, 16},
		{"single worker", 10, 1},
		{"invalid worker count", 7, 0},
		{"no items", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := make([]int32, tt.items)
			ParallelizeN(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&counts[i], 1)
				}
			})
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)

	var total int64
	ParallelizeWithThreshold(1000, 10, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	assert.Equal(t, int64(1000), total)
}
