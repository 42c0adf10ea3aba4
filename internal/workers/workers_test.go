package workers

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"CPU-bound", 1.0, 0, max(available, 1)},
		{"I/O-bound", 2.0, 0, max(available*2, 1)},
		{"limit applies", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.0001, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{"override", "5", 0, 5},
		{"override capped by limit", "50", 8, 8},
		{"invalid override ignored", "many", 1, 1},
		{"zero override ignored", "0", 1, 1},
		{"negative override ignored", "-3", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.env)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestForHelpers(t *testing.T) {
	t.Setenv(OverrideEnv, "")
	if ForIO(0) < ForCPU(0) {
		t.Errorf("ForIO() = %d should not be below ForCPU() = %d", ForIO(0), ForCPU(0))
	}
	if ForIO(3) > 3 || ForCPU(1) != 1 {
		t.Error("limits not applied")
	}
}

func TestEachPreservesOrderAndBounds(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var running, peak atomic.Int32
	boom := errors.New("odd")

	errs := Each(context.Background(), 3, items, func(_ context.Context, n int) error {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if n%2 == 1 {
			return boom
		}
		return nil
	})

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	for i, err := range errs {
		if wantErr := items[i]%2 == 1; (err != nil) != wantErr {
			t.Errorf("errs[%d] = %v", i, err)
		}
	}
}

func TestEachCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	errs := Each(ctx, 2, []string{"a", "b", "c"}, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancel", calls.Load())
	}
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("errs[%d] = %v, want context.Canceled", i, err)
		}
	}
}

func TestEachEmpty(t *testing.T) {
	t.Parallel()
	if errs := Each(context.Background(), 4, []int(nil), func(context.Context, int) error { return nil }); len(errs) != 0 {
		t.Errorf("Each(nil) = %v", errs)
	}
}
