package frameindex

import (
	"math"
	"math/rand"
	"testing"

	"github.com/formlab/squatview/internal/types"
)

func docWithTimestamps(ts ...float64) *types.Document {
	frames := make([]types.AnalyzedFrame, len(ts))
	for i, t := range ts {
		frames[i] = types.AnalyzedFrame{Index: i, Timestamp: t}
	}
	return &types.Document{Frames: frames}
}

func TestFind_NearestMatch(t *testing.T) {
	doc := docWithTimestamps(0.0, 0.5, 1.0, 1.5, 2.0)

	tests := []struct {
		name  string
		query float64
		want  int
	}{
		{"exact first", 0.0, 0},
		{"exact middle", 1.0, 2},
		{"exact last", 2.0, 4},
		{"closer to earlier", 0.6, 1},
		{"closer to later", 0.9, 2},
		{"tie breaks earlier", 0.75, 1},
		{"before first", -1.0, 0},
		{"past last", 5.0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := New(doc, 2.0)
			if got := ix.Find(tt.query); got != tt.want {
				t.Errorf("Find(%v) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

// Property: the returned frame's timestamp distance to the query is minimal
// over all frames, for any non-decreasing timestamp sequence.
func TestFind_NearestProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(40)
		ts := make([]float64, n)
		acc := 0.0
		for i := range ts {
			acc += rng.Float64() * 0.5
			ts[i] = math.Round(acc*100) / 100
		}
		doc := docWithTimestamps(ts...)
		// Duration matching coverage so the fallback never triggers.
		ix := New(doc, ts[n-1])

		q := math.Round(rng.Float64()*acc*100) / 100
		got := ix.Find(q)

		best := math.Abs(ts[got] - q)
		for i, v := range ts {
			if d := math.Abs(v - q); d < best-1e-9 {
				t.Fatalf("trial %d: Find(%v) = %d (dist %v), but frame %d is closer (dist %v)",
					trial, q, got, best, i, d)
			}
		}
	}
}

func TestFind_Memoized(t *testing.T) {
	ix := New(docWithTimestamps(0, 1, 2, 3), 3.0)

	// Queries rounding to the same two-decimal value must hit the cache.
	ix.Find(1.234)
	ix.Find(1.2349)
	ix.Find(1.2301)

	stats := ix.Stats()
	if stats.Lookups != 3 {
		t.Errorf("Lookups = %d, want 3", stats.Lookups)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1 (repeat queries must not re-scan)", stats.Misses)
	}

	// A distinct rounded value scans once more.
	ix.Find(2.0)
	if got := ix.Stats().Misses; got != 2 {
		t.Errorf("Misses after new query = %d, want 2", got)
	}
}

func TestFind_ProportionalFallback(t *testing.T) {
	// Analysis covers 4s of a 10s video: below the 90% coverage threshold.
	doc := docWithTimestamps(0, 1, 2, 3, 4)
	ix := New(doc, 10.0)

	tests := []struct {
		query float64
		want  int
	}{
		{0.0, 0},
		{2.5, 1},  // floor(2.5/10*4) = 1
		{5.0, 2},  // floor(5/10*4) = 2
		{9.99, 3}, // floor(9.99/10*4) = 3
		{10.0, 4},
		{25.0, 4}, // clamped
	}
	for _, tt := range tests {
		if got := ix.Find(tt.query); got != tt.want {
			t.Errorf("Find(%v) = %d, want %d (proportional mapping)", tt.query, got, tt.want)
		}
	}
}

func TestFind_FullCoverageUsesSearch(t *testing.T) {
	// 95% coverage: timestamp search stays active.
	doc := docWithTimestamps(0, 9.5)
	ix := New(doc, 10.0)

	if got := ix.Find(9.0); got != 1 {
		t.Errorf("Find(9.0) = %d, want 1 (nearest match, not proportional)", got)
	}
}

func TestFind_EmptyFrames(t *testing.T) {
	ix := New(&types.Document{}, 10.0)
	if got := ix.Find(3.0); got != 0 {
		t.Errorf("Find on empty document = %d, want sentinel 0", got)
	}

	ix = New(nil, 10.0)
	if got := ix.Find(0.0); got != 0 {
		t.Errorf("Find on nil document = %d, want sentinel 0", got)
	}
}
