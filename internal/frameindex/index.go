// Package frameindex maps a playback time onto the best-matching analyzed
// frame. Lookups are memoized per rounded query time for the lifetime of one
// analysis document; a new document gets a new Index.
package frameindex

import (
	"math"
	"sort"
	"sync"

	"github.com/formlab/squatview/internal/types"
)

// coverageThreshold is the fraction of the media duration the analysis must
// cover before timestamp search is trusted. Below it the index falls back to
// proportional mapping so the overlay keeps moving past analysis coverage.
const coverageThreshold = 0.9

// Index resolves playback times to frame ordinals.
type Index struct {
	frames   []types.AnalyzedFrame
	duration float64

	mu    sync.Mutex
	cache map[int64]int

	lookups uint64
	misses  uint64
}

// Stats contains lookup counters, used for cache diagnostics.
type Stats struct {
	Lookups uint64
	Misses  uint64
}

// New creates an index over an analysis document. duration is the media
// duration in seconds; it drives the sparse-coverage fallback.
func New(doc *types.Document, duration float64) *Index {
	ix := &Index{
		duration: duration,
		cache:    make(map[int64]int),
	}
	if doc != nil {
		ix.frames = doc.Frames
	}
	return ix
}

// Find returns the index of the frame best matching queryTime.
//
// The query is rounded to two decimal places before lookup to stabilize
// caching against floating-point jitter from the playback clock. An empty
// frame set returns 0; callers must treat that as the no-data sentinel.
func (ix *Index) Find(queryTime float64) int {
	if len(ix.frames) == 0 {
		return 0
	}
	if queryTime < 0 || math.IsNaN(queryTime) {
		queryTime = 0
	}

	key := int64(math.Round(queryTime * 100))
	q := float64(key) / 100

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.lookups++
	if idx, ok := ix.cache[key]; ok {
		return idx
	}
	ix.misses++

	var idx int
	if ix.sparseCoverage() {
		idx = ix.proportional(q)
	} else {
		idx = ix.nearest(q)
	}
	ix.cache[key] = idx
	return idx
}

// Stats returns lookup counters.
func (ix *Index) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return Stats{Lookups: ix.lookups, Misses: ix.misses}
}

// sparseCoverage reports whether the last analyzed timestamp undershoots the
// media duration badly enough that timestamp search would freeze the overlay
// on the final frame while the media keeps playing.
func (ix *Index) sparseCoverage() bool {
	if ix.duration <= 0 {
		return false
	}
	last := ix.frames[len(ix.frames)-1].Timestamp
	return last < ix.duration*coverageThreshold
}

// proportional maps the query linearly over the whole frame range.
func (ix *Index) proportional(q float64) int {
	n := len(ix.frames)
	idx := int(math.Floor(q / ix.duration * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// nearest binary-searches the timestamp sequence for the closest frame,
// breaking ties toward the earlier frame.
func (ix *Index) nearest(q float64) int {
	n := len(ix.frames)
	i := sort.Search(n, func(i int) bool {
		return ix.frames[i].Timestamp >= q
	})
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	before := q - ix.frames[i-1].Timestamp
	after := ix.frames[i].Timestamp - q
	if after < before {
		return i
	}
	return i - 1
}
