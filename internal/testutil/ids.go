package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates ids of the form "<prefix>-<n>" with a separate
// counter per prefix, starting at 1.
//
// Its Next method has the shape of canvas.Options.NewID and of the id
// generators the store and workspace packages accept, so scenarios produce
// byte-identical output across runs.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequentialIDs creates a generator with all counters at zero.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{counters: make(map[string]int)}
}

// Next returns the next id for prefix.
func (g *SequentialIDs) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}

// Reset sets every counter back to zero.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters = make(map[string]int)
}
