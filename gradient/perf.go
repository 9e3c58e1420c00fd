package gradient

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// SystemStats accumulates per-system solver effort across repeated calls,
// keyed by variable name and method.
type SystemStats struct {
	Calls   int
	Sweeps  int
	Elapsed time.Duration
}

type Registry struct {
	mu    sync.Mutex
	stats map[string]*SystemStats
}

func NewRegistry() *Registry {
	return &Registry{stats: make(map[string]*SystemStats)}
}

func (r *Registry) record(name string, mt Method, sweeps int, elapsed time.Duration) {
	key := name + " [" + mt.Print() + "]"
	r.mu.Lock()
	s, ok := r.stats[key]
	if !ok {
		s = &SystemStats{}
		r.stats[key] = s
	}
	s.Calls++
	s.Sweeps += sweeps
	s.Elapsed += elapsed
	r.mu.Unlock()
}

// Stats returns a copy of the accumulated entry for a variable/method pair,
// or a zero value when none has been recorded.
func (r *Registry) Stats(name string, mt Method) (s SystemStats) {
	r.mu.Lock()
	if p, ok := r.stats[name+" ["+mt.Print()+"]"]; ok {
		s = *p
	}
	r.mu.Unlock()
	return
}

// DumpStats writes the accumulated table sorted by key, one line per
// variable/method pair.
func (r *Registry) DumpStats(w io.Writer) {
	r.mu.Lock()
	keys := make([]string, 0, len(r.stats))
	for k := range r.stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%-48s %8s %8s %12s\n", "system", "calls", "sweeps", "elapsed")
	for _, k := range keys {
		s := r.stats[k]
		fmt.Fprintf(w, "%-48s %8d %8d %12s\n", k, s.Calls, s.Sweeps, s.Elapsed.Round(time.Microsecond))
	}
	r.mu.Unlock()
}
