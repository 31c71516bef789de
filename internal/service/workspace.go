package service

import (
	"sync"

	"github.com/vbonduro/chartgen/internal/chart"
)

// workspace holds the config currently on display. Every change bumps seq so
// that a generation which started before the change can tell it is stale.
type workspace struct {
	mu      sync.Mutex
	seq     uint64
	current *chart.Config
}

// begin returns the sequence number a later commit must still match.
func (w *workspace) begin() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// commit installs cfg only if nothing changed since begin returned seq.
func (w *workspace) commit(seq uint64, cfg *chart.Config) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seq != seq {
		return false
	}
	w.seq++
	w.current = cfg
	return true
}

func (w *workspace) replace(cfg *chart.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.current = cfg
}

// update derives the next config from the current one under the lock. The
// workspace is left untouched when fn fails.
func (w *workspace) update(fn func(cur *chart.Config) (*chart.Config, error)) (*chart.Config, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := fn(w.current)
	if err != nil {
		return nil, err
	}
	w.seq++
	w.current = next
	return next, nil
}

func (w *workspace) snapshot() *chart.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
