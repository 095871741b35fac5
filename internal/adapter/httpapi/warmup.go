package httpapi

import (
	"sync"

	"finrag/internal/usecase"
)

// Warmup publishes a pipeline exactly once. Readers never block: until
// Publish they are told the index is still loading.
type Warmup struct {
	once     sync.Once
	ready    chan struct{}
	pipeline *usecase.Pipeline
}

func NewWarmup() *Warmup {
	return &Warmup{ready: make(chan struct{})}
}

// Publish makes p visible to readers. Later calls are ignored.
func (w *Warmup) Publish(p *usecase.Pipeline) {
	w.once.Do(func() {
		w.pipeline = p
		close(w.ready)
	})
}

// Pipeline returns the published pipeline, or false while still loading.
func (w *Warmup) Pipeline() (*usecase.Pipeline, bool) {
	select {
	case <-w.ready:
		return w.pipeline, true
	default:
		return nil, false
	}
}
