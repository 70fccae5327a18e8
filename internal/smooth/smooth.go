// Package smooth implements a one-pole exponential smoother applied
// frame-over-frame to PSD (or any same-shaped) data.
package smooth

import "github.com/geontech/composite-dsp/internal/align"

// Float is the set of element types the smoother supports.
type Float interface {
	~float32 | ~float64
}

// Smoother holds the running average across successive Process calls.
// Construct it with New: the zero value has both alpha and 1-alpha set to
// 0. The first frame it sees is copied through unchanged, matching the
// original kernel's first-frame capture.
type Smoother[T Float] struct {
	alpha        T
	oneMinus     T
	prev         *align.Buf[T]
}

// New constructs a Smoother with smoothing factor alpha. alpha=1 makes
// Process a pass-through (no smoothing).
func New[T Float](alpha T) *Smoother[T] {
	return &Smoother[T]{alpha: alpha, oneMinus: 1 - alpha}
}

// Process updates curr in place: on the first call it is copied into the
// running state and returned unchanged; on every subsequent call,
// curr[k] = curr[k]*alpha + prev[k]*(1-alpha).
func (s *Smoother[T]) Process(curr *align.Buf[T]) {
	if s.alpha == 1 {
		return
	}
	if s.prev == nil {
		s.prev = curr.Clone()
		return
	}
	data := curr.Data()
	prevData := s.prev.Data()
	n := min(len(data), len(prevData))
	for i := 0; i < n; i++ {
		v := data[i]*s.alpha + prevData[i]*s.oneMinus
		data[i] = v
		prevData[i] = v
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
