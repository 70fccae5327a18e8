// Package fftframer implements the asynchronous FFT framer: a background
// goroutine windows and accumulates complex-int16 IQ payloads into
// fixed-size frames and hands them to a scheduler-driven Process step
// that executes a prebuilt FFT plan in place. The two sides communicate
// through a deque guarded by one mutex and one condition variable, the
// same shape the UDP source uses to decouple its filler goroutine from
// its scheduler-driven receive step.
package fftframer

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/geontech/composite-dsp/internal/align"
	"github.com/geontech/composite-dsp/internal/component"
	"github.com/geontech/composite-dsp/internal/fftplan"
	"github.com/geontech/composite-dsp/internal/sdds"
	"github.com/geontech/composite-dsp/internal/simdconv"
	"github.com/geontech/composite-dsp/internal/vita"
	"github.com/geontech/composite-dsp/internal/window"
)

// Window selects the taper applied to each frame before transforming it.
type Window int

const (
	WindowNone Window = iota
	WindowBlackmanHarris
	WindowHamming
)

// Transport selects which wire framing the background goroutine parses
// incoming packets with.
type Transport int

const (
	TransportSDDS Transport = iota
	TransportVITA49
)

// Params configures an FFTFramer.
type Params struct {
	Window      Window
	FFTSize     int
	FFTWThreads int
	Shift       bool
	Transport   Transport
}

// strideSamples is the number of complex samples converted per windowed
// group: 32/sizeof(double) per the source's stride convention.
const strideSamples = 4

// frame is one completed, windowed frame awaiting FFT execution, paired
// with the timestamp of the first sample that populated it.
type frame struct {
	buf *align.Buf[complex128]
	ts  component.Timestamp
}

// FFTFramer accumulates IQ samples into fft_size complex128 frames on a
// background goroutine, windowing each group as it is converted, and
// executes the prebuilt FFT plan on each frame from Process.
type FFTFramer struct {
	params Params
	in     *component.Port[[][]byte]
	out    *component.Port[*align.Buf[complex128]]

	plan   *fftplan.ComplexPlan
	window *align.Buf[float64] // nil if Window == WindowNone

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []frame
	stopCh chan struct{}
	wg     sync.WaitGroup

	frameBuf *align.Buf[complex128]
	frameIdx int
	frameTS  component.Timestamp
}

// New constructs an FFTFramer reading raw packet batches from in and
// writing executed FFT frames to out.
func New(p Params, in *component.Port[[][]byte], out *component.Port[*align.Buf[complex128]]) *FFTFramer {
	return &FFTFramer{params: p, in: in, out: out}
}

// Initialize builds the window (if configured) and the FFT plan.
func (f *FFTFramer) Initialize() error {
	if f.params.FFTSize <= 0 {
		return fmt.Errorf("fftframer: fft_size must be positive")
	}
	if f.params.FFTSize%strideSamples != 0 {
		return fmt.Errorf("fftframer: fft_size %d is not a multiple of the %d-sample stride", f.params.FFTSize, strideSamples)
	}
	switch f.params.Window {
	case WindowBlackmanHarris:
		f.window = window.BlackmanHarris[float64](f.params.FFTSize, true)
	case WindowHamming:
		f.window = window.Hamming[float64](f.params.FFTSize, true)
	case WindowNone:
		f.window = nil
	default:
		return fmt.Errorf("fftframer: unknown window %d", f.params.Window)
	}
	plan, err := fftplan.NewComplexPlan(f.params.FFTSize, f.params.FFTWThreads, f.params.Shift)
	if err != nil {
		return fmt.Errorf("fftframer: %w", err)
	}
	f.plan = plan
	f.cond = sync.NewCond(&f.mu)
	f.stopCh = make(chan struct{})
	return nil
}

// Start launches the background windowing goroutine.
func (f *FFTFramer) Start() error {
	f.wg.Add(1)
	go f.fill()
	return nil
}

// Stop signals the background goroutine to exit and waits for it to join.
func (f *FFTFramer) Stop() error {
	close(f.stopCh)
	f.cond.Broadcast()
	f.wg.Wait()
	return nil
}

// fill pulls input packet batches, windows and converts their IQ payload
// into frameBuf in stride-sized groups, and pushes a completed frame onto
// the queue whenever frameIdx reaches fft_size. It observes stopCh both
// while waiting on the input port and at every batch boundary.
func (f *FFTFramer) fill() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		case sample, ok := <-f.in.Chan():
			if !ok {
				return
			}
			f.consumeBatch(sample.Value)
		}
	}
}

func (f *FFTFramer) consumeBatch(batch [][]byte) {
	for _, raw := range batch {
		samples, ts, ok := f.extract(raw)
		if !ok {
			continue
		}
		for i := 0; i+2*strideSamples <= len(samples); i += 2 * strideSamples {
			if f.frameBuf == nil {
				f.frameBuf = align.New[complex128](f.params.FFTSize)
				f.frameTS = ts
			}
			f.windowedConvertGroup(samples[i : i+2*strideSamples])
			f.frameIdx += strideSamples
			if f.frameIdx == f.params.FFTSize {
				f.mu.Lock()
				f.queue = append(f.queue, frame{buf: f.frameBuf, ts: f.frameTS})
				f.mu.Unlock()
				f.cond.Signal()
				f.frameBuf = nil
				f.frameIdx = 0
			}
		}
	}
}

func (f *FFTFramer) extract(raw []byte) (samples []int16, ts component.Timestamp, ok bool) {
	switch f.params.Transport {
	case TransportSDDS:
		o, err := sdds.Parse(raw)
		if err != nil {
			return nil, component.Timestamp{}, false
		}
		return sdds.Payload[int16](o), component.Timestamp{Seconds: o.Seconds(), Picoseconds: o.Picoseconds()}, true
	case TransportVITA49:
		o, err := vita.Parse(raw)
		if err != nil || !o.Header().IsData() {
			return nil, component.Timestamp{}, false
		}
		if secs, present := o.IntegerTimestamp(); present {
			ts.Seconds = secs
		}
		if psecs, present := o.FractionalTimestamp(); present {
			ts.Picoseconds = psecs
		}
		return vita.Payload[int16](o), ts, true
	default:
		return nil, component.Timestamp{}, false
	}
}

func (f *FFTFramer) windowedConvertGroup(group []int16) {
	flat := complexRealsF64(f.frameBuf.Data()[f.frameIdx : f.frameIdx+strideSamples])
	var w []float64
	if f.window != nil {
		w = f.window.Data()[f.frameIdx*2 : f.frameIdx*2+strideSamples*2]
	}
	simdconv.WindowedI16ToF64(group, flat, false, w)
}

// Process waits up to one second for a non-empty queue, pops one frame,
// executes the FFT plan on it, and emits the result downstream. sync.Cond
// has no timed wait, so a timer nudges the condvar at the deadline; the
// predicate re-check after each wakeup tells a real signal from a timeout.
func (f *FFTFramer) Process() (component.Retval, error) {
	deadline := time.Now().Add(1 * time.Second)
	f.mu.Lock()
	for len(f.queue) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.mu.Unlock()
			return component.Noop, nil
		}
		timer := time.AfterFunc(remaining, func() {
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		})
		f.cond.Wait()
		timer.Stop()
	}
	fr := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()

	if err := f.plan.Execute(fr.buf, fr.buf); err != nil {
		return component.Normal, err
	}
	f.out.Send(fr.buf, fr.ts)
	return component.Normal, nil
}

func complexRealsF64(c []complex128) []float64 {
	if len(c) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&c[0])), len(c)*2)
}
