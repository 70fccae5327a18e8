package fftplan

import (
	"math"
	"testing"

	"github.com/geontech/composite-dsp/internal/align"
)

func TestShiftIsInvolution(t *testing.T) {
	n := 8
	buf := align.New[complex128](n)
	for i := 0; i < n; i++ {
		buf.Data()[i] = complex(float64(i), 0)
	}
	Shift(buf)
	Shift(buf)
	for i := 0; i < n; i++ {
		if real(buf.Data()[i]) != float64(i) {
			t.Fatalf("double shift not identity at %d: %v", i, buf.Data()[i])
		}
	}
}

func TestShiftMovesHalves(t *testing.T) {
	n := 4
	buf := align.New[complex128](n)
	for i := 0; i < n; i++ {
		buf.Data()[i] = complex(float64(i), 0)
	}
	Shift(buf)
	want := []float64{2, 3, 0, 1}
	for i, w := range want {
		if real(buf.Data()[i]) != w {
			t.Fatalf("Shift()[%d] = %v, want %v", i, buf.Data()[i], w)
		}
	}
}

func TestComplexPlanDCBin(t *testing.T) {
	n := 16
	plan, err := NewComplexPlan(n, 1, false)
	if err != nil {
		t.Fatalf("NewComplexPlan: %v", err)
	}
	in := align.New[complex128](n)
	out := align.New[complex128](n)
	for i := range in.Data() {
		in.Data()[i] = complex(1, 0)
	}
	if err := plan.Execute(in, out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if math.Abs(real(out.Data()[0])-float64(n)) > 1e-9 {
		t.Fatalf("DC bin = %v, want %v", out.Data()[0], n)
	}
	for i := 1; i < n; i++ {
		if math.Abs(real(out.Data()[i])) > 1e-9 || math.Abs(imag(out.Data()[i])) > 1e-9 {
			t.Fatalf("bin %d should be ~0 for a constant input, got %v", i, out.Data()[i])
		}
	}
}

func TestRealPlanOutputLen(t *testing.T) {
	plan, err := NewRealPlan(32, 1, false)
	if err != nil {
		t.Fatalf("NewRealPlan: %v", err)
	}
	if got, want := plan.OutputLen(), 17; got != want {
		t.Fatalf("OutputLen() = %d, want %d", got, want)
	}
	in := align.New[float64](32)
	out := align.New[complex128](plan.OutputLen())
	if err := plan.Execute(in, out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
