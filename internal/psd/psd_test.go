package psd

import (
	"math"
	"testing"

	"github.com/geontech/composite-dsp/internal/align"
)

func TestPowerComputation(t *testing.T) {
	data := align.New[complex128](4)
	data.Data()[0] = complex(3, 4) // power = 25
	data.Data()[1] = complex(0, 0)
	data.Data()[2] = complex(1, 0)
	data.Data()[3] = complex(0, 1)
	out := align.New[float64](4)
	p := Params[float64]{WindowSum: 2, SampleRate: 5}
	if err := Power(p, data, out); err != nil {
		t.Fatalf("Power: %v", err)
	}
	want := []float64{25.0 / 10, 0, 1.0 / 10, 1.0 / 10}
	for i, w := range want {
		if math.Abs(out.Data()[i]-w) > 1e-12 {
			t.Fatalf("out[%d] = %v, want %v", i, out.Data()[i], w)
		}
	}
}

func TestToDBCanonical(t *testing.T) {
	out := align.New[float64](2)
	out.Data()[0] = 1
	out.Data()[1] = 100
	ToDB(Params[float64]{}, out)
	want := []float64{0, 20}
	for i, w := range want {
		if math.Abs(out.Data()[i]-w) > 1e-9 {
			t.Fatalf("ToDB()[%d] = %v, want %v", i, out.Data()[i], w)
		}
	}
}

func TestToDBAltFormula(t *testing.T) {
	out := align.New[float64](1)
	out.Data()[0] = 8
	ToDB(Params[float64]{AltLogFormula: true}, out)
	if math.Abs(out.Data()[0]-3) > 1e-9 {
		t.Fatalf("ToDB() = %v, want 3 (log2(8))", out.Data()[0])
	}
}

func TestLengthMismatchErrors(t *testing.T) {
	data := align.New[complex128](4)
	out := align.New[float64](2)
	if err := Power(Params[float64]{WindowSum: 1, SampleRate: 1}, data, out); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
