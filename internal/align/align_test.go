package align

import (
	"testing"
	"unsafe"
)

func TestNewIsAligned(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1024} {
		b := New[float32](n)
		if b.Len() != n {
			t.Fatalf("Len() = %d, want %d", b.Len(), n)
		}
		if n == 0 {
			continue
		}
		addr := uintptr(unsafe.Pointer(&b.Data()[0]))
		if addr%Alignment != 0 {
			t.Fatalf("buffer of %d elements not %d-byte aligned: addr=%x", n, Alignment, addr)
		}
	}
}

func TestAtBounds(t *testing.T) {
	b := New[float64](4)
	b.Data()[2] = 3.5
	v, err := b.At(2)
	if err != nil || v != 3.5 {
		t.Fatalf("At(2) = %v, %v; want 3.5, nil", v, err)
	}
	if _, err := b.At(-1); err == nil {
		t.Fatal("At(-1) should error")
	}
	if _, err := b.At(4); err == nil {
		t.Fatal("At(4) should error")
	}
}

func TestSetBounds(t *testing.T) {
	b := New[uint64](2)
	if err := b.Set(1, 42); err != nil {
		t.Fatalf("Set(1, 42) errored: %v", err)
	}
	if v, _ := b.At(1); v != 42 {
		t.Fatalf("At(1) = %v, want 42", v)
	}
	if err := b.Set(5, 1); err == nil {
		t.Fatal("Set(5, 1) should error")
	}
}

func TestCloneIsIndependentAndAligned(t *testing.T) {
	b := New[complex64](8)
	for i := range b.Data() {
		b.Data()[i] = complex(float32(i), float32(-i))
	}
	c := b.Clone()
	c.Data()[0] = complex(99, 99)
	if b.Data()[0] == c.Data()[0] {
		t.Fatal("clone shares storage with original")
	}
	addr := uintptr(unsafe.Pointer(&c.Data()[0]))
	if addr%Alignment != 0 {
		t.Fatalf("clone not aligned: addr=%x", addr)
	}
}

func TestZero(t *testing.T) {
	b := New[float32](4)
	for i := range b.Data() {
		b.Data()[i] = 1
	}
	b.Zero()
	for i, v := range b.Data() {
		if v != 0 {
			t.Fatalf("Data()[%d] = %v, want 0", i, v)
		}
	}
}
