package dma

import "unsafe"

// CircState is the state of a CircBuffer.
type CircState uint8

const (
	// Free buffers are not used by the DMA engine.
	Free CircState = iota
	// MutatingFirstHalf means the engine is writing the first half; the second
	// half may be read.
	MutatingFirstHalf
	// MutatingSecondHalf means the engine is writing the second half; the first
	// half may be read.
	MutatingSecondHalf
)

func (s CircState) String() string {
	switch s {
	case Free:
		return "Free"
	case MutatingFirstHalf:
		return "MutatingFirstHalf"
	case MutatingSecondHalf:
		return "MutatingSecondHalf"
	}
	return "CircState(?)"
}

// Half names one half of a CircBuffer.
type Half uint8

const (
	First Half = iota
	Second
)

func (h Half) String() string {
	if h == First {
		return "First"
	}
	return "Second"
}

// CircBuffer is a double buffer for continuous transfers. The engine fills one
// half while the CPU reads the other.
type CircBuffer[E Elem] struct {
	data  []E
	n     int
	state CircState
}

// NewCircBuffer splits data into two halves. Both halves must be contiguous in
// memory so a single circular transfer can cover them, which is why they are
// passed as one slice. NewCircBuffer panics if len(data) is zero or odd.
func NewCircBuffer[E Elem](data []E) *CircBuffer[E] {
	if len(data) == 0 || len(data)%2 != 0 {
		panic("dma: circular buffer length must be even and non-zero")
	}
	return &CircBuffer[E]{data: data, n: len(data) / 2}
}

// State returns the state of the buffer.
func (cb *CircBuffer[E]) State() CircState {
	return cb.state
}

// Len returns the number of items in one half.
func (cb *CircBuffer[E]) Len() int {
	return cb.n
}

func (cb *CircBuffer[E]) half(h Half) []E {
	if h == First {
		return cb.data[:cb.n:cb.n]
	}
	return cb.data[cb.n:]
}

func (cb *CircBuffer[E]) lock() ([]E, error) {
	if cb.state != Free {
		return nil, ErrInUse
	}
	cb.state = MutatingFirstHalf
	return cb.data, nil
}

func (cb *CircBuffer[E]) release() {
	cb.state = Free
}

func (cb *CircBuffer[E]) address() uintptr {
	return uintptr(unsafe.Pointer(&cb.data[0]))
}
