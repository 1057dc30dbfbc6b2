package dma

import "unsafe"

// Elem is the type of a buffer item. Its width selects the item size of the
// transfer.
type Elem interface {
	~uint8 | ~uint16 | ~uint32
}

func sizeOf[E Elem]() itemSize {
	var e E
	switch unsafe.Sizeof(e) {
	case 1:
		return itemSize8
	case 2:
		return itemSize16
	default:
		return itemSize32
	}
}

// State is the ownership state of a Buffer.
type State uint8

const (
	// Unlocked buffers are not used by the DMA engine.
	Unlocked State = iota
	// Locked buffers are read by the DMA engine. The CPU may read them too.
	Locked
	// MutLocked buffers are written by the DMA engine. The CPU may not touch
	// them.
	MutLocked
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "Unlocked"
	case Locked:
		return "Locked"
	case MutLocked:
		return "MutLocked"
	}
	return "State(?)"
}

// Buffer is memory used by one-shot transfers. The DMA engine needs a fixed
// address, so the backing storage should be a package-level array that lives
// for the whole program.
type Buffer[E Elem] struct {
	data    []E
	readers int
	writing bool
	state   State
}

// NewBuffer wraps data. The caller must not touch data directly afterwards.
func NewBuffer[E Elem](data []E) *Buffer[E] {
	return &Buffer[E]{data: data}
}

// State returns the ownership state.
func (b *Buffer[E]) State() State {
	return b.state
}

// Len returns the number of items.
func (b *Buffer[E]) Len() int {
	return len(b.data)
}

// Borrow calls f with a read-only view of the buffer. Any number of Borrows may
// be active at the same time, also while the DMA engine reads the buffer.
//
// Borrow panics if the buffer is written by the DMA engine or mutably
// borrowed. f must not keep data after it returns.
func (b *Buffer[E]) Borrow(f func(data []E)) {
	if b.writing {
		panic("dma: buffer is mutably borrowed or written by DMA")
	}
	b.readers++
	defer func() { b.readers-- }()
	fence()
	f(b.data)
	fence()
}

// BorrowMut calls f with exclusive access to the buffer.
//
// BorrowMut panics unless the buffer is unlocked and not borrowed.
func (b *Buffer[E]) BorrowMut(f func(data []E)) {
	if b.state != Unlocked || b.writing || b.readers != 0 {
		panic("dma: buffer is borrowed or in use by DMA")
	}
	b.writing = true
	defer func() { b.writing = false }()
	fence()
	f(b.data)
	fence()
}

// lock hands the buffer to the engine as a source.
func (b *Buffer[E]) lock() ([]E, error) {
	if b.state != Unlocked || b.writing {
		return nil, ErrInUse
	}
	b.readers++
	b.state = Locked
	return b.data, nil
}

// lockMut hands the buffer to the engine as a destination.
func (b *Buffer[E]) lockMut() ([]E, error) {
	if b.state != Unlocked || b.writing || b.readers != 0 {
		return nil, ErrInUse
	}
	b.writing = true
	b.state = MutLocked
	return b.data, nil
}

// unlock must only be called once the engine is done with the buffer.
func (b *Buffer[E]) unlock() {
	switch b.state {
	case Locked:
		b.readers--
	case MutLocked:
		b.writing = false
	}
	b.state = Unlocked
}

func (b *Buffer[E]) address() uintptr {
	return uintptr(unsafe.Pointer(&b.data[0]))
}
