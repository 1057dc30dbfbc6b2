package dma

import "runtime"

// Payload is the peripheral side of a transfer, usually a driver for a UART,
// ADC or timer. The engine only needs the address of its data register and a
// way to switch its DMA request line.
type Payload interface {
	Address() uintptr
	EnableDMA()
	DisableDMA()
}

// Direction is the direction of a one-shot transfer, either Read or Write.
// It only exists at the type level.
type Direction interface {
	fromMemory() bool
}

// Read transfers from the peripheral into memory.
type Read struct{}

// Write transfers from memory to the peripheral.
type Write struct{}

func (Read) fromMemory() bool  { return false }
func (Write) fromMemory() bool { return true }

// Transfer is a one-shot transfer in flight. It owns the channel, the buffer
// and the payload until Wait hands them back.
type Transfer[D Direction, L Line, E Elem, P Payload] struct {
	ch       *Channel[L]
	buf      *Buffer[E]
	payload  P
	released bool
}

// StartRead fills buf from the peripheral. The buffer is MutLocked until the
// transfer has been waited on.
func StartRead[L Line, E Elem, P Payload](ch *Channel[L], buf *Buffer[E], payload P) (*Transfer[Read, L, E, P], error) {
	return start[Read](ch, buf, payload)
}

// StartWrite sends buf to the peripheral. The buffer is Locked until the
// transfer has been waited on and can still be borrowed for reading.
func StartWrite[L Line, E Elem, P Payload](ch *Channel[L], buf *Buffer[E], payload P) (*Transfer[Write, L, E, P], error) {
	return start[Write](ch, buf, payload)
}

func start[D Direction, L Line, E Elem, P Payload](ch *Channel[L], buf *Buffer[E], payload P) (*Transfer[D, L, E, P], error) {
	if ch.InUse() {
		return nil, ErrInUse
	}
	n := buf.Len()
	if n == 0 || n > maxCount {
		return nil, ErrLength
	}

	var dir D
	var err error
	if dir.fromMemory() {
		_, err = buf.lock()
	} else {
		_, err = buf.lockMut()
	}
	if err != nil {
		return nil, err
	}

	var cc channelConfig
	cc.setFromMemory(dir.fromMemory())
	cc.setCircular(false)
	cc.setItemSize(sizeOf[E]())
	ch.program(payload.Address(), buf.address(), n, cc)

	ch.owned = true
	fence()
	ch.setEnable(true)
	payload.EnableDMA()
	count(&ch.dma.stats.Starts)

	return &Transfer[D, L, E, P]{ch: ch, buf: buf, payload: payload}, nil
}

// IsDone reports whether the hardware finished the transfer. It has no side
// effects and can be called from an interrupt handler.
func (t *Transfer[D, L, E, P]) IsDone() (bool, error) {
	t.mustActive()
	return t.isDone()
}

func (t *Transfer[D, L, E, P]) isDone() (bool, error) {
	te, _, tc := t.ch.status()
	if te {
		return false, ErrTransfer
	}
	return tc, nil
}

// Poll is IsDone as a three-way result: nil when done, ErrWouldBlock while
// running, or a terminal error.
func (t *Transfer[D, L, E, P]) Poll() error {
	done, err := t.IsDone()
	if err != nil {
		return err
	}
	if !done {
		return ErrWouldBlock
	}
	return nil
}

// Remaining returns the number of items not transferred yet.
func (t *Transfer[D, L, E, P]) Remaining() int {
	t.mustActive()
	return t.ch.Remaining()
}

// Wait spins until the transfer completes and returns the channel, buffer and
// payload. It is the only way to get them back. Do not call it from an
// interrupt handler that other work depends on.
//
// On a transfer error the channel is disabled and the pieces are returned
// together with ErrTransfer.
func (t *Transfer[D, L, E, P]) Wait() (*Channel[L], *Buffer[E], P, error) {
	t.mustActive()
	for {
		count(&t.ch.dma.stats.Polls)
		done, err := t.isDone()
		if err != nil {
			return t.fail(err)
		}
		if done {
			break
		}
		runtime.Gosched()
	}
	fence()

	n := t.ch.index()
	t.ch.clear(flagTC(n))
	t.ch.setEnable(false)
	t.payload.DisableDMA()
	t.buf.unlock()
	count(&t.ch.dma.stats.Completions)

	ch, buf, payload := t.release()
	return ch, buf, payload, nil
}

func (t *Transfer[D, L, E, P]) fail(err error) (*Channel[L], *Buffer[E], P, error) {
	t.ch.setEnable(false)
	t.payload.DisableDMA()
	fence()
	t.ch.clear(flagsAll(t.ch.index()))
	t.buf.unlock()
	t.ch.dma.countErr(err)

	ch, buf, payload := t.release()
	return ch, buf, payload, err
}

func (t *Transfer[D, L, E, P]) release() (*Channel[L], *Buffer[E], P) {
	t.released = true
	t.ch.owned = false
	ch, buf, payload := t.ch, t.buf, t.payload
	var zero P
	t.ch, t.buf, t.payload = nil, nil, zero
	return ch, buf, payload
}

func (t *Transfer[D, L, E, P]) mustActive() {
	if t.released {
		panic("dma: use of a transfer after Wait")
	}
}
