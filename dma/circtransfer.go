package dma

import "time"

// CircConfig configures a circular transfer.
type CircConfig struct {
	// MaxReadDuration is the longest a read callback may run. The flag check
	// after the callback cannot see a second wraparound that happened inside
	// it, so a callback running longer than this is reported as an overrun.
	// Zero disables the check.
	MaxReadDuration time.Duration
}

// CircTransfer is a circular transfer from a peripheral into a CircBuffer. It
// runs until stopped, exposing each half to the CPU once the engine has moved
// on to the other one.
type CircTransfer[L Line, E Elem, P Payload] struct {
	ch      *Channel[L]
	buf     *CircBuffer[E]
	payload P
	cfg     CircConfig
	now     func() time.Time
	paused  bool
	stopped bool
}

// StartCircRead starts filling cb from the peripheral, first half first.
func StartCircRead[L Line, E Elem, P Payload](ch *Channel[L], cb *CircBuffer[E], payload P) (*CircTransfer[L, E, P], error) {
	if ch.InUse() {
		return nil, ErrInUse
	}
	if len(cb.data) > maxCount {
		return nil, ErrLength
	}
	if _, err := cb.lock(); err != nil {
		return nil, err
	}

	var cc channelConfig
	cc.setFromMemory(false)
	cc.setCircular(true)
	cc.setItemSize(sizeOf[E]())
	ch.program(payload.Address(), cb.address(), len(cb.data), cc)
	ch.owned = true

	fence()
	ch.setEnable(true)
	payload.EnableDMA()
	count(&ch.dma.stats.Starts)

	return &CircTransfer[L, E, P]{
		ch:      ch,
		buf:     cb,
		payload: payload,
		now:     time.Now,
	}, nil
}

// Configure applies cfg to subsequent reads.
func (t *CircTransfer[L, E, P]) Configure(cfg CircConfig) {
	t.cfg = cfg
}

// Read calls f with the half of the buffer the engine is not writing, if the
// engine finished that half since the last read. It never blocks: it returns
// ErrWouldBlock when no half is ready, ErrOverrun when the engine overtook the
// reader (before or during f) and ErrTransfer on a bus error.
//
// When Read returns ErrOverrun after calling f, whatever f computed must be
// discarded. f must not keep the slice.
func (t *CircTransfer[L, E, P]) Read(f func(half []E)) error {
	return t.Peek(func(half []E, _ Half) { f(half) })
}

// Peek is like Read but also tells f which half it is looking at.
func (t *CircTransfer[L, E, P]) Peek(f func(half []E, h Half)) error {
	t.mustActive()
	d := t.ch.dma

	state := t.buf.state
	if state == Free {
		panic("dma: read of a free circular buffer")
	}

	n := t.ch.index()
	te, ht, tc := t.ch.status()
	if te {
		d.countErr(ErrTransfer)
		return ErrTransfer
	}

	// The half the engine just finished is announced by one flag; the other
	// flag means it already finished the next half too.
	var (
		ready, lapped bool
		ack           uint32
		h             Half
		next          CircState
	)
	if state == MutatingFirstHalf {
		ready, lapped, ack, h, next = ht, tc, flagHT(n), First, MutatingSecondHalf
	} else {
		ready, lapped, ack, h, next = tc, ht, flagTC(n), Second, MutatingFirstHalf
	}
	if lapped {
		d.countErr(ErrOverrun)
		return ErrOverrun
	}
	if !ready {
		d.countErr(ErrWouldBlock)
		return ErrWouldBlock
	}

	t.ch.clear(ack)
	t.buf.state = next

	var start time.Time
	if t.cfg.MaxReadDuration > 0 {
		start = t.now()
	}
	fence()
	f(t.buf.half(h), h)
	fence()
	slow := t.cfg.MaxReadDuration > 0 && t.now().Sub(start) > t.cfg.MaxReadDuration

	te, ht, tc = t.ch.status()
	if te {
		d.countErr(ErrTransfer)
		return ErrTransfer
	}
	if h == First {
		lapped = tc
	} else {
		lapped = ht
	}
	if lapped || slow {
		d.countErr(ErrOverrun)
		return ErrOverrun
	}
	count(&d.stats.Reads)
	return nil
}

// Pause stops the engine without giving up the buffer. The circular state is
// kept so Resume continues the stream.
func (t *CircTransfer[L, E, P]) Pause() {
	t.mustActive()
	t.ch.setEnable(false)
	t.paused = true
}

// Resume restarts a paused stream.
func (t *CircTransfer[L, E, P]) Resume() {
	t.mustActive()
	fence()
	t.ch.setEnable(true)
	t.paused = false
}

// Paused reports whether the stream is paused.
func (t *CircTransfer[L, E, P]) Paused() bool {
	return t.paused
}

// Remaining returns the number of items left until the end of the second half.
func (t *CircTransfer[L, E, P]) Remaining() int {
	t.mustActive()
	return t.ch.Remaining()
}

// Stop disables the channel and returns the channel, buffer and payload. The
// buffer is Free again.
func (t *CircTransfer[L, E, P]) Stop() (*Channel[L], *CircBuffer[E], P) {
	t.mustActive()
	t.ch.setEnable(false)
	t.payload.DisableDMA()
	fence()
	t.ch.clear(flagsAll(t.ch.index()))
	t.buf.release()

	t.stopped = true
	t.ch.owned = false
	ch, buf, payload := t.ch, t.buf, t.payload
	var zero P
	t.ch, t.buf, t.payload = nil, nil, zero
	return ch, buf, payload
}

func (t *CircTransfer[L, E, P]) mustActive() {
	if t.stopped {
		panic("dma: use of a circular transfer after Stop")
	}
}
