package dma_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ajanata/stm32f1dma/dma"
	"github.com/ajanata/stm32f1dma/dma/dmatest"
)

func startCirc(c *qt.C, backing []byte) (*dmatest.Controller, *dma.DMA, *dma.CircBuffer[byte], *dma.CircTransfer[dma.Ch5, byte, *dmatest.Peripheral]) {
	hw, d, chans := setup(c)
	cb := dma.NewCircBuffer(backing)
	tr, err := dma.StartCircRead(chans.Ch5, cb, dmatest.NewPeripheral(usartDR))
	c.Assert(err, qt.IsNil)
	return hw, d, cb, tr
}

func TestCircStart(t *testing.T) {
	c := qt.New(t)
	hw, _, cb, tr := startCirc(c, make([]byte, 8))
	c.Assert(cb.State(), qt.Equals, dma.MutatingFirstHalf)

	regs := hw.Snapshot(5)
	// EN, CIRC, MINC, peripheral to memory.
	c.Assert(regs.Control, qt.Equals, uint32(1<<0|1<<5|1<<7))
	c.Assert(regs.Count, qt.Equals, uint32(8))
	c.Assert(tr.Remaining(), qt.Equals, 8)

	err := tr.Read(func([]byte) { c.Fatal("no half is ready") })
	c.Assert(err, qt.ErrorIs, dma.ErrWouldBlock)
	c.Assert(cb.State(), qt.Equals, dma.MutatingFirstHalf)
}

func TestCircAlternatingHalves(t *testing.T) {
	c := qt.New(t)
	backing := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	hw, d, cb, tr := startCirc(c, backing)

	var seen []dma.Half
	var data [][]byte
	peek := func() error {
		return tr.Peek(func(half []byte, h dma.Half) {
			seen = append(seen, h)
			data = append(data, append([]byte(nil), half...))
		})
	}

	for lap := 0; lap < 3; lap++ {
		hw.HalfTransfer(5)
		c.Assert(peek(), qt.IsNil)
		c.Assert(cb.State(), qt.Equals, dma.MutatingSecondHalf)
		c.Assert(peek(), qt.ErrorIs, dma.ErrWouldBlock)

		hw.TransferComplete(5)
		c.Assert(peek(), qt.IsNil)
		c.Assert(cb.State(), qt.Equals, dma.MutatingFirstHalf)
		c.Assert(peek(), qt.ErrorIs, dma.ErrWouldBlock)
	}

	c.Assert(seen, qt.DeepEquals, []dma.Half{dma.First, dma.Second, dma.First, dma.Second, dma.First, dma.Second})
	c.Assert(data[0], qt.DeepEquals, []byte{1, 2, 3, 4})
	c.Assert(data[1], qt.DeepEquals, []byte{5, 6, 7, 8})
	c.Assert(hw.Flags()&(0b110<<16), qt.Equals, uint32(0))

	st := d.Stats()
	c.Assert(st.Reads, qt.Equals, uint32(6))
	c.Assert(st.WouldBlock, qt.Equals, uint32(6))
	c.Assert(st.Overruns, qt.Equals, uint32(0))
}

func TestCircOverrunBeforeRead(t *testing.T) {
	c := qt.New(t)
	hw, d, cb, tr := startCirc(c, make([]byte, 4))

	// The engine wrapped around before the first half was consumed.
	hw.HalfTransfer(5)
	hw.TransferComplete(5)
	err := tr.Read(func([]byte) { c.Fatal("callback must not run") })
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)
	c.Assert(cb.State(), qt.Equals, dma.MutatingFirstHalf)
	c.Assert(d.Stats().Overruns, qt.Equals, uint32(1))
}

func TestCircRestartAfterOverrun(t *testing.T) {
	c := qt.New(t)
	hw, _, chans := setup(c)
	backing := []byte{1, 2, 3, 4}
	rx := dmatest.NewPeripheral(usartDR)
	tr, err := dma.StartCircRead(chans.Ch5, dma.NewCircBuffer(backing), rx)
	c.Assert(err, qt.IsNil)

	hw.HalfTransfer(5)
	hw.TransferComplete(5)
	for i := 0; i < 3; i++ {
		c.Assert(tr.Read(func([]byte) {}), qt.ErrorIs, dma.ErrOverrun)
	}
	// More data does not clear the condition.
	hw.HalfTransfer(5)
	c.Assert(tr.Read(func([]byte) {}), qt.ErrorIs, dma.ErrOverrun)

	ch, cb, p := tr.Stop()
	c.Assert(hw.Flags(), qt.Equals, uint32(0))
	tr, err = dma.StartCircRead(ch, cb, p)
	c.Assert(err, qt.IsNil)

	hw.HalfTransfer(5)
	err = tr.Read(func(half []byte) {
		c.Assert(half, qt.DeepEquals, []byte{1, 2})
	})
	c.Assert(err, qt.IsNil)
}

func TestCircOverrunSecondHalf(t *testing.T) {
	c := qt.New(t)
	hw, _, cb, tr := startCirc(c, make([]byte, 4))

	hw.HalfTransfer(5)
	c.Assert(tr.Read(func([]byte) {}), qt.IsNil)

	// Second half done and the first half done again.
	hw.TransferComplete(5)
	hw.HalfTransfer(5)
	err := tr.Read(func([]byte) { c.Fatal("callback must not run") })
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)
	c.Assert(cb.State(), qt.Equals, dma.MutatingSecondHalf)
}

func TestCircOverrunDuringRead(t *testing.T) {
	c := qt.New(t)
	hw, _, cb, tr := startCirc(c, []byte{1, 2, 3, 4})

	hw.HalfTransfer(5)
	called := false
	err := tr.Read(func(half []byte) {
		called = true
		c.Assert(half, qt.DeepEquals, []byte{1, 2})
		// The reader is slow: the engine finishes the second half meanwhile.
		hw.TransferComplete(5)
	})
	c.Assert(called, qt.IsTrue)
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)
	c.Assert(cb.State(), qt.Equals, dma.MutatingSecondHalf)

	// Mirror image on the second half.
	hw2, _, _, tr2 := startCirc(c, []byte{1, 2, 3, 4})
	hw2.HalfTransfer(5)
	c.Assert(tr2.Read(func([]byte) {}), qt.IsNil)
	hw2.TransferComplete(5)
	err = tr2.Read(func([]byte) { hw2.HalfTransfer(5) })
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)
}

func TestCircOverrunAfterPolls(t *testing.T) {
	c := qt.New(t)
	hw, _, _, tr := startCirc(c, make([]byte, 2))

	// Half transfer shows up on the first status read, transfer complete on
	// the second, which is the check after the callback.
	hw.After(1, 5, dma.HalfTransfer)
	hw.After(2, 5, dma.TransferComplete)
	calls := 0
	err := tr.Read(func([]byte) { calls++ })
	c.Assert(calls, qt.Equals, 1)
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)
}

func TestCircTransferError(t *testing.T) {
	c := qt.New(t)
	hw, d, _, tr := startCirc(c, make([]byte, 4))

	hw.HalfTransfer(5)
	hw.TransferError(5)
	err := tr.Read(func([]byte) { c.Fatal("callback must not run") })
	c.Assert(err, qt.ErrorIs, dma.ErrTransfer)

	hw2, _, _, tr2 := startCirc(c, make([]byte, 4))
	hw2.HalfTransfer(5)
	err = tr2.Read(func([]byte) { hw2.TransferError(5) })
	c.Assert(err, qt.ErrorIs, dma.ErrTransfer)

	c.Assert(d.Stats().TransferErrors, qt.Equals, uint32(1))
}

func TestCircMaxReadDuration(t *testing.T) {
	c := qt.New(t)
	hw, _, _, tr := startCirc(c, make([]byte, 4))
	tr.Configure(dma.CircConfig{MaxReadDuration: time.Millisecond})

	hw.HalfTransfer(5)
	err := tr.Read(func([]byte) { time.Sleep(5 * time.Millisecond) })
	c.Assert(err, qt.ErrorIs, dma.ErrOverrun)

	hw.TransferComplete(5)
	c.Assert(tr.Read(func([]byte) {}), qt.IsNil)
}

func TestCircPauseResume(t *testing.T) {
	c := qt.New(t)
	hw, _, cb, tr := startCirc(c, make([]byte, 4))

	hw.HalfTransfer(5)
	c.Assert(tr.Read(func([]byte) {}), qt.IsNil)

	tr.Pause()
	c.Assert(tr.Paused(), qt.IsTrue)
	c.Assert(hw.Enabled(5), qt.IsFalse)
	c.Assert(cb.State(), qt.Equals, dma.MutatingSecondHalf)
	before := hw.Snapshot(5)

	tr.Resume()
	c.Assert(tr.Paused(), qt.IsFalse)
	c.Assert(hw.Enabled(5), qt.IsTrue)
	after := hw.Snapshot(5)
	c.Assert(after.Count, qt.Equals, before.Count)
	c.Assert(after.Control, qt.Equals, before.Control|1)

	hw.TransferComplete(5)
	err := tr.Peek(func(_ []byte, h dma.Half) {
		c.Assert(h, qt.Equals, dma.Second)
	})
	c.Assert(err, qt.IsNil)
}

func TestCircPausedChannelStaysOwned(t *testing.T) {
	c := qt.New(t)
	hw, _, chans := setup(c)
	cb := dma.NewCircBuffer(make([]byte, 8))
	rx := dmatest.NewPeripheral(usartDR)
	tr, err := dma.StartCircRead(chans.Ch5, cb, rx)
	c.Assert(err, qt.IsNil)

	tr.Pause()
	c.Assert(hw.Enabled(5), qt.IsFalse)
	c.Assert(chans.Ch5.InUse(), qt.IsTrue)
	before := hw.Snapshot(5)

	buf := dma.NewBuffer([]byte{1, 2})
	_, err = dma.StartWrite(chans.Ch5, buf, dmatest.NewPeripheral(0x1234))
	c.Assert(err, qt.ErrorIs, dma.ErrInUse)
	_, err = dma.StartRead(chans.Ch5, buf, dmatest.NewPeripheral(0x1234))
	c.Assert(err, qt.ErrorIs, dma.ErrInUse)
	_, err = dma.StartCircRead(chans.Ch5, dma.NewCircBuffer(make([]byte, 2)), rx)
	c.Assert(err, qt.ErrorIs, dma.ErrInUse)
	c.Assert(hw.Snapshot(5), qt.DeepEquals, before)
	c.Assert(buf.State(), qt.Equals, dma.Unlocked)

	tr.Resume()
	after := hw.Snapshot(5)
	c.Assert(after.Control, qt.Equals, before.Control|1)
	c.Assert(after.PeripheralAddress, qt.Equals, before.PeripheralAddress)

	ch, _, _ := tr.Stop()
	c.Assert(ch.InUse(), qt.IsFalse)
	_, err = dma.StartWrite(ch, buf, dmatest.NewPeripheral(0x1234))
	c.Assert(err, qt.IsNil)
}

func TestCircStop(t *testing.T) {
	c := qt.New(t)
	hw, _, chans := setup(c)
	cb := dma.NewCircBuffer(make([]uint16, 16))
	adc := dmatest.NewPeripheral(0x4001_244c)
	tr, err := dma.StartCircRead(chans.Ch1, cb, adc)
	c.Assert(err, qt.IsNil)
	c.Assert(hw.Snapshot(1).Control&(0b1111<<8), qt.Equals, uint32(0b0101<<8))

	// Busy until stopped.
	_, err = dma.StartCircRead(chans.Ch1, dma.NewCircBuffer(make([]uint16, 2)), adc)
	c.Assert(err, qt.ErrorIs, dma.ErrInUse)

	hw.HalfTransfer(1)
	ch, gotCB, gotADC := tr.Stop()
	c.Assert(ch, qt.Equals, chans.Ch1)
	c.Assert(gotCB, qt.Equals, cb)
	c.Assert(gotADC, qt.Equals, adc)
	c.Assert(cb.State(), qt.Equals, dma.Free)
	c.Assert(hw.Enabled(1), qt.IsFalse)
	c.Assert(adc.DMAEnabled(), qt.IsFalse)
	c.Assert(hw.Flags(), qt.Equals, uint32(0))
	c.Assert(func() { tr.Read(func([]uint16) {}) }, qt.PanicMatches, "dma: use of a circular transfer after Stop")

	// The buffer can be streamed into again.
	tr, err = dma.StartCircRead(ch, cb, adc)
	c.Assert(err, qt.IsNil)
	c.Assert(cb.State(), qt.Equals, dma.MutatingFirstHalf)
}

func TestCircBufferInUse(t *testing.T) {
	c := qt.New(t)
	_, _, chans := setup(c)
	cb := dma.NewCircBuffer(make([]byte, 4))
	_, err := dma.StartCircRead(chans.Ch5, cb, dmatest.NewPeripheral(1))
	c.Assert(err, qt.IsNil)
	_, err = dma.StartCircRead(chans.Ch6, cb, dmatest.NewPeripheral(2))
	c.Assert(err, qt.ErrorIs, dma.ErrInUse)
}
