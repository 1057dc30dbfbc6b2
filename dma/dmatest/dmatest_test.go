package dmatest

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/ajanata/stm32f1dma/dma"
)

func TestRegisters(t *testing.T) {
	c := qt.New(t)
	hw := New()
	hw.SetPeripheralAddress(2, 0x4001_3804)
	hw.SetMemoryAddress(2, 0x2000_0000)
	hw.SetCount(2, 10)
	hw.SetControl(2, ccrEN|ccrCIRC)

	want := Channel{
		Control:           ccrEN | ccrCIRC,
		Count:             10,
		PeripheralAddress: 0x4001_3804,
		MemoryAddress:     0x2000_0000,
	}
	if diff := cmp.Diff(want, hw.Snapshot(3)); diff != "" {
		t.Errorf("unexpected registers (-want +got):\n%s", diff)
	}
	c.Assert(hw.Enabled(3), qt.IsTrue)

	// Count is read-only while the channel is enabled.
	hw.SetCount(2, 99)
	c.Assert(hw.Count(2), qt.Equals, uint32(10))

	hw.HalfTransfer(3)
	c.Assert(hw.Count(2), qt.Equals, uint32(5))
	hw.TransferComplete(3)
	c.Assert(hw.Count(2), qt.Equals, uint32(10)) // circular reload
	c.Assert(hw.Flags(), qt.Equals, uint32(0b0111<<8))

	hw.SetControl(2, 0)
	hw.SetCount(2, 4)
	hw.SetControl(2, ccrEN)
	hw.TransferComplete(3)
	c.Assert(hw.Count(2), qt.Equals, uint32(0))
}

func TestClear(t *testing.T) {
	c := qt.New(t)
	hw := New()
	hw.HalfTransfer(1)
	hw.TransferComplete(1)
	hw.TransferError(2)
	c.Assert(hw.Flags(), qt.Equals, uint32(0b1001_0111))

	hw.Clear(1 << 2) // HTIF1
	c.Assert(hw.Flags(), qt.Equals, uint32(0b1001_0011))

	hw.Clear(1 << 4) // CGIF2 clears everything of channel 2
	c.Assert(hw.Flags(), qt.Equals, uint32(0b0011))
}

func TestAfter(t *testing.T) {
	c := qt.New(t)
	hw := New()
	hw.After(2, 7, dma.TransferComplete)
	hw.After(2, 7, dma.HalfTransfer)
	hw.After(4, 1, dma.TransferError)

	c.Assert(hw.Pending(7), qt.DeepEquals, []dma.Event{dma.TransferComplete, dma.HalfTransfer})
	c.Assert(hw.Pending(1), qt.DeepEquals, []dma.Event{dma.TransferError})
	c.Assert(hw.Status(), qt.Equals, uint32(0))
	c.Assert(hw.Status(), qt.Equals, uint32(0b0111<<24))
	c.Assert(hw.Pending(7), qt.HasLen, 0)
	c.Assert(hw.Pending(1), qt.HasLen, 1)
	c.Assert(hw.Status(), qt.Equals, uint32(0b0111<<24))
	c.Assert(hw.Status(), qt.Equals, uint32(0b0111<<24|0b1001))
	c.Assert(hw.StatusReads(), qt.Equals, 4)
	// Flags does not count as a read.
	hw.Flags()
	c.Assert(hw.StatusReads(), qt.Equals, 4)
}

func TestPeripheral(t *testing.T) {
	c := qt.New(t)
	p := NewPeripheral(0x4000_4404)
	var _ dma.Payload = p
	c.Assert(p.Address(), qt.Equals, uintptr(0x4000_4404))
	p.EnableDMA()
	c.Assert(p.DMAEnabled(), qt.IsTrue)
	p.DisableDMA()
	c.Assert(p.DMAEnabled(), qt.IsFalse)
	c.Assert(p.Enables, qt.Equals, 1)
	c.Assert(p.Disables, qt.Equals, 1)
}

func TestUnknownChannel(t *testing.T) {
	c := qt.New(t)
	hw := New()
	c.Assert(func() { hw.TransferComplete(0) }, qt.PanicMatches, "dmatest: no channel 0")
	c.Assert(func() { hw.After(1, 8, dma.HalfTransfer) }, qt.PanicMatches, "dmatest: no channel 8")
}
