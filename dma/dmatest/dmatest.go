// Package dmatest is meant to be used to test drivers using the dma package
// without hardware.
//
// Controller simulates the DMA1 register bank: it keeps the control, count and
// address registers written by the driver and raises status flags when the
// test says so, either immediately or after a number of status reads.
package dmatest

import (
	"fmt"
	"sync"

	"github.com/ajanata/stm32f1dma/dma"
)

const (
	ccrEN   = 1 << 0
	ccrCIRC = 1 << 5
)

// Channel is a snapshot of the registers of one channel.
type Channel struct {
	Control           uint32
	Count             uint32
	PeripheralAddress uintptr
	MemoryAddress     uintptr
}

type event struct {
	at    int
	n     int
	event dma.Event
}

// Controller implements dma.Registers.
//
// It is safe to raise events from another goroutine while a driver polls.
type Controller struct {
	mu      sync.Mutex
	isr     uint32
	ch      [dma.NumChannels]Channel
	reload  [dma.NumChannels]uint32
	reads   int
	pending []event
}

// New returns a controller with all channels disabled and no flag set.
func New() *Controller {
	return &Controller{}
}

// Status implements dma.Registers. Every call counts as one poll and fires
// the events scheduled for it.
func (c *Controller) Status() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	kept := c.pending[:0]
	for _, e := range c.pending {
		if e.at <= c.reads {
			c.raiseLocked(e.n, e.event)
		} else {
			kept = append(kept, e)
		}
	}
	c.pending = kept
	return c.isr
}

// Clear implements dma.Registers. Clearing the global flag of a channel
// clears all of its flags.
func (c *Controller) Clear(mask uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < dma.NumChannels; i++ {
		if mask&(1<<(4*i)) != 0 {
			mask |= 0b1111 << (4 * i)
		}
	}
	c.isr &^= mask
}

// Control implements dma.Registers.
func (c *Controller) Control(ch uint8) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch[ch].Control
}

// SetControl implements dma.Registers.
func (c *Controller) SetControl(ch uint8, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ch[ch].Control = v
}

// Count implements dma.Registers.
func (c *Controller) Count(ch uint8) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch[ch].Count
}

// SetCount implements dma.Registers. Like the hardware, the count can only be
// written while the channel is disabled.
func (c *Controller) SetCount(ch uint8, n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch[ch].Control&ccrEN != 0 {
		return
	}
	c.ch[ch].Count = n
	c.reload[ch] = n
}

// SetPeripheralAddress implements dma.Registers.
func (c *Controller) SetPeripheralAddress(ch uint8, addr uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ch[ch].PeripheralAddress = addr
}

// SetMemoryAddress implements dma.Registers.
func (c *Controller) SetMemoryAddress(ch uint8, addr uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ch[ch].MemoryAddress = addr
}

// HalfTransfer raises the half-transfer flag of channel n (1 to 7).
func (c *Controller) HalfTransfer(n int) {
	c.Raise(n, dma.HalfTransfer)
}

// TransferComplete raises the transfer-complete flag of channel n.
func (c *Controller) TransferComplete(n int) {
	c.Raise(n, dma.TransferComplete)
}

// TransferError raises the transfer-error flag of channel n.
func (c *Controller) TransferError(n int) {
	c.Raise(n, dma.TransferError)
}

// Raise raises the flag of event e on channel n and updates the count
// register the way the engine would.
func (c *Controller) Raise(n int, e dma.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raiseLocked(n, e)
}

// After raises the flag of event e on channel n during the polls-th status
// read from now. After(1, ...) fires on the next read.
func (c *Controller) After(polls, n int, e dma.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mustChannel(n)
	c.pending = append(c.pending, event{at: c.reads + polls, n: n, event: e})
}

func (c *Controller) raiseLocked(n int, e dma.Event) {
	i := mustChannel(n)
	ch := &c.ch[i]
	gi := uint32(1) << (4 * i)
	switch e {
	case dma.TransferComplete:
		c.isr |= gi | gi<<1
		if ch.Control&ccrCIRC != 0 {
			ch.Count = c.reload[i]
		} else {
			ch.Count = 0
		}
	case dma.HalfTransfer:
		c.isr |= gi | gi<<2
		ch.Count = c.reload[i] / 2
	case dma.TransferError:
		c.isr |= gi | gi<<3
	}
}

// Pending returns the events scheduled on channel n that have not fired yet,
// in the order they were scheduled.
func (c *Controller) Pending(n int) []dma.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	mustChannel(n)
	var events []dma.Event
	for _, e := range c.pending {
		if e.n == n {
			events = append(events, e.event)
		}
	}
	return events
}

// StatusReads returns the number of status register reads so far.
func (c *Controller) StatusReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Flags returns the status register without counting a read.
func (c *Controller) Flags() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isr
}

// Enabled reports whether channel n is enabled.
func (c *Controller) Enabled(n int) bool {
	return c.Snapshot(n).Control&ccrEN != 0
}

// Snapshot returns the registers of channel n.
func (c *Controller) Snapshot(n int) Channel {
	i := mustChannel(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch[i]
}

func mustChannel(n int) int {
	if n < 1 || n > dma.NumChannels {
		panic(fmt.Sprintf("dmatest: no channel %d", n))
	}
	return n - 1
}

// Peripheral is a payload that records how its DMA request line is used.
type Peripheral struct {
	Addr     uintptr
	enabled  bool
	Enables  int
	Disables int
}

var _ dma.Payload = (*Peripheral)(nil)

// NewPeripheral returns a payload whose data register lives at addr.
func NewPeripheral(addr uintptr) *Peripheral {
	return &Peripheral{Addr: addr}
}

// Address implements dma.Payload.
func (p *Peripheral) Address() uintptr { return p.Addr }

// EnableDMA implements dma.Payload.
func (p *Peripheral) EnableDMA() {
	p.enabled = true
	p.Enables++
}

// DisableDMA implements dma.Payload.
func (p *Peripheral) DisableDMA() {
	p.enabled = false
	p.Disables++
}

// DMAEnabled reports whether the request line is enabled.
func (p *Peripheral) DMAEnabled() bool {
	return p.enabled
}
