package dma

// Channel is the token for one DMA channel. The line type L fixes the channel
// number and with it the positions of its status flags.
type Channel[L Line] struct {
	dma      *DMA
	priority Priority
	irq      uint32 // interrupt enable bits kept across transfers
	owned    bool   // a Transfer or CircTransfer holds the channel
}

// ChannelConfig holds the settings applied to every transfer started on a
// channel.
type ChannelConfig struct {
	Priority Priority
}

func newChannel[L Line](d *DMA) *Channel[L] {
	return &Channel[L]{dma: d}
}

func (c *Channel[L]) index() uint8 {
	var l L
	return l.index()
}

// Number returns the channel number as printed in the reference manual, 1 to
// 7.
func (c *Channel[L]) Number() int {
	return int(c.index()) + 1
}

// Configure sets the priority of subsequent transfers.
func (c *Channel[L]) Configure(cfg ChannelConfig) {
	c.priority = cfg.Priority
}

// Listen enables the interrupt for event e. It takes effect immediately when a
// transfer is running and is kept for later transfers.
func (c *Channel[L]) Listen(e Event) {
	c.irq |= e.enableBit()
	c.updateIRQ()
}

// Unlisten disables the interrupt for event e.
func (c *Channel[L]) Unlisten(e Event) {
	c.irq &^= e.enableBit()
	c.updateIRQ()
}

func (c *Channel[L]) updateIRQ() {
	regs := c.dma.regs
	n := c.index()
	cc := channelConfig{CCR: regs.Control(n)}
	cc.setInterrupts(c.irq)
	regs.SetControl(n, cc.CCR)
}

// InUse reports whether a transfer holds the channel or its enable bit is
// set. A paused circular transfer still holds it.
func (c *Channel[L]) InUse() bool {
	return c.owned || c.dma.regs.Control(c.index())&ccrEN != 0
}

// Remaining returns the number of items left to transfer.
func (c *Channel[L]) Remaining() int {
	return int(c.dma.regs.Count(c.index()) & maxCount)
}

// status reads the shared status register and extracts this channel's flags.
func (c *Channel[L]) status() (te, ht, tc bool) {
	n := c.index()
	isr := c.dma.regs.Status()
	return isr&flagTE(n) != 0, isr&flagHT(n) != 0, isr&flagTC(n) != 0
}

func (c *Channel[L]) clear(mask uint32) {
	c.dma.regs.Clear(mask)
}

// program writes addresses, count and control word with the channel disabled.
func (c *Channel[L]) program(periph, mem uintptr, count int, cc channelConfig) {
	regs := c.dma.regs
	n := c.index()

	regs.SetControl(n, 0)
	c.clear(flagsAll(n))
	regs.SetPeripheralAddress(n, periph)
	regs.SetMemoryAddress(n, mem)
	regs.SetCount(n, uint32(count))

	cc.setPriority(c.priority)
	cc.setInterrupts(c.irq)
	cc.setPeripheralIncrement(false)
	cc.setMemoryIncrement(true)
	cc.setMemToMem(false)
	cc.setEnable(false)
	regs.SetControl(n, cc.CCR)
}

func (c *Channel[L]) setEnable(enable bool) {
	regs := c.dma.regs
	n := c.index()
	cc := channelConfig{CCR: regs.Control(n)}
	cc.setEnable(enable)
	regs.SetControl(n, cc.CCR)
}
