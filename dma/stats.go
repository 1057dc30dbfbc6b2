package dma

import "sync/atomic"

// Stats holds counters since the controller was created or last reset.
type Stats struct {
	Starts      uint32 // one-shot and circular transfers started
	Completions uint32 // one-shot transfers handed back by Wait
	Polls       uint32 // status checks made by Wait
	Reads       uint32 // circular halves handed to a callback
	WouldBlock  uint32 // circular reads with no half ready

	Overruns       uint32
	TransferErrors uint32
}

// Stats returns a copy of the counters. 32-bit atomic loads are fine on
// Cortex-M3.
func (d *DMA) Stats() Stats {
	return Stats{
		Starts:         atomic.LoadUint32(&d.stats.Starts),
		Completions:    atomic.LoadUint32(&d.stats.Completions),
		Polls:          atomic.LoadUint32(&d.stats.Polls),
		Reads:          atomic.LoadUint32(&d.stats.Reads),
		WouldBlock:     atomic.LoadUint32(&d.stats.WouldBlock),
		Overruns:       atomic.LoadUint32(&d.stats.Overruns),
		TransferErrors: atomic.LoadUint32(&d.stats.TransferErrors),
	}
}

// ResetStats zeroes all counters.
func (d *DMA) ResetStats() {
	atomic.StoreUint32(&d.stats.Starts, 0)
	atomic.StoreUint32(&d.stats.Completions, 0)
	atomic.StoreUint32(&d.stats.Polls, 0)
	atomic.StoreUint32(&d.stats.Reads, 0)
	atomic.StoreUint32(&d.stats.WouldBlock, 0)
	atomic.StoreUint32(&d.stats.Overruns, 0)
	atomic.StoreUint32(&d.stats.TransferErrors, 0)
}

func count(c *uint32) {
	atomic.AddUint32(c, 1)
}

// countErr attributes a terminal error to its counter.
func (d *DMA) countErr(err error) {
	switch err {
	case ErrOverrun:
		count(&d.stats.Overruns)
	case ErrTransfer:
		count(&d.stats.TransferErrors)
	case ErrWouldBlock:
		count(&d.stats.WouldBlock)
	}
}
