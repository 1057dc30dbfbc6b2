// Package dma implements transfers on the DMA1 controller of the STM32F1
// family, with ownership tracking of the memory shared by the CPU and the DMA
// engine.
//
// The controller is split once into seven channel tokens. Starting a transfer
// moves a channel, a buffer and the peripheral driver (the payload) into a
// Transfer or CircTransfer; they are only handed back after the hardware
// reported completion. While a transfer runs the buffer is locked and any
// conflicting borrow panics.
//
// Reference manual: https://www.st.com/resource/en/reference_manual/rm0008.pdf
package dma

import "errors"

// DMA is one DMA controller.
type DMA struct {
	regs  Registers
	split bool
	stats Stats
}

// Channels holds the channel tokens of DMA1.
type Channels struct {
	Ch1 *Channel[Ch1]
	Ch2 *Channel[Ch2]
	Ch3 *Channel[Ch3]
	Ch4 *Channel[Ch4]
	Ch5 *Channel[Ch5]
	Ch6 *Channel[Ch6]
	Ch7 *Channel[Ch7]
}

// New creates a controller on the given register bank. Clocking the
// controller is up to the caller.
func New(regs Registers) *DMA {
	return &DMA{regs: regs}
}

// Split hands out the channel tokens. It can only be called once; whoever
// holds a token is the only code that may program that channel.
func (d *DMA) Split() (*Channels, error) {
	if d.split {
		return nil, errors.New("dma: controller already split")
	}
	d.split = true
	return &Channels{
		Ch1: newChannel[Ch1](d),
		Ch2: newChannel[Ch2](d),
		Ch3: newChannel[Ch3](d),
		Ch4: newChannel[Ch4](d),
		Ch5: newChannel[Ch5](d),
		Ch6: newChannel[Ch6](d),
		Ch7: newChannel[Ch7](d),
	}, nil
}
