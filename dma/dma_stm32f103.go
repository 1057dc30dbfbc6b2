//go:build stm32f103

package dma

import (
	"device/stm32"
	"runtime/volatile"
	"unsafe"
)

// Single DMA1 channel. See RM0008 section 13.4.
type channelHW struct {
	CCR   volatile.Register32
	CNDTR volatile.Register32
	CPAR  volatile.Register32
	CMAR  volatile.Register32
	_     volatile.Register32 // reserved
}

type dmaHW struct {
	ISR  volatile.Register32
	IFCR volatile.Register32
	CH   [NumChannels]channelHW
}

type hardware struct {
	hw *dmaHW
}

// DMA1 is the DMA1 controller. Call Split once to get its channels.
var DMA1 = New(hardware{hw: (*dmaHW)(unsafe.Pointer(stm32.DMA1))})

func init() {
	stm32.RCC.AHBENR.SetBits(stm32.RCC_AHBENR_DMA1EN)
}

func (h hardware) Status() uint32          { return h.hw.ISR.Get() }
func (h hardware) Clear(mask uint32)       { h.hw.IFCR.Set(mask) }
func (h hardware) Control(ch uint8) uint32 { return h.hw.CH[ch].CCR.Get() }

func (h hardware) SetControl(ch uint8, v uint32) {
	h.hw.CH[ch].CCR.Set(v)
}

func (h hardware) Count(ch uint8) uint32 {
	return h.hw.CH[ch].CNDTR.Get()
}

func (h hardware) SetCount(ch uint8, n uint32) {
	h.hw.CH[ch].CNDTR.Set(n)
}

func (h hardware) SetPeripheralAddress(ch uint8, addr uintptr) {
	h.hw.CH[ch].CPAR.Set(uint32(addr))
}

func (h hardware) SetMemoryAddress(ch uint8, addr uintptr) {
	h.hw.CH[ch].CMAR.Set(uint32(addr))
}
