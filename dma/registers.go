package dma

// Registers is the register contract of one DMA controller with
// flag-per-channel status. Channel indexes are 0-based.
//
// The status and clear registers are shared by all channels. Clear uses
// write-one-to-clear semantics.
type Registers interface {
	Status() uint32
	Clear(mask uint32)

	Control(ch uint8) uint32
	SetControl(ch uint8, v uint32)

	Count(ch uint8) uint32
	SetCount(ch uint8, n uint32)

	SetPeripheralAddress(ch uint8, addr uintptr)
	SetMemoryAddress(ch uint8, addr uintptr)
}

// Channel control register bit positions. See RM0008 section 13.4.3.
const (
	ccrEN_Pos      = 0
	ccrTCIE_Pos    = 1
	ccrHTIE_Pos    = 2
	ccrTEIE_Pos    = 3
	ccrDIR_Pos     = 4
	ccrCIRC_Pos    = 5
	ccrPINC_Pos    = 6
	ccrMINC_Pos    = 7
	ccrPSIZE_Pos   = 8
	ccrMSIZE_Pos   = 10
	ccrPL_Pos      = 12
	ccrMEM2MEM_Pos = 14

	ccrPSIZE_Msk = 0b11 << ccrPSIZE_Pos
	ccrMSIZE_Msk = 0b11 << ccrMSIZE_Pos
	ccrPL_Msk    = 0b11 << ccrPL_Pos

	ccrEN   = 1 << ccrEN_Pos
	ccrTCIE = 1 << ccrTCIE_Pos
	ccrHTIE = 1 << ccrHTIE_Pos
	ccrTEIE = 1 << ccrTEIE_Pos

	ccrIRQ_Msk = ccrTCIE | ccrHTIE | ccrTEIE
)

// Maximum value of the 16 bit transfer count register.
const maxCount = 0xffff

type itemSize uint32

const (
	itemSize8 itemSize = iota
	itemSize16
	itemSize32
)

// channelConfig is the value of a channel control register under
// construction.
type channelConfig struct {
	CCR uint32
}

func (cc *channelConfig) setEnable(enable bool) {
	setBitPos(&cc.CCR, ccrEN_Pos, enable)
}

func (cc *channelConfig) setFromMemory(fromMemory bool) {
	setBitPos(&cc.CCR, ccrDIR_Pos, fromMemory)
}

func (cc *channelConfig) setCircular(circ bool) {
	setBitPos(&cc.CCR, ccrCIRC_Pos, circ)
}

func (cc *channelConfig) setPeripheralIncrement(incr bool) {
	setBitPos(&cc.CCR, ccrPINC_Pos, incr)
}

func (cc *channelConfig) setMemoryIncrement(incr bool) {
	setBitPos(&cc.CCR, ccrMINC_Pos, incr)
}

func (cc *channelConfig) setMemToMem(m2m bool) {
	setBitPos(&cc.CCR, ccrMEM2MEM_Pos, m2m)
}

// setItemSize sets both the memory and the peripheral item width. Payloads
// move items of the same width as the buffer elements.
func (cc *channelConfig) setItemSize(size itemSize) {
	cc.CCR = (cc.CCR &^ (ccrPSIZE_Msk | ccrMSIZE_Msk)) |
		uint32(size)<<ccrPSIZE_Pos |
		uint32(size)<<ccrMSIZE_Pos
}

func (cc *channelConfig) setPriority(p Priority) {
	cc.CCR = (cc.CCR &^ ccrPL_Msk) | (uint32(p)&0b11)<<ccrPL_Pos
}

func (cc *channelConfig) setInterrupts(mask uint32) {
	cc.CCR = (cc.CCR &^ ccrIRQ_Msk) | (mask & ccrIRQ_Msk)
}

func setBitPos(cc *uint32, pos uint32, bit bool) {
	if bit {
		*cc = *cc | (1 << pos)
	} else {
		*cc = *cc & ^(1 << pos) // unset bit.
	}
}
