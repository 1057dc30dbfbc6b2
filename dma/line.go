package dma

// Line selects one of the seven channels of DMA1 at the type level. It is
// implemented by Ch1 to Ch7 only, so the status flag positions of a channel
// are fixed by its type and can never be taken from another channel.
type Line interface {
	index() uint8
}

// Channel lines of DMA1. Fixed request mapping on the STM32F103 (RM0008 table
// 78), for reference:
//
//	Ch1: ADC1, TIM2_CH3, TIM4_CH1
//	Ch2: SPI1_RX, USART3_TX, TIM1_CH1, TIM2_UP, TIM3_CH3
//	Ch3: SPI1_TX, USART3_RX, TIM1_CH2, TIM3_CH4, TIM3_UP
//	Ch4: SPI2_RX, USART1_TX, I2C2_TX, TIM1_CH4, TIM4_CH2
//	Ch5: SPI2_TX, USART1_RX, I2C2_RX, TIM1_UP, TIM2_CH1, TIM4_CH3
//	Ch6: USART2_RX, I2C1_TX, TIM1_CH3, TIM3_CH1
//	Ch7: USART2_TX, I2C1_RX, TIM2_CH2, TIM2_CH4, TIM4_UP
type (
	Ch1 struct{}
	Ch2 struct{}
	Ch3 struct{}
	Ch4 struct{}
	Ch5 struct{}
	Ch6 struct{}
	Ch7 struct{}
)

func (Ch1) index() uint8 { return 0 }
func (Ch2) index() uint8 { return 1 }
func (Ch3) index() uint8 { return 2 }
func (Ch4) index() uint8 { return 3 }
func (Ch5) index() uint8 { return 4 }
func (Ch6) index() uint8 { return 5 }
func (Ch7) index() uint8 { return 6 }

// NumChannels is the number of channels of DMA1.
const NumChannels = 7

// Interrupt status flags of channel index n. The clear register uses the same
// positions.
func flagGI(n uint8) uint32 { return 1 << (4 * n) }
func flagTC(n uint8) uint32 { return 1 << (4*n + 1) }
func flagHT(n uint8) uint32 { return 1 << (4*n + 2) }
func flagTE(n uint8) uint32 { return 1 << (4*n + 3) }

// flagsAll covers every flag of channel index n.
func flagsAll(n uint8) uint32 { return 0b1111 << (4 * n) }

// Event is a channel interrupt source.
type Event uint8

const (
	HalfTransfer Event = iota
	TransferComplete
	TransferError
)

func (e Event) enableBit() uint32 {
	switch e {
	case HalfTransfer:
		return ccrHTIE
	case TransferComplete:
		return ccrTCIE
	case TransferError:
		return ccrTEIE
	}
	return 0
}

// Priority is the software priority level of a channel. Ties are resolved in
// favour of the lower channel number.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
)
