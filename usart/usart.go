//go:build stm32f103

// Package usart adapts the USART peripherals of the STM32F103 for use as DMA
// payloads. Each transmitter and receiver is typed with the DMA1 channel its
// request line is wired to, so it cannot be used with any other channel.
//
// Baud rate, pins and framing are configured with machine.UART as usual; this
// package only touches the data register and the DMA request bits.
package usart

import (
	"device/stm32"
	"unsafe"

	"github.com/ajanata/stm32f1dma/dma"
)

// Tx is the transmit side of a USART.
type Tx[L dma.Line] struct {
	bus *stm32.USART_Type
}

// Rx is the receive side of a USART.
type Rx[L dma.Line] struct {
	bus *stm32.USART_Type
}

// USART1 returns the halves of USART1 (TX on channel 4, RX on channel 5).
func USART1() (Tx[dma.Ch4], Rx[dma.Ch5]) {
	return Tx[dma.Ch4]{stm32.USART1}, Rx[dma.Ch5]{stm32.USART1}
}

// USART2 returns the halves of USART2 (TX on channel 7, RX on channel 6).
func USART2() (Tx[dma.Ch7], Rx[dma.Ch6]) {
	return Tx[dma.Ch7]{stm32.USART2}, Rx[dma.Ch6]{stm32.USART2}
}

// USART3 returns the halves of USART3 (TX on channel 2, RX on channel 3).
func USART3() (Tx[dma.Ch2], Rx[dma.Ch3]) {
	return Tx[dma.Ch2]{stm32.USART3}, Rx[dma.Ch3]{stm32.USART3}
}

func (tx Tx[L]) Address() uintptr { return uintptr(unsafe.Pointer(&tx.bus.DR.Reg)) }
func (tx Tx[L]) EnableDMA()       { tx.bus.CR3.SetBits(stm32.USART_CR3_DMAT) }
func (tx Tx[L]) DisableDMA()      { tx.bus.CR3.ClearBits(stm32.USART_CR3_DMAT) }

func (rx Rx[L]) Address() uintptr { return uintptr(unsafe.Pointer(&rx.bus.DR.Reg)) }
func (rx Rx[L]) EnableDMA()       { rx.bus.CR3.SetBits(stm32.USART_CR3_DMAR) }
func (rx Rx[L]) DisableDMA()      { rx.bus.CR3.ClearBits(stm32.USART_CR3_DMAR) }

// WriteAll sends the contents of buf.
func WriteAll[L dma.Line](ch *dma.Channel[L], buf *dma.Buffer[byte], tx Tx[L]) (*dma.Transfer[dma.Write, L, byte, Tx[L]], error) {
	return dma.StartWrite(ch, buf, tx)
}

// ReadExact receives exactly buf.Len() bytes.
func ReadExact[L dma.Line](ch *dma.Channel[L], buf *dma.Buffer[byte], rx Rx[L]) (*dma.Transfer[dma.Read, L, byte, Rx[L]], error) {
	return dma.StartRead(ch, buf, rx)
}

// CircRead receives bytes into cb continuously.
func CircRead[L dma.Line](ch *dma.Channel[L], cb *dma.CircBuffer[byte], rx Rx[L]) (*dma.CircTransfer[L, byte, Rx[L]], error) {
	return dma.StartCircRead(ch, cb, rx)
}
