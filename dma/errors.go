package dma

import "errors"

var (
	// ErrInUse is returned when a transfer is started on a channel that is
	// still held by a transfer, paused or not, or with a buffer that is already
	// owned by a transfer.
	ErrInUse = errors.New("dma: channel in use")

	// ErrOverrun is returned when the engine overwrote data before it could be
	// read. The stream is out of sync and should be stopped and restarted.
	ErrOverrun = errors.New("dma: overrun")

	// ErrTransfer is a bus error reported by the hardware. The channel must be
	// disabled and reconfigured.
	ErrTransfer = errors.New("dma: transfer error")

	// ErrWouldBlock means the operation has not finished yet. Try again later.
	ErrWouldBlock = errors.New("dma: would block")

	// ErrLength is returned for buffers the transfer count register cannot
	// describe.
	ErrLength = errors.New("dma: invalid buffer length")
)
