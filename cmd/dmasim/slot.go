package main

import (
	"errors"

	"github.com/ajanata/stm32f1dma/dma"
	"github.com/ajanata/stm32f1dma/dma/dmatest"
)

var errOwnership = errors.New("transfer handed back a different channel, buffer or payload")

// slot holds the token of one channel and starts transfers on it. The token
// types differ per channel, so the script dispatches through this interface.
type slot interface {
	number() int
	configure(cfg dma.ChannelConfig)
	listen(e dma.Event)
	startRead(buf *dma.Buffer[byte], p *dmatest.Peripheral) (oneShot, error)
	startWrite(buf *dma.Buffer[byte], p *dmatest.Peripheral) (oneShot, error)
	startCirc(cb *dma.CircBuffer[byte], p *dmatest.Peripheral) (stream, error)
}

type oneShot interface {
	poll() error
	remaining() int
	wait() (*dma.Buffer[byte], error)
}

type stream interface {
	configure(cfg dma.CircConfig)
	peek(f func(half []byte, h dma.Half)) error
	pause()
	resume()
	stop() (*dma.CircBuffer[byte], error)
}

type chanSlot[L dma.Line] struct {
	ch *dma.Channel[L]
}

func (s *chanSlot[L]) number() int                     { return s.ch.Number() }
func (s *chanSlot[L]) configure(cfg dma.ChannelConfig) { s.ch.Configure(cfg) }
func (s *chanSlot[L]) listen(e dma.Event)              { s.ch.Listen(e) }

func (s *chanSlot[L]) startRead(buf *dma.Buffer[byte], p *dmatest.Peripheral) (oneShot, error) {
	t, err := dma.StartRead(s.ch, buf, p)
	if err != nil {
		return nil, err
	}
	return &transfer[dma.Read, L]{t: t, slot: s, buf: buf, payload: p}, nil
}

func (s *chanSlot[L]) startWrite(buf *dma.Buffer[byte], p *dmatest.Peripheral) (oneShot, error) {
	t, err := dma.StartWrite(s.ch, buf, p)
	if err != nil {
		return nil, err
	}
	return &transfer[dma.Write, L]{t: t, slot: s, buf: buf, payload: p}, nil
}

func (s *chanSlot[L]) startCirc(cb *dma.CircBuffer[byte], p *dmatest.Peripheral) (stream, error) {
	t, err := dma.StartCircRead(s.ch, cb, p)
	if err != nil {
		return nil, err
	}
	return &circ[L]{t: t, slot: s, cb: cb, payload: p}, nil
}

type transfer[D dma.Direction, L dma.Line] struct {
	t       *dma.Transfer[D, L, byte, *dmatest.Peripheral]
	slot    *chanSlot[L]
	buf     *dma.Buffer[byte]
	payload *dmatest.Peripheral
}

func (t *transfer[D, L]) poll() error    { return t.t.Poll() }
func (t *transfer[D, L]) remaining() int { return t.t.Remaining() }

func (t *transfer[D, L]) wait() (*dma.Buffer[byte], error) {
	ch, buf, p, err := t.t.Wait()
	if ch != t.slot.ch || buf != t.buf || p != t.payload {
		return buf, errOwnership
	}
	return buf, err
}

type circ[L dma.Line] struct {
	t       *dma.CircTransfer[L, byte, *dmatest.Peripheral]
	slot    *chanSlot[L]
	cb      *dma.CircBuffer[byte]
	payload *dmatest.Peripheral
}

func (c *circ[L]) configure(cfg dma.CircConfig) { c.t.Configure(cfg) }
func (c *circ[L]) pause()                       { c.t.Pause() }
func (c *circ[L]) resume()                      { c.t.Resume() }

func (c *circ[L]) peek(f func(half []byte, h dma.Half)) error {
	return c.t.Peek(f)
}

func (c *circ[L]) stop() (*dma.CircBuffer[byte], error) {
	ch, cb, p := c.t.Stop()
	if ch != c.slot.ch || cb != c.cb || p != c.payload {
		return cb, errOwnership
	}
	return cb, nil
}

func slots(chans *dma.Channels) [dma.NumChannels]slot {
	return [dma.NumChannels]slot{
		&chanSlot[dma.Ch1]{chans.Ch1},
		&chanSlot[dma.Ch2]{chans.Ch2},
		&chanSlot[dma.Ch3]{chans.Ch3},
		&chanSlot[dma.Ch4]{chans.Ch4},
		&chanSlot[dma.Ch5]{chans.Ch5},
		&chanSlot[dma.Ch6]{chans.Ch6},
		&chanSlot[dma.Ch7]{chans.Ch7},
	}
}
