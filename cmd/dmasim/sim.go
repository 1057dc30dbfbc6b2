package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/ajanata/stm32f1dma/dma"
	"github.com/ajanata/stm32f1dma/dma/dmatest"
)

// Fake data registers are spread over the APB2 range, one per channel.
const fakePeripheralBase = 0x4001_3000

type pendingOneShot struct {
	t       oneShot
	backing []byte
	rx      bool
}

type pendingStream struct {
	s       stream
	backing []byte
}

type sim struct {
	hw       *dmatest.Controller
	dma      *dma.DMA
	slots    [dma.NumChannels]slot
	oneShots map[int]*pendingOneShot
	streams  map[int]*pendingStream
	rep      Reporter
	line     int
	last     string
}

func newSim(rep Reporter) (*sim, error) {
	hw := dmatest.New()
	d := dma.New(hw)
	chans, err := d.Split()
	if err != nil {
		return nil, err
	}
	return &sim{
		hw:       hw,
		dma:      d,
		slots:    slots(chans),
		oneShots: make(map[int]*pendingOneShot),
		streams:  make(map[int]*pendingStream),
		rep:      rep,
	}, nil
}

// run executes a script read from r. DMA errors are results and are reported;
// malformed commands stop the script with an error.
func run(r io.Reader, rep Reporter) error {
	s, err := newSim(rep)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.line++
		args, err := shlex.Split(sc.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", s.line, err)
		}
		if len(args) == 0 {
			continue
		}
		if err := s.exec(args); err != nil {
			return fmt.Errorf("line %d: %s: %w", s.line, args[0], err)
		}
	}
	return sc.Err()
}

func (s *sim) report(e Event) error {
	e.Line = s.line
	s.last = e.Result
	return s.rep.Report(e)
}

func (s *sim) exec(args []string) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "expect":
		want := strings.Join(args, " ")
		if s.last != want {
			return fmt.Errorf("got %q, want %q", s.last, want)
		}
		return nil
	case "stats":
		st := s.dma.Stats()
		return s.report(Event{
			Command: cmd,
			Result: fmt.Sprintf("starts=%d completions=%d polls=%d reads=%d wouldblock=%d overruns=%d errors=%d",
				st.Starts, st.Completions, st.Polls, st.Reads, st.WouldBlock, st.Overruns, st.TransferErrors),
		})
	case "after":
		if len(args) != 3 {
			return errors.New("usage: after <polls> <half|complete|error> <channel>")
		}
		polls, err := strconv.Atoi(args[0])
		if err != nil || polls < 1 {
			return fmt.Errorf("invalid poll count %q", args[0])
		}
		e, err := parseEvent(args[1])
		if err != nil {
			return err
		}
		n, err := parseChannel(args[2])
		if err != nil {
			return err
		}
		s.hw.After(polls, n, e)
		return nil
	}

	if _, ok := channelCommands[cmd]; !ok {
		return errors.New("unknown command")
	}
	if len(args) == 0 {
		return errors.New("missing channel")
	}
	n, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	args = args[1:]
	sl := s.slots[n-1]
	ev := Event{Command: cmd, Channel: sl.number()}

	switch cmd {
	case "half", "complete", "error":
		e, _ := parseEvent(cmd)
		s.hw.Raise(n, e)
		return nil

	case "priority":
		if len(args) != 1 {
			return errors.New("usage: priority <channel> <low|medium|high|veryhigh>")
		}
		p, err := parsePriority(args[0])
		if err != nil {
			return err
		}
		sl.configure(dma.ChannelConfig{Priority: p})
		return nil

	case "listen":
		if len(args) != 1 {
			return errors.New("usage: listen <channel> <half|complete|error>")
		}
		e, err := parseEvent(args[0])
		if err != nil {
			return err
		}
		sl.listen(e)
		return nil

	case "tx", "rx":
		var backing []byte
		if cmd == "tx" {
			backing, err = parseBytes(args)
		} else {
			backing, err = parseLen(args)
		}
		if err != nil {
			return err
		}
		buf := dma.NewBuffer(backing)
		p := dmatest.NewPeripheral(fakePeripheralBase + uintptr(n)*0x100)
		var t oneShot
		if cmd == "tx" {
			t, err = sl.startWrite(buf, p)
		} else {
			t, err = sl.startRead(buf, p)
		}
		if err == nil {
			s.oneShots[n] = &pendingOneShot{t: t, backing: backing, rx: cmd == "rx"}
		}
		ev.Result = result(err)
		return s.report(ev)

	case "deliver":
		o, ok := s.oneShots[n]
		if !ok || !o.rx {
			return fmt.Errorf("no read in flight on channel %d", n)
		}
		data, err := parseBytes(args)
		if err != nil {
			return err
		}
		// Stands in for the engine writing into the locked buffer.
		copy(o.backing, data)
		return nil

	case "poll":
		o, ok := s.oneShots[n]
		if !ok {
			return fmt.Errorf("no transfer on channel %d", n)
		}
		err := o.t.poll()
		ev.Result = result(err)
		ev.Data = strconv.Itoa(o.t.remaining())
		return s.report(ev)

	case "wait":
		o, ok := s.oneShots[n]
		if !ok {
			return fmt.Errorf("no transfer on channel %d", n)
		}
		if !s.settles(n) {
			return fmt.Errorf("channel %d never completes: raise complete or error first", n)
		}
		buf, err := o.t.wait()
		delete(s.oneShots, n)
		ev.Result = result(err)
		buf.Borrow(func(data []byte) {
			ev.Data = hex.EncodeToString(data)
		})
		return s.report(ev)

	case "circ":
		backing, err := parseLen(args)
		if err != nil {
			return err
		}
		if len(backing) == 0 || len(backing)%2 != 0 {
			return fmt.Errorf("circular buffer length must be even and non-zero, got %d", len(backing))
		}
		cb := dma.NewCircBuffer(backing)
		st, err := sl.startCirc(cb, dmatest.NewPeripheral(fakePeripheralBase+uintptr(n)*0x100))
		if err == nil {
			s.streams[n] = &pendingStream{s: st, backing: backing}
		}
		ev.Result = result(err)
		return s.report(ev)
	}

	st, ok := s.streams[n]
	if !ok {
		return fmt.Errorf("no circular transfer on channel %d", n)
	}
	switch cmd {
	case "fill":
		if len(args) < 1 {
			return errors.New("usage: fill <channel> <first|second> [bytes...]")
		}
		data, err := parseBytes(args[1:])
		if err != nil {
			return err
		}
		half := len(st.backing) / 2
		switch args[0] {
		case "first":
			copy(st.backing[:half], data)
		case "second":
			copy(st.backing[half:], data)
		default:
			return fmt.Errorf("unknown half %q", args[0])
		}
		return nil

	case "maxread":
		if len(args) != 1 {
			return errors.New("usage: maxread <channel> <duration>")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		st.s.configure(dma.CircConfig{MaxReadDuration: d})
		return nil

	case "read":
		err := st.s.peek(func(half []byte, h dma.Half) {
			ev.Half = strings.ToLower(h.String())
			ev.Data = hex.EncodeToString(half)
		})
		ev.Result = result(err)
		return s.report(ev)

	case "pause":
		st.s.pause()
		return nil

	case "resume":
		st.s.resume()
		return nil

	case "stop":
		_, err := st.s.stop()
		delete(s.streams, n)
		ev.Result = result(err)
		return s.report(ev)
	}
	return errors.New("unknown command")
}

// Commands taking a channel number as their first argument.
var channelCommands = map[string]struct{}{
	"half": {}, "complete": {}, "error": {},
	"priority": {}, "listen": {},
	"tx": {}, "rx": {}, "deliver": {}, "poll": {}, "wait": {},
	"circ": {}, "fill": {}, "maxread": {}, "read": {}, "pause": {}, "resume": {}, "stop": {},
}

// settles reports whether a wait on channel n can return.
func (s *sim) settles(n int) bool {
	i := uint(n - 1)
	tcOrTE := uint32(1)<<(4*i+1) | uint32(1)<<(4*i+3)
	if s.hw.Flags()&tcOrTE != 0 {
		return true
	}
	for _, e := range s.hw.Pending(n) {
		if e != dma.HalfTransfer {
			return true
		}
	}
	return false
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dma.ErrWouldBlock):
		return "would block"
	case errors.Is(err, dma.ErrOverrun):
		return "overrun"
	case errors.Is(err, dma.ErrTransfer):
		return "transfer error"
	case errors.Is(err, dma.ErrInUse):
		return "in use"
	case errors.Is(err, dma.ErrLength):
		return "invalid length"
	case errors.Is(err, errOwnership):
		return "ownership violation"
	}
	return err.Error()
}

func parseChannel(tok string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(tok, "ch"))
	if err != nil || n < 1 || n > dma.NumChannels {
		return 0, fmt.Errorf("invalid channel %q", tok)
	}
	return n, nil
}

func parseEvent(tok string) (dma.Event, error) {
	switch tok {
	case "half":
		return dma.HalfTransfer, nil
	case "complete":
		return dma.TransferComplete, nil
	case "error":
		return dma.TransferError, nil
	}
	return 0, fmt.Errorf("unknown event %q", tok)
}

func parsePriority(tok string) (dma.Priority, error) {
	switch tok {
	case "low":
		return dma.PriorityLow, nil
	case "medium":
		return dma.PriorityMedium, nil
	case "high":
		return dma.PriorityHigh, nil
	case "veryhigh":
		return dma.PriorityVeryHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", tok)
}

func parseLen(args []string) ([]byte, error) {
	if len(args) != 1 {
		return nil, errors.New("expected a length")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid length %q", args[0])
	}
	return make([]byte, n), nil
}

// parseBytes parses hex bytes, with or without 0x prefix.
func parseBytes(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, tok := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(tok), "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", tok)
		}
		data = append(data, byte(v))
	}
	return data, nil
}
