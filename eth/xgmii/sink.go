package xgmii

import (
	"log"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// Sink reassembles frames from an XGMII bus. Reception starts at a START
// control character in any lane and ends at the first control character
// after it; the received frame's Flags carry the control bit of every
// captured byte, so stray mid-frame control characters stay visible.
type Sink struct {
	ctx   model.SimContext
	label string

	data *bus.Signal
	ctrl *bus.Signal

	cycle     model.EventSource
	resetSig  *bus.Signal
	enableSig *bus.Signal

	queue *eth.RxQueue

	byteLanes int

	active bool
	kill   func()

	trace *component.TraceRecorder
}

// MakeSink builds and starts an XGMII receive model sampling on the rising
// edge of clock. The lane count follows the ctrl signal width; data must be
// eight times as wide. reset and enable may be nil.
func MakeSink(ctx model.SimContext, label string, data, ctrl, clock *bus.Signal,
	reset, enable *bus.Signal) *Sink {

	lanes := ctrl.Width()
	if data.Width() != lanes*8 {
		panic("XGMII data signal must be eight times as wide as the ctrl signal")
	}

	s := &Sink{
		ctx:       ctx,
		label:     label,
		data:      data,
		ctrl:      ctrl,
		cycle:     clock.Rising(),
		resetSig:  reset,
		enableSig: enable,
		queue:     eth.MakeRxQueue(ctx, label+"/Queue"),
		byteLanes: lanes,
		trace:     component.MakeNullTraceRecorder(),
	}

	if reset != nil {
		reset.Changed().Subscribe(func() {
			s.handleReset(reset.Bit())
		})
		s.handleReset(reset.Bit())
	} else {
		s.handleReset(false)
	}
	return s
}

// SetTrace routes frame events into a trace recorder.
func (s *Sink) SetTrace(rec *component.TraceRecorder) {
	s.trace = rec
}

// ByteLanes reports the lane group width in bytes.
func (s *Sink) ByteLanes() int {
	return s.byteLanes
}

// Queue returns the receive queue this engine fills.
func (s *Sink) Queue() *eth.RxQueue {
	return s.queue
}

// Recv blocks until a frame is available and returns it.
func (s *Sink) Recv(io *component.TwixtIO) *eth.Frame {
	return s.queue.Recv(io)
}

// RecvNowait returns the next received frame, or nil.
func (s *Sink) RecvNowait() *eth.Frame {
	return s.queue.RecvNowait()
}

// WaitFrame blocks until a frame is available or the timeout elapses, and
// reports whether one is available.
func (s *Sink) WaitFrame(io *component.TwixtIO, timeout model.VirtualTime) bool {
	return s.queue.Wait(io, timeout)
}

// Idle reports whether no frame is currently being received.
func (s *Sink) Idle() bool {
	return !s.active
}

// Clear discards every queued received frame.
func (s *Sink) Clear() {
	for s.queue.RecvNowait() != nil {
	}
}

// Restart discards any partial frame and starts the engine fresh, unless an
// external reset is currently holding it.
func (s *Sink) Restart() {
	s.handleReset(true)
	if s.resetSig == nil || !s.resetSig.Bit() {
		s.handleReset(false)
	}
}

func (s *Sink) handleReset(asserted bool) {
	if asserted {
		log.Printf("%v [%s] reset asserted", s.ctx.Now(), s.label)
		if s.kill != nil {
			s.kill()
			s.kill = nil
		}
		s.active = false
	} else {
		log.Printf("%v [%s] reset deasserted", s.ctx.Now(), s.label)
		if s.kill == nil {
			s.kill = component.BuildTwixt(s.ctx, nil, s.run)
		}
	}
}

func (s *Sink) run(io *component.TwixtIO) {
	var frame *eth.Frame
	s.active = false

	for {
		io.YieldWait(s.cycle)

		if s.enableSig != nil && !s.enableSig.Bit() {
			io.YieldWait(s.enableSig.Rising())
			continue
		}

		dBus := s.data.Peek()
		cBus := s.ctrl.Peek()

		for k := 0; k < s.byteLanes; k++ {
			d := byte(dBus >> (k * 8))
			c := byte(cBus>>k) & 1

			if frame == nil {
				if c != 0 && d == byte(eth.XgmiiStart) {
					// the START character replaces the first preamble byte
					frame = eth.MakeFrame([]byte{eth.EthPre})
					frame.Flags = []byte{0}
					frame.SimTimeStart = s.ctx.Now()
					frame.StartLane = k
					s.active = true
				}
			} else if c != 0 {
				// control character terminates reception; anything but TERM
				// is kept with its control bit set
				if d != byte(eth.XgmiiTerm) {
					frame.Data = append(frame.Data, d)
					frame.Flags = append(frame.Flags, c)
				}

				frame.Compact()
				frame.SimTimeEnd = s.ctx.Now()
				log.Printf("%v [%s] rx frame: %v", s.ctx.Now(), s.label, frame)
				s.trace.Record(s.label, "rx", frame.Data)
				s.queue.Push(frame)
				frame = nil
				s.active = false
			} else {
				if d == eth.EthSFD && !frame.SimTimeSFD.TimeExists() {
					frame.SimTimeSFD = s.ctx.Now()
					s.trace.Record(s.label, "sfd", nil)
				}
				frame.Data = append(frame.Data, d)
				frame.Flags = append(frame.Flags, c)
			}
		}
	}
}
