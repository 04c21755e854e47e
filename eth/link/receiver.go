package link

import (
	"log"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// Receiver samples a bus codec once per clock cycle, accumulates transfer
// values while the valid signal is asserted, and folds them into a frame
// when it deasserts. Completed frames land in the receive queue. A reset
// discards any partial frame; a deasserted enable pauses sampling without
// discarding.
type Receiver struct {
	ctx   model.SimContext
	label string
	codec RxBus
	queue *eth.RxQueue

	cycle     model.EventSource
	resetSig  *bus.Signal
	enableSig *bus.Signal

	divider  int
	divCount int

	active bool
	kill   func()

	trace *component.TraceRecorder
}

// MakeReceiver wires a receive engine to a codec and starts it, unless
// resetSig is currently asserted. cycle is the clock event the engine
// samples on; resetSig and enableSig may be nil.
func MakeReceiver(ctx model.SimContext, label string, codec RxBus, queue *eth.RxQueue,
	cycle model.EventSource, resetSig, enableSig *bus.Signal) *Receiver {

	r := &Receiver{
		ctx:       ctx,
		label:     label,
		codec:     codec,
		queue:     queue,
		cycle:     cycle,
		resetSig:  resetSig,
		enableSig: enableSig,
		divider:   1,
		divCount:  1,
		trace:     component.MakeNullTraceRecorder(),
	}
	if resetSig != nil {
		resetSig.Changed().Subscribe(func() {
			r.handleReset(resetSig.Bit())
		})
		r.handleReset(resetSig.Bit())
	} else {
		r.handleReset(false)
	}
	return r
}

// SetTrace routes frame events into a trace recorder.
func (r *Receiver) SetTrace(rec *component.TraceRecorder) {
	r.trace = rec
}

// SetCycle switches the clock event the engine samples on. It takes effect
// on the next cycle.
func (r *Receiver) SetCycle(cycle model.EventSource) {
	r.cycle = cycle
}

// SetDivider makes the engine act on every nth clock cycle only.
func (r *Receiver) SetDivider(n int) {
	if n < 1 {
		panic("clock divider must be at least 1")
	}
	r.divider = n
}

// Queue returns the receive queue this engine fills.
func (r *Receiver) Queue() *eth.RxQueue {
	return r.queue
}

// Recv blocks until a frame is available and returns it.
func (r *Receiver) Recv(io *component.TwixtIO) *eth.Frame {
	return r.queue.Recv(io)
}

// RecvNowait returns the next received frame, or nil.
func (r *Receiver) RecvNowait() *eth.Frame {
	return r.queue.RecvNowait()
}

// WaitFrame blocks until a frame is available or the timeout elapses, and
// reports whether one is available.
func (r *Receiver) WaitFrame(io *component.TwixtIO, timeout model.VirtualTime) bool {
	return r.queue.Wait(io, timeout)
}

// Idle reports whether no frame is currently being received.
func (r *Receiver) Idle() bool {
	return !r.active
}

// Clear discards every queued received frame.
func (r *Receiver) Clear() {
	for r.queue.RecvNowait() != nil {
	}
}

// Restart discards any partial frame and starts the engine fresh, unless an
// external reset is currently holding it.
func (r *Receiver) Restart() {
	r.handleReset(true)
	if r.resetSig == nil || !r.resetSig.Bit() {
		r.handleReset(false)
	}
}

func (r *Receiver) handleReset(asserted bool) {
	if asserted {
		log.Printf("%v [%s] reset asserted", r.ctx.Now(), r.label)
		if r.kill != nil {
			r.kill()
			r.kill = nil
		}
		r.active = false
	} else {
		log.Printf("%v [%s] reset deasserted", r.ctx.Now(), r.label)
		if r.kill == nil {
			r.kill = component.BuildTwixt(r.ctx, nil, r.run)
		}
	}
}

func (r *Receiver) run(io *component.TwixtIO) {
	var frame *eth.Frame
	var prev byte
	hasPrev := false
	r.active = false

	for {
		io.YieldWait(r.cycle)

		if r.divCount < r.divider {
			r.divCount++
			continue
		}
		r.divCount = 1

		if r.enableSig != nil && !r.enableSig.Bit() {
			io.YieldWait(r.enableSig.Rising())
			continue
		}

		u, valid := r.codec.Sample()

		if frame == nil {
			if valid {
				// start of frame
				frame = eth.MakeFrame(nil)
				frame.SimTimeStart = r.ctx.Now()
				r.active = true
			}
		} else if !valid {
			// end of frame
			frame.Data, frame.Flags = r.codec.Fold(frame.Data, frame.Flags)
			frame.Compact()
			frame.SimTimeEnd = r.ctx.Now()
			log.Printf("%v [%s] rx frame: %v", r.ctx.Now(), r.label, frame)
			r.trace.Record(r.label, "rx", frame.Data)
			r.queue.Push(frame)
			frame = nil
			r.active = false
		}

		if frame != nil {
			if !frame.SimTimeSFD.TimeExists() && r.codec.IsSFD(u.Data, prev, hasPrev) {
				frame.SimTimeSFD = r.ctx.Now()
				r.trace.Record(r.label, "sfd", nil)
			}
			frame.Data = append(frame.Data, u.Data)
			frame.Flags = append(frame.Flags, u.Flag)
			prev = u.Data
			hasPrev = true
		}
	}
}
