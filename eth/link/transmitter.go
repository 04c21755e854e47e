package link

import (
	"log"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// DefaultIFG is the inter-frame gap in bytes inserted after each frame.
const DefaultIFG = 12

// Transmitter pulls frames from a queue and drives them onto a bus codec,
// one transfer unit per clock cycle, separated by the configured inter-frame
// gap. It stops while a reset signal is asserted and pauses while an enable
// signal is deasserted.
type Transmitter struct {
	ctx   model.SimContext
	label string
	codec TxBus
	queue *eth.TxQueue

	cycle     model.EventSource
	resetSig  *bus.Signal
	enableSig *bus.Signal

	// IFG is the inter-frame gap in transfer cycles. It is sampled when each
	// frame finishes.
	IFG int

	divider  int
	divCount int

	active       bool
	currentFrame *eth.Frame
	kill         func()

	idle  *component.EventDispatcher
	trace *component.TraceRecorder
}

// MakeTransmitter wires a transmit engine to a codec and starts it, unless
// resetSig is currently asserted. cycle is the clock event the engine runs
// on; resetSig and enableSig may be nil.
func MakeTransmitter(ctx model.SimContext, label string, codec TxBus, queue *eth.TxQueue,
	cycle model.EventSource, resetSig, enableSig *bus.Signal) *Transmitter {

	t := &Transmitter{
		ctx:       ctx,
		label:     label,
		codec:     codec,
		queue:     queue,
		cycle:     cycle,
		resetSig:  resetSig,
		enableSig: enableSig,
		IFG:       DefaultIFG,
		divider:   1,
		divCount:  1,
		idle:      component.MakeEventDispatcher(ctx, label+"/Idle"),
		trace:     component.MakeNullTraceRecorder(),
	}
	if resetSig != nil {
		resetSig.Changed().Subscribe(func() {
			t.handleReset(resetSig.Bit())
		})
		t.handleReset(resetSig.Bit())
	} else {
		t.handleReset(false)
	}
	return t
}

// SetTrace routes frame events into a trace recorder.
func (t *Transmitter) SetTrace(rec *component.TraceRecorder) {
	t.trace = rec
}

// SetCycle switches the clock event the engine runs on. It takes effect on
// the next cycle.
func (t *Transmitter) SetCycle(cycle model.EventSource) {
	t.cycle = cycle
}

// SetDivider makes the engine act on every nth clock cycle only.
func (t *Transmitter) SetDivider(n int) {
	if n < 1 {
		panic("clock divider must be at least 1")
	}
	t.divider = n
}

// Queue returns the transmit queue feeding this engine.
func (t *Transmitter) Queue() *eth.TxQueue {
	return t.queue
}

// Send enqueues a frame for transmission, blocking while the queue is full.
func (t *Transmitter) Send(io *component.TwixtIO, f *eth.Frame) {
	t.queue.Send(io, f)
}

// SendNowait enqueues a frame or reports eth.ErrQueueFull.
func (t *Transmitter) SendNowait(f *eth.Frame) error {
	return t.queue.SendNowait(f)
}

// Idle reports whether the engine has nothing queued and nothing in flight.
func (t *Transmitter) Idle() bool {
	return t.queue.Empty() && !t.active
}

// IdleEvent fires when the engine runs out of work.
func (t *Transmitter) IdleEvent() model.EventSource {
	return t.idle
}

// WaitIdle blocks the calling twixt until the engine is idle.
func (t *Transmitter) WaitIdle(io *component.TwixtIO) {
	for !t.Idle() {
		io.YieldWait(t.idle)
	}
}

// Clear discards every queued frame, firing each one's completion callback
// with no end timestamp.
func (t *Transmitter) Clear() {
	for !t.queue.Empty() {
		f := t.queue.Pop()
		f.SimTimeEnd = model.TimeNever
		f.HandleTxComplete()
	}
	t.idle.DispatchLater()
}

// Restart flushes the engine as a reset would and starts it fresh, unless an
// external reset is currently holding it.
func (t *Transmitter) Restart() {
	t.handleReset(true)
	if t.resetSig == nil || !t.resetSig.Bit() {
		t.handleReset(false)
	}
}

func (t *Transmitter) handleReset(asserted bool) {
	if asserted {
		log.Printf("%v [%s] reset asserted", t.ctx.Now(), t.label)
		if t.kill != nil {
			t.kill()
			t.kill = nil
		}
		t.active = false
		t.codec.DriveReset()
		if t.currentFrame != nil {
			log.Printf("%v [%s] flushed transmit frame during reset: %v",
				t.ctx.Now(), t.label, t.currentFrame)
			t.currentFrame.HandleTxComplete()
			t.currentFrame = nil
		}
		if t.queue.Empty() {
			t.idle.DispatchLater()
		}
	} else {
		log.Printf("%v [%s] reset deasserted", t.ctx.Now(), t.label)
		if t.kill == nil {
			t.kill = component.BuildTwixt(t.ctx, nil, t.run)
		}
	}
}

func (t *Transmitter) run(io *component.TwixtIO) {
	var frame *eth.Frame
	var units []Unit
	offset := 0
	ifgCnt := 0
	t.active = false

	for {
		io.YieldWait(t.cycle)

		if t.divCount < t.divider {
			t.divCount++
			continue
		}
		t.divCount = 1

		if t.enableSig != nil && !t.enableSig.Bit() {
			io.YieldWait(t.enableSig.Rising())
			continue
		}

		if ifgCnt > 0 {
			// in IFG
			ifgCnt--
		} else if frame == nil && !t.queue.Empty() {
			frame = t.queue.Pop()
			t.currentFrame = frame
			frame.SimTimeStart = t.ctx.Now()
			frame.SimTimeSFD = model.TimeNever
			frame.SimTimeEnd = model.TimeNever
			log.Printf("%v [%s] tx frame: %v", t.ctx.Now(), t.label, frame)
			t.trace.Record(t.label, "tx", frame.Data)
			frame.Normalize()
			units = t.codec.Expand(frame.Data, frame.Flags)
			t.active = true
			offset = 0
		}

		if frame != nil {
			u := units[offset]
			if u.SFD && !frame.SimTimeSFD.TimeExists() {
				frame.SimTimeSFD = t.ctx.Now()
				t.trace.Record(t.label, "sfd", nil)
			}
			t.codec.Drive(u)
			offset++

			if offset >= len(units) {
				if ifgCnt = t.IFG; ifgCnt < 1 {
					ifgCnt = 1
				}
				frame.SimTimeEnd = t.ctx.Now()
				frame.HandleTxComplete()
				frame = nil
				t.currentFrame = nil
			}
		} else {
			t.codec.DriveIdle()
			t.active = false

			if ifgCnt == 0 && t.queue.Empty() {
				t.idle.DispatchLater()
				io.YieldWait(t.queue.Enqueued())
			}
		}
	}
}
