// Package xgmii models the 10-gigabit media-independent interface: a 32 or
// 64 bit data bus with one control bit per byte lane, moving a whole lane
// group every clock cycle. Frame boundaries travel in-band as START and
// TERM control characters, and the transmit engine maintains the deficit
// idle count that lets the average inter-frame gap hold at twelve bytes
// while each individual gap is quantized to the lane group.
package xgmii

import (
	"log"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// Source drives frames onto an XGMII bus. Frames taken from the queue have
// their first preamble byte replaced by START and a TERM appended; the
// frame's Flags carry the control bit for every byte.
type Source struct {
	ctx   model.SimContext
	label string

	data *bus.Signal
	ctrl *bus.Signal

	cycle     model.EventSource
	resetSig  *bus.Signal
	enableSig *bus.Signal

	queue *eth.TxQueue

	// IFG is the target inter-frame gap in bytes.
	IFG int

	// EnableDIC selects deficit idle count accounting, allowing individual
	// gaps as low as IFG-3 bytes as long as the running average holds.
	EnableDIC bool

	// ForceOffsetStart starts every frame in lane 4 when the bus is wider
	// than four lanes, regardless of gap accounting.
	ForceOffsetStart bool

	byteLanes    int
	idleD, idleC uint64

	active       bool
	currentFrame *eth.Frame
	kill         func()

	idle  *component.EventDispatcher
	trace *component.TraceRecorder
}

// MakeSource builds and starts an XGMII transmit model on the rising edge
// of clock. The lane count follows the ctrl signal width; data must be
// eight times as wide. reset and enable may be nil.
func MakeSource(ctx model.SimContext, label string, data, ctrl, clock *bus.Signal,
	reset, enable *bus.Signal) *Source {

	lanes := ctrl.Width()
	if data.Width() != lanes*8 {
		panic("XGMII data signal must be eight times as wide as the ctrl signal")
	}
	idleD, idleC := eth.XgmiiIdlePattern(lanes)

	s := &Source{
		ctx:       ctx,
		label:     label,
		data:      data,
		ctrl:      ctrl,
		cycle:     clock.Rising(),
		resetSig:  reset,
		enableSig: enable,
		queue:     eth.MakeTxQueue(ctx, label+"/Queue"),
		IFG:       12,
		EnableDIC: true,
		byteLanes: lanes,
		idleD:     idleD,
		idleC:     idleC,
		idle:      component.MakeEventDispatcher(ctx, label+"/Idle"),
		trace:     component.MakeNullTraceRecorder(),
	}
	data.Init(idleD)
	ctrl.Init(idleC)

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
func (s *Source) SetTrace(rec *component.TraceRecorder) {
	s.trace = rec
}

// ByteLanes reports the lane group width in bytes.
func (s *Source) ByteLanes() int {
	return s.byteLanes
}

// Queue returns the transmit queue feeding this engine.
func (s *Source) Queue() *eth.TxQueue {
	return s.queue
}

// Send enqueues a frame for transmission, blocking while the queue is full.
func (s *Source) Send(io *component.TwixtIO, f *eth.Frame) {
	s.queue.Send(io, f)
}

// SendNowait enqueues a frame or reports eth.ErrQueueFull.
func (s *Source) SendNowait(f *eth.Frame) error {
	return s.queue.SendNowait(f)
}

// Idle reports whether the engine has nothing queued and nothing in flight.
func (s *Source) Idle() bool {
	return s.queue.Empty() && !s.active
}

// IdleEvent fires when the engine runs out of work.
func (s *Source) IdleEvent() model.EventSource {
	return s.idle
}

// WaitIdle blocks the calling twixt until the engine is idle.
func (s *Source) WaitIdle(io *component.TwixtIO) {
	for !s.Idle() {
		io.YieldWait(s.idle)
	}
}

// Clear discards every queued frame, firing each one's completion callback
// with no end timestamp.
func (s *Source) Clear() {
	for !s.queue.Empty() {
		f := s.queue.Pop()
		f.SimTimeEnd = model.TimeNever
		f.HandleTxComplete()
	}
	s.idle.DispatchLater()
}

// Restart flushes the engine as a reset would and starts it fresh, unless
// an external reset is currently holding it.
func (s *Source) Restart() {
	s.handleReset(true)
	if s.resetSig == nil || !s.resetSig.Bit() {
		s.handleReset(false)
	}
}

func (s *Source) handleReset(asserted bool) {
	if asserted {
		log.Printf("%v [%s] reset asserted", s.ctx.Now(), s.label)
		if s.kill != nil {
			s.kill()
			s.kill = nil
		}
		s.active = false
		s.data.Set(s.idleD)
		s.ctrl.Set(s.idleC)
		if s.currentFrame != nil {
			log.Printf("%v [%s] flushed transmit frame during reset: %v",
				s.ctx.Now(), s.label, s.currentFrame)
			s.currentFrame.HandleTxComplete()
			s.currentFrame = nil
		}
		if s.queue.Empty() {
			s.idle.DispatchLater()
		}
	} else {
		log.Printf("%v [%s] reset deasserted", s.ctx.Now(), s.label)
		if s.kill == nil {
			s.kill = component.BuildTwixt(s.ctx, nil, s.run)
		}
	}
}

func (s *Source) run(io *component.TwixtIO) {
	var frame *eth.Frame
	frameOffset := 0
	ifgCnt := 0
	deficitIdleCnt := 0
	s.active = false

	for {
		io.YieldWait(s.cycle)

		if s.enableSig != nil && !s.enableSig.Bit() {
			io.YieldWait(s.enableSig.Rising())
			continue
		}

		if ifgCnt+deficitIdleCnt > s.byteLanes-1 || (!s.EnableDIC && ifgCnt > 4) {
			// in IFG
			ifgCnt -= s.byteLanes
			if ifgCnt < 0 {
				if s.EnableDIC {
					deficitIdleCnt = max(deficitIdleCnt+ifgCnt, 0)
				}
				ifgCnt = 0
			}

		} else if frame == nil {
			if !s.queue.Empty() {
				frame = s.queue.Pop()
				s.currentFrame = frame
				frame.SimTimeStart = s.ctx.Now()
				frame.SimTimeSFD = model.TimeNever
				frame.SimTimeEnd = model.TimeNever
				log.Printf("%v [%s] tx frame: %v", s.ctx.Now(), s.label, frame)
				s.trace.Record(s.label, "tx", frame.Data)
				frame.Normalize()
				frame.StartLane = 0
				if frame.Data[0] != eth.EthPre || frame.Flags[0] != 0 {
					log.Panicf("%v [%s] frame %v does not start with a preamble byte",
						s.ctx.Now(), s.label, frame)
				}
				frame.Data[0] = byte(eth.XgmiiStart)
				frame.Flags[0] = 1
				frame.Data = append(frame.Data, byte(eth.XgmiiTerm))
				frame.Flags = append(frame.Flags, 1)

				// offset start
				minIFG := 0
				if s.EnableDIC {
					minIFG = 3 - deficitIdleCnt
				}
				if s.byteLanes > 4 && (ifgCnt > minIFG || s.ForceOffsetStart) {
					ifgCnt -= 4
					frame.StartLane = 4
					pad := []byte{
						byte(eth.XgmiiIdle), byte(eth.XgmiiIdle),
						byte(eth.XgmiiIdle), byte(eth.XgmiiIdle),
					}
					frame.Data = append(pad, frame.Data...)
					frame.Flags = append([]byte{1, 1, 1, 1}, frame.Flags...)
				}

				if s.EnableDIC {
					deficitIdleCnt = max(deficitIdleCnt+ifgCnt, 0)
				}
				ifgCnt = 0
				s.active = true
				frameOffset = 0
			} else {
				// idle bus; gap accounting restarts at the next frame
				deficitIdleCnt = 0
				ifgCnt = 0
			}
		}

		if frame != nil {
			var dVal, cVal uint64

			for k := 0; k < s.byteLanes; k++ {
				if frame != nil {
					d := frame.Data[frameOffset]
					if d == eth.EthSFD && !frame.SimTimeSFD.TimeExists() {
						frame.SimTimeSFD = s.ctx.Now()
						s.trace.Record(s.label, "sfd", nil)
					}
					dVal |= uint64(d) << (k * 8)
					cVal |= uint64(frame.Flags[frameOffset]) << k
					frameOffset++

					if frameOffset >= len(frame.Data) {
						ifgCnt = max(s.IFG-(s.byteLanes-k), 0)
						frame.SimTimeEnd = s.ctx.Now()
						frame.HandleTxComplete()
						frame = nil
						s.currentFrame = nil
					}
				} else {
					dVal |= uint64(eth.XgmiiIdle) << (k * 8)
					cVal |= 1 << k
				}
			}

			s.data.Set(dVal)
			s.ctrl.Set(cVal)
		} else {
			s.data.Set(s.idleD)
			s.ctrl.Set(s.idleC)
			s.active = false

			// suspend only once the gap counters have been cleared, so a
			// frame arriving later starts from a clean gap state
			if ifgCnt == 0 && deficitIdleCnt == 0 && s.queue.Empty() {
				s.idle.DispatchLater()
				io.YieldWait(s.queue.Enqueued())
			}
		}
	}
}
