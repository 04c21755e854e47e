package eth

import (
	"errors"

	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// ErrQueueFull is returned by SendNowait when the queue is over either
// occupancy limit.
var ErrQueueFull = errors.New("frame queue is full")

// frameQueue is a FIFO of frames with byte and frame occupancy accounting.
// A limit of zero or below means unbounded. The queue counts as full only
// when occupancy strictly exceeds a limit, so a single oversized frame can
// always be accepted by an empty queue.
type frameQueue struct {
	frames []*Frame

	occupancyBytes  int
	occupancyFrames int
	LimitBytes      int
	LimitFrames     int

	enqueued *component.EventDispatcher
	dequeued *component.EventDispatcher
}

func makeFrameQueue(ctx model.SimContext, name string) *frameQueue {
	return &frameQueue{
		enqueued: component.MakeEventDispatcher(ctx, name+"/Enqueued"),
		dequeued: component.MakeEventDispatcher(ctx, name+"/Dequeued"),
	}
}

func (q *frameQueue) Empty() bool {
	return len(q.frames) == 0
}

func (q *frameQueue) Full() bool {
	if q.LimitBytes > 0 && q.occupancyBytes > q.LimitBytes {
		return true
	}
	if q.LimitFrames > 0 && q.occupancyFrames > q.LimitFrames {
		return true
	}
	return false
}

func (q *frameQueue) Count() int {
	return q.occupancyFrames
}

func (q *frameQueue) ByteCount() int {
	return q.occupancyBytes
}

func (q *frameQueue) push(f *Frame) {
	q.frames = append(q.frames, f)
	q.occupancyBytes += f.Len()
	q.occupancyFrames++
	q.enqueued.DispatchLater()
}

func (q *frameQueue) pop() *Frame {
	if len(q.frames) == 0 {
		return nil
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	q.occupancyBytes -= f.Len()
	q.occupancyFrames--
	q.dequeued.DispatchLater()
	return f
}

// Enqueued fires after a frame is added.
func (q *frameQueue) Enqueued() model.EventSource {
	return q.enqueued
}

// Dequeued fires after a frame is removed.
func (q *frameQueue) Dequeued() model.EventSource {
	return q.dequeued
}

// TxQueue feeds frames from the testbench into a transmit engine.
type TxQueue struct {
	frameQueue
}

func MakeTxQueue(ctx model.SimContext, name string) *TxQueue {
	q := &TxQueue{}
	q.frameQueue = *makeFrameQueue(ctx, name)
	return q
}

// Send enqueues a frame, blocking the calling twixt while the queue is full.
func (q *TxQueue) Send(io *component.TwixtIO, f *Frame) {
	for q.Full() {
		io.YieldWait(q.Dequeued())
	}
	q.push(f)
}

// SendNowait enqueues a frame or reports ErrQueueFull.
func (q *TxQueue) SendNowait(f *Frame) error {
	if q.Full() {
		return ErrQueueFull
	}
	q.push(f)
	return nil
}

// Pop removes the next frame for transmission, or returns nil.
func (q *TxQueue) Pop() *Frame {
	return q.pop()
}

// RxQueue collects frames reassembled by a receive engine.
type RxQueue struct {
	frameQueue
}

func MakeRxQueue(ctx model.SimContext, name string) *RxQueue {
	q := &RxQueue{}
	q.frameQueue = *makeFrameQueue(ctx, name)
	return q
}

// Push delivers a completed frame from the receive engine.
func (q *RxQueue) Push(f *Frame) {
	q.push(f)
}

// Recv blocks the calling twixt until a frame is available, then returns it
// with its flags compacted.
func (q *RxQueue) Recv(io *component.TwixtIO) *Frame {
	for q.Empty() {
		io.YieldWait(q.Enqueued())
	}
	f := q.pop()
	f.Compact()
	return f
}

// RecvNowait returns the next frame with flags compacted, or nil when the
// queue is empty.
func (q *RxQueue) RecvNowait() *Frame {
	f := q.pop()
	if f != nil {
		f.Compact()
	}
	return f
}

// Wait blocks until the queue is nonempty or the timeout elapses, and
// reports whether a frame is available. Frames are left in the queue either
// way. A timeout of TimeNever waits indefinitely.
func (q *RxQueue) Wait(io *component.TwixtIO, timeout model.VirtualTime) bool {
	for q.Empty() {
		if io.YieldWaitUntil(timeout, q.Enqueued()) && q.Empty() {
			return false
		}
	}
	return true
}
