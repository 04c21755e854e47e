package component

import (
	"github.com/simlink/ethphy/sim/model"
)

type marker struct{}

// twixtKill unwinds a killed twixt goroutine through its deferred cleanups.
type twixtKill struct{}

type TwixtIO struct {
	ctx    model.SimContext
	waitCh chan marker
	doneCh chan marker
	runOk  bool
	halted bool
	killed bool
}

func (ti *TwixtIO) enter() {
	if !ti.halted {
		ti.runOk = true
		ti.waitCh <- marker{}
		<-ti.doneCh
		if !ti.runOk {
			panic("should have been running")
		}
		ti.runOk = false
	}
}

func (ti *TwixtIO) Yield() {
	if !ti.runOk {
		panic("should be running")
	}
	ti.doneCh <- marker{}
	<-ti.waitCh
	if ti.killed {
		panic(twixtKill{})
	}
	if !ti.runOk {
		panic("should be running")
	}
}

func subscribeAll(events []model.EventSource, cb func()) (cancel func()) {
	var cancels []func()
	for _, e := range events {
		cancels = append(cancels, e.Subscribe(cb))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (ti *TwixtIO) YieldWait(events ...model.EventSource) {
	cancel := subscribeAll(events, ti.enter)
	defer cancel()

	ti.Yield()
}

// YieldWaitUntil suspends until any of the events fires or the deadline
// passes, whichever comes first. It reports whether the deadline had been
// reached on resumption. A deadline of TimeNever waits on the events alone.
func (ti *TwixtIO) YieldWaitUntil(deadline model.VirtualTime, events ...model.EventSource) (expired bool) {
	cancel := subscribeAll(events, ti.enter)
	defer cancel()
	if deadline.TimeExists() {
		cancelTimer := ti.ctx.SetTimer(deadline, "sim.component.Twixt/WaitUntil", ti.enter)
		defer cancelTimer()
	}

	ti.Yield()
	return deadline.TimeExists() && ti.ctx.Now().AtOrAfter(deadline)
}

func (ti *TwixtIO) YieldUntil(time model.VirtualTime) {
	cancel := ti.ctx.SetTimer(time, "sim.component.Twixt/Until", ti.enter)
	defer cancel()

	ti.Yield()
}

type TwixtFunc func(*TwixtIO)

// BuildTwixt runs a function in an imperative side thread, returning to the
// simulation on each Yield(). The returned kill func tears the thread down at
// its current suspension point; a killed twixt never runs again.
func BuildTwixt(ctx model.SimContext, events []model.EventSource, main TwixtFunc) (kill func()) {
	ti := &TwixtIO{
		ctx:    ctx,
		waitCh: make(chan marker),
		doneCh: make(chan marker),
	}
	go func() {
		<-ti.waitCh
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(twixtKill); !ok {
					panic(r)
				}
			}
			ti.halted = true
			ti.doneCh <- marker{}
		}()
		if !ti.killed {
			main(ti)
		}
	}()
	ctx.Later("sim.component.Twixt/Enter", ti.enter)
	cancelSubs := subscribeAll(events, ti.enter)
	return func() {
		if ti.halted || ti.killed {
			return
		}
		ti.killed = true
		cancelSubs()
		// resume once more so the goroutine can unwind and halt
		ti.ctx.Later("sim.component.Twixt/Kill", ti.enter)
	}
}
