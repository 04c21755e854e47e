package bus

import (
	"time"

	"github.com/simlink/ethphy/sim/model"
)

type clockRunner struct {
	ctx         model.SimContext
	sig         *Signal
	halfPeriod  time.Duration
	cancelTimer func()
}

func (cr *clockRunner) tick() {
	if cr.sig.Bit() {
		cr.sig.Set(0)
	} else {
		cr.sig.Set(1)
	}
	cr.cancelTimer = cr.ctx.SetTimer(cr.ctx.Now().Add(cr.halfPeriod), "sim.bus.Clock/"+cr.sig.Name()+"/Tick", cr.tick)
}

// StartClock drives sig as a square wave with the given period, starting low
// with the first rising edge one half period from now. The returned cancel
// func stops the clock where it is; a fresh StartClock may then retime it
// (the Phy adapters do this on a link speed change).
func StartClock(ctx model.SimContext, sig *Signal, period time.Duration) (cancel func()) {
	if period < 2*time.Nanosecond {
		panic("clock period too short to simulate")
	}
	cr := &clockRunner{
		ctx:        ctx,
		sig:        sig,
		halfPeriod: period / 2,
	}
	sig.Set(0)
	cr.cancelTimer = ctx.SetTimer(ctx.Now().Add(cr.halfPeriod), "sim.bus.Clock/"+sig.Name()+"/Tick", cr.tick)
	return func() {
		if cr.cancelTimer != nil {
			cr.cancelTimer()
			cr.cancelTimer = nil
		}
	}
}
