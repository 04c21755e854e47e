// Package bus provides the simulated signal vectors and clock generators that
// PHY engine models drive and sample at clock-edge-aligned points.
package bus

import (
	"fmt"

	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

// Signal is a named value vector of fixed bit width (1 to 64 bits). Writes
// commit on a delta cycle: a value written during one scheduler round becomes
// visible to readers only in the next round, so every component sampling on
// the same clock edge observes the pre-edge value regardless of callback
// order. At most one component may write a given signal; the cooperative
// scheduler makes locking unnecessary.
type Signal struct {
	ctx   model.SimContext
	name  string
	width int
	value uint64

	pending    uint64
	hasPending bool

	changed *component.EventDispatcher
	rising  *component.EventDispatcher
	falling *component.EventDispatcher
}

func MakeSignal(ctx model.SimContext, name string, width int) *Signal {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("signal %s: invalid width %d", name, width))
	}
	return &Signal{
		ctx:     ctx,
		name:    name,
		width:   width,
		changed: component.MakeEventDispatcher(ctx, "sim.bus.Signal/"+name+"/Changed"),
		rising:  component.MakeEventDispatcher(ctx, "sim.bus.Signal/"+name+"/Rising"),
		falling: component.MakeEventDispatcher(ctx, "sim.bus.Signal/"+name+"/Falling"),
	}
}

func (s *Signal) Name() string {
	return s.name
}

func (s *Signal) Width() int {
	return s.width
}

func (s *Signal) checkFits(v uint64) {
	if s.width < 64 && v >= uint64(1)<<s.width {
		panic(fmt.Sprintf("signal %s: value 0x%x does not fit in %d bits", s.name, v, s.width))
	}
}

// Init sets the value directly, without a delta cycle and without edge
// events. Only for initial conditions before the simulation advances.
func (s *Signal) Init(v uint64) {
	s.checkFits(v)
	s.value = v
	s.pending = v
}

// Set schedules v to become visible on the next delta cycle. Multiple Sets
// within the same round coalesce; the last one wins.
func (s *Signal) Set(v uint64) {
	s.checkFits(v)
	s.pending = v
	if !s.hasPending {
		s.hasPending = true
		s.ctx.Later("sim.bus.Signal/"+s.name+"/Commit", s.commit)
	}
}

func (s *Signal) commit() {
	s.hasPending = false
	old := s.value
	s.value = s.pending
	if old == s.value {
		return
	}
	s.changed.DispatchLater()
	if old&1 == 0 && s.value&1 == 1 {
		s.rising.DispatchLater()
	} else if old&1 == 1 && s.value&1 == 0 {
		s.falling.DispatchLater()
	}
}

// Peek reads the committed value.
func (s *Signal) Peek() uint64 {
	return s.value
}

// Bit reads the committed value of bit 0.
func (s *Signal) Bit() bool {
	return s.value&1 == 1
}

func (s *Signal) Changed() model.EventSource {
	return s.changed
}

// Rising fires after a 0-to-1 transition of bit 0 commits.
func (s *Signal) Rising() model.EventSource {
	return s.rising
}

// Falling fires after a 1-to-0 transition of bit 0 commits.
func (s *Signal) Falling() model.EventSource {
	return s.falling
}
