package gmii

import (
	"fmt"

	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// Phy bundles both directions of a GMII link the way a PHY chip presents
// them: Tx samples the MAC's transmit signals, Rx drives the MAC's receive
// signals. The PHY owns rx_clk generation, and tx_clk generation for the
// 10 and 100 Mb/s modes; gtx_clk is driven externally and only clocks the
// transmit path at 1000 Mb/s.
type Phy struct {
	ctx model.SimContext

	Tx *Sink
	Rx *Source

	txClk  *bus.Signal
	gtxClk *bus.Signal
	rxClk  *bus.Signal

	speed     link.Speed
	stopClock func()
}

// MakePhy builds a GMII PHY model and starts it at the given speed. reset
// may be nil.
func MakePhy(ctx model.SimContext, name string, txSig Signals, txClk, gtxClk *bus.Signal,
	rxSig Signals, rxClk, reset *bus.Signal, speed link.Speed) *Phy {

	p := &Phy{
		ctx:    ctx,
		txClk:  txClk,
		gtxClk: gtxClk,
		rxClk:  rxClk,
	}
	p.Tx = MakeSink(ctx, name+"/tx", txSig, txClk, reset, nil, nil)
	p.Rx = MakeSource(ctx, name+"/rx", rxSig, rxClk, reset, nil, nil)

	txClk.Init(0)
	rxClk.Init(0)
	p.SetSpeed(speed)
	return p
}

// Speed reports the currently selected link rate.
func (p *Phy) Speed() link.Speed {
	return p.speed
}

// SetSpeed reselects the link rate, restarting the clocks and both engines.
// At 1000 Mb/s the transmit path follows gtx_clk and moves whole bytes; at
// 10 and 100 Mb/s both paths follow the PHY-driven clocks and move nibbles.
func (p *Phy) SetSpeed(speed link.Speed) {
	switch speed {
	case link.Speed10M, link.Speed100M, link.Speed1G:
		p.speed = speed
	default:
		panic(fmt.Sprintf("invalid GMII speed selection %v", speed))
	}

	if p.stopClock != nil {
		p.stopClock()
	}

	if speed == link.Speed1G {
		stopTx := bus.StartClock(p.ctx, p.txClk, speed.BytePeriod())
		stopRx := bus.StartClock(p.ctx, p.rxClk, speed.BytePeriod())
		p.stopClock = func() { stopTx(); stopRx() }
		p.Tx.SetMiiMode(false)
		p.Rx.SetMiiMode(false)
		p.Tx.SetCycle(p.gtxClk.Rising())
	} else {
		stopTx := bus.StartClock(p.ctx, p.txClk, speed.NibblePeriod())
		stopRx := bus.StartClock(p.ctx, p.rxClk, speed.NibblePeriod())
		p.stopClock = func() { stopTx(); stopRx() }
		p.Tx.SetMiiMode(true)
		p.Rx.SetMiiMode(true)
		p.Tx.SetCycle(p.txClk.Rising())
	}

	p.Tx.Restart()
	p.Rx.Restart()
}
