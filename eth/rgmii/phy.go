package rgmii

import (
	"fmt"

	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// Phy bundles both directions of an RGMII link: Tx samples the MAC's
// transmit signals on the MAC-driven tx_clk, Rx drives the MAC's receive
// signals on the PHY-generated rx_clk.
type Phy struct {
	ctx model.SimContext

	Tx *Sink
	Rx *Source

	rxClk *bus.Signal

	speed     link.Speed
	stopClock func()
}

// MakePhy builds an RGMII PHY model and starts it at the given speed. reset
// may be nil.
func MakePhy(ctx model.SimContext, name string, txSig Signals, txClk *bus.Signal,
	rxSig Signals, rxClk, reset *bus.Signal, speed link.Speed) *Phy {

	p := &Phy{
		ctx:   ctx,
		rxClk: rxClk,
	}
	p.Tx = MakeSink(ctx, name+"/tx", txSig, txClk, reset, nil, nil)
	p.Rx = MakeSource(ctx, name+"/rx", rxSig, rxClk, reset, nil, nil)

	rxClk.Init(0)
	p.SetSpeed(speed)
	return p
}

// Speed reports the currently selected link rate.
func (p *Phy) Speed() link.Speed {
	return p.speed
}

// SetSpeed reselects the link rate and restarts rx_clk. At 1000 Mb/s each
// clock cycle carries a whole byte across both edges; below that the bus
// falls back to duplicated-nibble MII transfers at half the byte rate.
func (p *Phy) SetSpeed(speed link.Speed) {
	switch speed {
	case link.Speed10M, link.Speed100M, link.Speed1G:
		p.speed = speed
	default:
		panic(fmt.Sprintf("invalid RGMII speed selection %v", speed))
	}

	if p.stopClock != nil {
		p.stopClock()
	}

	if speed == link.Speed1G {
		p.stopClock = bus.StartClock(p.ctx, p.rxClk, speed.BytePeriod())
		p.Tx.SetMiiMode(false)
		p.Rx.SetMiiMode(false)
	} else {
		p.stopClock = bus.StartClock(p.ctx, p.rxClk, speed.NibblePeriod())
		p.Tx.SetMiiMode(true)
		p.Rx.SetMiiMode(true)
	}
}
