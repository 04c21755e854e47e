// Package mii models the 4-bit media-independent interface used at 10 and
// 100 Mb/s. Each frame byte crosses the bus as two nibbles, low nibble
// first, with data-valid and error strobes alongside.
package mii

import (
	"fmt"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// The high nibble of the SFD is the only start delimiter marker visible on
// a nibble bus.
const sfdHighNibble = 0x0D

// Signals is one direction of an MII bus. Er may be nil when the error
// strobe is not modeled.
type Signals struct {
	Data *bus.Signal
	Er   *bus.Signal
	Dv   *bus.Signal
}

func (s Signals) check() {
	if s.Data == nil || s.Data.Width() != 4 {
		panic("MII data signal must be 4 bits wide")
	}
	if s.Er != nil && s.Er.Width() != 1 {
		panic("MII error signal must be 1 bit wide")
	}
	if s.Dv == nil || s.Dv.Width() != 1 {
		panic("MII data valid signal must be 1 bit wide")
	}
}

type txCodec struct {
	sig Signals
}

func (c *txCodec) Expand(data, flags []byte) []link.Unit {
	return link.MarkSFD(link.ExpandNibbles(data, flags, false), sfdHighNibble)
}

func (c *txCodec) Drive(u link.Unit) {
	c.sig.Data.Set(uint64(u.Data))
	if c.sig.Er != nil {
		c.sig.Er.Set(uint64(u.Flag))
	}
	c.sig.Dv.Set(1)
}

func (c *txCodec) DriveIdle() {
	c.sig.Data.Set(0)
	if c.sig.Er != nil {
		c.sig.Er.Set(0)
	}
	c.sig.Dv.Set(0)
}

func (c *txCodec) DriveReset() {
	c.DriveIdle()
}

type rxCodec struct {
	sig Signals
}

func (c *rxCodec) Sample() (u link.Unit, valid bool) {
	var er byte
	if c.sig.Er != nil {
		er = byte(c.sig.Er.Peek())
	}
	return link.Unit{Data: byte(c.sig.Data.Peek()), Flag: er}, c.sig.Dv.Bit()
}

func (c *rxCodec) Fold(data, flags []byte) (fdata, fflags []byte) {
	return link.FoldNibbles(data, flags)
}

func (c *rxCodec) IsSFD(cur, prev byte, hasPrev bool) bool {
	return cur == sfdHighNibble
}

// Source drives frames onto an MII bus.
type Source struct {
	*link.Transmitter
}

// MakeSource builds and starts an MII transmit model on the rising edge of
// clock. reset and enable may be nil.
func MakeSource(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable *bus.Signal) *Source {

	sig.check()
	sig.Data.Init(0)
	if sig.Er != nil {
		sig.Er.Init(0)
	}
	sig.Dv.Init(0)

	queue := eth.MakeTxQueue(ctx, name+"/Queue")
	return &Source{
		Transmitter: link.MakeTransmitter(ctx, name, &txCodec{sig: sig}, queue,
			clock.Rising(), reset, enable),
	}
}

// Sink reassembles frames from an MII bus.
type Sink struct {
	*link.Receiver
}

// MakeSink builds and starts an MII receive model sampling on the rising
// edge of clock. reset and enable may be nil.
func MakeSink(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable *bus.Signal) *Sink {

	sig.check()
	queue := eth.MakeRxQueue(ctx, name+"/Queue")
	return &Sink{
		Receiver: link.MakeReceiver(ctx, name, &rxCodec{sig: sig}, queue,
			clock.Rising(), reset, enable),
	}
}

// Phy bundles both directions of an MII link: Tx samples the MAC's transmit
// signals, Rx drives the MAC's receive signals. The PHY generates both
// tx_clk and rx_clk.
type Phy struct {
	ctx model.SimContext

	Tx *Sink
	Rx *Source

	txClk *bus.Signal
	rxClk *bus.Signal

	speed     link.Speed
	stopClock func()
}

// MakePhy builds an MII PHY model and starts it at the given speed. reset
// may be nil.
func MakePhy(ctx model.SimContext, name string, txSig Signals, txClk *bus.Signal,
	rxSig Signals, rxClk, reset *bus.Signal, speed link.Speed) *Phy {

	p := &Phy{
		ctx:   ctx,
		txClk: txClk,
		rxClk: rxClk,
	}
	p.Tx = MakeSink(ctx, name+"/tx", txSig, txClk, reset, nil)
	p.Rx = MakeSource(ctx, name+"/rx", rxSig, rxClk, reset, nil)

	txClk.Init(0)
	rxClk.Init(0)
	p.SetSpeed(speed)
	return p
}

// Speed reports the currently selected link rate.
func (p *Phy) Speed() link.Speed {
	return p.speed
}

// SetSpeed reselects the link rate, restarting both clocks. Only 10 and
// 100 Mb/s are representable on an MII bus.
func (p *Phy) SetSpeed(speed link.Speed) {
	switch speed {
	case link.Speed10M, link.Speed100M:
		p.speed = speed
	default:
		panic(fmt.Sprintf("invalid MII speed selection %v", speed))
	}

	if p.stopClock != nil {
		p.stopClock()
	}
	stopTx := bus.StartClock(p.ctx, p.txClk, speed.NibblePeriod())
	stopRx := bus.StartClock(p.ctx, p.rxClk, speed.NibblePeriod())
	p.stopClock = func() { stopTx(); stopRx() }
}
