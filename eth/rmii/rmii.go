// Package rmii models the reduced media-independent interface: a 2-bit bus
// clocked by a shared 50 MHz reference, carrying each frame byte as four
// dibits, least significant first. At 10 Mb/s every transfer is held for
// ten reference clocks.
package rmii

import (
	"fmt"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// Signals is one direction of an RMII bus. Er may be nil; the transmit
// direction of a real RMII link has no error pin.
type Signals struct {
	Data *bus.Signal
	Er   *bus.Signal
	Dv   *bus.Signal
}

func (s Signals) check() {
	if s.Data == nil || s.Data.Width() != 2 {
		panic("RMII data signal must be 2 bits wide")
	}
	if s.Er != nil && s.Er.Width() != 1 {
		panic("RMII error signal must be 1 bit wide")
	}
	if s.Dv == nil || s.Dv.Width() != 1 {
		panic("RMII data valid signal must be 1 bit wide")
	}
}

func dividerFor(speed link.Speed) int {
	switch speed {
	case link.Speed10M:
		return 10
	case link.Speed100M:
		return 1
	default:
		panic(fmt.Sprintf("invalid RMII speed selection %v", speed))
	}
}

type txCodec struct {
	sig Signals
}

func (c *txCodec) Expand(data, flags []byte) []link.Unit {
	units := make([]link.Unit, 0, 4*len(data))
	sfdSeen := false
	for i, b := range data {
		for chunk := 0; chunk < 4; chunk++ {
			u := link.Unit{Data: (b >> (2 * chunk)) & 0x03, Flag: flags[i]}
			if !sfdSeen && b == eth.EthSFD && chunk == 0 {
				u.SFD = true
				sfdSeen = true
			}
			units = append(units, u)
		}
	}
	return units
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

// Fold reassembles dibit transfers into bytes. Accumulation starts at the
// first transfer and realigns once the accumulator matches the SFD, which
// absorbs a preamble that is not a whole number of bytes. The SFD byte
// itself is emitted at the realignment point.
func (c *rxCodec) Fold(data, flags []byte) (fdata, fflags []byte) {
	position := 0
	sync := false
	var b, be byte
	for i, n := range data {
		b |= (n & 0x03) << (2 * position)
		be |= flags[i]
		position++
		if !sync && b == eth.EthSFD {
			fdata = append(fdata, b)
			fflags = append(fflags, be)
			position = 0
			sync = true
			b = 0
			be = 0
		}
		if position == 4 {
			position = 0
			fdata = append(fdata, b)
			fflags = append(fflags, be)
			be = 0
			b = 0
		}
	}
	return fdata, fflags
}

// IsSFD recognizes the final dibit of the SFD byte: a 0b11 transfer
// directly after a 0b01 transfer.
func (c *rxCodec) IsSFD(cur, prev byte, hasPrev bool) bool {
	return hasPrev && cur == 0x3 && prev == 0x1
}

// Source drives frames onto an RMII bus.
type Source struct {
	*link.Transmitter
}

// MakeSource builds and starts an RMII transmit model on the rising edge of
// the reference clock. reset and enable may be nil.
func MakeSource(ctx model.SimContext, name string, sig Signals, refClk *bus.Signal,
	reset, enable *bus.Signal, speed link.Speed) *Source {

	sig.check()
	sig.Data.Init(0)
	if sig.Er != nil {
		sig.Er.Init(0)
	}
	sig.Dv.Init(0)

	queue := eth.MakeTxQueue(ctx, name+"/Queue")
	s := &Source{
		Transmitter: link.MakeTransmitter(ctx, name, &txCodec{sig: sig}, queue,
			refClk.Rising(), reset, enable),
	}
	s.SetSpeed(speed)
	return s
}

// SetSpeed reselects the link rate by adjusting the reference clock
// divider.
func (s *Source) SetSpeed(speed link.Speed) {
	s.SetDivider(dividerFor(speed))
}

// Sink reassembles frames from an RMII bus.
type Sink struct {
	*link.Receiver
}

// MakeSink builds and starts an RMII receive model sampling on the rising
// edge of the reference clock. reset and enable may be nil.
func MakeSink(ctx model.SimContext, name string, sig Signals, refClk *bus.Signal,
	reset, enable *bus.Signal, speed link.Speed) *Sink {

	sig.check()
	queue := eth.MakeRxQueue(ctx, name+"/Queue")
	s := &Sink{
		Receiver: link.MakeReceiver(ctx, name, &rxCodec{sig: sig}, queue,
			refClk.Rising(), reset, enable),
	}
	s.SetSpeed(speed)
	return s
}

// SetSpeed reselects the link rate by adjusting the reference clock
// divider.
func (s *Sink) SetSpeed(speed link.Speed) {
	s.SetDivider(dividerFor(speed))
}

// Phy bundles both directions of an RMII link. The 50 MHz reference clock
// is generated externally and shared by both directions; the PHY only scales
// its transfer rate to the selected speed.
type Phy struct {
	Tx *Sink
	Rx *Source

	speed link.Speed
}

// MakePhy builds an RMII PHY model. The transmit direction carries no error
// pin; crs_dv stands in for data-valid on the receive direction. reset may
// be nil.
func MakePhy(ctx model.SimContext, name string, txSig Signals, rxSig Signals,
	refClk, reset *bus.Signal, speed link.Speed) *Phy {

	p := &Phy{}
	p.Tx = MakeSink(ctx, name+"/tx", txSig, refClk, reset, nil, speed)
	p.Rx = MakeSource(ctx, name+"/rx", rxSig, refClk, reset, nil, speed)
	p.speed = speed
	return p
}

// Speed reports the currently selected link rate.
func (p *Phy) Speed() link.Speed {
	return p.speed
}

// SetSpeed reselects the link rate for both directions.
func (p *Phy) SetSpeed(speed link.Speed) {
	p.Tx.SetSpeed(speed)
	p.Rx.SetSpeed(speed)
	p.speed = speed
}
