// Package gmii models the gigabit media-independent interface: an 8-bit
// data path with data-valid and error strobes, clocked once per byte. With
// the MII-compatibility mode selected, the same signals carry one nibble
// per clock instead, low nibble first.
package gmii

import (
	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// In MII-compatibility mode the high nibble of the SFD appears on the bus
// as 0x0D.
const sfdHighNibble = 0x0D

// Signals is one direction of a GMII bus. Er may be nil when the error
// strobe is not modeled.
type Signals struct {
	Data *bus.Signal
	Er   *bus.Signal
	Dv   *bus.Signal
}

func (s Signals) check() {
	if s.Data == nil || s.Data.Width() != 8 {
		panic("GMII data signal must be 8 bits wide")
	}
	if s.Er != nil && s.Er.Width() != 1 {
		panic("GMII error signal must be 1 bit wide")
	}
	if s.Dv == nil || s.Dv.Width() != 1 {
		panic("GMII data valid signal must be 1 bit wide")
	}
}

type codec struct {
	sig       Signals
	miiSelect *bus.Signal
	miiMode   bool
}

func (c *codec) selectMode() bool {
	if c.miiSelect != nil {
		c.miiMode = c.miiSelect.Bit()
	}
	return c.miiMode
}

type txCodec struct{ codec }

func (c *txCodec) Expand(data, flags []byte) []link.Unit {
	var units []link.Unit
	if c.selectMode() {
		units = link.ExpandNibbles(data, flags, false)
	} else {
		units = link.ExpandBytes(data, flags)
	}
	return link.MarkSFD(units, eth.EthSFD, sfdHighNibble)
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

type rxCodec struct{ codec }

func (c *rxCodec) Sample() (u link.Unit, valid bool) {
	var er byte
	if c.sig.Er != nil {
		er = byte(c.sig.Er.Peek())
	}
	return link.Unit{Data: byte(c.sig.Data.Peek()), Flag: er}, c.sig.Dv.Bit()
}

func (c *rxCodec) Fold(data, flags []byte) (fdata, fflags []byte) {
	if c.selectMode() {
		return link.FoldNibbles(data, flags)
	}
	return data, flags
}

func (c *rxCodec) IsSFD(cur, prev byte, hasPrev bool) bool {
	return cur == eth.EthSFD || cur == sfdHighNibble
}

// Source drives frames onto a GMII bus.
type Source struct {
	*link.Transmitter
	codec *txCodec
}

// MakeSource builds and starts a GMII transmit model on the rising edge of
// clock. reset, enable, and miiSelect may be nil.
func MakeSource(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable, miiSelect *bus.Signal) *Source {

	sig.check()
	sig.Data.Init(0)
	if sig.Er != nil {
		sig.Er.Init(0)
	}
	sig.Dv.Init(0)

	c := &txCodec{codec{sig: sig, miiSelect: miiSelect}}
	queue := eth.MakeTxQueue(ctx, name+"/Queue")
	return &Source{
		Transmitter: link.MakeTransmitter(ctx, name, c, queue, clock.Rising(), reset, enable),
		codec:       c,
	}
}

// SetMiiMode switches the source between byte-per-clock and
// nibble-per-clock operation. It applies from the next frame.
func (s *Source) SetMiiMode(on bool) {
	s.codec.miiMode = on
}

// Sink reassembles frames from a GMII bus.
type Sink struct {
	*link.Receiver
	codec *rxCodec
}

// MakeSink builds and starts a GMII receive model sampling on the rising
// edge of clock. reset, enable, and miiSelect may be nil.
func MakeSink(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable, miiSelect *bus.Signal) *Sink {

	sig.check()
	c := &rxCodec{codec{sig: sig, miiSelect: miiSelect}}
	queue := eth.MakeRxQueue(ctx, name+"/Queue")
	return &Sink{
		Receiver: link.MakeReceiver(ctx, name, c, queue, clock.Rising(), reset, enable),
		codec:    c,
	}
}

// SetMiiMode switches the sink between byte-per-clock and nibble-per-clock
// reassembly. It applies to the next completed frame.
func (s *Sink) SetMiiMode(on bool) {
	s.codec.miiMode = on
}
