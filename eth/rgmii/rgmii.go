// Package rgmii models the reduced-pin gigabit media-independent interface.
// Data crosses a 4-bit bus on both clock edges: the low nibble after the
// falling edge, the high nibble after the following rising edge. The single
// ctl line carries data-valid on the falling-edge phase and valid XOR error
// on the rising-edge phase. Below gigabit speed the bus degrades to
// single-rate MII framing with each nibble duplicated into both halves of
// the transfer.
package rgmii

import (
	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/model"
)

// sfdMarkers are the transfer values that can carry the start delimiter:
// the whole SFD byte, its bare high nibble, and its duplicated high nibble.
var sfdMarkers = []byte{eth.EthSFD, 0x0D, 0xDD}

// Signals is one direction of an RGMII bus.
type Signals struct {
	Data *bus.Signal
	Ctl  *bus.Signal
}

func (s Signals) check() {
	if s.Data == nil || s.Data.Width() != 4 {
		panic("RGMII data signal must be 4 bits wide")
	}
	if s.Ctl == nil || s.Ctl.Width() != 1 {
		panic("RGMII ctl signal must be 1 bit wide")
	}
}

type txCodec struct {
	sig       Signals
	miiSelect *bus.Signal
	miiMode   bool

	// cur is the transfer being presented across the current clock cycle:
	// low nibble driven after the falling edge, high nibble after the next
	// rising edge.
	cur struct {
		d  byte
		er byte
		en bool
	}
}

// attach drives the double-data-rate output phases. The rising-edge drive
// must be subscribed before the transmit engine so it presents the previous
// cycle's high nibble before the engine selects the next transfer.
func (c *txCodec) attach(clock *bus.Signal) {
	clock.Rising().Subscribe(func() {
		c.sig.Data.Set(uint64(c.cur.d >> 4))
		c.sig.Ctl.Set(ctlBit(c.cur.en != (c.cur.er != 0)))
	})
	clock.Falling().Subscribe(func() {
		c.sig.Data.Set(uint64(c.cur.d & 0x0F))
		c.sig.Ctl.Set(ctlBit(c.cur.en))
	})
}

func ctlBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (c *txCodec) Expand(data, flags []byte) []link.Unit {
	if c.miiSelect != nil {
		c.miiMode = c.miiSelect.Bit()
	}
	var units []link.Unit
	if c.miiMode {
		units = link.ExpandNibbles(data, flags, true)
	} else {
		units = link.ExpandBytes(data, flags)
	}
	return link.MarkSFD(units, sfdMarkers...)
}

func (c *txCodec) Drive(u link.Unit) {
	c.cur.d = u.Data
	c.cur.er = u.Flag
	c.cur.en = true
}

func (c *txCodec) DriveIdle() {
	c.cur.d = 0
	c.cur.er = 0
	c.cur.en = false
}

func (c *txCodec) DriveReset() {
	c.DriveIdle()
	c.sig.Data.Set(0)
	c.sig.Ctl.Set(0)
}

type rxCodec struct {
	sig       Signals
	miiSelect *bus.Signal
	miiMode   bool

	// captured on the rising edge, combined on the falling edge
	lowNibble byte
	dv        bool
}

func (c *rxCodec) attach(clock *bus.Signal) {
	clock.Rising().Subscribe(func() {
		c.lowNibble = byte(c.sig.Data.Peek())
		c.dv = c.sig.Ctl.Bit()
	})
}

func (c *rxCodec) Sample() (u link.Unit, valid bool) {
	d := byte(c.sig.Data.Peek())<<4 | c.lowNibble
	er := c.dv != c.sig.Ctl.Bit()
	return link.Unit{Data: d, Flag: byte(ctlBit(er))}, c.dv
}

func (c *rxCodec) Fold(data, flags []byte) (fdata, fflags []byte) {
	if c.miiSelect != nil {
		c.miiMode = c.miiSelect.Bit()
	}
	if c.miiMode {
		return link.FoldNibbles(data, flags)
	}
	return data, flags
}

func (c *rxCodec) IsSFD(cur, prev byte, hasPrev bool) bool {
	for _, m := range sfdMarkers {
		if cur == m {
			return true
		}
	}
	return false
}

// Source drives frames onto an RGMII bus.
type Source struct {
	*link.Transmitter
	codec *txCodec
}

// MakeSource builds and starts an RGMII transmit model. reset, enable, and
// miiSelect may be nil.
func MakeSource(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable, miiSelect *bus.Signal) *Source {

	sig.check()
	sig.Data.Init(0)
	sig.Ctl.Init(0)

	c := &txCodec{sig: sig, miiSelect: miiSelect}
	c.attach(clock)
	queue := eth.MakeTxQueue(ctx, name+"/Queue")
	return &Source{
		Transmitter: link.MakeTransmitter(ctx, name, c, queue, clock.Rising(), reset, enable),
		codec:       c,
	}
}

// SetMiiMode switches the source between double-rate byte transfers and
// duplicated-nibble MII transfers. It applies from the next frame.
func (s *Source) SetMiiMode(on bool) {
	s.codec.miiMode = on
}

// Sink reassembles frames from an RGMII bus.
type Sink struct {
	*link.Receiver
	codec *rxCodec
}

// MakeSink builds and starts an RGMII receive model. Transfers complete on
// the falling edge, once both nibbles have been captured. reset, enable,
// and miiSelect may be nil.
func MakeSink(ctx model.SimContext, name string, sig Signals, clock *bus.Signal,
	reset, enable, miiSelect *bus.Signal) *Sink {

	sig.check()
	c := &rxCodec{sig: sig, miiSelect: miiSelect}
	c.attach(clock)
	queue := eth.MakeRxQueue(ctx, name+"/Queue")
	return &Sink{
		Receiver: link.MakeReceiver(ctx, name, c, queue, clock.Falling(), reset, enable),
		codec:    c,
	}
}

// SetMiiMode switches the sink between byte and duplicated-nibble
// reassembly. It applies to the next completed frame.
func (s *Sink) SetMiiMode(on bool) {
	s.codec.miiMode = on
}
