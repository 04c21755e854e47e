package rgmii

import (
	"testing"
	"time"

	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

func makeLink(t *testing.T, period time.Duration, miiMode bool) (*component.SimController, *Source, *Sink) {
	t.Helper()
	sim := component.MakeSimControllerSeeded(11, model.TimeZero)
	clock := bus.MakeSignal(sim, "clk", 1)
	clock.Init(0)
	bus.StartClock(sim, clock, period)

	sig := Signals{
		Data: bus.MakeSignal(sim, "d", 4),
		Ctl:  bus.MakeSignal(sim, "ctl", 1),
	}
	source := MakeSource(sim, "rgmii.source", sig, clock, nil, nil, nil)
	sink := MakeSink(sim, "rgmii.sink", sig, clock, nil, nil, nil)
	source.SetMiiMode(miiMode)
	sink.SetMiiMode(miiMode)
	return sim, source, sink
}

func TestDoubleRateRoundTrip(t *testing.T) {
	sim, source, sink := makeLink(t, link.Speed1G.BytePeriod(), false)

	var sent []*eth.Frame
	for _, size := range []int{46, 60, 1500} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i ^ 0x5A)
		}
		f := eth.FrameFromPayload(payload)
		sent = append(sent, f)
		if err := source.SendNowait(f); err != nil {
			t.Fatal(err)
		}
	}
	sim.Advance(sim.Now().Add(50 * time.Microsecond))

	for _, want := range sent {
		got := sink.RecvNowait()
		if got == nil {
			t.Fatalf("frame with %d wire bytes never received", want.Len())
		}
		if !got.Equals(want) {
			t.Errorf("double-rate round trip corrupted a %d-byte frame", want.Len())
		}
		if !got.CheckFCS() {
			t.Errorf("FCS check failed on %d-byte frame", got.Len())
		}
		if !got.SimTimeSFD.TimeExists() {
			t.Error("received frame has no SFD timestamp")
		}
	}
}

func TestDuplicatedNibbleRoundTrip(t *testing.T) {
	sim, source, sink := makeLink(t, link.Speed100M.NibblePeriod(), true)

	want := eth.FrameFromPayload([]byte{0xCA, 0xFE, 0x01, 0x02})
	if err := source.SendNowait(want); err != nil {
		t.Fatal(err)
	}
	sim.Advance(sim.Now().Add(20 * time.Microsecond))

	got := sink.RecvNowait()
	if got == nil {
		t.Fatal("no frame received")
	}
	if !got.Equals(want) {
		t.Errorf("duplicated-nibble round trip corrupted the frame: %x", got.Data)
	}
	if !got.CheckFCS() {
		t.Error("FCS check failed after nibble reassembly")
	}
}

func TestCtlCarriesErrorOnRisingPhase(t *testing.T) {
	sim, source, sink := makeLink(t, link.Speed1G.BytePeriod(), false)

	f := eth.FrameFromPayload(make([]byte, 60))
	f.Flags = make([]byte, f.Len())
	f.Flags[30] = 1
	if err := source.SendNowait(f); err != nil {
		t.Fatal(err)
	}
	sim.Advance(sim.Now().Add(5 * time.Microsecond))

	got := sink.RecvNowait()
	if got == nil {
		t.Fatal("no frame received")
	}
	if got.Flags == nil || got.Flags[30] != 1 {
		t.Error("error flag did not survive the double-rate round trip")
	}
	for i, e := range got.Flags {
		if i != 30 && e != 0 {
			t.Errorf("spurious error flag on byte %d", i)
		}
	}
}

func TestResetForcesBusLow(t *testing.T) {
	sim := component.MakeSimControllerSeeded(11, model.TimeZero)
	clock := bus.MakeSignal(sim, "clk", 1)
	clock.Init(0)
	bus.StartClock(sim, clock, link.Speed1G.BytePeriod())
	reset := bus.MakeSignal(sim, "rst", 1)
	reset.Init(0)

	sig := Signals{
		Data: bus.MakeSignal(sim, "d", 4),
		Ctl:  bus.MakeSignal(sim, "ctl", 1),
	}
	source := MakeSource(sim, "rgmii.source", sig, clock, reset, nil, nil)

	completions := 0
	f := eth.FrameFromPayload(make([]byte, 1500))
	f.TxComplete = func(*eth.Frame) { completions++ }
	if err := source.SendNowait(f); err != nil {
		t.Fatal(err)
	}
	sim.Advance(sim.Now().Add(200 * time.Nanosecond))

	reset.Set(1)
	sim.Advance(sim.Now().Add(100 * time.Nanosecond))
	if completions != 1 {
		t.Fatalf("flushed frame completed %d times", completions)
	}
	if sig.Ctl.Bit() {
		t.Error("ctl still asserted while reset held")
	}
	if sig.Data.Peek() != 0 {
		t.Error("data not forced low while reset held")
	}
	if !source.Idle() {
		t.Error("source not idle while reset held")
	}
}
