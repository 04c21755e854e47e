package gmii

import (
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/simlink/ethphy/eth"
	"github.com/simlink/ethphy/eth/link"
	"github.com/simlink/ethphy/sim/bus"
	"github.com/simlink/ethphy/sim/component"
	"github.com/simlink/ethphy/sim/model"
)

type testBench struct {
	sim    *component.SimController
	clock  *bus.Signal
	source *Source
	sink   *Sink
}

func makeTestBench(t *testing.T, period time.Duration, miiMode bool) *testBench {
	t.Helper()
	sim := component.MakeSimControllerSeeded(42, model.TimeZero)
	clock := bus.MakeSignal(sim, "clk", 1)
	clock.Init(0)
	bus.StartClock(sim, clock, period)

	sig := Signals{
		Data: bus.MakeSignal(sim, "d", 8),
		Er:   bus.MakeSignal(sim, "er", 1),
		Dv:   bus.MakeSignal(sim, "dv", 1),
	}
	source := MakeSource(sim, "gmii.source", sig, clock, nil, nil, nil)
	sink := MakeSink(sim, "gmii.sink", sig, clock, nil, nil, nil)
	source.SetMiiMode(miiMode)
	sink.SetMiiMode(miiMode)
	return &testBench{sim: sim, clock: clock, source: source, sink: sink}
}

func (tb *testBench) runFor(d time.Duration) {
	tb.sim.Advance(tb.sim.Now().Add(d))
}

func TestByteRoundTrip(t *testing.T) {
	tb := makeTestBench(t, 8*time.Nanosecond, false)

	var sent []*eth.Frame
	for _, size := range []int{46, 60, 1500, 9000} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}
		f := eth.FrameFromPayload(payload)
		sent = append(sent, f)
		if err := tb.source.SendNowait(f); err != nil {
			t.Fatalf("send of %d-byte payload failed: %v", size, err)
		}
	}

	tb.runFor(200 * time.Microsecond)

	for _, want := range sent {
		got := tb.sink.RecvNowait()
		if got == nil {
			t.Fatalf("frame with %d wire bytes never received", want.Len())
		}
		if !got.Equals(want) {
			t.Errorf("received frame differs from sent (%d vs %d wire bytes)",
				got.Len(), want.Len())
		}
		if !got.CheckFCS() {
			t.Errorf("FCS check failed on received %d-byte frame", got.Len())
		}
		if !got.SimTimeSFD.TimeExists() {
			t.Error("received frame has no SFD timestamp")
		}
	}
	if extra := tb.sink.RecvNowait(); extra != nil {
		t.Errorf("unexpected extra frame: %v", extra)
	}
}

func TestNibbleRoundTrip(t *testing.T) {
	tb := makeTestBench(t, link.Speed100M.NibblePeriod(), true)

	want := eth.FrameFromPayload([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err := tb.source.SendNowait(want); err != nil {
		t.Fatal(err)
	}
	tb.runFor(20 * time.Microsecond)

	got := tb.sink.RecvNowait()
	if got == nil {
		t.Fatal("no frame received")
	}
	if !got.Equals(want) {
		t.Errorf("nibble-serial round trip corrupted the frame: %x", got.Data)
	}
	if !got.CheckFCS() {
		t.Error("FCS check failed after nibble reassembly")
	}
}

func TestInterFrameGapLowerBound(t *testing.T) {
	const period = 8 * time.Nanosecond
	tb := makeTestBench(t, period, false)
	tb.source.IFG = 12

	const count = 5
	for i := 0; i < count; i++ {
		if err := tb.source.SendNowait(eth.FrameFromPayload(make([]byte, 60))); err != nil {
			t.Fatal(err)
		}
	}
	tb.runFor(10 * time.Microsecond)

	var frames []*eth.Frame
	for f := tb.sink.RecvNowait(); f != nil; f = tb.sink.RecvNowait() {
		frames = append(frames, f)
	}
	if len(frames) != count {
		t.Fatalf("received %d frames, expected %d", len(frames), count)
	}
	for i := 1; i < len(frames); i++ {
		gap := frames[i].SimTimeStart.Since(frames[i-1].SimTimeEnd)
		gapCycles := int(gap / period)
		if gapCycles < tb.source.IFG {
			t.Errorf("gap before frame %d is %d cycles, below the configured %d",
				i, gapCycles, tb.source.IFG)
		}
	}
}

func TestErrorFlagPropagation(t *testing.T) {
	tb := makeTestBench(t, 8*time.Nanosecond, false)

	f := eth.FrameFromPayload(make([]byte, 60))
	f.Flags = make([]byte, f.Len())
	f.Flags[20] = 1
	if err := tb.source.SendNowait(f); err != nil {
		t.Fatal(err)
	}
	tb.runFor(5 * time.Microsecond)

	got := tb.sink.RecvNowait()
	if got == nil {
		t.Fatal("no frame received")
	}
	if got.Flags == nil || got.Flags[20] != 1 {
		t.Error("error flag did not survive the round trip")
	}
}

func TestResetFlushesActiveFrame(t *testing.T) {
	sim := component.MakeSimControllerSeeded(42, model.TimeZero)
	clock := bus.MakeSignal(sim, "clk", 1)
	clock.Init(0)
	bus.StartClock(sim, clock, 8*time.Nanosecond)
	reset := bus.MakeSignal(sim, "rst", 1)
	reset.Init(0)

	sig := Signals{
		Data: bus.MakeSignal(sim, "d", 8),
		Er:   bus.MakeSignal(sim, "er", 1),
		Dv:   bus.MakeSignal(sim, "dv", 1),
	}
	source := MakeSource(sim, "gmii.source", sig, clock, reset, nil, nil)
	sink := MakeSink(sim, "gmii.sink", sig, clock, reset, nil, nil)

	completions := 0
	f := eth.FrameFromPayload(make([]byte, 1500))
	f.TxComplete = func(done *eth.Frame) { completions++ }
	if err := source.SendNowait(f); err != nil {
		t.Fatal(err)
	}

	// let transmission get partway through, then yank reset
	sim.Advance(sim.Now().Add(400 * time.Nanosecond))
	reset.Set(1)
	sim.Advance(sim.Now().Add(100 * time.Nanosecond))

	if completions != 1 {
		t.Fatalf("flushed frame completed %d times, expected exactly once", completions)
	}
	if f.SimTimeEnd.TimeExists() {
		t.Error("flushed frame carries an end timestamp")
	}
	if sig.Dv.Bit() {
		t.Error("data valid still asserted after reset")
	}
	if !source.Idle() {
		t.Error("source not idle after reset")
	}

	// release reset and confirm the link works again, with the partial
	// frame discarded by the sink
	reset.Set(0)
	sim.Advance(sim.Now().Add(100 * time.Nanosecond))
	want := eth.FrameFromPayload([]byte{1, 2, 3, 4})
	if err := source.SendNowait(want); err != nil {
		t.Fatal(err)
	}
	sim.Advance(sim.Now().Add(5 * time.Microsecond))

	got := sink.RecvNowait()
	if got == nil {
		t.Fatal("no frame received after reset released")
	}
	if !got.Equals(want) {
		t.Error("frame after reset does not match; partial pre-reset data leaked")
	}
	if sink.RecvNowait() != nil {
		t.Error("partial pre-reset frame was delivered")
	}
	if completions != 1 {
		t.Errorf("completion count changed to %d", completions)
	}
}

func TestFlowControlBackpressure(t *testing.T) {
	tb := makeTestBench(t, 8*time.Nanosecond, false)
	tb.source.Queue().LimitBytes = 200

	fill := func() *eth.Frame { return eth.FrameFromPayload(make([]byte, 200)) }
	if err := tb.source.SendNowait(fill()); err != nil {
		t.Fatalf("first frame rejected: %v", err)
	}
	if !tb.source.Queue().Full() {
		t.Fatal("queue not full after exceeding byte limit")
	}
	if err := tb.source.SendNowait(fill()); err != eth.ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	// retry with growing delays until the engine drains the queue
	var accepted bool
	component.BuildTwixt(tb.sim, nil, func(io *component.TwixtIO) {
		b := &backoff.Backoff{
			Min:    100 * time.Nanosecond,
			Max:    10 * time.Microsecond,
			Factor: 2,
		}
		for tb.source.SendNowait(fill()) != nil {
			io.YieldUntil(tb.sim.Now().Add(b.Duration()))
		}
		accepted = true
	})

	tb.runFor(50 * time.Microsecond)
	if !accepted {
		t.Fatal("queue never drained below its byte limit")
	}
	if tb.sink.RecvNowait() == nil || tb.sink.RecvNowait() == nil {
		t.Fatal("fewer than 2 frames received")
	}
}

func TestPhySpeedSelection(t *testing.T) {
	sim := component.MakeSimControllerSeeded(42, model.TimeZero)
	txSig := Signals{
		Data: bus.MakeSignal(sim, "txd", 8),
		Er:   bus.MakeSignal(sim, "tx_er", 1),
		Dv:   bus.MakeSignal(sim, "tx_en", 1),
	}
	rxSig := Signals{
		Data: bus.MakeSignal(sim, "rxd", 8),
		Er:   bus.MakeSignal(sim, "rx_er", 1),
		Dv:   bus.MakeSignal(sim, "rx_dv", 1),
	}
	txClk := bus.MakeSignal(sim, "tx_clk", 1)
	gtxClk := bus.MakeSignal(sim, "gtx_clk", 1)
	rxClk := bus.MakeSignal(sim, "rx_clk", 1)
	gtxClk.Init(0)
	bus.StartClock(sim, gtxClk, link.Speed1G.BytePeriod())

	phy := MakePhy(sim, "phy", txSig, txClk, gtxClk, rxSig, rxClk, nil, link.Speed1G)
	if phy.Speed() != link.Speed1G {
		t.Errorf("wrong initial speed %v", phy.Speed())
	}

	// receive path at 1000 Mb/s moves whole bytes on the PHY's rx_clk
	want := eth.FrameFromPayload([]byte{0x10, 0x20, 0x30})
	if err := phy.Rx.SendNowait(want); err != nil {
		t.Fatal(err)
	}
	sinkSim := MakeSink(sim, "mac.rx", rxSig, rxClk, nil, nil, nil)
	sim.Advance(sim.Now().Add(5 * time.Microsecond))
	got := sinkSim.RecvNowait()
	if got == nil || !got.Equals(want) {
		t.Fatalf("receive path round trip failed: %v", got)
	}

	// dropping to 100 Mb/s switches both paths to nibble operation
	phy.SetSpeed(link.Speed100M)
	sinkSim.SetMiiMode(true)
	sinkSim.Restart()
	want2 := eth.FrameFromPayload([]byte{0x44, 0x55})
	if err := phy.Rx.SendNowait(want2); err != nil {
		t.Fatal(err)
	}
	sim.Advance(sim.Now().Add(20 * time.Microsecond))
	got2 := sinkSim.RecvNowait()
	if got2 == nil || !got2.Equals(want2) {
		t.Fatalf("nibble receive path round trip failed: %v", got2)
	}

	defer func() {
		if recover() == nil {
			t.Error("invalid speed selection did not panic")
		}
	}()
	phy.SetSpeed(link.Speed(12345))
}
