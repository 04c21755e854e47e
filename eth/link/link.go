// Package link holds the generic serial transfer engines shared by the
// byte-or-narrower media-independent interface models. A transmit engine
// pulls frames from a queue, expands them into per-cycle transfer units
// through a bus codec, and drives one unit per clock cycle with inter-frame
// gap accounting. A receive engine samples the bus each cycle, accumulates
// transfer values while valid is asserted, and folds them back into frame
// bytes when it deasserts. All interface-specific behavior, including lane
// width, start delimiter recognition, and double-data-rate drive, lives in
// the codec.
package link

// Unit is one clock cycle's worth of a frame on the bus: a transfer value of
// at most eight bits plus a per-transfer flag. On transmit the flag drives
// the error signal; on receive it records it. SFD marks the unit whose
// transfer carries the start frame delimiter, for timestamping.
type Unit struct {
	Data byte
	Flag byte
	SFD  bool
}

// TxBus is the transmit side of a bus codec.
type TxBus interface {
	// Expand splits frame bytes into per-cycle transfer units, marking the
	// first unit that carries the start delimiter.
	Expand(data, flags []byte) []Unit

	// Drive presents one unit on the bus with the valid signal asserted.
	Drive(u Unit)

	// DriveIdle presents the idle bus state with valid deasserted.
	DriveIdle()

	// DriveReset forces the idle bus state immediately and clears any
	// codec-internal drive state, for use while reset is asserted.
	DriveReset()
}

// RxBus is the receive side of a bus codec.
type RxBus interface {
	// Sample reads one transfer from the bus. valid reports whether the
	// valid signal was asserted; u is meaningless otherwise.
	Sample() (u Unit, valid bool)

	// Fold reassembles accumulated transfer values into frame bytes and
	// per-byte flags.
	Fold(data, flags []byte) (fdata, fflags []byte)

	// IsSFD reports whether a captured transfer value marks the start frame
	// delimiter. prev is the previously captured value; hasPrev is false
	// before anything was captured.
	IsSFD(cur, prev byte, hasPrev bool) bool
}
