package eth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
	"github.com/simlink/ethphy/sim/model"
)

// Frame is a single Ethernet frame as it crosses a media-independent
// interface. Data holds every byte on the wire, preamble and SFD included,
// and usually the FCS as well. Flags holds one per-byte error indication for
// each byte of Data; a nil Flags means no byte was flagged.
type Frame struct {
	// ID tags the frame across queues and trace files. It never travels on
	// the wire.
	ID    uuid.UUID
	Data  []byte
	Flags []byte

	// Timestamps are stamped by the transmit or receive engine as the frame
	// passes. SimTimeSFD marks the cycle the SFD crossed the interface.
	SimTimeStart model.VirtualTime
	SimTimeSFD   model.VirtualTime
	SimTimeEnd   model.VirtualTime

	// StartLane is the lane the start control character occupied, for lane
	// groups wider than one byte.
	StartLane int

	// TxComplete, if set, is called exactly once when the transmit engine has
	// finished with the frame, whether it was sent in full or flushed by a
	// reset.
	TxComplete func(*Frame)

	completed bool
}

// MakeFrame wraps raw wire bytes, preamble included, without padding or FCS
// computation.
func MakeFrame(data []byte) *Frame {
	return &Frame{
		ID:           uuid.New(),
		Data:         data,
		SimTimeStart: model.TimeNever,
		SimTimeSFD:   model.TimeNever,
		SimTimeEnd:   model.TimeNever,
	}
}

// FrameFromRawPayload builds a frame from MAC-level bytes (destination
// address onward) by prepending the preamble and SFD. No padding or FCS is
// added.
func FrameFromRawPayload(payload []byte) *Frame {
	data := make([]byte, 0, len(EthPreamble)+len(payload))
	data = append(data, EthPreamble...)
	data = append(data, payload...)
	return MakeFrame(data)
}

// FrameFromPayload builds a complete well-formed frame: the payload is
// zero-padded to the 60-byte minimum, the FCS is computed and appended, and
// the preamble and SFD are prepended.
func FrameFromPayload(payload []byte) *Frame {
	padded := make([]byte, 0, len(payload)+FCSLen)
	padded = append(padded, payload...)
	for len(padded) < MinFrameLen {
		padded = append(padded, 0)
	}
	fcs := crc32.ChecksumIEEE(padded)
	padded = binary.LittleEndian.AppendUint32(padded, fcs)
	return FrameFromRawPayload(padded)
}

// PreambleLen reports how many preamble bytes precede the SFD, located by
// scanning for the first SFD byte.
func (f *Frame) PreambleLen() int {
	for i, b := range f.Data {
		if b == EthSFD {
			return i
		}
	}
	return len(f.Data)
}

// Preamble returns the preamble and SFD bytes.
func (f *Frame) Preamble() []byte {
	n := f.PreambleLen()
	if n < len(f.Data) {
		n++
	}
	return f.Data[:n]
}

// Payload returns the MAC-level bytes after the SFD. When stripFCS is set
// the trailing four FCS bytes are removed as well.
func (f *Frame) Payload(stripFCS bool) []byte {
	n := f.PreambleLen()
	if n < len(f.Data) {
		n++
	}
	payload := f.Data[n:]
	if stripFCS && len(payload) >= FCSLen {
		payload = payload[:len(payload)-FCSLen]
	}
	return payload
}

// FCS returns the trailing frame check sequence bytes, or nil if the frame
// is too short to carry one.
func (f *Frame) FCS() []byte {
	if len(f.Data) < FCSLen {
		return nil
	}
	return f.Data[len(f.Data)-FCSLen:]
}

// CheckFCS recomputes the CRC-32 over the payload and compares it to the
// trailing FCS.
func (f *Frame) CheckFCS() bool {
	payload := f.Payload(false)
	if len(payload) < FCSLen {
		return false
	}
	body := payload[:len(payload)-FCSLen]
	want := binary.LittleEndian.Uint32(payload[len(payload)-FCSLen:])
	return crc32.ChecksumIEEE(body) == want
}

// Normalize makes Flags the same length as Data: a short Flags slice is
// extended with copies of its last element, and a nil Flags becomes all
// zeros.
func (f *Frame) Normalize() {
	n := len(f.Data)
	if f.Flags == nil {
		f.Flags = make([]byte, n)
		return
	}
	if len(f.Flags) > n {
		f.Flags = f.Flags[:n]
		return
	}
	for len(f.Flags) < n {
		var last byte
		if len(f.Flags) > 0 {
			last = f.Flags[len(f.Flags)-1]
		}
		f.Flags = append(f.Flags, last)
	}
}

// Compact drops Flags entirely when no byte is flagged.
func (f *Frame) Compact() {
	for _, e := range f.Flags {
		if e != 0 {
			return
		}
	}
	f.Flags = nil
}

// HandleTxComplete fires the completion callback. Repeat calls are ignored,
// so a frame flushed by a reset cannot also complete normally.
func (f *Frame) HandleTxComplete() {
	if f.completed {
		return
	}
	f.completed = true
	if f.TxComplete != nil {
		f.TxComplete(f)
	}
}

// Equals compares wire bytes only; flags, timestamps, and identity are
// ignored.
func (f *Frame) Equals(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return bytes.Equal(f.Data, other.Data)
}

// Len reports the wire length in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame[id=%s, len=%d, sfd=%v]", f.ID, len(f.Data), f.SimTimeSFD)
}
