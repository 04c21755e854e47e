package eth

import (
	"testing"
)

// lanes assembles an XGMII transfer from eight lane bytes and a control mask.
func lanes(bytes [8]byte, ctrl uint8) (uint64, uint8) {
	var data uint64
	for k, b := range bytes {
		data |= uint64(b) << (k * 8)
	}
	return data, ctrl
}

func roundTripBlock(t *testing.T, name string, data uint64, ctrl uint8, wantSync BaseRSync) {
	t.Helper()
	sync, payload, err := EncodeBaseRBlock(data, ctrl)
	if err != nil {
		t.Fatalf("%s: encode failed: %v", name, err)
	}
	if sync != wantSync {
		t.Errorf("%s: sync header %#02b, expected %#02b", name, uint8(sync), uint8(wantSync))
	}
	gotData, gotCtrl, err := DecodeBaseRBlock(sync, payload)
	if err != nil {
		t.Fatalf("%s: decode failed: %v", name, err)
	}
	if gotData != data || gotCtrl != ctrl {
		t.Errorf("%s: round trip mismatch: got data=%#016x ctrl=%#02x, expected data=%#016x ctrl=%#02x",
			name, gotData, gotCtrl, data, ctrl)
	}
}

func TestBaseRDataBlock(t *testing.T) {
	data, ctrl := lanes([8]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}, 0)
	sync, payload, err := EncodeBaseRBlock(data, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	if sync != BaseRSyncData {
		t.Errorf("data transfer encoded with sync %#02b", uint8(sync))
	}
	if payload != data {
		t.Errorf("data block payload %#016x, expected the lane bytes verbatim", payload)
	}
	roundTripBlock(t, "data", data, ctrl, BaseRSyncData)
}

func TestBaseRIdleBlock(t *testing.T) {
	data, ctrl := XgmiiIdlePattern(8)
	sync, payload, err := EncodeBaseRBlock(data, uint8(ctrl))
	if err != nil {
		t.Fatal(err)
	}
	if sync != BaseRSyncCtrl {
		t.Errorf("idle transfer encoded with sync %#02b", uint8(sync))
	}
	if BaseRBlockType(payload) != BaseRTypeCtrl {
		t.Errorf("idle block type %#02x, expected %#02x", byte(payload), uint8(BaseRTypeCtrl))
	}
	// eight IDLE codes of 0x00 leave every C field clear
	if payload != uint64(BaseRTypeCtrl) {
		t.Errorf("idle block payload %#016x", payload)
	}
	roundTripBlock(t, "idle", data, uint8(ctrl), BaseRSyncCtrl)
}

func TestBaseRStartBlocks(t *testing.T) {
	data, ctrl := lanes([8]byte{byte(XgmiiStart), 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0xD5}, 0x01)
	roundTripBlock(t, "start lane 0", data, ctrl, BaseRSyncCtrl)

	data, ctrl = lanes([8]byte{
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle),
		byte(XgmiiStart), 0x55, 0x55, 0x55,
	}, 0x1F)
	roundTripBlock(t, "start lane 4", data, ctrl, BaseRSyncCtrl)
}

func TestBaseRTermBlocks(t *testing.T) {
	for termLane := 0; termLane < 8; termLane++ {
		var b [8]byte
		ctrl := uint8(0)
		for k := 0; k < termLane; k++ {
			b[k] = byte(0xA0 + k)
		}
		b[termLane] = byte(XgmiiTerm)
		ctrl |= 1 << termLane
		for k := termLane + 1; k < 8; k++ {
			b[k] = byte(XgmiiIdle)
			ctrl |= 1 << k
		}
		data, ctrl := lanes(b, ctrl)
		roundTripBlock(t, "term", data, ctrl, BaseRSyncCtrl)
	}
}

func TestBaseROrderedSetBlocks(t *testing.T) {
	data, ctrl := lanes([8]byte{
		byte(XgmiiSeqOS), 0x01, 0x02, 0x03,
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle),
	}, 0xF1)
	roundTripBlock(t, "OS in lane 0", data, ctrl, BaseRSyncCtrl)

	data, ctrl = lanes([8]byte{
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle),
		byte(XgmiiSigOS), 0x04, 0x05, 0x06,
	}, 0x1F)
	roundTripBlock(t, "OS in lane 4", data, ctrl, BaseRSyncCtrl)

	data, ctrl = lanes([8]byte{
		byte(XgmiiSeqOS), 0x01, 0x02, 0x03,
		byte(XgmiiSigOS), 0x04, 0x05, 0x06,
	}, 0x11)
	roundTripBlock(t, "OS in both halves", data, ctrl, BaseRSyncCtrl)

	data, ctrl = lanes([8]byte{
		byte(XgmiiSeqOS), 0x01, 0x02, 0x03,
		byte(XgmiiStart), 0x55, 0x55, 0x55,
	}, 0x11)
	roundTripBlock(t, "OS then start", data, ctrl, BaseRSyncCtrl)
}

func TestBaseRMixedControlBlock(t *testing.T) {
	data, ctrl := lanes([8]byte{
		byte(XgmiiIdle), byte(XgmiiError), byte(XgmiiLPI), byte(XgmiiRes0),
		byte(XgmiiRes3), byte(XgmiiRes5), byte(XgmiiIdle), byte(XgmiiError),
	}, 0xFF)
	roundTripBlock(t, "mixed control", data, ctrl, BaseRSyncCtrl)
}

func TestBaseREncodeRejectsInvalidLanes(t *testing.T) {
	// START outside lanes 0 and 4
	data, ctrl := lanes([8]byte{
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiStart), 0x55,
		0x55, 0x55, 0x55, 0x55,
	}, 0x07)
	if _, _, err := EncodeBaseRBlock(data, ctrl); err == nil {
		t.Error("START in lane 2 was accepted")
	}

	// two TERM characters
	data, ctrl = lanes([8]byte{
		byte(XgmiiTerm), byte(XgmiiTerm), byte(XgmiiIdle), byte(XgmiiIdle),
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle),
	}, 0xFF)
	if _, _, err := EncodeBaseRBlock(data, ctrl); err == nil {
		t.Error("two TERM characters were accepted")
	}

	// data byte in a position that requires a control code
	data, ctrl = lanes([8]byte{
		byte(XgmiiIdle), 0x42, byte(XgmiiIdle), byte(XgmiiIdle),
		byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle), byte(XgmiiIdle),
	}, 0xFD)
	if _, _, err := EncodeBaseRBlock(data, ctrl); err == nil {
		t.Error("data lane in an all-control block was accepted")
	}
}

func TestBaseRDecodeRejectsBadBlocks(t *testing.T) {
	if _, _, err := DecodeBaseRBlock(BaseRSync(0b11), 0); err == nil {
		t.Error("invalid sync header was accepted")
	}
	if _, _, err := DecodeBaseRBlock(BaseRSyncCtrl, 0x42); err == nil {
		t.Error("invalid block type was accepted")
	}
	// valid type, garbage C code in lane 1
	payload := uint64(BaseRTypeCtrl) | uint64(0x7F)<<15
	if _, _, err := DecodeBaseRBlock(BaseRSyncCtrl, payload); err == nil {
		t.Error("invalid control code was accepted")
	}
	// OS0 block with a garbage O code
	payload = uint64(BaseRTypeOS0) | uint64(0x5)<<32
	if _, _, err := DecodeBaseRBlock(BaseRSyncCtrl, payload); err == nil {
		t.Error("invalid O code was accepted")
	}
}
