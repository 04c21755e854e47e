// Package eth holds the frame entity and the interface-independent codec
// constants shared by every PHY-facing transport model: the Ethernet
// preamble, the XGMII control character set, and the BASE-R tables used for
// 10GBASE-R-style encapsulation of XGMII lane groups.
package eth

import "fmt"

// Ethernet preamble bytes.
const (
	EthPre byte = 0x55
	EthSFD byte = 0xD5
)

// EthPreamble is the standard seven preamble bytes plus the SFD.
var EthPreamble = []byte{0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0xD5}

// MinFrameLen is the minimum payload length (before FCS) that FrameFromPayload
// zero-pads to.
const MinFrameLen = 60

// FCSLen is the length of the frame check sequence.
const FCSLen = 4

// XgmiiCtrl is an XGMII control character, valid only in a lane whose control
// bit is set.
type XgmiiCtrl uint8

const (
	XgmiiIdle  XgmiiCtrl = 0x07
	XgmiiLPI   XgmiiCtrl = 0x06
	XgmiiStart XgmiiCtrl = 0xFB
	XgmiiTerm  XgmiiCtrl = 0xFD
	XgmiiError XgmiiCtrl = 0xFE
	XgmiiSeqOS XgmiiCtrl = 0x9C
	XgmiiRes0  XgmiiCtrl = 0x1C
	XgmiiRes1  XgmiiCtrl = 0x3C
	XgmiiRes2  XgmiiCtrl = 0x7C
	XgmiiRes3  XgmiiCtrl = 0xBC
	XgmiiRes4  XgmiiCtrl = 0xDC
	XgmiiRes5  XgmiiCtrl = 0xF7
	XgmiiSigOS XgmiiCtrl = 0x5C
)

func (c XgmiiCtrl) String() string {
	switch c {
	case XgmiiIdle:
		return "IDLE"
	case XgmiiLPI:
		return "LPI"
	case XgmiiStart:
		return "START"
	case XgmiiTerm:
		return "TERM"
	case XgmiiError:
		return "ERROR"
	case XgmiiSeqOS:
		return "SEQ_OS"
	case XgmiiRes0:
		return "RES_0"
	case XgmiiRes1:
		return "RES_1"
	case XgmiiRes2:
		return "RES_2"
	case XgmiiRes3:
		return "RES_3"
	case XgmiiRes4:
		return "RES_4"
	case XgmiiRes5:
		return "RES_5"
	case XgmiiSigOS:
		return "SIG_OS"
	default:
		return fmt.Sprintf("[UNKNOWN=0x%02x]", uint8(c))
	}
}

// BaseRCtrl is a 7-bit BASE-R control code.
type BaseRCtrl uint8

const (
	BaseRIdle  BaseRCtrl = 0x00
	BaseRLPI   BaseRCtrl = 0x06
	BaseRError BaseRCtrl = 0x1E
	BaseRRes0  BaseRCtrl = 0x2D
	BaseRRes1  BaseRCtrl = 0x33
	BaseRRes2  BaseRCtrl = 0x4B
	BaseRRes3  BaseRCtrl = 0x55
	BaseRRes4  BaseRCtrl = 0x66
	BaseRRes5  BaseRCtrl = 0x78
)

// BaseRO is a 4-bit BASE-R O code (ordered set identifier).
type BaseRO uint8

const (
	BaseROSeqOS BaseRO = 0x0
	BaseROSigOS BaseRO = 0xF
)

// BaseRSync is the 2-bit sync header of a 66-bit BASE-R block.
type BaseRSync uint8

const (
	BaseRSyncData BaseRSync = 0b10
	BaseRSyncCtrl BaseRSync = 0b01
)

// BaseRBlockType is the block type field of a BASE-R control block. The
// comment on each value gives the block payload layout, last field first.
type BaseRBlockType uint8

const (
	BaseRTypeCtrl    BaseRBlockType = 0x1E // C7 C6 C5 C4 C3 C2 C1 C0 BT
	BaseRTypeOS4     BaseRBlockType = 0x2D // D7 D6 D5 O4 C3 C2 C1 C0 BT
	BaseRTypeStart4  BaseRBlockType = 0x33 // D7 D6 D5    C3 C2 C1 C0 BT
	BaseRTypeOSStart BaseRBlockType = 0x66 // D7 D6 D5    O0 D3 D2 D1 BT
	BaseRTypeOS04    BaseRBlockType = 0x55 // D7 D6 D5 O4 O0 D3 D2 D1 BT
	BaseRTypeStart0  BaseRBlockType = 0x78 // D7 D6 D5 D4 D3 D2 D1    BT
	BaseRTypeOS0     BaseRBlockType = 0x4B // C7 C6 C5 C4 O0 D3 D2 D1 BT
	BaseRTypeTerm0   BaseRBlockType = 0x87 // C7 C6 C5 C4 C3 C2 C1    BT
	BaseRTypeTerm1   BaseRBlockType = 0x99 // C7 C6 C5 C4 C3 C2    D0 BT
	BaseRTypeTerm2   BaseRBlockType = 0xAA // C7 C6 C5 C4 C3    D1 D0 BT
	BaseRTypeTerm3   BaseRBlockType = 0xB4 // C7 C6 C5 C4    D2 D1 D0 BT
	BaseRTypeTerm4   BaseRBlockType = 0xCC // C7 C6 C5    D3 D2 D1 D0 BT
	BaseRTypeTerm5   BaseRBlockType = 0xD2 // C7 C6    D4 D3 D2 D1 D0 BT
	BaseRTypeTerm6   BaseRBlockType = 0xE1 // C7    D5 D4 D3 D2 D1 D0 BT
	BaseRTypeTerm7   BaseRBlockType = 0xFF //    D6 D5 D4 D3 D2 D1 D0 BT
)

// XgmiiToBaseRCtrl maps the XGMII control characters that have a BASE-R
// equivalent. The mapping is bijective over this shared subset; START, TERM,
// and the ordered-set characters are encoded structurally by the block type
// instead.
var XgmiiToBaseRCtrl = map[XgmiiCtrl]BaseRCtrl{
	XgmiiIdle:  BaseRIdle,
	XgmiiLPI:   BaseRLPI,
	XgmiiError: BaseRError,
	XgmiiRes0:  BaseRRes0,
	XgmiiRes1:  BaseRRes1,
	XgmiiRes2:  BaseRRes2,
	XgmiiRes3:  BaseRRes3,
	XgmiiRes4:  BaseRRes4,
	XgmiiRes5:  BaseRRes5,
}

// BaseRToXgmiiCtrl is the inverse of XgmiiToBaseRCtrl.
var BaseRToXgmiiCtrl = map[BaseRCtrl]XgmiiCtrl{
	BaseRIdle:  XgmiiIdle,
	BaseRLPI:   XgmiiLPI,
	BaseRError: XgmiiError,
	BaseRRes0:  XgmiiRes0,
	BaseRRes1:  XgmiiRes1,
	BaseRRes2:  XgmiiRes2,
	BaseRRes3:  XgmiiRes3,
	BaseRRes4:  XgmiiRes4,
	BaseRRes5:  XgmiiRes5,
}

// BaseRTermLane maps a terminate block type to the lane the TERM character
// occupies.
var BaseRTermLane = map[BaseRBlockType]int{
	BaseRTypeTerm0: 0,
	BaseRTypeTerm1: 1,
	BaseRTypeTerm2: 2,
	BaseRTypeTerm3: 3,
	BaseRTypeTerm4: 4,
	BaseRTypeTerm5: 5,
	BaseRTypeTerm6: 6,
	BaseRTypeTerm7: 7,
}

// ByteLanes derives the byte-lane count from a data bus width in bits. A
// width that is not a multiple of 8 is a fatal configuration error.
func ByteLanes(width int) int {
	if width <= 0 || width%8 != 0 {
		panic(fmt.Sprintf("bus width %d is not a positive multiple of 8", width))
	}
	return width / 8
}

// XgmiiIdlePattern builds the all-lanes-idle bus state: the IDLE character
// replicated across every lane with every control bit set.
func XgmiiIdlePattern(lanes int) (data uint64, ctrl uint64) {
	if lanes < 1 || lanes > 8 {
		panic(fmt.Sprintf("invalid lane count %d", lanes))
	}
	for k := 0; k < lanes; k++ {
		data |= uint64(XgmiiIdle) << (k * 8)
		ctrl |= 1 << k
	}
	return data, ctrl
}
