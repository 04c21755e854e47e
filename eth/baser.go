package eth

import "fmt"

// The BASE-R block codec translates one XGMII transfer of eight lanes into a
// 66-bit line block: a 2-bit sync header plus a 64-bit payload. A transfer
// with no control lanes becomes a data block carrying the lane bytes
// verbatim; any other transfer becomes a control block whose first payload
// byte is the block type, with the remaining fields packed in lane order.
//
// Field positions within a control block payload:
//
//	block type   bits 0..7
//	C code j     bits 8+7j .. 14+7j
//	O code       bits 32..35 (lane 0 set) or 36..39 (lane 4 set)
//	data lanes   one byte per lane, at the lane's byte offset, except in
//	             terminate blocks where data shifts up past the block type

func laneByte(v uint64, k int) byte {
	return byte(v >> (k * 8))
}

func ctrlBit(ctrl uint8, k int) bool {
	return ctrl&(1<<k) != 0
}

// EncodeBaseRBlock converts one full-width XGMII transfer into a BASE-R
// block. It fails on lane patterns that have no block representation, such
// as a START outside lanes 0 and 4 or a control character with no BASE-R
// code in its position.
func EncodeBaseRBlock(data uint64, ctrl uint8) (sync BaseRSync, payload uint64, err error) {
	if ctrl == 0 {
		return BaseRSyncData, data, nil
	}

	// locate the structural characters
	termLane := -1
	for k := 0; k < 8; k++ {
		if !ctrlBit(ctrl, k) {
			continue
		}
		c := XgmiiCtrl(laneByte(data, k))
		switch c {
		case XgmiiStart:
			if k != 0 && k != 4 {
				return 0, 0, fmt.Errorf("START in lane %d has no block encoding", k)
			}
		case XgmiiTerm:
			if termLane >= 0 {
				return 0, 0, fmt.Errorf("multiple TERM characters in one transfer")
			}
			termLane = k
		case XgmiiSeqOS, XgmiiSigOS:
			if k != 0 && k != 4 {
				return 0, 0, fmt.Errorf("ordered set in lane %d has no block encoding", k)
			}
		}
	}

	isChar := func(k int, c XgmiiCtrl) bool {
		return ctrlBit(ctrl, k) && XgmiiCtrl(laneByte(data, k)) == c
	}
	isOS := func(k int) bool {
		return isChar(k, XgmiiSeqOS) || isChar(k, XgmiiSigOS)
	}

	// packCtrl places lane k's 7-bit control code at its fixed position.
	packCtrl := func(k int) error {
		c, ok := XgmiiToBaseRCtrl[XgmiiCtrl(laneByte(data, k))]
		if !ok || !ctrlBit(ctrl, k) {
			return fmt.Errorf("lane %d does not hold a plain control character", k)
		}
		payload |= uint64(c) << (8 + 7*k)
		return nil
	}
	packData := func(k, byteOff int) error {
		if ctrlBit(ctrl, k) {
			return fmt.Errorf("lane %d holds a control character where data is required", k)
		}
		payload |= uint64(laneByte(data, k)) << (byteOff * 8)
		return nil
	}
	packO := func(k int) {
		o := BaseROSeqOS
		if isChar(k, XgmiiSigOS) {
			o = BaseROSigOS
		}
		payload |= uint64(o) << (32 + (k/4)*4)
	}

	var bt BaseRBlockType
	switch {
	case termLane >= 0:
		bt = [...]BaseRBlockType{
			BaseRTypeTerm0, BaseRTypeTerm1, BaseRTypeTerm2, BaseRTypeTerm3,
			BaseRTypeTerm4, BaseRTypeTerm5, BaseRTypeTerm6, BaseRTypeTerm7,
		}[termLane]
		for k := 0; k < termLane; k++ {
			if err := packData(k, k+1); err != nil {
				return 0, 0, err
			}
		}
		for k := termLane + 1; k < 8; k++ {
			if err := packCtrl(k); err != nil {
				return 0, 0, err
			}
		}

	case isChar(0, XgmiiStart):
		bt = BaseRTypeStart0
		for k := 1; k < 8; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}

	case isChar(4, XgmiiStart) && isOS(0):
		bt = BaseRTypeOSStart
		packO(0)
		for k := 1; k < 4; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}
		for k := 5; k < 8; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}

	case isChar(4, XgmiiStart):
		bt = BaseRTypeStart4
		for k := 0; k < 4; k++ {
			if err := packCtrl(k); err != nil {
				return 0, 0, err
			}
		}
		for k := 5; k < 8; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}

	case isOS(0) && isOS(4):
		bt = BaseRTypeOS04
		packO(0)
		packO(4)
		for _, k := range []int{1, 2, 3, 5, 6, 7} {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}

	case isOS(0):
		bt = BaseRTypeOS0
		packO(0)
		for k := 1; k < 4; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}
		for k := 4; k < 8; k++ {
			if err := packCtrl(k); err != nil {
				return 0, 0, err
			}
		}

	case isOS(4):
		bt = BaseRTypeOS4
		packO(4)
		for k := 0; k < 4; k++ {
			if err := packCtrl(k); err != nil {
				return 0, 0, err
			}
		}
		for k := 5; k < 8; k++ {
			if err := packData(k, k); err != nil {
				return 0, 0, err
			}
		}

	default:
		bt = BaseRTypeCtrl
		for k := 0; k < 8; k++ {
			if err := packCtrl(k); err != nil {
				return 0, 0, err
			}
		}
	}

	payload |= uint64(bt)
	return BaseRSyncCtrl, payload, nil
}

// DecodeBaseRBlock converts a BASE-R block back into an XGMII transfer. It
// fails on an unrecognized sync header, block type, control code, or O code.
func DecodeBaseRBlock(sync BaseRSync, payload uint64) (data uint64, ctrl uint8, err error) {
	switch sync {
	case BaseRSyncData:
		return payload, 0, nil
	case BaseRSyncCtrl:
	default:
		return 0, 0, fmt.Errorf("invalid sync header %#02b", uint8(sync))
	}

	setChar := func(k int, c XgmiiCtrl) {
		data |= uint64(c) << (k * 8)
		ctrl |= 1 << k
	}
	unpackCtrl := func(k int) error {
		code := BaseRCtrl(payload >> (8 + 7*k) & 0x7F)
		c, ok := BaseRToXgmiiCtrl[code]
		if !ok {
			return fmt.Errorf("invalid control code %#02x in lane %d", uint8(code), k)
		}
		setChar(k, c)
		return nil
	}
	unpackData := func(k, byteOff int) {
		data |= payload >> (byteOff * 8) & 0xFF << (k * 8)
	}
	unpackO := func(k int) error {
		switch BaseRO(payload >> (32 + (k / 4 * 4)) & 0xF) {
		case BaseROSeqOS:
			setChar(k, XgmiiSeqOS)
		case BaseROSigOS:
			setChar(k, XgmiiSigOS)
		default:
			return fmt.Errorf("invalid O code for lane %d", k)
		}
		return nil
	}

	bt := BaseRBlockType(payload)
	if termLane, ok := BaseRTermLane[bt]; ok {
		for k := 0; k < termLane; k++ {
			unpackData(k, k+1)
		}
		setChar(termLane, XgmiiTerm)
		for k := termLane + 1; k < 8; k++ {
			if err := unpackCtrl(k); err != nil {
				return 0, 0, err
			}
		}
		return data, ctrl, nil
	}

	switch bt {
	case BaseRTypeCtrl:
		for k := 0; k < 8; k++ {
			if err := unpackCtrl(k); err != nil {
				return 0, 0, err
			}
		}

	case BaseRTypeStart0:
		setChar(0, XgmiiStart)
		for k := 1; k < 8; k++ {
			unpackData(k, k)
		}

	case BaseRTypeStart4:
		for k := 0; k < 4; k++ {
			if err := unpackCtrl(k); err != nil {
				return 0, 0, err
			}
		}
		setChar(4, XgmiiStart)
		for k := 5; k < 8; k++ {
			unpackData(k, k)
		}

	case BaseRTypeOSStart:
		if err := unpackO(0); err != nil {
			return 0, 0, err
		}
		for k := 1; k < 4; k++ {
			unpackData(k, k)
		}
		setChar(4, XgmiiStart)
		for k := 5; k < 8; k++ {
			unpackData(k, k)
		}

	case BaseRTypeOS0:
		if err := unpackO(0); err != nil {
			return 0, 0, err
		}
		for k := 1; k < 4; k++ {
			unpackData(k, k)
		}
		for k := 4; k < 8; k++ {
			if err := unpackCtrl(k); err != nil {
				return 0, 0, err
			}
		}

	case BaseRTypeOS4:
		for k := 0; k < 4; k++ {
			if err := unpackCtrl(k); err != nil {
				return 0, 0, err
			}
		}
		if err := unpackO(4); err != nil {
			return 0, 0, err
		}
		for k := 5; k < 8; k++ {
			unpackData(k, k)
		}

	case BaseRTypeOS04:
		if err := unpackO(0); err != nil {
			return 0, 0, err
		}
		if err := unpackO(4); err != nil {
			return 0, 0, err
		}
		for _, k := range []int{1, 2, 3, 5, 6, 7} {
			unpackData(k, k)
		}

	default:
		return 0, 0, fmt.Errorf("invalid block type %#02x", uint8(bt))
	}
	return data, ctrl, nil
}
