package link

import "github.com/simlink/ethphy/eth"

// ExpandBytes turns frame bytes into one unit per byte.
func ExpandBytes(data, flags []byte) []Unit {
	units := make([]Unit, len(data))
	for i, b := range data {
		units[i] = Unit{Data: b, Flag: flags[i]}
	}
	return units
}

// ExpandNibbles splits each frame byte into two units, low nibble first,
// replicating the byte's flag onto both. With dup set, each nibble is
// duplicated into both halves of the unit value, as a nibble-wide
// double-data-rate bus presents it.
func ExpandNibbles(data, flags []byte, dup bool) []Unit {
	units := make([]Unit, 0, 2*len(data))
	for i, b := range data {
		lo, hi := b&0x0F, b>>4
		if dup {
			lo *= 0x11
			hi *= 0x11
		}
		units = append(units,
			Unit{Data: lo, Flag: flags[i]},
			Unit{Data: hi, Flag: flags[i]})
	}
	return units
}

// MarkSFD sets the SFD mark on the first unit whose value is one of the
// given start delimiter encodings.
func MarkSFD(units []Unit, markers ...byte) []Unit {
	for i := range units {
		for _, m := range markers {
			if units[i].Data == m {
				units[i].SFD = true
				return units
			}
		}
	}
	return units
}

// FoldNibbles reassembles nibble-serial transfer values into bytes. Pairing
// starts at the first transfer, then realigns when the shifted-in byte
// matches the start frame delimiter, so an odd number of preamble nibbles
// still yields correctly framed data. Each output flag is the OR of the
// flags folded into its byte.
func FoldNibbles(data, flags []byte) (fdata, fflags []byte) {
	odd := true
	sync := false
	var b, be byte
	for i, n := range data {
		odd = !odd
		b = (n&0x0F)<<4 | b>>4
		be |= flags[i]
		if !sync && b == eth.EthSFD {
			odd = true
			sync = true
		}
		if odd {
			fdata = append(fdata, b)
			fflags = append(fflags, be)
			be = 0
		}
	}
	return fdata, fflags
}
