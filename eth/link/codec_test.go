package link

import (
	"bytes"
	"testing"
)

func TestExpandBytes(t *testing.T) {
	units := ExpandBytes([]byte{0xAB, 0xCD}, []byte{0, 1})
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Data != 0xAB || units[0].Flag != 0 {
		t.Errorf("unit 0: %+v", units[0])
	}
	if units[1].Data != 0xCD || units[1].Flag != 1 {
		t.Errorf("unit 1: %+v", units[1])
	}
}

func TestExpandNibblesLowFirst(t *testing.T) {
	units := ExpandNibbles([]byte{0xD5}, []byte{1}, false)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Data != 0x5 || units[1].Data != 0xD {
		t.Errorf("nibble order wrong: %#x then %#x", units[0].Data, units[1].Data)
	}
	if units[0].Flag != 1 || units[1].Flag != 1 {
		t.Error("byte flag not replicated onto both nibbles")
	}
}

func TestExpandNibblesDuplicated(t *testing.T) {
	units := ExpandNibbles([]byte{0xD5}, []byte{0}, true)
	if units[0].Data != 0x55 || units[1].Data != 0xDD {
		t.Errorf("duplicated nibbles wrong: %#x then %#x", units[0].Data, units[1].Data)
	}
}

func TestMarkSFDFirstMatchOnly(t *testing.T) {
	units := ExpandBytes([]byte{0x55, 0xD5, 0xD5}, []byte{0, 0, 0})
	units = MarkSFD(units, 0xD5)
	if units[0].SFD {
		t.Error("preamble byte marked as SFD")
	}
	if !units[1].SFD {
		t.Error("first SFD byte not marked")
	}
	if units[2].SFD {
		t.Error("a later matching byte was also marked")
	}
}

func TestFoldNibblesEvenAligned(t *testing.T) {
	// two preamble bytes, the SFD, then one data byte, low nibble first
	in := []byte{0x5, 0x5, 0x5, 0x5, 0x5, 0xD, 0xB, 0xA}
	flags := make([]byte, len(in))
	data, ferr := FoldNibbles(in, flags)
	want := []byte{0x55, 0x55, 0xD5, 0xAB}
	if !bytes.Equal(data, want) {
		t.Errorf("folded %x, expected %x", data, want)
	}
	if len(ferr) != len(data) {
		t.Errorf("%d flags for %d bytes", len(ferr), len(data))
	}
}

func TestFoldNibblesRealignsOnSFD(t *testing.T) {
	// an odd number of preamble nibbles before the SFD forces a realignment
	in := []byte{0x5, 0x5, 0x5, 0x5, 0xD, 0xB, 0xA}
	flags := make([]byte, len(in))
	data, _ := FoldNibbles(in, flags)
	if len(data) == 0 || data[len(data)-1] != 0xAB {
		t.Fatalf("folded %x, expected trailing data byte 0xAB", data)
	}
	foundSFD := false
	for _, b := range data {
		if b == 0xD5 {
			foundSFD = true
		}
	}
	if !foundSFD {
		t.Errorf("folded %x, expected an SFD byte", data)
	}
}

func TestFoldNibblesAccumulatesFlags(t *testing.T) {
	in := []byte{0x5, 0x5, 0x5, 0xD, 0xB, 0xA}
	flags := []byte{0, 0, 0, 0, 1, 0}
	data, ferr := FoldNibbles(in, flags)
	if !bytes.Equal(data, []byte{0x55, 0xD5, 0xAB}) {
		t.Fatalf("folded %x", data)
	}
	if ferr[2] != 1 {
		t.Error("flag on a folded nibble was lost")
	}
	if ferr[0] != 0 || ferr[1] != 0 {
		t.Error("flag leaked into the wrong byte")
	}
}
