package models

import "testing"

func TestHexDump(t *testing.T) {
	mem := []byte("0123456789abcdef\x00\x01hi")
	lines := HexDump(0x1000, mem, 64)
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "0x0000000000001000: 3031323334353637 3839616263646566  [0123456789abcdef]" {
		t.Errorf("first line %q", lines[0])
	}
	want := "0x0000000000001010: 00016869                           [..hi            ]"
	if lines[1] != want {
		t.Errorf("short line\n%q\nexpecting\n%q", lines[1], want)
	}
}
