package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const hexLine = 16

func printable(p []byte) string {
	o := make([]byte, len(p))
	for i, c := range p {
		if c >= 0x20 && c <= 0x7e {
			o[i] = c
		} else {
			o[i] = '.'
		}
	}
	return string(o)
}

// HexDump formats mem in lines of 16 bytes, grouped by the word size of a
// bits-wide machine, with the printable characters alongside.
func HexDump(base uint64, mem []byte, bits int) []string {
	word := bits / 8
	if word <= 0 || word > hexLine {
		word = 8
	}
	addrFmt := fmt.Sprintf("0x%%0%dx:", word*2)
	var out []string
	for off := 0; off < len(mem); off += hexLine {
		line := mem[off:]
		if len(line) > hexLine {
			line = line[:hexLine]
		}
		groups := make([]string, 0, hexLine/word)
		for g := 0; g < hexLine; g += word {
			var s string
			if g < len(line) {
				end := g + word
				if end > len(line) {
					end = len(line)
				}
				s = hex.EncodeToString(line[g:end])
			}
			groups = append(groups, s+strings.Repeat(" ", word*2-len(s)))
		}
		out = append(out, fmt.Sprintf(addrFmt+" %s  [%-16s]", base+uint64(off), strings.Join(groups, " "), printable(line)))
	}
	return out
}
