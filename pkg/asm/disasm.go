package asm

import (
	"fmt"
	"strings"
)

// Line is one decoded instruction from a memory image.
type Line struct {
	Addr  int
	Bytes []byte
	Text  string
}

func (l Line) String() string {
	hex := make([]string, len(l.Bytes))
	for i, b := range l.Bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("$%02X  %-9s %s", l.Addr, strings.Join(hex, " "), l.Text)
}

// Disassemble decodes mem[0:codeLen]. When codeLen is negative, decoding
// stops after the first BRK. Unknown bytes are shown as .BYTE.
func Disassemble(mem []byte, codeLen int) []Line {
	if codeLen < 0 || codeLen > len(mem) {
		codeLen = len(mem)
		if idx := findBRK(mem); idx >= 0 {
			codeLen = idx + 1
		}
	}

	var lines []Line
	for pc := 0; pc < codeLen; {
		op := mem[pc]
		in, ok := Lookup(op)
		if !ok || pc+in.Length() > codeLen {
			lines = append(lines, Line{Addr: pc, Bytes: []byte{op}, Text: fmt.Sprintf(".BYTE $%02X", op)})
			pc++
			continue
		}

		raw := mem[pc : pc+in.Length()]
		var text string
		switch in.Mode {
		case Implied:
			text = in.Mnemonic
		case Immediate:
			text = fmt.Sprintf("%s #$%02X", in.Mnemonic, raw[1])
		case Absolute:
			text = fmt.Sprintf("%s $%02X%02X", in.Mnemonic, raw[2], raw[1])
		case Relative:
			target := byte(pc + 2 + int(raw[1]))
			text = fmt.Sprintf("%s $%02X ; -> $%02X", in.Mnemonic, raw[1], target)
		}
		lines = append(lines, Line{Addr: pc, Bytes: append([]byte(nil), raw...), Text: text})
		pc += in.Length()
	}
	return lines
}

// findBRK walks the instruction stream and returns the address of the first
// BRK opcode, or -1.
func findBRK(mem []byte) int {
	for pc := 0; pc < len(mem); {
		in, ok := Lookup(mem[pc])
		if ok && in.Mnemonic == "BRK" {
			return pc
		}
		if !ok {
			pc++
			continue
		}
		pc += in.Length()
	}
	return -1
}

// Listing renders Disassemble's output, one instruction per line.
func Listing(mem []byte, codeLen int) string {
	var b strings.Builder
	for _, l := range Disassemble(mem, codeLen) {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}
