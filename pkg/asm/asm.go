package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"rudc/pkg/cpu"
)

// Operand modes. The same mnemonic may map to different opcodes depending on
// how its operand is written: "LDA #5" is immediate, "LDA $40" is absolute.
type Mode int

const (
	Implied Mode = iota
	Immediate
	Absolute
	Relative
)

// operandSize is the number of bytes following the opcode for each mode.
var operandSize = [...]int{
	Implied:   0,
	Immediate: 1,
	Absolute:  2,
	Relative:  1,
}

var impliedOps = map[string]byte{
	"BRK": cpu.OpBRK,
	"NOP": cpu.OpNOP,
	"SYS": cpu.OpSYS,
}

var immediateOps = map[string]byte{
	"LDA": cpu.OpLDAImm,
	"LDX": cpu.OpLDXImm,
	"LDY": cpu.OpLDYImm,
}

var absoluteOps = map[string]byte{
	"LDA": cpu.OpLDAAbs,
	"LDX": cpu.OpLDXAbs,
	"LDY": cpu.OpLDYAbs,
	"STA": cpu.OpSTA,
	"ADC": cpu.OpADC,
	"CPX": cpu.OpCPX,
	"INC": cpu.OpINC,
}

var relativeOps = map[string]byte{
	"BNE": cpu.OpBNE,
}

// Instruction describes one opcode of the instruction set.
type Instruction struct {
	Mnemonic string
	Mode     Mode
}

// Length is the encoded size of the instruction in bytes.
func (in Instruction) Length() int {
	return 1 + operandSize[in.Mode]
}

// opcodes is the reverse index of the mnemonic tables, built once.
var opcodes = buildOpcodeIndex()

func buildOpcodeIndex() map[byte]Instruction {
	idx := make(map[byte]Instruction)
	for _, tbl := range []struct {
		ops  map[string]byte
		mode Mode
	}{
		{impliedOps, Implied},
		{immediateOps, Immediate},
		{absoluteOps, Absolute},
		{relativeOps, Relative},
	} {
		for m, op := range tbl.ops {
			idx[op] = Instruction{Mnemonic: m, Mode: tbl.mode}
		}
	}
	return idx
}

// Lookup returns the instruction encoded by op.
func Lookup(op byte) (Instruction, bool) {
	in, ok := opcodes[op]
	return in, ok
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates assembly text into machine code, returning the bytes
// and a map from each emitted address to its source line.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

func (a *Assembler) pass1(lines []string) error {
	var address int

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address >= cpu.MemorySize {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		length, err := a.lineLength(p, address)
		if err != nil {
			return err
		}
		if p.mnemonic == ".ORG" {
			address = length
			continue
		}
		if address+length > cpu.MemorySize {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

// lineLength returns how many bytes p occupies. For .ORG it returns the new
// origin instead.
func (a *Assembler) lineLength(p parsedLine, address int) (int, error) {
	switch p.mnemonic {
	case ".STRING":
		if len(p.operands) != 1 {
			return 0, fmt.Errorf(".STRING expects exactly one string operand on line %d", p.lineNo)
		}
		// 1 byte per character + 1 null byte
		return len(p.operands[0]) + 1, nil
	case ".BYTE":
		if len(p.operands) == 0 {
			return 0, fmt.Errorf(".BYTE expects at least one operand on line %d", p.lineNo)
		}
		return len(p.operands), nil
	case ".ORG":
		target, err := parseNumber(p.operands[0])
		if err != nil || target >= cpu.MemorySize {
			return 0, fmt.Errorf("invalid .ORG value on line %d: %s", p.lineNo, p.operands[0])
		}
		if int(target) < address {
			return 0, fmt.Errorf("cannot move origin backward on line %d", p.lineNo)
		}
		return int(target), nil
	}

	_, mode, err := resolveMnemonic(p)
	if err != nil {
		return 0, err
	}
	return 1 + operandSize[mode], nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0, cpu.MemorySize)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		sourceMap[uint16(len(program))] = lineNo

		switch p.mnemonic {
		case ".STRING":
			program = append(program, p.operands[0]...)
			program = append(program, 0x00)
			continue

		case ".BYTE":
			for _, op := range p.operands {
				v, err := a.parseValue(op, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(v))
			}
			continue

		case ".ORG":
			target, _ := parseNumber(p.operands[0])
			padding := int(target) - len(program)
			if padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			delete(sourceMap, uint16(len(program)-padding))
			continue
		}

		op, mode, err := resolveMnemonic(p)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, op)

		switch mode {
		case Immediate:
			v, err := a.parseValue(strings.TrimPrefix(p.operands[0], "#"), lineNo)
			if err != nil {
				return nil, nil, err
			}
			if v > 0xFF {
				return nil, nil, fmt.Errorf("immediate out of range on line %d: %s", lineNo, p.operands[0])
			}
			program = append(program, byte(v))

		case Absolute:
			v, err := a.parseValue(p.operands[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(v&0xFF), byte(v>>8))

		case Relative:
			// A label operand becomes the displacement from the byte after
			// the branch; a number is taken as the raw displacement.
			next := len(program) + 1
			if addr, ok := a.labels[normalizeLabel(p.operands[0])]; ok {
				program = append(program, byte(int(addr)-next))
				break
			}
			v, err := a.parseValue(p.operands[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(v))
		}
	}

	return program, sourceMap, nil
}

// resolveMnemonic picks the opcode for p from its mnemonic and operand form.
func resolveMnemonic(p parsedLine) (byte, Mode, error) {
	switch len(p.operands) {
	case 0:
		if op, ok := impliedOps[p.mnemonic]; ok {
			return op, Implied, nil
		}
	case 1:
		if strings.HasPrefix(p.operands[0], "#") {
			if op, ok := immediateOps[p.mnemonic]; ok {
				return op, Immediate, nil
			}
			break
		}
		if op, ok := relativeOps[p.mnemonic]; ok {
			return op, Relative, nil
		}
		if op, ok := absoluteOps[p.mnemonic]; ok {
			return op, Absolute, nil
		}
	}

	if !isKnownMnemonic(p.mnemonic) {
		return 0, 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	return 0, 0, fmt.Errorf("invalid operands for %s on line %d", p.mnemonic, p.lineNo)
}

func isKnownMnemonic(m string) bool {
	for _, tbl := range []map[string]byte{impliedOps, immediateOps, absoluteOps, relativeOps} {
		if _, ok := tbl[m]; ok {
			return true
		}
	}
	return false
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	// .STRING keeps its quoted operand verbatim, spaces included.
	upperRaw := strings.ToUpper(raw)
	if directiveIdx := strings.Index(upperRaw, ".STRING"); directiveIdx != -1 {
		preDirective := raw[:directiveIdx]
		if colonIdx := strings.Index(preDirective, ":"); colonIdx != -1 {
			label := strings.TrimSpace(preDirective[:colonIdx])
			if label != "" {
				p.labels = append(p.labels, label)
			}
		}

		opening := strings.Index(raw, "\"")
		closing := strings.LastIndex(raw, "\"")
		if opening != -1 && closing != -1 && opening != closing {
			p.mnemonic = ".STRING"
			content := raw[opening+1 : closing]
			if unquoted, err := strconv.Unquote(`"` + content + `"`); err == nil {
				p.operands = []string{unquoted}
			} else {
				p.operands = []string{content}
			}
			return p, nil
		}
		return p, fmt.Errorf("invalid string literal on line %d", lineNo)
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	if p.mnemonic == ".ORG" && len(p.operands) != 1 {
		return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}

	return p, nil
}

func stripComments(line string) string {
	if semicolon := strings.Index(line, ";"); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

// parseNumber accepts $-prefixed hex, 0x-prefixed hex, or decimal.
func parseNumber(token string) (uint64, error) {
	if strings.HasPrefix(token, "$") {
		return strconv.ParseUint(token[1:], 16, 16)
	}
	return strconv.ParseUint(token, 0, 16)
}

func (a *Assembler) parseValue(token string, lineNo int) (uint16, error) {
	if value, err := parseNumber(token); err == nil {
		return uint16(value), nil
	}

	if addr, ok := a.labels[normalizeLabel(token)]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid operand '%s' on line %d", token, lineNo)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
