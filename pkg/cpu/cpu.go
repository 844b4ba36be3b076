package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// MemorySize is the whole address space: code, static storage and heap all
// live in one 256-byte page.
const MemorySize = 256

const (
	OpBRK    byte = 0x00
	OpADC    byte = 0x6D
	OpSTA    byte = 0x8D
	OpLDYImm byte = 0xA0
	OpLDXImm byte = 0xA2
	OpLDAImm byte = 0xA9
	OpLDYAbs byte = 0xAC
	OpLDAAbs byte = 0xAD
	OpLDXAbs byte = 0xAE
	OpBNE    byte = 0xD0
	OpNOP    byte = 0xEA
	OpCPX    byte = 0xEC
	OpINC    byte = 0xEE
	OpSYS    byte = 0xFF
)

// System call selectors, passed in X when SYS executes.
const (
	SysPrintInt    byte = 0x01 // print Y as an unsigned decimal
	SysPrintString byte = 0x02 // print the zero-terminated string at address Y
)

// DefaultStepLimit bounds Run when the caller passes a non-positive limit.
const DefaultStepLimit = 10000

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadSyscall    = errors.New("unknown system call")
	ErrStepLimit     = errors.New("step limit reached")
)

// Fault describes why execution stopped abnormally.
type Fault struct {
	PC  byte // address of the faulting instruction
	Op  byte
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at $%02X (op $%02X): %v", f.PC, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// CPU is an 8-bit accumulator machine with two index registers.
//
// Only CPX writes the Z flag; loads and stores leave it alone so that a
// comparison result survives until the branch that consumes it.
type CPU struct {
	A, X, Y byte
	PC      byte

	Z bool
	C bool

	Memory [MemorySize]byte

	Halted bool
	Steps  int

	// Output receives SYS prints. If nil, os.Stdout is used.
	Output io.Writer
}

func NewCPU() *CPU {
	return &CPU{}
}

// Load copies image into memory starting at address 0 and resets registers.
func (c *CPU) Load(image []byte) error {
	if len(image) > MemorySize {
		return fmt.Errorf("image too large for memory: %d bytes > %d bytes", len(image), MemorySize)
	}
	*c = CPU{Output: c.Output}
	copy(c.Memory[:], image)
	return nil
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *CPU) fetch() byte {
	b := c.Memory[c.PC]
	c.PC++
	return b
}

// fetchAddr reads a little-endian absolute operand. The high byte is ignored
// because the address space is a single page.
func (c *CPU) fetchAddr() byte {
	lo := c.fetch()
	c.fetch()
	return lo
}

// ReadString returns the zero-terminated string starting at ptr. Reading
// stops at the end of memory if no terminator is found.
func (c *CPU) ReadString(ptr byte) string {
	var buf []byte
	for addr := int(ptr); addr < MemorySize; addr++ {
		if c.Memory[addr] == 0 {
			break
		}
		buf = append(buf, c.Memory[addr])
	}
	return string(buf)
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}

	start := c.PC
	op := c.fetch()
	c.Steps++

	switch op {
	case OpBRK:
		c.Halted = true

	case OpNOP:
		// No operation.

	case OpLDAImm:
		c.A = c.fetch()

	case OpLDAAbs:
		c.A = c.Memory[c.fetchAddr()]

	case OpSTA:
		c.Memory[c.fetchAddr()] = c.A

	case OpADC:
		sum := uint16(c.A) + uint16(c.Memory[c.fetchAddr()])
		c.C = sum > 0xFF
		c.A = byte(sum)

	case OpLDXImm:
		c.X = c.fetch()

	case OpLDXAbs:
		c.X = c.Memory[c.fetchAddr()]

	case OpLDYImm:
		c.Y = c.fetch()

	case OpLDYAbs:
		c.Y = c.Memory[c.fetchAddr()]

	case OpCPX:
		c.Z = c.X == c.Memory[c.fetchAddr()]

	case OpBNE:
		disp := c.fetch()
		if !c.Z {
			c.PC += disp // wraps within the page
		}

	case OpINC:
		addr := c.fetchAddr()
		c.Memory[addr]++

	case OpSYS:
		switch c.X {
		case SysPrintInt:
			fmt.Fprintf(c.outputSink(), "%d", c.Y)
		case SysPrintString:
			fmt.Fprint(c.outputSink(), c.ReadString(c.Y))
		default:
			c.Halted = true
			return &Fault{PC: start, Op: op, Err: ErrBadSyscall}
		}

	default:
		c.Halted = true
		return &Fault{PC: start, Op: op, Err: ErrUnknownOpcode}
	}
	return nil
}

// Run steps until BRK, a fault, or maxSteps instructions have executed.
func (c *CPU) Run(maxSteps int) error {
	if maxSteps <= 0 {
		maxSteps = DefaultStepLimit
	}
	for i := 0; i < maxSteps; i++ {
		if c.Halted {
			return nil
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	if c.Halted {
		return nil
	}
	return &Fault{PC: c.PC, Op: c.Memory[c.PC], Err: ErrStepLimit}
}
