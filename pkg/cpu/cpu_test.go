package cpu

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadProgram(t *testing.T, program ...byte) (*CPU, *bytes.Buffer) {
	t.Helper()
	c := NewCPU()
	var out bytes.Buffer
	c.Output = &out
	if err := c.Load(program); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c, &out
}

func TestLoadAndStore(t *testing.T) {
	c, _ := loadProgram(t,
		OpLDAImm, 0x2A,
		OpSTA, 0x40, 0x00,
		OpLDXAbs, 0x40, 0x00,
		OpLDYImm, 0x07,
		OpBRK,
	)
	if err := c.Run(0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.Memory[0x40] != 0x2A {
		t.Errorf("Memory[$40] = $%02X; want $2A", c.Memory[0x40])
	}
	if c.X != 0x2A || c.Y != 0x07 {
		t.Errorf("X=$%02X Y=$%02X; want X=$2A Y=$07", c.X, c.Y)
	}
	if !c.Halted {
		t.Errorf("CPU should be halted after BRK")
	}
	if c.Steps != 5 {
		t.Errorf("Steps = %d; want 5", c.Steps)
	}
}

func TestADCWraps(t *testing.T) {
	c, _ := loadProgram(t,
		OpLDAImm, 0xF0,
		OpADC, 0x10, 0x00,
		OpBRK,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0x20, // $10
	)
	if err := c.Run(0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.A != 0x10 {
		t.Errorf("A = $%02X; want $10", c.A)
	}
	if !c.C {
		t.Errorf("carry should be set on overflow")
	}
}

func TestCPXAndBNE(t *testing.T) {
	tests := []struct {
		name  string
		x     byte
		wantA byte
	}{
		{"equal falls through", 5, 1},
		{"not equal branches", 6, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := loadProgram(t,
				OpLDXImm, tc.x, // 0
				OpCPX, 0x10, 0x00, // 2
				OpLDAImm, 0x00, // 5, does not touch Z
				OpBNE, 0x02, // 7
				OpLDAImm, 0x01, // 9
				OpBRK, // 11
				0, 0, 0, 0,
				0x05, // $10
			)
			if err := c.Run(0); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if c.A != tc.wantA {
				t.Errorf("A = %d; want %d", c.A, tc.wantA)
			}
		})
	}
}

func TestBackwardBranchLoop(t *testing.T) {
	// Count $20 up from 0 until it equals 3.
	c, _ := loadProgram(t,
		OpINC, 0x20, 0x00, // 0
		OpLDXImm, 0x03, // 3
		OpCPX, 0x20, 0x00, // 5
		OpBNE, 0xF6, // 8, next 10, back 10 -> 0
		OpBRK, // 10
	)
	if err := c.Run(0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.Memory[0x20] != 3 {
		t.Errorf("Memory[$20] = %d; want 3", c.Memory[0x20])
	}
}

func TestSysPrint(t *testing.T) {
	c, out := loadProgram(t,
		OpLDYImm, 42,
		OpLDXImm, SysPrintInt,
		OpSYS,
		OpLDYImm, 0x10,
		OpLDXImm, SysPrintString,
		OpSYS,
		OpBRK,
		0, 0, 0, 0, 0,
		'h', 'i', 0, // $10
	)
	if err := c.Run(0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := out.String(); got != "42hi" {
		t.Errorf("output = %q; want %q", got, "42hi")
	}
}

func TestFaults(t *testing.T) {
	t.Run("unknown opcode", func(t *testing.T) {
		c, _ := loadProgram(t, OpNOP, 0x42)
		err := c.Run(0)
		var f *Fault
		if !errors.As(err, &f) || !errors.Is(err, ErrUnknownOpcode) {
			t.Fatalf("Run error = %v; want unknown opcode fault", err)
		}
		if f.PC != 1 || f.Op != 0x42 {
			t.Errorf("fault = %+v; want PC=1 Op=$42", f)
		}
	})

	t.Run("bad syscall", func(t *testing.T) {
		c, _ := loadProgram(t, OpLDXImm, 9, OpSYS)
		if err := c.Run(0); !errors.Is(err, ErrBadSyscall) {
			t.Fatalf("Run error = %v; want ErrBadSyscall", err)
		}
	})

	t.Run("step limit", func(t *testing.T) {
		// LDX #1; CPX $10 ($10 holds 0); BNE back to 0
		c, _ := loadProgram(t, OpLDXImm, 1, OpCPX, 0x10, 0x00, OpBNE, 0xF9)
		if err := c.Run(50); !errors.Is(err, ErrStepLimit) {
			t.Fatalf("Run error = %v; want ErrStepLimit", err)
		}
		if c.Steps != 50 {
			t.Errorf("Steps = %d; want 50", c.Steps)
		}
	})
}

func TestLoadRejectsOversizedImage(t *testing.T) {
	c := NewCPU()
	if err := c.Load(make([]byte, MemorySize+1)); err == nil {
		t.Fatalf("expected error for oversized image")
	}
}

func TestLoadKeepsOutput(t *testing.T) {
	c, out := loadProgram(t, OpBRK)
	if err := c.Load([]byte{OpBRK}); err != nil {
		t.Fatal(err)
	}
	if c.Output != out {
		t.Errorf("Load should keep the configured output writer")
	}
}

func TestImageFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.bin")

	image := make([]byte, MemorySize)
	image[0] = OpLDAImm
	image[1] = 0x01
	image[255] = 0xFF

	if err := SaveImage(path, image); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	got, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("round trip mismatch")
	}

	_, err = LoadImage(filepath.Join(dir, "missing.bin"))
	if err == nil || !strings.Contains(err.Error(), "missing.bin") {
		t.Errorf("LoadImage missing file error = %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadImage error should wrap os.ErrNotExist: %v", err)
	}
}

func TestHexDump(t *testing.T) {
	image := make([]byte, 32)
	image[0] = 0xA9
	image[17] = 0x0b

	dump := HexDump(image)
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("HexDump produced %d lines; want 2:\n%s", len(lines), dump)
	}
	if !strings.HasPrefix(lines[0], "A9 00 ") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "00 0B 00") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if len(lines[0]) != HexColumns*3-1 {
		t.Errorf("line 0 width = %d; want %d", len(lines[0]), HexColumns*3-1)
	}
}
