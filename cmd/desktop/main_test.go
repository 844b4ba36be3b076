package main

import (
	"errors"
	"image"
	"strings"
	"testing"

	"rudc/pkg/compiler"
	"rudc/pkg/cpu"
	"rudc/pkg/diag"
)

func compileFirst(t *testing.T, src string) *compiler.Image {
	t.Helper()
	img := firstImage(compiler.Compile(src, diag.Discard))
	if img == nil {
		t.Fatalf("no image for %q", src)
	}
	return img
}

func newTestGame(img *compiler.Image) *Game {
	g := &Game{img: img, layout: layoutOf(img)}
	g.reset()
	return g
}

func TestFirstImageSkipsFailures(t *testing.T) {
	img := compileFirst(t, `{print(x)}$ {print("b")}$`)
	if img.HeapSize() != 2 {
		t.Errorf("expected the second program's image, HeapSize = %d", img.HeapSize())
	}
}

func TestClassify(t *testing.T) {
	img := compileFirst(t, `{string s s = "hi" print(s)}$`)
	l := layoutOf(img)

	tests := []struct {
		addr int
		want region
	}{
		{0, regionCode},
		{img.CodeSize() - 1, regionCode},
		{img.StaticStart(), regionStatic},
		{l.staticEnd, regionFree},
		{252, regionFree},
		{253, regionHeap},
		{255, regionHeap},
	}
	for _, tc := range tests {
		if got := l.classify(tc.addr); got != tc.want {
			t.Errorf("classify(%d) = %d; want %d", tc.addr, got, tc.want)
		}
	}
}

func TestCellRect(t *testing.T) {
	if got, want := cellRect(0), image.Rect(marginLeft, marginTop, marginLeft+cellWidth-1, marginTop+cellHeight-1); got != want {
		t.Errorf("cellRect(0) = %v; want %v", got, want)
	}
	r := cellRect(0x21)
	if r.Min.X != marginLeft+cellWidth || r.Min.Y != marginTop+2*cellHeight {
		t.Errorf("cellRect(0x21) = %v", r)
	}
	if last := cellRect(255); last.Max.X >= screenWidth || last.Max.Y >= screenHeight {
		t.Errorf("cellRect(255) = %v is off screen", last)
	}
}

func TestCellAt(t *testing.T) {
	for _, addr := range []int{0, 0x21, 0x7F, 255} {
		r := cellRect(addr)
		got, ok := cellAt(r.Min.X+3, r.Min.Y+3)
		if !ok || got != addr {
			t.Errorf("cellAt inside cell $%02X = $%02X, %v", addr, got, ok)
		}
	}
	for _, p := range [][2]int{{0, 0}, {marginLeft - 1, 100}, {100, marginTop - 1}, {screenWidth, 100}, {100, screenHeight - 1}} {
		if _, ok := cellAt(p[0], p[1]); ok {
			t.Errorf("cellAt(%d, %d) should be outside the grid", p[0], p[1])
		}
	}
}

func TestDescribe(t *testing.T) {
	img := compileFirst(t, `{print("hi")}$`)
	g := newTestGame(img)
	if got := g.describe(253); got != "$FD = $68 (heap)" {
		t.Errorf("describe(253) = %q", got)
	}
	if got := g.describe(0); !strings.HasSuffix(got, "(code)") {
		t.Errorf("describe(0) = %q", got)
	}
}

func TestGameAdvance(t *testing.T) {
	g := newTestGame(compileFirst(t, "{int a a = 7 print(a)}$"))

	g.advance(1)
	if g.vm.Steps != 1 || g.vm.Halted {
		t.Fatalf("after one step: Steps=%d Halted=%v", g.vm.Steps, g.vm.Halted)
	}

	g.advance(1000)
	if !g.vm.Halted || g.err != nil {
		t.Fatalf("program should halt cleanly, err = %v", g.err)
	}
	if g.out.String() != "7" {
		t.Errorf("output = %q; want 7", g.out.String())
	}
	steps := g.vm.Steps
	g.advance(10)
	if g.vm.Steps != steps {
		t.Errorf("a halted machine must not step")
	}

	g.reset()
	if g.vm.Halted || g.vm.Steps != 0 || g.out.Len() != 0 {
		t.Errorf("reset should reload the image")
	}
}

func TestGameStepLimit(t *testing.T) {
	g := newTestGame(compileFirst(t, "{while true {}}$"))
	g.advance(cpu.DefaultStepLimit + 10)
	if !errors.Is(g.err, cpu.ErrStepLimit) {
		t.Fatalf("err = %v; want ErrStepLimit", g.err)
	}
	lines := statusLines(g.vm, g.out.String(), false, g.err)
	if !strings.HasPrefix(lines[2], "fault: ") {
		t.Errorf("status = %q", lines[2])
	}
}

func TestStatusLines(t *testing.T) {
	vm := cpu.NewCPU()
	vm.A, vm.PC = 0x2A, 0x10
	lines := statusLines(vm, "hi", true, nil)
	if lines[0] != "PC=10 A=2A X=00 Y=00 Z=false C=false steps=0" {
		t.Errorf("registers = %q", lines[0])
	}
	if lines[1] != "output: hi" || lines[2] != "paused" {
		t.Errorf("lines = %q", lines)
	}
}
