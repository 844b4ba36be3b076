// Command desktop compiles a source file, runs the first program that
// produced an image, and shows the machine's memory as a live hex grid.
//
// Keys: Space pauses or resumes, S steps once while paused, R reloads the
// image. Hovering a cell shows its address, value and region.
package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"rudc/pkg/compiler"
	"rudc/pkg/cpu"
	"rudc/pkg/diag"
	"rudc/pkg/grid"
	"rudc/pkg/utils"
)

const (
	cols       = cpu.HexColumns
	cellWidth  = 28
	cellHeight = 20
	marginLeft = 32
	marginTop  = 20
	statusRows = 3

	screenWidth  = marginLeft + cols*cellWidth
	screenHeight = marginTop + (cpu.MemorySize/cols+statusRows)*cellHeight

	// Instructions executed per frame while running.
	stepsPerFrame = 1
)

type region int

const (
	regionFree region = iota
	regionCode
	regionStatic
	regionHeap
)

var regionColors = map[region]color.RGBA{
	regionFree:   {0x20, 0x20, 0x20, 0xff},
	regionCode:   {0x1d, 0x3b, 0x6e, 0xff},
	regionStatic: {0x2e, 0x5e, 0x2e, 0xff},
	regionHeap:   {0x6e, 0x4a, 0x1d, 0xff},
}

var pcColor = color.RGBA{0xd0, 0x30, 0x30, 0xff}

// layout records where each part of a compiled image lives.
type layout struct {
	codeEnd   int // first byte after code
	staticEnd int // first byte after static storage
	heapStart int // first heap byte
}

func layoutOf(img *compiler.Image) layout {
	return layout{
		codeEnd:   img.CodeSize(),
		staticEnd: img.StaticStart() + img.StaticSize(),
		heapStart: compiler.ImageSize - img.HeapSize(),
	}
}

func (l layout) classify(addr int) region {
	switch {
	case addr < l.codeEnd:
		return regionCode
	case addr < l.staticEnd:
		return regionStatic
	case addr >= l.heapStart:
		return regionHeap
	}
	return regionFree
}

// cellRect is the screen rectangle of the hex cell for addr.
func cellRect(addr int) image.Rectangle {
	x, y := grid.GetGridCoords(addr, cols)
	px := marginLeft + x*cellWidth
	py := marginTop + y*cellHeight
	return image.Rect(px, py, px+cellWidth-1, py+cellHeight-1)
}

// cellAt maps a screen position back to the address under it.
func cellAt(px, py int) (int, bool) {
	if px < marginLeft || py < marginTop {
		return 0, false
	}
	x := (px - marginLeft) / cellWidth
	y := (py - marginTop) / cellHeight
	if x >= cols || y >= cpu.MemorySize/cols {
		return 0, false
	}
	return grid.Index(x, y, cols), true
}

var regionNames = map[region]string{
	regionFree:   "free",
	regionCode:   "code",
	regionStatic: "static",
	regionHeap:   "heap",
}

type Game struct {
	img    *compiler.Image
	layout layout
	vm     *cpu.CPU
	out    strings.Builder
	paused bool
	err    error
	face   text.Face
}

func NewGame(img *compiler.Image) *Game {
	g := &Game{
		img:    img,
		layout: layoutOf(img),
		face:   text.NewGoXFace(basicfont.Face7x13),
	}
	g.reset()
	return g
}

func (g *Game) reset() {
	g.out.Reset()
	g.err = nil
	g.vm = cpu.NewCPU()
	g.vm.Output = &g.out
	if err := g.vm.Load(g.img.Bytes()); err != nil {
		g.err = err
	}
}

// advance executes up to n instructions, stopping on halt or fault.
func (g *Game) advance(n int) {
	for i := 0; i < n; i++ {
		if g.vm.Halted || g.err != nil {
			return
		}
		if g.vm.Steps >= cpu.DefaultStepLimit {
			g.err = &cpu.Fault{PC: g.vm.PC, Op: g.vm.Memory[g.vm.PC], Err: cpu.ErrStepLimit}
			return
		}
		if err := g.vm.Step(); err != nil {
			g.err = err
		}
	}
}

func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.paused = !g.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.reset()
	case g.paused && inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.advance(1)
	}
	if !g.paused {
		g.advance(stepsPerFrame)
	}
	return nil
}

func (g *Game) drawText(screen *ebiten.Image, s string, x, y int, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, g.face, op)
}

func (g *Game) Draw(screen *ebiten.Image) {
	for x := 0; x < cols; x++ {
		g.drawText(screen, fmt.Sprintf("%X", x), marginLeft+x*cellWidth+10, 4, color.Gray{0x90})
	}
	for y := 0; y < cpu.MemorySize/cols; y++ {
		g.drawText(screen, fmt.Sprintf("%02X", y*cols), 6, marginTop+y*cellHeight+4, color.Gray{0x90})
	}

	for addr, v := range g.vm.Memory {
		r := cellRect(addr)
		bg := regionColors[g.layout.classify(addr)]
		if addr == int(g.vm.PC) && !g.vm.Halted {
			bg = pcColor
		}
		screen.SubImage(r).(*ebiten.Image).Fill(bg)
		g.drawText(screen, fmt.Sprintf("%02X", v), r.Min.X+7, r.Min.Y+4, color.White)
	}

	top := marginTop + (cpu.MemorySize/cols)*cellHeight + 4
	for i, line := range statusLines(g.vm, g.out.String(), g.paused, g.err) {
		g.drawText(screen, line, 6, top+i*cellHeight, color.White)
	}
	if addr, ok := cellAt(ebiten.CursorPosition()); ok {
		g.drawText(screen, g.describe(addr), screenWidth/2, top+2*cellHeight, color.Gray{0xc0})
	}
}

// describe is the hover text for addr.
func (g *Game) describe(addr int) string {
	return fmt.Sprintf("$%02X = $%02X (%s)", addr, g.vm.Memory[addr], regionNames[g.layout.classify(addr)])
}

func statusLines(vm *cpu.CPU, output string, paused bool, err error) []string {
	state := "running"
	switch {
	case err != nil:
		state = "fault: " + err.Error()
	case vm.Halted:
		state = "halted"
	case paused:
		state = "paused"
	}
	return []string{
		fmt.Sprintf("PC=%02X A=%02X X=%02X Y=%02X Z=%t C=%t steps=%d", vm.PC, vm.A, vm.X, vm.Y, vm.Z, vm.C, vm.Steps),
		"output: " + output,
		state,
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s FILE", os.Args[0])
	}

	fullPath, _, err := utils.GetPathInfo(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to resolve source path: %v", err)
	}
	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	img := firstImage(compiler.Compile(string(sourceBytes), diag.NewWriter(os.Stderr, diag.Info)))
	if img == nil {
		log.Fatalf("No program in %s compiled", os.Args[1])
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth*2, screenHeight*2)
	ebiten.SetWindowTitle("rudc image viewer")

	if err := ebiten.RunGame(NewGame(img)); err != nil {
		log.Fatal(err)
	}
}

func firstImage(results []compiler.ProgramResult) *compiler.Image {
	for _, res := range results {
		if res.OK() {
			return res.Image
		}
	}
	return nil
}
