package compiler

import (
	"fmt"
	"sort"

	"rudc/pkg/cpu"
)

// ImageSize is the size of every generated image.
const ImageSize = cpu.MemorySize

type patchKind int

const (
	patchAbsolute patchKind = iota // 2-byte little-endian address
	patchRelative                  // 1-byte displacement from the next byte
)

type patchSite struct {
	offset int
	kind   patchKind
}

func (p patchSite) size() int {
	if p.kind == patchAbsolute {
		return 2
	}
	return 1
}

// PatchRange is one resolved backpatch: bytes [Start, End) of the image were
// overwritten with the address of Label.
type PatchRange struct {
	Label string
	Start int
	End   int
}

// Image is a fixed 256-byte memory image. Code grows up from address 0 and
// string data grows down from the top. Operands that name a not yet known
// address are written as placeholders and recorded against a label; Backpatch
// resolves them all at once.
type Image struct {
	mem  [ImageSize]byte
	code int // next free code byte
	heap int // next free heap byte, counting down

	static int // first byte of static storage, set by Backpatch

	patches  map[string][]patchSite
	order    []string // labels in first-reference order
	addrs    map[string]int
	resolved []PatchRange
}

func NewImage() *Image {
	return &Image{
		heap:    ImageSize - 1,
		static:  -1,
		patches: make(map[string][]patchSite),
		addrs:   make(map[string]int),
	}
}

// CodeCursor is the address of the next code byte.
func (img *Image) CodeCursor() int { return img.code }

// HeapCursor is the address of the next free heap byte. It starts at 255
// and only ever decreases.
func (img *Image) HeapCursor() int { return img.heap }

// StaticStart is where static storage begins, or -1 before Backpatch.
func (img *Image) StaticStart() int { return img.static }

// StaticSize is the number of static bytes laid out by Backpatch.
func (img *Image) StaticSize() int {
	if img.static < 0 {
		return 0
	}
	return img.code - img.static
}

// HeapSize is the number of heap bytes allocated.
func (img *Image) HeapSize() int { return ImageSize - 1 - img.heap }

// CodeSize is the number of instruction bytes.
func (img *Image) CodeSize() int {
	if img.static >= 0 {
		return img.static
	}
	return img.code
}

func (img *Image) overflow() error {
	return &GenerationError{Code: img.code, Heap: img.heap, Err: ErrImageOverflow}
}

// reserve checks that n more bytes fit below the heap.
func (img *Image) reserve(n int) error {
	if img.code+n > img.heap+1 {
		return img.overflow()
	}
	return nil
}

// Emit appends raw bytes at the code cursor.
func (img *Image) Emit(b ...byte) error {
	if err := img.reserve(len(b)); err != nil {
		return err
	}
	copy(img.mem[img.code:], b)
	img.code += len(b)
	return nil
}

func (img *Image) ref(label string, kind patchKind) {
	if _, seen := img.patches[label]; !seen {
		img.order = append(img.order, label)
	}
	img.patches[label] = append(img.patches[label], patchSite{offset: img.code, kind: kind})
}

// EmitAbsolute appends op followed by a 2-byte placeholder for the address of
// label.
func (img *Image) EmitAbsolute(op byte, label string) error {
	if err := img.reserve(3); err != nil {
		return err
	}
	img.mem[img.code] = op
	img.code++
	img.ref(label, patchAbsolute)
	img.code += 2
	return nil
}

// EmitRelative appends op followed by a 1-byte placeholder for the
// displacement to label.
func (img *Image) EmitRelative(op byte, label string) error {
	if err := img.reserve(2); err != nil {
		return err
	}
	img.mem[img.code] = op
	img.code++
	img.ref(label, patchRelative)
	img.code++
	return nil
}

// Mark binds label to the current code address.
func (img *Image) Mark(label string) {
	img.addrs[label] = img.code
}

// AllocString copies s and a terminating zero to the top of the free heap
// and returns its address. Equal strings are stored separately.
func (img *Image) AllocString(s string) (byte, error) {
	n := len(s) + 1
	start := img.heap - n + 1
	if start < img.code {
		return 0, img.overflow()
	}
	copy(img.mem[start:], s)
	img.mem[start+n-1] = 0
	img.heap = start - 1
	return byte(start), nil
}

// Backpatch lays out one static byte per temp label directly after the code,
// then overwrites every recorded placeholder with its resolved value. Every
// referenced label must be either a temp or a marked code address.
func (img *Image) Backpatch(temps []string) error {
	if err := img.reserve(len(temps)); err != nil {
		return err
	}
	img.static = img.code
	for _, t := range temps {
		img.addrs[t] = img.code
		img.code++
	}

	img.resolved = img.resolved[:0]
	for _, label := range img.order {
		addr, ok := img.addrs[label]
		if !ok {
			return &GenerationError{Code: img.code, Heap: img.heap, Err: fmt.Errorf("unresolved label %s", label)}
		}
		for _, site := range img.patches[label] {
			switch site.kind {
			case patchAbsolute:
				img.mem[site.offset] = byte(addr)
				img.mem[site.offset+1] = byte(addr >> 8)
			case patchRelative:
				img.mem[site.offset] = byte(addr - (site.offset + 1))
			}
			img.resolved = append(img.resolved, PatchRange{Label: label, Start: site.offset, End: site.offset + site.size()})
		}
	}
	sort.Slice(img.resolved, func(i, j int) bool { return img.resolved[i].Start < img.resolved[j].Start })
	return nil
}

// Address returns the resolved address of label.
func (img *Image) Address(label string) (int, bool) {
	a, ok := img.addrs[label]
	return a, ok
}

// Patches returns the byte ranges rewritten by Backpatch, sorted by start.
func (img *Image) Patches() []PatchRange {
	return append([]PatchRange(nil), img.resolved...)
}

// Bytes returns a copy of the full 256-byte image.
func (img *Image) Bytes() []byte {
	out := make([]byte, ImageSize)
	copy(out, img.mem[:])
	return out
}

// Hex renders the image 16 bytes per line.
func (img *Image) Hex() string {
	return cpu.HexDump(img.mem[:])
}
