package cpu

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"rudc/pkg/grid"
)

// HexColumns is the number of bytes per row in HexDump and the viewer.
const HexColumns = 16

// SaveImage writes image to path as raw bytes.
func SaveImage(path string, image []byte) error {
	if len(image) > MemorySize {
		return errors.Errorf("image is %d bytes, larger than memory (%d bytes)", len(image), MemorySize)
	}
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return errors.Wrapf(err, "write image %s", path)
	}
	return nil
}

// LoadImage reads a raw image previously written by SaveImage.
func LoadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read image %s", path)
	}
	if len(data) > MemorySize {
		return nil, errors.Errorf("image %s is %d bytes, larger than memory (%d bytes)", path, len(data), MemorySize)
	}
	return data, nil
}

// HexDump renders image as uppercase hex, HexColumns bytes per line,
// separated by single spaces.
func HexDump(image []byte) string {
	var b strings.Builder
	for i, v := range image {
		x, _ := grid.GetGridCoords(i, HexColumns)
		if x > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
		if x == HexColumns-1 || i == len(image)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
