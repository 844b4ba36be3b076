// Package diag carries compiler diagnostics from the pipeline stages to
// whoever is listening: a terminal, a log file, or a test.
//
// Every diagnostic is a single line of the form
//
//	LEVEL COMPONENT - message
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Level is the severity of a diagnostic.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

var levelNames = [...]string{
	Debug:   "DEBUG",
	Info:    "INFO",
	Warning: "WARNING",
	Error:   "ERROR",
}

// ANSI colours per level, used only when writing to a terminal.
var levelColors = [...]string{
	Debug:   "\x1b[90m",
	Info:    "\x1b[36m",
	Warning: "\x1b[33m",
	Error:   "\x1b[31m",
}

const colorReset = "\x1b[0m"

func (l Level) String() string {
	if int(l) >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Entry is one emitted diagnostic.
type Entry struct {
	Level     Level
	Component string
	Message   string
}

func (e Entry) String() string {
	if e.Component == "" {
		return fmt.Sprintf("%s - %s", e.Level, e.Message)
	}
	return fmt.Sprintf("%s %s - %s", e.Level, e.Component, e.Message)
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Emit(Entry)
}

type discard struct{}

func (discard) Emit(Entry) {}

// Discard drops everything.
var Discard Sink = discard{}

// Writer formats entries onto an io.Writer, dropping anything below Min.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	Min   Level
	color bool
}

// NewWriter returns a Writer that colourizes the level column when out is a
// terminal.
func NewWriter(out io.Writer, min Level) *Writer {
	w := &Writer{out: out, Min: min}
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		w.color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return w
}

// SetColor forces colour output on or off.
func (w *Writer) SetColor(on bool) {
	w.mu.Lock()
	w.color = on
	w.mu.Unlock()
}

func (w *Writer) Emit(e Entry) {
	if e.Level < w.Min {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.color && int(e.Level) >= 0 && int(e.Level) < len(levelColors) {
		line := e.String()
		n := len(e.Level.String())
		fmt.Fprintf(w.out, "%s%s%s%s\n", levelColors[e.Level], line[:n], colorReset, line[n:])
		return
	}
	fmt.Fprintln(w.out, e.String())
}

// Recorder keeps every entry in memory. Tests use it to count diagnostics.
type Recorder struct {
	Entries []Entry
}

func (r *Recorder) Emit(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Count returns how many entries were recorded at level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Messages returns the messages recorded at level, in emission order.
func (r *Recorder) Messages(level Level) []string {
	var out []string
	for _, e := range r.Entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.Entries = r.Entries[:0]
}
