package diag

import "fmt"

// Reporter stamps diagnostics with a component name and counts the errors
// and warnings that pass through it. Each pipeline stage owns one.
type Reporter struct {
	sink      Sink
	component string
	errors    int
	warnings  int
}

func NewReporter(sink Sink, component string) *Reporter {
	if sink == nil {
		sink = Discard
	}
	return &Reporter{sink: sink, component: component}
}

func (r *Reporter) emit(level Level, format string, args ...any) {
	r.sink.Emit(Entry{Level: level, Component: r.component, Message: fmt.Sprintf(format, args...)})
}

func (r *Reporter) Debugf(format string, args ...any) { r.emit(Debug, format, args...) }
func (r *Reporter) Infof(format string, args ...any)  { r.emit(Info, format, args...) }

func (r *Reporter) Warnf(format string, args ...any) {
	r.warnings++
	r.emit(Warning, format, args...)
}

func (r *Reporter) Errorf(format string, args ...any) {
	r.errors++
	r.emit(Error, format, args...)
}

// Notef emits at level without touching the counters.
func (r *Reporter) Notef(level Level, format string, args ...any) {
	r.emit(level, format, args...)
}

func (r *Reporter) Errors() int   { return r.errors }
func (r *Reporter) Warnings() int { return r.warnings }

// Reset zeroes both counters.
func (r *Reporter) Reset() {
	r.errors = 0
	r.warnings = 0
}
