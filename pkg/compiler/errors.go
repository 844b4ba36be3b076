package compiler

import (
	"errors"
	"fmt"
)

// Phase names a pipeline stage. The name doubles as the diagnostics
// component for that stage.
type Phase int

const (
	PhaseLex Phase = iota
	PhaseParse
	PhaseAnalyze
	PhaseGenerate
)

var phaseNames = [...]string{
	PhaseLex:      "LEXER",
	PhaseParse:    "PARSER",
	PhaseAnalyze:  "SEMANTIC ANALYZER",
	PhaseGenerate: "CODE GENERATOR",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// PhaseError reports that a stage finished with accumulated errors. The
// individual errors were already emitted as diagnostics.
type PhaseError struct {
	Phase Phase
	Count int
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed with %d error(s)", e.Phase, e.Count)
}

// ErrImageOverflow is returned when code and heap would overlap.
var ErrImageOverflow = errors.New("image overflow: code collides with heap")

// GenerationError is the fatal failure of code generation.
type GenerationError struct {
	Code int // code cursor when generation stopped
	Heap int // heap cursor when generation stopped
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("code generation failed (code=$%02X heap=$%02X): %v", e.Code, e.Heap, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
