package compiler

import (
	"io"

	"rudc/pkg/cpu"
	"rudc/pkg/diag"
)

// driverComponent labels diagnostics emitted by Compile itself.
const driverComponent = "COMPILER"

// ProgramResult holds everything produced for one '$'-terminated program.
// Fields for stages that did not run are nil.
type ProgramResult struct {
	Index    int // 1-based program number within the source
	Tokens   []Token
	CST      *Node
	Analysis *Analysis
	Image    *Image

	Failed Phase // meaningful only when Err != nil
	Err    error
}

// OK reports whether every stage succeeded.
func (r *ProgramResult) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Compile runs every program in src through the pipeline. A failure in one
// stage skips the remaining stages for that program only.
func Compile(src string, sink diag.Sink) []ProgramResult {
	if sink == nil {
		sink = diag.Discard
	}
	log := diag.NewReporter(sink, driverComponent)
	lx := NewLexer(src, sink)

	var results []ProgramResult
	for lx.More() {
		res := ProgramResult{Index: len(results) + 1}

		log.Infof("Lexing program %d..", res.Index)
		toks, err := lx.Scan()
		if err != nil {
			res.Failed, res.Err = PhaseLex, err
			skip(log, res.Index, PhaseLex)
			results = append(results, res)
			continue
		}
		if len(toks) == 0 {
			// Only comments were left.
			continue
		}
		res.Tokens = toks

		log.Infof("Parsing program %d..", res.Index)
		res.CST, err = Parse(toks, sink)
		if err != nil {
			res.Failed, res.Err = PhaseParse, err
			skip(log, res.Index, PhaseParse)
			results = append(results, res)
			continue
		}

		log.Infof("Analyzing program %d..", res.Index)
		res.Analysis, err = Analyze(res.CST, sink)
		if err != nil {
			res.Failed, res.Err = PhaseAnalyze, err
			skip(log, res.Index, PhaseAnalyze)
			results = append(results, res)
			continue
		}

		log.Infof("Generating code for program %d..", res.Index)
		res.Image, err = Generate(res.Analysis.Tree, sink)
		if err != nil {
			res.Failed, res.Err = PhaseGenerate, err
		}
		results = append(results, res)
	}
	return results
}

// skip announces every stage after failed as skipped.
func skip(log *diag.Reporter, index int, failed Phase) {
	for p := failed + 1; p <= PhaseGenerate; p++ {
		log.Infof("%s for program %d: Skipped due to %s error(s)", p, index, failed)
	}
}

// Options controls Run.
type Options struct {
	StepLimit int       // non-positive means cpu.DefaultStepLimit
	Output    io.Writer // receives SYS prints; nil means os.Stdout
}

// Run loads img into a fresh CPU and executes it until BRK, a fault, or the
// step limit. The CPU is returned even on error for inspection.
func Run(img *Image, opts Options) (*cpu.CPU, error) {
	c := cpu.NewCPU()
	c.Output = opts.Output
	if err := c.Load(img.Bytes()); err != nil {
		return c, err
	}
	return c, c.Run(opts.StepLimit)
}
