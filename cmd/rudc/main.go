//go:build !js

// Command rudc compiles source files to 256-byte images and can run them on
// the virtual CPU.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"rudc/pkg/asm"
	"rudc/pkg/compiler"
	"rudc/pkg/cpu"
	"rudc/pkg/diag"
	"rudc/pkg/utils"
)

type options struct {
	verbose   bool
	tokens    bool
	cst       bool
	ast       bool
	symbols   bool
	listing   bool
	run       bool
	noColor   bool
	outDir    string
	runBin    string
	stepLimit int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rudc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.BoolVar(&opts.verbose, "v", false, "show DEBUG diagnostics")
	fs.BoolVar(&opts.tokens, "tokens", false, "print the token stream of each program")
	fs.BoolVar(&opts.cst, "cst", false, "print the concrete syntax tree of each program")
	fs.BoolVar(&opts.ast, "ast", false, "print the checked tree of each program")
	fs.BoolVar(&opts.symbols, "symbols", false, "print the symbol table of each program")
	fs.BoolVar(&opts.listing, "listing", false, "print a disassembly of each image")
	fs.BoolVar(&opts.run, "run", false, "run each compiled image on the virtual CPU")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable coloured diagnostics")
	fs.StringVar(&opts.outDir, "out", "", "write each image to `DIR` as <name>.<n>.bin")
	fs.StringVar(&opts.runBin, "run-bin", "", "run an existing image `file` on the virtual CPU")
	fs.IntVar(&opts.stepLimit, "steps", cpu.DefaultStepLimit, "maximum instructions per run")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.runBin != "" {
		if fs.NArg() > 0 {
			fmt.Fprintln(stderr, "use either source files or -run-bin, not both")
			return 2
		}
		if err := runBinary(opts.runBin, opts.stepLimit, stdout); err != nil {
			fmt.Fprintf(stderr, "run failed for %q: %v\n", opts.runBin, err)
			return 1
		}
		return 0
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "nothing to do: provide source files to compile, or -run-bin <file> to run an existing image")
		fs.Usage()
		return 2
	}

	level := diag.Info
	if opts.verbose {
		level = diag.Debug
	}
	sink := diag.NewWriter(stderr, level)
	if opts.noColor {
		sink.SetColor(false)
	}
	log := diag.NewReporter(sink, "COMPILER")

	status := 0
	for _, path := range fs.Args() {
		fullPath, _, err := utils.GetPathInfo(path)
		if err != nil {
			log.Errorf("%v", errors.Wrapf(err, "resolve %s", path))
			status = 1
			continue
		}
		source, err := os.ReadFile(fullPath)
		if err != nil {
			log.Errorf("failed to read input file %q: %v", path, err)
			status = 1
			continue
		}
		if !compileFile(fullPath, string(source), sink, opts, stdout) {
			status = 1
		}
	}
	return status
}

// compileFile compiles every program in source and reports whether all of
// them made it to an image (and, with -run, ran cleanly).
func compileFile(path, source string, sink diag.Sink, opts options, stdout io.Writer) bool {
	log := diag.NewReporter(sink, "COMPILER")
	ok := true

	for _, res := range compiler.Compile(source, sink) {
		dumpStages(stdout, res, opts)

		if !res.OK() {
			ok = false
			continue
		}
		img := res.Image

		fmt.Fprintf(stdout, "Program %d image:\n%s", res.Index, img.Hex())
		fmt.Fprintf(stdout, "program %d: %s code, %s static, %s heap, %s free\n",
			res.Index,
			humanize.Bytes(uint64(img.CodeSize())),
			humanize.Bytes(uint64(img.StaticSize())),
			humanize.Bytes(uint64(img.HeapSize())),
			humanize.Bytes(uint64(freeBytes(img))),
		)

		if opts.listing {
			fmt.Fprintf(stdout, "Program %d listing:\n%s", res.Index, asm.Listing(img.Bytes(), img.CodeSize()))
		}

		if opts.outDir != "" {
			output := defaultOutputPath(path, opts.outDir, res.Index)
			if err := cpu.SaveImage(output, img.Bytes()); err != nil {
				log.Errorf("%v", err)
				ok = false
			} else {
				log.Infof("wrote %s -> %s", humanize.Bytes(uint64(compiler.ImageSize)), output)
			}
		}

		if opts.run {
			vm, err := compiler.Run(img, compiler.Options{StepLimit: opts.stepLimit, Output: stdout})
			fmt.Fprintln(stdout)
			if err != nil {
				log.Errorf("program %d: %v", res.Index, err)
				ok = false
				continue
			}
			fmt.Fprintln(stdout, runSummary(fmt.Sprintf("program %d", res.Index), vm))
		}
	}
	return ok
}

func dumpStages(w io.Writer, res compiler.ProgramResult, opts options) {
	if opts.tokens && res.Tokens != nil {
		fmt.Fprintf(w, "Program %d tokens:\n", res.Index)
		for _, tok := range res.Tokens {
			fmt.Fprintf(w, "  %s\n", tok)
		}
	}
	if opts.cst && res.CST != nil {
		fmt.Fprintf(w, "Program %d concrete syntax tree:\n%s", res.Index, res.CST)
	}
	if opts.ast && res.Analysis != nil {
		fmt.Fprintf(w, "Program %d checked tree:\n%s", res.Index, res.Analysis.Tree)
	}
	if opts.symbols && res.Analysis != nil {
		fmt.Fprintf(w, "Program %d symbol table:\n", res.Index)
		res.Analysis.Symbols.Report(w)
	}
}

func freeBytes(img *compiler.Image) int {
	return compiler.ImageSize - img.CodeSize() - img.StaticSize() - img.HeapSize()
}

// defaultOutputPath names the image for program n of inPath inside dir:
// hello.rud -> dir/hello.1.bin
func defaultOutputPath(inPath, dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d.bin", utils.Stem(inPath), n))
}

func runBinary(path string, stepLimit int, stdout io.Writer) error {
	image, err := cpu.LoadImage(path)
	if err != nil {
		return err
	}

	vm := cpu.NewCPU()
	vm.Output = stdout
	if err := vm.Load(image); err != nil {
		return err
	}
	err = vm.Run(stepLimit)
	fmt.Fprintln(stdout)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, runSummary(path, vm))
	return nil
}

func runSummary(name string, vm *cpu.CPU) string {
	return fmt.Sprintf(
		"run complete (%s): PC=0x%02X A=0x%02X X=0x%02X Y=0x%02X Z=%t C=%t steps=%s",
		name,
		vm.PC,
		vm.A,
		vm.X,
		vm.Y,
		vm.Z,
		vm.C,
		humanize.Comma(int64(vm.Steps)),
	)
}
