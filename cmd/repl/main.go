// Command repl compiles programs typed at the terminal. Input is collected
// line by line until a line ends with '$', then the buffer is compiled, its
// diagnostics and image are printed, and the program is run.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"rudc/pkg/compiler"
	"rudc/pkg/diag"
)

const (
	banner      = "rudc repl. End a program with '$'. Type :quit to exit."
	historyFile = ".rudc_history"
	promptMain  = "rudc> "
	promptCont  = "  ... "
)

func main() {
	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sink := diag.NewWriter(os.Stderr, diag.Info)
	for {
		src, ok := readProgram(ln)
		if !ok {
			fmt.Println()
			return
		}

		trimmed := strings.TrimSpace(src)
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return
			case ":debug":
				sink.Min = diag.Debug
			case ":info":
				sink.Min = diag.Info
			default:
				fmt.Println("unknown command. Commands: :quit, :debug, :info")
			}
			continue
		}
		if trimmed == "" {
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		evaluate(os.Stdout, src, sink)
	}
}

// readProgram prompts until the buffer holds a complete program. A line that
// starts with ':' is returned on its own as a command.
func readProgram(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the partial program.
			if errors.Is(err, liner.ErrPromptAborted) {
				return "", true
			}
			return "", false
		}

		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if complete(b.String()) {
			return b.String(), true
		}
	}
}

// complete reports whether src ends a program.
func complete(src string) bool {
	return strings.HasSuffix(strings.TrimSpace(src), "$")
}

// evaluate compiles every program in src, prints each image and runs it.
func evaluate(w io.Writer, src string, sink diag.Sink) {
	for _, res := range compiler.Compile(src, sink) {
		if !res.OK() {
			fmt.Fprintf(w, "program %d failed in %s\n", res.Index, res.Failed)
			continue
		}
		fmt.Fprintf(w, "%s", res.Image.Hex())
		fmt.Fprint(w, "output: ")
		if _, err := compiler.Run(res.Image, compiler.Options{Output: w}); err != nil {
			fmt.Fprintf(w, "\nrun failed: %v\n", err)
			continue
		}
		fmt.Fprintln(w)
	}
}
