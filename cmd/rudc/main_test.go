package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompileRunAndReload(t *testing.T) {
	outDir := t.TempDir()

	// 1. Compile both programs, saving and running the good one
	var stdout, stderr bytes.Buffer
	status := run([]string{"-run", "-symbols", "-out", outDir, "testdata/count.rud"}, &stdout, &stderr)
	if status != 1 {
		t.Errorf("status = %d; want 1 because program 2 fails", status)
	}

	out := stdout.String()
	for _, frag := range []string{
		"Program 1 image:",
		"Program 1 symbol table:",
		"012done",
		"run complete (program 1)",
	} {
		if !strings.Contains(out, frag) {
			t.Errorf("stdout missing %q. Got:\n%s", frag, out)
		}
	}
	if strings.Contains(out, "Program 2 image:") {
		t.Errorf("program 2 should not produce an image")
	}

	errs := stderr.String()
	for _, frag := range []string{
		"ERROR SEMANTIC ANALYZER - Undeclared identifier 'x'",
		"INFO COMPILER - CODE GENERATOR for program 2: Skipped due to SEMANTIC ANALYZER error(s)",
	} {
		if !strings.Contains(errs, frag) {
			t.Errorf("stderr missing %q. Got:\n%s", frag, errs)
		}
	}

	// 2. Only the first image is on disk
	saved := filepath.Join(outDir, "count.1.bin")
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if len(data) != 256 {
		t.Errorf("saved image is %d bytes; want 256", len(data))
	}
	if _, err := os.Stat(filepath.Join(outDir, "count.2.bin")); !os.IsNotExist(err) {
		t.Errorf("failed program should not be saved (stat err = %v)", err)
	}

	// 3. Run the saved image again
	stdout.Reset()
	stderr.Reset()
	if status := run([]string{"-run-bin", saved}, &stdout, &stderr); status != 0 {
		t.Fatalf("-run-bin status = %d; stderr:\n%s", status, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "012done\n") {
		t.Errorf("-run-bin output = %q", stdout.String())
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"No input", nil, "nothing to do"},
		{"Both inputs", []string{"-run-bin", "x.bin", "a.rud"}, "not both"},
		{"Unknown flag", []string{"-bogus"}, "flag provided but not defined"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if status := run(tc.args, &stdout, &stderr); status != 2 {
				t.Errorf("status = %d; want 2", status)
			}
			if !strings.Contains(stderr.String(), tc.want) {
				t.Errorf("stderr = %q; want it to contain %q", stderr.String(), tc.want)
			}
		})
	}
}

func TestMissingFiles(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if status := run([]string{"-no-color", "testdata/missing.rud"}, &stdout, &stderr); status != 1 {
		t.Errorf("status = %d; want 1", status)
	}
	if !strings.Contains(stderr.String(), "failed to read input file") {
		t.Errorf("stderr = %q", stderr.String())
	}

	stderr.Reset()
	if status := run([]string{"-run-bin", "testdata/missing.bin"}, &stdout, &stderr); status != 1 {
		t.Errorf("status = %d; want 1", status)
	}
	if !strings.Contains(stderr.String(), "read image testdata/missing.bin") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"/src/hello.rud", 1, filepath.Join("out", "hello.1.bin")},
		{"prog", 3, filepath.Join("out", "prog.3.bin")},
		{"a.b.rud", 2, filepath.Join("out", "a.b.2.bin")},
	}
	for _, tc := range tests {
		if got := defaultOutputPath(tc.in, "out", tc.n); got != tc.want {
			t.Errorf("defaultOutputPath(%q, %d) = %q; want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
