package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"rudc/pkg/diag"
)

func analyzeSrc(t *testing.T, src string) (*Analysis, *diag.Recorder, error) {
	t.Helper()
	cst := mustParse(t, src)
	rec := &diag.Recorder{}
	res, err := Analyze(cst, rec)
	if res == nil {
		t.Fatalf("Analyze returned no analysis")
	}
	return res, rec, err
}

func countContaining(msgs []string, sub string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			n++
		}
	}
	return n
}

func TestAnalyzeUndeclaredPrint(t *testing.T) {
	res, rec, err := analyzeSrc(t, "{print(x)}$")
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseAnalyze {
		t.Fatalf("Analyze error = %v; want semantic *PhaseError", err)
	}
	if res.Errors != 1 {
		t.Errorf("Errors = %d; want 1", res.Errors)
	}
	if n := countContaining(rec.Messages(diag.Error), "Undeclared identifier 'x'"); n != 1 {
		t.Errorf("undeclared errors = %d; want 1 (%v)", n, rec.Messages(diag.Error))
	}
}

func TestAnalyzeShadowingAndRedeclaration(t *testing.T) {
	res, rec, err := analyzeSrc(t, "{int a{int a}}$")
	if err != nil {
		t.Fatalf("shadowing should analyze cleanly: %v", err)
	}
	if n := countContaining(rec.Messages(diag.Error), "Redeclaration"); n != 0 {
		t.Errorf("redeclaration errors = %d; want 0", n)
	}
	if len(res.Symbols.Symbols()) != 2 {
		t.Errorf("symbols = %d; want 2", len(res.Symbols.Symbols()))
	}

	res, rec, err = analyzeSrc(t, "{int a int a}$")
	if err == nil {
		t.Fatalf("redeclaration should fail analysis")
	}
	if n := countContaining(rec.Messages(diag.Error), "Redeclaration"); n != 1 {
		t.Errorf("redeclaration errors = %d; want 1", n)
	}
	if res.Errors != 1 {
		t.Errorf("Errors = %d; want 1", res.Errors)
	}
}

func TestAnalyzeUnusedWarning(t *testing.T) {
	res, rec, err := analyzeSrc(t, "{int a}$")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Errors != 0 || res.Warnings != 1 {
		t.Errorf("Errors=%d Warnings=%d; want 0, 1", res.Errors, res.Warnings)
	}
	if n := countContaining(rec.Messages(diag.Warning), "declared but never used"); n != 1 {
		t.Errorf("unused warnings = %d; want 1", n)
	}
}

func TestAnalyzeInitializedButUnused(t *testing.T) {
	_, rec, err := analyzeSrc(t, "{int a a = 1}$")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	warnings := rec.Messages(diag.Warning)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "declared and initialized but never used") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestAnalyzeAssignmentTargetNotUsed(t *testing.T) {
	res, _, err := analyzeSrc(t, "{int a a = 1}$")
	if err != nil {
		t.Fatal(err)
	}
	sym := res.Symbols.Symbols()[0]
	if sym.Used {
		t.Errorf("assignment target must not be marked used")
	}
	if !sym.Initialized {
		t.Errorf("assignment should mark the target initialized")
	}
}

func TestAnalyzeUninitializedUse(t *testing.T) {
	res, rec, err := analyzeSrc(t, "{int a print(a)}$")
	if err != nil {
		t.Fatalf("uninitialized use is only a warning: %v", err)
	}
	if n := countContaining(rec.Messages(diag.Warning), "used before being initialized"); n != 1 {
		t.Errorf("uninitialized warnings = %d; want 1", n)
	}
	if !res.Symbols.Symbols()[0].Used {
		t.Errorf("print should mark the symbol used")
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"Assign undeclared", "{a = 1}$", "Undeclared variable 'a' assigned"},
		{"Int to string", `{string s s = 1}$`, "Type mismatch in assignment to 's' at line 1: expected string, got int"},
		{"String to int", `{int a a = "x"}$`, "expected int, got string"},
		{"Bool to int", "{int a a = true}$", "expected int, got boolean"},
		{"Comparison to int", "{int a a = (1 == 1)}$", "expected int, got boolean"},
		{"Adding a string", `{int a a = 1 + "x"}$`, "cannot add string to int"},
		{"Comparing different types", `{if (1 == "a") {}}$`, "Type mismatch in comparison at line 1: int == string"},
		{"Undeclared in condition", "{while (x != 1) {}}$", "Undeclared identifier 'x'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, rec, err := analyzeSrc(t, tc.src)
			if err == nil {
				t.Fatalf("expected analysis to fail")
			}
			msgs := rec.Messages(diag.Error)
			if countContaining(msgs, tc.wantMsg) != 1 {
				t.Errorf("no error containing %q in %# v", tc.wantMsg, pretty.Formatter(msgs))
			}
		})
	}
}

func TestAnalyzeBodyCheckedAfterBadCondition(t *testing.T) {
	_, rec, err := analyzeSrc(t, "{if (x == 1) {print(y)}}$")
	if err == nil {
		t.Fatal("expected failure")
	}
	msgs := rec.Messages(diag.Error)
	if countContaining(msgs, "'x'") != 1 || countContaining(msgs, "'y'") != 1 {
		t.Errorf("body should still be analyzed: %v", msgs)
	}
}

func TestAnalyzeWrapWarning(t *testing.T) {
	_, rec, err := analyzeSrc(t, "{int a a = 300 print(a)}$")
	if err != nil {
		t.Fatal(err)
	}
	if n := countContaining(rec.Messages(diag.Warning), "wraps to 44"); n != 1 {
		t.Errorf("wrap warnings = %d; want 1 (%v)", n, rec.Messages(diag.Warning))
	}
}

func TestCheckedTree(t *testing.T) {
	res, _, err := analyzeSrc(t, `{
		int a
		a = 1 + 2
		string s
		s = "hi"
		if (a != 3) { print(s) }
	}$`)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	want := strings.Join([]string{
		"<Block>",
		"-<VarDecl>",
		"--[int]",
		"--[a] : int",
		"-<AssignmentStatement>",
		"--[a] : int",
		"--<IntExpression> : int",
		"---[1]",
		"---<IntExpression> : int",
		"----[2]",
		"-<VarDecl>",
		"--[string]",
		"--[s] : string",
		"-<AssignmentStatement>",
		"--[s] : string",
		"--[hi] : string",
		"-<IfStatement>",
		"--<BooleanExpression> [!=] : boolean",
		"---[a] : int",
		"---<IntExpression> : int",
		"----[3]",
		"--<Block>",
		"---<PrintStatement>",
		"----[s] : string",
	}, "\n") + "\n"

	if got := res.Tree.String(); got != want {
		t.Errorf("checked tree mismatch:\n%s", strings.Join(pretty.Diff(got, want), "\n"))
	}
}

func TestAnalyzeDoesNotMutateCST(t *testing.T) {
	cst := mustParse(t, "{int a a = 1 print(a)}$")
	before := cst.String()
	if _, err := Analyze(cst, diag.Discard); err != nil {
		t.Fatal(err)
	}
	if after := cst.String(); after != before {
		t.Errorf("CST changed during analysis:\n%s", strings.Join(pretty.Diff(before, after), "\n"))
	}
}

func TestLiteralByte(t *testing.T) {
	tests := []struct {
		lit     string
		want    byte
		wrapped bool
	}{
		{"0", 0, false},
		{"255", 255, false},
		{"0255", 255, false},
		{"256", 0, true},
		{"300", 44, true},
		{"1000", 232, true},
		{"99999999999999999999", 255, true},
	}
	for _, tc := range tests {
		got, wrapped := literalByte(tc.lit)
		if got != tc.want || wrapped != tc.wrapped {
			t.Errorf("literalByte(%q) = %d, %v; want %d, %v", tc.lit, got, wrapped, tc.want, tc.wrapped)
		}
	}
}
