package compiler

import (
	"strings"

	"rudc/pkg/diag"
)

// Analysis is the result of semantic analysis of one program.
type Analysis struct {
	Tree     *Node // checked tree; built even when errors were found
	Symbols  *SymbolTable
	Errors   int
	Warnings int
}

// Analyzer walks a concrete syntax tree once, building the checked tree
// while it resolves scopes and synthesizes types. The input tree is never
// modified.
type Analyzer struct {
	rep     *diag.Reporter
	symbols *SymbolTable
}

func NewAnalyzer(sink diag.Sink) *Analyzer {
	rep := diag.NewReporter(sink, PhaseAnalyze.String())
	return &Analyzer{rep: rep, symbols: NewSymbolTable(rep)}
}

// Analyze checks cst and returns the analysis. The returned error is a
// *PhaseError when any semantic error was reported; the analysis is still
// returned so callers can print the tree and the symbol table.
func Analyze(cst *Node, sink diag.Sink) (*Analysis, error) {
	a := NewAnalyzer(sink)
	a.rep.Infof("analyze()")

	tree := a.block(cst)
	res := &Analysis{
		Tree:     tree,
		Symbols:  a.symbols,
		Errors:   a.rep.Errors(),
		Warnings: a.rep.Warnings(),
	}

	if res.Errors > 0 {
		a.rep.Notef(diag.Error, "Semantic analysis failed with %d error(s) and %d warning(s)", res.Errors, res.Warnings)
		return res, &PhaseError{Phase: PhaseAnalyze, Count: res.Errors}
	}
	a.rep.Infof("Semantic analysis completed with 0 errors and %d warning(s)", res.Warnings)
	return res, nil
}

func (a *Analyzer) block(n *Node) *Node {
	out := newNode(Block, n.Line)
	a.symbols.EnterScope()
	if list := n.Child(0); list != nil {
		for _, stmt := range list.Children {
			if s := a.statement(stmt); s != nil {
				out.add(s)
			}
		}
	}
	a.symbols.ExitScope()
	return out
}

func (a *Analyzer) statement(n *Node) *Node {
	if n.Kind == Statement {
		n = n.Child(0)
		if n == nil {
			return nil
		}
	}

	switch n.Kind {
	case Block:
		return a.block(n)

	case VarDecl:
		typeLeaf, idNode := n.Child(0), n.Child(1)
		name := leafValue(idNode)
		typ := TypeFromKeyword(typeLeaf.Value)
		a.symbols.Declare(name, typ, n.Line)
		out := newNode(VarDecl, n.Line)
		out.add(&Node{Kind: Terminal, Value: typeLeaf.Value, Line: typeLeaf.Line})
		out.add(&Node{Kind: Id, Value: name, Line: n.Line, Type: typ})
		return out

	case AssignmentStatement:
		return a.assignment(n)

	case PrintStatement:
		out := newNode(PrintStatement, n.Line)
		out.add(a.expression(n.Child(0)))
		return out

	case IfStatement, WhileStatement:
		out := newNode(n.Kind, n.Line)
		cond := a.expression(n.Child(0))
		if cond.Type != Boolean {
			keyword := "if"
			if n.Kind == WhileStatement {
				keyword = "while"
			}
			a.rep.Errorf("Non-boolean expression in %s at line %d", keyword, n.Line)
		}
		out.add(cond)
		out.add(a.block(n.Child(1)))
		return out
	}

	a.rep.Errorf("Unexpected %s node at line %d", n.Kind, n.Line)
	return nil
}

// assignment resolves the target without marking it used, synthesizes the
// right-hand type and marks the target initialized when the types agree.
func (a *Analyzer) assignment(n *Node) *Node {
	name := leafValue(n.Child(0))
	target := &Node{Kind: Id, Value: name, Line: n.Line}

	sym := a.symbols.Lookup(name)
	if sym == nil {
		a.rep.Errorf("Undeclared variable '%s' assigned at line %d", name, n.Line)
	} else {
		target.Type = sym.Type
	}

	rhs := a.expression(n.Child(1))
	if sym != nil && rhs.Type != Unknown {
		if rhs.Type != sym.Type {
			a.rep.Errorf("Type mismatch in assignment to '%s' at line %d: expected %s, got %s", name, n.Line, sym.Type, rhs.Type)
		} else {
			sym.Initialized = true
		}
	}

	out := newNode(AssignmentStatement, n.Line)
	out.add(target)
	out.add(rhs)
	return out
}

// expression returns the checked form of an expression subtree, unwrapping
// Expression nodes and folding leaf wrappers into single nodes.
func (a *Analyzer) expression(n *Node) *Node {
	if n == nil {
		return &Node{Kind: Expression}
	}
	if n.Kind == Expression {
		inner := n.Child(0)
		if inner == nil {
			return &Node{Kind: Expression, Line: n.Line}
		}
		n = inner
	}

	switch n.Kind {
	case IntExpression:
		return a.intExpression(n)

	case StringExpression:
		var b strings.Builder
		if chars := n.Child(0); chars != nil {
			for _, c := range chars.Children {
				b.WriteString(c.Value)
			}
		}
		return &Node{Kind: StringExpression, Value: b.String(), Line: n.Line, Type: String}

	case BooleanExpression:
		if len(n.Children) == 1 {
			return &Node{Kind: BooleanExpression, Value: n.Child(0).Value, Line: n.Line, Type: Boolean}
		}
		lhs := a.expression(n.Child(0))
		op := leafValue(n.Child(1))
		rhs := a.expression(n.Child(2))
		if lhs.Type != Unknown && rhs.Type != Unknown && lhs.Type != rhs.Type {
			a.rep.Errorf("Type mismatch in comparison at line %d: %s %s %s", n.Line, lhs.Type, op, rhs.Type)
		}
		out := &Node{Kind: BooleanExpression, Value: op, Line: n.Line, Type: Boolean}
		out.add(lhs)
		out.add(rhs)
		return out

	case Id:
		return a.use(leafValue(n), n.Line)
	}

	a.rep.Errorf("Invalid expression at line %d", n.Line)
	return &Node{Kind: n.Kind, Line: n.Line}
}

func (a *Analyzer) intExpression(n *Node) *Node {
	lit := n.Child(0).Value
	if v, wrapped := literalByte(lit); wrapped {
		a.rep.Warnf("Integer literal %s at line %d does not fit in 8 bits and wraps to %d", lit, n.Line, v)
	}

	out := &Node{Kind: IntExpression, Line: n.Line, Type: Int}
	out.add(&Node{Kind: Terminal, Value: lit, Line: n.Line})
	if len(n.Children) < 3 {
		return out
	}

	rhs := a.expression(n.Child(2))
	if rhs.Type != Int && rhs.Type != Unknown {
		a.rep.Errorf("Type mismatch at line %d: cannot add %s to int", n.Line, rhs.Type)
	}
	out.add(rhs)
	return out
}

// use resolves an identifier that is being read.
func (a *Analyzer) use(name string, line int) *Node {
	out := &Node{Kind: Id, Value: name, Line: line}
	sym := a.symbols.Lookup(name)
	if sym == nil {
		a.rep.Errorf("Undeclared identifier '%s' used at line %d", name, line)
		return out
	}
	sym.Used = true
	if !sym.Initialized {
		a.rep.Warnf("Variable '%s' used before being initialized at line %d", name, line)
	}
	out.Type = sym.Type
	return out
}

// leafValue returns the lexeme under a wrapper like Id or BoolOp, or the
// node's own value when it is already a leaf.
func leafValue(n *Node) string {
	if n == nil {
		return ""
	}
	if c := n.Child(0); c != nil {
		return c.Value
	}
	return n.Value
}

// literalByte reduces a decimal literal modulo 256. wrapped reports whether
// the literal was larger than 255.
func literalByte(lit string) (v byte, wrapped bool) {
	var mod int
	significant := 0
	for _, r := range lit {
		d := int(r - '0')
		mod = (mod*10 + d) % 256
		if significant > 0 || d != 0 {
			significant++
		}
	}
	wrapped = significant > 3 || (significant == 3 && lit[len(lit)-3:] > "255")
	return byte(mod), wrapped
}
