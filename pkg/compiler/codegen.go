package compiler

import (
	"fmt"

	"rudc/pkg/cpu"
	"rudc/pkg/diag"
)

type varInfo struct {
	label string
	typ   DataType
	line  int
}

// CodeGen walks a checked tree and emits machine code into an Image.
//
// Every variable and every intermediate value lives in a one-byte temp in
// static storage. Temps are named T0, T1, ... and jump targets J0, J1, ...;
// both are resolved by the Image's backpatch pass once the code size is
// known.
type CodeGen struct {
	img    *Image
	scopes []map[string]varInfo
	temps  []string
	jumps  int
	rep    *diag.Reporter
}

func NewCodeGen(sink diag.Sink) *CodeGen {
	return &CodeGen{
		img: NewImage(),
		rep: diag.NewReporter(sink, PhaseGenerate.String()),
	}
}

// Generate compiles a checked tree into a 256-byte image. Generation stops at
// the first error; the only expected one is a *GenerationError wrapping
// ErrImageOverflow.
func Generate(tree *Node, sink diag.Sink) (*Image, error) {
	g := NewCodeGen(sink)
	g.rep.Infof("generate()")

	err := g.statement(tree)
	if err == nil {
		err = g.img.Emit(cpu.OpBRK)
	}
	if err == nil {
		err = g.img.Backpatch(g.temps)
	}
	if err != nil {
		g.rep.Errorf("%v", err)
		return nil, err
	}

	g.rep.Infof("Code generation completed: %d code, %d static, %d heap byte(s)",
		g.img.CodeSize(), g.img.StaticSize(), g.img.HeapSize())
	return g.img, nil
}

func (g *CodeGen) newTemp() string {
	t := fmt.Sprintf("T%d", len(g.temps))
	g.temps = append(g.temps, t)
	return t
}

func (g *CodeGen) newJump() string {
	j := fmt.Sprintf("J%d", g.jumps)
	g.jumps++
	return j
}

func (g *CodeGen) lookup(name string) (varInfo, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if v, ok := g.scopes[i][name]; ok {
			return v, true
		}
	}
	return varInfo{}, false
}

func (g *CodeGen) statement(n *Node) error {
	switch n.Kind {
	case Block:
		g.scopes = append(g.scopes, make(map[string]varInfo))
		defer func() { g.scopes = g.scopes[:len(g.scopes)-1] }()
		for _, c := range n.Children {
			if err := g.statement(c); err != nil {
				return err
			}
		}
		return nil

	case VarDecl:
		id := n.Child(1)
		v := varInfo{label: g.newTemp(), typ: id.Type, line: n.Line}
		g.scopes[len(g.scopes)-1][id.Value] = v
		g.rep.Debugf("Allocated %s for '%s' (%s) declared at line %d", v.label, id.Value, v.typ, v.line)
		if err := g.img.Emit(cpu.OpLDAImm, 0); err != nil {
			return err
		}
		return g.img.EmitAbsolute(cpu.OpSTA, v.label)

	case AssignmentStatement:
		v, ok := g.lookup(n.Child(0).Value)
		if !ok {
			return fmt.Errorf("line %d: no storage for '%s'", n.Line, n.Child(0).Value)
		}
		if err := g.load(n.Child(1)); err != nil {
			return err
		}
		return g.img.EmitAbsolute(cpu.OpSTA, v.label)

	case PrintStatement:
		return g.print(n.Child(0))

	case IfStatement:
		end := g.newJump()
		if err := g.branchUnlessTrue(n.Child(0), end); err != nil {
			return err
		}
		if err := g.statement(n.Child(1)); err != nil {
			return err
		}
		g.img.Mark(end)
		return nil

	case WhileStatement:
		top, end := g.newJump(), g.newJump()
		g.img.Mark(top)
		if err := g.branchUnlessTrue(n.Child(0), end); err != nil {
			return err
		}
		if err := g.statement(n.Child(1)); err != nil {
			return err
		}
		if err := g.jumpAlways(top); err != nil {
			return err
		}
		g.img.Mark(end)
		return nil
	}
	return fmt.Errorf("line %d: cannot generate code for %s", n.Line, n.Kind)
}

// branchUnlessTrue evaluates cond and branches to label when it is false:
//
//	<cond into A>; STA t; LDX #1; CPX t; BNE label
func (g *CodeGen) branchUnlessTrue(cond *Node, label string) error {
	if err := g.load(cond); err != nil {
		return err
	}
	t := g.newTemp()
	if err := g.img.EmitAbsolute(cpu.OpSTA, t); err != nil {
		return err
	}
	if err := g.img.Emit(cpu.OpLDXImm, 1); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpCPX, t); err != nil {
		return err
	}
	return g.img.EmitRelative(cpu.OpBNE, label)
}

// jumpAlways forces Z clear and branches. BNE is the only branch, so an
// unconditional jump compares 1 against a stored 0.
func (g *CodeGen) jumpAlways(label string) error {
	z := g.newTemp()
	if err := g.img.Emit(cpu.OpLDAImm, 0); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpSTA, z); err != nil {
		return err
	}
	if err := g.img.Emit(cpu.OpLDXImm, 1); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpCPX, z); err != nil {
		return err
	}
	return g.img.EmitRelative(cpu.OpBNE, label)
}

// print emits LDY <value>; LDX #mode; SYS. Variables are loaded straight
// from their temp, string literals by address, and anything else through a
// scratch temp.
func (g *CodeGen) print(arg *Node) error {
	mode := cpu.SysPrintInt
	if arg.Type == String {
		mode = cpu.SysPrintString
	}

	switch arg.Kind {
	case Id:
		v, ok := g.lookup(arg.Value)
		if !ok {
			return fmt.Errorf("line %d: no storage for '%s'", arg.Line, arg.Value)
		}
		if v.typ == String {
			mode = cpu.SysPrintString
		} else {
			mode = cpu.SysPrintInt
		}
		if err := g.img.EmitAbsolute(cpu.OpLDYAbs, v.label); err != nil {
			return err
		}

	case StringExpression:
		addr, err := g.img.AllocString(arg.Value)
		if err != nil {
			return err
		}
		if err := g.img.Emit(cpu.OpLDYImm, addr); err != nil {
			return err
		}

	default:
		if err := g.load(arg); err != nil {
			return err
		}
		s := g.newTemp()
		if err := g.img.EmitAbsolute(cpu.OpSTA, s); err != nil {
			return err
		}
		if err := g.img.EmitAbsolute(cpu.OpLDYAbs, s); err != nil {
			return err
		}
	}

	if err := g.img.Emit(cpu.OpLDXImm, mode); err != nil {
		return err
	}
	return g.img.Emit(cpu.OpSYS)
}

// load evaluates an expression into the accumulator.
func (g *CodeGen) load(n *Node) error {
	switch n.Kind {
	case Id:
		v, ok := g.lookup(n.Value)
		if !ok {
			return fmt.Errorf("line %d: no storage for '%s'", n.Line, n.Value)
		}
		return g.img.EmitAbsolute(cpu.OpLDAAbs, v.label)

	case IntExpression:
		lit, _ := literalByte(n.Child(0).Value)
		if len(n.Children) == 1 {
			return g.img.Emit(cpu.OpLDAImm, lit)
		}
		// n + rhs: rhs into A, park it, then LDA #n; ADC parked
		if err := g.load(n.Child(1)); err != nil {
			return err
		}
		s := g.newTemp()
		if err := g.img.EmitAbsolute(cpu.OpSTA, s); err != nil {
			return err
		}
		if err := g.img.Emit(cpu.OpLDAImm, lit); err != nil {
			return err
		}
		return g.img.EmitAbsolute(cpu.OpADC, s)

	case StringExpression:
		addr, err := g.img.AllocString(n.Value)
		if err != nil {
			return err
		}
		return g.img.Emit(cpu.OpLDAImm, addr)

	case BooleanExpression:
		if len(n.Children) == 0 {
			var v byte
			if n.Value == "true" {
				v = 1
			}
			return g.img.Emit(cpu.OpLDAImm, v)
		}
		return g.compare(n)
	}
	return fmt.Errorf("line %d: cannot evaluate %s", n.Line, n.Kind)
}

// compare evaluates both operands into fresh temps, compares them with CPX
// and turns the Z flag into 0 or 1 in A:
//
//	LDX left; CPX right; LDA #eq-miss; BNE +2; LDA #eq-hit
//
// LDA does not touch Z, so the branch still sees the comparison.
func (g *CodeGen) compare(n *Node) error {
	left, right := g.newTemp(), g.newTemp()
	if err := g.load(n.Child(0)); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpSTA, left); err != nil {
		return err
	}
	if err := g.load(n.Child(1)); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpSTA, right); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpLDXAbs, left); err != nil {
		return err
	}
	if err := g.img.EmitAbsolute(cpu.OpCPX, right); err != nil {
		return err
	}

	var differ, equal byte = 0, 1
	if n.Value == "!=" {
		differ, equal = 1, 0
	}
	return g.img.Emit(cpu.OpLDAImm, differ, cpu.OpBNE, 2, cpu.OpLDAImm, equal)
}
