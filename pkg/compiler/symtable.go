package compiler

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"rudc/pkg/diag"
)

type Symbol struct {
	Name        string
	Type        DataType
	Initialized bool
	Used        bool
	Line        int // declaration line
	Scope       int // id of the declaring scope
}

type scopeFrame struct {
	id      int
	symbols map[string]*Symbol
}

// SymbolTable is a stack of scope frames. Lookups walk from the innermost
// frame outward and the first match wins, so an inner declaration shadows an
// outer one.
//
// Every symbol ever declared is also kept in declaration order for Report.
type SymbolTable struct {
	frames []scopeFrame
	all    []*Symbol
	nextID int
	rep    *diag.Reporter
}

// NewSymbolTable returns an empty table that reports redeclarations and
// unused symbols through rep. A nil rep discards them.
func NewSymbolTable(rep *diag.Reporter) *SymbolTable {
	if rep == nil {
		rep = diag.NewReporter(nil, "")
	}
	return &SymbolTable{rep: rep}
}

// Depth is the number of open scopes.
func (s *SymbolTable) Depth() int {
	return len(s.frames)
}

// CurrentScope is the id of the innermost open scope, or -1.
func (s *SymbolTable) CurrentScope() int {
	if len(s.frames) == 0 {
		return -1
	}
	return s.frames[len(s.frames)-1].id
}

func (s *SymbolTable) EnterScope() {
	id := s.nextID
	s.nextID++
	s.frames = append(s.frames, scopeFrame{id: id, symbols: make(map[string]*Symbol)})
	s.rep.Debugf("Entering scope %d", id)
}

// ExitScope pops the innermost frame and warns about every symbol in it that
// was never used, ordered by line and then name.
func (s *SymbolTable) ExitScope() {
	if len(s.frames) == 0 {
		panic("ExitScope called with no open scope")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]

	var unused []*Symbol
	for _, sym := range top.symbols {
		if !sym.Used {
			unused = append(unused, sym)
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		if unused[i].Line != unused[j].Line {
			return unused[i].Line < unused[j].Line
		}
		return unused[i].Name < unused[j].Name
	})
	for _, sym := range unused {
		if sym.Initialized {
			s.rep.Warnf("Variable '%s' declared and initialized but never used at line %d", sym.Name, sym.Line)
		} else {
			s.rep.Warnf("Variable '%s' declared but never used at line %d", sym.Name, sym.Line)
		}
	}
	s.rep.Debugf("Exiting scope %d", top.id)
}

// Declare adds name to the innermost frame. It returns nil and reports an
// error when the frame already holds name. Outer frames are not consulted.
func (s *SymbolTable) Declare(name string, typ DataType, line int) *Symbol {
	if len(s.frames) == 0 {
		panic("Declare called with no open scope")
	}
	top := s.frames[len(s.frames)-1]
	if prev, exists := top.symbols[name]; exists {
		s.rep.Errorf("Redeclaration of variable '%s' in scope %d at line %d (first declared at line %d)", name, top.id, line, prev.Line)
		return nil
	}
	sym := &Symbol{Name: name, Type: typ, Line: line, Scope: top.id}
	top.symbols[name] = sym
	s.all = append(s.all, sym)
	s.rep.Debugf("Added symbol '%s' of type %s in scope %d", name, typ, top.id)
	return sym
}

// Lookup resolves name from the innermost frame outward.
func (s *SymbolTable) Lookup(name string) *Symbol {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if sym, ok := s.frames[i].symbols[name]; ok {
			return sym
		}
	}
	return nil
}

// Symbols returns every symbol declared so far, in declaration order.
func (s *SymbolTable) Symbols() []*Symbol {
	return s.all
}

// Report writes the symbol table as aligned columns.
func (s *SymbolTable) Report(w io.Writer) {
	fmt.Fprintf(w, "%-6s %-8s %-8s %-8s %-6s %s\n", "Name", "Type", "IsInit?", "IsUsed?", "Scope", "Line")
	fmt.Fprintln(w, strings.Repeat("-", 46))
	for _, sym := range s.all {
		fmt.Fprintf(w, "%-6s %-8s %-8t %-8t %-6d %d\n", sym.Name, sym.Type, sym.Initialized, sym.Used, sym.Scope, sym.Line)
	}
}
