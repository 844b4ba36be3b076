package compiler

import (
	"fmt"
	"io"
	"strings"
)

// Kind is the closed set of tree node kinds. The parser produces every kind;
// the analyzer's checked tree never contains StatementList, Statement,
// Expression, CharList or BoolOp.
type Kind int

const (
	Block Kind = iota
	StatementList
	Statement
	PrintStatement
	AssignmentStatement
	VarDecl
	WhileStatement
	IfStatement
	Expression
	IntExpression
	StringExpression
	BooleanExpression
	BoolOp
	CharList
	Id
	Terminal
)

var kindNames = [...]string{
	Block:               "Block",
	StatementList:       "StatementList",
	Statement:           "Statement",
	PrintStatement:      "PrintStatement",
	AssignmentStatement: "AssignmentStatement",
	VarDecl:             "VarDecl",
	WhileStatement:      "WhileStatement",
	IfStatement:         "IfStatement",
	Expression:          "Expression",
	IntExpression:       "IntExpression",
	StringExpression:    "StringExpression",
	BooleanExpression:   "BooleanExpression",
	BoolOp:              "BoolOp",
	CharList:            "CharList",
	Id:                  "Id",
	Terminal:            "Terminal",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DataType is the synthesized type of an expression.
type DataType int

const (
	Unknown DataType = iota
	Int
	String
	Boolean
)

var dataTypeNames = [...]string{
	Unknown: "unknown",
	Int:     "int",
	String:  "string",
	Boolean: "boolean",
}

func (t DataType) String() string {
	if int(t) >= 0 && int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// TypeFromKeyword maps a TYPE lexeme to its DataType.
func TypeFromKeyword(kw string) DataType {
	switch kw {
	case "int":
		return Int
	case "string":
		return String
	case "boolean":
		return Boolean
	}
	return Unknown
}

// Node is a node of either the concrete syntax tree or the checked tree.
// Children are owned; there are no parent pointers.
type Node struct {
	Kind     Kind
	Value    string   // lexeme for leaves, operator for comparisons
	Line     int      // source line of the first token
	Type     DataType // set on checked expression nodes
	Children []*Node
}

func newNode(kind Kind, line int) *Node {
	return &Node{Kind: kind, Line: line}
}

func (n *Node) add(child *Node) {
	n.Children = append(n.Children, child)
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Print writes the tree rooted at n, one node per line, indenting each level
// with a '-'. Interior nodes print as <Kind>, leaves as [value].
func Print(w io.Writer, n *Node) {
	printNode(w, n, 0)
}

func printNode(w io.Writer, n *Node, depth int) {
	if n == nil {
		return
	}
	var b strings.Builder
	b.WriteString(strings.Repeat("-", depth))
	if n.IsLeaf() && n.Value != "" {
		fmt.Fprintf(&b, "[%s]", n.Value)
	} else {
		fmt.Fprintf(&b, "<%s>", n.Kind)
		if n.Value != "" {
			fmt.Fprintf(&b, " [%s]", n.Value)
		}
	}
	if n.Type != Unknown {
		fmt.Fprintf(&b, " : %s", n.Type)
	}
	fmt.Fprintln(w, b.String())
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

// String renders the tree the same way Print does.
func (n *Node) String() string {
	var b strings.Builder
	Print(&b, n)
	return b.String()
}
