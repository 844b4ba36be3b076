package compiler

import (
	"rudc/pkg/diag"
)

// Parser consumes the tokens of one program and builds its concrete syntax
// tree.
//
// Grammar:
//
//	Program             = Block "$"
//	Block               = "{" StatementList "}"
//	StatementList       = { Statement }
//	Statement           = PrintStatement | AssignmentStatement | VarDecl
//	                    | WhileStatement | IfStatement | Block
//	PrintStatement      = "print" "(" Expression ")"
//	AssignmentStatement = Id "=" Expression
//	VarDecl             = TYPE Id
//	WhileStatement      = "while" BooleanExpression Block
//	IfStatement         = "if" BooleanExpression Block
//	Expression          = IntExpression | StringExpression | BooleanExpression | Id
//	IntExpression       = NUMBER [ "+" Expression ]
//	StringExpression    = '"' [ CharList ] '"'
//	BooleanExpression   = "(" Expression BoolOp Expression ")" | BOOL_VAL
//	BoolOp              = "==" | "!="
//	Id                  = ID
//
// Structural tokens (braces, parens, keywords, quotes, '=' and '$') are
// consumed without a leaf. Every other token becomes a Terminal leaf under
// the node of the rule that matched it.
//
// A mismatch is reported and counted but the parser does not resynchronize;
// it carries on from the same token.
type Parser struct {
	tokens []Token
	pos    int
	rep    *diag.Reporter
}

func NewParser(tokens []Token, sink diag.Sink) *Parser {
	return &Parser{tokens: tokens, rep: diag.NewReporter(sink, PhaseParse.String())}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		line := 0
		if n := len(p.tokens); n > 0 {
			line = p.tokens[n-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) mismatch(expected string, tok Token) {
	p.rep.Errorf("Expected [%s] got [%s] with value %s on line %d", expected, tok.Type, tok.Lexeme, tok.Line)
}

// expect consumes the current token if it is of type tt. On a mismatch the
// token is left in place.
func (p *Parser) expect(tt TokenType) bool {
	tok := p.peek()
	if tok.Type != tt {
		p.mismatch(tt.String(), tok)
		return false
	}
	p.advance()
	return true
}

// capture is expect plus a Terminal leaf appended to parent.
func (p *Parser) capture(parent *Node, tt TokenType) {
	tok := p.peek()
	if !p.expect(tt) {
		return
	}
	parent.add(&Node{Kind: Terminal, Value: tok.Lexeme, Line: tok.Line})
}

func (p *Parser) parseProgram() *Node {
	p.rep.Debugf("parseProgram()")
	root := p.parseBlock()
	p.expect(END_MARKER)
	return root
}

func (p *Parser) parseBlock() *Node {
	p.rep.Debugf("parseBlock()")
	n := newNode(Block, p.peek().Line)
	p.expect(OPEN_BLOCK)
	n.add(p.parseStatementList())
	p.expect(CLOSE_BLOCK)
	return n
}

func startsStatement(tt TokenType) bool {
	switch tt {
	case PRINT, ID, TYPE, WHILE, IF, OPEN_BLOCK:
		return true
	}
	return false
}

// parseStatementList loops rather than recursing on its own tail, so a long
// block produces one flat list.
func (p *Parser) parseStatementList() *Node {
	p.rep.Debugf("parseStatementList()")
	n := newNode(StatementList, p.peek().Line)
	for {
		tok := p.peek()
		if startsStatement(tok.Type) {
			n.add(p.parseStatement())
			continue
		}
		if tok.Type != CLOSE_BLOCK {
			p.mismatch("statement list", tok)
		}
		return n
	}
}

func (p *Parser) parseStatement() *Node {
	p.rep.Debugf("parseStatement()")
	tok := p.peek()
	n := newNode(Statement, tok.Line)
	switch tok.Type {
	case PRINT:
		n.add(p.parsePrintStatement())
	case ID:
		n.add(p.parseAssignmentStatement())
	case TYPE:
		n.add(p.parseVarDecl())
	case WHILE:
		n.add(p.parseWhileStatement())
	case IF:
		n.add(p.parseIfStatement())
	case OPEN_BLOCK:
		n.add(p.parseBlock())
	default:
		p.mismatch("statement", tok)
	}
	return n
}

func (p *Parser) parsePrintStatement() *Node {
	p.rep.Debugf("parsePrintStatement()")
	n := newNode(PrintStatement, p.peek().Line)
	p.expect(PRINT)
	p.expect(OPEN_PAREN)
	n.add(p.parseExpression())
	p.expect(CLOSE_PAREN)
	return n
}

func (p *Parser) parseAssignmentStatement() *Node {
	p.rep.Debugf("parseAssignmentStatement()")
	n := newNode(AssignmentStatement, p.peek().Line)
	n.add(p.parseId())
	p.expect(ASSIGN_OP)
	n.add(p.parseExpression())
	return n
}

func (p *Parser) parseVarDecl() *Node {
	p.rep.Debugf("parseVarDecl()")
	n := newNode(VarDecl, p.peek().Line)
	p.capture(n, TYPE)
	n.add(p.parseId())
	return n
}

func (p *Parser) parseWhileStatement() *Node {
	p.rep.Debugf("parseWhileStatement()")
	n := newNode(WhileStatement, p.peek().Line)
	p.expect(WHILE)
	n.add(p.parseBooleanExpression())
	n.add(p.parseBlock())
	return n
}

func (p *Parser) parseIfStatement() *Node {
	p.rep.Debugf("parseIfStatement()")
	n := newNode(IfStatement, p.peek().Line)
	p.expect(IF)
	n.add(p.parseBooleanExpression())
	n.add(p.parseBlock())
	return n
}

func (p *Parser) parseExpression() *Node {
	p.rep.Debugf("parseExpression()")
	tok := p.peek()
	n := newNode(Expression, tok.Line)
	switch tok.Type {
	case NUMBER:
		n.add(p.parseIntExpression())
	case QUOTE:
		n.add(p.parseStringExpression())
	case BOOL_VAL, OPEN_PAREN:
		n.add(p.parseBooleanExpression())
	case ID:
		n.add(p.parseId())
	default:
		p.mismatch("expression", tok)
	}
	return n
}

func (p *Parser) parseIntExpression() *Node {
	p.rep.Debugf("parseIntExpression()")
	n := newNode(IntExpression, p.peek().Line)
	p.capture(n, NUMBER)
	if p.peek().Type == INT_OP {
		p.capture(n, INT_OP)
		n.add(p.parseExpression())
	}
	return n
}

func (p *Parser) parseStringExpression() *Node {
	p.rep.Debugf("parseStringExpression()")
	n := newNode(StringExpression, p.peek().Line)
	p.expect(QUOTE)
	if p.peek().Type != QUOTE {
		n.add(p.parseCharList())
	}
	p.expect(QUOTE)
	return n
}

func (p *Parser) parseCharList() *Node {
	p.rep.Debugf("parseCharList()")
	n := newNode(CharList, p.peek().Line)
	p.capture(n, CHAR)
	for p.peek().Type == CHAR {
		p.capture(n, CHAR)
	}
	return n
}

func (p *Parser) parseBooleanExpression() *Node {
	p.rep.Debugf("parseBooleanExpression()")
	tok := p.peek()
	n := newNode(BooleanExpression, tok.Line)
	switch tok.Type {
	case OPEN_PAREN:
		p.expect(OPEN_PAREN)
		n.add(p.parseExpression())
		n.add(p.parseBoolOp())
		n.add(p.parseExpression())
		p.expect(CLOSE_PAREN)
	case BOOL_VAL:
		p.capture(n, BOOL_VAL)
	default:
		p.mismatch("boolean expression", tok)
	}
	return n
}

func (p *Parser) parseBoolOp() *Node {
	p.rep.Debugf("parseBoolOp()")
	tok := p.peek()
	n := newNode(BoolOp, tok.Line)
	switch tok.Type {
	case EQUALITY_OP, INEQUALITY_OP:
		p.capture(n, tok.Type)
	default:
		p.mismatch("boolean operation", tok)
	}
	return n
}

func (p *Parser) parseId() *Node {
	p.rep.Debugf("parseId()")
	n := newNode(Id, p.peek().Line)
	p.capture(n, ID)
	return n
}

// Parse builds the concrete syntax tree for one program. The tree is only
// returned when no errors were reported.
func Parse(tokens []Token, sink diag.Sink) (*Node, error) {
	p := NewParser(tokens, sink)
	p.rep.Infof("parse()")
	root := p.parseProgram()
	if p.pos < len(p.tokens) {
		p.mismatch("end of program", p.peek())
	}
	if n := p.rep.Errors(); n > 0 {
		p.rep.Notef(diag.Error, "Parse failed with %d error(s).", n)
		return nil, &PhaseError{Phase: PhaseParse, Count: n}
	}
	p.rep.Infof("Parse completed successfully")
	return root, nil
}
