package compiler

import (
	"unicode"

	"rudc/pkg/diag"
)

// Lexer scans one source buffer that may hold several programs, each ended
// by '$'. Each call to Scan returns the tokens of the next program.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // 1-based column of the next rune

	rep    *diag.Reporter
	tokens []Token
}

func NewLexer(src string, sink diag.Sink) *Lexer {
	return &Lexer{
		src:  []rune(src),
		line: 1,
		col:  1,
		rep:  diag.NewReporter(sink, PhaseLex.String()),
	}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// More reports whether anything other than whitespace is left to scan.
func (l *Lexer) More() bool {
	for i := l.pos; i < len(l.src); i++ {
		if !isSpace(l.src[i]) {
			return true
		}
	}
	return false
}

// Line is the current source line.
func (l *Lexer) Line() int { return l.line }

func (l *Lexer) emit(tt TokenType, lexeme string, line, col int) {
	tok := Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}
	l.tokens = append(l.tokens, tok)
	l.rep.Debugf("%s [ %s ] found at (%d:%d)", tt, lexeme, line, col)
}

// Scan consumes input up to and including the next '$' and returns that
// program's tokens. If any lexical error occurred in the span, the tokens
// are discarded and a *PhaseError is returned.
func (l *Lexer) Scan() ([]Token, error) {
	l.tokens = nil
	l.rep.Reset()

	l.scanSpan()

	if n := len(l.tokens); l.atEnd() && n > 0 && l.tokens[n-1].Type != END_MARKER {
		l.rep.Notef(diag.Error, "Missing terminating '$' at end of input (line %d)", l.line)
	}

	if l.rep.Errors() > 0 {
		l.rep.Notef(diag.Error, "Lex failed with %d error(s)", l.rep.Errors())
		return nil, &PhaseError{Phase: PhaseLex, Count: l.rep.Errors()}
	}
	l.rep.Infof("Lex completed with 0 errors")
	return l.tokens, nil
}

func (l *Lexer) scanSpan() {
	for !l.atEnd() {
		line, col := l.line, l.col
		r := l.peek()

		switch {
		case isSpace(r):
			l.advance()

		case r == '/' && l.peek2() == '*':
			l.advance() // /
			l.advance() // *
			if !l.skipBlockComment() {
				l.rep.Warnf("Unterminated comment starting at (%d:%d)", line, col)
				return
			}

		case r == '$':
			l.advance()
			l.emit(END_MARKER, "$", line, col)
			return

		case r == '{':
			l.advance()
			l.emit(OPEN_BLOCK, "{", line, col)
		case r == '}':
			l.advance()
			l.emit(CLOSE_BLOCK, "}", line, col)
		case r == '(':
			l.advance()
			l.emit(OPEN_PAREN, "(", line, col)
		case r == ')':
			l.advance()
			l.emit(CLOSE_PAREN, ")", line, col)
		case r == '+':
			l.advance()
			l.emit(INT_OP, "+", line, col)

		case r == '=':
			l.advance()
			if l.peek() == '=' {
				l.advance()
				l.emit(EQUALITY_OP, "==", line, col)
			} else {
				l.emit(ASSIGN_OP, "=", line, col)
			}

		case r == '!':
			l.advance()
			if l.peek() != '=' {
				l.rep.Errorf("Unrecognized token '!' at (%d:%d), did you mean '!='?", line, col)
				continue
			}
			l.advance()
			l.emit(INEQUALITY_OP, "!=", line, col)

		case r == '"':
			l.scanString()

		case isDigit(r):
			l.scanNumber()

		case unicode.IsLetter(r):
			l.scanWord()

		default:
			l.advance()
			l.rep.Errorf("Unrecognized token '%c' at (%d:%d)", r, line, col)
		}
	}
}

// skipBlockComment discards everything up to and including the closing
// "*/". The opening "/*" must already have been consumed. It reports false
// if input ran out first.
func (l *Lexer) skipBlockComment() bool {
	for !l.atEnd() {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return true
		}
		l.advance()
	}
	return false
}

// scanString emits QUOTE, one CHAR per body character, and the closing
// QUOTE. Only lowercase letters and spaces are allowed in the body.
func (l *Lexer) scanString() {
	openLine, openCol := l.line, l.col
	l.advance()
	l.emit(QUOTE, `"`, openLine, openCol)

	for {
		line, col := l.line, l.col
		r := l.peek()
		switch {
		case l.atEnd() || r == '$':
			l.rep.Errorf("Unterminated string starting at (%d:%d)", openLine, openCol)
			return
		case r == '"':
			l.advance()
			l.emit(QUOTE, `"`, line, col)
			return
		case isStringChar(r):
			l.advance()
			l.emit(CHAR, string(r), line, col)
		default:
			l.advance()
			l.rep.Errorf("Invalid character %q in string at (%d:%d), only lowercase letters and spaces are allowed", r, line, col)
		}
	}
}

func (l *Lexer) scanNumber() {
	line, col := l.line, l.col
	start := l.pos
	for isDigit(l.peek()) {
		l.advance()
	}
	l.emit(NUMBER, string(l.src[start:l.pos]), line, col)
}

// scanWord collects a maximal run of letters and classifies it as a keyword
// or an identifier.
func (l *Lexer) scanWord() {
	line, col := l.line, l.col
	start := l.pos
	for !l.atEnd() && unicode.IsLetter(l.peek()) {
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := ID
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	l.emit(tt, lexeme, line, col)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isStringChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == ' '
}

// Lex scans every program in src. Programs with lexical errors are
// returned as nil entries so indexes line up with program numbers.
func Lex(src string, sink diag.Sink) [][]Token {
	l := NewLexer(src, sink)
	var programs [][]Token
	for l.More() {
		toks, _ := l.Scan()
		programs = append(programs, toks)
	}
	return programs
}
