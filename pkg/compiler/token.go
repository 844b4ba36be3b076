package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: read past the last token

	// Delimiters
	OPEN_BLOCK  // {
	CLOSE_BLOCK // }
	OPEN_PAREN  // (
	CLOSE_PAREN // )
	QUOTE       // "
	END_MARKER  // $

	// Keywords
	PRINT    // "print"
	WHILE    // "while"
	IF       // "if"
	TYPE     // "int" | "string" | "boolean"
	BOOL_VAL // "true" | "false"

	// Operators
	ASSIGN_OP     // =
	EQUALITY_OP   // ==
	INEQUALITY_OP // !=
	INT_OP        // +

	// Values
	ID     // identifier
	NUMBER // decimal digits
	CHAR   // one character inside a string literal
)

var tokenNames = [...]string{
	EOF:           "EOF",
	OPEN_BLOCK:    "OPEN_BLOCK",
	CLOSE_BLOCK:   "CLOSE_BLOCK",
	OPEN_PAREN:    "OPEN_PAREN",
	CLOSE_PAREN:   "CLOSE_PAREN",
	QUOTE:         "QUOTE",
	END_MARKER:    "END_MARKER",
	PRINT:         "PRINT",
	WHILE:         "WHILE",
	IF:            "IF",
	TYPE:          "TYPE",
	BOOL_VAL:      "BOOL_VAL",
	ASSIGN_OP:     "ASSIGN_OP",
	EQUALITY_OP:   "EQUALITY_OP",
	INEQUALITY_OP: "INEQUALITY_OP",
	INT_OP:        "INT_OP",
	ID:            "ID",
	NUMBER:        "NUMBER",
	CHAR:          "CHAR",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// keywords maps reserved words to their TokenType.
var keywords = map[string]TokenType{
	"print":   PRINT,
	"while":   WHILE,
	"if":      IF,
	"int":     TYPE,
	"string":  TYPE,
	"boolean": TYPE,
	"true":    BOOL_VAL,
	"false":   BOOL_VAL,
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Col    int    // 1-based column of the first character
}

func (t Token) String() string {
	return fmt.Sprintf("%-13s %-10q  line %d", t.Type, t.Lexeme, t.Line)
}
