package lexer

import "fmt"

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	SEPARATOR // newline or ';' (runs are collapsed into one token)

	// Identifiers and literals
	IDENT  // show, volume1, pool/dataset, eth0, vol#2
	INT    // 42, 0x1F, 0o17, 0b101, 10k, 10kib
	STRING // "foobar"
	IPADDR // 192.168.1.1, fe80::1

	// Operators
	ASSIGN // =
	EQ     // ==
	NE     // !=
	GT     // >
	GE     // >=
	LT     // <
	LE     // <=
	REGEX  // ~=
	INC    // =+
	DEC    // =-
	PLUS   // +
	MINUS  // -
	MUL    // *
	DIV    // /
	PIPE   // |

	// Delimiters and path markers
	UP       // ..
	QUESTION // ?
	EOPEN    // ${
	REDIRECT // >>
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	COMMA    // ,
	COLON    // :

	// Keywords
	IF       // "if"
	ELSE     // "else"
	FOR      // "for"
	WHILE    // "while"
	IN       // "in"
	FUNCTION // "function"
	RETURN   // "return"
	BREAK    // "break"
	AND      // "and"
	OR       // "or"
	NOT      // "not"
	UNDEF    // "undef"
	TRUE     // "true"
	FALSE    // "false"
	NONE     // "none"
)

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Value   int64 // parsed value for INT tokens
	File    string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	switch tt {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case SEPARATOR:
		return "SEPARATOR"
	case IDENT:
		return "IDENT"
	case INT:
		return "INT"
	case STRING:
		return "STRING"
	case IPADDR:
		return "IPADDR"
	case ASSIGN:
		return "ASSIGN"
	case EQ:
		return "EQ"
	case NE:
		return "NE"
	case GT:
		return "GT"
	case GE:
		return "GE"
	case LT:
		return "LT"
	case LE:
		return "LE"
	case REGEX:
		return "REGEX"
	case INC:
		return "INC"
	case DEC:
		return "DEC"
	case PLUS:
		return "PLUS"
	case MINUS:
		return "MINUS"
	case MUL:
		return "MUL"
	case DIV:
		return "DIV"
	case PIPE:
		return "PIPE"
	case UP:
		return "UP"
	case QUESTION:
		return "QUESTION"
	case EOPEN:
		return "EOPEN"
	case REDIRECT:
		return "REDIRECT"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case LBRACE:
		return "LBRACE"
	case RBRACE:
		return "RBRACE"
	case LBRACKET:
		return "LBRACKET"
	case RBRACKET:
		return "RBRACKET"
	case COMMA:
		return "COMMA"
	case COLON:
		return "COLON"
	case IF:
		return "IF"
	case ELSE:
		return "ELSE"
	case FOR:
		return "FOR"
	case WHILE:
		return "WHILE"
	case IN:
		return "IN"
	case FUNCTION:
		return "FUNCTION"
	case RETURN:
		return "RETURN"
	case BREAK:
		return "BREAK"
	case AND:
		return "AND"
	case OR:
		return "OR"
	case NOT:
		return "NOT"
	case UNDEF:
		return "UNDEF"
	case TRUE:
		return "TRUE"
	case FALSE:
		return "FALSE"
	case NONE:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Keywords map for identifying language keywords
var keywords = map[string]TokenType{
	"if":       IF,
	"else":     ELSE,
	"for":      FOR,
	"while":    WHILE,
	"in":       IN,
	"function": FUNCTION,
	"return":   RETURN,
	"break":    BREAK,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"undef":    UNDEF,
	"true":     TRUE,
	"false":    FALSE,
	"none":     NONE,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
