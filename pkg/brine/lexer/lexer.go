// Package lexer turns raw shell input into a token stream.
//
// The rules are context sensitive in a few places to keep command words
// shell-like: identifiers may contain '.', '/', '#', '@' and ':' so that
// dataset paths, interface names and addresses lex as single words, '#'
// only opens a comment at the start of a token, and IPv4/IPv6 address
// literals are recognised before generic identifiers.
package lexer

import (
	"net"
	"strconv"
	"strings"
)

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
	braceDepth   int  // open '{' minus closed '}' (includes '${')
	recover      bool // skip illegal characters instead of reporting them
	moreInput    func() (string, bool)
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "<stdin>")
}

// NewWithFilename creates a new lexer instance with a specific filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    input,
		line:     1,
		column:   0,
	}
	l.readChar()
	return l
}

// SetRecover puts the lexer into recovering mode: illegal characters are
// skipped so partial input (for example during tab completion) still lexes.
func (l *Lexer) SetRecover(recover bool) {
	l.recover = recover
}

// SetMoreInput installs a hook that supplies one more line of input when the
// lexer reaches end of input with unbalanced braces. This is what lets an
// interactive user type a multi-line block.
func (l *Lexer) SetMoreInput(fn func() (string, bool)) {
	l.moreInput = fn
}

// Filename returns the source name used for token positions.
func (l *Lexer) Filename() string {
	return l.filename
}

// Depth returns the current brace depth.
func (l *Lexer) Depth() int {
	return l.braceDepth
}

// LexerState captures a lexer position for backtracking
type LexerState struct {
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
	braceDepth   int
}

// SaveState saves the current lexer state for later restoration
func (l *Lexer) SaveState() LexerState {
	return LexerState{
		position:     l.position,
		readPosition: l.readPosition,
		ch:           l.ch,
		line:         l.line,
		column:       l.column,
		braceDepth:   l.braceDepth,
	}
}

// RestoreState restores the lexer to a previously saved state
func (l *Lexer) RestoreState(state LexerState) {
	l.position = state.position
	l.readPosition = state.readPosition
	l.ch = state.ch
	l.line = state.line
	l.column = state.column
	l.braceDepth = state.braceDepth
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) peekCharAt(offset int) byte {
	pos := l.readPosition + offset
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) newToken(tokenType TokenType, literal string, line, column int) Token {
	return Token{
		Type:    tokenType,
		Literal: literal,
		File:    l.filename,
		Line:    line,
		Column:  column,
	}
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() Token {
	for {
		l.skipWhitespace()

		// Comments run to end of line; the separator for the line is still
		// emitted afterwards.
		if l.ch == '#' {
			l.skipComment()
			continue
		}

		// End of input with an open block: ask the caller for another line
		// instead of failing.
		if l.ch == 0 && l.braceDepth > 0 && l.moreInput != nil {
			more, ok := l.moreInput()
			if !ok {
				break
			}
			l.input += "\n" + more
			l.readPosition = l.position
			l.readChar()
			continue
		}
		break
	}

	line, column := l.line, l.column

	switch l.ch {
	case 0:
		return l.newToken(EOF, "", line, column)
	case '\n', ';':
		return l.readSeparator()
	case '"':
		return l.readString()
	case '=':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return l.newToken(EQ, "==", line, column)
		case '+':
			l.readChar()
			l.readChar()
			return l.newToken(INC, "=+", line, column)
		case '-':
			l.readChar()
			l.readChar()
			return l.newToken(DEC, "=-", line, column)
		default:
			l.readChar()
			return l.newToken(ASSIGN, "=", line, column)
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return l.newToken(NE, "!=", line, column)
		}
		return l.illegal(line, column)
	case '~':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return l.newToken(REGEX, "~=", line, column)
		}
		return l.illegal(line, column)
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return l.newToken(GE, ">=", line, column)
		case '>':
			l.readChar()
			l.readChar()
			return l.newToken(REDIRECT, ">>", line, column)
		default:
			l.readChar()
			return l.newToken(GT, ">", line, column)
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return l.newToken(LE, "<=", line, column)
		}
		l.readChar()
		return l.newToken(LT, "<", line, column)
	case '+':
		l.readChar()
		return l.newToken(PLUS, "+", line, column)
	case '-':
		l.readChar()
		return l.newToken(MINUS, "-", line, column)
	case '*':
		l.readChar()
		return l.newToken(MUL, "*", line, column)
	case '/':
		l.readChar()
		return l.newToken(DIV, "/", line, column)
	case '|':
		l.readChar()
		return l.newToken(PIPE, "|", line, column)
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			l.readChar()
			return l.newToken(UP, "..", line, column)
		}
		return l.illegal(line, column)
	case '?':
		l.readChar()
		return l.newToken(QUESTION, "?", line, column)
	case '$':
		if l.peekChar() == '{' {
			l.braceDepth++
			l.readChar()
			l.readChar()
			return l.newToken(EOPEN, "${", line, column)
		}
		return l.illegal(line, column)
	case '(':
		l.readChar()
		return l.newToken(LPAREN, "(", line, column)
	case ')':
		l.readChar()
		return l.newToken(RPAREN, ")", line, column)
	case '{':
		l.braceDepth++
		l.readChar()
		return l.newToken(LBRACE, "{", line, column)
	case '}':
		if l.braceDepth > 0 {
			l.braceDepth--
		}
		l.readChar()
		return l.newToken(RBRACE, "}", line, column)
	case '[':
		l.readChar()
		return l.newToken(LBRACKET, "[", line, column)
	case ']':
		l.readChar()
		return l.newToken(RBRACKET, "]", line, column)
	case ',':
		l.readChar()
		return l.newToken(COMMA, ",", line, column)
	case ':':
		// "::" opens an IPv6 shorthand like ::1, not a pair of colons
		if l.peekChar() == ':' {
			return l.readWord()
		}
		l.readChar()
		return l.newToken(COLON, ":", line, column)
	default:
		if isWordStart(l.ch) {
			return l.readWord()
		}
		return l.illegal(line, column)
	}
}

// illegal reports (or, in recovering mode, skips) an illegal character.
func (l *Lexer) illegal(line, column int) Token {
	ch := l.ch
	l.readChar()
	if l.recover {
		return l.NextToken()
	}
	return l.newToken(ILLEGAL, string(ch), line, column)
}

// skipWhitespace consumes spaces, tabs and carriage returns. A backslash
// followed by whitespace and a newline (or a comment) is a logical line
// continuation and is consumed silently.
func (l *Lexer) skipWhitespace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r':
			l.readChar()
		case '\\':
			if !l.isLineContinuation() {
				return
			}
			l.readChar() // consume '\'
			for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
				l.readChar()
			}
			if l.ch == '#' {
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
			}
			if l.ch == '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// isLineContinuation reports whether the current '\' is followed only by
// whitespace and then a newline or a comment.
func (l *Lexer) isLineContinuation() bool {
	for i := 0; ; i++ {
		ch := l.peekCharAt(i)
		switch ch {
		case ' ', '\t', '\r':
			continue
		case '\n', '#', 0:
			return true
		default:
			return false
		}
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// readSeparator collapses a run of newlines, semicolons, whitespace and
// comments into a single statement separator.
func (l *Lexer) readSeparator() Token {
	line, column := l.line, l.column
	for {
		switch l.ch {
		case '\n', ';', ' ', '\t', '\r':
			l.readChar()
		case '#':
			l.skipComment()
		default:
			return l.newToken(SEPARATOR, ";", line, column)
		}
	}
}

func (l *Lexer) readString() Token {
	line, column := l.line, l.column
	var sb strings.Builder
	l.readChar() // consume opening quote
	for {
		switch l.ch {
		case '"':
			l.readChar()
			return l.newToken(STRING, sb.String(), line, column)
		case 0, '\n':
			if l.recover {
				return l.newToken(STRING, sb.String(), line, column)
			}
			return l.newToken(ILLEGAL, "\"", line, column)
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 0:
				return l.newToken(ILLEGAL, "\"", line, column)
			default:
				sb.WriteByte(l.ch)
			}
			l.readChar()
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func isWordStart(ch byte) bool {
	return ch == '_' ||
		('a' <= ch && ch <= 'z') ||
		('A' <= ch && ch <= 'Z') ||
		('0' <= ch && ch <= '9')
}

func isWordChar(ch byte) bool {
	return isWordStart(ch)
}

// readWord scans a maximal run of word characters plus the path-ish
// connectors '.', '/', '#', '@' and ':' (a connector is only included when
// another word character follows, so "k: v" stops before the colon while
// "fe80::1" and "pool/data" stay whole), then classifies the result.
func (l *Lexer) readWord() Token {
	line, column := l.line, l.column
	start := l.position
	for {
		if isWordChar(l.ch) {
			l.readChar()
			continue
		}
		switch l.ch {
		case '.', '/', '@', '#':
			if isWordChar(l.peekChar()) {
				l.readChar()
				continue
			}
		case ':':
			if isWordChar(l.peekChar()) || l.peekChar() == ':' {
				l.readChar()
				continue
			}
		}
		break
	}
	word := l.input[start:l.position]
	return l.classifyWord(word, line, column)
}

// classifyWord applies literal recognition in priority order: numeric forms,
// then IP addresses, then keywords, then plain identifiers.
func (l *Lexer) classifyWord(word string, line, column int) Token {
	if v, ok := parseInteger(word); ok {
		tok := l.newToken(INT, word, line, column)
		tok.Value = v
		return tok
	}
	if isIPLiteral(word) {
		return l.newToken(IPADDR, word, line, column)
	}
	return l.newToken(LookupIdent(word), word, line, column)
}

// sizeSuffixes maps a size suffix to its multiplier: single letters are
// decimal, the "ib" forms are binary.
var sizeSuffixes = map[string]int64{
	"k":   1000,
	"m":   1000 * 1000,
	"g":   1000 * 1000 * 1000,
	"t":   1000 * 1000 * 1000 * 1000,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// parseInteger recognises the integer literal forms: plain decimal, 0x/0o/0b
// prefixed, and size-suffixed decimal (10k == 10000, 10kib == 10240).
func parseInteger(word string) (int64, bool) {
	if word == "" {
		return 0, false
	}
	if len(word) > 2 && word[0] == '0' {
		var base int
		switch word[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			v, err := strconv.ParseInt(word[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}

	digits := word
	multiplier := int64(1)
	lower := strings.ToLower(word)
	for suffix, m := range sizeSuffixes {
		if strings.HasSuffix(lower, suffix) && len(word) > len(suffix) {
			trimmed := word[:len(word)-len(suffix)]
			if allDigits(trimmed) {
				// Prefer the longer "kib" match over bare "b"-less "k".
				if multiplier == 1 || len(suffix) > 1 {
					digits = trimmed
					multiplier = m
				}
			}
		}
	}
	if !allDigits(digits) {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isIPLiteral reports whether a word is an IPv4 or IPv6 address.
func isIPLiteral(word string) bool {
	if !strings.ContainsAny(word, ".:") {
		return false
	}
	return net.ParseIP(word) != nil
}
