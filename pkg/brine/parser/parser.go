// Package parser builds an AST from the lexer's token stream.
//
// Expressions use Pratt parsing. Command syntax is a separate layer: a
// statement that does not start with a keyword or look like an expression
// is a shell-style command call, parsed as a flat list of command items.
package parser

import (
	"github.com/sambeau/brine/pkg/brine/ast"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
	"github.com/sambeau/brine/pkg/brine/lexer"
)

// Precedence levels for operators, lowest to highest. The ordering is
// deliberate and unusual: arithmetic binds loosest. Persisted scripts from
// earlier releases depend on it, so it must not be "fixed".
const (
	_ int = iota
	LOWEST
	SUM       // + -
	PRODUCT   // * /
	LOGIC     // and or
	NEGATE    // not
	MATCH     // ~=
	ORDER     // > <
	ORDEREQ   // >= <=
	EQUALS    // == !=
	AUGMENT   // =+ =-
	PREFIX    // -x
	SUBSCRIPT // x[i], f(x)
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.MUL:      PRODUCT,
	lexer.DIV:      PRODUCT,
	lexer.AND:      LOGIC,
	lexer.OR:       LOGIC,
	lexer.REGEX:    MATCH,
	lexer.GT:       ORDER,
	lexer.LT:       ORDER,
	lexer.GE:       ORDEREQ,
	lexer.LE:       ORDEREQ,
	lexer.EQ:       EQUALS,
	lexer.NE:       EQUALS,
	lexer.INC:      AUGMENT,
	lexer.DEC:      AUGMENT,
	lexer.LBRACKET: SUBSCRIPT,
	lexer.LPAREN:   SUBSCRIPT,
}

// Parser represents the parser
type Parser struct {
	l       *lexer.Lexer
	recover bool

	errs []*berrors.BrineError

	prevToken lexer.Token
	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseSymbol)
	p.registerPrefix(lexer.INT, p.parseIntegerLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.IPADDR, p.parseAddressLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.NONE, p.parseNoneLiteral)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.NOT, p.parseNotExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACKET, p.parseListLiteral)
	p.registerPrefix(lexer.LBRACE, p.parseDictLiteral)
	p.registerPrefix(lexer.EOPEN, p.parseExpansion)
	p.registerPrefix(lexer.FUNCTION, p.parseFunctionExpression)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	p.registerInfix(lexer.PLUS, p.parseInfixExpression)
	p.registerInfix(lexer.MINUS, p.parseInfixExpression)
	p.registerInfix(lexer.MUL, p.parseInfixExpression)
	p.registerInfix(lexer.DIV, p.parseInfixExpression)
	p.registerInfix(lexer.AND, p.parseInfixExpression)
	p.registerInfix(lexer.OR, p.parseInfixExpression)
	p.registerInfix(lexer.REGEX, p.parseInfixExpression)
	p.registerInfix(lexer.GT, p.parseInfixExpression)
	p.registerInfix(lexer.LT, p.parseInfixExpression)
	p.registerInfix(lexer.GE, p.parseInfixExpression)
	p.registerInfix(lexer.LE, p.parseInfixExpression)
	p.registerInfix(lexer.EQ, p.parseInfixExpression)
	p.registerInfix(lexer.NE, p.parseInfixExpression)
	p.registerInfix(lexer.INC, p.parseInfixExpression)
	p.registerInfix(lexer.DEC, p.parseInfixExpression)
	p.registerInfix(lexer.LBRACKET, p.parseSubscriptExpression)
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// SetRecover puts the parser (and its lexer) into recovering mode: illegal
// characters are skipped and malformed parameters parse as a none
// placeholder, so partial input still yields a usable AST.
func (p *Parser) SetRecover(recover bool) {
	p.recover = recover
	p.l.SetRecover(recover)
}

// Errors returns the structured parse errors.
func (p *Parser) Errors() []*berrors.BrineError {
	return p.errs
}

// addError records a structured error from the catalog.
// Only the first error is kept, later ones are usually cascading noise.
func (p *Parser) addError(code string, tok lexer.Token, data map[string]any) {
	if p.recover || len(p.errs) > 0 {
		return
	}
	err := berrors.New(code, data).WithPosition(tok.File, tok.Line, tok.Column)
	p.errs = append(p.errs, err)
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances prevToken, curToken, and peekToken
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

// expectPeek advances if the next token matches, otherwise records an error.
func (p *Parser) expectPeek(t lexer.TokenType, expected string) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	if p.peekTokenIs(lexer.EOF) {
		p.addError("PARSE-0003", p.peekToken, nil)
	} else {
		p.addError("PARSE-0001", p.peekToken, map[string]any{
			"Expected": expected,
			"Got":      p.peekToken.Literal,
		})
	}
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// Parse lexes and parses a complete input and returns its statements. The
// first parse error, if any, is returned as a *berrors.BrineError.
func Parse(input, source string) ([]ast.Statement, error) {
	p := New(lexer.NewWithFilename(input, source))
	stmts := p.ParseProgram()
	if len(p.errs) > 0 {
		return stmts, p.errs[0]
	}
	return stmts, nil
}

// ParseRecover parses partial input leniently, for completion. It never
// returns an error; whatever statements could be recognised are returned.
func ParseRecover(input, source string) []ast.Statement {
	p := New(lexer.NewWithFilename(input, source))
	p.SetRecover(true)
	return p.ParseProgram()
}

// ParseProgram parses statements until EOF.
func (p *Parser) ParseProgram() []ast.Statement {
	statements := []ast.Statement{}

	for !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.SEPARATOR) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			statements = append(statements, stmt)
			if !p.peekTokenIs(lexer.SEPARATOR) && !p.peekTokenIs(lexer.EOF) {
				p.addError("PARSE-0002", p.peekToken, map[string]any{"Token": p.peekToken.Literal})
			}
		}
		if len(p.errs) > 0 && !p.recover {
			break
		}
		p.nextToken()
	}

	return statements
}

// parseStatement parses one statement, leaving curToken on its last token.
func (p *Parser) parseStatement() ast.Statement {
	var stmt ast.Statement

	switch p.curToken.Type {
	case lexer.IF:
		stmt = p.parseIfStatement()
	case lexer.FOR:
		stmt = p.parseForStatement()
	case lexer.WHILE:
		stmt = p.parseWhileStatement()
	case lexer.FUNCTION:
		if p.peekTokenIs(lexer.IDENT) {
			stmt = p.parseFunctionDefinition()
		} else {
			stmt = p.parseExpressionStatement()
		}
	case lexer.RETURN:
		stmt = p.parseReturnStatement()
	case lexer.BREAK:
		stmt = &ast.BreakStatement{Token: p.curToken}
	case lexer.UNDEF:
		stmt = p.parseUndefStatement()
	case lexer.ILLEGAL:
		p.addError("LEX-0001", p.curToken, map[string]any{"Char": p.curToken.Literal})
		return nil
	default:
		stmt = p.parseCommandOrExpressionStatement()
	}

	if stmt == nil {
		return nil
	}

	// A trailing ">> target" wraps the whole statement.
	if p.peekTokenIs(lexer.REDIRECT) {
		p.nextToken()
		redirect := &ast.Redirect{Token: p.curToken, Stmt: stmt}
		p.nextToken()
		redirect.Path = p.parseRedirectTarget()
		if redirect.Path == nil {
			return nil
		}
		return redirect
	}

	return stmt
}

// parseRedirectTarget accepts a bare word or a quoted string as a file path.
func (p *Parser) parseRedirectTarget() ast.Expression {
	switch p.curToken.Type {
	case lexer.IDENT:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.STRING:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.EOPEN:
		return p.parseExpansion()
	default:
		p.addError("PARSE-0001", p.curToken, map[string]any{
			"Expected": "file path",
			"Got":      p.curToken.Literal,
		})
		return nil
	}
}

// expressionOperators lists the tokens that, appearing right after a leading
// identifier, make the statement an expression rather than a command. DIV is
// deliberately absent: "cd /" is a command with a root path marker.
var expressionOperators = map[lexer.TokenType]bool{
	lexer.PLUS:  true,
	lexer.MINUS: true,
	lexer.MUL:   true,
	lexer.AND:   true,
	lexer.OR:    true,
	lexer.REGEX: true,
	lexer.GT:    true,
	lexer.GE:    true,
	lexer.LT:    true,
	lexer.LE:    true,
	lexer.EQ:    true,
	lexer.NE:    true,
	lexer.INC:   true,
	lexer.DEC:   true,
}

// parseCommandOrExpressionStatement decides between command syntax and
// expression syntax. A line starting with an identifier is a command unless
// its second token is '=', '(', '[' or an expression operator.
func (p *Parser) parseCommandOrExpressionStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.IDENT:
		switch {
		case p.peekTokenIs(lexer.ASSIGN):
			return p.parseAssignmentStatement()
		case p.peekTokenIs(lexer.LBRACKET):
			return p.parseSubscriptAssignmentOrCommand()
		case p.peekTokenIs(lexer.LPAREN):
			return p.parseExpressionStatement()
		case expressionOperators[p.peekToken.Type]:
			return p.parseExpressionStatement()
		default:
			return p.parseCommandStatement()
		}
	case lexer.UP, lexer.DIV, lexer.QUESTION, lexer.EOPEN, lexer.IPADDR:
		return p.parseCommandStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// parseSubscriptAssignmentOrCommand disambiguates "x[0] = 5" from a command
// like "show [1, 2]" by trying the assignment first and backtracking.
func (p *Parser) parseSubscriptAssignmentOrCommand() ast.Statement {
	savedPrev, savedCur, savedPeek := p.prevToken, p.curToken, p.peekToken
	savedErrs := len(p.errs)
	savedLexer := p.l.SaveState()

	target := p.parseSubscriptTarget()
	if target != nil && p.peekTokenIs(lexer.ASSIGN) && len(p.errs) == savedErrs {
		stmt := &ast.AssignmentStatement{Token: savedCur, Target: target}
		p.nextToken() // '='
		p.nextToken()
		stmt.Value = p.parseExpression(LOWEST)
		if stmt.Value == nil {
			return nil
		}
		return stmt
	}

	// "a[0] + b" is an expression; only a malformed or trailing-item
	// subscript falls back to command parsing.
	exprFollows := target != nil && len(p.errs) == savedErrs &&
		expressionOperators[p.peekToken.Type]

	p.prevToken, p.curToken, p.peekToken = savedPrev, savedCur, savedPeek
	p.errs = p.errs[:savedErrs]
	p.l.RestoreState(savedLexer)
	if exprFollows {
		return p.parseExpressionStatement()
	}
	return p.parseCommandStatement()
}

// parseSubscriptTarget parses name[index][index]... without consuming past it.
func (p *Parser) parseSubscriptTarget() ast.Expression {
	var target ast.Expression = &ast.Symbol{Token: p.curToken, Name: p.curToken.Literal}
	for p.peekTokenIs(lexer.LBRACKET) {
		p.nextToken()
		sub := &ast.Subscript{Token: p.curToken, Expr: target}
		p.nextToken()
		sub.Index = p.parseExpression(LOWEST)
		if sub.Index == nil {
			return nil
		}
		if !p.expectPeek(lexer.RBRACKET, "']'") {
			return nil
		}
		target = sub
	}
	return target
}

func (p *Parser) parseAssignmentStatement() ast.Statement {
	stmt := &ast.AssignmentStatement{
		Token:  p.curToken,
		Target: &ast.Symbol{Token: p.curToken, Name: p.curToken.Literal},
	}
	p.nextToken() // '='
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	return stmt
}

// ---------------------------------------------------------------------------
// Command syntax

// parseCommandStatement parses a command call and any pipe continuation.
func (p *Parser) parseCommandStatement() ast.Statement {
	cmd := p.parseCommandCall()
	if cmd == nil {
		return nil
	}
	if p.peekTokenIs(lexer.PIPE) {
		return p.parsePipeTail(cmd)
	}
	return cmd
}

// parsePipeTail parses "| cmd | cmd ..." into right-nested pipe expressions.
func (p *Parser) parsePipeTail(left *ast.CommandCall) ast.Statement {
	p.nextToken() // '|'
	pipe := &ast.PipeExpr{Token: p.curToken, Left: left}
	p.nextToken()
	right := p.parseCommandCall()
	if right == nil {
		return nil
	}
	if p.peekTokenIs(lexer.PIPE) {
		tail := p.parsePipeTail(right)
		if tail == nil {
			return nil
		}
		pipe.Right = tail.(ast.Expression)
	} else {
		pipe.Right = right
	}
	return pipe
}

// commandEnd tokens terminate the item list of a command call.
func commandEnd(t lexer.TokenType) bool {
	switch t {
	case lexer.SEPARATOR, lexer.EOF, lexer.PIPE, lexer.REDIRECT, lexer.RBRACE:
		return true
	}
	return false
}

// parseCommandCall parses a flat list of command items starting at curToken.
func (p *Parser) parseCommandCall() *ast.CommandCall {
	cmd := &ast.CommandCall{Token: p.curToken}
	for {
		item := p.parseCommandItem()
		if item != nil {
			cmd.Items = append(cmd.Items, item)
		} else if !p.recover {
			return nil
		}
		if commandEnd(p.peekToken.Type) {
			return cmd
		}
		p.nextToken()
	}
}

// parameterOperators are the operators accepted in a binary parameter.
var parameterOperators = map[lexer.TokenType]bool{
	lexer.ASSIGN: true,
	lexer.EQ:     true,
	lexer.NE:     true,
	lexer.GT:     true,
	lexer.GE:     true,
	lexer.LT:     true,
	lexer.LE:     true,
	lexer.REGEX:  true,
	lexer.INC:    true,
	lexer.DEC:    true,
}

// parseCommandItem parses one command item, leaving curToken on its last
// token. Returns nil on a malformed item.
func (p *Parser) parseCommandItem() ast.Expression {
	switch p.curToken.Type {
	case lexer.IDENT:
		if parameterOperators[p.peekToken.Type] {
			return p.parseBinaryParameter()
		}
		return &ast.Symbol{Token: p.curToken, Name: p.curToken.Literal}
	case lexer.INT:
		return &ast.IntegerLiteral{Token: p.curToken, Value: p.curToken.Value}
	case lexer.STRING:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.IPADDR:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.TRUE, lexer.FALSE:
		return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
	case lexer.NONE:
		return &ast.NoneLiteral{Token: p.curToken}
	case lexer.UP:
		return &ast.PathMarker{Token: p.curToken, Kind: ast.PathUp}
	case lexer.DIV:
		return &ast.PathMarker{Token: p.curToken, Kind: ast.PathRoot}
	case lexer.QUESTION:
		return &ast.PathMarker{Token: p.curToken, Kind: ast.PathList}
	case lexer.EOPEN:
		return p.parseExpansion()
	case lexer.LBRACKET:
		return p.parseListLiteral()
	case lexer.LBRACE:
		return p.parseDictLiteral()
	case lexer.LPAREN:
		return p.parseGroupedExpression()
	case lexer.MINUS:
		if p.peekTokenIs(lexer.INT) {
			tok := p.curToken
			p.nextToken()
			return &ast.IntegerLiteral{Token: tok, Value: -p.curToken.Value}
		}
		p.addError("PARSE-0002", p.curToken, map[string]any{"Token": p.curToken.Literal})
		return nil
	case lexer.ILLEGAL:
		p.addError("LEX-0001", p.curToken, map[string]any{"Char": p.curToken.Literal})
		return nil
	default:
		p.addError("PARSE-0002", p.curToken, map[string]any{"Token": p.curToken.Literal})
		return nil
	}
}

// parseBinaryParameter parses "name OP value". In recovering mode a missing
// value becomes a none placeholder so a half-typed parameter still parses.
func (p *Parser) parseBinaryParameter() ast.Expression {
	param := &ast.BinaryParameter{Token: p.curToken, Name: p.curToken.Literal}
	p.nextToken()
	param.Op = p.curToken.Literal
	if commandEnd(p.peekToken.Type) {
		if p.recover {
			param.Value = &ast.NoneLiteral{Token: p.curToken}
			return param
		}
		p.addError("PARSE-0003", p.peekToken, nil)
		return nil
	}
	p.nextToken()
	param.Value = p.parseParameterValue()
	if param.Value == nil {
		return nil
	}
	return param
}

// parseParameterValue parses the value side of a binary parameter.
func (p *Parser) parseParameterValue() ast.Expression {
	switch p.curToken.Type {
	case lexer.IDENT:
		return &ast.Symbol{Token: p.curToken, Name: p.curToken.Literal}
	case lexer.INT:
		return &ast.IntegerLiteral{Token: p.curToken, Value: p.curToken.Value}
	case lexer.STRING:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.IPADDR:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.TRUE, lexer.FALSE:
		return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
	case lexer.NONE:
		return &ast.NoneLiteral{Token: p.curToken}
	case lexer.LBRACKET:
		return p.parseListLiteral()
	case lexer.LBRACE:
		return p.parseDictLiteral()
	case lexer.EOPEN:
		return p.parseExpansion()
	case lexer.LPAREN:
		return p.parseGroupedExpression()
	case lexer.MINUS:
		if p.peekTokenIs(lexer.INT) {
			tok := p.curToken
			p.nextToken()
			return &ast.IntegerLiteral{Token: tok, Value: -p.curToken.Value}
		}
	}
	if p.recover {
		return &ast.NoneLiteral{Token: p.curToken}
	}
	p.addError("PARSE-0002", p.curToken, map[string]any{"Token": p.curToken.Literal})
	return nil
}

// ---------------------------------------------------------------------------
// Keyword statements

// parseBlock parses { stmt; stmt; ... } with curToken on the '{'.
func (p *Parser) parseBlock() []ast.Statement {
	statements := []ast.Statement{}
	p.nextToken()
	for !p.curTokenIs(lexer.RBRACE) {
		if p.curTokenIs(lexer.EOF) {
			p.addError("PARSE-0003", p.curToken, nil)
			return nil
		}
		if p.curTokenIs(lexer.SEPARATOR) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			statements = append(statements, stmt)
			if !p.peekTokenIs(lexer.SEPARATOR) && !p.peekTokenIs(lexer.RBRACE) && !p.peekTokenIs(lexer.EOF) {
				p.addError("PARSE-0002", p.peekToken, map[string]any{"Token": p.peekToken.Literal})
				if !p.recover {
					return nil
				}
			}
		} else if !p.recover {
			return nil
		}
		p.nextToken()
	}
	return statements
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if !p.expectPeek(lexer.LPAREN, "'('") {
		return nil
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if stmt.Cond == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE, "'{'") {
		return nil
	}
	stmt.Body = p.parseBlock()
	if stmt.Body == nil {
		return nil
	}

	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		if p.peekTokenIs(lexer.IF) {
			p.nextToken()
			nested := p.parseIfStatement()
			if nested == nil {
				return nil
			}
			stmt.Else = []ast.Statement{nested}
		} else {
			if !p.expectPeek(lexer.LBRACE, "'{'") {
				return nil
			}
			stmt.Else = p.parseBlock()
			if stmt.Else == nil {
				return nil
			}
		}
	}
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	if !p.expectPeek(lexer.LPAREN, "'('") {
		return nil
	}
	if !p.expectPeek(lexer.IDENT, "loop variable") {
		return nil
	}
	stmt.Vars = []string{p.curToken.Literal}
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT, "loop variable") {
			return nil
		}
		stmt.Vars = append(stmt.Vars, p.curToken.Literal)
	}
	if len(stmt.Vars) > 2 {
		p.addError("PARSE-0004", stmt.Token, map[string]any{"Got": len(stmt.Vars)})
		return nil
	}
	if !p.expectPeek(lexer.IN, "'in'") {
		return nil
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if stmt.Iterable == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE, "'{'") {
		return nil
	}
	stmt.Body = p.parseBlock()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if !p.expectPeek(lexer.LPAREN, "'('") {
		return nil
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if stmt.Cond == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE, "'{'") {
		return nil
	}
	stmt.Body = p.parseBlock()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseFunctionDefinition() ast.Statement {
	fn := &ast.FunctionDefinition{Token: p.curToken}
	p.nextToken() // name
	fn.Name = p.curToken.Literal
	if !p.expectPeek(lexer.LPAREN, "'('") {
		return nil
	}
	params, ok := p.parseParameterNames()
	if !ok {
		return nil
	}
	fn.Params = params
	if !p.expectPeek(lexer.LBRACE, "'{'") {
		return nil
	}
	fn.Body = p.parseBlock()
	if fn.Body == nil {
		return nil
	}
	return fn
}

// parseParameterNames parses "(a, b, c)" with curToken on the '('.
func (p *Parser) parseParameterNames() ([]string, bool) {
	params := []string{}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params, true
	}
	if !p.expectPeek(lexer.IDENT, "parameter name") {
		return nil, false
	}
	params = append(params, p.curToken.Literal)
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if !p.expectPeek(lexer.IDENT, "parameter name") {
			return nil, false
		}
		params = append(params, p.curToken.Literal)
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if commandEnd(p.peekToken.Type) {
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseUndefStatement() ast.Statement {
	stmt := &ast.UndefStatement{Token: p.curToken}
	if !p.expectPeek(lexer.IDENT, "variable name") {
		return nil
	}
	stmt.Name = p.curToken.Literal
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		if p.curTokenIs(lexer.ILLEGAL) {
			p.addError("LEX-0001", p.curToken, map[string]any{"Char": p.curToken.Literal})
		} else if p.curTokenIs(lexer.EOF) {
			p.addError("PARSE-0003", p.curToken, nil)
		} else {
			p.addError("PARSE-0002", p.curToken, map[string]any{"Token": p.curToken.Literal})
		}
		return nil
	}
	left := prefix()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(lexer.SEPARATOR) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parseSymbol() ast.Expression {
	return &ast.Symbol{Token: p.curToken, Name: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	return &ast.IntegerLiteral{Token: p.curToken, Value: p.curToken.Value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

// parseAddressLiteral treats an IP address literal as its string value.
func (p *Parser) parseAddressLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parseNoneLiteral() ast.Expression {
	return &ast.NoneLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpr{Token: p.curToken, Op: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

// parseNotExpression binds at the documented 'not' level, which sits below
// the comparison operators.
func (p *Parser) parseNotExpression() ast.Expression {
	expr := &ast.PrefixExpr{Token: p.curToken, Op: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(NEGATE)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{Token: p.curToken, Left: left, Op: p.curToken.Literal}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	return expr
}

func (p *Parser) parseListLiteral() ast.Expression {
	list := &ast.ListLiteral{Token: p.curToken}
	if p.peekTokenIs(lexer.RBRACKET) {
		p.nextToken()
		return list
	}
	p.nextToken()
	elem := p.parseExpression(LOWEST)
	if elem == nil {
		return nil
	}
	list.Elements = append(list.Elements, elem)
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		list.Elements = append(list.Elements, elem)
	}
	if !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	return list
}

func (p *Parser) parseDictLiteral() ast.Expression {
	dict := &ast.DictLiteral{Token: p.curToken}
	if p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		return dict
	}
	for {
		p.nextToken()
		pair, ok := p.parseDictPair()
		if !ok {
			return nil
		}
		dict.Pairs = append(dict.Pairs, pair)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(lexer.RBRACE, "'}'") {
		return nil
	}
	return dict
}

// parseDictPair parses "key: value". A bare-word key is a string, not a
// variable reference.
func (p *Parser) parseDictPair() (ast.DictPair, bool) {
	var pair ast.DictPair
	switch p.curToken.Type {
	case lexer.IDENT:
		pair.Key = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.STRING:
		pair.Key = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case lexer.INT:
		pair.Key = &ast.IntegerLiteral{Token: p.curToken, Value: p.curToken.Value}
	default:
		p.addError("PARSE-0001", p.curToken, map[string]any{
			"Expected": "dict key",
			"Got":      p.curToken.Literal,
		})
		return pair, false
	}
	if !p.expectPeek(lexer.COLON, "':'") {
		return pair, false
	}
	p.nextToken()
	pair.Value = p.parseExpression(LOWEST)
	if pair.Value == nil {
		return pair, false
	}
	return pair, true
}

func (p *Parser) parseSubscriptExpression(left ast.Expression) ast.Expression {
	sub := &ast.Subscript{Token: p.curToken, Expr: left}
	p.nextToken()
	sub.Index = p.parseExpression(LOWEST)
	if sub.Index == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACKET, "']'") {
		return nil
	}
	return sub
}

// parseCallExpression parses "name(args)". Only simple names are callable.
func (p *Parser) parseCallExpression(left ast.Expression) ast.Expression {
	sym, ok := left.(*ast.Symbol)
	if !ok {
		p.addError("PARSE-0002", p.curToken, map[string]any{"Token": p.curToken.Literal})
		return nil
	}
	call := &ast.FunctionCall{Token: sym.Token, Name: sym.Name}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return call
	}
	p.nextToken()
	arg := p.parseExpression(LOWEST)
	if arg == nil {
		return nil
	}
	call.Args = append(call.Args, arg)
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		call.Args = append(call.Args, arg)
	}
	if !p.expectPeek(lexer.RPAREN, "')'") {
		return nil
	}
	return call
}

// parseExpansion parses "${...}". The inside is either an expression or,
// when it reads like one, a whole command (so a command's output can be
// used as a value).
func (p *Parser) parseExpansion() ast.Expression {
	exp := &ast.ExpressionExpansion{Token: p.curToken}
	p.nextToken()
	exp.Expr = p.parseExpansionInner()
	if exp.Expr == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACE, "'}'") {
		return nil
	}
	return exp
}

// commandItemStart reports whether a token can begin a command item; used to
// spot multi-word commands inside an expansion.
func commandItemStart(t lexer.TokenType) bool {
	switch t {
	case lexer.IDENT, lexer.INT, lexer.STRING, lexer.IPADDR,
		lexer.TRUE, lexer.FALSE, lexer.NONE,
		lexer.UP, lexer.DIV, lexer.QUESTION, lexer.EOPEN:
		return true
	}
	return false
}

func (p *Parser) parseExpansionInner() ast.Expression {
	switch p.curToken.Type {
	case lexer.UP, lexer.DIV, lexer.QUESTION:
		return p.parseExpansionCommand()
	case lexer.IDENT:
		if commandItemStart(p.peekToken.Type) || p.peekTokenIs(lexer.ASSIGN) {
			return p.parseExpansionCommand()
		}
	}
	return p.parseExpression(LOWEST)
}

func (p *Parser) parseExpansionCommand() ast.Expression {
	cmd := p.parseCommandCall()
	if cmd == nil {
		return nil
	}
	if p.peekTokenIs(lexer.PIPE) {
		tail := p.parsePipeTail(cmd)
		if tail == nil {
			return nil
		}
		return tail.(ast.Expression)
	}
	return cmd
}

// parseFunctionExpression parses an anonymous function literal.
func (p *Parser) parseFunctionExpression() ast.Expression {
	fn := &ast.FunctionDefinition{Token: p.curToken}
	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		fn.Name = p.curToken.Literal
	}
	if !p.expectPeek(lexer.LPAREN, "'('") {
		return nil
	}
	params, ok := p.parseParameterNames()
	if !ok {
		return nil
	}
	fn.Params = params
	if !p.expectPeek(lexer.LBRACE, "'{'") {
		return nil
	}
	fn.Body = p.parseBlock()
	if fn.Body == nil {
		return nil
	}
	return fn
}
