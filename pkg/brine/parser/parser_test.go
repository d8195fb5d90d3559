package parser

import (
	"testing"

	"github.com/sambeau/brine/pkg/brine/ast"
	"github.com/sambeau/brine/pkg/brine/lexer"
)

func parseProgram(t *testing.T, input string) []ast.Statement {
	t.Helper()
	l := lexer.New(input)
	p := New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse error for %q: %s", input, errs[0].Error())
	}
	return program
}

func parseOne(t *testing.T, input string) ast.Statement {
	t.Helper()
	program := parseProgram(t, input)
	if len(program) != 1 {
		t.Fatalf("expected 1 statement for %q, got %d", input, len(program))
	}
	return program[0]
}

// TestOperatorPrecedence pins the precedence table down via the
// parenthesised String form. Comparison binds tighter than arithmetic
// and the logical operators sit between arithmetic and 'not'.
func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"2 * 3 + 1", "((2 * 3) + 1)"},
		{"1 + 2 > 5", "(1 + (2 > 5))"},
		{"1 + 2 * 3 > 5", "(1 + (2 * (3 > 5)))"},
		{"1 + 2 == 3", "(1 + (2 == 3))"},
		{"not x == y", "not (x == y)"},
		{"x == y and z", "((x == y) and z)"},
		{"a == b and c == d", "((a == b) and (c == d))"},
		{"a ~= b and c", "((a ~= b) and c)"},
		{"a >= b == c", "(a >= (b == c))"},
		{"a > b >= c", "(a > (b >= c))"},
		{"-a + b", "(-a + b)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a[0] + b[1]", "(a[0] + b[1])"},
		{"f(x) + 1", "(f(x) + 1)"},
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		es, ok := stmt.(*ast.ExpressionStatement)
		if !ok {
			t.Errorf("%q: expected expression statement, got %T", tt.input, stmt)
			continue
		}
		if got := es.Expression.String(); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestLiteralExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42", "42"},
		{"10kib", "10240"},
		{`"hello"`, `"hello"`},
		{"true", "true"},
		{"none", "none"},
		{"[1, 2, 3]", "[1, 2, 3]"},
		{`{name: "root", uid: 0}`, `{name: "root", uid: 0}`},
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		es, ok := stmt.(*ast.ExpressionStatement)
		if !ok {
			t.Errorf("%q: expected expression statement, got %T", tt.input, stmt)
			continue
		}
		if got := es.Expression.String(); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

// TestCommandCalls: a leading word not followed by an expression operator
// starts a command, and its items stay unevaluated.
func TestCommandCalls(t *testing.T) {
	tests := []struct {
		input string
		items int
	}{
		{"show", 1},
		{"account user show", 3},
		{`volume create name="tank" size=10g`, 4},
		{"cd /", 2},
		{".. ..", 2},
		{"service ?", 2},
		{"update check now=true", 3},
		{"network interface 192.168.1.4 show", 4},
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		cc, ok := stmt.(*ast.CommandCall)
		if !ok {
			t.Errorf("%q: expected command call, got %T", tt.input, stmt)
			continue
		}
		if len(cc.Items) != tt.items {
			t.Errorf("%q: expected %d items, got %d (%s)", tt.input, tt.items, len(cc.Items), cc.String())
		}
	}
}

func TestCommandParameters(t *testing.T) {
	stmt := parseOne(t, `volume create name="tank" size=10g compression~="lz4|zstd"`)
	cc := stmt.(*ast.CommandCall)
	if len(cc.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(cc.Items))
	}

	name, ok := cc.Items[2].(*ast.BinaryParameter)
	if !ok || name.Name != "name" || name.Op != "=" {
		t.Fatalf("item 2: expected name= parameter, got %s", cc.Items[2].String())
	}
	size := cc.Items[3].(*ast.BinaryParameter)
	if v, ok := size.Value.(*ast.IntegerLiteral); !ok || v.Value != 10*1000*1000*1000 {
		t.Fatalf("size parameter: expected sized integer, got %s", size.Value.String())
	}
	match := cc.Items[4].(*ast.BinaryParameter)
	if match.Op != "~=" {
		t.Fatalf("compression parameter: expected ~= op, got %q", match.Op)
	}
}

// TestCommandVersusExpression: a leading word followed by an expression
// operator reads as an expression, but '/' after a word is a path, so
// "cd /" stays a command.
func TestCommandVersusExpression(t *testing.T) {
	tests := []struct {
		input     string
		isCommand bool
	}{
		{"x + 1", false},
		{"x == y", false},
		{"x(1)", false},
		{"cd /", true},
		{"account user show", true},
		{"show name=1", true},
		{"x", true}, // a bare word is a command (or navigation)
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		_, isCommand := stmt.(*ast.CommandCall)
		if isCommand != tt.isCommand {
			t.Errorf("%q: command=%v, expected %v (%T)", tt.input, isCommand, tt.isCommand, stmt)
		}
	}
}

// TestSubscriptAssignmentBacktracking: "x[0] = 5" assigns, while a word
// followed by a list literal is a command taking the list as an argument.
func TestSubscriptAssignmentBacktracking(t *testing.T) {
	stmt := parseOne(t, "x[0] = 5")
	as, ok := stmt.(*ast.AssignmentStatement)
	if !ok {
		t.Fatalf("expected assignment, got %T", stmt)
	}
	if _, ok := as.Target.(*ast.Subscript); !ok {
		t.Fatalf("expected subscript target, got %T", as.Target)
	}

	stmt = parseOne(t, "show [1, 2]")
	cc, ok := stmt.(*ast.CommandCall)
	if !ok {
		t.Fatalf("expected command call, got %T", stmt)
	}
	if len(cc.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(cc.Items))
	}
	if _, ok := cc.Items[1].(*ast.ListLiteral); !ok {
		t.Fatalf("expected list argument, got %T", cc.Items[1])
	}
}

func TestAssignmentStatements(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"x = 5", "x = 5"},
		{`name = "root"`, `name = "root"`},
		{"x = y + 1", "x = (y + 1)"},
		{"x = ${account user show}", "x = ${account user show}"},
		{"users[0] = none", "users[0] = none"},
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		as, ok := stmt.(*ast.AssignmentStatement)
		if !ok {
			t.Errorf("%q: expected assignment, got %T", tt.input, stmt)
			continue
		}
		if got := as.String(); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestPipelines(t *testing.T) {
	stmt := parseOne(t, "account user show | search name==root | limit 10")
	pipe, ok := stmt.(*ast.PipeExpr)
	if !ok {
		t.Fatalf("expected pipe, got %T", stmt)
	}
	if pipe.Left.String() != "account user show" {
		t.Fatalf("head: got %s", pipe.Left.String())
	}
	inner, ok := pipe.Right.(*ast.PipeExpr)
	if !ok {
		t.Fatalf("expected nested pipe, got %T", pipe.Right)
	}
	if inner.Left.String() != "search name==root" {
		t.Fatalf("stage 2: got %s", inner.Left.String())
	}
	if inner.Right.String() != "limit 10" {
		t.Fatalf("stage 3: got %s", inner.Right.String())
	}
}

func TestControlFlow(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"if (x > 1) { y = 1 }", "if ((x > 1)) { y = 1 }"},
		{"if (x) { y = 1 } else { y = 2 }", "if (x) { y = 1 } else { y = 2 }"},
		{"for (u in users) { print(u) }", "for (u in users) { print(u) }"},
		{"for (k, v in env) { print(k) }", "for (k, v in env) { print(k) }"},
		{"while (x < 10) { x = x + 1 }", "while ((x < 10)) { x = (x + 1) }"},
		{"function f(a, b) { return a + b }", "function f(a, b) { return (a + b) }"},
		{"return", "return"},
		{"break", "break"},
		{"undef x", "undef x"},
	}

	for _, tt := range tests {
		stmt := parseOne(t, tt.input)
		if got := stmt.String(); got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, got)
		}
	}
}

func TestElseIfChain(t *testing.T) {
	stmt := parseOne(t, "if (a) { x = 1 } else if (b) { x = 2 } else { x = 3 }")
	ifStmt := stmt.(*ast.IfStatement)
	if len(ifStmt.Else) != 1 {
		t.Fatalf("expected single else-if statement, got %d", len(ifStmt.Else))
	}
	nested, ok := ifStmt.Else[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected nested if, got %T", ifStmt.Else[0])
	}
	if nested.Else == nil {
		t.Fatalf("expected final else branch")
	}
}

func TestRedirect(t *testing.T) {
	stmt := parseOne(t, `account user show >> "users.txt"`)
	r, ok := stmt.(*ast.Redirect)
	if !ok {
		t.Fatalf("expected redirect, got %T", stmt)
	}
	if _, ok := r.Stmt.(*ast.CommandCall); !ok {
		t.Fatalf("expected command in redirect, got %T", r.Stmt)
	}
	path, ok := r.Path.(*ast.StringLiteral)
	if !ok || path.Value != "users.txt" {
		t.Fatalf("expected path users.txt, got %s", r.Path.String())
	}

	// bare-word path
	stmt = parseOne(t, "account user show >> users.txt")
	r = stmt.(*ast.Redirect)
	path, ok = r.Path.(*ast.StringLiteral)
	if !ok || path.Value != "users.txt" {
		t.Fatalf("expected bare path users.txt, got %s", r.Path.String())
	}
}

func TestExpansionForms(t *testing.T) {
	// command expansion inside an expression
	stmt := parseOne(t, "count = length(${account user show})")
	as := stmt.(*ast.AssignmentStatement)
	call, ok := as.Value.(*ast.FunctionCall)
	if !ok {
		t.Fatalf("expected call, got %T", as.Value)
	}
	if _, ok := call.Args[0].(*ast.ExpressionExpansion); !ok {
		t.Fatalf("expected expansion argument, got %T", call.Args[0])
	}

	// expression expansion as a command item
	stmt = parseOne(t, "volume create size=${x * 2}")
	cc := stmt.(*ast.CommandCall)
	param := cc.Items[2].(*ast.BinaryParameter)
	if _, ok := param.Value.(*ast.ExpressionExpansion); !ok {
		t.Fatalf("expected expansion value, got %T", param.Value)
	}
}

func TestMultipleStatements(t *testing.T) {
	program := parseProgram(t, "x = 1; y = 2\naccount user show")
	if len(program) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(program))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"if x { }", "PARSE-0001"}, // missing '('
		{"for (a, b, c in x) { }", "PARSE-0004"},
		{"x = ", "PARSE-0003"},
		{"(1 + 2", "PARSE-0003"},
		{"for (u in users) print(u)", "PARSE-0001"},
	}

	for _, tt := range tests {
		l := lexer.New(tt.input)
		p := New(l)
		p.ParseProgram()
		errs := p.Errors()
		if len(errs) == 0 {
			t.Errorf("%q: expected a parse error", tt.input)
			continue
		}
		if errs[0].Code != tt.code {
			t.Errorf("%q: expected %s, got %s (%s)", tt.input, tt.code, errs[0].Code, errs[0].Error())
		}
	}
}

// TestRecoverMode keeps parsing past errors for completion support.
func TestRecoverMode(t *testing.T) {
	l := lexer.New("volume create name=")
	l.SetRecover(true)
	p := New(l)
	p.SetRecover(true)
	program := p.ParseProgram()
	if len(program) != 1 {
		t.Fatalf("expected 1 recovered statement, got %d", len(program))
	}
	cc, ok := program[0].(*ast.CommandCall)
	if !ok {
		t.Fatalf("expected command call, got %T", program[0])
	}
	if len(cc.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(cc.Items))
	}
}
