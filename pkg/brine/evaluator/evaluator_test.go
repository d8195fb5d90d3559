package evaluator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/brine/pkg/brine/parser"
)

// testSession is a session against an empty namespace tree with captured
// output.
func testSession() (*Session, *BufferedLogger) {
	s := NewSession(NewRootNamespace())
	logger := NewBufferedLogger()
	s.Logger = logger
	return s, logger
}

// testEval parses and evaluates, returning the last statement's value.
func testEval(t *testing.T, input string) Object {
	t.Helper()
	program, err := parser.Parse(input, "<test>")
	if err != nil {
		t.Fatalf("parse error for %q: %v", input, err)
	}
	s, _ := testSession()
	var result Object = NULL
	for _, stmt := range program {
		result = Eval(stmt, s.Globals(), s)
		if isError(result) {
			return result
		}
	}
	return result
}

func expectInteger(t *testing.T, input string, expected int64) {
	t.Helper()
	result := testEval(t, input)
	n, ok := result.(*Integer)
	if !ok {
		t.Errorf("%q: expected integer, got %s (%s)", input, result.Type(), result.Inspect())
		return
	}
	if n.Value != expected {
		t.Errorf("%q: expected %d, got %d", input, expected, n.Value)
	}
}

func expectBoolean(t *testing.T, input string, expected bool) {
	t.Helper()
	result := testEval(t, input)
	b, ok := result.(*Boolean)
	if !ok {
		t.Errorf("%q: expected boolean, got %s (%s)", input, result.Type(), result.Inspect())
		return
	}
	if b.Value != expected {
		t.Errorf("%q: expected %v, got %v", input, expected, b.Value)
	}
}

func expectString(t *testing.T, input string, expected string) {
	t.Helper()
	result := testEval(t, input)
	str, ok := result.(*String)
	if !ok {
		t.Errorf("%q: expected string, got %s (%s)", input, result.Type(), result.Inspect())
		return
	}
	if str.Value != expected {
		t.Errorf("%q: expected %q, got %q", input, expected, str.Value)
	}
}

func expectError(t *testing.T, input string, code string) {
	t.Helper()
	result := testEval(t, input)
	errObj, ok := result.(*Error)
	if !ok {
		t.Errorf("%q: expected error %s, got %s (%s)", input, code, result.Type(), result.Inspect())
		return
	}
	if errObj.Err.Code != code {
		t.Errorf("%q: expected %s, got %s (%s)", input, code, errObj.Err.Code, errObj.Err.Error())
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"1 + 2", 3},
		{"2 * 3 + 1", 7},
		{"7 - 10", -3},
		{"10 / 3", 3},
		{"2 * (3 + 1)", 8},
		{"-5 + 1", -4},
		{"10kib / 2", 5120},
		// comparison binds tighter than arithmetic, and booleans
		// coerce to integers when arithmetic lands on them
		{"1 + 2 * 3 > 5", 1},
		{"true + true", 2},
		{"true * 5", 5},
	}
	for _, tt := range tests {
		expectInteger(t, tt.input, tt.expected)
	}
}

func TestDivideByZero(t *testing.T) {
	expectError(t, "1 / 0", "TYPE-0007")
}

func TestComparison(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"3 > 2", true},
		{"2 >= 2", true},
		{"2 < 2", false},
		{"1 == 1", true},
		{"1 != 2", true},
		{"true == 1", true},
		{"false == 0", true},
		{`"abc" == "abc"`, true},
		{`"a" < "b"`, true},
		{"not 0", true},
		{"not 1", false},
		{"not none", true},
		{`not ""`, true},
		{"[1, 2] == [1, 2]", true},
		{"[1, 2] == [2, 1]", false},
	}
	for _, tt := range tests {
		expectBoolean(t, tt.input, tt.expected)
	}
}

// TestLogic: and/or are logical on booleans, bitwise on integers, and
// fall back to truthiness for everything else.
func TestLogic(t *testing.T) {
	expectBoolean(t, "true and false", false)
	expectBoolean(t, "true or false", true)
	expectInteger(t, "6 and 3", 2)
	expectInteger(t, "6 or 3", 7)
	expectInteger(t, "true and 3", 1)
	expectBoolean(t, `"x" and true`, true)
	expectBoolean(t, `"" or none`, false)
}

func TestRegexMatch(t *testing.T) {
	expectBoolean(t, `"root123" ~= "^root"`, true)
	expectBoolean(t, `"abc" ~= "z"`, false)
	expectError(t, `"a" ~= "("`, "TYPE-0010")
	expectError(t, `1 ~= "a"`, "TYPE-0001")
}

func TestStrings(t *testing.T) {
	expectString(t, `"a" + "b"`, "ab")
	expectString(t, `"abc"[1]`, "b")
	expectString(t, `"abc"[-1]`, "c")
	expectError(t, `"a" + 1`, "TYPE-0001")
}

func TestVariables(t *testing.T) {
	expectInteger(t, "x = 5; x + 1", 6)
	expectInteger(t, "x = 5; x = x + 1; x * 1", 6)
	expectError(t, "q + 1", "NAME-0003")
	expectError(t, "x = 5; undef x; x + 1", "NAME-0003")
	expectError(t, "undef nope", "NAME-0003")
}

func TestListsAndDicts(t *testing.T) {
	expectInteger(t, "[1, 2, 3][1]", 2)
	expectInteger(t, "[1, 2, 3][-1]", 3)
	expectString(t, `{name: "root", uid: "0"}["name"]`, "root")
	expectError(t, "[1, 2][5]", "TYPE-0004")
	expectError(t, `{a: 1}["b"]`, "TYPE-0004")
	expectError(t, "5[0]", "TYPE-0002")
	expectError(t, `[1, 2]["x"]`, "TYPE-0003")

	// subscript assignment mutates in place
	expectInteger(t, "x = [1, 2]; x[0] = 9; x[0] + 0", 9)
	expectInteger(t, "x = [1, 2]; x[-1] = 9; x[1] + 0", 9)
	expectInteger(t, `d = {}; d["k"] = 1; d["k"] + 0`, 1)
	expectError(t, "x = [1, 2]; x[5] = 1", "TYPE-0004")
}

// TestIfScoping: branches run in a child scope, so assignments to existing
// names stick but new names vanish with the branch.
func TestIfScoping(t *testing.T) {
	expectInteger(t, "x = 1; if (true) { x = 2 }; x + 0", 2)
	expectInteger(t, "x = 1; if (false) { x = 2 } else { x = 3 }; x + 0", 3)
	expectError(t, "if (true) { y = 5 }; y + 0", "NAME-0003")
}

func TestWhile(t *testing.T) {
	expectInteger(t, "i = 0; while (i < 5) { i = i + 1 }; i + 0", 5)
	expectInteger(t, "i = 0; while (true) { i = i + 1; if (i == 3) { break } }; i + 0", 3)
}

func TestFor(t *testing.T) {
	expectInteger(t, "total = 0; for (n in [1, 2, 3]) { total = total + n }; total + 0", 6)
	expectString(t, `out = ""; for (k, v in {a: "1", b: "2"}) { out = out + k + v }; out + ""`, "a1b2")
	expectString(t, `out = ""; for (k in {a: 1, b: 2}) { out = out + k }; out + ""`, "ab")
	expectString(t, `out = ""; for (c in "abc") { out = c + out }; out + ""`, "cba")
	expectError(t, "for (a, b in [1, 2]) { }", "TYPE-0006")
	expectError(t, "for (x in 5) { }", "TYPE-0005")
}

// TestNestedBreak: break stops the innermost loop only.
func TestNestedBreak(t *testing.T) {
	input := `
count = 0
for (i in [1, 2]) {
    for (j in [1, 2, 3]) {
        if (j == 2) { break }
        count = count + 1
    }
}
count + 0`
	expectInteger(t, input, 2)
}

func TestFunctions(t *testing.T) {
	expectInteger(t, "function add(a, b) { return a + b }; add(2, 3)", 5)
	expectInteger(t, "function f() { return 1; return 2 }; f()", 1)
	expectString(t, `function greet(name) { return "hi " + name }; greet("root")`, "hi root")

	// no explicit return means none
	result := testEval(t, "function f() { 1 + 1 }; f()")
	if result != NULL {
		t.Errorf("expected none, got %s", result.Inspect())
	}

	// extra arguments are dropped, missing ones stay unbound
	expectInteger(t, "function f(a) { return a }; f(1, 2, 3)", 1)
	expectError(t, "function f(a, b) { return b }; f(1)", "NAME-0003")

	// a user function shadows a builtin of the same name
	expectInteger(t, `function length(x) { return 42 }; length("abc")`, 42)

	expectError(t, "nope(1)", "NAME-0002")
	expectError(t, "x = 5; x(1)", "TYPE-0008")
}

func TestClosures(t *testing.T) {
	input := `
function make(n) {
    return function(x) { return x + n }
}
inc = make(10)
inc(5)`
	expectInteger(t, input, 15)
}

// TestReturnThroughLoop: return unwinds out of loops to the call boundary.
func TestReturnThroughLoop(t *testing.T) {
	input := `
function f() {
    for (i in [1, 2, 3]) {
        if (i == 2) { return i * 10 }
    }
    return 0
}
f()`
	expectInteger(t, input, 20)
}

// TestBreakThroughFunction: break is not stopped by a call boundary; it
// keeps unwinding until a loop consumes it.
func TestBreakThroughFunction(t *testing.T) {
	input := `
count = 0
function stop() { break }
for (i in [1, 2, 3]) {
    count = count + 1
    stop()
}
count + 0`
	expectInteger(t, input, 1)
}

// TestOrphanSignals: return and break with no consumer are dropped silently
// by the statement driver.
func TestOrphanSignals(t *testing.T) {
	s, logger := testSession()
	if err := s.Run("break", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Run("return 5", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.Lines()) != 0 {
		t.Fatalf("expected no output, got %v", logger.Lines())
	}
}

func TestBuiltins(t *testing.T) {
	expectInteger(t, `length("abc")`, 3)
	expectInteger(t, "length([1, 2])", 2)
	expectInteger(t, "length({a: 1})", 1)
	expectString(t, `join(range(3), ",")`, "0,1,2")
	expectString(t, `join(range(2, 5), ",")`, "2,3,4")
	expectInteger(t, "append([1], 2)[1]", 2)
	expectInteger(t, `length(split("a b  c"))`, 3)
	expectInteger(t, `length(split("a,b", ","))`, 2)
	expectBoolean(t, `str(5) == "5"`, true)
	expectInteger(t, `int("42")`, 42)
	expectInteger(t, "int(true)", 1)
	expectBoolean(t, `typeof(1) == "integer"`, true)
	expectBoolean(t, `typeof("x") == "string"`, true)
	expectBoolean(t, `sprintf("%d-%s", 1, "a") == "1-a"`, true)
	expectInteger(t, "length(resize([1], 3))", 3)
	expectInteger(t, "length(remove([1, 2, 3], 0))", 2)
	expectBoolean(t, `unparse([1, "a"]) == "[1, \"a\"]"`, true)
	expectError(t, "length(1)", "")
}

func TestParsedate(t *testing.T) {
	expectInteger(t, `parsedate("2016-01-02T15:04:05Z")`, 1451747045)
}

func TestPrintOutput(t *testing.T) {
	s, logger := testSession()
	if err := s.Run(`print("hello", 42)`, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 1 || lines[0] != "hello 42" {
		t.Fatalf("expected [hello 42], got %v", lines)
	}
}

// TestExpressionResultPrinted: the driver prints the value of a bare
// expression statement, none excepted.
func TestExpressionResultPrinted(t *testing.T) {
	s, logger := testSession()
	if err := s.Run("1 + 2", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 1 || lines[0] != "3" {
		t.Fatalf("expected [3], got %v", lines)
	}
}

func TestRedirectAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s, _ := testSession()
	input := `1 + 2 >> "` + path + `"` + "\n" + `"done" >> "` + path + `"`
	if err := s.Run(input, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading redirect target: %v", err)
	}
	if string(data) != "3\ndone\n" {
		t.Fatalf("expected appended lines, got %q", string(data))
	}
}

// TestErrorRecovery: a failing statement is reported and execution
// continues with the next one.
func TestErrorRecovery(t *testing.T) {
	s, logger := testSession()
	if err := s.Run("1 / 0\nprint(\"after\")", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected error line plus output, got %v", lines)
	}
	if !strings.Contains(lines[0], "division by zero") {
		t.Fatalf("expected error message in %q", lines[0])
	}
	if lines[1] != "after" {
		t.Fatalf("expected execution to continue, got %q", lines[1])
	}
}

// TestErrorTrail: an error inside user functions prints the call trail
// innermost first.
func TestErrorTrail(t *testing.T) {
	s, logger := testSession()
	input := `
function inner() { return 1 / 0 }
function outer() { return inner() }
outer()`
	if err := s.Run(input, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected error plus two frames, got %v", lines)
	}
	if !strings.Contains(lines[1], "inner") || !strings.Contains(lines[2], "outer") {
		t.Fatalf("expected innermost-first trail, got %v", lines)
	}
}
