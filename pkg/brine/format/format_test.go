package format

import (
	"strings"
	"testing"

	"github.com/sambeau/brine/pkg/brine/ast"
	"github.com/sambeau/brine/pkg/brine/parser"
)

func parse(t *testing.T, input string) []ast.Statement {
	t.Helper()
	program, err := parser.Parse(input, "<test>")
	if err != nil {
		t.Fatalf("parse error for %q: %v", input, err)
	}
	return program
}

// TestRoundTrip: unparsing a parsed statement and parsing the result must
// give back a statement with the same structure.
func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"x = 5",
		`name = "ro\"ot"`,
		"x = y + 1 * 2",
		"x = not a == b",
		"x = -n + 1",
		"x = [1, 2, 3]",
		`x = {name: "root", uid: 0}`,
		"x = f(1, 2)",
		"x = users[0]",
		"x = ${account user show}",
		"account user show",
		`volume create name="tank" size=10g`,
		"cd /",
		".. ..",
		"service ?",
		"account user show | search name==root | limit 10",
		"if (x > 1) { y = 1 } else { y = 2 }",
		"if (a) { x = 1 } else if (b) { x = 2 } else { x = 3 }",
		"for (u in users) { print(u) }",
		"for (k, v in env) { print(k); print(v) }",
		"while (x < 10) { x = x + 1 }",
		"function f(a, b) { return a + b }",
		"return",
		"break",
		"undef x",
		`account user show >> "users.txt"`,
	}

	for _, input := range inputs {
		first := parse(t, input)
		if len(first) != 1 {
			t.Fatalf("%q: expected 1 statement, got %d", input, len(first))
		}

		text := Unparse(first[0])
		second, err := parser.Parse(text, "<unparse>")
		if err != nil {
			t.Errorf("%q: unparse produced unparsable %q: %v", input, text, err)
			continue
		}
		if len(second) != 1 {
			t.Errorf("%q: unparse %q produced %d statements", input, text, len(second))
			continue
		}
		if first[0].String() != second[0].String() {
			t.Errorf("%q: round trip changed structure\n  unparsed: %s\n  first:  %s\n  second: %s",
				input, text, first[0].String(), second[0].String())
		}
	}
}

// TestRoundTripStable: a second unparse of the reparsed tree must be
// byte-identical, so the renderer is its own fixed point.
func TestRoundTripStable(t *testing.T) {
	inputs := []string{
		"x = (1 + 2) * 3",
		"account user show | search name==root",
		"if (x) { y = 1 }",
		"function f() { return }",
	}

	for _, input := range inputs {
		first := parse(t, input)
		text := Unparse(first[0])
		second, err := parser.Parse(text, "<unparse>")
		if err != nil {
			t.Fatalf("%q: reparse failed: %v", input, err)
		}
		again := Unparse(second[0])
		if text != again {
			t.Errorf("%q: not a fixed point\n  first:  %s\n  second: %s", input, text, again)
		}
	}
}

func TestUnparseForms(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"x = 1 + 2 * 3", "x = (1 + (2 * 3))"},
		{"x=5", "x = 5"},
		{"cd /", "cd /"},
		{"service ?", "service ?"},
		{"undef x", "undef x"},
	}

	for _, tt := range tests {
		program := parse(t, tt.input)
		if got := Unparse(program[0]); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

// TestUnparseIndented renders nested blocks one per line.
func TestUnparseIndented(t *testing.T) {
	program := parse(t, "if (x) { y = 1; z = 2 }")
	got := UnparseIndented(program[0])
	if !strings.Contains(got, "\n    y = 1\n") {
		t.Fatalf("expected indented body, got:\n%s", got)
	}

	// indented output must still reparse to the same structure
	second, err := parser.Parse(got, "<unparse>")
	if err != nil {
		t.Fatalf("indented output unparsable: %v\n%s", err, got)
	}
	if second[0].String() != program[0].String() {
		t.Fatalf("indented round trip changed structure:\n%s", got)
	}
}

func TestUnparseBlock(t *testing.T) {
	program := parse(t, "x = 1; y = 2")
	got := UnparseBlock(program, false)
	if got != "x = 1; y = 2" {
		t.Fatalf("expected joined statements, got %q", got)
	}
}
