package repl

import "testing"

// TestNeedsMoreInput: buffered input continues while a delimiter, including
// an expansion's "${", is still open or the line ends in a backslash.
func TestNeedsMoreInput(t *testing.T) {
	tests := []struct {
		input string
		more  bool
	}{
		{"x = 1", false},
		{"if x {", true},
		{"if x { y = 1 }", false},
		{"x = (1 +", true},
		{"x = [1, 2,", true},
		{"x = ${account user show", true},
		{"x = ${1 + 2}", false},
		{"volume create \\", true},
		{"volume create \\  ", true},
	}

	for _, tt := range tests {
		if got := needsMoreInput(tt.input); got != tt.more {
			t.Errorf("%q: expected %v, got %v", tt.input, tt.more, got)
		}
	}
}
