// Package errors provides structured error types for the brine language.
//
// It defines BrineError, a unified error type representing lexer, parser
// and evaluation errors with enough metadata for display and programmatic
// handling, plus a small catalog of coded messages.
package errors

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassLex     ErrorClass = "lex"     // Illegal character
	ClassParse   ErrorClass = "parse"   // Grammar violation
	ClassName    ErrorClass = "name"    // Unresolved symbol/command/function
	ClassArity   ErrorClass = "arity"   // Wrong argument count
	ClassType    ErrorClass = "type"    // Operator/subscript on incompatible value
	ClassCommand ErrorClass = "command" // Raised by an invoked command
	ClassExit    ErrorClass = "exit"    // Process-termination request
)

// BrineError represents any error from lexing, parsing or evaluation.
type BrineError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`
	Column  int            `json:"column"`
	File    string         `json:"file,omitempty"`
	Payload map[string]any `json:"payload,omitempty"` // auxiliary command data
}

// Error implements the error interface.
func (e *BrineError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *BrineError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// WithPosition returns a copy of the error with file, line and column set.
func (e *BrineError) WithPosition(file string, line, column int) *BrineError {
	copy := *e
	copy.File = file
	copy.Line = line
	copy.Column = column
	return &copy
}

// IsParseError returns true for lexer and parser errors.
func (e *BrineError) IsParseError() bool {
	return e.Class == ClassLex || e.Class == ClassParse
}

// IsExit returns true when err is (or wraps) a process-termination request.
func IsExit(err error) bool {
	if be, ok := err.(*BrineError); ok {
		return be.Class == ClassExit
	}
	return false
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string // message template with {{.placeholders}}
	Hints    []string
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Lex errors
	"LEX-0001": {
		Class:    ClassLex,
		Template: "illegal character '{{.Char}}'",
	},
	"LEX-0002": {
		Class:    ClassLex,
		Template: "unterminated string",
	},

	// Parse errors
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got '{{.Got}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unexpected end of input",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "for loop takes one or two variables, got {{.Got}}",
		Hints:    []string{"for (x in list) { ... }", "for (k, v in dict) { ... }"},
	},

	// Name errors
	"NAME-0001": {
		Class:    ClassName,
		Template: "command or namespace '{{.Name}}' not found",
	},
	"NAME-0002": {
		Class:    ClassName,
		Template: "function '{{.Name}}' not found",
	},
	"NAME-0003": {
		Class:    ClassName,
		Template: "variable '{{.Name}}' is not defined",
	},
	"NAME-0004": {
		Class:    ClassName,
		Template: "pipe command '{{.Name}}' not found",
	},

	// Arity errors
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "{{.Func}} takes {{.Want}} arguments, got {{.Got}}",
	},

	// Type errors
	"TYPE-0001": {
		Class:    ClassType,
		Template: "unsupported operand types for '{{.Op}}': {{.Left}} and {{.Right}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "{{.Type}} is not subscriptable",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "{{.Type}} index must be {{.Want}}, got {{.Got}}",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "index {{.Index}} out of range",
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "cannot iterate over {{.Type}}",
	},
	"TYPE-0006": {
		Class:    ClassType,
		Template: "two-variable for requires a dict, got {{.Type}}",
	},
	"TYPE-0007": {
		Class:    ClassType,
		Template: "division by zero",
	},
	"TYPE-0008": {
		Class:    ClassType,
		Template: "{{.Type}} is not callable",
	},
	"TYPE-0009": {
		Class:    ClassType,
		Template: "bad operand type for unary '{{.Op}}': {{.Type}}",
	},
	"TYPE-0010": {
		Class:    ClassType,
		Template: "invalid regular expression: {{.Detail}}",
	},

	// Command errors
	"CMD-0001": {
		Class:    ClassCommand,
		Template: "no command specified",
	},
	"CMD-0002": {
		Class:    ClassCommand,
		Template: "the {{.Name}} command must be used at the end of the pipe list",
	},
	"CMD-0003": {
		Class:    ClassCommand,
		Template: "invalid syntax: {{.Detail}}",
	},
}

// New creates a BrineError from a catalog code and template data.
func New(code string, data map[string]any) *BrineError {
	def, ok := ErrorCatalog[code]
	if !ok {
		return &BrineError{
			Class:   ClassType,
			Code:    code,
			Message: fmt.Sprintf("unknown error %s", code),
		}
	}
	return &BrineError{
		Class:   def.Class,
		Code:    code,
		Message: renderTemplate(def.Template, data),
		Hints:   renderHints(def.Hints, data),
		Payload: data,
	}
}

// NewCommand creates a command-defined error with an optional code and
// auxiliary payload.
func NewCommand(message string, code string, payload map[string]any) *BrineError {
	return &BrineError{
		Class:   ClassCommand,
		Code:    code,
		Message: message,
		Payload: payload,
	}
}

// NewExit creates the process-termination request. It is the only error
// allowed to propagate uncaught through the statement driver.
func NewExit() *BrineError {
	return &BrineError{Class: ClassExit, Message: "exit"}
}

func renderTemplate(tmpl string, data map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	t, err := template.New("err").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return tmpl
	}
	return buf.String()
}

func renderHints(hints []string, data map[string]any) []string {
	if len(hints) == 0 {
		return nil
	}
	out := make([]string, len(hints))
	for i, h := range hints {
		out[i] = renderTemplate(h, data)
	}
	return out
}
