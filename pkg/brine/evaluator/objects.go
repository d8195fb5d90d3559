package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/brine/pkg/brine/ast"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
)

// ObjectType represents the type of objects in the language
type ObjectType string

const (
	INTEGER_OBJ   = "INTEGER"
	BOOLEAN_OBJ   = "BOOLEAN"
	STRING_OBJ    = "STRING"
	NULL_OBJ      = "NULL"
	ARRAY_OBJ     = "ARRAY"
	DICT_OBJ      = "DICT"
	FUNCTION_OBJ  = "FUNCTION"
	BUILTIN_OBJ   = "BUILTIN"
	RETURN_OBJ    = "RETURN_VALUE"
	BREAK_OBJ     = "BREAK"
	ERROR_OBJ     = "ERROR"
	NAMESPACE_OBJ = "NAMESPACE"
	COMMAND_OBJ   = "COMMAND"
)

// Object represents all values in the language
type Object interface {
	Type() ObjectType
	Inspect() string
}

// Integer represents integer objects
type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

// Boolean represents boolean objects
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

// String represents string objects
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

// Null represents the none value
type Null struct{}

func (n *Null) Type() ObjectType { return NULL_OBJ }
func (n *Null) Inspect() string  { return "none" }

// Array represents list objects
type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }
func (a *Array) Inspect() string {
	elements := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		elements[i] = e.Inspect()
	}
	return "[" + strings.Join(elements, ", ") + "]"
}

// Dict represents dict objects. Insertion order is preserved.
type Dict struct {
	Pairs map[string]Object
	Keys  []string
}

// NewDict creates an empty dict
func NewDict() *Dict {
	return &Dict{Pairs: make(map[string]Object)}
}

// Set inserts or replaces a key, keeping first-insertion order.
func (d *Dict) Set(key string, value Object) {
	if _, ok := d.Pairs[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Pairs[key] = value
}

// Get looks up a key
func (d *Dict) Get(key string) (Object, bool) {
	v, ok := d.Pairs[key]
	return v, ok
}

// Delete removes a key, preserving the order of the rest.
func (d *Dict) Delete(key string) {
	if _, ok := d.Pairs[key]; !ok {
		return
	}
	delete(d.Pairs, key)
	for i, k := range d.Keys {
		if k == key {
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			break
		}
	}
}

func (d *Dict) Type() ObjectType { return DICT_OBJ }
func (d *Dict) Inspect() string {
	pairs := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		pairs[i] = fmt.Sprintf("%s: %s", k, d.Pairs[k].Inspect())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// Function represents user-defined function objects. Env is the environment
// active at the definition point (the closure).
type Function struct {
	Name   string
	Params []string
	Body   []ast.Statement
	Env    *Environment
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	name := f.Name
	if name == "" {
		name = "function"
	}
	return fmt.Sprintf("<function %s(%s)>", name, strings.Join(f.Params, ", "))
}

// BuiltinFunction is the signature of built-in functions. Builtins receive
// the session so they can reach the variable store, the RPC hook and output.
type BuiltinFunction func(s *Session, args []Object) Object

// Builtin represents built-in function objects
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return "<builtin function " + b.Name + ">" }

// ReturnValue wraps the payload of a return statement while it propagates
// up to the nearest function-call boundary.
type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Type() ObjectType { return RETURN_OBJ }
func (rv *ReturnValue) Inspect() string  { return rv.Value.Inspect() }

// BreakSignal propagates up to the nearest enclosing loop.
type BreakSignal struct{}

func (bs *BreakSignal) Type() ObjectType { return BREAK_OBJ }
func (bs *BreakSignal) Inspect() string  { return "break" }

// Error wraps a structured error as a value flowing through evaluation.
type Error struct {
	Err *berrors.BrineError
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string  { return e.Err.String() }

// NamespaceRef is what a symbol naming a child namespace evaluates to.
type NamespaceRef struct {
	NS Namespace
}

func (nr *NamespaceRef) Type() ObjectType { return NAMESPACE_OBJ }
func (nr *NamespaceRef) Inspect() string  { return "<namespace " + nr.NS.Name() + ">" }

// CommandRef is what a symbol naming a command evaluates to.
type CommandRef struct {
	Name string
	Cmd  Command
}

func (cr *CommandRef) Type() ObjectType { return COMMAND_OBJ }
func (cr *CommandRef) Inspect() string  { return "<command " + cr.Name + ">" }

// Shared singletons so boolean and null results don't allocate.
var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func nativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

func isError(obj Object) bool {
	if obj != nil {
		return obj.Type() == ERROR_OBJ
	}
	return false
}

func isSignal(obj Object) bool {
	if obj == nil {
		return false
	}
	t := obj.Type()
	return t == RETURN_OBJ || t == BREAK_OBJ || t == ERROR_OBJ
}

// newError builds an Error object from a catalog code, positioned at a node.
func newError(code string, node ast.Node, data map[string]any) *Error {
	err := berrors.New(code, data)
	if node != nil {
		tok := node.Tok()
		err = err.WithPosition(tok.File, tok.Line, tok.Column)
	}
	return &Error{Err: err}
}

// isTruthy follows shell conventions: none, false, 0, "" and empty
// collections are falsy, everything else is truthy.
func isTruthy(obj Object) bool {
	switch o := obj.(type) {
	case *Null:
		return false
	case *Boolean:
		return o.Value
	case *Integer:
		return o.Value != 0
	case *String:
		return o.Value != ""
	case *Array:
		return len(o.Elements) > 0
	case *Dict:
		return len(o.Keys) > 0
	default:
		return true
	}
}
