package evaluator

import (
	"bufio"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sambeau/brine/pkg/brine/ast"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
)

// applyOperator implements the binary operator table. Booleans coerce to
// integers in arithmetic and ordering, so "3 > 5" sums as 0 when it lands
// inside an arithmetic expression; saved scripts rely on this.
func applyOperator(op string, left, right Object, node ast.Node) Object {
	switch op {
	case "+":
		return evalPlus(left, right, node)
	case "-", "*", "/":
		return evalArithmetic(op, left, right, node)
	case "and", "or":
		return evalLogic(op, left, right)
	case ">", "<", ">=", "<=":
		return evalOrdering(op, left, right, node)
	case "==":
		return nativeBoolToBooleanObject(objectEquals(left, right))
	case "!=":
		return nativeBoolToBooleanObject(!objectEquals(left, right))
	case "~=":
		return evalMatch(left, right, node)
	default:
		// "=+" and "=-" only mean something as operator arguments.
		return operandsError(op, left, right, node)
	}
}

func operandsError(op string, left, right Object, node ast.Node) Object {
	return newError("TYPE-0001", node, map[string]any{
		"Op":    op,
		"Left":  string(left.Type()),
		"Right": string(right.Type()),
	})
}

// asInteger coerces booleans to integers for arithmetic.
func asInteger(obj Object) (int64, bool) {
	switch o := obj.(type) {
	case *Integer:
		return o.Value, true
	case *Boolean:
		return boolToInt(o.Value), true
	}
	return 0, false
}

func evalPlus(left, right Object, node ast.Node) Object {
	if l, ok := asInteger(left); ok {
		if r, ok := asInteger(right); ok {
			return &Integer{Value: l + r}
		}
	}
	if l, ok := left.(*String); ok {
		if r, ok := right.(*String); ok {
			return &String{Value: l.Value + r.Value}
		}
	}
	if l, ok := left.(*Array); ok {
		if r, ok := right.(*Array); ok {
			elements := make([]Object, 0, len(l.Elements)+len(r.Elements))
			elements = append(elements, l.Elements...)
			elements = append(elements, r.Elements...)
			return &Array{Elements: elements}
		}
	}
	return operandsError("+", left, right, node)
}

func evalArithmetic(op string, left, right Object, node ast.Node) Object {
	l, lok := asInteger(left)
	r, rok := asInteger(right)
	if !lok || !rok {
		return operandsError(op, left, right, node)
	}
	switch op {
	case "-":
		return &Integer{Value: l - r}
	case "*":
		return &Integer{Value: l * r}
	default:
		if r == 0 {
			return newError("TYPE-0007", node, nil)
		}
		return &Integer{Value: l / r}
	}
}

// evalLogic is bitwise on integers and logical on booleans. A mixed
// integer/boolean pair goes the integer way; anything else falls back to
// truthiness.
func evalLogic(op string, left, right Object) Object {
	if l, lok := left.(*Boolean); lok {
		if r, rok := right.(*Boolean); rok {
			if op == "and" {
				return nativeBoolToBooleanObject(l.Value && r.Value)
			}
			return nativeBoolToBooleanObject(l.Value || r.Value)
		}
	}
	if l, lok := asInteger(left); lok {
		if r, rok := asInteger(right); rok {
			if op == "and" {
				return &Integer{Value: l & r}
			}
			return &Integer{Value: l | r}
		}
	}
	if op == "and" {
		return nativeBoolToBooleanObject(isTruthy(left) && isTruthy(right))
	}
	return nativeBoolToBooleanObject(isTruthy(left) || isTruthy(right))
}

func evalOrdering(op string, left, right Object, node ast.Node) Object {
	if l, ok := asInteger(left); ok {
		if r, ok := asInteger(right); ok {
			switch op {
			case ">":
				return nativeBoolToBooleanObject(l > r)
			case "<":
				return nativeBoolToBooleanObject(l < r)
			case ">=":
				return nativeBoolToBooleanObject(l >= r)
			default:
				return nativeBoolToBooleanObject(l <= r)
			}
		}
	}
	if l, ok := left.(*String); ok {
		if r, ok := right.(*String); ok {
			switch op {
			case ">":
				return nativeBoolToBooleanObject(l.Value > r.Value)
			case "<":
				return nativeBoolToBooleanObject(l.Value < r.Value)
			case ">=":
				return nativeBoolToBooleanObject(l.Value >= r.Value)
			default:
				return nativeBoolToBooleanObject(l.Value <= r.Value)
			}
		}
	}
	return operandsError(op, left, right, node)
}

func evalMatch(left, right Object, node ast.Node) Object {
	l, lok := left.(*String)
	r, rok := right.(*String)
	if !lok || !rok {
		return operandsError("~=", left, right, node)
	}
	re, err := regexp.Compile(r.Value)
	if err != nil {
		return newError("TYPE-0010", node, map[string]any{"Detail": err.Error()})
	}
	return nativeBoolToBooleanObject(re.MatchString(l.Value))
}

// objectEquals is deep equality. Integers and booleans compare across
// types, so true == 1.
func objectEquals(left, right Object) bool {
	if l, ok := asInteger(left); ok {
		if r, ok := asInteger(right); ok {
			return l == r
		}
		return false
	}
	switch l := left.(type) {
	case *String:
		r, ok := right.(*String)
		return ok && l.Value == r.Value
	case *Null:
		_, ok := right.(*Null)
		return ok
	case *Array:
		r, ok := right.(*Array)
		if !ok || len(l.Elements) != len(r.Elements) {
			return false
		}
		for i := range l.Elements {
			if !objectEquals(l.Elements[i], r.Elements[i]) {
				return false
			}
		}
		return true
	case *Dict:
		r, ok := right.(*Dict)
		if !ok || len(l.Keys) != len(r.Keys) {
			return false
		}
		for _, key := range l.Keys {
			rv, ok := r.Get(key)
			if !ok || !objectEquals(l.Pairs[key], rv) {
				return false
			}
		}
		return true
	default:
		return left == right
	}
}

// ---------------------------------------------------------------------------
// Builtin functions

func arityError(fn string, want string, got int) *Error {
	return &Error{Err: berrors.New("ARITY-0001", map[string]any{
		"Func": fn, "Want": want, "Got": got,
	})}
}

func typeErrorf(formatStr string, args ...any) *Error {
	return &Error{Err: berrors.NewCommand(fmt.Sprintf(formatStr, args...), "", nil)}
}

// builtins is the process-wide builtin function table, consulted only after
// the full user-scope chain misses.
var builtins map[string]*Builtin

// BuiltinNames lists the builtin function names, for completion.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

func init() {
	builtins = map[string]*Builtin{
		"print":     {Name: "print", Fn: builtinPrint},
		"printf":    {Name: "printf", Fn: builtinPrintf},
		"sprintf":   {Name: "sprintf", Fn: builtinSprintf},
		"length":    {Name: "length", Fn: builtinLength},
		"range":     {Name: "range", Fn: builtinRange},
		"str":       {Name: "str", Fn: builtinStr},
		"int":       {Name: "int", Fn: builtinInt},
		"typeof":    {Name: "typeof", Fn: builtinTypeof},
		"append":    {Name: "append", Fn: builtinAppend},
		"remove":    {Name: "remove", Fn: builtinRemove},
		"resize":    {Name: "resize", Fn: builtinResize},
		"join":      {Name: "join", Fn: builtinJoin},
		"split":     {Name: "split", Fn: builtinSplit},
		"rand":      {Name: "rand", Fn: builtinRand},
		"timestamp": {Name: "timestamp", Fn: builtinTimestamp},
		"parsedate": {Name: "parsedate", Fn: builtinParsedate},
		"readline":  {Name: "readline", Fn: builtinReadline},
		"unparse":   {Name: "unparse", Fn: builtinUnparse},
		"rpc":       {Name: "rpc", Fn: builtinRPC},
		"cwd":       {Name: "cwd", Fn: builtinCwd},
		"getenv":    {Name: "getenv", Fn: builtinGetenv},
	}
}

func builtinPrint(s *Session, args []Object) Object {
	parts := make([]any, len(args))
	for i, a := range args {
		parts[i] = a
	}
	s.Output(parts...)
	return NULL
}

func builtinPrintf(s *Session, args []Object) Object {
	out := builtinSprintf(s, args)
	if isError(out) {
		return out
	}
	s.LockOutput()
	s.Logger.Log(out.(*String).Value)
	s.UnlockOutput()
	return NULL
}

func builtinSprintf(s *Session, args []Object) Object {
	if len(args) < 1 {
		return arityError("sprintf", "at least 1", len(args))
	}
	formatStr, ok := args[0].(*String)
	if !ok {
		return typeErrorf("sprintf format must be a string")
	}
	values := make([]any, len(args)-1)
	for i, a := range args[1:] {
		values[i] = toGoValue(a)
	}
	return &String{Value: fmt.Sprintf(formatStr.Value, values...)}
}

func builtinLength(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("length", "1", len(args))
	}
	switch a := args[0].(type) {
	case *String:
		return &Integer{Value: int64(len(a.Value))}
	case *Array:
		return &Integer{Value: int64(len(a.Elements))}
	case *Dict:
		return &Integer{Value: int64(len(a.Keys))}
	default:
		return typeErrorf("length takes a string, list or dict, got %s", a.Type())
	}
}

func builtinRange(s *Session, args []Object) Object {
	var start, stop, step int64
	step = 1
	switch len(args) {
	case 1:
		n, ok := args[0].(*Integer)
		if !ok {
			return typeErrorf("range takes integers")
		}
		stop = n.Value
	case 2, 3:
		a, aok := args[0].(*Integer)
		b, bok := args[1].(*Integer)
		if !aok || !bok {
			return typeErrorf("range takes integers")
		}
		start, stop = a.Value, b.Value
		if len(args) == 3 {
			c, ok := args[2].(*Integer)
			if !ok || c.Value == 0 {
				return typeErrorf("range step must be a non-zero integer")
			}
			step = c.Value
		}
	default:
		return arityError("range", "1 to 3", len(args))
	}

	var elements []Object
	if step > 0 {
		for i := start; i < stop; i += step {
			elements = append(elements, &Integer{Value: i})
		}
	} else {
		for i := start; i > stop; i += step {
			elements = append(elements, &Integer{Value: i})
		}
	}
	return &Array{Elements: elements}
}

func builtinStr(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("str", "1", len(args))
	}
	return &String{Value: args[0].Inspect()}
}

func builtinInt(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("int", "1", len(args))
	}
	switch a := args[0].(type) {
	case *Integer:
		return a
	case *Boolean:
		return &Integer{Value: boolToInt(a.Value)}
	case *String:
		n, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
		if err != nil {
			return typeErrorf("cannot convert %q to an integer", a.Value)
		}
		return &Integer{Value: n}
	default:
		return typeErrorf("cannot convert %s to an integer", a.Type())
	}
}

func builtinTypeof(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("typeof", "1", len(args))
	}
	return &String{Value: strings.ToLower(string(args[0].Type()))}
}

func builtinAppend(s *Session, args []Object) Object {
	if len(args) < 2 {
		return arityError("append", "at least 2", len(args))
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return typeErrorf("append takes a list, got %s", args[0].Type())
	}
	elements := make([]Object, 0, len(arr.Elements)+len(args)-1)
	elements = append(elements, arr.Elements...)
	elements = append(elements, args[1:]...)
	return &Array{Elements: elements}
}

func builtinRemove(s *Session, args []Object) Object {
	if len(args) != 2 {
		return arityError("remove", "2", len(args))
	}
	switch c := args[0].(type) {
	case *Array:
		idx, ok := args[1].(*Integer)
		if !ok {
			return typeErrorf("remove index must be an integer")
		}
		i := idx.Value
		if i < 0 {
			i += int64(len(c.Elements))
		}
		if i < 0 || i >= int64(len(c.Elements)) {
			return typeErrorf("remove index %d out of range", idx.Value)
		}
		elements := make([]Object, 0, len(c.Elements)-1)
		elements = append(elements, c.Elements[:i]...)
		elements = append(elements, c.Elements[i+1:]...)
		return &Array{Elements: elements}
	case *Dict:
		key, ok := args[1].(*String)
		if !ok {
			return typeErrorf("remove key must be a string")
		}
		out := NewDict()
		for _, k := range c.Keys {
			if k != key.Value {
				out.Set(k, c.Pairs[k])
			}
		}
		return out
	default:
		return typeErrorf("remove takes a list or dict, got %s", c.Type())
	}
}

func builtinResize(s *Session, args []Object) Object {
	if len(args) != 2 && len(args) != 3 {
		return arityError("resize", "2 or 3", len(args))
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return typeErrorf("resize takes a list, got %s", args[0].Type())
	}
	size, ok := args[1].(*Integer)
	if !ok || size.Value < 0 {
		return typeErrorf("resize size must be a non-negative integer")
	}
	var fill Object = NULL
	if len(args) == 3 {
		fill = args[2]
	}
	n := int(size.Value)
	elements := make([]Object, n)
	for i := 0; i < n; i++ {
		if i < len(arr.Elements) {
			elements[i] = arr.Elements[i]
		} else {
			elements[i] = fill
		}
	}
	return &Array{Elements: elements}
}

func builtinJoin(s *Session, args []Object) Object {
	if len(args) != 1 && len(args) != 2 {
		return arityError("join", "1 or 2", len(args))
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return typeErrorf("join takes a list, got %s", args[0].Type())
	}
	sep := " "
	if len(args) == 2 {
		sepObj, ok := args[1].(*String)
		if !ok {
			return typeErrorf("join separator must be a string")
		}
		sep = sepObj.Value
	}
	parts := make([]string, len(arr.Elements))
	for i, e := range arr.Elements {
		parts[i] = e.Inspect()
	}
	return &String{Value: strings.Join(parts, sep)}
}

func builtinSplit(s *Session, args []Object) Object {
	if len(args) != 1 && len(args) != 2 {
		return arityError("split", "1 or 2", len(args))
	}
	str, ok := args[0].(*String)
	if !ok {
		return typeErrorf("split takes a string, got %s", args[0].Type())
	}
	var parts []string
	if len(args) == 2 {
		sepObj, ok := args[1].(*String)
		if !ok {
			return typeErrorf("split separator must be a string")
		}
		parts = strings.Split(str.Value, sepObj.Value)
	} else {
		parts = strings.Fields(str.Value)
	}
	elements := make([]Object, len(parts))
	for i, p := range parts {
		elements[i] = &String{Value: p}
	}
	return &Array{Elements: elements}
}

func builtinRand(s *Session, args []Object) Object {
	if len(args) != 2 {
		return arityError("rand", "2", len(args))
	}
	a, aok := args[0].(*Integer)
	b, bok := args[1].(*Integer)
	if !aok || !bok || b.Value <= a.Value {
		return typeErrorf("rand takes two integers, low < high")
	}
	return &Integer{Value: a.Value + rand.Int63n(b.Value-a.Value)}
}

func builtinTimestamp(s *Session, args []Object) Object {
	if len(args) != 0 {
		return arityError("timestamp", "0", len(args))
	}
	return &Integer{Value: time.Now().Unix()}
}

// builtinParsedate turns a freeform date string into a unix timestamp.
func builtinParsedate(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("parsedate", "1", len(args))
	}
	str, ok := args[0].(*String)
	if !ok {
		return typeErrorf("parsedate takes a string, got %s", args[0].Type())
	}
	t, err := dateparse.ParseAny(str.Value)
	if err != nil {
		return typeErrorf("cannot parse date %q", str.Value)
	}
	return &Integer{Value: t.Unix()}
}

func builtinReadline(s *Session, args []Object) Object {
	if len(args) > 1 {
		return arityError("readline", "0 or 1", len(args))
	}
	if len(args) == 1 {
		prompt, ok := args[0].(*String)
		if !ok {
			return typeErrorf("readline prompt must be a string")
		}
		s.LockOutput()
		s.Logger.Log(prompt.Value)
		s.UnlockOutput()
	}
	reader := bufio.NewReader(s.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return NULL
	}
	return &String{Value: strings.TrimRight(line, "\r\n")}
}

// builtinUnparse renders a value as the source text that would produce it.
func builtinUnparse(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("unparse", "1", len(args))
	}
	return &String{Value: valueSource(args[0])}
}

func valueSource(obj Object) string {
	switch o := obj.(type) {
	case *String:
		return strconv.Quote(o.Value)
	case *Array:
		parts := make([]string, len(o.Elements))
		for i, e := range o.Elements {
			parts[i] = valueSource(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, len(o.Keys))
		for i, k := range o.Keys {
			parts[i] = k + ": " + valueSource(o.Pairs[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Null:
		return "none"
	default:
		return obj.Inspect()
	}
}

// builtinRPC forwards to the session's middleware hook.
func builtinRPC(s *Session, args []Object) Object {
	if len(args) < 1 {
		return arityError("rpc", "at least 1", len(args))
	}
	method, ok := args[0].(*String)
	if !ok {
		return typeErrorf("rpc method must be a string")
	}
	if s.RPC == nil {
		return typeErrorf("rpc is not connected")
	}
	result, err := s.RPC(method.Value, args[1:])
	if err != nil {
		return &Error{Err: berrors.NewCommand(err.Error(), "", nil)}
	}
	if result == nil {
		return NULL
	}
	return result
}

func builtinCwd(s *Session, args []Object) Object {
	if len(args) != 0 {
		return arityError("cwd", "0", len(args))
	}
	return &String{Value: s.PathString()}
}

// builtinGetenv reads a session variable.
func builtinGetenv(s *Session, args []Object) Object {
	if len(args) != 1 {
		return arityError("getenv", "1", len(args))
	}
	name, ok := args[0].(*String)
	if !ok {
		return typeErrorf("getenv takes a variable name")
	}
	value, ok := s.Vars.Get(name.Value)
	if !ok {
		return NULL
	}
	return goValueToObject(value)
}

// toGoValue unwraps an object for fmt-style formatting.
func toGoValue(obj Object) any {
	switch o := obj.(type) {
	case *Integer:
		return o.Value
	case *String:
		return o.Value
	case *Boolean:
		return o.Value
	case *Null:
		return nil
	default:
		return obj.Inspect()
	}
}

// goValueToObject lifts a config value into an object.
func goValueToObject(v any) Object {
	switch val := v.(type) {
	case nil:
		return NULL
	case string:
		return &String{Value: val}
	case int64:
		return &Integer{Value: val}
	case int:
		return &Integer{Value: int64(val)}
	case bool:
		return nativeBoolToBooleanObject(val)
	default:
		return &String{Value: fmt.Sprint(val)}
	}
}
