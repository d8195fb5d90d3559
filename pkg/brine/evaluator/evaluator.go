// Package evaluator walks the AST and executes it against a session: an
// environment chain for variables and functions, and a namespace tree for
// commands.
package evaluator

import (
	"fmt"
	"os"

	"github.com/sambeau/brine/pkg/brine/ast"
)

// Eval dispatches on the node kind. Every AST node has a case; a node
// falling through to the default is a bug, reported rather than ignored.
func Eval(node ast.Node, env *Environment, s *Session) Object {
	switch node := node.(type) {

	// Statements
	case *ast.ExpressionStatement:
		return Eval(node.Expression, env, s)
	case *ast.AssignmentStatement:
		return evalAssignment(node, env, s)
	case *ast.IfStatement:
		return evalIf(node, env, s)
	case *ast.WhileStatement:
		return evalWhile(node, env, s)
	case *ast.ForStatement:
		return evalFor(node, env, s)
	case *ast.ReturnStatement:
		return evalReturn(node, env, s)
	case *ast.BreakStatement:
		return &BreakSignal{}
	case *ast.UndefStatement:
		if !env.Delete(node.Name) {
			return newError("NAME-0003", node, map[string]any{"Name": node.Name})
		}
		return NULL
	case *ast.Redirect:
		return evalRedirect(node, env, s)

	// Literals
	case *ast.IntegerLiteral:
		return &Integer{Value: node.Value}
	case *ast.StringLiteral:
		return &String{Value: node.Value}
	case *ast.BooleanLiteral:
		return nativeBoolToBooleanObject(node.Value)
	case *ast.NoneLiteral:
		return NULL
	case *ast.ListLiteral:
		elements := evalExpressions(node.Elements, env, s)
		if len(elements) == 1 && isError(elements[0]) {
			return elements[0]
		}
		return &Array{Elements: elements}
	case *ast.DictLiteral:
		return evalDictLiteral(node, env, s)

	// Expressions
	case *ast.Symbol:
		return evalSymbol(node, env, s)
	case *ast.PrefixExpr:
		right := Eval(node.Right, env, s)
		if isSignal(right) {
			return right
		}
		return evalPrefix(node.Op, right, node)
	case *ast.BinaryExpr:
		left := Eval(node.Left, env, s)
		if isSignal(left) {
			return left
		}
		right := Eval(node.Right, env, s)
		if isSignal(right) {
			return right
		}
		return applyOperator(node.Op, left, right, node)
	case *ast.Subscript:
		return evalSubscript(node, env, s)
	case *ast.FunctionCall:
		return evalFunctionCall(node, env, s)
	case *ast.FunctionDefinition:
		fn := &Function{Name: node.Name, Params: node.Params, Body: node.Body, Env: env}
		if node.Name != "" {
			env.Define(node.Name, fn)
		}
		return fn
	case *ast.ExpressionExpansion:
		return Eval(node.Expr, env, s)

	// Command syntax
	case *ast.CommandCall:
		return evalCommandCall(node, env, s)
	case *ast.PipeExpr:
		return evalPipe(node, env, s)
	case *ast.BinaryParameter:
		return newError("CMD-0003", node, map[string]any{
			"Detail": fmt.Sprintf("parameter %s outside a command", node.Name),
		})
	case *ast.PathMarker:
		return newError("CMD-0003", node, map[string]any{
			"Detail": fmt.Sprintf("path marker %s outside a command", node.String()),
		})

	default:
		return newError("CMD-0003", node, map[string]any{
			"Detail": fmt.Sprintf("unhandled node %T", node),
		})
	}
}

// evalBlock runs statements in order, stopping at the first signal value
// (return, break or error) and handing it up.
func evalBlock(stmts []ast.Statement, env *Environment, s *Session) Object {
	var result Object = NULL
	for _, stmt := range stmts {
		result = Eval(stmt, env, s)
		if isSignal(result) {
			return result
		}
	}
	return result
}

func evalExpressions(exprs []ast.Expression, env *Environment, s *Session) []Object {
	var result []Object
	for _, e := range exprs {
		evaluated := Eval(e, env, s)
		if isSignal(evaluated) {
			return []Object{evaluated}
		}
		result = append(result, evaluated)
	}
	return result
}

func evalDictLiteral(node *ast.DictLiteral, env *Environment, s *Session) Object {
	dict := NewDict()
	for _, pair := range node.Pairs {
		var key string
		switch k := pair.Key.(type) {
		case *ast.StringLiteral:
			key = k.Value
		case *ast.IntegerLiteral:
			key = k.String()
		default:
			keyObj := Eval(pair.Key, env, s)
			if isSignal(keyObj) {
				return keyObj
			}
			key = keyObj.Inspect()
		}
		value := Eval(pair.Value, env, s)
		if isSignal(value) {
			return value
		}
		dict.Set(key, value)
	}
	return dict
}

// evalSymbol resolves a name: the environment chain first, then the builtin
// function table, then the current namespace scope.
func evalSymbol(node *ast.Symbol, env *Environment, s *Session) Object {
	if val, ok := env.Get(node.Name); ok {
		return val
	}
	if builtin, ok := builtins[node.Name]; ok {
		return builtin
	}
	if s != nil {
		cwd := s.CWD()
		if child, ok := FindNamespace(s, cwd, node.Name); ok {
			return &NamespaceRef{NS: child}
		}
		if cmd, ok := FindCommand(s, cwd, node.Name); ok {
			return &CommandRef{Name: node.Name, Cmd: cmd}
		}
		if cmd, ok := s.BuiltinCommands[node.Name]; ok {
			return &CommandRef{Name: node.Name, Cmd: cmd}
		}
	}
	return newError("NAME-0003", node, map[string]any{"Name": node.Name})
}

func evalPrefix(op string, right Object, node ast.Node) Object {
	switch op {
	case "not":
		return nativeBoolToBooleanObject(!isTruthy(right))
	case "-":
		switch r := right.(type) {
		case *Integer:
			return &Integer{Value: -r.Value}
		case *Boolean:
			return &Integer{Value: -boolToInt(r.Value)}
		default:
			return newError("TYPE-0009", node, map[string]any{
				"Op":   op,
				"Type": string(right.Type()),
			})
		}
	default:
		return newError("TYPE-0009", node, map[string]any{
			"Op":   op,
			"Type": string(right.Type()),
		})
	}
}

func evalSubscript(node *ast.Subscript, env *Environment, s *Session) Object {
	container := Eval(node.Expr, env, s)
	if isSignal(container) {
		return container
	}
	index := Eval(node.Index, env, s)
	if isSignal(index) {
		return index
	}

	switch c := container.(type) {
	case *Array:
		idx, ok := index.(*Integer)
		if !ok {
			return newError("TYPE-0003", node, map[string]any{
				"Type": ARRAY_OBJ, "Want": "an integer", "Got": string(index.Type()),
			})
		}
		i := idx.Value
		if i < 0 {
			i += int64(len(c.Elements))
		}
		if i < 0 || i >= int64(len(c.Elements)) {
			return newError("TYPE-0004", node, map[string]any{"Index": idx.Value})
		}
		return c.Elements[i]
	case *Dict:
		key, ok := index.(*String)
		if !ok {
			return newError("TYPE-0003", node, map[string]any{
				"Type": DICT_OBJ, "Want": "a string", "Got": string(index.Type()),
			})
		}
		val, ok := c.Get(key.Value)
		if !ok {
			return newError("TYPE-0004", node, map[string]any{"Index": key.Value})
		}
		return val
	case *String:
		idx, ok := index.(*Integer)
		if !ok {
			return newError("TYPE-0003", node, map[string]any{
				"Type": STRING_OBJ, "Want": "an integer", "Got": string(index.Type()),
			})
		}
		i := idx.Value
		if i < 0 {
			i += int64(len(c.Value))
		}
		if i < 0 || i >= int64(len(c.Value)) {
			return newError("TYPE-0004", node, map[string]any{"Index": idx.Value})
		}
		return &String{Value: string(c.Value[i])}
	default:
		return newError("TYPE-0002", node, map[string]any{"Type": string(container.Type())})
	}
}

func evalAssignment(node *ast.AssignmentStatement, env *Environment, s *Session) Object {
	value := Eval(node.Value, env, s)
	if isSignal(value) {
		return value
	}

	switch target := node.Target.(type) {
	case *ast.Symbol:
		env.Assign(target.Name, value)
		return NULL
	case *ast.Subscript:
		container := Eval(target.Expr, env, s)
		if isSignal(container) {
			return container
		}
		index := Eval(target.Index, env, s)
		if isSignal(index) {
			return index
		}
		return assignSubscript(container, index, value, node)
	default:
		return newError("CMD-0003", node, map[string]any{"Detail": "bad assignment target"})
	}
}

func assignSubscript(container, index, value Object, node ast.Node) Object {
	switch c := container.(type) {
	case *Array:
		idx, ok := index.(*Integer)
		if !ok {
			return newError("TYPE-0003", node, map[string]any{
				"Type": ARRAY_OBJ, "Want": "an integer", "Got": string(index.Type()),
			})
		}
		i := idx.Value
		if i < 0 {
			i += int64(len(c.Elements))
		}
		if i < 0 || i >= int64(len(c.Elements)) {
			return newError("TYPE-0004", node, map[string]any{"Index": idx.Value})
		}
		c.Elements[i] = value
		return NULL
	case *Dict:
		key, ok := index.(*String)
		if !ok {
			return newError("TYPE-0003", node, map[string]any{
				"Type": DICT_OBJ, "Want": "a string", "Got": string(index.Type()),
			})
		}
		c.Set(key.Value, value)
		return NULL
	default:
		return newError("TYPE-0002", node, map[string]any{"Type": string(container.Type())})
	}
}

// evalIf runs the chosen branch in a fresh child environment.
func evalIf(node *ast.IfStatement, env *Environment, s *Session) Object {
	cond := Eval(node.Cond, env, s)
	if isSignal(cond) {
		return cond
	}
	if isTruthy(cond) {
		result := evalBlock(node.Body, NewEnclosedEnvironment(env), s)
		if isSignal(result) {
			return result
		}
		return NULL
	}
	if node.Else != nil {
		result := evalBlock(node.Else, NewEnclosedEnvironment(env), s)
		if isSignal(result) {
			return result
		}
	}
	return NULL
}

// evalWhile re-evaluates the condition in the enclosing environment and
// runs each iteration's body in a fresh child environment.
func evalWhile(node *ast.WhileStatement, env *Environment, s *Session) Object {
	for {
		cond := Eval(node.Cond, env, s)
		if isSignal(cond) {
			return cond
		}
		if !isTruthy(cond) {
			return NULL
		}
		result := evalBlock(node.Body, NewEnclosedEnvironment(env), s)
		switch result.(type) {
		case *BreakSignal:
			return NULL
		case *ReturnValue, *Error:
			return result
		}
	}
}

// evalFor binds the loop variables in one environment reused across
// iterations, so the final values remain visible to a later break.
func evalFor(node *ast.ForStatement, env *Environment, s *Session) Object {
	iterable := Eval(node.Iterable, env, s)
	if isSignal(iterable) {
		return iterable
	}

	loopEnv := NewEnclosedEnvironment(env)

	switch it := iterable.(type) {
	case *Array:
		if len(node.Vars) == 2 {
			return newError("TYPE-0006", node, map[string]any{"Type": string(it.Type())})
		}
		for _, elem := range it.Elements {
			loopEnv.Define(node.Vars[0], elem)
			result := evalBlock(node.Body, loopEnv, s)
			switch result.(type) {
			case *BreakSignal:
				return NULL
			case *ReturnValue, *Error:
				return result
			}
		}
		return NULL
	case *Dict:
		for _, key := range it.Keys {
			if len(node.Vars) == 2 {
				loopEnv.Define(node.Vars[0], &String{Value: key})
				loopEnv.Define(node.Vars[1], it.Pairs[key])
			} else {
				loopEnv.Define(node.Vars[0], &String{Value: key})
			}
			result := evalBlock(node.Body, loopEnv, s)
			switch result.(type) {
			case *BreakSignal:
				return NULL
			case *ReturnValue, *Error:
				return result
			}
		}
		return NULL
	case *String:
		if len(node.Vars) == 2 {
			return newError("TYPE-0006", node, map[string]any{"Type": string(it.Type())})
		}
		for i := 0; i < len(it.Value); i++ {
			loopEnv.Define(node.Vars[0], &String{Value: string(it.Value[i])})
			result := evalBlock(node.Body, loopEnv, s)
			switch result.(type) {
			case *BreakSignal:
				return NULL
			case *ReturnValue, *Error:
				return result
			}
		}
		return NULL
	default:
		return newError("TYPE-0005", node, map[string]any{"Type": string(iterable.Type())})
	}
}

func evalReturn(node *ast.ReturnStatement, env *Environment, s *Session) Object {
	if node.Value == nil {
		return &ReturnValue{Value: NULL}
	}
	value := Eval(node.Value, env, s)
	if isSignal(value) {
		return value
	}
	return &ReturnValue{Value: value}
}

// evalFunctionCall resolves a callable by name and applies it. User scopes
// are consulted before the builtin table, so a user function may shadow a
// builtin.
func evalFunctionCall(node *ast.FunctionCall, env *Environment, s *Session) Object {
	args := evalExpressions(node.Args, env, s)
	if len(args) == 1 && isError(args[0]) {
		return args[0]
	}

	if val, ok := env.Get(node.Name); ok {
		return applyCallable(node, val, args, env, s)
	}
	if builtin, ok := builtins[node.Name]; ok {
		return builtin.Fn(s, args)
	}
	return newError("NAME-0002", node, map[string]any{"Name": node.Name})
}

func applyCallable(node *ast.FunctionCall, callee Object, args []Object, env *Environment, s *Session) Object {
	switch fn := callee.(type) {
	case *Function:
		return applyFunction(node, fn, args, s)
	case *Builtin:
		return fn.Fn(s, args)
	default:
		return newError("TYPE-0008", node, map[string]any{"Type": string(callee.Type())})
	}
}

// applyFunction binds arguments positionally in a fresh environment chained
// to the closure. Unmatched parameter names stay absent: referencing one is
// a name error, not a null. A return is consumed here; a break keeps going
// up in search of a loop.
func applyFunction(node *ast.FunctionCall, fn *Function, args []Object, s *Session) Object {
	fnEnv := NewEnclosedEnvironment(fn.Env)
	for i, param := range fn.Params {
		if i >= len(args) {
			break
		}
		fnEnv.Define(param, args[i])
	}

	name := fn.Name
	if name == "" {
		name = node.Name
	}
	tok := node.Tok()
	if s != nil {
		s.PushFrame(CallStackEntry{
			Name:   name,
			File:   tok.File,
			Line:   tok.Line,
			Column: tok.Column,
			Args:   args,
		})
	}
	result := evalBlock(fn.Body, fnEnv, s)
	if s != nil {
		// An error keeps its frame so the driver can print the call trail.
		if _, failed := result.(*Error); !failed {
			s.PopFrame()
		}
	}

	if ret, ok := result.(*ReturnValue); ok {
		return ret.Value
	}
	if isSignal(result) {
		return result
	}
	return NULL
}

// evalRedirect appends the rendered result of the wrapped statement to a
// file.
func evalRedirect(node *ast.Redirect, env *Environment, s *Session) Object {
	result := Eval(node.Stmt, env, s)
	if isSignal(result) {
		return result
	}

	pathObj := Eval(node.Path, env, s)
	if isSignal(pathObj) {
		return pathObj
	}
	path, ok := pathObj.(*String)
	if !ok {
		return newError("CMD-0003", node, map[string]any{"Detail": "redirect target must be a file path"})
	}

	f, err := os.OpenFile(path.Value, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return commandError(node, err)
	}
	defer f.Close()

	text := ""
	if result != nil && result != NULL {
		text = result.Inspect()
	}
	if _, err := f.WriteString(text + "\n"); err != nil {
		return commandError(node, err)
	}
	return NULL
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
