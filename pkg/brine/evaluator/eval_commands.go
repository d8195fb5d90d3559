package evaluator

import (
	"sort"

	"github.com/sambeau/brine/pkg/brine/ast"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
)

// resolvedCommand is the outcome of a dry-run resolution: where the command
// lives, what it is, and its still-unclassified argument items. Resolving
// never invokes anything, so pipe setup can inspect capabilities first.
type resolvedCommand struct {
	path    []Namespace // absolute target path, root excluded
	name    string
	cmd     Command
	argASTs []ast.Expression
	listing bool
}

// resolveCommand walks the command items left to right, accumulating a
// namespace path until a command name (or a '?' listing) is found. The
// remaining items are the command's arguments.
func resolveCommand(cc *ast.CommandCall, env *Environment, s *Session) (*resolvedCommand, *Error) {
	res := &resolvedCommand{path: s.Path()}

	for i, item := range cc.Items {
		if res.cmd != nil || res.listing {
			res.argASTs = append(res.argASTs, cc.Items[i:]...)
			break
		}

		switch it := item.(type) {
		case *ast.PathMarker:
			switch it.Kind {
			case ast.PathUp:
				if len(res.path) > 0 {
					res.path = res.path[:len(res.path)-1]
				}
			case ast.PathRoot:
				res.path = nil
			case ast.PathList:
				res.listing = true
			}
		case *ast.Symbol:
			// Variables shadow tree names in command position: a string
			// value re-resolves as a name, a ref is used directly.
			if val, ok := env.Get(it.Name); ok {
				switch v := val.(type) {
				case *NamespaceRef:
					res.path = append(res.path, v.NS)
					continue
				case *CommandRef:
					res.name = v.Name
					res.cmd = v.Cmd
					continue
				case *String:
					if err := res.resolveName(v.Value, item, s); err != nil {
						return nil, err
					}
					continue
				}
			}
			if err := res.resolveName(it.Name, item, s); err != nil {
				return nil, err
			}
		case *ast.StringLiteral:
			if err := res.resolveName(it.Value, item, s); err != nil {
				return nil, err
			}
		case *ast.ExpressionExpansion:
			value := Eval(it, env, s)
			if errObj, ok := value.(*Error); ok {
				return nil, errObj
			}
			name, ok := value.(*String)
			if !ok {
				return nil, newError("CMD-0003", item, map[string]any{
					"Detail": "expansion in command position must produce a name",
				})
			}
			if err := res.resolveName(name.Value, item, s); err != nil {
				return nil, err
			}
		default:
			return nil, newError("CMD-0003", item, map[string]any{
				"Detail": "expected a command or namespace name",
			})
		}
	}

	return res, nil
}

// resolveName classifies one word: a child namespace descends, a command
// name (namespace-local, then builtin) ends the path walk.
func (r *resolvedCommand) resolveName(name string, node ast.Node, s *Session) *Error {
	cur := s.Root
	if len(r.path) > 0 {
		cur = r.path[len(r.path)-1]
	}
	if child, ok := FindNamespace(s, cur, name); ok {
		r.path = append(r.path, child)
		return nil
	}
	if cmd, ok := FindCommand(s, cur, name); ok {
		r.name = name
		r.cmd = cmd
		return nil
	}
	if cmd, ok := s.BuiltinCommands[name]; ok {
		r.name = name
		r.cmd = cmd
		return nil
	}
	return newError("NAME-0001", node, map[string]any{"Name": name})
}

// sortArgs classifies argument items: positional values, keyword arguments
// ("name=value", duplicates keep the last) and operator arguments (any
// other parameter operator), in written order.
func sortArgs(items []ast.Expression, env *Environment, s *Session) ([]Object, map[string]Object, []Oparg, *Error) {
	var args []Object
	kwargs := make(map[string]Object)
	var opargs []Oparg

	for _, item := range items {
		if param, ok := item.(*ast.BinaryParameter); ok {
			value := evalCommandArg(param.Value, env, s)
			if errObj, ok := value.(*Error); ok {
				return nil, nil, nil, errObj
			}
			if param.Op == "=" {
				kwargs[param.Name] = value
			} else {
				opargs = append(opargs, Oparg{Name: param.Name, Op: param.Op, Value: value})
			}
			continue
		}
		value := evalCommandArg(item, env, s)
		if errObj, ok := value.(*Error); ok {
			return nil, nil, nil, errObj
		}
		args = append(args, value)
	}
	return args, kwargs, opargs, nil
}

// evalCommandArg evaluates an argument item. A bare word that is not a
// variable is its own name, shell style.
func evalCommandArg(item ast.Expression, env *Environment, s *Session) Object {
	if sym, ok := item.(*ast.Symbol); ok {
		if val, ok := env.Get(sym.Name); ok {
			return val
		}
		return &String{Value: sym.Name}
	}
	return Eval(item, env, s)
}

// evalCommandCall resolves and invokes one command. Namespaces named on the
// way stay entered afterwards, so "a b c" leaves the working path at a/b
// even when c is a command. A call that names only namespaces is a cd.
func evalCommandCall(cc *ast.CommandCall, env *Environment, s *Session) Object {
	res, errObj := resolveCommand(cc, env, s)
	if errObj != nil {
		return errObj
	}

	if res.listing {
		s.RememberPath()
		s.Navigate(res.path)
		return namespaceListing(s, s.CWD())
	}

	if res.cmd == nil {
		// Pure navigation.
		s.RememberPath()
		s.Navigate(res.path)
		return NULL
	}

	args, kwargs, opargs, errObj := sortArgs(res.argASTs, env, s)
	if errObj != nil {
		return errObj
	}

	s.RememberPath()
	s.Navigate(res.path)

	result, err := res.cmd.Run(s, args, kwargs, opargs)
	if err != nil {
		return commandError(cc, err)
	}
	if result == nil {
		return NULL
	}
	return result
}

// namespaceListing renders '?': child namespaces first, then the commands
// available here, each sorted.
func namespaceListing(s *Session, ns Namespace) Object {
	var names []string
	for _, child := range ns.Namespaces(s) {
		names = append(names, child.Name()+"/")
	}
	sort.Strings(names)

	var cmds []string
	for name := range ns.Commands(s) {
		cmds = append(cmds, name)
	}
	for name := range s.BuiltinCommands {
		cmds = append(cmds, name)
	}
	sort.Strings(cmds)

	elements := make([]Object, 0, len(names)+len(cmds))
	for _, n := range append(names, cmds...) {
		elements = append(elements, &String{Value: n})
	}
	return &Array{Elements: elements}
}

// pipeStage is one resolved "| name args..." stage.
type pipeStage struct {
	name   string
	cmd    PipeCommand
	args   []Object
	kwargs map[string]Object
	opargs []Oparg
	node   ast.Node
}

// evalPipe executes a pipeline. The head command is resolved without being
// invoked; if it can filter at the source, each stage is asked to serialize
// its effect into the pushed-down query. Stages that cannot (and everything
// after them, since order matters) run on the produced value instead.
func evalPipe(pe *ast.PipeExpr, env *Environment, s *Session) Object {
	head, rest := flattenPipe(pe)

	res, errObj := resolveCommand(head, env, s)
	if errObj != nil {
		return errObj
	}
	if res.cmd == nil || res.listing {
		return newError("CMD-0001", head, nil)
	}

	stages, errObj := resolvePipeStages(rest, env, s)
	if errObj != nil {
		return errObj
	}
	for i, st := range stages {
		if st.cmd.MustBeLast() && i != len(stages)-1 {
			return newError("CMD-0002", st.node, map[string]any{"Name": st.name})
		}
	}

	args, kwargs, opargs, errObj := sortArgs(res.argASTs, env, s)
	if errObj != nil {
		return errObj
	}

	s.RememberPath()
	s.Navigate(res.path)

	var result Object
	post := stages

	if fc, ok := res.cmd.(FilteringCommand); ok {
		filtering := NewFiltering()
		serialized := 0
		for _, st := range stages {
			delta, err := st.cmd.SerializeFilter(s, st.args, st.kwargs, st.opargs)
			if err == ErrFilterNotSupported {
				break
			}
			if err != nil {
				return commandError(st.node, err)
			}
			filtering.Predicates = append(filtering.Predicates, delta.Predicates...)
			for k, v := range delta.Params {
				filtering.Params[k] = v
			}
			serialized++
		}
		post = stages[serialized:]

		r, err := fc.RunFiltering(s, args, kwargs, opargs, filtering)
		if err != nil {
			return commandError(head, err)
		}
		result = r
	} else {
		r, err := res.cmd.Run(s, args, kwargs, opargs)
		if err != nil {
			return commandError(head, err)
		}
		result = r
	}

	if result == nil {
		result = NULL
	}
	for _, st := range post {
		r, err := st.cmd.RunPipe(s, result, st.args, st.kwargs, st.opargs)
		if err != nil {
			return commandError(st.node, err)
		}
		if r == nil {
			r = NULL
		}
		result = r
	}
	return result
}

// flattenPipe unravels the right-nested pipe into head command + stages.
func flattenPipe(pe *ast.PipeExpr) (*ast.CommandCall, []*ast.CommandCall) {
	head := pe.Left
	var rest []*ast.CommandCall
	right := pe.Right
	for {
		switch r := right.(type) {
		case *ast.PipeExpr:
			rest = append(rest, r.Left)
			right = r.Right
		case *ast.CommandCall:
			rest = append(rest, r)
			return head, rest
		default:
			return head, rest
		}
	}
}

// resolvePipeStages looks each stage's head word up in the pipe-command
// registry and classifies its arguments.
func resolvePipeStages(calls []*ast.CommandCall, env *Environment, s *Session) ([]pipeStage, *Error) {
	stages := make([]pipeStage, 0, len(calls))
	for _, call := range calls {
		if len(call.Items) == 0 {
			return nil, newError("CMD-0001", call, nil)
		}
		sym, ok := call.Items[0].(*ast.Symbol)
		if !ok {
			return nil, newError("CMD-0003", call, map[string]any{
				"Detail": "pipe stage must start with a command name",
			})
		}
		pc, ok := s.PipeCommands[sym.Name]
		if !ok {
			return nil, newError("NAME-0004", call, map[string]any{"Name": sym.Name})
		}
		args, kwargs, opargs, errObj := sortArgs(call.Items[1:], env, s)
		if errObj != nil {
			return nil, errObj
		}
		stages = append(stages, pipeStage{
			name:   sym.Name,
			cmd:    pc,
			args:   args,
			kwargs: kwargs,
			opargs: opargs,
			node:   call,
		})
	}
	return stages, nil
}

// commandError turns a command's error into an error object, keeping
// structured errors intact.
func commandError(node ast.Node, err error) *Error {
	if berr, ok := err.(*berrors.BrineError); ok {
		if berr.Line == 0 && node != nil {
			tok := node.Tok()
			berr = berr.WithPosition(tok.File, tok.Line, tok.Column)
		}
		return &Error{Err: berr}
	}
	berr := berrors.NewCommand(err.Error(), "", nil)
	if node != nil {
		tok := node.Tok()
		berr = berr.WithPosition(tok.File, tok.Line, tok.Column)
	}
	return &Error{Err: berr}
}
