package evaluator

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sambeau/brine/config"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
)

// commandFunc adapts a function to the Command interface.
type commandFunc func(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error)

func (f commandFunc) Run(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	return f(s, args, kwargs, opargs)
}

// registerBuiltinCommands installs the commands available in every
// namespace.
func registerBuiltinCommands(s *Session) {
	s.BuiltinCommands["exit"] = commandFunc(cmdExit)
	s.BuiltinCommands["setenv"] = commandFunc(cmdSetenv)
	s.BuiltinCommands["printenv"] = commandFunc(cmdPrintenv)
	s.BuiltinCommands["saveenv"] = commandFunc(cmdSaveenv)
	s.BuiltinCommands["echo"] = commandFunc(cmdEcho)
	s.BuiltinCommands["source"] = commandFunc(cmdSource)
	s.BuiltinCommands["history"] = commandFunc(cmdHistory)
	s.BuiltinCommands["clear"] = commandFunc(cmdClear)
	s.BuiltinCommands["shell"] = commandFunc(cmdShell)
	s.BuiltinCommands["eval"] = commandFunc(cmdEval)
	s.BuiltinCommands["help"] = commandFunc(cmdHelp)
}

func cmdExit(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	return nil, berrors.NewExit()
}

// cmdSetenv accepts "setenv name=value" and "setenv name value".
func cmdSetenv(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	if len(kwargs) == 0 && len(args) != 2 {
		return nil, berrors.NewCommand("usage: setenv <name>=<value>", "", nil)
	}
	if len(args) == 2 {
		name, ok := args[0].(*String)
		if !ok {
			return nil, berrors.NewCommand("variable name must be a string", "", nil)
		}
		if err := s.Vars.Set(name.Value, toGoValue(args[1])); err != nil {
			return nil, berrors.NewCommand(err.Error(), "", nil)
		}
	}
	for name, value := range kwargs {
		if err := s.Vars.Set(name, toGoValue(value)); err != nil {
			return nil, berrors.NewCommand(err.Error(), "", nil)
		}
	}
	return nil, nil
}

func cmdPrintenv(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	if len(args) == 1 {
		name, ok := args[0].(*String)
		if !ok {
			return nil, berrors.NewCommand("variable name must be a string", "", nil)
		}
		value, ok := s.Vars.Get(name.Value)
		if !ok {
			return nil, berrors.NewCommand(fmt.Sprintf("no such variable: %s", name.Value), "", nil)
		}
		s.Output(fmt.Sprintf("%s=%v", name.Value, value))
		return nil, nil
	}
	for _, name := range s.Vars.Names() {
		value, _ := s.Vars.Get(name)
		s.Output(fmt.Sprintf("%s=%v", name, value))
	}
	return nil, nil
}

func cmdSaveenv(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	path := config.DefaultSavePath(os.Getenv)
	if len(args) == 1 {
		p, ok := args[0].(*String)
		if !ok {
			return nil, berrors.NewCommand("path must be a string", "", nil)
		}
		path = p.Value
	}
	if err := s.Vars.Save(path); err != nil {
		return nil, berrors.NewCommand(err.Error(), "", nil)
	}
	s.Output("saved to " + path)
	return nil, nil
}

func cmdEcho(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	s.Output(strings.Join(parts, " "))
	return nil, nil
}

// cmdSource runs each named script file in the current session.
func cmdSource(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	if len(args) == 0 {
		return nil, berrors.NewCommand("usage: source <file> ...", "", nil)
	}
	for _, arg := range args {
		path, ok := arg.(*String)
		if !ok {
			return nil, berrors.NewCommand("file path must be a string", "", nil)
		}
		data, err := os.ReadFile(path.Value)
		if err != nil {
			return nil, berrors.NewCommand(err.Error(), "", nil)
		}
		if err := s.Run(string(data), path.Value); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func cmdHistory(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	for i, line := range s.History {
		s.Output(fmt.Sprintf("%5d  %s", i+1, line))
	}
	return nil, nil
}

func cmdClear(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	s.LockOutput()
	s.Logger.Log("\033[2J\033[H")
	s.UnlockOutput()
	return nil, nil
}

// cmdShell runs its arguments through the system shell, the "!" escape.
func cmdShell(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	if len(args) == 0 {
		return nil, berrors.NewCommand("usage: shell <command>", "", nil)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	cmd := exec.Command("sh", "-c", strings.Join(parts, " "))
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		s.LockOutput()
		s.Logger.Log(string(out))
		s.UnlockOutput()
	}
	if err != nil {
		return nil, berrors.NewCommand(err.Error(), "", nil)
	}
	return nil, nil
}

// cmdEval parses and runs its string arguments as shell input.
func cmdEval(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	if len(args) == 0 {
		return nil, berrors.NewCommand("usage: eval <code>", "", nil)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	if err := s.Run(strings.Join(parts, "\n"), "<eval>"); err != nil {
		return nil, err
	}
	return nil, nil
}

// cmdHelp lists what can be typed here, like '?'.
func cmdHelp(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	return namespaceListing(s, s.CWD()), nil
}

// ---------------------------------------------------------------------------
// Pipe commands

// registerPipeCommands installs the pipeline stages.
func registerPipeCommands(s *Session) {
	s.PipeCommands["search"] = &searchPipe{}
	s.PipeCommands["exclude"] = &excludePipe{}
	s.PipeCommands["sort"] = &sortPipe{}
	s.PipeCommands["limit"] = &limitPipe{}
	s.PipeCommands["select"] = &selectPipe{}
	s.PipeCommands["more"] = &morePipe{}
}

// pipeRows coerces a pipe input into rows. A single dict is one row.
func pipeRows(input Object) ([]*Dict, error) {
	switch in := input.(type) {
	case *Array:
		rows := make([]*Dict, 0, len(in.Elements))
		for _, e := range in.Elements {
			row, ok := e.(*Dict)
			if !ok {
				return nil, berrors.NewCommand("pipe input must be rows", "", nil)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case *Dict:
		return []*Dict{in}, nil
	default:
		return nil, berrors.NewCommand("pipe input must be rows", "", nil)
	}
}

func rowsToArray(rows []*Dict) *Array {
	elements := make([]Object, len(rows))
	for i, r := range rows {
		elements[i] = r
	}
	return &Array{Elements: elements}
}

// collectPredicates merges keyword and operator arguments into predicate
// triples, normalising "==" to "=".
func collectPredicates(kwargs map[string]Object, opargs []Oparg) []Predicate {
	var preds []Predicate
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		preds = append(preds, Predicate{Name: name, Op: "=", Value: kwargs[name]})
	}
	for _, op := range opargs {
		o := op.Op
		if o == "==" {
			o = "="
		}
		preds = append(preds, Predicate{Name: op.Name, Op: o, Value: op.Value})
	}
	return preds
}

// rowMatches applies one predicate to a row. A missing field never matches.
func rowMatches(row *Dict, p Predicate) bool {
	if p.Name == "nor" {
		for _, sub := range p.Sub {
			if rowMatches(row, sub) {
				return false
			}
		}
		return true
	}
	field, ok := row.Get(p.Name)
	if !ok {
		return false
	}
	switch p.Op {
	case "=", "==":
		return objectEquals(field, p.Value)
	case "!=":
		return !objectEquals(field, p.Value)
	case ">", "<", ">=", "<=":
		result := evalOrdering(p.Op, field, p.Value, nil)
		b, ok := result.(*Boolean)
		return ok && b.Value
	case "~=":
		f, fok := field.(*String)
		v, vok := p.Value.(*String)
		if !fok || !vok {
			return false
		}
		re, err := regexp.Compile(v.Value)
		if err != nil {
			return false
		}
		return re.MatchString(f.Value)
	default:
		return false
	}
}

// searchPipe keeps rows matching all predicates.
type searchPipe struct{}

func (p *searchPipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	rows, err := pipeRows(input)
	if err != nil {
		return nil, err
	}
	preds := collectPredicates(kwargs, opargs)
	var out []*Dict
	for _, row := range rows {
		matched := true
		for _, pred := range preds {
			if !rowMatches(row, pred) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, row)
		}
	}
	return rowsToArray(out), nil
}

func (p *searchPipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	f := NewFiltering()
	f.Predicates = collectPredicates(kwargs, opargs)
	return f, nil
}

func (p *searchPipe) MustBeLast() bool { return false }

// excludePipe drops rows matching any predicate. Its serialized form wraps
// the predicates in a "nor" term.
type excludePipe struct{}

func (p *excludePipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	rows, err := pipeRows(input)
	if err != nil {
		return nil, err
	}
	preds := collectPredicates(kwargs, opargs)
	nor := Predicate{Name: "nor", Sub: preds}
	var out []*Dict
	for _, row := range rows {
		if rowMatches(row, nor) {
			out = append(out, row)
		}
	}
	return rowsToArray(out), nil
}

func (p *excludePipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	f := NewFiltering()
	f.Predicates = []Predicate{{Name: "nor", Sub: collectPredicates(kwargs, opargs)}}
	return f, nil
}

func (p *excludePipe) MustBeLast() bool { return false }

// sortPipe orders rows by the named fields; a leading "-" reverses a field.
type sortPipe struct{}

func sortFields(args []Object) ([]string, error) {
	if len(args) == 0 {
		return nil, berrors.NewCommand("usage: sort <field> ...", "", nil)
	}
	fields := make([]string, len(args))
	for i, a := range args {
		f, ok := a.(*String)
		if !ok {
			return nil, berrors.NewCommand("sort fields must be names", "", nil)
		}
		fields[i] = f.Value
	}
	return fields, nil
}

func (p *sortPipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	rows, err := pipeRows(input)
	if err != nil {
		return nil, err
	}
	fields, err := sortFields(args)
	if err != nil {
		return nil, err
	}
	sorted := make([]*Dict, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, field := range fields {
			desc := strings.HasPrefix(field, "-")
			name := strings.TrimPrefix(field, "-")
			c := compareFields(sorted[i], sorted[j], name)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return rowsToArray(sorted), nil
}

func compareFields(a, b *Dict, name string) int {
	av, aok := a.Get(name)
	bv, bok := b.Get(name)
	if !aok || !bok {
		if aok == bok {
			return 0
		}
		if !aok {
			return -1
		}
		return 1
	}
	if ai, ok := asInteger(av); ok {
		if bi, ok := asInteger(bv); ok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(av.Inspect(), bv.Inspect())
}

func (p *sortPipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	fields, err := sortFields(args)
	if err != nil {
		return nil, err
	}
	elements := make([]Object, len(fields))
	for i, f := range fields {
		elements[i] = &String{Value: f}
	}
	f := NewFiltering()
	f.Params["sort"] = &Array{Elements: elements}
	return f, nil
}

func (p *sortPipe) MustBeLast() bool { return false }

// limitPipe truncates to the first n rows.
type limitPipe struct{}

func limitCount(args []Object) (int64, error) {
	if len(args) != 1 {
		return 0, berrors.NewCommand("usage: limit <n>", "", nil)
	}
	n, ok := args[0].(*Integer)
	if !ok || n.Value < 0 {
		return 0, berrors.NewCommand("limit takes a non-negative integer", "", nil)
	}
	return n.Value, nil
}

func (p *limitPipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	n, err := limitCount(args)
	if err != nil {
		return nil, err
	}
	// limit works on any sequence, including projected values
	arr, ok := input.(*Array)
	if !ok {
		rows, err := pipeRows(input)
		if err != nil {
			return nil, err
		}
		arr = rowsToArray(rows)
	}
	if int64(len(arr.Elements)) > n {
		return &Array{Elements: arr.Elements[:n]}, nil
	}
	return arr, nil
}

func (p *limitPipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	n, err := limitCount(args)
	if err != nil {
		return nil, err
	}
	f := NewFiltering()
	f.Params["limit"] = &Integer{Value: n}
	return f, nil
}

func (p *limitPipe) MustBeLast() bool { return false }

// selectPipe projects one field out of each row. It cannot be pushed down:
// later stages would see the projected values, not the rows.
type selectPipe struct{}

func (p *selectPipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	rows, err := pipeRows(input)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, berrors.NewCommand("usage: select <field>", "", nil)
	}
	field, ok := args[0].(*String)
	if !ok {
		return nil, berrors.NewCommand("select field must be a name", "", nil)
	}
	var out []Object
	for _, row := range rows {
		if v, ok := row.Get(field.Value); ok {
			out = append(out, v)
		}
	}
	return &Array{Elements: out}, nil
}

func (p *selectPipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	return nil, ErrFilterNotSupported
}

func (p *selectPipe) MustBeLast() bool { return false }

// morePipe pages output a screenful at a time; it consumes the stream, so
// nothing may follow it.
type morePipe struct{}

const morePageSize = 24

func (p *morePipe) RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	var lines []string
	switch in := input.(type) {
	case *Array:
		for _, e := range in.Elements {
			lines = append(lines, e.Inspect())
		}
	default:
		lines = strings.Split(input.Inspect(), "\n")
	}
	for i, line := range lines {
		s.Output(line)
		if (i+1)%morePageSize == 0 && i+1 < len(lines) {
			s.LockOutput()
			s.Logger.Log("-- more (" + strconv.Itoa(len(lines)-i-1) + " lines) --")
			s.UnlockOutput()
		}
	}
	return NULL, nil
}

func (p *morePipe) SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error) {
	return nil, ErrFilterNotSupported
}

func (p *morePipe) MustBeLast() bool { return true }
