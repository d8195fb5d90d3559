package evaluator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	berrors "github.com/sambeau/brine/pkg/brine/errors"
	"github.com/sambeau/brine/pkg/brine/parser"
)

// mockCommand records its invocation and returns a fixed result.
type mockCommand struct {
	result Object
	calls  int
	args   []Object
	kwargs map[string]Object
	opargs []Oparg
}

func (c *mockCommand) Run(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error) {
	c.calls++
	c.args, c.kwargs, c.opargs = args, kwargs, opargs
	return c.result, nil
}

// mockFilteringCommand also accepts a pushed-down query.
type mockFilteringCommand struct {
	mockCommand
	filtering *Filtering
}

func (c *mockFilteringCommand) RunFiltering(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg, filtering *Filtering) (Object, error) {
	c.calls++
	c.args, c.kwargs, c.opargs = args, kwargs, opargs
	c.filtering = filtering
	return c.result, nil
}

func userRows() *Array {
	root := NewDict()
	root.Set("name", &String{Value: "root"})
	root.Set("uid", &Integer{Value: 0})
	admin := NewDict()
	admin.Set("name", &String{Value: "admin"})
	admin.Set("uid", &Integer{Value: 1000})
	guest := NewDict()
	guest.Set("name", &String{Value: "guest"})
	guest.Set("uid", &Integer{Value: 1001})
	return &Array{Elements: []Object{root, admin, guest}}
}

// treeSession builds root -> account -> user with a "show" command, plus a
// root-level "service" namespace.
func treeSession() (*Session, *mockFilteringCommand, *BufferedLogger) {
	show := &mockFilteringCommand{mockCommand: mockCommand{result: userRows()}}

	user := NewBaseNamespace("user")
	user.AddCommand("show", show)
	account := NewBaseNamespace("account")
	account.AddNamespace(user)
	service := NewBaseNamespace("service")

	root := NewRootNamespace()
	root.AddNamespace(account)
	root.AddNamespace(service)

	s := NewSession(root)
	logger := NewBufferedLogger()
	s.Logger = logger
	return s, show, logger
}

func runStatement(t *testing.T, s *Session, input string) Object {
	t.Helper()
	program, err := parser.Parse(input, "<test>")
	if err != nil {
		t.Fatalf("parse error for %q: %v", input, err)
	}
	var result Object = NULL
	for _, stmt := range program {
		result = Eval(stmt, s.Globals(), s)
	}
	return result
}

// TestCommandInvocationEntersPath: "a b c" enters a/b on the way to
// running c, and the path stays there afterwards.
func TestCommandInvocationEntersPath(t *testing.T) {
	s, show, _ := treeSession()

	result := runStatement(t, s, "account user show arg=1")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if show.calls != 1 {
		t.Fatalf("expected one invocation, got %d", show.calls)
	}
	if s.PathString() != "/account/user" {
		t.Fatalf("expected path /account/user, got %s", s.PathString())
	}
	if v, ok := show.kwargs["arg"]; !ok || v.(*Integer).Value != 1 {
		t.Fatalf("expected kwarg arg=1, got %v", show.kwargs)
	}
}

func TestPureNavigation(t *testing.T) {
	s, _, _ := treeSession()

	runStatement(t, s, "account user")
	if s.PathString() != "/account/user" {
		t.Fatalf("expected /account/user, got %s", s.PathString())
	}

	// ".." goes up one level
	runStatement(t, s, "..")
	if s.PathString() != "/account" {
		t.Fatalf("expected /account, got %s", s.PathString())
	}

	// "/" is root-relative
	runStatement(t, s, "/ service")
	if s.PathString() != "/service" {
		t.Fatalf("expected /service, got %s", s.PathString())
	}

	// "-" toggles back to the previous path
	s.TogglePrevPath()
	if s.PathString() != "/account" {
		t.Fatalf("expected /account after toggle, got %s", s.PathString())
	}
}

// TestRelativeCommandFromWithin: once inside account, "user show" resolves
// relative to it.
func TestRelativeCommandFromWithin(t *testing.T) {
	s, show, _ := treeSession()
	runStatement(t, s, "account")
	result := runStatement(t, s, "user show")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if show.calls != 1 {
		t.Fatalf("expected one invocation, got %d", show.calls)
	}
}

func TestUnknownName(t *testing.T) {
	s, _, _ := treeSession()
	result := runStatement(t, s, "account nosuch")
	errObj, ok := result.(*Error)
	if !ok || errObj.Err.Code != "NAME-0001" {
		t.Fatalf("expected NAME-0001, got %s", result.Inspect())
	}
}

// TestArgumentClassification: positional, keyword (last wins) and operator
// arguments are separated; bare words name themselves and variables
// substitute.
func TestArgumentClassification(t *testing.T) {
	s, show, _ := treeSession()
	s.Globals().Define("limit_val", &Integer{Value: 7})

	runStatement(t, s, `account user show root a=1 a=2 uid>1000 name~="^r" limit_val`)

	if len(show.args) != 2 {
		t.Fatalf("expected 2 positional args, got %v", show.args)
	}
	if show.args[0].(*String).Value != "root" {
		t.Fatalf("expected bare word to become its name, got %s", show.args[0].Inspect())
	}
	if show.args[1].(*Integer).Value != 7 {
		t.Fatalf("expected variable substitution, got %s", show.args[1].Inspect())
	}
	if show.kwargs["a"].(*Integer).Value != 2 {
		t.Fatalf("expected last duplicate kwarg to win, got %s", show.kwargs["a"].Inspect())
	}
	if len(show.opargs) != 2 {
		t.Fatalf("expected 2 opargs, got %v", show.opargs)
	}
	if show.opargs[0].Name != "uid" || show.opargs[0].Op != ">" {
		t.Fatalf("expected uid> oparg, got %+v", show.opargs[0])
	}
	if show.opargs[1].Op != "~=" {
		t.Fatalf("expected ~= oparg, got %+v", show.opargs[1])
	}
}

// TestListing: "?" lists child namespaces first (slash-suffixed), then
// commands, each block sorted.
func TestListing(t *testing.T) {
	s, _, _ := treeSession()
	result := runStatement(t, s, "?")
	arr, ok := result.(*Array)
	if !ok {
		t.Fatalf("expected array, got %s", result.Type())
	}
	if len(arr.Elements) < 2 {
		t.Fatalf("expected entries, got %d", len(arr.Elements))
	}
	first := arr.Elements[0].(*String).Value
	second := arr.Elements[1].(*String).Value
	if first != "account/" || second != "service/" {
		t.Fatalf("expected sorted namespaces first, got %s, %s", first, second)
	}
	// builtins appear among the commands
	var found bool
	for _, e := range arr.Elements {
		if e.(*String).Value == "setenv" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected builtin commands in listing")
	}
}

// TestPipePushdown: every stage that can serialize contributes to the
// pushed-down query and does not run again afterwards.
func TestPipePushdown(t *testing.T) {
	s, show, _ := treeSession()

	result := runStatement(t, s, "account user show | search name==root uid>=0 | sort name | limit 10")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if show.filtering == nil {
		t.Fatalf("expected pushed-down filtering")
	}

	preds := show.filtering.Predicates
	if len(preds) != 2 {
		t.Fatalf("expected 2 predicates, got %+v", preds)
	}
	if preds[0].Name != "name" || preds[0].Op != "=" || preds[0].Value.(*String).Value != "root" {
		t.Fatalf("expected name = root with == normalized, got %+v", preds[0])
	}
	if preds[1].Name != "uid" || preds[1].Op != ">=" {
		t.Fatalf("expected uid >= 0, got %+v", preds[1])
	}

	sortParam, ok := show.filtering.Params["sort"].(*Array)
	if !ok || sortParam.Elements[0].(*String).Value != "name" {
		t.Fatalf("expected sort param, got %v", show.filtering.Params)
	}
	limitParam, ok := show.filtering.Params["limit"].(*Integer)
	if !ok || limitParam.Value != 10 {
		t.Fatalf("expected limit param, got %v", show.filtering.Params)
	}

	// everything was pushed down, so the rows come back untouched
	if arr := result.(*Array); len(arr.Elements) != 3 {
		t.Fatalf("expected unfiltered rows from the mock, got %d", len(arr.Elements))
	}
}

// TestPipePushdownStops: the first stage that cannot serialize stops the
// pushdown, and every later stage post-processes too, preserving order.
func TestPipePushdownStops(t *testing.T) {
	s, show, _ := treeSession()

	result := runStatement(t, s, "account user show | select name | limit 2")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if len(show.filtering.Predicates) != 0 {
		t.Fatalf("expected empty pushdown, got %+v", show.filtering.Predicates)
	}
	if _, ok := show.filtering.Params["limit"]; ok {
		t.Fatalf("limit after select must not push down")
	}

	arr := result.(*Array)
	if len(arr.Elements) != 2 {
		t.Fatalf("expected 2 projected values, got %d", len(arr.Elements))
	}
	if arr.Elements[0].(*String).Value != "root" {
		t.Fatalf("expected projected name, got %s", arr.Elements[0].Inspect())
	}
}

// TestPipePostProcessing: a non-filtering producer runs as usual and the
// stages work on its output.
func TestPipePostProcessing(t *testing.T) {
	s, _, _ := treeSession()
	list := &mockCommand{result: userRows()}
	s.BuiltinCommands["list"] = list

	result := runStatement(t, s, "list | search uid>=1000 | sort name")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	arr := result.(*Array)
	if len(arr.Elements) != 2 {
		t.Fatalf("expected 2 matching rows, got %d", len(arr.Elements))
	}
	first, _ := arr.Elements[0].(*Dict).Get("name")
	if first.(*String).Value != "admin" {
		t.Fatalf("expected sorted rows, got %s", first.Inspect())
	}
}

func TestPipeExclude(t *testing.T) {
	s, _, _ := treeSession()
	s.BuiltinCommands["list"] = &mockCommand{result: userRows()}

	result := runStatement(t, s, "list | exclude name==root")
	arr := result.(*Array)
	if len(arr.Elements) != 2 {
		t.Fatalf("expected root excluded, got %d rows", len(arr.Elements))
	}

	// serialized form wraps the predicates in a nor term
	ex := s.PipeCommands["exclude"]
	f, err := ex.SerializeFilter(s, nil, nil, []Oparg{{Name: "name", Op: "==", Value: &String{Value: "root"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Predicates) != 1 || f.Predicates[0].Name != "nor" {
		t.Fatalf("expected nor wrapper, got %+v", f.Predicates)
	}
	if f.Predicates[0].Sub[0].Op != "=" {
		t.Fatalf("expected normalized inner op, got %+v", f.Predicates[0].Sub)
	}
}

func TestSortDescending(t *testing.T) {
	s, _, _ := treeSession()
	sorter := s.PipeCommands["sort"]
	result, err := sorter.RunPipe(s, userRows(), []Object{&String{Value: "-uid"}}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := result.(*Array)
	first, _ := rows.Elements[0].(*Dict).Get("uid")
	if first.(*Integer).Value != 1001 {
		t.Fatalf("expected descending sort, got %s", first.Inspect())
	}
}

// TestLimitSingleRow: limit wraps a single-row input into a one-element
// sequence instead of rejecting it.
func TestLimitSingleRow(t *testing.T) {
	s, _, _ := treeSession()
	row := NewDict()
	row.Set("name", &String{Value: "root"})

	result, err := s.PipeCommands["limit"].RunPipe(s, row, []Object{&Integer{Value: 5}}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, ok := result.(*Array)
	if !ok || len(arr.Elements) != 1 {
		t.Fatalf("expected one-row array, got %s", result.Inspect())
	}
}

// TestVariableInCommandPosition: a variable shadows tree names when it
// starts a command; a string value re-resolves as a name and a command ref
// is invoked directly.
func TestVariableInCommandPosition(t *testing.T) {
	s, show, _ := treeSession()

	s.Globals().Define("target", &String{Value: "account"})
	result := runStatement(t, s, "target")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if s.PathString() != "/account" {
		t.Fatalf("expected cd via variable, got %s", s.PathString())
	}

	s.Globals().Define("sh", &CommandRef{Name: "show", Cmd: show})
	result = runStatement(t, s, "sh a=1")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if show.calls != 1 {
		t.Fatalf("expected invocation via command ref, got %d", show.calls)
	}
	if v, ok := show.kwargs["a"]; !ok || v.(*Integer).Value != 1 {
		t.Fatalf("expected kwarg through ref call, got %v", show.kwargs)
	}
}

// TestMustBeLast: a stage marked must-be-last is rejected anywhere else.
func TestMustBeLast(t *testing.T) {
	s, _, _ := treeSession()
	result := runStatement(t, s, "account user show | more | limit 1")
	errObj, ok := result.(*Error)
	if !ok || errObj.Err.Code != "CMD-0002" {
		t.Fatalf("expected CMD-0002, got %s", result.Inspect())
	}
}

func TestPipeErrors(t *testing.T) {
	s, _, _ := treeSession()

	// a pipe head must be a command, not a namespace
	result := runStatement(t, s, "account | search name==root")
	if errObj, ok := result.(*Error); !ok || errObj.Err.Code != "CMD-0001" {
		t.Fatalf("expected CMD-0001, got %s", result.Inspect())
	}

	// stages must be registered pipe commands
	result = runStatement(t, s, "account user show | nosuch")
	if errObj, ok := result.(*Error); !ok || errObj.Err.Code != "NAME-0004" {
		t.Fatalf("expected NAME-0004, got %s", result.Inspect())
	}
}

// TestCommandExpansion: a ${} expansion in command position must produce a
// name, and an expansion argument carries the command's value.
func TestCommandExpansion(t *testing.T) {
	s, show, _ := treeSession()
	s.Globals().Define("cmdname", &String{Value: "show"})

	result := runStatement(t, s, "account user ${cmdname}")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	if show.calls != 1 {
		t.Fatalf("expected invocation through expansion, got %d", show.calls)
	}

	result = runStatement(t, s, "/ account user show count=${1 + 2}")
	if isError(result) {
		t.Fatalf("unexpected error: %s", result.Inspect())
	}
	count, ok := show.kwargs["count"].(*Integer)
	if !ok || count.Value != 3 {
		t.Fatalf("expected expanded kwarg, got %v", show.kwargs)
	}
}

// TestFailedCommandRestoresPath: the driver puts the working path back
// after an error mid-navigation.
func TestFailedCommandRestoresPath(t *testing.T) {
	s, _, _ := treeSession()
	if err := s.Run("account nosuch", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PathString() != "/" {
		t.Fatalf("expected path restored to /, got %s", s.PathString())
	}
}

func TestExitCommand(t *testing.T) {
	s, _, _ := treeSession()
	err := s.Run("exit", "<test>")
	if err == nil || !berrors.IsExit(err) {
		t.Fatalf("expected exit request, got %v", err)
	}
}

func TestEchoAndHistory(t *testing.T) {
	s, _, logger := treeSession()
	if err := s.Run(`echo hello world`, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 1 || lines[0] != "hello world" {
		t.Fatalf("expected echoed line, got %v", lines)
	}

	s.History = append(s.History, "echo hello world")
	if err := s.Run("history", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines = logger.Lines()
	if !strings.Contains(lines[len(lines)-1], "echo hello world") {
		t.Fatalf("expected history line, got %v", lines)
	}
}

func TestSetenvPrintenv(t *testing.T) {
	s, _, logger := treeSession()
	if err := s.Run("setenv prompt=ready", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Vars.GetString("prompt") != "ready" {
		t.Fatalf("expected prompt set, got %q", s.Vars.GetString("prompt"))
	}

	if err := s.Run("printenv prompt", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if lines[len(lines)-1] != "prompt=ready" {
		t.Fatalf("expected printenv output, got %v", lines)
	}

	// choices are validated
	if err := s.Run("setenv output_format=bogus", "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Vars.GetString("output_format") == "bogus" {
		t.Fatalf("expected invalid choice rejected")
	}
}

func TestSourceCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.brine")
	if err := os.WriteFile(path, []byte("x = 40\nprint(x + 2)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _, logger := treeSession()
	if err := s.Run(`source "`+path+`"`, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 1 || lines[0] != "42" {
		t.Fatalf("expected sourced output, got %v", lines)
	}
}

func TestEvalCommand(t *testing.T) {
	s, _, logger := treeSession()
	if err := s.Run(`eval "print(1 + 1)"`, "<test>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := logger.Lines()
	if len(lines) != 1 || lines[0] != "2" {
		t.Fatalf("expected eval output, got %v", lines)
	}
}
