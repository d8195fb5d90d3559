package evaluator

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sambeau/brine/config"
	"github.com/sambeau/brine/pkg/brine/ast"
	berrors "github.com/sambeau/brine/pkg/brine/errors"
	"github.com/sambeau/brine/pkg/brine/parser"
)

// RPCHandler forwards an rpc() call to the appliance middleware. The shell
// itself has no transport; the embedding program supplies one.
type RPCHandler func(method string, args []Object) (Object, error)

// CallStackEntry records one user-function call for error trails.
type CallStackEntry struct {
	Name   string
	File   string
	Line   int
	Column int
	Args   []Object
}

// Session is the complete state of one shell session: the namespace tree,
// the working path, variables, the call stack and output. It is an explicit
// value threaded through evaluation, never a global.
type Session struct {
	Root   Namespace
	Vars   *config.VarStore
	Logger Logger
	RPC    RPCHandler
	Stdin  io.Reader

	// BuiltinCommands are available in every namespace.
	BuiltinCommands map[string]Command
	// PipeCommands are the registered pipeline stages.
	PipeCommands map[string]PipeCommand

	// History of executed lines, appended by the REPL.
	History []string

	global    *Environment
	path      []Namespace
	prevPath  []Namespace
	callStack []CallStackEntry
	outputMu  sync.Mutex
}

// NewSession creates a session rooted at the given namespace, with default
// variables, builtin commands and pipe commands registered.
func NewSession(root Namespace) *Session {
	s := &Session{
		Root:            root,
		Vars:            config.DefaultVarStore(),
		Logger:          DefaultLogger,
		Stdin:           os.Stdin,
		BuiltinCommands: make(map[string]Command),
		PipeCommands:    make(map[string]PipeCommand),
		global:          NewEnvironment(),
	}
	registerBuiltinCommands(s)
	registerPipeCommands(s)
	return s
}

// Globals returns the session's global environment.
func (s *Session) Globals() *Environment {
	return s.global
}

// CWD returns the namespace at the end of the working path.
func (s *Session) CWD() Namespace {
	if len(s.path) == 0 {
		return s.Root
	}
	return s.path[len(s.path)-1]
}

// Path returns a copy of the working path, root excluded.
func (s *Session) Path() []Namespace {
	out := make([]Namespace, len(s.path))
	copy(out, s.path)
	return out
}

// PathString renders the working path as "/a/b".
func (s *Session) PathString() string {
	if len(s.path) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, ns := range s.path {
		sb.WriteString("/")
		sb.WriteString(ns.Name())
	}
	return sb.String()
}

// CD enters a child namespace, firing its OnEnter hook.
func (s *Session) CD(ns Namespace) {
	s.path = append(s.path, ns)
	ns.OnEnter(s)
}

// CDUp leaves the current namespace. The namespace may veto via OnLeave.
// Reports whether the path changed.
func (s *Session) CDUp() bool {
	if len(s.path) == 0 {
		return false
	}
	if !s.CWD().OnLeave(s) {
		return false
	}
	s.path = s.path[:len(s.path)-1]
	return true
}

// CDRoot pops back to the root namespace.
func (s *Session) CDRoot() {
	for len(s.path) > 0 {
		if !s.CDUp() {
			return
		}
	}
}

// SetPath replaces the working path without firing enter/leave hooks. The
// statement driver uses it to restore the path after a failed statement.
func (s *Session) SetPath(path []Namespace) {
	s.path = make([]Namespace, len(path))
	copy(s.path, path)
}

// Navigate moves the working path to target, firing leave hooks on the
// namespaces left and enter hooks on the ones entered. A leave veto stops
// the move where it is.
func (s *Session) Navigate(target []Namespace) {
	common := 0
	for common < len(s.path) && common < len(target) && s.path[common] == target[common] {
		common++
	}
	for len(s.path) > common {
		if !s.CDUp() {
			return
		}
	}
	for _, ns := range target[common:] {
		s.CD(ns)
	}
}

// TogglePrevPath swaps the working path with the previous one ("-").
func (s *Session) TogglePrevPath() {
	s.path, s.prevPath = s.prevPath, s.path
}

// RememberPath records the working path as the previous path before a cd.
func (s *Session) RememberPath() {
	s.prevPath = s.Path()
}

// PushFrame records a user-function call.
func (s *Session) PushFrame(frame CallStackEntry) {
	s.callStack = append(s.callStack, frame)
}

// PopFrame removes the most recent call.
func (s *Session) PopFrame() {
	if len(s.callStack) > 0 {
		s.callStack = s.callStack[:len(s.callStack)-1]
	}
}

// Frames returns a copy of the call stack, innermost last.
func (s *Session) Frames() []CallStackEntry {
	out := make([]CallStackEntry, len(s.callStack))
	copy(out, s.callStack)
	return out
}

// LockOutput serializes output with asynchronously printed notifications.
func (s *Session) LockOutput() {
	s.outputMu.Lock()
}

// UnlockOutput releases the output lock.
func (s *Session) UnlockOutput() {
	s.outputMu.Unlock()
}

// Output prints values through the session logger under the output lock.
func (s *Session) Output(values ...any) {
	s.LockOutput()
	defer s.UnlockOutput()
	s.Logger.LogLine(values...)
}

// Run parses and executes a complete input. A parse error is returned
// without executing anything.
func (s *Session) Run(input, source string) error {
	stmts, err := parser.Parse(input, source)
	if err != nil {
		return err
	}
	return s.RunStatements(stmts)
}

// RunStatements executes statements one at a time. An evaluation error is
// printed with its call-stack trail and the pre-statement working path is
// restored, then execution resumes with the next statement. Only an exit
// request propagates out. Orphan return/break signals reaching this driver
// are discarded.
func (s *Session) RunStatements(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		savedPath := s.Path()
		result := Eval(stmt, s.global, s)

		switch r := result.(type) {
		case *Error:
			if berrors.IsExit(r.Err) {
				return r.Err
			}
			s.printError(r)
			s.SetPath(savedPath)
			s.callStack = nil
		case *ReturnValue, *BreakSignal:
			// No enclosing function or loop: dropped on the floor.
		case *Null, nil:
		default:
			s.Output(r.Inspect())
		}
	}
	return nil
}

// printError renders an error and, when the failure happened inside user
// functions, the call trail innermost first.
func (s *Session) printError(e *Error) {
	s.LockOutput()
	defer s.UnlockOutput()
	s.Logger.LogLine(e.Err.String())
	frames := s.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		args := make([]string, len(f.Args))
		for j, a := range f.Args {
			args[j] = a.Inspect()
		}
		s.Logger.LogLine("  in " + f.Name + "(" + strings.Join(args, ", ") + ") at " +
			f.File + ":" + strconv.Itoa(f.Line))
	}
}
