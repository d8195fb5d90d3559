package evaluator

import "errors"

// Namespace is one node of the administrative command tree. Children and
// commands may be computed per call, so both take the session.
type Namespace interface {
	Name() string
	Namespaces(s *Session) []Namespace
	Commands(s *Session) map[string]Command
	OnEnter(s *Session)
	// OnLeave may veto leaving the namespace (an unsaved entity form, for
	// example). Returning false keeps the working path where it is.
	OnLeave(s *Session) bool
}

// Command is an invocable leaf of the tree.
type Command interface {
	Run(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error)
}

// Oparg is an operator argument: a name, a comparison-style operator and a
// value, as written in "size>=10" or "permissions=+rx".
type Oparg struct {
	Name  string
	Op    string
	Value Object
}

// Predicate is one serialized filter term. A "nor" predicate carries
// sub-predicates instead of an operator and value.
type Predicate struct {
	Name  string
	Op    string
	Value Object
	Sub   []Predicate
}

// Filtering is the query pushed down to a filtering command: predicate
// terms plus backend parameters such as sort and limit.
type Filtering struct {
	Predicates []Predicate
	Params     map[string]Object
}

// NewFiltering creates an empty filtering query
func NewFiltering() *Filtering {
	return &Filtering{Params: make(map[string]Object)}
}

// FilteringCommand is a command that can apply a serialized filter at the
// data source instead of having rows filtered after the fact.
type FilteringCommand interface {
	Command
	RunFiltering(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg, filtering *Filtering) (Object, error)
}

// ErrFilterNotSupported is returned from SerializeFilter by pipe commands
// that can only post-process; the stage then runs on the produced value.
var ErrFilterNotSupported = errors.New("filter not supported")

// PipeCommand is a pipeline stage. SerializeFilter contributes the stage's
// effect to a pushed-down query; RunPipe post-processes a produced value.
type PipeCommand interface {
	RunPipe(s *Session, input Object, args []Object, kwargs map[string]Object, opargs []Oparg) (Object, error)
	SerializeFilter(s *Session, args []Object, kwargs map[string]Object, opargs []Oparg) (*Filtering, error)
	MustBeLast() bool
}

// BaseNamespace is a plain container namespace with static children and
// commands. Plugins embed it and override what they need.
type BaseNamespace struct {
	NSName   string
	Children []Namespace
	Cmds     map[string]Command
}

// NewBaseNamespace creates an empty namespace with the given name
func NewBaseNamespace(name string) *BaseNamespace {
	return &BaseNamespace{NSName: name, Cmds: make(map[string]Command)}
}

func (b *BaseNamespace) Name() string { return b.NSName }

func (b *BaseNamespace) Namespaces(s *Session) []Namespace { return b.Children }

func (b *BaseNamespace) Commands(s *Session) map[string]Command { return b.Cmds }

func (b *BaseNamespace) OnEnter(s *Session) {}

func (b *BaseNamespace) OnLeave(s *Session) bool { return true }

// AddNamespace appends a child namespace
func (b *BaseNamespace) AddNamespace(child Namespace) {
	b.Children = append(b.Children, child)
}

// AddCommand registers a command under a name
func (b *BaseNamespace) AddCommand(name string, cmd Command) {
	if b.Cmds == nil {
		b.Cmds = make(map[string]Command)
	}
	b.Cmds[name] = cmd
}

// FindNamespace looks up a direct child namespace by name.
func FindNamespace(s *Session, parent Namespace, name string) (Namespace, bool) {
	for _, child := range parent.Namespaces(s) {
		if child.Name() == name {
			return child, true
		}
	}
	return nil, false
}

// FindCommand looks up a command of a namespace by name.
func FindCommand(s *Session, parent Namespace, name string) (Command, bool) {
	cmd, ok := parent.Commands(s)[name]
	return cmd, ok
}

// RootNamespace is the top of the tree. Its name renders empty so the
// working path prints as "/".
type RootNamespace struct {
	BaseNamespace
}

// NewRootNamespace creates a root namespace
func NewRootNamespace() *RootNamespace {
	return &RootNamespace{BaseNamespace: *NewBaseNamespace("")}
}
