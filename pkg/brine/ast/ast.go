// Package ast defines the syntax tree produced by the parser.
//
// Every node carries its first token, which records the originating file,
// line and column for diagnostics. Nodes are immutable once parsed.
package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sambeau/brine/pkg/brine/lexer"
)

// Node represents any node in the AST
type Node interface {
	Tok() lexer.Token
	String() string
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Symbol is a bare name: a variable, function, command or namespace
// reference, resolved at evaluation time.
type Symbol struct {
	Token lexer.Token
	Name  string
}

func (s *Symbol) expressionNode()  {}
func (s *Symbol) Tok() lexer.Token { return s.Token }
func (s *Symbol) String() string   { return s.Name }

// StringLiteral represents string literals
type StringLiteral struct {
	Token lexer.Token
	Value string
}

func (sl *StringLiteral) expressionNode()  {}
func (sl *StringLiteral) Tok() lexer.Token { return sl.Token }
func (sl *StringLiteral) String() string   { return strconv.Quote(sl.Value) }

// IntegerLiteral represents integer literals, including the sized
// (10k, 10kib) and based (0x, 0o, 0b) forms already reduced to a value.
type IntegerLiteral struct {
	Token lexer.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()  {}
func (il *IntegerLiteral) Tok() lexer.Token { return il.Token }
func (il *IntegerLiteral) String() string   { return strconv.FormatInt(il.Value, 10) }

// BooleanLiteral represents true/false
type BooleanLiteral struct {
	Token lexer.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()  {}
func (bl *BooleanLiteral) Tok() lexer.Token { return bl.Token }
func (bl *BooleanLiteral) String() string   { return strconv.FormatBool(bl.Value) }

// NoneLiteral represents the none value
type NoneLiteral struct {
	Token lexer.Token
}

func (nl *NoneLiteral) expressionNode()  {}
func (nl *NoneLiteral) Tok() lexer.Token { return nl.Token }
func (nl *NoneLiteral) String() string   { return "none" }

// ListLiteral represents list literals like [1, 2, 3]
type ListLiteral struct {
	Token    lexer.Token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()  {}
func (ll *ListLiteral) Tok() lexer.Token { return ll.Token }
func (ll *ListLiteral) String() string {
	parts := make([]string, len(ll.Elements))
	for i, e := range ll.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// DictPair is a single key/value entry of a dict literal.
type DictPair struct {
	Key   Expression
	Value Expression
}

// DictLiteral represents dict literals like {name: "x", size: 10}.
// Pair order is preserved.
type DictLiteral struct {
	Token lexer.Token
	Pairs []DictPair
}

func (dl *DictLiteral) expressionNode()  {}
func (dl *DictLiteral) Tok() lexer.Token { return dl.Token }
func (dl *DictLiteral) String() string {
	parts := make([]string, len(dl.Pairs))
	for i, p := range dl.Pairs {
		parts[i] = dictKey(p.Key) + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// dictKey renders a string key bare when it was written as a bare word.
func dictKey(key Expression) string {
	s, ok := key.(*StringLiteral)
	if !ok {
		return key.String()
	}
	hasAlpha := false
	for i := 0; i < len(s.Value); i++ {
		ch := s.Value[i]
		switch {
		case ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z'):
			hasAlpha = true
		case '0' <= ch && ch <= '9':
		default:
			return key.String()
		}
	}
	if !hasAlpha {
		return key.String()
	}
	return s.Value
}

// PrefixExpr represents unary expressions: not x, -x
type PrefixExpr struct {
	Token lexer.Token
	Op    string
	Right Expression
}

func (pe *PrefixExpr) expressionNode()  {}
func (pe *PrefixExpr) Tok() lexer.Token { return pe.Token }
func (pe *PrefixExpr) String() string {
	if pe.Op == "not" {
		return "not " + pe.Right.String()
	}
	return pe.Op + pe.Right.String()
}

// BinaryExpr represents binary expressions: left op right
type BinaryExpr struct {
	Token lexer.Token
	Left  Expression
	Op    string
	Right Expression
}

func (be *BinaryExpr) expressionNode()  {}
func (be *BinaryExpr) Tok() lexer.Token { return be.Token }
func (be *BinaryExpr) String() string {
	return "(" + be.Left.String() + " " + be.Op + " " + be.Right.String() + ")"
}

// BinaryParameter is a named command parameter: name OP value.
type BinaryParameter struct {
	Token lexer.Token
	Name  string
	Op    string
	Value Expression
}

func (bp *BinaryParameter) expressionNode()  {}
func (bp *BinaryParameter) Tok() lexer.Token { return bp.Token }
func (bp *BinaryParameter) String() string {
	return bp.Name + bp.Op + bp.Value.String()
}

// PathMarkerKind distinguishes the path marker command items.
type PathMarkerKind int

const (
	PathUp   PathMarkerKind = iota // ..
	PathRoot                       // /
	PathList                       // ?
)

// PathMarker is a command item that navigates or inspects the namespace
// path instead of naming something.
type PathMarker struct {
	Token lexer.Token
	Kind  PathMarkerKind
}

func (pm *PathMarker) expressionNode()  {}
func (pm *PathMarker) Tok() lexer.Token { return pm.Token }
func (pm *PathMarker) String() string {
	switch pm.Kind {
	case PathUp:
		return ".."
	case PathRoot:
		return "/"
	default:
		return "?"
	}
}

// ExpressionExpansion represents ${expr}: the inner command or expression
// is evaluated and its value substituted inline.
type ExpressionExpansion struct {
	Token lexer.Token
	Expr  Expression
}

func (ee *ExpressionExpansion) expressionNode()  {}
func (ee *ExpressionExpansion) Tok() lexer.Token { return ee.Token }
func (ee *ExpressionExpansion) String() string   { return "${" + ee.Expr.String() + "}" }

// CommandCall is a shell-style invocation: an ordered list of command
// items (words, path markers, literals, expansions) and parameters.
type CommandCall struct {
	Token lexer.Token
	Items []Expression
}

func (cc *CommandCall) expressionNode()  {}
func (cc *CommandCall) statementNode()   {}
func (cc *CommandCall) Tok() lexer.Token { return cc.Token }
func (cc *CommandCall) String() string {
	parts := make([]string, len(cc.Items))
	for i, a := range cc.Items {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// PipeExpr chains a command into a pipeline; Right is either another
// CommandCall or a further PipeExpr (pipelines nest to the right).
type PipeExpr struct {
	Token lexer.Token
	Left  *CommandCall
	Right Expression
}

func (pe *PipeExpr) expressionNode()  {}
func (pe *PipeExpr) statementNode()   {}
func (pe *PipeExpr) Tok() lexer.Token { return pe.Token }
func (pe *PipeExpr) String() string {
	return pe.Left.String() + " | " + pe.Right.String()
}

// FunctionCall represents name(arg, ...)
type FunctionCall struct {
	Token lexer.Token
	Name  string
	Args  []Expression
}

func (fc *FunctionCall) expressionNode()  {}
func (fc *FunctionCall) Tok() lexer.Token { return fc.Token }
func (fc *FunctionCall) String() string {
	parts := make([]string, len(fc.Args))
	for i, a := range fc.Args {
		parts[i] = a.String()
	}
	return fc.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Subscript represents expr[index]
type Subscript struct {
	Token lexer.Token
	Expr  Expression
	Index Expression
}

func (s *Subscript) expressionNode()  {}
func (s *Subscript) Tok() lexer.Token { return s.Token }
func (s *Subscript) String() string {
	return s.Expr.String() + "[" + s.Index.String() + "]"
}

// AssignmentStatement assigns to a name or a subscript target.
type AssignmentStatement struct {
	Token  lexer.Token
	Target Expression // *Symbol or *Subscript
	Value  Expression
}

func (as *AssignmentStatement) statementNode()   {}
func (as *AssignmentStatement) Tok() lexer.Token { return as.Token }
func (as *AssignmentStatement) String() string {
	return as.Target.String() + " = " + as.Value.String()
}

// IfStatement represents if (expr) { ... } [else { ... }]
type IfStatement struct {
	Token lexer.Token
	Cond  Expression
	Body  []Statement
	Else  []Statement
}

func (is *IfStatement) statementNode()   {}
func (is *IfStatement) Tok() lexer.Token { return is.Token }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (" + is.Cond.String() + ") " + blockString(is.Body))
	if is.Else != nil {
		out.WriteString(" else " + blockString(is.Else))
	}
	return out.String()
}

// ForStatement represents for (x in expr) { ... } and the two-variable
// form for (k, v in expr) { ... } which iterates key/value pairs.
type ForStatement struct {
	Token    lexer.Token
	Vars     []string // one or two names
	Iterable Expression
	Body     []Statement
}

func (fs *ForStatement) statementNode()   {}
func (fs *ForStatement) Tok() lexer.Token { return fs.Token }
func (fs *ForStatement) String() string {
	return "for (" + strings.Join(fs.Vars, ", ") + " in " + fs.Iterable.String() + ") " + blockString(fs.Body)
}

// WhileStatement represents while (expr) { ... }
type WhileStatement struct {
	Token lexer.Token
	Cond  Expression
	Body  []Statement
}

func (ws *WhileStatement) statementNode()   {}
func (ws *WhileStatement) Tok() lexer.Token { return ws.Token }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Cond.String() + ") " + blockString(ws.Body)
}

// FunctionDefinition represents function name(a b) { ... }. An anonymous
// function (empty Name) is an expression.
type FunctionDefinition struct {
	Token  lexer.Token
	Name   string
	Params []string
	Body   []Statement
}

func (fd *FunctionDefinition) statementNode()   {}
func (fd *FunctionDefinition) expressionNode()  {}
func (fd *FunctionDefinition) Tok() lexer.Token { return fd.Token }
func (fd *FunctionDefinition) String() string {
	head := "function"
	if fd.Name != "" {
		head += " " + fd.Name
	}
	return head + "(" + strings.Join(fd.Params, ", ") + ") " + blockString(fd.Body)
}

// ReturnStatement represents return [expr]
type ReturnStatement struct {
	Token lexer.Token
	Value Expression // may be nil
}

func (rs *ReturnStatement) statementNode()   {}
func (rs *ReturnStatement) Tok() lexer.Token { return rs.Token }
func (rs *ReturnStatement) String() string {
	if rs.Value == nil {
		return "return"
	}
	return "return " + rs.Value.String()
}

// BreakStatement represents break
type BreakStatement struct {
	Token lexer.Token
}

func (bs *BreakStatement) statementNode()   {}
func (bs *BreakStatement) Tok() lexer.Token { return bs.Token }
func (bs *BreakStatement) String() string   { return "break" }

// UndefStatement removes a variable binding.
type UndefStatement struct {
	Token lexer.Token
	Name  string
}

func (us *UndefStatement) statementNode()   {}
func (us *UndefStatement) Tok() lexer.Token { return us.Token }
func (us *UndefStatement) String() string   { return "undef " + us.Name }

// Redirect wraps a statement whose rendered result is appended to a file.
type Redirect struct {
	Token lexer.Token
	Stmt  Statement
	Path  Expression
}

func (r *Redirect) statementNode()   {}
func (r *Redirect) Tok() lexer.Token { return r.Token }
func (r *Redirect) String() string {
	return r.Stmt.String() + " >> " + r.Path.String()
}

// ExpressionStatement wraps a bare expression used as a statement.
type ExpressionStatement struct {
	Token      lexer.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()   {}
func (es *ExpressionStatement) Tok() lexer.Token { return es.Token }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String()
	}
	return ""
}

func blockString(stmts []Statement) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}
