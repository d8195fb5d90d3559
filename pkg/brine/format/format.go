// Package format renders an AST back to source text. It is the structural
// inverse of parsing and is used to persist configuration scripts.
//
// Comments never reach the AST, so rendering drops them. This is a known
// quirk of the single-line form, not a defect.
package format

import (
	"strconv"
	"strings"

	"github.com/sambeau/brine/pkg/brine/ast"
)

const indentUnit = "    "

// Unparse renders a node as a single line of source text. Parsing the
// result yields an equivalent AST.
func Unparse(node ast.Node) string {
	return render(node, 0, false)
}

// UnparseIndented renders a node in multi-line form with indented blocks,
// the shape used for saved scripts.
func UnparseIndented(node ast.Node) string {
	return render(node, 0, true)
}

// UnparseBlock renders a statement list, either semicolon-joined on one
// line or newline-separated.
func UnparseBlock(stmts []ast.Statement, indented bool) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = render(s, 0, indented)
	}
	if indented {
		return strings.Join(parts, "\n")
	}
	return strings.Join(parts, "; ")
}

func render(node ast.Node, depth int, indented bool) string {
	switch n := node.(type) {
	case *ast.Symbol:
		return n.Name
	case *ast.StringLiteral:
		return quote(n.Value)
	case *ast.IntegerLiteral:
		return strconv.FormatInt(n.Value, 10)
	case *ast.BooleanLiteral:
		return strconv.FormatBool(n.Value)
	case *ast.NoneLiteral:
		return "none"
	case *ast.ListLiteral:
		parts := make([]string, len(n.Elements))
		for i, e := range n.Elements {
			parts[i] = render(e, depth, indented)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ast.DictLiteral:
		parts := make([]string, len(n.Pairs))
		for i, pair := range n.Pairs {
			parts[i] = dictKey(pair.Key) + ": " + render(pair.Value, depth, indented)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *ast.PrefixExpr:
		if n.Op == "not" {
			return "not " + render(n.Right, depth, indented)
		}
		return n.Op + render(n.Right, depth, indented)
	case *ast.BinaryExpr:
		return "(" + render(n.Left, depth, indented) + " " + n.Op + " " + render(n.Right, depth, indented) + ")"
	case *ast.BinaryParameter:
		return n.Name + n.Op + render(n.Value, depth, indented)
	case *ast.PathMarker:
		return n.String()
	case *ast.ExpressionExpansion:
		return "${" + render(n.Expr, depth, false) + "}"
	case *ast.CommandCall:
		parts := make([]string, len(n.Items))
		for i, item := range n.Items {
			parts[i] = render(item, depth, indented)
		}
		return strings.Join(parts, " ")
	case *ast.PipeExpr:
		return render(n.Left, depth, indented) + " | " + render(n.Right, depth, indented)
	case *ast.FunctionCall:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			parts[i] = render(a, depth, indented)
		}
		return n.Name + "(" + strings.Join(parts, ", ") + ")"
	case *ast.Subscript:
		return render(n.Expr, depth, indented) + "[" + render(n.Index, depth, indented) + "]"
	case *ast.AssignmentStatement:
		return render(n.Target, depth, indented) + " = " + render(n.Value, depth, indented)
	case *ast.IfStatement:
		out := "if (" + render(n.Cond, depth, indented) + ") " + renderBlock(n.Body, depth, indented)
		if n.Else != nil {
			out += " else " + renderElse(n.Else, depth, indented)
		}
		return out
	case *ast.ForStatement:
		return "for (" + strings.Join(n.Vars, ", ") + " in " + render(n.Iterable, depth, indented) + ") " +
			renderBlock(n.Body, depth, indented)
	case *ast.WhileStatement:
		return "while (" + render(n.Cond, depth, indented) + ") " + renderBlock(n.Body, depth, indented)
	case *ast.FunctionDefinition:
		head := "function"
		if n.Name != "" {
			head += " " + n.Name
		}
		return head + "(" + strings.Join(n.Params, ", ") + ") " + renderBlock(n.Body, depth, indented)
	case *ast.ReturnStatement:
		if n.Value == nil {
			return "return"
		}
		return "return " + render(n.Value, depth, indented)
	case *ast.BreakStatement:
		return "break"
	case *ast.UndefStatement:
		return "undef " + n.Name
	case *ast.Redirect:
		return render(n.Stmt, depth, indented) + " >> " + renderRedirectPath(n.Path)
	case *ast.ExpressionStatement:
		return render(n.Expression, depth, indented)
	default:
		return ""
	}
}

// renderRedirectPath renders a redirect target, preferring a bare word
// where the path would lex back as a single identifier. Both forms reparse
// to the same string node.
func renderRedirectPath(path ast.Expression) string {
	if s, ok := path.(*ast.StringLiteral); ok && isBareWord(s.Value) {
		return s.Value
	}
	return render(path, 0, false)
}

func renderBlock(stmts []ast.Statement, depth int, indented bool) string {
	if !indented {
		parts := make([]string, len(stmts))
		for i, s := range stmts {
			parts[i] = render(s, depth, false)
		}
		return "{" + strings.Join(parts, "; ") + "}"
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	inner := strings.Repeat(indentUnit, depth+1)
	for _, s := range stmts {
		sb.WriteString(inner)
		sb.WriteString(render(s, depth+1, true))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Repeat(indentUnit, depth))
	sb.WriteString("}")
	return sb.String()
}

// renderElse collapses an else holding a single nested if into "else if".
func renderElse(stmts []ast.Statement, depth int, indented bool) string {
	if len(stmts) == 1 {
		if nested, ok := stmts[0].(*ast.IfStatement); ok {
			return "if (" + render(nested.Cond, depth, indented) + ") " + renderBlock(nested.Body, depth, indented) +
				elseTail(nested, depth, indented)
		}
	}
	return renderBlock(stmts, depth, indented)
}

func elseTail(n *ast.IfStatement, depth int, indented bool) string {
	if n.Else == nil {
		return ""
	}
	return " else " + renderElse(n.Else, depth, indented)
}

// dictKey renders a string key as a bare word when it would lex back as one.
func dictKey(key ast.Expression) string {
	if s, ok := key.(*ast.StringLiteral); ok && isBareWord(s.Value) {
		return s.Value
	}
	return render(key, 0, false)
}

// isBareWord reports whether s lexes back as a single plain identifier.
func isBareWord(s string) bool {
	if s == "" {
		return false
	}
	hasAlpha := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z'):
			hasAlpha = true
		case '0' <= ch && ch <= '9':
		default:
			return false
		}
	}
	// All-digit words lex as integers, keyword-shaped words as keywords.
	if !hasAlpha {
		return false
	}
	switch s {
	case "if", "else", "for", "while", "in", "function", "return", "break",
		"and", "or", "not", "undef", "true", "false", "none":
		return false
	}
	return true
}

// quote renders a string literal with the escapes the lexer understands.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(ch)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
