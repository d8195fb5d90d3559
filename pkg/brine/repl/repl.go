package repl

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/sambeau/brine/pkg/brine/evaluator"
	"github.com/sambeau/brine/pkg/brine/lexer"
)

const CONTINUATION_PROMPT = "... "

// Start runs the interactive shell loop with line editing, history and
// tab completion until the user exits.
func Start(s *evaluator.Session, out io.Writer, version string) {
	line := liner.NewLiner()
	defer line.Close()

	// Ctrl+C aborts the current line, not the shell
	line.SetCtrlCAborts(true)

	line.SetCompleter(func(input string) []string {
		return completions(s, input)
	})

	historyFile := filepath.Join(os.TempDir(), ".brine_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "brine v%s\n", version)
	fmt.Fprintln(out, "Type 'help' or '?' to list commands, 'exit' or Ctrl+D to quit")
	fmt.Fprintln(out, "")

	var inputBuffer strings.Builder

	for {
		currentPrompt := prompt(s)
		if inputBuffer.Len() > 0 {
			currentPrompt = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(currentPrompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Fprintln(out, "^C")
				inputBuffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out, "")
				return
			}
			fmt.Fprintf(out, "error reading input: %v\n", err)
			continue
		}

		trimmed := strings.TrimSpace(input)

		if inputBuffer.Len() == 0 {
			if trimmed == "" {
				continue
			}
			// "!cmd" escapes to the system shell
			if strings.HasPrefix(trimmed, "!") {
				line.AppendHistory(trimmed)
				runShellEscape(out, strings.TrimPrefix(trimmed, "!"))
				continue
			}
			// a bare "-" flips back to the previous working path
			if trimmed == "-" {
				s.TogglePrevPath()
				continue
			}
		}

		if inputBuffer.Len() > 0 {
			inputBuffer.WriteString("\n")
		}
		inputBuffer.WriteString(input)

		fullInput := inputBuffer.String()
		if needsMoreInput(fullInput) {
			continue
		}
		inputBuffer.Reset()

		line.AppendHistory(fullInput)
		s.History = append(s.History, fullInput)

		if err := s.Run(fullInput, "<stdin>"); err != nil {
			// only exit surfaces from Run, everything else is printed
			return
		}
	}
}

// prompt expands the prompt template from the session variables. "{host}"
// and "{path}" are substituted.
func prompt(s *evaluator.Session) string {
	template := s.Vars.GetString("prompt")
	if template == "" {
		template = "{path}> "
	}
	host, err := os.Hostname()
	if err != nil {
		host = "brine"
	}
	p := strings.ReplaceAll(template, "{host}", host)
	p = strings.ReplaceAll(p, "{path}", s.PathString())
	if !strings.HasSuffix(p, " ") {
		p += " "
	}
	return p
}

func runShellEscape(out io.Writer, command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(out, "!%s: %v\n", command, err)
	}
}

// completions suggests names for the word being typed: pipe stages after
// a "|", otherwise namespaces, commands and builtins visible from the
// working namespace.
func completions(s *evaluator.Session, input string) []string {
	if input == "" || input[len(input)-1] == ' ' || input[len(input)-1] == '\t' {
		return nil
	}
	words := strings.Fields(input)
	if len(words) == 0 {
		return nil
	}
	last := words[len(words)-1]
	prefix := input[:len(input)-len(last)]

	var candidates []string
	if afterPipe(words) {
		for name := range s.PipeCommands {
			candidates = append(candidates, name)
		}
	} else {
		cwd := s.CWD()
		for _, child := range cwd.Namespaces(s) {
			candidates = append(candidates, child.Name())
		}
		for name := range cwd.Commands(s) {
			candidates = append(candidates, name)
		}
		for name := range s.BuiltinCommands {
			candidates = append(candidates, name)
		}
		candidates = append(candidates, evaluator.BuiltinNames()...)
	}
	sort.Strings(candidates)

	var matches []string
	for _, c := range candidates {
		if strings.HasPrefix(c, last) {
			matches = append(matches, prefix+c)
		}
	}
	return matches
}

// afterPipe reports whether the word being completed is a pipeline stage
// head, the first word after the last "|".
func afterPipe(words []string) bool {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] == "|" {
			return i == len(words)-2
		}
		if strings.HasSuffix(words[i], "|") && i == len(words)-2 {
			return true
		}
	}
	return false
}

// needsMoreInput lexes the buffered input and reports whether a block is
// still open, so the loop can keep reading continuation lines.
func needsMoreInput(input string) bool {
	if strings.HasSuffix(strings.TrimRight(input, " \t"), "\\") {
		return true
	}
	l := lexer.New(input)
	l.SetRecover(true)
	depth := 0
	for {
		tok := l.NextToken()
		if tok.Type == lexer.EOF {
			break
		}
		switch tok.Type {
		case lexer.LBRACE, lexer.EOPEN, lexer.LPAREN, lexer.LBRACKET:
			depth++
		case lexer.RBRACE, lexer.RPAREN, lexer.RBRACKET:
			depth--
		}
	}
	return depth > 0
}
