// Package config holds the shell's session variables and their persisted
// form: a YAML file with environment-variable interpolation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// VarKind is the declared type of a session variable
type VarKind int

const (
	KindString VarKind = iota
	KindInt
	KindBool
)

// Variable is one typed session variable. Choices, when set, restricts the
// accepted string values.
type Variable struct {
	Kind    VarKind
	Value   any
	Default any
	Choices []string
}

// VarStore holds the typed session variables. Safe for concurrent use: the
// REPL reads the prompt variable while background notifications print.
type VarStore struct {
	mu    sync.RWMutex
	vars  map[string]*Variable
	order []string
}

// NewVarStore creates an empty variable store
func NewVarStore() *VarStore {
	return &VarStore{vars: make(map[string]*Variable)}
}

// DefaultVarStore creates a store with the standard shell variables.
func DefaultVarStore() *VarStore {
	vs := NewVarStore()
	vs.Register("output_format", &Variable{
		Kind:    KindString,
		Default: "ascii",
		Choices: []string{"ascii", "json", "yaml"},
	})
	vs.Register("datetime_format", &Variable{Kind: KindString, Default: "natural"})
	vs.Register("language", &Variable{Kind: KindString, Default: "en"})
	vs.Register("prompt", &Variable{Kind: KindString, Default: "{host}:{path}>"})
	vs.Register("timeout", &Variable{Kind: KindInt, Default: int64(10)})
	vs.Register("tasks_blocking", &Variable{Kind: KindBool, Default: false})
	vs.Register("show_events", &Variable{Kind: KindBool, Default: true})
	vs.Register("debug", &Variable{Kind: KindBool, Default: false})
	return vs
}

// Register adds a variable definition, initialised to its default.
func (vs *VarStore) Register(name string, v *Variable) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if v.Value == nil {
		v.Value = v.Default
	}
	if _, ok := vs.vars[name]; !ok {
		vs.order = append(vs.order, name)
	}
	vs.vars[name] = v
}

// Get returns a variable's current value.
func (vs *VarStore) Get(name string) (any, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.vars[name]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// GetString returns a string variable, or its zero value if absent.
func (vs *VarStore) GetString(name string) string {
	v, ok := vs.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt returns an integer variable, or zero if absent.
func (vs *VarStore) GetInt(name string) int64 {
	v, ok := vs.Get(name)
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

// GetBool returns a boolean variable, or false if absent.
func (vs *VarStore) GetBool(name string) bool {
	v, ok := vs.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Set assigns a variable, validating against its declared type and choices.
// The value may be a string form ("10", "true"), converted per the kind.
func (vs *VarStore) Set(name string, value any) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.vars[name]
	if !ok {
		return fmt.Errorf("no such variable: %s", name)
	}
	converted, err := convert(v.Kind, value)
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	if len(v.Choices) > 0 {
		s := converted.(string)
		found := false
		for _, c := range v.Choices {
			if c == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("variable %s must be one of: %s", name, strings.Join(v.Choices, ", "))
		}
	}
	v.Value = converted
	return nil
}

// Names returns the variable names in registration order.
func (vs *VarStore) Names() []string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make([]string, len(vs.order))
	copy(out, vs.order)
	return out
}

// Snapshot returns a copy of all current values.
func (vs *VarStore) Snapshot() map[string]any {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make(map[string]any, len(vs.vars))
	for name, v := range vs.vars {
		out[name] = v.Value
	}
	return out
}

func convert(kind VarKind, value any) (any, error) {
	switch kind {
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprint(v), nil
		}
	case KindInt:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected an integer, got %v", v)
		}
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected a boolean, got %v", v)
		}
	}
	return nil, fmt.Errorf("unknown variable kind")
}

// Save writes the current values as YAML.
func (vs *VarStore) Save(path string) error {
	vs.mu.RLock()
	values := make(map[string]any, len(vs.vars))
	for name, v := range vs.vars {
		values[name] = v.Value
	}
	vs.mu.RUnlock()

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Load reads saved variables from a file with ENV interpolation, applying
// them over the defaults. If configPath is empty, default locations are
// searched; a missing file is not an error.
func (vs *VarStore) Load(configPath string, getenv func(string) string) error {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	data = interpolateEnv(data, getenv)

	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply in sorted order so errors are deterministic.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := values[name]
		if n, ok := value.(int); ok {
			value = int64(n)
		}
		if err := vs.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// resolveConfigPath finds the config file to load. An explicit path must
// exist; otherwise BRINE_CONFIG, ./brine.yaml and ~/.config/brine/brine.yaml
// are tried, and "" is returned when none exists.
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("BRINE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("BRINE_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("brine.yaml"); err == nil {
		return "brine.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "brine", "brine.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// DefaultSavePath is where saveenv writes when no path is given.
func DefaultSavePath(getenv func(string) string) string {
	if envPath := getenv("BRINE_CONFIG"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "brine.yaml"
	}
	return filepath.Join(home, ".config", "brine", "brine.yaml")
}

// envPattern matches ${VAR} and ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{(\w+)(?::-([^}]*))?\}`)

// interpolateEnv substitutes ${VAR} references in the raw config text.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}
