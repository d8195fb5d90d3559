package evaluator

// Environment is a chain of name-to-value scopes. Lookup walks outward;
// definition always lands in the innermost scope.
type Environment struct {
	store map[string]Object
	outer *Environment
}

// NewEnvironment creates a new top-level environment
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Object)}
}

// NewEnclosedEnvironment creates a child environment chained to outer
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// Get looks a name up through the chain.
func (e *Environment) Get(name string) (Object, bool) {
	obj, ok := e.store[name]
	if !ok && e.outer != nil {
		return e.outer.Get(name)
	}
	return obj, ok
}

// Define creates or replaces a binding in this innermost scope.
func (e *Environment) Define(name string, val Object) {
	e.store[name] = val
}

// Assign mutates the nearest existing cell for name anywhere in the chain.
// If no cell exists the binding is created in the innermost scope, so plain
// assignment never implicitly creates a variable in an outer scope.
func (e *Environment) Assign(name string, val Object) {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.store[name]; ok {
			env.store[name] = val
			return
		}
	}
	e.store[name] = val
}

// Delete removes the nearest binding for name. Reports whether one existed.
func (e *Environment) Delete(name string) bool {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.store[name]; ok {
			delete(env.store, name)
			return true
		}
	}
	return false
}
