package regvm

import "fmt"

// scope is one lexical block of named bindings, used for globals and for
// named-local tracking (FREEZE_VAR/THAW_VAR/SUBLIMATE_VAR resolve a
// register through Chunk.Locals, but reactive bindings and module
// namespaces are tracked here by name instead of register index, since
// they must survive frame teardown — spec.md §3, §4.5). Bindings are
// boxed (*Value) so GetRef can hand out a stable alias for reactions and
// tracked-variable history to observe in place.
type scope struct {
	vars map[string]*Value
}

func newScope() *scope {
	return &scope{vars: make(map[string]*Value)}
}

// Environment is a stack of scopes, innermost last. It backs global
// bindings (scope 0) plus the per-IMPORT isolated namespaces spec.md
// §4.5 describes ("IMPORT runs the module body in an isolated scope").
type Environment struct {
	scopes []*scope
}

func NewEnvironment() *Environment {
	e := &Environment{}
	e.PushScope()
	return e
}

func (e *Environment) PushScope() {
	e.scopes = append(e.scopes, newScope())
}

func (e *Environment) PopScope() {
	if len(e.scopes) == 0 {
		return
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

func (e *Environment) Depth() int { return len(e.scopes) }

// Define binds name in the innermost scope, shadowing any outer binding.
func (e *Environment) Define(name string, v Value) {
	cell := v
	e.scopes[len(e.scopes)-1].vars[name] = &cell
}

// DefineAt binds name at a specific scope depth (0 = outermost/global),
// used when restoring bindings copied back from an isolated IMPORT scope.
func (e *Environment) DefineAt(depth int, name string, v Value) error {
	if depth < 0 || depth >= len(e.scopes) {
		return fmt.Errorf("environment: scope depth %d out of range", depth)
	}
	cell := v
	e.scopes[depth].vars[name] = &cell
	return nil
}

// Get looks up name from innermost to outermost scope.
func (e *Environment) Get(name string) (Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if cell, ok := e.scopes[i].vars[name]; ok {
			return *cell, true
		}
	}
	return Value{}, false
}

// Set assigns to the nearest existing binding of name, failing if none
// exists (no implicit global creation — DEFINE_GLOBAL is explicit,
// spec.md §4.5).
func (e *Environment) Set(name string, v Value) bool {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if cell, ok := e.scopes[i].vars[name]; ok {
			*cell = v
			return true
		}
	}
	return false
}

// GetRef returns the live binding cell so callers (tracked-variable
// history, reactions, bonds) can observe future writes made through Set
// without re-resolving the name each time.
func (e *Environment) GetRef(name string) (*Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if cell, ok := e.scopes[i].vars[name]; ok {
			return cell, true
		}
	}
	return nil, false
}

// Names returns every name visible from the innermost scope outward,
// de-duplicated by nearest binding — used by IMPORT's export-name
// filtering and by REQUIRE's whole-namespace copy (spec.md §4.5).
func (e *Environment) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for i := len(e.scopes) - 1; i >= 0; i-- {
		for name := range e.scopes[i].vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// namesAt returns only the names bound directly in the scope at depth
// (not inherited from outer scopes), for IMPORT's export harvest which
// must see exactly what the module body itself defined.
func (e *Environment) namesAt(depth int) []string {
	if depth < 0 || depth >= len(e.scopes) {
		return nil
	}
	names := make([]string, 0, len(e.scopes[depth].vars))
	for name := range e.scopes[depth].vars {
		names = append(names, name)
	}
	return names
}

// IterValues calls fn for every (name, value) visible from the innermost
// scope outward, stopping early if fn returns false.
func (e *Environment) IterValues(fn func(name string, v Value) bool) {
	seen := make(map[string]bool)
	for i := len(e.scopes) - 1; i >= 0; i-- {
		for name, cell := range e.scopes[i].vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !fn(name, *cell) {
				return
			}
		}
	}
}
