package regvm

import (
	"path/filepath"
	"strings"

	"github.com/phasescript/regvm/internal/regvmerr"
)

// execModuleOp implements IMPORT and REQUIRE (spec.md §4.5, §6,
// SPEC_FULL.md §4.7), both funneled through rt.Modules (an
// internal/modules.Registry) so the same resolved path loads exactly
// once regardless of how many IMPORT/REQUIRE sites reference it
// (spec.md §8 property 6).
//
// IMPORT: A=destReg, Bx=specifier constant index. Runs the module body
// in an isolated Environment scope, harvests its bindings into a Map
// filtered by the module chunk's ExportNames (or every non-"__"-
// prefixed name when the export list is empty), copies each harvested
// binding back into the base scope so sibling closures compiled
// against the importing chunk can still resolve the module's names
// unqualified, and writes the Map into destReg.
//
// REQUIRE: A=destReg, Bx=specifier constant index. Skips scope
// isolation entirely — the module's DEFINEGLOBALs land directly in the
// current globals — and writes a Bool (true on first load, false if
// already cached) into destReg.
func (rt *Runtime) execModuleOp(f *Frame, ins Instruction) error {
	chunk := f.Closure.Proto
	line := chunk.Line(f.PC)
	destReg := ins.A()
	specifier := string(chunk.Constants[ins.Bx()].AsStr().Bytes)

	fromDir := ""
	if chunk.Name != "" {
		fromDir = filepath.Dir(chunk.Name)
	}

	switch ins.Op() {
	case OpImport:
		ns, err := rt.loadModule(specifier, fromDir)
		if err != nil {
			return err
		}
		result := NewMap()
		for _, name := range ns.order {
			result.Set(name, ns.values[name])
			rt.Globals.DefineAt(0, name, ns.values[name])
		}
		*rt.reg(f, destReg) = Map(result)
		return nil

	case OpRequire:
		resolvedPath, alreadyLoaded, err := rt.requireModule(specifier, fromDir)
		if err != nil {
			return regvmerr.New(regvmerr.KindModule, line, "%s", err.Error())
		}
		_ = resolvedPath
		*rt.reg(f, destReg) = Bool(!alreadyLoaded)
		return nil

	default:
		return regvmerr.New(regvmerr.KindBytecode, line, "unexpected module opcode %s", ins.Op())
	}
}

// moduleNamespace is the harvested result of running a module body:
// a list of names plus their values. For a built-in module the list
// follows its Map's insertion order; for a loaded module it is built
// from the cached exports map, so its order is not defined.
type moduleNamespace struct {
	order  []string
	values map[string]Value
}

// loadModule resolves and runs specifier in an isolated scope, caching
// the harvested namespace by resolved path via rt.Modules.
func (rt *Runtime) loadModule(specifier, fromDir string) (*moduleNamespace, error) {
	if builtin, ok := rt.builtinModule(specifier); ok {
		return builtin, nil
	}

	resolvedPath, chunk, err := rt.resolveAndCompile(specifier, fromDir)
	if err != nil {
		return nil, err
	}

	result, err := rt.Modules.Ensure(resolvedPath, func() (*ModuleResult, error) {
		rt.Globals.PushScope()
		depth := rt.Globals.Depth() - 1
		closure := &ClosureVal{Kind: ClosureBytecode, Proto: chunk, Name: chunk.Name}
		runResult, runErr := rt.callClosure(closure, nil)

		exported := chunk.ExportNames
		if len(exported) == 0 {
			exported = nil
			for _, name := range rt.Globals.namesAt(depth) {
				if !strings.HasPrefix(name, "__") {
					exported = append(exported, name)
				}
			}
		}
		values := make(map[string]Value, len(exported))
		for _, name := range exported {
			if v, ok := rt.Globals.Get(name); ok {
				values[name] = v
			}
		}
		rt.Globals.PopScope()
		if runErr != nil {
			return nil, runErr
		}
		return &ModuleResult{Exports: values, Result: runResult}, nil
	})
	if err != nil {
		return nil, err
	}

	ns := &moduleNamespace{values: result.Exports}
	for name := range result.Exports {
		ns.order = append(ns.order, name)
	}
	return ns, nil
}

// requireModule runs specifier's chunk directly in the current globals
// (no isolation), deduplicating by resolved path. The bool return
// reports whether the module had already been loaded.
func (rt *Runtime) requireModule(specifier, fromDir string) (string, bool, error) {
	if _, ok := rt.builtinModule(specifier); ok {
		return "builtin:" + specifier, false, nil
	}

	resolvedPath, chunk, err := rt.resolveAndCompile(specifier, fromDir)
	if err != nil {
		return "", false, err
	}

	alreadyLoaded := rt.Modules.Get(resolvedPath) != nil
	_, err = rt.Modules.Ensure(resolvedPath, func() (*ModuleResult, error) {
		closure := &ClosureVal{Kind: ClosureBytecode, Proto: chunk, Name: chunk.Name}
		result, runErr := rt.callClosure(closure, nil)
		if runErr != nil {
			return nil, runErr
		}
		return &ModuleResult{Result: result}, nil
	})
	return resolvedPath, alreadyLoaded, err
}

func (rt *Runtime) resolveAndCompile(specifier, fromDir string) (string, *Chunk, error) {
	if rt.Resolver == nil {
		return "", nil, regvmerr.New(regvmerr.KindModule, 0, "no module resolver configured")
	}
	resolvedPath, source, err := rt.Resolver.Resolve(specifier, fromDir)
	if err != nil {
		return "", nil, regvmerr.New(regvmerr.KindModule, 0, "%s", err.Error())
	}
	if rt.Modules.Get(resolvedPath) != nil {
		// Already cached: Ensure will not call its load func, so no chunk
		// is needed and the source is not compiled again.
		return resolvedPath, nil, nil
	}
	if rt.cfg.Compile == nil {
		return "", nil, regvmerr.New(regvmerr.KindModule, 0, "no compiler configured to build module %q", specifier)
	}
	chunk, err := rt.cfg.Compile(resolvedPath, source)
	if err != nil {
		return "", nil, regvmerr.New(regvmerr.KindModule, 0, "compiling %q: %s", specifier, err.Error())
	}
	if chunk.Magic != RegChunkMagic {
		return "", nil, regvmerr.New(regvmerr.KindModule, 0, "module %q compiled to a non-register-VM chunk", specifier)
	}
	return resolvedPath, chunk, nil
}

// builtinModule consults the fixed built-in module table (SPEC_FULL.md
// §4.7) before touching the resolver at all, keyed by the bare
// specifier with its canonical extension stripped.
func (rt *Runtime) builtinModule(specifier string) (*moduleNamespace, bool) {
	if rt.cfg.BuiltinModules == nil {
		return nil, false
	}
	key := strings.TrimSuffix(specifier, ".phase")
	build, ok := rt.cfg.BuiltinModules[key]
	if !ok {
		return nil, false
	}
	ns := build()
	if ns.kind != KindMap {
		return &moduleNamespace{values: map[string]Value{}}, true
	}
	m := ns.AsMap()
	out := &moduleNamespace{values: make(map[string]Value, len(m.Order))}
	for _, k := range m.Order {
		out.values[k] = m.Items[k]
		out.order = append(out.order, k)
	}
	return out, true
}
