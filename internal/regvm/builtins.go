package regvm

import (
	"fmt"
	"math"
)

// DefaultBuiltinModules is the fixed built-in module table SPEC_FULL.md
// §4.7 promises (grounded in the teacher's pkg/driver/builtin_modules.go
// ModuleBuilder pattern, there used to register a native paserati/http
// module — repurposed here to a small set of pre-built Maps rather than
// HTTP bindings, since outbound networking is out of scope). A host
// passes this to Config.BuiltinModules to enable "math"/"channels"/
// "debug" as IMPORT/REQUIRE specifiers; it is not wired in by
// DefaultConfig automatically, since not every embedder wants these
// names reserved.
func DefaultBuiltinModules() map[string]func() Value {
	return map[string]func() Value{
		"math":     mathModule,
		"channels": channelsModule,
		"debug":    debugModule,
	}
}

func nativeClosure(name string, arity int, fn NativeFn) Value {
	return Closure(&ClosureVal{Kind: ClosureNative, Native: fn, Arity: arity, Name: name})
}

func mathModule() Value {
	m := NewMap()
	m.Set("abs", nativeClosure("math::abs", 1, func(_ *Runtime, args []Value) (Value, error) {
		v, err := requireNumberArg(args, 0, "math.abs")
		if err != nil {
			return Value{}, err
		}
		return Float(math.Abs(v)), nil
	}))
	m.Set("sqrt", nativeClosure("math::sqrt", 1, func(_ *Runtime, args []Value) (Value, error) {
		v, err := requireNumberArg(args, 0, "math.sqrt")
		if err != nil {
			return Value{}, err
		}
		return Float(math.Sqrt(v)), nil
	}))
	m.Set("max", nativeClosure("math::max", 2, func(_ *Runtime, args []Value) (Value, error) {
		a, err := requireNumberArg(args, 0, "math.max")
		if err != nil {
			return Value{}, err
		}
		b, err := requireNumberArg(args, 1, "math.max")
		if err != nil {
			return Value{}, err
		}
		return Float(math.Max(a, b)), nil
	}))
	m.Set("min", nativeClosure("math::min", 2, func(_ *Runtime, args []Value) (Value, error) {
		a, err := requireNumberArg(args, 0, "math.min")
		if err != nil {
			return Value{}, err
		}
		b, err := requireNumberArg(args, 1, "math.min")
		if err != nil {
			return Value{}, err
		}
		return Float(math.Min(a, b)), nil
	}))
	return Map(m)
}

func channelsModule() Value {
	m := NewMap()
	m.Set("new", nativeClosure("channels::new", 1, func(_ *Runtime, args []Value) (Value, error) {
		capacity := int64(0)
		if len(args) > 0 {
			capacity = args[0].AsInt()
		}
		return Channel(NewChannel(int(capacity))), nil
	}))
	return Map(m)
}

// debugModule exercises native-callee local synchronization (spec.md
// §4.5 CALL resolution step 2): debug.local(name) reads the calling
// frame's named local current value by going through rt.Globals, which
// callClosure populates via syncLocalsToGlobals immediately before
// invoking any ClosureNative — a native function that resolves a
// variable by name rather than by argument, the case this step exists
// for.
func debugModule() Value {
	m := NewMap()
	m.Set("local", nativeClosure("debug::local", 1, func(rt *Runtime, args []Value) (Value, error) {
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, fmt.Errorf("debug.local requires a variable name Str")
		}
		name := string(args[0].AsStr().Bytes)
		v, ok := rt.Globals.Get(name)
		if !ok {
			return Unit, nil
		}
		return v, nil
	}))
	return Map(m)
}

func requireNumberArg(args []Value, i int, who string) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s requires %d argument(s)", who, i+1)
	}
	switch args[i].kind {
	case KindInt:
		return float64(args[i].AsInt()), nil
	case KindFloat:
		return args[i].AsFloat64(), nil
	default:
		return 0, fmt.Errorf("%s requires a numeric argument, got %s", who, args[i].Kind())
	}
}
