package regvm

import "testing"

// Direct method-table tests exercise invokeMethod without hand-assembling
// an INVOKE instruction for every kind, closing the bulk of the "no
// method table has coverage" gap; the bytecode-level tests further down
// cover the dispatch opcodes themselves.

func TestArrayMethodsPushPopMapFilter(t *testing.T) {
	rt := New(DefaultConfig())
	arr := Array([]Value{Int(1), Int(2), Int(3)})

	if _, err := rt.invokeMethod(arr, "push", []Value{Int(4)}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := arr.AsArray().Elems; len(got) != 4 || got[3].AsInt() != 4 {
		t.Errorf("expected push to append 4, got %v", got)
	}

	popped, err := rt.invokeMethod(arr, "pop", nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if popped.AsInt() != 4 {
		t.Errorf("expected pop to return 4, got %v", popped.AsInt())
	}

	double := nativeClosure("double", 1, func(_ *Runtime, args []Value) (Value, error) {
		return Int(args[0].AsInt() * 2), nil
	})
	mapped, err := rt.invokeMethod(arr, "map", []Value{double})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got := mapped.AsArray().Elems; len(got) != 3 || got[0].AsInt() != 2 || got[2].AsInt() != 6 {
		t.Errorf("expected map to double every element, got %v", got)
	}

	isEven := nativeClosure("is_even", 1, func(_ *Runtime, args []Value) (Value, error) {
		return Bool(args[0].AsInt()%2 == 0), nil
	})
	filtered, err := rt.invokeMethod(arr, "filter", []Value{isEven})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := filtered.AsArray().Elems; len(got) != 1 || got[0].AsInt() != 2 {
		t.Errorf("expected filter to keep only 2, got %v", got)
	}
}

func TestArrayPushRejectsCrystalMutation(t *testing.T) {
	rt := New(DefaultConfig())
	arr := Array([]Value{Int(1)}).WithPhase(PhaseCrystal)
	if _, err := rt.invokeMethod(arr, "push", []Value{Int(2)}); err == nil {
		t.Error("expected push on a crystal array to fail")
	}
}

func TestMapMethodsSetGetHas(t *testing.T) {
	rt := New(DefaultConfig())
	m := Map(NewMap())

	if _, err := rt.invokeMethod(m, "set", []Value{Str("a"), Int(1)}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := rt.invokeMethod(m, "get", []Value{Str("a")})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e := got.AsEnum()
	if e.Tag != "Some" || e.Payload[0].AsInt() != 1 {
		t.Errorf("expected get(\"a\") -> Some(1), got tag=%q payload=%v", e.Tag, e.Payload)
	}

	has, err := rt.invokeMethod(m, "has", []Value{Str("missing")})
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has.IsTruthy() {
		t.Error("expected has(\"missing\") to be false")
	}
}

func TestSetMethodsAddUnion(t *testing.T) {
	rt := New(DefaultConfig())
	sv := NewSet()
	sv.Add("x", Str("x"))
	s := Set(sv)

	other := NewSet()
	other.Add("y", Str("y"))

	union, err := rt.invokeMethod(s, "union", []Value{Set(other)})
	if err != nil {
		t.Fatalf("union: %v", err)
	}
	if len(union.AsSet().Items) != 2 {
		t.Errorf("expected union of {x} and {y} to have 2 members, got %v", union.AsSet().Items)
	}
}

func TestStringMethodsUpperSplit(t *testing.T) {
	rt := New(DefaultConfig())
	s := Str("a,b,c")

	upper, err := rt.invokeMethod(Str("hi"), "upper", nil)
	if err != nil {
		t.Fatalf("upper: %v", err)
	}
	if string(upper.AsStr().Bytes) != "HI" {
		t.Errorf("expected upper(\"hi\") == \"HI\", got %q", upper.AsStr().Bytes)
	}

	split, err := rt.invokeMethod(s, "split", []Value{Str(",")})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	parts := split.AsArray().Elems
	if len(parts) != 3 || string(parts[1].AsStr().Bytes) != "b" {
		t.Errorf("expected split(\",\") -> [a,b,c], got %v", parts)
	}
}

func TestEnumMethodIsAndUnwrap(t *testing.T) {
	rt := New(DefaultConfig())
	e := Enum(&EnumVal{EnumName: "Option", Tag: "Some", Payload: []Value{Int(9)}})

	isSome, err := rt.invokeMethod(e, "is", []Value{Str("Some")})
	if err != nil {
		t.Fatalf("is: %v", err)
	}
	if !isSome.IsTruthy() {
		t.Error("expected e.is(\"Some\") to be true")
	}

	unwrapped, err := rt.invokeMethod(e, "unwrap", nil)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if unwrapped.AsInt() != 9 {
		t.Errorf("expected unwrap to yield 9, got %v", unwrapped.AsInt())
	}
}

func TestRangeMethodsLenContainsToArray(t *testing.T) {
	rt := New(DefaultConfig())
	r := Range(RangeVal{Start: 0, Stop: 5, Step: 1, Inclusive: false})

	length, err := rt.invokeMethod(r, "len", nil)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if length.AsInt() != 5 {
		t.Errorf("expected range(0,5).len() == 5, got %v", length.AsInt())
	}

	contains, err := rt.invokeMethod(r, "contains", []Value{Int(4)})
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !contains.IsTruthy() {
		t.Error("expected range(0,5).contains(4) to be true")
	}

	arr, err := rt.invokeMethod(r, "to_array", nil)
	if err != nil {
		t.Fatalf("to_array: %v", err)
	}
	if elems := arr.AsArray().Elems; len(elems) != 5 || elems[4].AsInt() != 4 {
		t.Errorf("expected to_array() -> [0,1,2,3,4], got %v", elems)
	}
}

// TestInvokeLocalAndInvokeGlobal exercises the INVOKE_LOCAL/INVOKE_GLOBAL
// opcodes, which resolve their receiver by name rather than by register
// (spec.md §4.5, §4.4's follow-up word layout for these two opcodes).
func TestInvokeLocalAndInvokeGlobal(t *testing.T) {
	a := NewAssembler("invoke-local-global")
	a.Local(0, "xs")
	cLocalName := a.Const(Str("xs"))
	cPush := a.Const(Str("push"))
	cOne := a.Const(Int(1))
	cGlobalName := a.Const(Str("counter"))
	cLen := a.Const(Str("len"))

	a.ABC(OpNewArray, 0, 0, 0) // reg0 = xs = [] (named local)
	a.ABx(OpLoadK, 1, int(cOne))
	a.ABx(OpInvokeLocal, 2, int(cPush))
	a.DataWord(uint32(cLocalName) | uint32(1)<<16 | uint32(1)<<24) // xs.push(1) by name

	a.ABC(OpNewArray, 3, 0, 0)
	a.ABx(OpDefineGlobal, 3, int(cGlobalName)) // global "counter" = []
	a.ABx(OpInvokeGlobal, 4, int(cLen))
	a.DataWord(uint32(cGlobalName)) // reg4 = counter.len()

	a.ABC(OpReturn, 4, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 0 {
		t.Errorf("expected counter.len() == 0, got %v", v.AsInt())
	}
}

// TestScopeRunsSyncAndSpawns exercises SCOPE (spec.md §4.5, §5): it runs
// the sync closure plus every spawn closure and collects their results,
// sync result first.
func TestScopeRunsSyncAndSpawns(t *testing.T) {
	sync := NewChunk("sync")
	sync.Locals = map[int]string{}
	sa := &Assembler{chunk: sync}
	cTen := sa.Const(Int(10))
	sa.ABx(OpLoadK, 0, int(cTen))
	sa.ABC(OpReturn, 0, 0, 0)

	spawn := NewChunk("spawn")
	spawn.Locals = map[int]string{}
	pa := &Assembler{chunk: spawn}
	cTwenty := pa.Const(Int(20))
	pa.ABx(OpLoadK, 0, int(cTwenty))
	pa.ABC(OpReturn, 0, 0, 0)

	outer := NewAssembler("scope")
	cSync := outer.Const(Closure(&ClosureVal{Kind: ClosureBytecode, Proto: sync, Name: "sync"}))
	cSpawn := outer.Const(Closure(&ClosureVal{Kind: ClosureBytecode, Proto: spawn, Name: "spawn"}))

	outer.ABx(OpScope, 0, int(cSync))
	outer.DataWord(1)                // one spawn
	outer.DataWord(uint32(cSpawn))   // spawn-closure constant index, packed low byte
	outer.ABC(OpReturn, 0, 0, 0)

	v := runChunk(t, outer)
	elems := v.AsArray().Elems
	if len(elems) != 2 || elems[0].AsInt() != 10 || elems[1].AsInt() != 20 {
		t.Errorf("expected SCOPE to yield [sync=10, spawn=20], got %v", elems)
	}
}

// TestImportLoadsBuiltinMathModule exercises IMPORT against the built-in
// module table (spec.md §4.7): "math" resolves without touching the
// Resolver/Compile path and its exported closures are directly callable.
func TestImportLoadsBuiltinMathModule(t *testing.T) {
	rt := New(DefaultConfig())
	rt.cfg.BuiltinModules = DefaultBuiltinModules()

	a := NewAssembler("import-math")
	cSpec := a.Const(Str("math"))
	a.ABx(OpImport, 0, int(cSpec))
	a.ABC(OpReturn, 0, 0, 0)

	v, err := rt.Run(a.Chunk(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind() != KindMap {
		t.Fatalf("expected IMPORT to yield a Map namespace, got kind %v", v.Kind())
	}
	absFn, ok := v.AsMap().Get("abs")
	if !ok || absFn.kind != KindClosure {
		t.Fatalf("expected math module to export an \"abs\" closure")
	}
	result, err := rt.callClosure(absFn.AsClosure(), []Value{Float(-3)})
	if err != nil {
		t.Fatalf("math.abs(-3): %v", err)
	}
	if result.AsFloat64() != 3 {
		t.Errorf("expected math.abs(-3) == 3, got %v", result.AsFloat64())
	}
}
