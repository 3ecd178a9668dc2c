package regvm

import "testing"

// TestTryUnwrapOkReplacesRegister exercises TRY_UNWRAP's Ok/ok path: the
// Enum payload replaces the operand register and execution falls through
// normally (spec.md §4.5, §8 scenario 5's `r = Ok(42)` half).
func TestTryUnwrapOkReplacesRegister(t *testing.T) {
	a := NewAssembler("tryok")
	cOk := a.Const(Enum(&EnumVal{EnumName: "Result", Tag: "Ok", Payload: []Value{Int(42)}}))
	a.ABx(OpLoadK, 0, int(cOk))
	a.ABC(OpTryUnwrap, 1, 0, 0)
	a.ABC(OpReturn, 1, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 42 {
		t.Errorf("expected try-unwrap Ok to yield 42, got %v", v.AsInt())
	}
}

// TestTryUnwrapMapFormOk exercises the Map `{tag: "ok", value: X}` Result
// convention spec.md §4.5 allows alongside Enum Ok(X).
func TestTryUnwrapMapFormOk(t *testing.T) {
	a := NewAssembler("tryunwrap-map")
	m := NewMap()
	m.Set("tag", Str("ok"))
	m.Set("value", Int(7))
	cMap := a.Const(Map(m))
	a.ABx(OpLoadK, 0, int(cMap))
	a.ABC(OpTryUnwrap, 1, 0, 0)
	a.ABC(OpReturn, 1, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 7 {
		t.Errorf("expected Map{tag:\"ok\",value:7} to unwrap to 7, got %v", v.AsInt())
	}
}

// TestTryUnwrapErrPropagatesAsFunctionReturn is spec.md §8 scenario 5's
// literal program: `let r = Err("bad"); let f = fn() { let v = r?; v * 2 };
// f()` must return `Err("bad")` itself — TRY_UNWRAP's Err branch must make
// the enclosing function return, not raise a catchable exception.
func TestTryUnwrapErrPropagatesAsFunctionReturn(t *testing.T) {
	inner := NewChunk("inner")
	inner.Locals = map[int]string{}
	ia := &Assembler{chunk: inner}
	cErr := ia.Const(Enum(&EnumVal{EnumName: "Result", Tag: "Err", Payload: []Value{Str("bad")}}))
	ia.ABx(OpLoadK, 0, int(cErr))
	ia.ABC(OpTryUnwrap, 1, 0, 0) // v = r?, should return here
	cTwo := ia.Const(Int(2))
	ia.ABx(OpLoadK, 2, int(cTwo))
	ia.ABC(OpMul, 1, 1, 2) // v * 2 -- must never run
	ia.ABC(OpReturn, 1, 0, 0)

	outer := NewAssembler("outer")
	protoIdx := outer.Const(Closure(&ClosureVal{Kind: ClosureBytecode, Proto: inner, Name: "inner"}))
	outer.ABx(OpClosure, 0, int(protoIdx))
	outer.ABC(OpCall, 0, 0, 0)
	outer.ABC(OpReturn, 0, 0, 0)

	v := runChunk(t, outer)
	if v.Kind() != KindEnum {
		t.Fatalf("expected Err result to propagate as the function's own return value, got kind %v", v.Kind())
	}
	e := v.AsEnum()
	if e.Tag != "Err" || len(e.Payload) != 1 || string(e.Payload[0].AsStr().Bytes) != "bad" {
		t.Errorf("expected Err(\"bad\") to propagate unchanged, got tag=%q payload=%v", e.Tag, e.Payload)
	}
}

// TestIterNextSentinelTerminatesLoop exercises ITERINIT/ITERNEXT's
// documented JMPFALSE-sentinel idiom (spec.md §4.5): the raw element (or
// Nil at exhaustion) must land directly in the destination register so a
// JMPFALSE fed that register actually detects the end of iteration.
func TestIterNextSentinelTerminatesLoop(t *testing.T) {
	a := NewAssembler("iternext")
	c10 := a.Const(Int(10))
	c20 := a.Const(Int(20))
	c30 := a.Const(Int(30))
	c0 := a.Const(Int(0))

	a.ABx(OpLoadK, 1, int(c10))
	a.ABx(OpLoadK, 2, int(c20))
	a.ABx(OpLoadK, 3, int(c30))
	a.ABC(OpNewArray, 0, 1, 3) // reg0 = [10, 20, 30]
	a.ABC(OpIterInit, 4, 0, 0) // reg4 = iterator over reg0
	a.ABx(OpLoadK, 5, int(c0)) // reg5 = sum = 0

	loopStart := a.Here()
	a.ABC(OpIterNext, 6, 4, 0) // reg6 = next element, or Nil at exhaustion
	exitJmp := a.AsBx(OpJmpFalse, 6, 0)
	a.ABC(OpAdd, 5, 5, 6)
	backPC := a.Here()
	a.SBx24(OpJmp, loopStart-backPC-1)
	a.PatchJump(exitJmp)
	a.ABC(OpReturn, 5, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 60 {
		t.Errorf("expected the loop to sum 10+20+30=60 and terminate, got %v", v.AsInt())
	}
}

// TestChannelRecvRawValueEndsLoop is spec.md §8 scenario 7's literal
// program: `let ch = channel(); spawn { ch.send(1); ch.send(2); ch.close() };
// let xs = []; loop { let v = ch.recv(); if v == () { break } xs.push(v) };
// xs` must yield `[1, 2]` — channel.recv must return the raw value (Unit on
// a closed-drained channel), not an Option-wrapped Enum, or `v == ()` never
// fires and the loop never terminates.
func TestChannelRecvRawValueEndsLoop(t *testing.T) {
	a := NewAssembler("channel-loop")
	ch := NewChannel(2)
	cCh := a.Const(Channel(ch))
	cSend := a.Const(Str("send"))
	cRecv := a.Const(Str("recv"))
	cClose := a.Const(Str("close"))
	cPush := a.Const(Str("push"))
	cOne := a.Const(Int(1))
	cTwo := a.Const(Int(2))

	a.ABx(OpLoadK, 0, int(cCh)) // reg0 = channel
	a.ABx(OpLoadK, 1, int(cOne))
	a.ABx(OpInvoke, 10, int(cSend))
	a.DataWord(uint32(0) | uint32(1)<<8 | uint32(1)<<16) // ch.send(1)

	a.ABx(OpLoadK, 1, int(cTwo))
	a.ABx(OpInvoke, 10, int(cSend))
	a.DataWord(uint32(0) | uint32(1)<<8 | uint32(1)<<16) // ch.send(2)

	a.ABx(OpInvoke, 10, int(cClose))
	a.DataWord(uint32(0)) // ch.close()

	a.ABC(OpNewArray, 2, 0, 0) // reg2 = xs = []
	a.ABC(OpLoadUnit, 3, 0, 0) // reg3 = ()

	loopStart := a.Here()
	a.ABx(OpInvoke, 4, int(cRecv))
	a.DataWord(uint32(0)) // reg4 = v = ch.recv()
	a.ABC(OpEq, 5, 4, 3)  // reg5 = (v == ())
	exitJmp := a.AsBx(OpJmpTrue, 5, 0)
	a.ABx(OpInvoke, 10, int(cPush))
	a.DataWord(uint32(2) | uint32(4)<<8 | uint32(1)<<16) // xs.push(v)
	backPC := a.Here()
	a.SBx24(OpJmp, loopStart-backPC-1)
	a.PatchJump(exitJmp)
	a.ABC(OpReturn, 2, 0, 0)

	v := runChunk(t, a)
	if v.Kind() != KindArray {
		t.Fatalf("expected an Array result, got kind %v", v.Kind())
	}
	elems := v.AsArray().Elems
	if len(elems) != 2 || elems[0].AsInt() != 1 || elems[1].AsInt() != 2 {
		t.Errorf("expected xs == [1, 2], got %v", elems)
	}
}

// TestDeferRunsLIFO is spec.md §8 scenario 6's shape: defers registered
// during a function body run in LIFO order when DEFER_RUN executes.
func TestDeferRunsLIFO(t *testing.T) {
	a := NewAssembler("defer-lifo")
	order := &ArrayVal{}
	record := func(rt *Runtime, args []Value) (Value, error) {
		order.Elems = append(order.Elems, args[0])
		return Unit, nil
	}
	cRecorder := a.Const(nativeClosure("record", 1, record))
	cOne := a.Const(Int(1))
	cTwo := a.Const(Int(2))

	a.ABx(OpLoadK, 0, int(cRecorder))
	a.ABx(OpLoadK, 1, int(cOne))
	a.ABC(OpDeferPush, 0, 1, 1) // defer record(1): closureReg=0, argc=1, argBase=1

	a.ABx(OpLoadK, 2, int(cTwo))
	a.ABC(OpDeferPush, 0, 1, 2) // defer record(2): closureReg=0, argc=1, argBase=2

	a.ABC(OpDeferRun, 0, 0, 0)
	a.ABC(OpLoadUnit, 3, 0, 0)
	a.ABC(OpReturn, 3, 0, 0)

	runChunk(t, a)
	if len(order.Elems) != 2 || order.Elems[0].AsInt() != 2 || order.Elems[1].AsInt() != 1 {
		t.Errorf("expected defers to run LIFO (2 then 1), got %v", order.Elems)
	}
}

// TestNewStructAppliesMetadataPhaseTags exercises NEWSTRUCT's struct
// metadata convention (spec.md §6): `__struct_<Name>` supplies canonical
// field order and `__struct_phases_<Name>` supplies per-field alloy phase
// tags applied at construction.
func TestNewStructAppliesMetadataPhaseTags(t *testing.T) {
	rt := New(DefaultConfig())
	rt.Globals.Define("__struct_Point", Array([]Value{Str("x"), Str("y")}))
	rt.Globals.Define("__struct_phases_Point", Array([]Value{Int(1), Int(0)})) // x=Crystal, y=Fluid

	a := NewAssembler("newstruct")
	cName := a.Const(Str("Point"))
	cX := a.Const(Str("x"))
	cY := a.Const(Str("y"))
	cOne := a.Const(Int(1))
	cTwo := a.Const(Int(2))

	a.ABx(OpLoadK, 1, int(cOne))
	a.ABx(OpLoadK, 2, int(cTwo))
	a.ABx(OpNewStruct, 0, int(cName))
	a.DataWord(uint32(cX) | uint32(1)<<16)
	a.DataWord(uint32(cY) | uint32(2)<<16)
	a.ABC(OpReturn, 0, 0, 0)

	v, err := rt.Run(a.Chunk(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := v.AsStruct()
	if len(s.FieldOrder) != 2 || s.FieldOrder[0] != "x" || s.FieldOrder[1] != "y" {
		t.Errorf("expected field order [x, y] from __struct_Point metadata, got %v", s.FieldOrder)
	}
	if s.Fields["x"].Phase() != PhaseCrystal {
		t.Errorf("expected field x to be tagged crystal per __struct_phases_Point, got %v", s.Fields["x"].Phase())
	}
	if s.FieldPhases["x"] != PhaseCrystal {
		t.Errorf("expected FieldPhases[x] == Crystal, got %v", s.FieldPhases["x"])
	}
}

// TestNativeCallSyncsNamedLocals exercises CALL resolution step 2 (spec.md
// §4.5): a native callee resolving a variable by name must see the calling
// frame's current named-local value, not an undefined binding.
func TestNativeCallSyncsNamedLocals(t *testing.T) {
	a := NewAssembler("native-sync")
	a.Local(3, "greeting")
	cGreeting := a.Const(Str("hello"))
	cDebugLocal := a.Const(nativeClosure("debug::local", 1, func(rt *Runtime, args []Value) (Value, error) {
		name := string(args[0].AsStr().Bytes)
		v, _ := rt.Globals.Get(name)
		return v, nil
	}))
	cArgName := a.Const(Str("greeting"))

	a.ABx(OpLoadK, 3, int(cGreeting)) // named local "greeting" = "hello"
	a.ABx(OpLoadK, 0, int(cDebugLocal))
	a.ABx(OpLoadK, 1, int(cArgName)) // call arg: which name to query
	a.ABC(OpCall, 0, 1, 0)           // reg0(closure)(reg1="greeting") -> reg0
	a.ABC(OpReturn, 0, 0, 0)

	v := runChunk(t, a)
	if v.kind != KindStr || string(v.AsStr().Bytes) != "hello" {
		t.Errorf("expected native callee to observe the caller's named local via sync, got %v", v)
	}
}
