package regvm

import "testing"

func runChunk(t *testing.T, a *Assembler) Value {
	t.Helper()
	rt := New(DefaultConfig())
	v, err := rt.Run(a.Chunk(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func TestArithmeticAndReturn(t *testing.T) {
	a := NewAssembler("arith")
	c1 := a.Const(Int(40))
	c2 := a.Const(Int(2))
	a.ABx(OpLoadK, 0, int(c1))
	a.ABx(OpLoadK, 1, int(c2))
	a.ABC(OpAdd, 0, 0, 1)
	a.ABC(OpReturn, 0, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 42 {
		t.Errorf("expected 42, got %d", v.AsInt())
	}
}

func TestJumpFalseSkipsBranch(t *testing.T) {
	a := NewAssembler("branch")
	cFalse := a.Const(Bool(false))
	cOne := a.Const(Int(1))
	cTwo := a.Const(Int(2))

	a.ABx(OpLoadK, 0, int(cFalse))
	jmp := a.AsBx(OpJmpFalse, 0, 0)
	a.ABx(OpLoadK, 1, int(cOne)) // skipped
	a.PatchJump(jmp)
	a.ABx(OpLoadK, 1, int(cTwo))
	a.ABC(OpReturn, 1, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 2 {
		t.Errorf("expected branch to be skipped, got %d", v.AsInt())
	}
}

func TestThrowUnwindsToHandler(t *testing.T) {
	a := NewAssembler("throw")
	cErr := a.Const(Str("boom"))
	cRecovered := a.Const(Int(7))

	push := a.AsBx(OpPushHandler, 2, 0) // excReg=2, target patched below
	a.ABx(OpLoadK, 0, int(cErr))
	a.ABC(OpThrow, 0, 0, 0)
	a.PatchJump(push)
	a.ABx(OpLoadK, 3, int(cRecovered))
	a.ABC(OpReturn, 3, 0, 0)

	v := runChunk(t, a)
	if v.AsInt() != 7 {
		t.Errorf("expected handler to run and return 7, got %d", v.AsInt())
	}
}

func TestFreezeVarRejectsIndexMutation(t *testing.T) {
	a := NewAssembler("freeze")
	a.Local(0, "xs")
	cOne := a.Const(Int(1))
	cZero := a.Const(Int(0))
	cNine := a.Const(Int(9))

	a.ABx(OpLoadK, 1, int(cOne))
	a.ABC(OpNewArray, 0, 1, 1) // xs = [1]
	a.ABC(OpFreezeVar, 0, 0, 0)

	push := a.AsBx(OpPushHandler, 4, 0)
	a.ABx(OpLoadK, 2, int(cZero))
	a.ABx(OpLoadK, 3, int(cNine))
	a.ABC(OpSetIndex, 0, 2, 3) // xs[0] = 9, should fail: xs is crystal
	a.PatchJump(push)
	a.ABC(OpIsCrystal, 5, 0, 0)
	a.ABC(OpReturn, 5, 0, 0)

	v := runChunk(t, a)
	if !v.IsTruthy() {
		t.Errorf("expected xs to remain crystal after a rejected index mutation")
	}
}

func TestCallClosureAndUpvalue(t *testing.T) {
	inner := NewChunk("inner")
	inner.Locals = map[int]string{}
	ia := &Assembler{chunk: inner}
	cTen := ia.Const(Int(10))
	ia.ABx(OpLoadK, 1, int(cTen))
	ia.ABC(OpGetUpvalue, 2, 0, 0)
	ia.ABC(OpAdd, 1, 1, 2)
	ia.ABC(OpReturn, 1, 0, 0)

	outer := NewAssembler("outer")
	cFive := outer.Const(Int(5))
	protoTemplate := Closure(&ClosureVal{Kind: ClosureBytecode, Proto: inner, Name: "inner"})
	protoIdx := outer.Const(protoTemplate)

	outer.ABx(OpLoadK, 1, int(cFive))
	outer.ABx(OpClosure, 0, int(protoIdx))
	outer.DataWord(0x10000 | 1) // capture local register 1
	outer.ABC(OpCall, 0, 0, 0)
	outer.ABC(OpReturn, 0, 0, 0)

	v := runChunk(t, outer)
	if v.AsInt() != 15 {
		t.Errorf("expected closure call to add captured upvalue (5) to 10, got %d", v.AsInt())
	}
}
