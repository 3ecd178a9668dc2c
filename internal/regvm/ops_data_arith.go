package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// execDataArith handles data movement, arithmetic/logic/bitwise and
// comparison opcodes (spec.md §4.5). All of these are ABC-encoded: most
// write into A from B (and C), LOADK/LOADI use A + a 16-bit immediate.
func (rt *Runtime) execDataArith(f *Frame, ins Instruction) error {
	chunk := f.Closure.Proto
	line := chunk.Line(f.PC)

	switch ins.Op() {
	case OpMove:
		*rt.reg(f, ins.A()) = *rt.reg(f, ins.B())
	case OpLoadK:
		*rt.reg(f, ins.A()) = chunk.Constants[ins.Bx()]
	case OpLoadI:
		*rt.reg(f, ins.A()) = Int(int64(ins.SBx()))
	case OpLoadNil:
		*rt.reg(f, ins.A()) = Nil
	case OpLoadTrue:
		*rt.reg(f, ins.A()) = Bool(true)
	case OpLoadFalse:
		*rt.reg(f, ins.A()) = Bool(false)
	case OpLoadUnit:
		*rt.reg(f, ins.A()) = Unit

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		b, c := *rt.reg(f, ins.B()), *rt.reg(f, ins.C())
		var res Value
		var err error
		switch ins.Op() {
		case OpAdd:
			if b.kind == KindStr && c.kind == KindStr {
				res = rt.concatStrings(b, c)
			} else {
				res, err = Add(b, c)
			}
		case OpSub:
			res, err = Sub(b, c)
		case OpMul:
			res, err = Mul(b, c)
		case OpDiv:
			res, err = Div(b, c)
		case OpMod:
			res, err = Mod(b, c)
		}
		if err != nil {
			return regvmerr.New(regvmerr.KindArithmetic, line, "%s", err.Error())
		}
		*rt.reg(f, ins.A()) = res

	case OpAddI:
		b := *rt.reg(f, ins.B())
		if !b.IsInt() {
			return regvmerr.New(regvmerr.KindType, line, "ADDI requires an Int operand, got %s", b.Kind())
		}
		*rt.reg(f, ins.A()) = Int(b.AsInt() + int64(int8(ins.C())))

	case OpNeg:
		b := *rt.reg(f, ins.B())
		switch {
		case b.IsInt():
			*rt.reg(f, ins.A()) = Int(-b.AsInt())
		case b.IsFloat():
			*rt.reg(f, ins.A()) = Float(-b.AsFloat())
		default:
			return regvmerr.New(regvmerr.KindType, line, "cannot negate %s", b.Kind())
		}

	case OpNot:
		*rt.reg(f, ins.A()) = Bool(!rt.reg(f, ins.B()).IsTruthy())

	case OpBitAnd, OpBitOr, OpBitXor, OpLShift, OpRShift:
		b, c := *rt.reg(f, ins.B()), *rt.reg(f, ins.C())
		if !b.IsInt() || !c.IsInt() {
			return regvmerr.New(regvmerr.KindType, line, "bitwise op requires Int operands")
		}
		x, y := b.AsInt(), c.AsInt()
		switch ins.Op() {
		case OpBitAnd:
			*rt.reg(f, ins.A()) = Int(x & y)
		case OpBitOr:
			*rt.reg(f, ins.A()) = Int(x | y)
		case OpBitXor:
			*rt.reg(f, ins.A()) = Int(x ^ y)
		case OpLShift, OpRShift:
			if y < 0 || y > 63 {
				return regvmerr.New(regvmerr.KindArithmetic, line, "shift amount %d out of range [0,63]", y)
			}
			if ins.Op() == OpLShift {
				*rt.reg(f, ins.A()) = Int(x << uint(y))
			} else {
				*rt.reg(f, ins.A()) = Int(x >> uint(y))
			}
		}

	case OpBitNot:
		b := *rt.reg(f, ins.B())
		if !b.IsInt() {
			return regvmerr.New(regvmerr.KindType, line, "bitwise NOT requires an Int operand")
		}
		*rt.reg(f, ins.A()) = Int(^b.AsInt())

	case OpEq:
		*rt.reg(f, ins.A()) = Bool(Eq(*rt.reg(f, ins.B()), *rt.reg(f, ins.C())))
	case OpNeq:
		*rt.reg(f, ins.A()) = Bool(!Eq(*rt.reg(f, ins.B()), *rt.reg(f, ins.C())))

	case OpLt, OpLtEq, OpGt, OpGtEq:
		cmp, err := Compare(*rt.reg(f, ins.B()), *rt.reg(f, ins.C()))
		if err != nil {
			return regvmerr.New(regvmerr.KindType, line, "%s", err.Error())
		}
		var res bool
		switch ins.Op() {
		case OpLt:
			res = cmp < 0
		case OpLtEq:
			res = cmp <= 0
		case OpGt:
			res = cmp > 0
		case OpGtEq:
			res = cmp >= 0
		}
		*rt.reg(f, ins.A()) = Bool(res)

	case OpConcat:
		b, c := *rt.reg(f, ins.B()), *rt.reg(f, ins.C())
		*rt.reg(f, ins.A()) = rt.concatDisplay(b, c)

	default:
		return regvmerr.New(regvmerr.KindBytecode, line, "execDataArith: unexpected opcode %s", ins.Op())
	}
	return nil
}

// concatStrings implements string `+`: concatenation into the bump
// arena (spec.md §4.5).
func (rt *Runtime) concatStrings(a, b Value) Value {
	as, bs := string(a.AsStr().Bytes), string(b.AsStr().Bytes)
	buf := rt.Arena.Strdup(as + bs)
	return ArenaStr(buf)
}

// concatDisplay implements CONCAT: both sides are coerced with display
// and joined into the bump arena (spec.md §4.5).
func (rt *Runtime) concatDisplay(a, b Value) Value {
	buf := rt.Arena.Strdup(Display(a) + Display(b))
	return ArenaStr(buf)
}
