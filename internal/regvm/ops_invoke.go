package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// execInvoke implements INVOKE/INVOKE_LOCAL/INVOKE_GLOBAL (spec.md
// §4.5): a method-by-name call on a register value, a named local, or a
// named global. INVOKE's follow-up word packs objReg(8)|argsBase(8)|
// argCount(8); INVOKE_LOCAL/INVOKE_GLOBAL's pack the target name's
// constant index (16) instead of a register, since the receiver is
// addressed by name rather than by register.
func (rt *Runtime) execInvoke(f *Frame, ins Instruction) error {
	destReg := ins.A()
	methodConstIdx := ins.Bx()
	method := string(f.Closure.Proto.Constants[methodConstIdx].AsStr().Bytes)
	words := f.Closure.Proto.ExtraWords(f.PC)
	if len(words) == 0 {
		return regvmerr.New(regvmerr.KindBytecode, f.Closure.Proto.Line(f.PC), "INVOKE missing follow-up word")
	}
	w := words[0]

	op := ins.Op()
	switch op {
	case OpInvoke:
		objReg := byte(w & 0xFF)
		argsBase := byte((w >> 8) & 0xFF)
		argCount := int((w >> 16) & 0xFF)

		obj := *rt.reg(f, objReg)
		args := make([]Value, argCount)
		for i := 0; i < argCount; i++ {
			args[i] = *rt.reg(f, byte(int(argsBase)+i))
		}
		result, err := rt.invokeMethod(obj, method, args)
		if err != nil {
			return err
		}
		*rt.reg(f, destReg) = result
		return nil

	case OpInvokeLocal:
		nameConstIdx := w & 0xFFFF
		argsBase := byte((w >> 16) & 0xFF)
		argCount := int((w >> 24) & 0xFF)
		name := string(f.Closure.Proto.Constants[nameConstIdx].AsStr().Bytes)

		reg, ok := localRegister(f.Closure.Proto, name)
		if !ok {
			return regvmerr.New(regvmerr.KindBytecode, f.Closure.Proto.Line(f.PC), "no local %q visible for INVOKE_LOCAL", name)
		}
		args := make([]Value, argCount)
		for i := 0; i < argCount; i++ {
			args[i] = *rt.reg(f, byte(int(argsBase)+i))
		}
		result, err := rt.invokeMethod(*rt.reg(f, byte(reg)), method, args)
		if err != nil {
			return err
		}
		*rt.reg(f, destReg) = result
		return nil

	case OpInvokeGlobal:
		nameConstIdx := w & 0xFFFF
		argsBase := byte((w >> 16) & 0xFF)
		argCount := int((w >> 24) & 0xFF)
		name := string(f.Closure.Proto.Constants[nameConstIdx].AsStr().Bytes)

		ref, ok := rt.Globals.GetRef(name)
		if !ok {
			return regvmerr.New(regvmerr.KindBytecode, f.Closure.Proto.Line(f.PC), "undefined global %q", name)
		}
		args := make([]Value, argCount)
		for i := 0; i < argCount; i++ {
			args[i] = *rt.reg(f, byte(int(argsBase)+i))
		}
		result, err := rt.invokeMethod(*ref, method, args)
		if err != nil {
			return err
		}
		*rt.reg(f, destReg) = result
		return nil

	default:
		return regvmerr.New(regvmerr.KindBytecode, f.Closure.Proto.Line(f.PC), "unexpected invoke opcode %s", op)
	}
}
