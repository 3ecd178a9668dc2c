package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// thrownSignal carries a THROWn Value up the Go call stack that mirrors
// the VM's frame stack (spec.md §4.5: PUSH_HANDLER/POP_HANDLER/THROW are
// opcode-driven, not a compiled exception table). It implements error so
// it can travel through the same return-path every other runtime error
// uses; handleThrow unwraps it back into a Value when a handler catches.
type thrownSignal struct{ V Value }

func (t *thrownSignal) Error() string { return "unhandled exception: " + Display(t.V) }

// execExceptionOp handles PUSH_HANDLER, POP_HANDLER and THROW. PUSH_HANDLER
// and POP_HANDLER manipulate f.Handlers and never fail; THROW returns the
// thrown value as an error so the shared handleThrow unwind path (used by
// every opcode) takes over.
func (rt *Runtime) execExceptionOp(f *Frame, ins Instruction) (int, error) {
	switch ins.Op() {
	case OpPushHandler:
		excReg := int(ins.A())
		target := f.PC + 1 + int(ins.SBx())
		f.Handlers = append(f.Handlers, HandlerRecord{
			TargetPC:   target,
			ExcReg:     excReg,
			ScopeDepth: rt.Globals.Depth(),
			DeferFloor: len(f.Defers),
		})
		return f.PC + 1, nil

	case OpPopHandler:
		if len(f.Handlers) > 0 {
			f.Handlers = f.Handlers[:len(f.Handlers)-1]
		}
		return f.PC + 1, nil

	case OpThrow:
		v := *rt.reg(f, ins.A())
		return f.PC, &thrownSignal{V: v}

	default:
		return f.PC, regvmerr.New(regvmerr.KindBytecode, 0, "execExceptionOp: unexpected opcode %s", ins.Op())
	}
}

// handleThrow searches f's own handler stack (innermost first) for one
// that catches err. On a catch it runs every defer pushed since that
// handler (LIFO), restores the global-scope depth PUSH_HANDLER recorded,
// writes the carried value into the handler's register, repoints f.PC at
// the handler target, and returns nil so dispatch resumes in this frame.
// If nothing in this frame catches, it runs every remaining defer in the
// frame and returns err unchanged so it propagates to the Go call that
// is running the caller's frame (execCall's recursive dispatch).
func (rt *Runtime) handleThrow(f *Frame, err error) error {
	for i := len(f.Handlers) - 1; i >= 0; i-- {
		h := f.Handlers[i]

		rt.runDefersDownTo(f, h.DeferFloor)
		for rt.Globals.Depth() > h.ScopeDepth {
			rt.Globals.PopScope()
		}
		f.Handlers = f.Handlers[:i]

		*rt.reg(f, byte(h.ExcReg)) = excValueOf(err)
		f.PC = h.TargetPC
		return nil
	}

	rt.runDefersDownTo(f, 0)
	return err
}

// excValueOf extracts the Value a handler sees for err: the thrown Value
// itself for THROW, or a Str wrapping the message for every other
// runtime error kind (type errors, bounds, phase violations, ...).
func excValueOf(err error) Value {
	if ts, ok := err.(*thrownSignal); ok {
		return ts.V
	}
	if re, ok := err.(regvmerr.Error); ok {
		return Str(re.Message())
	}
	return Str(err.Error())
}

// runDefersDownTo runs f.Defers from the top down to (but not including)
// index floor, LIFO, removing each as it runs. Errors from a defer body
// itself are not currently re-thrown (spec.md is silent on defer-inside-
// defer failure; the simplest total behavior is taken: best-effort run).
func (rt *Runtime) runDefersDownTo(f *Frame, floor int) {
	for len(f.Defers) > floor {
		d := f.Defers[len(f.Defers)-1]
		f.Defers = f.Defers[:len(f.Defers)-1]
		if d.Ran {
			continue
		}
		_, _ = rt.callClosure(d.Closure, d.Args)
	}
}
