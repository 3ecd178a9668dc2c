package regvm

import "github.com/phasescript/regvm/internal/regvmerr"

// execDeferOp handles DEFER_PUSH and DEFER_RUN (spec.md §4.5). DEFER_PUSH
// registers a closure-plus-args to run later, LIFO, either at DEFER_RUN
// or (forced) during exception unwind past this frame (exceptions.go's
// runDefersDownTo). DEFER_RUN runs every still-pending defer in this
// frame immediately, in LIFO order, and marks them ran so unwind doesn't
// run them twice.
func (rt *Runtime) execDeferOp(f *Frame, ins Instruction) error {
	switch ins.Op() {
	case OpDeferPush:
		closureReg := int(ins.A())
		argc := int(ins.B())
		argBase := int(ins.C())
		c := rt.reg(f, byte(closureReg)).AsClosure()
		args := make([]Value, argc)
		for i := 0; i < argc; i++ {
			args[i] = *rt.reg(f, byte(argBase+i))
		}
		f.Defers = append(f.Defers, DeferRecord{Closure: c, Args: args})
		return nil

	case OpDeferRun:
		for i := len(f.Defers) - 1; i >= 0; i-- {
			if f.Defers[i].Ran {
				continue
			}
			f.Defers[i].Ran = true
			if _, err := rt.callClosure(f.Defers[i].Closure, f.Defers[i].Args); err != nil {
				return err
			}
		}
		return nil

	default:
		return regvmerr.New(regvmerr.KindBytecode, 0, "execDeferOp: unexpected opcode %s", ins.Op())
	}
}

// resultTag reports whether v is a recognized Result value — an Enum
// tagged "Ok"/"Err" or a Map `{tag: "ok"/"err", value: X}` (spec.md
// §4.5) — and returns its normalized (lowercase) tag and payload.
func resultTag(v Value) (tag string, payload Value, ok bool) {
	switch v.kind {
	case KindEnum:
		e := v.AsEnum()
		switch e.Tag {
		case "Ok":
			payload = Unit
			if len(e.Payload) > 0 {
				payload = e.Payload[0]
			}
			return "ok", payload, true
		case "Err":
			payload = Unit
			if len(e.Payload) > 0 {
				payload = e.Payload[0]
			}
			return "err", payload, true
		}
		return "", Value{}, false
	case KindMap:
		m := v.AsMap()
		tagVal, hasTag := m.Get("tag")
		if !hasTag || tagVal.kind != KindStr {
			return "", Value{}, false
		}
		t := string(tagVal.AsStr().Bytes)
		if t != "ok" && t != "err" {
			return "", Value{}, false
		}
		val, hasVal := m.Get("value")
		if !hasVal {
			val = Unit
		}
		return t, val, true
	default:
		return "", Value{}, false
	}
}

// execTryUnwrap implements TRY_UNWRAP (spec.md §4.5): the operand
// register holds a Result, either a Map `{tag: "ok"/"err", value: X}` or
// an Enum `Ok(X)`/`Err(X)`. On "ok" the payload replaces the register
// and execution falls through. On "err" the current function itself
// returns the original Result value unchanged, exactly as if it had hit
// its own RETURN with that value — not a throw, since an Err is a
// normal propagated return, not an exception. The second return value
// reports whether the frame returned early; when true the caller must
// unwind to its own caller with the given Value instead of advancing PC.
func (rt *Runtime) execTryUnwrap(f *Frame, ins Instruction) (Value, bool, error) {
	src := *rt.reg(f, ins.B())
	tag, payload, ok := resultTag(src)
	if !ok {
		return Value{}, false, regvmerr.New(regvmerr.KindType, f.Closure.Proto.Line(f.PC), "try-unwrap on non-result value %s", src.Kind())
	}
	switch tag {
	case "ok":
		*rt.reg(f, ins.A()) = payload
		return Value{}, false, nil
	case "err":
		for u := f.OpenUpvalues; u != nil; u = u.NextOpen {
			u.Close()
		}
		rt.freeWindow(f.Base)
		return src, true, nil
	default:
		return Value{}, false, regvmerr.New(regvmerr.KindType, f.Closure.Proto.Line(f.PC), "try-unwrap on unrecognized result tag %q", tag)
	}
}
