package regvm

import "fmt"

// invokeMethod implements INVOKE/INVOKE_LOCAL/INVOKE_GLOBAL's resolution
// order (spec.md §4.5): the built-in method table first, then a
// closure-valued field/key on the receiver, then a `TypeName::method`
// impl-table entry in globals, else failure.
func (rt *Runtime) invokeMethod(obj Value, method string, args []Value) (Value, error) {
	if v, ok, err := rt.builtinMethod(obj, method, args); ok {
		return v, err
	}

	if closureField, ok := closureValuedField(obj, method); ok {
		return rt.callClosure(closureField, append([]Value{obj}, args...))
	}

	implKey := obj.Kind().String() + "::" + method
	if v, ok := rt.Globals.Get(implKey); ok && v.kind == KindClosure {
		return rt.callClosure(v.AsClosure(), append([]Value{obj}, args...))
	}

	return Value{}, fmt.Errorf("no method %q on %s", method, obj.Kind())
}

// closureValuedField looks at a Struct field or Map key named `method`,
// returning it only if it actually holds a Closure (spec.md §4.5
// resolution step 2).
func closureValuedField(obj Value, method string) (*ClosureVal, bool) {
	switch obj.kind {
	case KindStruct:
		v, ok := obj.AsStruct().Fields[method]
		if ok && v.kind == KindClosure {
			return v.AsClosure(), true
		}
	case KindMap:
		v, ok := obj.AsMap().Get(method)
		if ok && v.kind == KindClosure {
			return v.AsClosure(), true
		}
	}
	return nil, false
}

// builtinMethod dispatches to the per-kind method table. The bool
// result reports whether `method` was recognized for obj's kind at all
// (so invokeMethod can fall through to field/impl resolution when it
// wasn't); the error is only meaningful when ok is true.
func (rt *Runtime) builtinMethod(obj Value, method string, args []Value) (Value, bool, error) {
	switch obj.kind {
	case KindArray:
		return rt.arrayMethod(obj, method, args)
	case KindMap:
		return rt.mapMethod(obj, method, args)
	case KindSet:
		return rt.setMethod(obj, method, args)
	case KindStr:
		return rt.stringMethod(obj, method, args)
	case KindBuffer:
		return rt.bufferMethod(obj, method, args)
	case KindTuple, KindRange, KindRef, KindChannel, KindEnum:
		return rt.miscMethod(obj, method, args)
	default:
		return Value{}, false, nil
	}
}

func wantCrystalMutationErr(kind Kind) error {
	return fmt.Errorf("cannot mutate a crystal %s", kind)
}

func argInt(args []Value, i int) (int64, error) {
	if i >= len(args) || !args[i].IsInt() {
		return 0, fmt.Errorf("argument %d must be an Int", i)
	}
	return args[i].AsInt(), nil
}
