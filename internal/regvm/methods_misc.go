package regvm

import "fmt"

// miscMethod implements the built-in method tables for Tuple, Range,
// Ref, Channel and Enum (spec.md §4.6) — kinds small enough not to
// warrant their own file.
func (rt *Runtime) miscMethod(obj Value, method string, args []Value) (Value, bool, error) {
	switch obj.kind {
	case KindTuple:
		return rt.tupleMethod(obj, method, args)
	case KindRange:
		return rt.rangeMethod(obj, method, args)
	case KindRef:
		return rt.refMethod(obj, method, args)
	case KindChannel:
		return rt.channelMethod(obj, method, args)
	case KindEnum:
		return rt.enumMethod(obj, method, args)
	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) tupleMethod(obj Value, method string, args []Value) (Value, bool, error) {
	t := obj.AsTuple()
	switch method {
	case "len":
		return Int(int64(len(t.Elems))), true, nil
	case "each", "for_each":
		fn := args[0].AsClosure()
		for _, e := range t.Elems {
			if _, err := rt.callClosure(fn, []Value{e}); err != nil {
				return Value{}, true, err
			}
		}
		return Unit, true, nil
	case "to_array":
		out := make([]Value, len(t.Elems))
		copy(out, t.Elems)
		return Array(out), true, nil
	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) rangeMethod(obj Value, method string, args []Value) (Value, bool, error) {
	r := obj.AsRange()
	switch method {
	case "len":
		return Int(r.Len()), true, nil
	case "contains":
		v, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if r.Inclusive {
			return Bool(v >= r.Start && v <= r.Stop), true, nil
		}
		return Bool(v >= r.Start && v < r.Stop), true, nil
	case "to_array":
		n := r.Len()
		out := make([]Value, n)
		for i := int64(0); i < n; i++ {
			out[i] = Int(r.At(i))
		}
		return Array(out), true, nil
	case "each", "for_each":
		fn := args[0].AsClosure()
		n := r.Len()
		for i := int64(0); i < n; i++ {
			if _, err := rt.callClosure(fn, []Value{Int(r.At(i))}); err != nil {
				return Value{}, true, err
			}
		}
		return Unit, true, nil
	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) refMethod(obj Value, method string, args []Value) (Value, bool, error) {
	ref := obj.AsRef()
	switch method {
	case "get":
		return ref.Inner, true, nil
	case "set":
		if len(args) < 1 {
			return Value{}, true, fmt.Errorf("ref.set requires a value")
		}
		if obj.Phase() == PhaseCrystal {
			return Value{}, true, wantCrystalMutationErr(KindRef)
		}
		ref.Inner = args[0]
		return Unit, true, nil
	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) channelMethod(obj Value, method string, args []Value) (Value, bool, error) {
	ch := obj.AsChannel()
	switch method {
	case "send":
		if len(args) < 1 {
			return Value{}, true, fmt.Errorf("channel.send requires a value")
		}
		if err := ch.Send(args[0]); err != nil {
			return Value{}, true, err
		}
		return Unit, true, nil
	case "recv":
		// Raw Value, already Unit on closed-empty (channel.go) — the
		// spec's documented loop idiom tests `v == ()` directly, so this
		// must not be Option-wrapped (spec.md §3, §8 scenario 7).
		v, _ := ch.Recv()
		return v, true, nil
	case "try_recv":
		v, ok := ch.TryRecv()
		if !ok {
			return Enum(&EnumVal{EnumName: "Option", Tag: "None"}), true, nil
		}
		return Enum(&EnumVal{EnumName: "Option", Tag: "Some", Payload: []Value{v}}), true, nil
	case "close":
		ch.Close()
		return Unit, true, nil
	case "closed":
		return Bool(ch.Closed()), true, nil
	default:
		return Value{}, false, nil
	}
}

func (rt *Runtime) enumMethod(obj Value, method string, args []Value) (Value, bool, error) {
	e := obj.AsEnum()
	switch method {
	case "is":
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("enum.is requires a Str tag")
		}
		return Bool(e.Tag == string(args[0].AsStr().Bytes)), true, nil
	case "unwrap":
		if len(e.Payload) == 0 {
			return Value{}, true, fmt.Errorf("enum %s::%s has no payload to unwrap", e.EnumName, e.Tag)
		}
		return e.Payload[0], true, nil
	case "unwrap_or":
		if len(e.Payload) == 0 {
			if len(args) < 1 {
				return Value{}, true, fmt.Errorf("enum.unwrap_or requires a fallback value")
			}
			return args[0], true, nil
		}
		return e.Payload[0], true, nil
	default:
		return Value{}, false, nil
	}
}
