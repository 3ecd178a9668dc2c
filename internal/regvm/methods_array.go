package regvm

import "fmt"

// arrayMethod implements Array's built-in method table (spec.md §4.6):
// push/pop/insert/remove_at/clear/resize/fill mutate in place; the
// higher-order methods call back through callClosure uniformly for
// native and bytecode callees.
func (rt *Runtime) arrayMethod(obj Value, method string, args []Value) (Value, bool, error) {
	a := obj.AsArray()
	mutating := map[string]bool{
		"push": true, "pop": true, "insert": true, "remove_at": true,
		"clear": true, "resize": true, "fill": true, "sort": true, "sort_by": true,
	}
	if mutating[method] && obj.Phase() == PhaseCrystal {
		return Value{}, true, wantCrystalMutationErr(KindArray)
	}

	switch method {
	case "push":
		a.Elems = append(a.Elems, args...)
		return obj, true, nil

	case "pop":
		if len(a.Elems) == 0 {
			return Value{}, true, fmt.Errorf("pop on empty array")
		}
		last := a.Elems[len(a.Elems)-1]
		a.Elems = a.Elems[:len(a.Elems)-1]
		return last, true, nil

	case "insert":
		idx, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if idx < 0 || idx > int64(len(a.Elems)) {
			return Value{}, true, fmt.Errorf("insert index %d out of range", idx)
		}
		a.Elems = append(a.Elems, Value{})
		copy(a.Elems[idx+1:], a.Elems[idx:])
		a.Elems[idx] = args[1]
		return obj, true, nil

	case "remove_at":
		idx, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		if idx < 0 || idx >= int64(len(a.Elems)) {
			return Value{}, true, fmt.Errorf("remove_at index %d out of range", idx)
		}
		v := a.Elems[idx]
		a.Elems = append(a.Elems[:idx], a.Elems[idx+1:]...)
		return v, true, nil

	case "clear":
		a.Elems = a.Elems[:0]
		return obj, true, nil

	case "resize":
		n, err := argInt(args, 0)
		if err != nil {
			return Value{}, true, err
		}
		fillVal := Nil
		if len(args) > 1 {
			fillVal = args[1]
		}
		switch {
		case int64(len(a.Elems)) > n:
			a.Elems = a.Elems[:n]
		case int64(len(a.Elems)) < n:
			for int64(len(a.Elems)) < n {
				a.Elems = append(a.Elems, fillVal)
			}
		}
		return obj, true, nil

	case "fill":
		if len(args) == 0 {
			return Value{}, true, fmt.Errorf("fill requires a value argument")
		}
		for i := range a.Elems {
			a.Elems[i] = args[0]
		}
		return obj, true, nil

	case "len":
		return Int(int64(len(a.Elems))), true, nil

	case "each", "for_each":
		fn := args[0].AsClosure()
		for _, e := range a.Elems {
			if _, err := rt.callClosure(fn, []Value{e}); err != nil {
				return Value{}, true, err
			}
		}
		return Unit, true, nil

	case "map":
		fn := args[0].AsClosure()
		out := make([]Value, len(a.Elems))
		for i, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			out[i] = v
		}
		return Array(out), true, nil

	case "flat_map":
		fn := args[0].AsClosure()
		var out []Value
		for _, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			if v.kind == KindArray {
				out = append(out, v.AsArray().Elems...)
			} else {
				out = append(out, v)
			}
		}
		return Array(out), true, nil

	case "filter":
		fn := args[0].AsClosure()
		var out []Value
		for _, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			if v.IsTruthy() {
				out = append(out, e)
			}
		}
		return Array(out), true, nil

	case "reduce":
		fn := args[len(args)-1].AsClosure()
		acc := Nil
		start := 0
		if len(args) == 2 {
			acc = args[0]
		} else if len(a.Elems) > 0 {
			acc = a.Elems[0]
			start = 1
		}
		for _, e := range a.Elems[start:] {
			v, err := rt.callClosure(fn, []Value{acc, e})
			if err != nil {
				return Value{}, true, err
			}
			acc = v
		}
		return acc, true, nil

	case "find":
		fn := args[0].AsClosure()
		for _, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			if v.IsTruthy() {
				return Enum(&EnumVal{EnumName: "Option", Tag: "Some", Payload: []Value{e}}), true, nil
			}
		}
		return Enum(&EnumVal{EnumName: "Option", Tag: "None"}), true, nil

	case "any":
		fn := args[0].AsClosure()
		for _, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			if v.IsTruthy() {
				return Bool(true), true, nil
			}
		}
		return Bool(false), true, nil

	case "all":
		fn := args[0].AsClosure()
		for _, e := range a.Elems {
			v, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			if !v.IsTruthy() {
				return Bool(false), true, nil
			}
		}
		return Bool(true), true, nil

	case "group_by":
		fn := args[0].AsClosure()
		groups := NewMap()
		for _, e := range a.Elems {
			keyVal, err := rt.callClosure(fn, []Value{e})
			if err != nil {
				return Value{}, true, err
			}
			key := Display(keyVal)
			bucket, ok := groups.Get(key)
			if !ok {
				bucket = Array(nil)
			}
			arr := bucket.AsArray()
			arr.Elems = append(arr.Elems, e)
			groups.Set(key, bucket)
		}
		return Map(groups), true, nil

	case "sort":
		err := SortValues(a.Elems, func(x, y Value) (bool, error) {
			c, err := Compare(x, y)
			return c < 0, err
		})
		return obj, true, err

	case "sort_by":
		fn := args[0].AsClosure()
		err := SortValues(a.Elems, func(x, y Value) (bool, error) {
			v, err := rt.callClosure(fn, []Value{x, y})
			if err != nil {
				return false, err
			}
			if !v.IsInt() {
				return false, fmt.Errorf("sort_by comparator must return an Int")
			}
			return v.AsInt() < 0, nil
		})
		return obj, true, err

	default:
		return Value{}, false, nil
	}
}
