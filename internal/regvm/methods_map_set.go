package regvm

import "fmt"

// mapMethod implements Map's built-in method table (spec.md §4.6).
func (rt *Runtime) mapMethod(obj Value, method string, args []Value) (Value, bool, error) {
	m := obj.AsMap()
	mutating := map[string]bool{"set": true, "remove": true, "clear": true, "merge": true}
	if mutating[method] {
		if obj.Phase() == PhaseCrystal {
			return Value{}, true, wantCrystalMutationErr(KindMap)
		}
	}

	switch method {
	case "set":
		if len(args) < 2 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("map.set requires (key: Str, value)")
		}
		key := string(args[0].AsStr().Bytes)
		_, exists := m.Items[key]
		if !exists && obj.Phase() == PhaseSublimated {
			return Value{}, true, fmt.Errorf("cannot add key %q to a sublimated map", key)
		}
		m.Set(key, args[1])
		return obj, true, nil

	case "get":
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("map.get requires a Str key")
		}
		v, ok := m.Get(string(args[0].AsStr().Bytes))
		if !ok {
			return Enum(&EnumVal{EnumName: "Option", Tag: "None"}), true, nil
		}
		return Enum(&EnumVal{EnumName: "Option", Tag: "Some", Payload: []Value{v}}), true, nil

	case "remove":
		if len(args) < 1 || args[0].kind != KindStr {
			return Value{}, true, fmt.Errorf("map.remove requires a Str key")
		}
		m.Delete(string(args[0].AsStr().Bytes))
		return obj, true, nil

	case "has":
		_, ok := m.Get(string(args[0].AsStr().Bytes))
		return Bool(ok), true, nil

	case "clear":
		m.Order = nil
		m.Items = make(map[string]Value)
		m.KeyPhases = nil
		return obj, true, nil

	case "merge":
		if len(args) < 1 || args[0].kind != KindMap {
			return Value{}, true, fmt.Errorf("map.merge requires another Map")
		}
		other := args[0].AsMap()
		for _, k := range other.Order {
			m.Set(k, other.Items[k])
		}
		return obj, true, nil

	case "len":
		return Int(int64(len(m.Items))), true, nil

	case "keys":
		out := make([]Value, len(m.Order))
		for i, k := range m.Order {
			out[i] = Str(k)
		}
		return Array(out), true, nil

	case "values":
		out := make([]Value, len(m.Order))
		for i, k := range m.Order {
			out[i] = m.Items[k]
		}
		return Array(out), true, nil

	case "each", "for_each":
		fn := args[0].AsClosure()
		for _, k := range m.Order {
			if _, err := rt.callClosure(fn, []Value{Str(k), m.Items[k]}); err != nil {
				return Value{}, true, err
			}
		}
		return Unit, true, nil

	case "map":
		fn := args[0].AsClosure()
		out := NewMap()
		for _, k := range m.Order {
			v, err := rt.callClosure(fn, []Value{Str(k), m.Items[k]})
			if err != nil {
				return Value{}, true, err
			}
			out.Set(k, v)
		}
		return Map(out), true, nil

	case "filter":
		fn := args[0].AsClosure()
		out := NewMap()
		for _, k := range m.Order {
			v, err := rt.callClosure(fn, []Value{Str(k), m.Items[k]})
			if err != nil {
				return Value{}, true, err
			}
			if v.IsTruthy() {
				out.Set(k, m.Items[k])
			}
		}
		return Map(out), true, nil

	default:
		return Value{}, false, nil
	}
}

// setMethod implements Set's built-in method table (spec.md §4.6).
func (rt *Runtime) setMethod(obj Value, method string, args []Value) (Value, bool, error) {
	s := obj.AsSet()
	mutating := map[string]bool{"add": true, "remove": true, "clear": true}
	if mutating[method] && obj.Phase() == PhaseCrystal {
		return Value{}, true, wantCrystalMutationErr(KindSet)
	}

	switch method {
	case "add":
		if len(args) < 1 {
			return Value{}, true, fmt.Errorf("set.add requires a value")
		}
		key := Display(args[0])
		s.Add(key, args[0])
		return obj, true, nil

	case "remove":
		if len(args) < 1 {
			return Value{}, true, fmt.Errorf("set.remove requires a value")
		}
		s.Remove(Display(args[0]))
		return obj, true, nil

	case "contains":
		_, ok := s.Items[Display(args[0])]
		return Bool(ok), true, nil

	case "clear":
		s.Order = nil
		s.Items = make(map[string]Value)
		return obj, true, nil

	case "len":
		return Int(int64(len(s.Items))), true, nil

	case "union":
		other := args[0].AsSet()
		out := NewSet()
		for _, k := range s.Order {
			out.Add(k, s.Items[k])
		}
		for _, k := range other.Order {
			out.Add(k, other.Items[k])
		}
		return Set(out), true, nil

	case "intersect":
		other := args[0].AsSet()
		out := NewSet()
		for _, k := range s.Order {
			if _, ok := other.Items[k]; ok {
				out.Add(k, s.Items[k])
			}
		}
		return Set(out), true, nil

	case "each", "for_each":
		fn := args[0].AsClosure()
		for _, k := range s.Order {
			if _, err := rt.callClosure(fn, []Value{s.Items[k]}); err != nil {
				return Value{}, true, err
			}
		}
		return Unit, true, nil

	default:
		return Value{}, false, nil
	}
}
