package regvm

import (
	"fmt"
	"strconv"
)

// getField implements GETFIELD's non-mutating read path: named struct
// fields, and Enum's synthetic tag/enum_name/payload accessors
// (spec.md §3, §4.5).
func getField(obj Value, field string) (Value, error) {
	switch obj.kind {
	case KindStruct:
		st := obj.AsStruct()
		v, ok := st.Fields[field]
		if !ok {
			return Value{}, fmt.Errorf("struct %s has no field %q", st.Name, field)
		}
		return v, nil
	case KindEnum:
		e := obj.AsEnum()
		switch field {
		case "tag":
			return Str(e.Tag), nil
		case "enum_name":
			return Str(e.EnumName), nil
		case "payload":
			payload := make([]Value, len(e.Payload))
			copy(payload, e.Payload)
			return Tuple(payload), nil
		default:
			return Value{}, fmt.Errorf("enum values have no field %q", field)
		}
	case KindMap:
		v, ok := obj.AsMap().Get(field)
		if !ok {
			return Value{}, fmt.Errorf("map has no key %q", field)
		}
		return v, nil
	case KindTuple:
		i, err := strconv.Atoi(field)
		if err != nil {
			return Value{}, fmt.Errorf("tuple field %q is not a decimal index", field)
		}
		return indexElems(obj.AsTuple().Elems, Int(int64(i)))
	default:
		return Value{}, fmt.Errorf("cannot read field %q of %s", field, obj.Kind())
	}
}

// setField implements SETFIELD, enforcing the Crystal-rejects-mutation
// rule including the per-field partial-freeze override (spec.md §3,
// §4.1, §8 property 5).
func setField(obj Value, field string, val Value) error {
	switch obj.kind {
	case KindStruct:
		st := obj.AsStruct()
		effective := st.PhaseFor(field, obj.Phase())
		if effective == PhaseCrystal {
			return fmt.Errorf("cannot mutate field %q of a crystal struct", field)
		}
		if _, exists := st.Fields[field]; !exists {
			st.FieldOrder = append(st.FieldOrder, field)
		}
		st.Fields[field] = val
		return nil
	case KindMap:
		m := obj.AsMap()
		_, exists := m.Items[field]
		effective := m.PhaseFor(field, obj.Phase())
		if effective == PhaseCrystal {
			return fmt.Errorf("cannot mutate key %q of a crystal map", field)
		}
		if !exists && obj.Phase() == PhaseSublimated {
			return fmt.Errorf("cannot add key %q to a sublimated map", field)
		}
		m.Set(field, val)
		return nil
	default:
		return fmt.Errorf("cannot set field %q of %s", field, obj.Kind())
	}
}

// getIndex implements GETINDEX over Array, Tuple, Map, Str, Buffer and
// Range. An Int index wraps around negatively (spec.md §4.5); a Range
// index produces a slice copy on Array/Str.
func getIndex(obj, idx Value) (Value, error) {
	switch obj.kind {
	case KindArray:
		if idx.kind == KindRange {
			return sliceElems(obj.AsArray().Elems, idx.AsRange())
		}
		return indexElems(obj.AsArray().Elems, idx)
	case KindTuple:
		return indexElems(obj.AsTuple().Elems, idx)
	case KindStr:
		s := obj.AsStr().Bytes
		if idx.kind == KindRange {
			r := idx.AsRange()
			start, stop := r.Start, r.Stop
			if r.Inclusive {
				stop++
			}
			if start < 0 || stop > int64(len(s)) || start > stop {
				return Value{}, fmt.Errorf("string slice [%d:%d] out of range [0,%d]", start, stop, len(s))
			}
			return Str(string(s[start:stop])), nil
		}
		if !idx.IsInt() {
			return Value{}, fmt.Errorf("string index must be an Int, got %s", idx.Kind())
		}
		i := idx.AsInt()
		if i < 0 {
			i += int64(len(s))
		}
		if i < 0 || i >= int64(len(s)) {
			return Value{}, fmt.Errorf("string index %d out of range", idx.AsInt())
		}
		return Str(string(s[i : i+1])), nil
	case KindMap:
		if idx.kind != KindStr {
			return Value{}, fmt.Errorf("map index must be a string, got %s", idx.Kind())
		}
		v, ok := obj.AsMap().Get(string(idx.AsStr().Bytes))
		if !ok {
			return Value{}, fmt.Errorf("map has no key %q", string(idx.AsStr().Bytes))
		}
		return v, nil
	case KindBuffer:
		if !idx.IsInt() {
			return Value{}, fmt.Errorf("buffer index must be an Int")
		}
		b := obj.AsBuffer().Bytes
		i := idx.AsInt()
		if i < 0 || i >= int64(len(b)) {
			return Value{}, fmt.Errorf("buffer index %d out of range [0,%d)", i, len(b))
		}
		return Int(int64(b[i])), nil
	case KindRange:
		if !idx.IsInt() {
			return Value{}, fmt.Errorf("range index must be an Int")
		}
		r := obj.AsRange()
		i := idx.AsInt()
		if i < 0 || i >= r.Len() {
			return Value{}, fmt.Errorf("range index %d out of range [0,%d)", i, r.Len())
		}
		return Int(r.At(i)), nil
	default:
		return Value{}, fmt.Errorf("cannot index %s", obj.Kind())
	}
}

func indexElems(elems []Value, idx Value) (Value, error) {
	if !idx.IsInt() {
		return Value{}, fmt.Errorf("index must be an Int, got %s", idx.Kind())
	}
	i := idx.AsInt()
	if i < 0 {
		i += int64(len(elems))
	}
	if i < 0 || i >= int64(len(elems)) {
		return Value{}, fmt.Errorf("index %d out of range [0,%d)", idx.AsInt(), len(elems))
	}
	return elems[i], nil
}

func sliceElems(elems []Value, r *RangeVal) (Value, error) {
	start, stop := r.Start, r.Stop
	if r.Inclusive {
		stop++
	}
	if start < 0 || stop > int64(len(elems)) || start > stop {
		return Value{}, fmt.Errorf("slice [%d:%d] out of range [0,%d]", start, stop, len(elems))
	}
	out := make([]Value, stop-start)
	copy(out, elems[start:stop])
	return Array(out), nil
}

// setIndex implements SETINDEX over Array, Map and Buffer, enforcing the
// Crystal/Sublimated mutation rules.
func setIndex(obj, idx, val Value) error {
	switch obj.kind {
	case KindArray:
		if obj.Phase() == PhaseCrystal {
			return fmt.Errorf("cannot mutate a crystal array")
		}
		a := obj.AsArray()
		if !idx.IsInt() {
			return fmt.Errorf("index must be an Int, got %s", idx.Kind())
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(a.Elems)) {
			return fmt.Errorf("index %d out of range [0,%d)", i, len(a.Elems))
		}
		a.Elems[i] = val
		return nil
	case KindMap:
		if idx.kind != KindStr {
			return fmt.Errorf("map index must be a string, got %s", idx.Kind())
		}
		return setField(obj, string(idx.AsStr().Bytes), val)
	case KindBuffer:
		if obj.Phase() == PhaseCrystal {
			return fmt.Errorf("cannot mutate a crystal buffer")
		}
		if !idx.IsInt() || !val.IsInt() {
			return fmt.Errorf("buffer index/value must be Int")
		}
		b := obj.AsBuffer()
		i := idx.AsInt()
		if i < 0 || i >= int64(len(b.Bytes)) {
			return fmt.Errorf("buffer index %d out of range [0,%d)", i, len(b.Bytes))
		}
		b.Bytes[i] = byte(val.AsInt())
		return nil
	default:
		return fmt.Errorf("cannot index-assign %s", obj.Kind())
	}
}

func errorUnsupportedIteration(v Value) error {
	return fmt.Errorf("cannot iterate over %s", v.Kind())
}
