package regvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clone produces an independently owned copy of v. Containers get a new
// header (so pushing to the clone doesn't affect the original), but their
// element Values are copied by assignment, which for heap-backed elements
// means the *next* level of structure is still shared — only DeepClone
// recurses fully. A compiled closure's clone keeps the same Upvalue cell
// pointers, preserving write-through aliasing (spec.md §4.1).
func Clone(v Value) Value {
	switch v.kind {
	case KindArray:
		a := v.AsArray()
		elems := make([]Value, len(a.Elems))
		copy(elems, a.Elems)
		nv := Array(elems)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindTuple:
		t := v.AsTuple()
		elems := make([]Value, len(t.Elems))
		copy(elems, t.Elems)
		nv := Tuple(elems)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindMap:
		m := v.AsMap()
		nm := &MapVal{Order: append([]string(nil), m.Order...), Items: make(map[string]Value, len(m.Items))}
		for k, val := range m.Items {
			nm.Items[k] = val
		}
		if m.KeyPhases != nil {
			nm.KeyPhases = make(map[string]Phase, len(m.KeyPhases))
			for k, p := range m.KeyPhases {
				nm.KeyPhases[k] = p
			}
		}
		nv := Map(nm)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindSet:
		s := v.AsSet()
		ns := &SetVal{Order: append([]string(nil), s.Order...), Items: make(map[string]Value, len(s.Items))}
		for k, val := range s.Items {
			ns.Items[k] = val
		}
		nv := Set(ns)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindStruct:
		st := v.AsStruct()
		ns := &StructVal{Name: st.Name, FieldOrder: append([]string(nil), st.FieldOrder...), Fields: make(map[string]Value, len(st.Fields))}
		for k, val := range st.Fields {
			ns.Fields[k] = val
		}
		if st.FieldPhases != nil {
			ns.FieldPhases = make(map[string]Phase, len(st.FieldPhases))
			for k, p := range st.FieldPhases {
				ns.FieldPhases[k] = p
			}
		}
		nv := Struct(ns)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindEnum:
		e := v.AsEnum()
		payload := make([]Value, len(e.Payload))
		copy(payload, e.Payload)
		nv := Enum(&EnumVal{EnumName: e.EnumName, Tag: e.Tag, Payload: payload})
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindBuffer:
		b := v.AsBuffer()
		bytes := make([]byte, len(b.Bytes))
		copy(bytes, b.Bytes)
		nv := Buffer(bytes)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindStr:
		s := v.AsStr()
		bytes := make([]byte, len(s.Bytes))
		copy(bytes, s.Bytes)
		nv := Str(string(bytes))
		nv.phase = v.phase
		return nv
	case KindClosure:
		// Preserve aliasing to the same upvalue cells: share the slice.
		return v
	case KindRange:
		r := *v.AsRange()
		return Range(r)
	default:
		return v
	}
}

// DeepClone produces a fully independent copy, recursing into every
// reachable Value (spec.md §8 property 2).
func DeepClone(v Value) Value {
	switch v.kind {
	case KindArray:
		a := v.AsArray()
		elems := make([]Value, len(a.Elems))
		for i, e := range a.Elems {
			elems[i] = DeepClone(e)
		}
		nv := Array(elems)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindTuple:
		t := v.AsTuple()
		elems := make([]Value, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = DeepClone(e)
		}
		nv := Tuple(elems)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindMap:
		m := v.AsMap()
		nm := &MapVal{Order: append([]string(nil), m.Order...), Items: make(map[string]Value, len(m.Items))}
		for k, val := range m.Items {
			nm.Items[k] = DeepClone(val)
		}
		if m.KeyPhases != nil {
			nm.KeyPhases = make(map[string]Phase, len(m.KeyPhases))
			for k, p := range m.KeyPhases {
				nm.KeyPhases[k] = p
			}
		}
		nv := Map(nm)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindSet:
		s := v.AsSet()
		ns := &SetVal{Order: append([]string(nil), s.Order...), Items: make(map[string]Value, len(s.Items))}
		for k, val := range s.Items {
			ns.Items[k] = DeepClone(val)
		}
		nv := Set(ns)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindStruct:
		st := v.AsStruct()
		ns := &StructVal{Name: st.Name, FieldOrder: append([]string(nil), st.FieldOrder...), Fields: make(map[string]Value, len(st.Fields))}
		for k, val := range st.Fields {
			ns.Fields[k] = DeepClone(val)
		}
		if st.FieldPhases != nil {
			ns.FieldPhases = make(map[string]Phase, len(st.FieldPhases))
			for k, p := range st.FieldPhases {
				ns.FieldPhases[k] = p
			}
		}
		nv := Struct(ns)
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindEnum:
		e := v.AsEnum()
		payload := make([]Value, len(e.Payload))
		for i, p := range e.Payload {
			payload[i] = DeepClone(p)
		}
		nv := Enum(&EnumVal{EnumName: e.EnumName, Tag: e.Tag, Payload: payload})
		nv.phase, nv.region = v.phase, v.region
		return nv
	case KindRef:
		r := v.AsRef()
		nv := Ref(DeepClone(r.Inner))
		nv.phase = v.phase
		return nv
	default:
		return Clone(v)
	}
}

// Freeze returns a Crystal copy of v. Every reachable child also becomes
// Crystal, except fields/keys carrying a per-field/key override (the
// partial-freeze exception, spec.md §3) — those children keep their own
// phase and are not recursed into further. Freezing a Channel fails
// (spec.md §4.1).
func Freeze(v Value) (Value, error) {
	if v.kind == KindChannel {
		return Value{}, fmt.Errorf("cannot freeze a channel")
	}
	out := Clone(v)
	out.phase = PhaseCrystal
	switch out.kind {
	case KindArray:
		a := out.AsArray()
		for i, e := range a.Elems {
			fe, err := Freeze(e)
			if err != nil {
				return Value{}, err
			}
			a.Elems[i] = fe
		}
	case KindTuple:
		t := out.AsTuple()
		for i, e := range t.Elems {
			fe, err := Freeze(e)
			if err != nil {
				return Value{}, err
			}
			t.Elems[i] = fe
		}
	case KindMap:
		m := out.AsMap()
		for _, k := range m.Order {
			if m.KeyPhases != nil {
				if p, ok := m.KeyPhases[k]; ok && p != PhaseCrystal {
					continue // partial-freeze exception
				}
			}
			fe, err := Freeze(m.Items[k])
			if err != nil {
				return Value{}, err
			}
			m.Items[k] = fe
		}
	case KindSet:
		s := out.AsSet()
		for _, k := range s.Order {
			fe, err := Freeze(s.Items[k])
			if err != nil {
				return Value{}, err
			}
			s.Items[k] = fe
		}
	case KindStruct:
		st := out.AsStruct()
		for _, f := range st.FieldOrder {
			if st.FieldPhases != nil {
				if p, ok := st.FieldPhases[f]; ok && p != PhaseCrystal {
					continue
				}
			}
			fe, err := Freeze(st.Fields[f])
			if err != nil {
				return Value{}, err
			}
			st.Fields[f] = fe
		}
	case KindEnum:
		e := out.AsEnum()
		for i, p := range e.Payload {
			fe, err := Freeze(p)
			if err != nil {
				return Value{}, err
			}
			e.Payload[i] = fe
		}
	case KindRef:
		r := out.AsRef()
		fe, err := Freeze(r.Inner)
		if err != nil {
			return Value{}, err
		}
		r.Inner = fe
	}
	return out, nil
}

// Thaw returns a Fluid copy of v, recursively thawing children and
// clearing any per-field/key phase overrides (spec.md §4.1: thaw is
// total, and "thaw(freeze(v)) == v structurally").
func Thaw(v Value) Value {
	out := Clone(v)
	out.phase = PhaseFluid
	switch out.kind {
	case KindArray:
		a := out.AsArray()
		for i, e := range a.Elems {
			a.Elems[i] = Thaw(e)
		}
	case KindTuple:
		t := out.AsTuple()
		for i, e := range t.Elems {
			t.Elems[i] = Thaw(e)
		}
	case KindMap:
		m := out.AsMap()
		m.KeyPhases = nil
		for _, k := range m.Order {
			m.Items[k] = Thaw(m.Items[k])
		}
	case KindSet:
		s := out.AsSet()
		for _, k := range s.Order {
			s.Items[k] = Thaw(s.Items[k])
		}
	case KindStruct:
		st := out.AsStruct()
		st.FieldPhases = nil
		for _, f := range st.FieldOrder {
			st.Fields[f] = Thaw(st.Fields[f])
		}
	case KindEnum:
		e := out.AsEnum()
		for i, p := range e.Payload {
			e.Payload[i] = Thaw(p)
		}
	case KindRef:
		r := out.AsRef()
		r.Inner = Thaw(r.Inner)
	}
	return out
}

// Eq implements structural equality (spec.md §4.1). Int/Float compare
// numerically across kinds; everything else requires matching Kind.
func Eq(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsFloat64() == b.AsFloat64()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindUnit, KindNil:
		return true
	case KindStr:
		return string(a.AsStr().Bytes) == string(b.AsStr().Bytes) // byte-equality
	case KindArray:
		ae, be := a.AsArray().Elems, b.AsArray().Elems
		return eqSlice(ae, be)
	case KindTuple:
		ae, be := a.AsTuple().Elems, b.AsTuple().Elems
		return eqSlice(ae, be)
	case KindMap:
		am, bm := a.AsMap(), b.AsMap()
		if len(am.Items) != len(bm.Items) {
			return false
		}
		for k, v := range am.Items {
			bv, ok := bm.Items[k]
			if !ok || !Eq(v, bv) {
				return false
			}
		}
		return true
	case KindSet:
		as, bs := a.AsSet(), b.AsSet()
		if len(as.Items) != len(bs.Items) {
			return false
		}
		for k := range as.Items {
			if _, ok := bs.Items[k]; !ok {
				return false
			}
		}
		return true
	case KindStruct:
		as, bs := a.AsStruct(), b.AsStruct()
		if as.Name != bs.Name || len(as.Fields) != len(bs.Fields) {
			return false
		}
		for k, v := range as.Fields {
			bv, ok := bs.Fields[k]
			if !ok || !Eq(v, bv) {
				return false
			}
		}
		return true
	case KindEnum:
		ae, be := a.AsEnum(), b.AsEnum()
		if ae.EnumName != be.EnumName || ae.Tag != be.Tag {
			return false
		}
		return eqSlice(ae.Payload, be.Payload)
	case KindRange:
		ar, br := a.AsRange(), b.AsRange()
		return *ar == *br
	case KindClosure:
		return a.AsClosure() == b.AsClosure()
	case KindChannel:
		return a.AsChannel() == b.AsChannel()
	case KindRef:
		return a.AsRef() == b.AsRef()
	case KindBuffer:
		return string(a.AsBuffer().Bytes) == string(b.AsBuffer().Bytes)
	default:
		return false
	}
}

func eqSlice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Display renders v's textual form, used by CONCAT and by error messages
// that embed a user value (spec.md §4.1, §4.5).
func Display(v Value) string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case KindFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindUnit:
		return "()"
	case KindNil:
		return "nil"
	case KindStr:
		return norm.NFC.String(string(v.AsStr().Bytes))
	case KindArray:
		return displayJoin("[", "]", v.AsArray().Elems)
	case KindTuple:
		return displayJoin("(", ")", v.AsTuple().Elems)
	case KindMap:
		m := v.AsMap()
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range m.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: %s", k, Display(m.Items[k]))
		}
		b.WriteByte('}')
		return b.String()
	case KindSet:
		s := v.AsSet()
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range s.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Display(s.Items[k]))
		}
		b.WriteByte('}')
		return b.String()
	case KindStruct:
		st := v.AsStruct()
		var b strings.Builder
		fmt.Fprintf(&b, "%s { ", st.Name)
		for i, f := range st.FieldOrder {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", f, Display(st.Fields[f]))
		}
		b.WriteString(" }")
		return b.String()
	case KindEnum:
		e := v.AsEnum()
		if len(e.Payload) == 0 {
			return fmt.Sprintf("%s.%s", e.EnumName, e.Tag)
		}
		return fmt.Sprintf("%s.%s%s", e.EnumName, e.Tag, displayJoin("(", ")", e.Payload))
	case KindRange:
		r := v.AsRange()
		sep := ".."
		if r.Inclusive {
			sep = "..="
		}
		return fmt.Sprintf("%d%s%d", r.Start, sep, r.Stop)
	case KindClosure:
		c := v.AsClosure()
		if c.Name != "" {
			return fmt.Sprintf("<fn %s>", c.Name)
		}
		return "<fn>"
	case KindChannel:
		return "<channel>"
	case KindBuffer:
		return fmt.Sprintf("<buffer len=%d>", len(v.AsBuffer().Bytes))
	case KindRef:
		return fmt.Sprintf("ref(%s)", Display(v.AsRef().Inner))
	case KindIterator:
		return "<iterator>"
	default:
		return "?"
	}
}

func displayJoin(open, closeStr string, elems []Value) string {
	var b strings.Builder
	b.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Display(e))
	}
	b.WriteString(closeStr)
	return b.String()
}

// --- Numeric coercion (spec.md §4.1) ---

// numericBinOp promotes Int/Int to Int, anything with a Float operand to
// Float, and rejects non-numeric operands.
func numericBinOp(a, b Value, intOp func(x, y int64) (int64, error), floatOp func(x, y float64) float64) (Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, fmt.Errorf("arithmetic on incompatible types %s and %s", a.Kind(), b.Kind())
	}
	if a.IsInt() && b.IsInt() {
		r, err := intOp(a.AsInt(), b.AsInt())
		if err != nil {
			return Value{}, err
		}
		return Int(r), nil
	}
	return Float(floatOp(a.AsFloat64(), b.AsFloat64())), nil
}

func Add(a, b Value) (Value, error) {
	return numericBinOp(a, b,
		func(x, y int64) (int64, error) { return x + y, nil },
		func(x, y float64) float64 { return x + y })
}

func Sub(a, b Value) (Value, error) {
	return numericBinOp(a, b,
		func(x, y int64) (int64, error) { return x - y, nil },
		func(x, y float64) float64 { return x - y })
}

func Mul(a, b Value) (Value, error) {
	return numericBinOp(a, b,
		func(x, y int64) (int64, error) { return x * y, nil },
		func(x, y float64) float64 { return x * y })
}

// Div implements spec.md §4.1/§4.5: integer division by zero fails,
// float division by zero yields IEEE Inf/NaN.
func Div(a, b Value) (Value, error) {
	return numericBinOp(a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("integer division by zero")
			}
			return x / y, nil
		},
		func(x, y float64) float64 { return x / y })
}

func Mod(a, b Value) (Value, error) {
	return numericBinOp(a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, fmt.Errorf("integer modulo by zero")
			}
			return x % y, nil
		},
		func(x, y float64) float64 { return math.Mod(x, y) })
}

// Compare returns -1/0/1 for a<b/a==b/a>b, or an error for incompatible
// types (spec.md §4.1).
func Compare(a, b Value) (int, error) {
	if a.IsNumber() && b.IsNumber() {
		af, bf := a.AsFloat64(), b.AsFloat64()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.kind == KindStr && b.kind == KindStr {
		return strings.Compare(string(a.AsStr().Bytes), string(b.AsStr().Bytes)), nil
	}
	return 0, fmt.Errorf("cannot compare %s and %s", a.Kind(), b.Kind())
}

// SortValues insertion-sorts elems in place, matching spec.md §4.6's
// "Sort operations: insertion sort" note — with a comparator closure `a <
// b` iff the call returns a negative integer, the method table passes
// `less` in; without one, numeric/lexicographic comparison is used via
// Compare, failing on mixed incompatible types.
func SortValues(elems []Value, less func(a, b Value) (bool, error)) error {
	for i := 1; i < len(elems); i++ {
		j := i
		for j > 0 {
			lt, err := less(elems[j], elems[j-1])
			if err != nil {
				return err
			}
			if !lt {
				break
			}
			elems[j], elems[j-1] = elems[j-1], elems[j]
			j--
		}
	}
	return nil
}
