package regvm

import "math"

// Value is a tagged-union fat pointer: a type tag, a phase tag, a region
// tag (doubling as the upvalue count on closures, see kinds.go), an
// inline scalar payload, and a heap pointer for everything else.
// Int/Float/Bool/Unit/Nil are stored inline and never allocate. Range
// is not inline: its fields do not fit in bits, so a Range Value holds
// a pointer to a RangeVal in heap (a RangeVal itself holds no Values).
type Value struct {
	kind   Kind
	phase  Phase
	region Region
	bits   uint64 // Int/Float/Bool payload
	heap   any    // heap-allocated payload for non-scalar kinds
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) Phase() Phase { return v.phase }

// Region returns the region tag. Calling this on a Closure value is a
// mistake the compiler can't catch for you (use UpvalueCount instead);
// it is not guarded at runtime to keep the hot path branch-free.
func (v Value) Region() Region { return v.region }

// UpvalueCount returns the region field read as an upvalue count.
// Closure() sets it to len(Upvalues), so it is 0 on a prototype constant
// that has no Upvalues filled in; CLOSURE takes its count from the
// number of follow-up words instead.
func (v Value) UpvalueCount() int { return int(v.region) }

func (v Value) WithPhase(p Phase) Value {
	v.phase = p
	return v
}

// --- Constructors ---

func Int(n int64) Value   { return Value{kind: KindInt, bits: uint64(n)} }
func Float(f float64) Value { return Value{kind: KindFloat, bits: math.Float64bits(f)} }
func Bool(b bool) Value {
	var bit uint64
	if b {
		bit = 1
	}
	return Value{kind: KindBool, bits: bit}
}

var (
	Unit = Value{kind: KindUnit}
	Nil  = Value{kind: KindNil}
)

// Str constructs an owned (heap) string. Ephemeral strings backed by the
// bump arena are built with ArenaStr instead.
func Str(s string) Value {
	return Value{kind: KindStr, heap: &StrVal{Bytes: []byte(s)}}
}

// ArenaStr wraps bytes allocated from a bump arena; region is tagged
// Ephemeral so freeze/clone know these bytes may be invalidated by a
// future arena Reset (spec.md §4.3).
func ArenaStr(b []byte) Value {
	return Value{kind: KindStr, region: RegionEphemeral, heap: &StrVal{Bytes: b}}
}

// --- Accessors ---

func (v Value) AsInt() int64 { return int64(v.bits) }

func (v Value) AsFloat() float64 { return math.Float64frombits(v.bits) }

func (v Value) AsBool() bool { return v.bits != 0 }

func (v Value) AsStr() *StrVal { return v.heap.(*StrVal) }

func (v Value) IsInt() bool    { return v.kind == KindInt }
func (v Value) IsFloat() bool  { return v.kind == KindFloat }
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsUnit() bool   { return v.kind == KindUnit }
func (v Value) IsStr() bool    { return v.kind == KindStr }

// AsFloat64 returns the numeric value of an Int or Float as a float64,
// for contexts (e.g. a failed division) that need a uniform read without
// caring which of the two kinds it was.
func (v Value) AsFloat64() float64 {
	if v.kind == KindInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// IsTruthy implements spec.md §4.1: Nil and false are falsy, everything
// else (including 0, "", empty containers) is truthy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.AsBool()
	default:
		return true
	}
}

// StrVal is the heap payload of a Str Value.
type StrVal struct {
	Bytes []byte
}

func (s *StrVal) String() string { return string(s.Bytes) }
