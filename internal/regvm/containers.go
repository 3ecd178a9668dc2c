package regvm

// ArrayVal is the heap payload of an Array Value: a contiguous, growable
// sequence of independently-owned child Values (spec.md §3).
type ArrayVal struct {
	Elems []Value
}

func Array(elems []Value) Value {
	return Value{kind: KindArray, heap: &ArrayVal{Elems: elems}}
}

func (v Value) AsArray() *ArrayVal { return v.heap.(*ArrayVal) }

// TupleVal is fixed-length and, unlike Array, never grows after creation.
type TupleVal struct {
	Elems []Value
}

func Tuple(elems []Value) Value {
	return Value{kind: KindTuple, heap: &TupleVal{Elems: elems}}
}

func (v Value) AsTuple() *TupleVal { return v.heap.(*TupleVal) }

// MapVal is an insertion-ordered string-keyed table. Per-key phase
// overrides (partial freeze, spec.md §3) live in KeyPhases; a nil entry
// means "use the map's own Phase tag".
type MapVal struct {
	Order     []string
	Items     map[string]Value
	KeyPhases map[string]Phase
}

func NewMap() *MapVal {
	return &MapVal{Items: make(map[string]Value)}
}

func Map(m *MapVal) Value {
	return Value{kind: KindMap, heap: m}
}

func (v Value) AsMap() *MapVal { return v.heap.(*MapVal) }

// Set inserts or overwrites key, preserving first-insertion order.
func (m *MapVal) Set(key string, val Value) {
	if _, exists := m.Items[key]; !exists {
		m.Order = append(m.Order, key)
	}
	m.Items[key] = val
}

func (m *MapVal) Get(key string) (Value, bool) {
	v, ok := m.Items[key]
	return v, ok
}

// Delete removes key and its phase override, if any. Returns whether the
// key was present.
func (m *MapVal) Delete(key string) bool {
	if _, ok := m.Items[key]; !ok {
		return false
	}
	delete(m.Items, key)
	delete(m.KeyPhases, key)
	for i, k := range m.Order {
		if k == key {
			m.Order = append(m.Order[:i], m.Order[i+1:]...)
			break
		}
	}
	return true
}

// PhaseFor returns the effective phase for key: the per-key override if
// one is set, otherwise the map's own phase.
func (m *MapVal) PhaseFor(key string, ownPhase Phase) Phase {
	if m.KeyPhases != nil {
		if p, ok := m.KeyPhases[key]; ok {
			return p
		}
	}
	return ownPhase
}

func (m *MapVal) SetKeyPhase(key string, p Phase) {
	if m.KeyPhases == nil {
		m.KeyPhases = make(map[string]Phase)
	}
	m.KeyPhases[key] = p
}

// SetVal mirrors MapVal but stores presence of arbitrary Values, keyed by
// their display-derived canonical key (spec.md §3: "Map/Set hold an
// open-addressed hash table keyed by byte-string").
type SetVal struct {
	Order []string
	Items map[string]Value
}

func NewSet() *SetVal {
	return &SetVal{Items: make(map[string]Value)}
}

func Set(s *SetVal) Value {
	return Value{kind: KindSet, heap: s}
}

func (v Value) AsSet() *SetVal { return v.heap.(*SetVal) }

func (s *SetVal) Add(key string, val Value) {
	if _, exists := s.Items[key]; !exists {
		s.Order = append(s.Order, key)
	}
	s.Items[key] = val
}

func (s *SetVal) Remove(key string) bool {
	if _, ok := s.Items[key]; !ok {
		return false
	}
	delete(s.Items, key)
	for i, k := range s.Order {
		if k == key {
			s.Order = append(s.Order[:i], s.Order[i+1:]...)
			break
		}
	}
	return true
}

// StructVal holds a named, fixed field layout plus per-field phase
// overrides (partial freeze, spec.md §3).
type StructVal struct {
	Name        string
	FieldOrder  []string
	Fields      map[string]Value
	FieldPhases map[string]Phase
}

func Struct(s *StructVal) Value {
	return Value{kind: KindStruct, heap: s}
}

func (v Value) AsStruct() *StructVal { return v.heap.(*StructVal) }

func (s *StructVal) PhaseFor(field string, ownPhase Phase) Phase {
	if s.FieldPhases != nil {
		if p, ok := s.FieldPhases[field]; ok {
			return p
		}
	}
	return ownPhase
}

// EnumVal is a tagged variant with a positional payload (spec.md §4.5:
// GETFIELD exposes `tag`, `enum_name`, `payload` on Enum values).
type EnumVal struct {
	EnumName string
	Tag      string
	Payload  []Value
}

func Enum(e *EnumVal) Value {
	return Value{kind: KindEnum, heap: e}
}

func (v Value) AsEnum() *EnumVal { return v.heap.(*EnumVal) }

// RangeVal is a half-open or closed integer range; it carries no child
// Values, matching the "no heap references" invariant for scalars even
// though its fields don't fit in Value.bits.
type RangeVal struct {
	Start     int64
	Stop      int64
	Step      int64
	Inclusive bool
}

func Range(r RangeVal) Value {
	return Value{kind: KindRange, heap: &r}
}

func (v Value) AsRange() *RangeVal { return v.heap.(*RangeVal) }

// Len returns the number of integers the range yields.
func (r *RangeVal) Len() int64 {
	stop := r.Stop
	if r.Inclusive {
		stop++
	}
	if r.Step == 0 {
		return 0
	}
	n := (stop - r.Start) / r.Step
	if n < 0 {
		return 0
	}
	return n
}

func (r *RangeVal) At(i int64) int64 {
	return r.Start + i*r.Step
}

// BufferVal is a growable byte buffer with little-endian multi-byte
// accessors (spec.md §4.6).
type BufferVal struct {
	Bytes []byte
}

func Buffer(b []byte) Value {
	return Value{kind: KindBuffer, heap: &BufferVal{Bytes: b}}
}

func (v Value) AsBuffer() *BufferVal { return v.heap.(*BufferVal) }

// RefVal is a reference-counted heap cell wrapping one mutable Value —
// the only form of shared mutable state between concurrently reachable
// roots (spec.md §3, §5).
type RefVal struct {
	RefCount int32
	Inner    Value
}

func Ref(inner Value) Value {
	return Value{kind: KindRef, heap: &RefVal{RefCount: 1, Inner: inner}}
}

func (v Value) AsRef() *RefVal { return v.heap.(*RefVal) }

// IteratorVal is an explicit cursor over a Value returned by method-table
// iteration helpers (distinct from ITERINIT/ITERNEXT's lower-level
// array-plus-index-register protocol, spec.md §4.5).
type IteratorVal struct {
	Items []Value
	Index int
}

func Iterator(items []Value) Value {
	return Value{kind: KindIterator, heap: &IteratorVal{Items: items}}
}

func (v Value) AsIterator() *IteratorVal { return v.heap.(*IteratorVal) }

func (it *IteratorVal) Next() (Value, bool) {
	if it.Index >= len(it.Items) {
		return Nil, false
	}
	v := it.Items[it.Index]
	it.Index++
	return v, true
}
