package regvm

// ClosureKind discriminates how a Closure is invoked — a typed sum
// replacing the original's sentinel-pointer discrimination between
// native/extension/bytecode callees (spec.md §9 calls this out by name
// as a required re-architecture).
type ClosureKind uint8

const (
	ClosureBytecode ClosureKind = iota
	ClosureNative
	ClosureExtension
)

// NativeFn is a Go-implemented builtin invoked like a CALL target. It
// receives the runtime so it can synchronize named locals the way
// spec.md §4.5's CALL resolution describes for native callees.
type NativeFn func(rt *Runtime, args []Value) (Value, error)

// ExtensionFn is an externally-loaded callee (spec.md's "extension
// marker"); the core only specifies the calling convention, not how
// extensions are discovered or loaded (out of scope, spec.md §1).
type ExtensionFn func(args []Value) (Value, error)

// ClosureVal is the heap payload of a Closure Value.
type ClosureVal struct {
	Kind ClosureKind

	// Bytecode closures:
	Proto    *Chunk
	Upvalues []*Upvalue

	// Shared across all kinds:
	Arity        int
	ParamPhases  []ParamConstraint
	Defaults     []Value // nil entries mean "no default"
	Name         string

	Native    NativeFn
	Extension ExtensionFn
}

func Closure(c *ClosureVal) Value {
	return Value{kind: KindClosure, region: Region(len(c.Upvalues)), heap: c}
}

func (v Value) AsClosure() *ClosureVal { return v.heap.(*ClosureVal) }

// Upvalue is a cell shared between a closure and the register it
// captured. While open, Location aliases a live register in the register
// stack; Close copies the current value into Closed and nils Location,
// after which every sharer follows the indirection there (spec.md §3,
// §9).
type Upvalue struct {
	Location *Value
	Closed   Value
	// NextOpen links open upvalues in the VM's open-upvalue list, ordered
	// by descending register index so closing can stop early.
	NextOpen *Upvalue
	RegIndex int
}

func (u *Upvalue) IsOpen() bool { return u.Location != nil }

func (u *Upvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

func (u *Upvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Close copies the live register's value into Closed and detaches from
// the register (spec.md §3, Upvalue lifecycle).
func (u *Upvalue) Close() {
	if u.Location != nil {
		u.Closed = *u.Location
		u.Location = nil
	}
}
