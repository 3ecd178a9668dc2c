package regvm

// Kind is a Value's type tag. Value, Chunk and OpCode all live in this
// one package — the teacher tried splitting Value into its own package
// (pkg/value, now deleted) and hit an import cycle (Closure needs Chunk,
// Chunk's constants need Value), then gave up and merged everything into
// pkg/vm instead. This module follows the working arrangement from the
// start rather than repeating the abandoned split (see DESIGN.md).
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindUnit
	KindNil
	KindStr
	KindArray
	KindMap
	KindSet
	KindTuple
	KindStruct
	KindEnum
	KindRange
	KindClosure
	KindChannel
	KindBuffer
	KindRef
	KindIterator
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindUnit:
		return "Unit"
	case KindNil:
		return "Nil"
	case KindStr:
		return "Str"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindSet:
		return "Set"
	case KindTuple:
		return "Tuple"
	case KindStruct:
		return "Struct"
	case KindEnum:
		return "Enum"
	case KindRange:
		return "Range"
	case KindClosure:
		return "Closure"
	case KindChannel:
		return "Channel"
	case KindBuffer:
		return "Buffer"
	case KindRef:
		return "Ref"
	case KindIterator:
		return "Iterator"
	default:
		return "Unknown"
	}
}

// Phase is a Value's modality tag (spec.md §3, Glossary).
type Phase uint8

const (
	PhaseUnphased Phase = iota
	PhaseFluid
	PhaseCrystal
	PhaseSublimated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnphased:
		return "unphased"
	case PhaseFluid:
		return "fluid"
	case PhaseCrystal:
		return "crystal"
	case PhaseSublimated:
		return "sublimated"
	default:
		return "unknown"
	}
}

// Region is a Value's heap-lifetime domain. On a TypeClosure Value, this
// field is repurposed to carry the upvalue count instead — see Value.Region
// / Value.UpvalueCount in value.go, ported from the original's region_id overload
// (flagged for re-architecture in spec.md §9, but the wire-visible byte
// layout is unchanged: we keep one field doing double duty and expose two
// differently-named accessors over it rather than growing Value).
type Region uint16

const (
	RegionNone Region = iota
	RegionEphemeral
	// RegionID(n >= 2) identifies a named region for future region-based
	// allocation; the core does not itself allocate into named regions,
	// it only carries the tag (spec.md's region model is forward-looking).
)
