package regvm

import "encoding/binary"

// OpCode is one of the register machine's ~90 instructions (spec.md §4.5).
// Values are assigned in declaration order, and opNames is indexed by
// that value, so reordering this block means reordering opNames too
// (and invalidates persisted chunks).
type OpCode uint8

const (
	// Data movement
	OpMove OpCode = iota
	OpLoadK
	OpLoadI
	OpLoadNil
	OpLoadTrue
	OpLoadFalse
	OpLoadUnit

	// Arithmetic / logic / bitwise
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAddI
	OpNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpLShift
	OpRShift

	// Comparison
	OpEq
	OpNeq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpConcat

	// Control flow
	OpJmp
	OpJmpFalse
	OpJmpTrue
	OpJmpNotNil

	// Variables
	OpGetGlobal
	OpSetGlobal
	OpDefineGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	// Aggregates
	OpGetField
	OpSetField
	OpGetIndex
	OpSetIndex
	OpNewArray
	OpNewTuple
	OpNewStruct
	OpNewEnum
	OpBuildRange

	// Iteration
	OpIterInit
	OpIterNext

	// Calls
	OpCall
	OpReturn

	// Closures
	OpClosure

	// Exceptions
	OpPushHandler
	OpPopHandler
	OpThrow

	// Defer
	OpDeferPush
	OpDeferRun

	// Try-unwrap
	OpTryUnwrap

	// Phase ops
	OpFreeze
	OpThaw
	OpClone
	OpFreezeVar
	OpThawVar
	OpSublimateVar
	OpFreezeField
	OpThawField
	OpIsCrystal
	OpMarkFluid

	// Reactive ops
	OpReact
	OpUnreact
	OpBond
	OpUnbond
	OpSeed
	OpUnseed

	// Invocation
	OpInvoke
	OpInvokeLocal
	OpInvokeGlobal

	// Concurrency
	OpScope
	OpSelect

	// Module loader
	OpImport
	OpRequire

	// Arena
	OpResetEphemeral

	OpHalt

	opCodeCount
)

var opNames = [...]string{
	"MOVE", "LOADK", "LOADI", "LOADNIL", "LOADTRUE", "LOADFALSE", "LOADUNIT",
	"ADD", "SUB", "MUL", "DIV", "MOD", "NEG", "ADDI", "NOT",
	"BIT_AND", "BIT_OR", "BIT_XOR", "BIT_NOT", "LSHIFT", "RSHIFT",
	"EQ", "NEQ", "LT", "LTEQ", "GT", "GTEQ", "CONCAT",
	"JMP", "JMPFALSE", "JMPTRUE", "JMPNOTNIL",
	"GETGLOBAL", "SETGLOBAL", "DEFINEGLOBAL", "GETUPVALUE", "SETUPVALUE", "CLOSEUPVALUE",
	"GETFIELD", "SETFIELD", "GETINDEX", "SETINDEX",
	"NEWARRAY", "NEWTUPLE", "NEWSTRUCT", "NEWENUM", "BUILDRANGE",
	"ITERINIT", "ITERNEXT",
	"CALL", "RETURN",
	"CLOSURE",
	"PUSH_HANDLER", "POP_HANDLER", "THROW",
	"DEFER_PUSH", "DEFER_RUN",
	"TRY_UNWRAP",
	"FREEZE", "THAW", "CLONE", "FREEZE_VAR", "THAW_VAR", "SUBLIMATE_VAR",
	"FREEZE_FIELD", "THAW_FIELD", "IS_CRYSTAL", "MARKFLUID",
	"REACT", "UNREACT", "BOND", "UNBOND", "SEED", "UNSEED",
	"INVOKE", "INVOKE_LOCAL", "INVOKE_GLOBAL",
	"SCOPE", "SELECT",
	"IMPORT", "REQUIRE",
	"RESET_EPHEMERAL",
	"HALT",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// multiWord marks opcodes that consume one or more follow-up instruction
// words beyond their ABC/ABx/AsBx operands (spec.md §4.4).
var multiWord = map[OpCode]bool{
	OpNewStruct:    true,
	OpNewEnum:      true,
	OpBuildRange:   true,
	OpInvoke:       true,
	OpInvokeGlobal: true,
	OpInvokeLocal:  true,
	OpFreezeField:  true, // FREEZE_EXCEPT in spec.md's naming for the partial-freeze follow-up
	OpThawField:    true,
	OpBond:         true,
	OpScope:        true,
	OpSelect:       true,
	OpClosure:      true,
}

// RegChunkMagic identifies register-VM chunks in a persisted form,
// distinct from a hypothetical stack-VM chunk magic (spec.md §6). A
// closure's chunk pointer is checked against this before OpCall invokes
// it; memcpy-style comparison isn't needed in Go since there's no
// alignment hazard reading a struct field, but the check itself is kept
// identical for parity with the spec's described guard.
const RegChunkMagic uint32 = 0x52454756 // "REGV"

// sBx24Bias is the encoding bias for the signed 24-bit operand form
// (spec.md §4.4).
const sBx24Bias = 0x7FFFFF

// Instruction is one decoded 32-bit word.
type Instruction uint32

func EncodeABC(op OpCode, a, b, c byte) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24)
}

func EncodeABx(op OpCode, a byte, bx uint16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(bx)<<16)
}

func EncodeAsBx(op OpCode, a byte, sbx int16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(uint16(sbx))<<16)
}

func EncodeSBx24(op OpCode, sbx int32) Instruction {
	biased := uint32(sbx+sBx24Bias) & 0xFFFFFF
	return Instruction(uint32(op) | biased<<8)
}

func (i Instruction) Op() OpCode { return OpCode(i & 0xFF) }
func (i Instruction) A() byte    { return byte((i >> 8) & 0xFF) }
func (i Instruction) B() byte    { return byte((i >> 16) & 0xFF) }
func (i Instruction) C() byte    { return byte((i >> 24) & 0xFF) }
func (i Instruction) Bx() uint16 { return uint16(i >> 16) }
func (i Instruction) SBx() int16 { return int16(uint16(i >> 16)) }
func (i Instruction) SBx24() int32 {
	return int32((i>>8)&0xFFFFFF) - sBx24Bias
}

// Magic reads a chunk's magic header using the same "copy the bytes,
// don't trust alignment" discipline spec.md §6 calls out for a real
// memcpy-based comparison, even though Go structs have no alignment
// hazard here.
func Magic(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Chunk is a compiled unit of register-VM bytecode (spec.md §3).
type Chunk struct {
	Name  string
	Magic uint32
	Code  []Instruction
	// Extra holds the follow-up words a multi-word opcode (spec.md §4.4)
	// reads, keyed by that instruction's pc. A flat parallel array would
	// require every reader to recompute a running offset; keying by pc
	// instead lets each handler fetch its own words directly.
	Extra     map[int][]uint32
	Constants []Value
	Lines     []int // source line per instruction, parallel to Code

	// Locals returns the name bound to a register slot, for debug output
	// and for FREEZE_VAR/THAW_VAR/SUBLIMATE_VAR to resolve a register back
	// to a variable name (spec.md §3: "a local-slot→name map for debug/
	// tracking").
	Locals map[int]string

	// ParamPhases holds the phase constraint for each declared parameter,
	// nil entries meaning "unconstrained" (spec.md §3, overload resolution
	// in spec.md §4.5).
	ParamPhases []ParamConstraint

	// ExportNames filters IMPORT's harvested namespace (spec.md §4.5); a
	// nil slice means "export every non-metadata binding".
	ExportNames []string
}

// ParamConstraint is the phase a parameter register must be compatible
// with, used both for call-time validation and overload resolution.
type ParamConstraint uint8

const (
	ParamUnconstrained ParamConstraint = iota
	ParamFluid
	ParamCrystal
)

func NewChunk(name string) *Chunk {
	return &Chunk{Name: name, Magic: RegChunkMagic, Locals: make(map[int]string)}
}

func (c *Chunk) AddConstant(v Value) uint16 {
	c.Constants = append(c.Constants, v)
	if len(c.Constants) > 1<<16 {
		panic("regvm: too many constants in one chunk")
	}
	return uint16(len(c.Constants) - 1)
}

// ExtraWords returns the follow-up words recorded for instruction pc, if
// any.
func (c *Chunk) ExtraWords(pc int) []uint32 {
	return c.Extra[pc]
}

// Line returns the source line for instruction offset pc, or 0 if unknown.
func (c *Chunk) Line(pc int) int {
	if pc < 0 || pc >= len(c.Lines) {
		return 0
	}
	return c.Lines[pc]
}
